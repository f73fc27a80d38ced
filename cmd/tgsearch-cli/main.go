// Command tgsearch-cli runs one search from the terminal and prints the
// result, without jobs or quotas.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/ahmethakanbesel/tgsearch-api/internal/config"
	"github.com/ahmethakanbesel/tgsearch-api/internal/search"
	"github.com/ahmethakanbesel/tgsearch-api/internal/source/tgweb"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("tgsearch-cli", flag.ContinueOnError)
	var (
		channels = fs.StringP("channels", "c", "", "channels, comma or newline separated (handles, @handles or t.me links)")
		keywords = fs.StringP("keywords", "k", "", "keywords, comma or newline separated")
		exclude  = fs.StringP("exclude", "x", "", "skip messages containing any of these words")
		from     = fs.String("from", time.Now().UTC().AddDate(0, 0, -7).Format(time.DateOnly), "first day, YYYY-MM-DD")
		to       = fs.String("to", time.Now().UTC().Format(time.DateOnly), "last day, YYYY-MM-DD")
		anyKind  = fs.Bool("any", false, "include messages without video")
		format   = fs.StringP("format", "f", "links", "output format: links, csv or json")
		out      = fs.StringP("output", "o", "", "write to file instead of stdout")
		verbose  = fs.BoolP("verbose", "v", false, "log progress to stderr")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	switch *format {
	case "links", "csv", "json":
	default:
		return fmt.Errorf("unknown format %q", *format)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := config.Load()

	req := search.Request{
		Channels:        search.SplitList(*channels),
		Keywords:        search.SplitList(*keywords),
		ExcludeKeywords: search.SplitList(*exclude),
		ContentFilter:   search.ContentVideo,
	}
	if *anyKind {
		req.ContentFilter = search.ContentAny
	}
	var err error
	if req.StartDate, err = search.ParseDate(*from); err != nil {
		return fmt.Errorf("invalid --from: %w", err)
	}
	if req.EndDate, err = search.ParseDate(*to); err != nil {
		return fmt.Errorf("invalid --to: %w", err)
	}
	req = req.Normalize()
	if appErr := req.Validate(search.Limits{
		MaxChannels:   cfg.Search.MaxChannels,
		MaxKeywords:   cfg.Search.MaxKeywords,
		MaxDaysWindow: cfg.Search.MaxDaysWindow,
	}); appErr != nil {
		return appErr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	searcher := search.NewSearcher(
		tgweb.New(
			tgweb.WithBaseURL(cfg.Source.BaseURL),
			tgweb.WithUserAgent(cfg.Source.UserAgent),
			tgweb.WithThrottle(cfg.Search.Throttle),
		),
		search.WithConcurrency(cfg.Search.Concurrency),
		search.WithDeduper(search.Deduper{
			Ceiling:   cfg.Search.DedupCeiling,
			Threshold: cfg.Search.DedupThreshold,
			PrefixLen: cfg.Search.DedupPrefix,
		}),
	)
	res, err := searcher.Search(ctx, req, search.ReporterFunc(func(p float64, msg string) {
		slog.Info(msg, "progress", fmt.Sprintf("%.0f%%", p))
	}))
	if err != nil {
		return err
	}

	if *out == "" {
		return writeResult(stdout, *format, res)
	}
	return writeFile(*out, *format, res)
}

// writeFile writes the result to path. A failed close is reported, since it
// can be the only sign that buffered data never reached the disk.
func writeFile(path, format string, res *search.Result) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return writeResult(f, format, res)
}

func writeResult(w io.Writer, format string, res *search.Result) error {
	switch format {
	case "links":
		return search.WriteLinks(w, res.Links)
	case "csv":
		return search.WriteCSV(w, res.Rows)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
