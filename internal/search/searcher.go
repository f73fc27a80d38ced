package search

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ahmethakanbesel/tgsearch-api/internal/source"
)

// gatherShare is the part of overall progress owned by the gathering phase;
// dedup owns the rest.
const gatherShare = 90.0

// ErrSourceUnavailable means no session to the message source could be
// opened, so the search cannot produce even a partial result.
var ErrSourceUnavailable = errors.New("message source unavailable")

// Reporter receives progress in [0,100] and a short status line.
type Reporter interface {
	Report(progress float64, message string)
}

type ReporterFunc func(progress float64, message string)

func (f ReporterFunc) Report(progress float64, message string) { f(progress, message) }

type nopReporter struct{}

func (nopReporter) Report(float64, string) {}

// Searcher fans a request out over channels with bounded concurrency, merges
// candidates by fingerprint, orders them by time and deduplicates the text.
type Searcher struct {
	client      source.Client
	concurrency int
	dedup       Deduper
}

// NewSearcher creates a Searcher with the given options applied.
func NewSearcher(client source.Client, opts ...Option) *Searcher {
	s := &Searcher{
		client:      client,
		concurrency: 4,
		dedup:       Deduper{Ceiling: 1500, Threshold: 0.95, PrefixLen: 24},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithConcurrency sets how many channels are searched at once.
func WithConcurrency(n int) Option {
	return func(s *Searcher) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithDeduper(d Deduper) Option {
	return func(s *Searcher) { s.dedup = d }
}

// Search runs a normalized, validated request. Channel-level failures only
// shrink the result; an error is returned when the source cannot be reached
// at all or ctx ends.
func (s *Searcher) Search(ctx context.Context, req Request, rep Reporter) (*Result, error) {
	if rep == nil {
		rep = nopReporter{}
	}

	rep.Report(0, "connecting to message source")
	sess, err := s.client.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer func() { _ = sess.Close() }()

	filter := NewFilter(req)
	_, end := req.Window()
	before := end.Add(time.Second)

	var (
		m     = newMerger()
		total = len(req.Channels) * len(req.Keywords)
		done  atomic.Int64
	)
	tick := func(channel, keyword string) {
		d := done.Add(1)
		rep.Report(gatherShare*float64(d)/float64(max(total, 1)),
			fmt.Sprintf("searched %s for %q (%d/%d)", channel, keyword, d, total))
	}

	outcomes := make([]ChannelOutcome, len(req.Channels))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, ch := range req.Channels {
		g.Go(func() error {
			outcomes[i] = s.searchChannel(gctx, channelJob{
				session:  sess,
				channel:  ch,
				keywords: req.Keywords,
				filter:   filter,
				before:   before,
				emit:     m.add,
				tick:     tick,
			})
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := m.sorted()
	rows := make([]Row, len(candidates))
	for i, c := range candidates {
		rows[i] = Row{Link: c.Link, Text: c.Text}
	}

	rep.Report(gatherShare, fmt.Sprintf("deduplicating %d results", len(rows)))
	deduped, ds := s.dedup.Dedup(rows)
	if ds.FuzzySkipped {
		slog.Warn("fuzzy dedup skipped", "rows", len(rows)-ds.Exact, "ceiling", s.dedup.Ceiling)
		rep.Report(gatherShare+5, fmt.Sprintf("fuzzy dedup skipped: %d rows exceed the limit of %d, exact duplicates removed only",
			len(rows)-ds.Exact, s.dedup.Ceiling))
	}

	res := &Result{
		Links: make([]string, len(deduped)),
		Rows:  deduped,
		Stats: Stats{
			Candidates:      len(candidates),
			ExactDuplicates: ds.Exact,
			FuzzyDuplicates: ds.Fuzzy,
			FuzzySkipped:    ds.FuzzySkipped,
		},
	}
	for i, r := range deduped {
		res.Links[i] = r.Link
	}
	for _, o := range outcomes {
		if o.Status == ChannelSkipped {
			res.Stats.ChannelsSkipped++
		} else {
			res.Stats.ChannelsSearched++
		}
	}

	rep.Report(100, fmt.Sprintf("done: %d results from %d channels (%d skipped)",
		len(res.Rows), res.Stats.ChannelsSearched, res.Stats.ChannelsSkipped))
	return res, nil
}

// merger keeps the first candidate seen per fingerprint.
type merger struct {
	mu    sync.Mutex
	seq   uint64
	byKey map[string]Candidate
}

func newMerger() *merger {
	return &merger{byKey: make(map[string]Candidate)}
}

func (m *merger) add(c Candidate) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byKey[c.Fingerprint]; ok {
		return false
	}
	m.seq++
	c.seq = m.seq
	m.byKey[c.Fingerprint] = c
	return true
}

// sorted returns candidates by ascending timestamp, ties in discovery order.
func (m *merger) sorted() []Candidate {
	m.mu.Lock()
	out := make([]Candidate, 0, len(m.byKey))
	for _, c := range m.byKey {
		out = append(out, c)
	}
	m.mu.Unlock()

	slices.SortFunc(out, func(a, b Candidate) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	return out
}
