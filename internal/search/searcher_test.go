package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ahmethakanbesel/tgsearch-api/internal/source"
)

type recorder struct {
	mu       sync.Mutex
	progress []float64
	messages []string
}

func (r *recorder) Report(p float64, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
	r.messages = append(r.messages, msg)
}

func request(channels, keywords []string, filter ContentFilter) Request {
	return Request{
		Channels:      channels,
		Keywords:      keywords,
		StartDate:     day(2024, 1, 1),
		EndDate:       day(2024, 1, 2),
		ContentFilter: filter,
	}.Normalize()
}

func TestSearch_ScenarioA_TextDedupKeepsEarliest(t *testing.T) {
	src := newFakeSource()
	src.add("alpha", "x", video(101, "2024-01-01T10:00:00Z", "hello"))
	src.add("beta", "x", video(202, "2024-01-01T09:00:00Z", "hello "))

	s := NewSearcher(src)
	res, err := s.Search(context.Background(), request([]string{"alpha", "beta"}, []string{"x"}, ContentVideo), nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if len(res.Rows) != 1 {
		t.Fatalf("got %d rows, want 1: %v", len(res.Rows), res.Links)
	}
	if res.Links[0] != "https://t.me/beta/202" {
		t.Errorf("link = %s, want beta's", res.Links[0])
	}
	if res.Rows[0].Link != res.Links[0] {
		t.Error("rows and links disagree")
	}
	if res.Stats.ExactDuplicates != 1 || res.Stats.Candidates != 2 {
		t.Errorf("stats = %+v", res.Stats)
	}
}

func TestSearch_ScenarioB_ChannelFailureIsLocal(t *testing.T) {
	src := newFakeSource()
	src.missing["gamma"] = true
	src.add("alpha", "x", video(1, "2024-01-01T10:00:00Z", "from alpha"))
	src.add("beta", "x", video(2, "2024-01-01T11:00:00Z", "from beta"))

	s := NewSearcher(src)
	res, err := s.Search(context.Background(), request([]string{"alpha", "gamma", "beta"}, []string{"x"}, ContentVideo), nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	want := []string{"https://t.me/alpha/1", "https://t.me/beta/2"}
	if strings.Join(res.Links, ",") != strings.Join(want, ",") {
		t.Errorf("links = %v, want %v", res.Links, want)
	}
	if res.Stats.ChannelsSkipped != 1 || res.Stats.ChannelsSearched != 2 {
		t.Errorf("stats = %+v", res.Stats)
	}
}

func TestSearch_StopRule(t *testing.T) {
	src := newFakeSource()
	src.add("alpha", "x",
		video(3, "2024-01-02T10:00:00Z", "newest"),
		video(2, "2023-12-31T10:00:00Z", "too old"),
		video(1, "2024-01-01T10:00:00Z", "out of order but in window"),
	)

	s := NewSearcher(src)
	res, err := s.Search(context.Background(), request([]string{"alpha"}, []string{"x"}, ContentVideo), nil)
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Links) != 1 || res.Links[0] != "https://t.me/alpha/3" {
		t.Errorf("links = %v, want only message 3", res.Links)
	}
	if n := src.pulled("alpha", "x"); n != 2 {
		t.Errorf("pulled %d messages, want 2 (stream must stop at the first old one)", n)
	}
}

func TestSearch_FingerprintFirstSeenWins(t *testing.T) {
	src := newFakeSource()
	a := video(1, "2024-01-01T10:00:00Z", "alpha copy")
	a.MediaID = "m1"
	b := video(9, "2024-01-01T09:00:00Z", "beta copy")
	b.MediaID = "m1"
	src.add("alpha", "x", a)
	src.add("alpha", "y", a)
	src.add("beta", "x", b)

	s := NewSearcher(src, WithConcurrency(1))
	res, err := s.Search(context.Background(), request([]string{"alpha", "beta"}, []string{"x", "y"}, ContentVideo), nil)
	if err != nil {
		t.Fatal(err)
	}

	if res.Stats.Candidates != 1 {
		t.Fatalf("candidates = %d, want 1", res.Stats.Candidates)
	}
	if res.Rows[0].Text != "alpha copy" {
		t.Errorf("kept %q, want the first discovered", res.Rows[0].Text)
	}
}

func TestSearch_OrderedByTimestampThenDiscovery(t *testing.T) {
	src := newFakeSource()
	src.add("alpha", "x",
		video(3, "2024-01-02T10:00:00Z", "late"),
		video(2, "2024-01-01T10:00:00Z", "tie first"),
	)
	src.add("beta", "x",
		video(7, "2024-01-01T10:00:00Z", "tie second"),
		video(6, "2024-01-01T08:00:00Z", "early"),
	)

	s := NewSearcher(src, WithConcurrency(1))
	res, err := s.Search(context.Background(), request([]string{"alpha", "beta"}, []string{"x"}, ContentVideo), nil)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"https://t.me/beta/6", "https://t.me/alpha/2", "https://t.me/beta/7", "https://t.me/alpha/3"}
	if strings.Join(res.Links, ",") != strings.Join(want, ",") {
		t.Errorf("links = %v, want %v", res.Links, want)
	}
}

func TestSearch_KeywordErrorIsScoped(t *testing.T) {
	src := newFakeSource()
	src.add("alpha", "x", video(1, "2024-01-01T10:00:00Z", "a"), video(2, "2024-01-01T09:00:00Z", "b"))
	src.add("alpha", "y", video(3, "2024-01-01T08:00:00Z", "c"))
	src.failAt["alpha/x"] = 1

	s := NewSearcher(src)
	res, err := s.Search(context.Background(), request([]string{"alpha"}, []string{"x", "y"}, ContentVideo), nil)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"https://t.me/alpha/3", "https://t.me/alpha/1"}
	if strings.Join(res.Links, ",") != strings.Join(want, ",") {
		t.Errorf("links = %v, want %v", res.Links, want)
	}
}

func TestSearch_SourceUnavailable(t *testing.T) {
	src := newFakeSource()
	src.openErr = errors.New("dial tcp: connection refused")

	s := NewSearcher(src)
	_, err := s.Search(context.Background(), request([]string{"alpha"}, []string{"x"}, ContentVideo), nil)
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
}

func TestSearch_Progress(t *testing.T) {
	src := newFakeSource()
	src.add("alpha", "x", video(1, "2024-01-01T10:00:00Z", "a"))

	rec := &recorder{}
	s := NewSearcher(src, WithConcurrency(1))
	_, err := s.Search(context.Background(), request([]string{"alpha", "beta"}, []string{"x", "y"}, ContentVideo), rec)
	if err != nil {
		t.Fatal(err)
	}

	for i := 1; i < len(rec.progress); i++ {
		if rec.progress[i] < rec.progress[i-1] {
			t.Fatalf("progress went backwards: %v", rec.progress)
		}
	}
	if last := rec.progress[len(rec.progress)-1]; last != 100 {
		t.Errorf("final progress = %v, want 100", last)
	}
	found90 := false
	for _, p := range rec.progress {
		if p == gatherShare {
			found90 = true
		}
	}
	if !found90 {
		t.Errorf("gathering never reached %v: %v", gatherShare, rec.progress)
	}
}

func TestSearch_FuzzySkipIsReported(t *testing.T) {
	src := newFakeSource()
	for i := range 5 {
		src.add("alpha", "x", video(int64(100-i), "2024-01-01T10:00:00Z", fmt.Sprintf("distinct text %d", i)))
	}

	rec := &recorder{}
	s := NewSearcher(src, WithDeduper(Deduper{Ceiling: 3, Threshold: 0.95}))
	res, err := s.Search(context.Background(), request([]string{"alpha"}, []string{"x"}, ContentVideo), rec)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Stats.FuzzySkipped || len(res.Rows) != 5 {
		t.Errorf("stats = %+v rows = %d", res.Stats, len(res.Rows))
	}
	reported := false
	for _, m := range rec.messages {
		if strings.Contains(m, "fuzzy dedup skipped") {
			reported = true
		}
	}
	if !reported {
		t.Errorf("skip not reported in progress log: %v", rec.messages)
	}
}

// slowSource tracks how many channels resolve at the same time.
type slowSource struct {
	*fakeSource
	inflight, peak atomic.Int32
}

func (s *slowSource) Open(context.Context) (source.Session, error) { return s, nil }

func (s *slowSource) Resolve(ctx context.Context, channel string) (source.Entity, error) {
	n := s.inflight.Add(1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	s.inflight.Add(-1)
	return s.fakeSource.Resolve(ctx, channel)
}

func TestSearch_ConcurrencyBound(t *testing.T) {
	src := &slowSource{fakeSource: newFakeSource()}
	channels := []string{"chan1", "chan2", "chan3", "chan4", "chan5", "chan6"}

	s := NewSearcher(src, WithConcurrency(2))
	if _, err := s.Search(context.Background(), request(channels, []string{"x"}, ContentAny), nil); err != nil {
		t.Fatal(err)
	}
	if p := src.peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", p)
	}
}

func TestSearch_ContextCancelled(t *testing.T) {
	src := newFakeSource()
	src.add("alpha", "x", video(1, "2024-01-01T10:00:00Z", "a"), video(2, "2024-01-01T09:00:00Z", "b"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewSearcher(src)
	if _, err := s.Search(ctx, request([]string{"alpha"}, []string{"x"}, ContentVideo), nil); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
