package search

import (
	"strings"
	"time"

	"github.com/ahmethakanbesel/tgsearch-api/internal/source"
)

type Verdict int

const (
	Accept Verdict = iota
	Skip
	// Stop ends the current (channel, keyword) stream: the source is
	// newest-first, so everything after this message is older still.
	Stop
)

// Filter is the per-message predicate for one request.
type Filter struct {
	Start, End time.Time
	Content    ContentFilter
	exclude    []string
}

// NewFilter builds the filter for a normalized request.
func NewFilter(r Request) Filter {
	start, end := r.Window()
	exclude := make([]string, 0, len(r.ExcludeKeywords))
	for _, kw := range r.ExcludeKeywords {
		exclude = append(exclude, strings.ToLower(kw))
	}
	return Filter{Start: start, End: end, Content: r.ContentFilter, exclude: exclude}
}

func (f Filter) Check(m source.Message) Verdict {
	if m.Timestamp.IsZero() {
		return Skip
	}
	ts := asUTC(m.Timestamp)
	if ts.After(f.End) {
		return Skip
	}
	if ts.Before(f.Start) {
		return Stop
	}
	if f.Content == ContentVideo && !m.IsVideo() {
		return Skip
	}
	if len(f.exclude) > 0 {
		text := strings.ToLower(m.Text)
		for _, kw := range f.exclude {
			if strings.Contains(text, kw) {
				return Skip
			}
		}
	}
	return Accept
}

// asUTC converts t to UTC. Zone-less (Local) wall times from a source are
// read as UTC wall times.
func asUTC(t time.Time) time.Time {
	if t.Location() == time.Local {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	}
	return t.UTC()
}
