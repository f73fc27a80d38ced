package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/ahmethakanbesel/tgsearch-api/internal/source"
)

type ChannelStatus string

const (
	ChannelSearched ChannelStatus = "searched"
	ChannelSkipped  ChannelStatus = "skipped"
)

// ChannelOutcome is what one channel worker did. A skipped channel or a
// failed keyword query never fails the search; it only shrinks the result.
type ChannelOutcome struct {
	Channel    string
	Status     ChannelStatus
	Reason     error
	Candidates int
	Errors     int
}

type channelJob struct {
	session  source.Session
	channel  string
	keywords []string
	filter   Filter
	before   time.Time
	emit     func(Candidate) bool
	tick     func(channel, keyword string)
}

func (s *Searcher) searchChannel(ctx context.Context, j channelJob) ChannelOutcome {
	out := ChannelOutcome{Channel: j.channel, Status: ChannelSearched}

	entity, err := j.session.Resolve(ctx, j.channel)
	if err != nil {
		slog.Warn("channel skipped", "channel", j.channel, "error", err)
		out.Status = ChannelSkipped
		out.Reason = err
		for _, kw := range j.keywords {
			j.tick(j.channel, kw)
		}
		return out
	}

	for _, kw := range j.keywords {
		if ctx.Err() != nil {
			return out
		}
		n, failed := s.searchKeyword(ctx, j, entity, kw)
		out.Candidates += n
		if failed {
			out.Errors++
		}
		j.tick(j.channel, kw)
	}
	return out
}

// searchKeyword consumes one (channel, keyword) stream. It returns the number
// of new candidates and whether the stream ended with an error.
func (s *Searcher) searchKeyword(ctx context.Context, j channelJob, e source.Entity, kw string) (int, bool) {
	n := 0
stream:
	for m, err := range j.session.Search(ctx, e, kw, j.before) {
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("keyword query failed", "channel", j.channel, "keyword", kw, "error", err)
				return n, true
			}
			break
		}
		switch j.filter.Check(m) {
		case Stop:
			break stream
		case Skip:
			continue
		}
		if j.emit(newCandidate(j.channel, kw, m)) {
			n++
		}
	}
	return n, false
}
