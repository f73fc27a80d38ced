package search

import (
	"fmt"
	"time"

	"github.com/ahmethakanbesel/tgsearch-api/internal/apperror"
)

const dateFormat = "2006-01-02"

type ContentFilter string

const (
	ContentVideo ContentFilter = "video"
	ContentAny   ContentFilter = "any"
)

// Request is one search over channels × keywords inside an inclusive UTC
// date window. Use Normalize before Validate.
type Request struct {
	Channels        []string      `json:"channels"`
	Keywords        []string      `json:"keywords"`
	ExcludeKeywords []string      `json:"excludeKeywords,omitempty"`
	StartDate       time.Time     `json:"startDate"`
	EndDate         time.Time     `json:"endDate"`
	ContentFilter   ContentFilter `json:"contentFilter"`
}

// Limits bounds the size of a request. Zero means unbounded.
type Limits struct {
	MaxChannels   int
	MaxKeywords   int
	MaxDaysWindow int
}

// Normalize returns a copy with canonical channels and keywords, dates
// truncated to UTC days and an explicit content filter.
func (r Request) Normalize() Request {
	out := Request{
		Channels:        NormalizeChannels(r.Channels),
		Keywords:        NormalizeKeywords(r.Keywords),
		ExcludeKeywords: NormalizeKeywords(r.ExcludeKeywords),
		StartDate:       utcDay(r.StartDate),
		EndDate:         utcDay(r.EndDate),
		ContentFilter:   r.ContentFilter,
	}
	if out.ContentFilter == "" {
		out.ContentFilter = ContentVideo
	}
	return out
}

func (r Request) Validate(l Limits) *apperror.AppError {
	if len(r.Channels) == 0 {
		return apperror.New(apperror.BadRequest, "no valid channels")
	}
	if len(r.Keywords) == 0 {
		return apperror.New(apperror.BadRequest, "no keywords")
	}
	if l.MaxChannels > 0 && len(r.Channels) > l.MaxChannels {
		return apperror.New(apperror.BadRequest, fmt.Sprintf("too many channels (max %d)", l.MaxChannels))
	}
	if l.MaxKeywords > 0 && len(r.Keywords) > l.MaxKeywords {
		return apperror.New(apperror.BadRequest, fmt.Sprintf("too many keywords (max %d)", l.MaxKeywords))
	}
	if r.StartDate.IsZero() || r.EndDate.IsZero() {
		return apperror.New(apperror.BadRequest, "startDate and endDate are required")
	}
	if r.EndDate.Before(r.StartDate) {
		return apperror.New(apperror.BadRequest, "endDate must not be before startDate")
	}
	if l.MaxDaysWindow > 0 && r.EndDate.Sub(r.StartDate) > time.Duration(l.MaxDaysWindow)*24*time.Hour {
		return apperror.New(apperror.BadRequest, fmt.Sprintf("date range too wide (max %d days)", l.MaxDaysWindow))
	}
	if r.ContentFilter != ContentVideo && r.ContentFilter != ContentAny {
		return apperror.New(apperror.BadRequest, "contentFilter must be video or any")
	}
	return nil
}

// Window returns the inclusive instant range covered by the request's dates.
func (r Request) Window() (start, end time.Time) {
	start = utcDay(r.StartDate)
	end = utcDay(r.EndDate).Add(24*time.Hour - time.Nanosecond)
	return start, end
}

// ParseDate parses a YYYY-MM-DD calendar date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(dateFormat, s)
}

func utcDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
