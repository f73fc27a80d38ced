// Package source defines the message-source capability the search core
// consumes: a session that resolves channels and streams keyword matches
// newest-first.
package source

import (
	"context"
	"errors"
	"iter"
	"strings"
	"time"
)

// ErrNotFound is returned by Resolve for unknown, renamed or private channels.
var ErrNotFound = errors.New("channel not found")

// Message is one post as seen by the search core.
type Message struct {
	ID               int64
	Timestamp        time.Time // zero when the source did not report one
	Text             string
	HasVideo         bool
	DocumentMimeType string
	MediaID          string // id of the attached media object, if any
}

// IsVideo reports whether the message carries a native video or a video document.
func (m Message) IsVideo() bool {
	return m.HasVideo || strings.HasPrefix(m.DocumentMimeType, "video/")
}

// Entity is a resolved, queryable channel.
type Entity struct {
	Handle string
	Title  string
}

// Stream yields messages newest-first. It is finite and not restartable; a
// non-nil error ends the stream.
type Stream = iter.Seq2[Message, error]

// Session is a connection to the message source. It is shared read-only by
// the channel workers of one search.
type Session interface {
	Resolve(ctx context.Context, channel string) (Entity, error)
	Search(ctx context.Context, e Entity, keyword string, before time.Time) Stream
	Close() error
}

// Client opens sessions. An Open failure means the source is unreachable.
type Client interface {
	Open(ctx context.Context) (Session, error)
}
