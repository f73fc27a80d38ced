package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ahmethakanbesel/tgsearch-api/internal/source"
)

// fakeSource serves canned newest-first messages per channel and keyword.
type fakeSource struct {
	mu       sync.Mutex
	openErr  error
	missing  map[string]bool
	messages map[string]map[string][]source.Message // channel -> keyword -> messages
	streamed map[string]int                         // "channel/keyword" -> messages pulled
	failAt   map[string]int                         // "channel/keyword" -> yield error at index
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		missing:  make(map[string]bool),
		messages: make(map[string]map[string][]source.Message),
		streamed: make(map[string]int),
		failAt:   make(map[string]int),
	}
}

func (f *fakeSource) add(channel, keyword string, msgs ...source.Message) {
	if f.messages[channel] == nil {
		f.messages[channel] = make(map[string][]source.Message)
	}
	f.messages[channel][keyword] = append(f.messages[channel][keyword], msgs...)
}

func (f *fakeSource) pulled(channel, keyword string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streamed[channel+"/"+keyword]
}

func (f *fakeSource) Open(context.Context) (source.Session, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f, nil
}

func (f *fakeSource) Close() error { return nil }

func (f *fakeSource) Resolve(_ context.Context, channel string) (source.Entity, error) {
	if f.missing[channel] {
		return source.Entity{}, source.ErrNotFound
	}
	return source.Entity{Handle: channel}, nil
}

func (f *fakeSource) Search(_ context.Context, e source.Entity, keyword string, _ time.Time) source.Stream {
	key := e.Handle + "/" + keyword
	msgs := f.messages[e.Handle][keyword]
	return func(yield func(source.Message, error) bool) {
		for i, m := range msgs {
			f.mu.Lock()
			failAt, fail := f.failAt[key]
			f.mu.Unlock()
			if fail && i == failAt {
				yield(source.Message{}, errors.New("flood wait"))
				return
			}
			f.mu.Lock()
			f.streamed[key]++
			f.mu.Unlock()
			if !yield(m, nil) {
				return
			}
		}
	}
}

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func video(id int64, ts, text string) source.Message {
	return source.Message{ID: id, Timestamp: at(ts), Text: text, HasVideo: true}
}
