package tgweb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ahmethakanbesel/tgsearch-api/internal/search"
	"github.com/ahmethakanbesel/tgsearch-api/internal/source"
)

const channelHeader = `<div class="tgme_channel_info"><div class="tgme_channel_info_header_title"><span dir="auto">Alpha News</span></div></div>`

func post(channel string, id int, ts, text, media string) string {
	return fmt.Sprintf(`<div class="tgme_widget_message_wrap js-widget_message_wrap">
<div class="tgme_widget_message text_not_supported_wrap js-widget_message" data-post="%s/%d">
%s
<div class="tgme_widget_message_text js-message_text" dir="auto">%s</div>
<div class="tgme_widget_message_footer"><a class="tgme_widget_message_date" href="https://t.me/%s/%d"><time datetime="%s" class="time">10:00</time></a></div>
</div></div>`, channel, id, media, text, channel, id, ts)
}

func videoMedia(file string) string {
	return `<a class="tgme_widget_message_video_player js-message_video_player" href="#"><video src="https://cdn4.telesco.pe/file/` + file + `.mp4" class="tgme_widget_message_video"></video></a>`
}

func docMedia(name string) string {
	return `<a class="tgme_widget_message_document_wrap" href="#"><div class="tgme_widget_message_document"><div class="tgme_widget_message_document_title">` + name + `</div></div></a>`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html></html>"))
	})
	mux.HandleFunc("GET /s/alpha", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var body strings.Builder
		body.WriteString("<html><body>" + channelHeader)
		switch {
		case q.Get("q") == "":
		case q.Get("before") == "":
			// newest page, oldest-first in document order
			body.WriteString(post("alpha", 10, "2024-01-02T08:00:00+00:00", "ten<br/>lines", videoMedia("abc123")))
			body.WriteString(post("alpha", 12, "2024-01-03T08:00:00+00:00", "twelve", ""))
		case q.Get("before") == "10":
			body.WriteString(post("alpha", 3, "2023-12-30T08:00:00+00:00", "three", docMedia("clip.MP4")))
		}
		body.WriteString("</body></html>")
		_, _ = w.Write([]byte(body.String()))
	})
	mux.HandleFunc("GET /s/ghost", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div class="tgme_page">user page</div></body></html>`))
	})
	mux.HandleFunc("GET /s/gone", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func openSession(t *testing.T, ts *httptest.Server) source.Session {
	t.Helper()
	c := New(WithClient(ts.Client()), WithBaseURL(ts.URL))
	sess, err := c.Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

func TestResolve(t *testing.T) {
	sess := openSession(t, newTestServer(t))

	e, err := sess.Resolve(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if e.Title != "Alpha News" {
		t.Errorf("title = %q, want Alpha News", e.Title)
	}

	for _, ch := range []string{"ghost", "gone"} {
		if _, err := sess.Resolve(context.Background(), ch); !errors.Is(err, source.ErrNotFound) {
			t.Errorf("resolve %s: err = %v, want ErrNotFound", ch, err)
		}
	}
}

func TestSearch_NewestFirstAcrossPages(t *testing.T) {
	sess := openSession(t, newTestServer(t))
	ctx := context.Background()

	e, err := sess.Resolve(ctx, "alpha")
	if err != nil {
		t.Fatal(err)
	}

	var got []source.Message
	for m, err := range sess.Search(ctx, e, "x", time.Time{}) {
		if err != nil {
			t.Fatalf("stream: %v", err)
		}
		got = append(got, m)
	}

	wantIDs := []int64{12, 10, 3}
	if len(got) != len(wantIDs) {
		t.Fatalf("got %d messages, want %d", len(got), len(wantIDs))
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("message %d: id = %d, want %d", i, got[i].ID, id)
		}
	}

	ten := got[1]
	if !ten.HasVideo || ten.MediaID != "abc123" {
		t.Errorf("video = %v media = %q, want true abc123", ten.HasVideo, ten.MediaID)
	}
	if ten.Text != "ten\nlines" {
		t.Errorf("text = %q", ten.Text)
	}
	if !ten.Timestamp.Equal(time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("timestamp = %v", ten.Timestamp)
	}

	three := got[2]
	if three.DocumentMimeType != "video/mp4" || !three.IsVideo() {
		t.Errorf("document mime = %q, want video/mp4", three.DocumentMimeType)
	}
	if got[0].IsVideo() {
		t.Error("text-only post reported as video")
	}
}

func TestSearch_BeforeSkipsNewer(t *testing.T) {
	sess := openSession(t, newTestServer(t))
	ctx := context.Background()

	before := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	var ids []int64
	for m, err := range sess.Search(ctx, source.Entity{Handle: "alpha"}, "x", before) {
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, m.ID)
	}
	if len(ids) != 2 || ids[0] != 10 || ids[1] != 3 {
		t.Errorf("ids = %v, want [10 3]", ids)
	}
}

func TestSearch_StopsWhenConsumerBreaks(t *testing.T) {
	var pages atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		pages.Add(1)
		_, _ = w.Write([]byte(post("alpha", 50, "2024-01-01T00:00:00Z", "x", "")))
	}))
	defer ts.Close()

	c := New(WithClient(ts.Client()), WithBaseURL(ts.URL))
	sess, err := c.Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	pages.Store(0)
	for range sess.Search(context.Background(), source.Entity{Handle: "alpha"}, "x", time.Time{}) {
		break
	}
	if n := pages.Load(); n != 1 {
		t.Errorf("fetched %d pages, want 1", n)
	}
}

func TestOpen_ServerDown(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	c := New(WithClient(ts.Client()), WithBaseURL(ts.URL))
	if _, err := c.Open(context.Background()); err == nil {
		t.Fatal("expected open error")
	}
}

func TestMediaID(t *testing.T) {
	tests := []struct {
		src, want string
	}{
		{"https://cdn4.telesco.pe/file/abc.mp4", "abc"},
		{"https://cdn4.telesco.pe/file/abc.mp4?token=1", "abc"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := mediaID(tt.src); got != tt.want {
			t.Errorf("mediaID(%q) = %q, want %q", tt.src, got, tt.want)
		}
	}
}

// pagedHost serves four search pages of text-only posts, five per page, and
// records when each search page was requested.
type pagedHost struct {
	mu    sync.Mutex
	times []time.Time
}

func (h *pagedHost) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var b strings.Builder
	b.WriteString("<html><body>" + channelHeader)
	if q.Get("q") != "" {
		h.mu.Lock()
		h.times = append(h.times, time.Now())
		h.mu.Unlock()

		newest := 20
		if v := q.Get("before"); v != "" {
			n, _ := strconv.Atoi(v)
			newest = n - 1
		}
		for id := newest - 4; id <= newest && id >= 1; id++ {
			b.WriteString(post("alpha", id, "2024-01-01T12:00:00+00:00", "text only", ""))
		}
	}
	b.WriteString("</body></html>")
	_, _ = w.Write([]byte(b.String()))
}

func (h *pagedHost) gaps() []time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []time.Duration
	for i := 1; i < len(h.times); i++ {
		out = append(out, h.times[i].Sub(h.times[i-1]))
	}
	return out
}

func TestSearch_ThrottlesPageFetches(t *testing.T) {
	host := &pagedHost{}
	ts := httptest.NewServer(host)
	defer ts.Close()

	const throttle = 30 * time.Millisecond
	c := New(WithClient(ts.Client()), WithBaseURL(ts.URL), WithThrottle(throttle))
	s := search.NewSearcher(c)

	req := search.Request{
		Channels:      []string{"alpha"},
		Keywords:      []string{"x"},
		StartDate:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ContentFilter: search.ContentVideo,
	}.Normalize()

	res, err := s.Search(context.Background(), req, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 0 {
		t.Errorf("rows = %d, want none for text-only posts", len(res.Rows))
	}

	gaps := host.gaps()
	if len(gaps) != 3 {
		t.Fatalf("fetched %d pages, want 4", len(gaps)+1)
	}
	for i, g := range gaps {
		if g < throttle {
			t.Errorf("gap %d = %v, want at least %v", i, g, throttle)
		}
	}
}

func TestSearch_ThrottleStopsOnCancel(t *testing.T) {
	host := &pagedHost{}
	ts := httptest.NewServer(host)
	defer ts.Close()

	c := New(WithClient(ts.Client()), WithBaseURL(ts.URL), WithThrottle(time.Hour))
	sess, err := c.Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var gotErr error
	for _, err := range sess.Search(ctx, source.Entity{Handle: "alpha"}, "x", time.Time{}) {
		gotErr = err
	}
	if !errors.Is(gotErr, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", gotErr)
	}
	host.mu.Lock()
	defer host.mu.Unlock()
	if len(host.times) != 0 {
		t.Errorf("fetched %d pages while waiting", len(host.times))
	}
}
