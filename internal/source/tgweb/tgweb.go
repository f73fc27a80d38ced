// Package tgweb implements source.Client over Telegram's public web preview
// (https://t.me/s/<channel>). The preview supports in-channel search through
// the q parameter and paginates backwards through the before parameter, which
// is all the search core needs. Private channels are not visible there and
// resolve as source.ErrNotFound.
package tgweb

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/ahmethakanbesel/tgsearch-api/internal/source"
)

const (
	defaultBaseURL = "https://t.me"
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	maxPageBytes   = 4 << 20
	maxPages       = 200
)

// Client fetches and parses web preview pages.
type Client struct {
	client    *http.Client
	baseURL   string
	userAgent string
	throttle  time.Duration
}

// New creates a Client with the given options applied.
func New(opts ...Option) *Client {
	c := &Client{
		client:    &http.Client{Timeout: 30 * time.Second},
		baseURL:   defaultBaseURL,
		userAgent: userAgent,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Option configures a Client.
type Option func(*Client)

// WithClient sets the HTTP client.
func WithClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithBaseURL overrides https://t.me, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithUserAgent overrides the browser user agent sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithThrottle sets the pause before each search page request, so a
// keyword query never hits the preview host back to back.
func WithThrottle(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.throttle = d
		}
	}
}

// Open checks that the preview host answers and returns a session bound to it.
func (c *Client) Open(ctx context.Context) (source.Session, error) {
	res, err := c.get(ctx, c.baseURL+"/")
	if err != nil {
		return nil, fmt.Errorf("tgweb: open: %w", err)
	}
	_ = res.Body.Close()
	if res.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("tgweb: open: unexpected status %d", res.StatusCode)
	}
	return &session{c: c}, nil
}

type session struct {
	c *Client
}

func (s *session) Close() error { return nil }

// Resolve loads the channel's preview page. Channels without a preview (users,
// groups, private or missing channels) are redirected away from /s/ by
// Telegram and end up without a channel info block.
func (s *session) Resolve(ctx context.Context, channel string) (source.Entity, error) {
	doc, status, err := s.c.page(ctx, s.c.channelURL(channel, nil))
	if err != nil {
		return source.Entity{}, err
	}
	if status == http.StatusNotFound {
		return source.Entity{}, source.ErrNotFound
	}
	if status != http.StatusOK {
		return source.Entity{}, fmt.Errorf("tgweb: resolve %s: unexpected status %d", channel, status)
	}
	info := findFirst(doc, func(n *html.Node) bool { return hasClass(n, "tgme_channel_info") })
	if info == nil {
		return source.Entity{}, source.ErrNotFound
	}
	title := ""
	if t := findFirst(info, func(n *html.Node) bool { return hasClass(n, "tgme_channel_info_header_title") }); t != nil {
		title = strings.TrimSpace(textOf(t))
	}
	return source.Entity{Handle: channel, Title: title}, nil
}

// Search pages backwards through the channel's search results. Each preview
// page lists posts oldest-first, so pages are reversed before yielding.
func (s *session) Search(ctx context.Context, e source.Entity, keyword string, before time.Time) source.Stream {
	return func(yield func(source.Message, error) bool) {
		var cursor int64
		for range maxPages {
			q := url.Values{"q": {keyword}}
			if cursor > 0 {
				q.Set("before", strconv.FormatInt(cursor, 10))
			}
			if err := pause(ctx, s.c.throttle); err != nil {
				yield(source.Message{}, err)
				return
			}
			doc, status, err := s.c.page(ctx, s.c.channelURL(e.Handle, q))
			if err != nil {
				yield(source.Message{}, err)
				return
			}
			if status != http.StatusOK {
				yield(source.Message{}, fmt.Errorf("tgweb: search %s: unexpected status %d", e.Handle, status))
				return
			}

			msgs := parseMessages(doc, e.Handle)
			if len(msgs) == 0 {
				return
			}
			slices.Reverse(msgs)

			for _, m := range msgs {
				if !before.IsZero() && !m.Timestamp.IsZero() && !m.Timestamp.Before(before) {
					continue
				}
				if !yield(m, nil) {
					return
				}
			}

			oldest := msgs[len(msgs)-1].ID
			if oldest <= 1 || (cursor > 0 && oldest >= cursor) {
				return
			}
			cursor = oldest
		}
		slog.Warn("tgweb: page limit reached", "channel", e.Handle, "keyword", keyword)
	}
}

// pause waits d or until ctx ends.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Client) channelURL(channel string, q url.Values) string {
	u := c.baseURL + "/s/" + url.PathEscape(channel)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *Client) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	return c.client.Do(req) //nolint:gosec // URL from internal config
}

func (c *Client) page(ctx context.Context, u string) (*html.Node, int, error) {
	res, err := c.get(ctx, u)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return nil, res.StatusCode, nil
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, maxPageBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("read body: %w", err)
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("parse html: %w", err)
	}
	return doc, res.StatusCode, nil
}

// parseMessages extracts every post on a preview page in document order.
func parseMessages(doc *html.Node, channel string) []source.Message {
	var out []source.Message
	for _, n := range findAll(doc, func(n *html.Node) bool {
		return hasClass(n, "tgme_widget_message") && attr(n, "data-post") != ""
	}) {
		m, ok := parseMessage(n, channel)
		if ok {
			out = append(out, m)
		}
	}
	return out
}

func parseMessage(n *html.Node, channel string) (source.Message, bool) {
	post := attr(n, "data-post")
	slash := strings.LastIndexByte(post, '/')
	if slash < 0 {
		return source.Message{}, false
	}
	if !strings.EqualFold(post[:slash], channel) {
		return source.Message{}, false
	}
	id, err := strconv.ParseInt(post[slash+1:], 10, 64)
	if err != nil {
		return source.Message{}, false
	}

	m := source.Message{ID: id}

	if t := findFirst(n, func(c *html.Node) bool { return c.Type == html.ElementNode && c.Data == "time" }); t != nil {
		if ts, err := time.Parse(time.RFC3339, attr(t, "datetime")); err == nil {
			m.Timestamp = ts.UTC()
		}
	}

	if body := findFirst(n, func(c *html.Node) bool { return hasClass(c, "tgme_widget_message_text") }); body != nil {
		m.Text = strings.TrimSpace(textOf(body))
	}

	if v := findFirst(n, func(c *html.Node) bool {
		return hasClass(c, "tgme_widget_message_video_player") || (c.Type == html.ElementNode && c.Data == "video")
	}); v != nil {
		m.HasVideo = true
		if src := findFirst(v, func(c *html.Node) bool { return c.Type == html.ElementNode && c.Data == "video" }); src != nil {
			m.MediaID = mediaID(attr(src, "src"))
		} else if v.Data == "video" {
			m.MediaID = mediaID(attr(v, "src"))
		}
	}

	if d := findFirst(n, func(c *html.Node) bool { return hasClass(c, "tgme_widget_message_document_title") }); d != nil {
		name := strings.TrimSpace(textOf(d))
		m.DocumentMimeType = mimeType(name)
	}

	return m, true
}

var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
}

// mimeType guesses a document's media type from its file name. The preview
// page only shows the name, not the declared type.
func mimeType(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return ""
	}
	if mt, ok := videoTypes[ext]; ok {
		return mt
	}
	mt := mime.TypeByExtension(ext)
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return mt
}

// mediaID derives a stable id from a CDN file URL such as
// https://cdn4.telesco.pe/file/<hash>.mp4. Forwarded copies of one upload share it.
func mediaID(src string) string {
	if src == "" {
		return ""
	}
	u, err := url.Parse(src)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if match(c) {
			return c
		}
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if match(c) {
				out = append(out, c)
				continue
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

// textOf concatenates text under n, turning <br> into newlines.
func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			sb.WriteString(n.Data)
		case n.Type == html.ElementNode && n.Data == "br":
			sb.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
