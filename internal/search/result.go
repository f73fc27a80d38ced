package search

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ahmethakanbesel/tgsearch-api/internal/source"
)

// Candidate is a message that passed the filter.
type Candidate struct {
	Timestamp   time.Time
	Channel     string
	Keyword     string
	Link        string
	Text        string
	Fingerprint string
	seq         uint64
}

func newCandidate(channel, keyword string, m source.Message) Candidate {
	link := MessageLink(channel, m.ID)
	return Candidate{
		Timestamp:   asUTC(m.Timestamp),
		Channel:     channel,
		Keyword:     keyword,
		Link:        link,
		Text:        m.Text,
		Fingerprint: Fingerprint(m.MediaID, link),
	}
}

// MessageLink is the public URL of a channel post.
func MessageLink(channel string, id int64) string {
	return fmt.Sprintf("https://t.me/%s/%d", channel, id)
}

// Fingerprint identifies the underlying post: the media object when there is
// one, so reposts of the same upload collapse, else the link.
func Fingerprint(mediaID, link string) string {
	if mediaID != "" {
		return "media:" + mediaID
	}
	return "link:" + link
}

// Row is one output line. It encodes as a [link, text] pair.
type Row struct {
	Link string
	Text string
}

func (r Row) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{r.Link, r.Text})
}

func (r *Row) UnmarshalJSON(b []byte) error {
	var pair [2]string
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	r.Link, r.Text = pair[0], pair[1]
	return nil
}

type Result struct {
	Links []string `json:"links"`
	Rows  []Row    `json:"rows"`
	Stats Stats    `json:"stats"`
}

// Empty reports whether the search found nothing. Empty runs do not count
// against the daily quota.
func (r *Result) Empty() bool {
	return r == nil || len(r.Rows) == 0
}

type Stats struct {
	ChannelsSearched int  `json:"channelsSearched"`
	ChannelsSkipped  int  `json:"channelsSkipped"`
	Candidates       int  `json:"candidates"`
	ExactDuplicates  int  `json:"exactDuplicates"`
	FuzzyDuplicates  int  `json:"fuzzyDuplicates"`
	FuzzySkipped     bool `json:"fuzzySkipped"`
}
