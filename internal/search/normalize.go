package search

import (
	"regexp"
	"strings"
)

// channelRE accepts a bare handle, @handle, or a t.me link with an optional
// /s/ preview segment.
var channelRE = regexp.MustCompile(`(?i)(?:https?://t\.me/(?:s/)?|@)?([A-Za-z0-9_]{4,})`)

// NormalizeChannels extracts channel handles from raw entries. Entries without
// a handle are dropped. Telegram usernames are case-insensitive, so duplicates
// are detected ignoring case and the first spelling wins.
func NormalizeChannels(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		s := strings.TrimSpace(r)
		if s == "" {
			continue
		}
		m := channelRE.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		key := strings.ToLower(m[1])
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, m[1])
	}
	return out
}

// NormalizeKeywords trims entries, drops empties and removes exact duplicates
// keeping first-seen order.
func NormalizeKeywords(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		s := strings.TrimSpace(r)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// SplitList splits free-form text on commas and newlines.
func SplitList(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})
}
