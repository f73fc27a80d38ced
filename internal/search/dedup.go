package search

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Deduper collapses rows whose text is identical or nearly identical after
// normalization. It is independent of fingerprint identity: it catches the
// same text reposted under different links.
type Deduper struct {
	// Ceiling disables the fuzzy pass when more rows than this survive the
	// exact pass. Zero means no ceiling.
	Ceiling int
	// Threshold is the minimum similarity in [0,1] for two texts to be
	// considered duplicates.
	Threshold float64
	// PrefixLen is the number of leading runes used to bucket candidates.
	// Only rows in the same bucket are compared.
	PrefixLen int
	// Similarity returns a ratio in [0,1]. Defaults to SimilarityRatio.
	Similarity func(a, b string) float64
}

// DedupStats describes what a Dedup call removed.
type DedupStats struct {
	Exact        int
	Fuzzy        int
	FuzzySkipped bool
}

// Dedup returns rows without duplicates, in input order.
func (d Deduper) Dedup(rows []Row) ([]Row, DedupStats) {
	var stats DedupStats

	norms := make([]string, 0, len(rows))
	exact := make([]Row, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		n := NormalizeText(r.Text)
		if n != "" {
			if _, ok := seen[n]; ok {
				stats.Exact++
				continue
			}
			seen[n] = struct{}{}
		}
		exact = append(exact, r)
		norms = append(norms, n)
	}

	if d.Ceiling > 0 && len(exact) > d.Ceiling {
		stats.FuzzySkipped = true
		return exact, stats
	}
	if d.Threshold <= 0 || d.Threshold > 1 {
		return exact, stats
	}

	similarity := d.Similarity
	if similarity == nil {
		similarity = SimilarityRatio
	}
	prefixLen := d.PrefixLen
	if prefixLen <= 0 {
		prefixLen = 24
	}
	maxLenDiff := 1 - d.Threshold

	out := make([]Row, 0, len(exact))
	buckets := make(map[string][]string)
	for i, r := range exact {
		n := norms[i]
		if n == "" {
			out = append(out, r)
			continue
		}
		key := prefix(n, prefixLen)
		dup := false
		nLen := utf8.RuneCountInString(n)
		for _, prev := range buckets[key] {
			if lengthDiff(nLen, utf8.RuneCountInString(prev)) > maxLenDiff {
				continue
			}
			if similarity(n, prev) >= d.Threshold {
				dup = true
				break
			}
		}
		if dup {
			stats.Fuzzy++
			continue
		}
		buckets[key] = append(buckets[key], n)
		out = append(out, r)
	}
	return out, stats
}

// NormalizeText lowercases s, collapses whitespace runs and trims.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// SimilarityRatio is 1 - editDistance/maxLen over runes.
func SimilarityRatio(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

func lengthDiff(a, b int) float64 {
	longest := max(a, b)
	if longest == 0 {
		return 0
	}
	return 1 - float64(min(a, b))/float64(longest)
}

func prefix(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
