// Package relevance scores lexical matches and builds highlighted excerpts.
//
// Scores are normalized to [0, 1] so that keyword hits can be ranked against
// vector similarities in the same list. Title matches always outrank body-only
// matches: the body contribution is capped below the plain title weight.
package relevance

import (
	"strings"
	"unicode/utf8"
)

// Score weights.
const (
	TitleWeight       = 0.5
	TitlePrefixBonus  = 0.2
	BodyPerOccurrence = 0.1
	BodyCap           = 0.3
)

// Excerpt defaults.
const (
	DefaultExcerptLen = 150
	excerptRadius     = 50
	ellipsis          = "..."
	emphasis          = "**"
)

// Score rates how well title and body match query.
func Score(title, body, query string) float64 {
	q := strings.TrimSpace(query)
	if q == "" {
		return 0
	}

	var score float64
	t := strings.TrimSpace(title)
	if indexFold(t, q) >= 0 {
		score += TitleWeight
		if hasPrefixFold(t, q) {
			score += TitlePrefixBonus
		}
	}

	bodyScore := float64(countFold(body, q)) * BodyPerOccurrence
	if bodyScore > BodyCap {
		bodyScore = BodyCap
	}
	score += bodyScore

	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	}
	return score
}

// Excerpt returns a window of body around the first match of query with the
// match wrapped in emphasis markers. Without a match it returns the leading
// maxLen characters. maxLen below 1 selects DefaultExcerptLen.
func Excerpt(body, query string, maxLen int) string {
	if maxLen < 1 {
		maxLen = DefaultExcerptLen
	}
	text := strings.Join(strings.Fields(body), " ")
	q := strings.TrimSpace(query)

	idx := -1
	if q != "" {
		idx = indexFold(text, q)
	}
	if idx < 0 {
		return leading(text, maxLen)
	}

	runes := []rune(text)
	matchStart := utf8.RuneCountInString(text[:idx])
	matchLen := utf8.RuneCountInString(text[idx : idx+len(q)])
	matchEnd := matchStart + matchLen

	start := matchStart - excerptRadius
	if start < 0 {
		start = 0
	}
	end := matchEnd + excerptRadius
	if end > len(runes) {
		end = len(runes)
	}
	// Long queries would blow the window past maxLen; trim the tail first.
	if end-start > maxLen && matchEnd-start <= maxLen {
		end = start + maxLen
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString(ellipsis)
	}
	b.WriteString(string(runes[start:matchStart]))
	b.WriteString(emphasis)
	b.WriteString(string(runes[matchStart:matchEnd]))
	b.WriteString(emphasis)
	if matchEnd < end {
		b.WriteString(string(runes[matchEnd:end]))
	}
	if end < len(runes) {
		b.WriteString(ellipsis)
	}
	return b.String()
}

func leading(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	runes := []rune(text)
	return strings.TrimRight(string(runes[:maxLen]), " ") + ellipsis
}

// indexFold is a case-insensitive strings.Index over literal text.
func indexFold(s, sub string) int {
	if sub == "" {
		return 0
	}
	for i := range s {
		if len(s)-i < len(sub) {
			break
		}
		if strings.EqualFold(s[i:i+len(sub)], sub) {
			return i
		}
	}
	return -1
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// countFold counts non-overlapping case-insensitive occurrences of sub in s.
func countFold(s, sub string) int {
	if sub == "" {
		return 0
	}
	n := 0
	for {
		i := indexFold(s, sub)
		if i < 0 {
			return n
		}
		n++
		s = s[i+len(sub):]
	}
}
