package searchlog

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/catuchi/LawMadeSimple-sub001/internal/domain"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/kind"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/mode"
)

// MaxQueryLength caps the stored query text, in characters.
const MaxQueryLength = 200

// Entry is one completed search, written once and never read back here.
type Entry struct {
	Identity    domain.Identity
	QueryText   string
	ResultCount int
	Filter      kind.Filter
	LawIDs      []string
	Mode        mode.Served
}

// NewEntry builds an entry with a sanitized copy of the query text.
func NewEntry(
	id domain.Identity, text string, resultCount int,
	f kind.Filter, lawIDs []string, served mode.Served,
) Entry {
	return Entry{
		Identity:    id,
		QueryText:   Sanitize(text),
		ResultCount: resultCount,
		Filter:      f,
		LawIDs:      lawIDs,
		Mode:        served,
	}
}

// Sanitize strips control characters and truncates to MaxQueryLength characters.
func Sanitize(text string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == utf8.RuneError || unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
	cleaned = strings.TrimSpace(cleaned)

	if utf8.RuneCountInString(cleaned) <= MaxQueryLength {
		return cleaned
	}
	runes := []rune(cleaned)
	return string(runes[:MaxQueryLength])
}
