package query

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/catuchi/LawMadeSimple-sub001/internal/domain"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/kind"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/mode"
)

// Search parameter limits.
const (
	// MaxTextLength is the maximum allowed query length in characters.
	MaxTextLength   = 500
	DefaultPageSize = 10
	MaxPageSize     = 50
)

// Limits holds the deployment's page size policy.
type Limits struct {
	DefaultPageSize int
	MaxPageSize     int
}

// DefaultLimits returns the built-in page size policy.
func DefaultLimits() Limits {
	return Limits{DefaultPageSize: DefaultPageSize, MaxPageSize: MaxPageSize}
}

// Params are raw, unvalidated search parameters as received from a caller.
// Zero page and page size mean "not provided".
type Params struct {
	Text     string
	Filter   kind.Filter
	Strategy mode.Strategy
	LawIDs   []string
	Page     int
	PageSize int
}

// Query is a validated search request.
type Query struct {
	text     string
	filter   kind.Filter
	strategy mode.Strategy
	lawIDs   []string
	page     int
	pageSize int
}

// New validates and normalizes search parameters.
// Defaults: filter=all, strategy=hybrid, page=1, pageSize=limits.DefaultPageSize.
func New(p Params, limits Limits) (Query, error) {
	if limits.MaxPageSize <= 0 {
		limits = DefaultLimits()
	}

	text := strings.TrimSpace(p.Text)
	if text == "" {
		return Query{}, domain.NewValidationError("q", "must not be empty")
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return Query{}, domain.NewValidationError("q", "too long")
	}

	f := p.Filter
	if f == "" {
		f = kind.All
	}
	if !f.IsValid() {
		return Query{}, domain.NewValidationError("type", "must be one of all, law, section, scenario")
	}

	s := p.Strategy
	if s == "" {
		s = mode.Hybrid
	}
	if !s.IsValid() {
		return Query{}, domain.NewValidationError("mode", "must be one of hybrid, semantic, keyword")
	}

	page := p.Page
	switch {
	case page == 0:
		page = 1
	case page < 0:
		return Query{}, domain.NewValidationError("page", "must be at least 1")
	}

	size := p.PageSize
	switch {
	case size == 0:
		size = limits.DefaultPageSize
		if size <= 0 || size > limits.MaxPageSize {
			size = limits.MaxPageSize
		}
	case size < 0:
		return Query{}, domain.NewValidationError("limit", "must be at least 1")
	case size > limits.MaxPageSize:
		return Query{}, domain.NewValidationError("limit", "exceeds maximum page size")
	}

	// The offset must fit in an int.
	if page-1 > math.MaxInt/size {
		return Query{}, domain.NewValidationError("page", "too large")
	}

	return Query{
		text:     text,
		filter:   f,
		strategy: s,
		lawIDs:   cleanLawIDs(p.LawIDs),
		page:     page,
		pageSize: size,
	}, nil
}

// Text returns the trimmed query text.
func (q Query) Text() string { return q.text }

// Filter returns the entity kind filter.
func (q Query) Filter() kind.Filter { return q.filter }

// Strategy returns the requested retrieval strategy.
func (q Query) Strategy() mode.Strategy { return q.strategy }

// LawIDs returns the law identifier filter. Empty means unfiltered.
func (q Query) LawIDs() []string { return q.lawIDs }

// Page returns the 1-based page number.
func (q Query) Page() int { return q.page }

// PageSize returns the number of results per page.
func (q Query) PageSize() int { return q.pageSize }

// Offset returns the number of results skipped before this page.
func (q Query) Offset() int { return (q.page - 1) * q.pageSize }

// WithFilter returns a copy of q narrowed or widened to f.
func (q Query) WithFilter(f kind.Filter) Query {
	q.filter = f
	return q
}

// WithPage returns a copy of q positioned at page with the given size.
func (q Query) WithPage(page, size int) Query {
	q.page = page
	q.pageSize = size
	return q
}

// ParseLawIDs splits a comma-separated list, dropping empty segments.
func ParseLawIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	return cleanLawIDs(strings.Split(raw, ","))
}

func cleanLawIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
