// Package content describes rows read from the content store, before scoring.
package content

import (
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/kind"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/result"
)

// Law is the statute a row belongs to (or the statute itself for law rows).
type Law struct {
	ID          string
	Slug        string
	Title       string
	ShortTitle  string
	Description string
	Active      bool
}

// Ref returns the public parent-law reference.
func (l *Law) Ref() *result.LawRef {
	if l == nil {
		return nil
	}
	return &result.LawRef{Slug: l.Slug, ShortTitle: l.ShortTitle}
}

// Row is one content record in kind-neutral form.
type Row struct {
	Kind  kind.Kind
	ID    string
	Title string
	// Body is the text scored for containment and used for the excerpt.
	Body string
	// Extra is secondary matchable text: a section summary, scenario
	// keywords or a law's short title.
	Extra string
	// Law is the parent statute for sections, the statute itself for laws,
	// and nil for scenarios.
	Law *Law
}

// MatchText is the text a keyword match can land in besides the title.
func (r *Row) MatchText() string {
	if r.Extra == "" {
		return r.Body
	}
	if r.Body == "" {
		return r.Extra
	}
	return r.Body + " " + r.Extra
}

// Hit is a row ranked by vector similarity in [0,1].
type Hit struct {
	Row        Row
	Similarity float64
}

// Filter narrows keyword containment queries.
type Filter struct {
	Text   string
	LawIDs []string
}

// VectorFilter narrows nearest-neighbour queries.
type VectorFilter struct {
	LawIDs        []string
	Limit         int
	MinSimilarity float64
}

// SimilarityFromCosineDistance maps a cosine distance in [0,2] onto [0,1].
func SimilarityFromCosineDistance(d float64) float64 {
	s := 1 - d/2
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}

// MaxCosineDistance is the distance bound matching a minimum similarity.
func MaxCosineDistance(minSimilarity float64) float64 {
	return 2 * (1 - minSimilarity)
}
