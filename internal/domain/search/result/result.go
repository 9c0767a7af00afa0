package result

import (
	"sort"

	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/kind"
)

// LawRef points a result at the statute it belongs to.
type LawRef struct {
	Slug       string
	ShortTitle string
}

// Result is a single search hit of any kind.
type Result struct {
	kind      kind.Kind
	id        string
	title     string
	excerpt   string
	score     float64
	parentLaw *LawRef
}

// New creates a search result. The score is clamped to [0, 1].
// parentLaw is dropped for scenarios, which never belong to a single law.
func New(k kind.Kind, id, title, excerpt string, score float64, parentLaw *LawRef) Result {
	if k == kind.Scenario {
		parentLaw = nil
	}
	return Result{
		kind: k, id: id, title: title, excerpt: excerpt,
		score: clamp(score), parentLaw: parentLaw,
	}
}

// Kind returns the entity kind.
func (r Result) Kind() kind.Kind { return r.kind }

// ID returns the entity identifier.
func (r Result) ID() string { return r.id }

// Title returns the display title.
func (r Result) Title() string { return r.title }

// Excerpt returns the highlighted snippet.
func (r Result) Excerpt() string { return r.excerpt }

// Score returns the relevance score in [0, 1].
func (r Result) Score() float64 { return r.score }

// ParentLaw returns the owning law, or nil for scenarios.
func (r Result) ParentLaw() *LawRef { return r.parentLaw }

// Key identifies the entity across retrievers.
func (r Result) Key() string { return string(r.kind) + ":" + r.id }

// WithScore returns a copy carrying a new clamped score.
func (r Result) WithScore(score float64) Result {
	r.score = clamp(score)
	return r
}

// SortByScore orders results by score descending. Ties keep their input order.
func SortByScore(rs []Result) {
	sort.SliceStable(rs, func(i, j int) bool {
		return rs[i].score > rs[j].score
	})
}

// OfKinds keeps only results whose kind passes f.
func OfKinds(rs []Result, f kind.Filter) []Result {
	out := make([]Result, 0, len(rs))
	for _, r := range rs {
		if f.Includes(r.kind) {
			out = append(out, r)
		}
	}
	return out
}

func clamp(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
