package search

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/content"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/kind"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/query"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/relevance"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/result"
)

// KeywordPage is one page of keyword results with the true match count.
type KeywordPage struct {
	Results []result.Result
	Total   int
}

// KeywordRetriever ranks containment matches with the relevance scorer.
type KeywordRetriever struct {
	store ContentStore
}

// NewKeywordRetriever creates a keyword retriever.
func NewKeywordRetriever(store ContentStore) *KeywordRetriever {
	return &KeywordRetriever{store: store}
}

// Retrieve returns the requested page of keyword matches.
//
// A single-kind filter fetches that kind with the full page size and offset.
// The all filter fetches about a third of a page per kind from the start of
// each kind, sums the per-kind totals and truncates the scored mix to one page.
func (r *KeywordRetriever) Retrieve(ctx context.Context, q query.Query) (KeywordPage, error) {
	if q.Filter() != kind.All {
		k := kind.Kind(q.Filter())
		part, err := r.fetchKind(ctx, k, q, q.PageSize(), q.Offset())
		if err != nil {
			return KeywordPage{}, err
		}
		result.SortByScore(part.results)
		return KeywordPage{Results: part.results, Total: int(part.total)}, nil
	}

	kinds := q.Filter().Kinds()
	parts, err := r.fetchKinds(ctx, kinds, q, perKindLimit(q.PageSize(), len(kinds)))
	if err != nil {
		return KeywordPage{}, err
	}

	var (
		merged []result.Result
		total  int64
	)
	for _, p := range parts {
		merged = append(merged, p.results...)
		total += p.total
	}
	result.SortByScore(merged)
	if len(merged) > q.PageSize() {
		merged = merged[:q.PageSize()]
	}
	return KeywordPage{Results: merged, Total: int(total)}, nil
}

// Pool returns up to size keyword matches from the top of every kind in the
// filter, ranked, for blending with semantic hits.
func (r *KeywordRetriever) Pool(ctx context.Context, q query.Query, size int) ([]result.Result, error) {
	parts, err := r.fetchKinds(ctx, q.Filter().Kinds(), q, size)
	if err != nil {
		return nil, err
	}
	var merged []result.Result
	for _, p := range parts {
		merged = append(merged, p.results...)
	}
	result.SortByScore(merged)
	if len(merged) > size {
		merged = merged[:size]
	}
	return merged, nil
}

type kindPart struct {
	results []result.Result
	total   int64
}

// fetchKinds fetches every kind concurrently from offset 0. Parts keep the
// order of kinds so ties stay deterministic.
func (r *KeywordRetriever) fetchKinds(
	ctx context.Context, kinds []kind.Kind, q query.Query, limit int,
) ([]kindPart, error) {
	parts := make([]kindPart, len(kinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, k := range kinds {
		g.Go(func() error {
			p, err := r.fetchKind(gctx, k, q, limit, 0)
			if err != nil {
				return err
			}
			parts[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // wrapped in fetchKind
	}
	return parts, nil
}

func (r *KeywordRetriever) fetchKind(
	ctx context.Context, k kind.Kind, q query.Query, limit, offset int,
) (kindPart, error) {
	f := content.Filter{Text: q.Text(), LawIDs: q.LawIDs()}

	total, err := r.store.CountMatches(ctx, k, f)
	if err != nil {
		return kindPart{}, fmt.Errorf("count %s: %w", k, err)
	}
	if total == 0 || int64(offset) >= total {
		return kindPart{total: total}, nil
	}

	rows, err := r.store.FindMatches(ctx, k, f, limit, offset)
	if err != nil {
		return kindPart{}, fmt.Errorf("find %s: %w", k, err)
	}

	results := make([]result.Result, 0, len(rows))
	for i := range rows {
		results = append(results, scoreRow(&rows[i], q.Text()))
	}
	return kindPart{results: results, total: total}, nil
}

// scoreRow converts a content row into a lexically scored result.
func scoreRow(row *content.Row, text string) result.Result {
	body := row.MatchText()
	return result.New(
		row.Kind, row.ID, row.Title,
		relevance.Excerpt(body, text, relevance.DefaultExcerptLen),
		relevance.Score(row.Title, body, text),
		row.Law.Ref(),
	)
}

// perKindLimit splits a page across n kinds, rounding up so the page can fill.
func perKindLimit(pageSize, n int) int {
	if n <= 1 {
		return pageSize
	}
	limit := (pageSize + n - 1) / n
	if limit < 1 {
		limit = 1
	}
	return limit
}
