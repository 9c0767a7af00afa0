package search

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/query"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/result"
)

// Default fusion weights. They sum to 1 so fused scores stay in [0, 1].
const (
	DefaultSemanticWeight = 0.7
	DefaultKeywordWeight  = 0.3
)

type semanticSource interface {
	Retrieve(ctx context.Context, q query.Query) ([]result.Result, error)
}

type keywordSource interface {
	Pool(ctx context.Context, q query.Query, size int) ([]result.Result, error)
}

// HybridMerger blends a semantic pool with a keyword pool for the same query.
type HybridMerger struct {
	semantic       semanticSource
	keyword        keywordSource
	semanticWeight float64
	keywordWeight  float64
	poolSize       int
}

// NewHybridMerger creates a merger. Weights are normalized to sum to 1;
// non-positive weights fall back to the defaults.
func NewHybridMerger(semantic semanticSource, keyword keywordSource, semanticWeight, keywordWeight float64, poolSize int) *HybridMerger {
	if semanticWeight < 0 || keywordWeight < 0 || semanticWeight+keywordWeight <= 0 {
		semanticWeight, keywordWeight = DefaultSemanticWeight, DefaultKeywordWeight
	}
	sum := semanticWeight + keywordWeight
	return &HybridMerger{
		semantic:       semantic,
		keyword:        keyword,
		semanticWeight: semanticWeight / sum,
		keywordWeight:  keywordWeight / sum,
		poolSize:       poolSize,
	}
}

// Retrieve runs both passes concurrently and fuses them. A failure in either
// pass is returned; fallback is the caller's decision.
func (m *HybridMerger) Retrieve(ctx context.Context, q query.Query) ([]result.Result, error) {
	var semantic, keyword []result.Result

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rs, err := m.semantic.Retrieve(gctx, q)
		if err != nil {
			return fmt.Errorf("semantic pass: %w", err)
		}
		semantic = rs
		return nil
	})
	g.Go(func() error {
		rs, err := m.keyword.Pool(gctx, q, m.poolSize)
		if err != nil {
			return fmt.Errorf("keyword pass: %w", err)
		}
		keyword = rs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // wrapped above
	}

	return fuseWeighted(semantic, keyword, m.semanticWeight, m.keywordWeight, m.poolSize), nil
}

// fuseWeighted merges two scored lists on (kind, id).
// score(d) = ws*semantic(d) + wk*keyword(d); a missing side contributes 0.
// When a result appears in both lists the semantic copy is kept. Ties keep
// semantic order first, then keyword-only results in keyword order.
func fuseWeighted(semantic, keyword []result.Result, ws, wk float64, limit int) []result.Result {
	type fused struct {
		res   result.Result
		score float64
	}

	order := make([]string, 0, len(semantic)+len(keyword))
	merged := make(map[string]*fused, len(semantic)+len(keyword))

	for _, r := range semantic {
		key := r.Key()
		if _, dup := merged[key]; dup {
			continue
		}
		merged[key] = &fused{res: r, score: ws * r.Score()}
		order = append(order, key)
	}

	for _, r := range keyword {
		key := r.Key()
		if existing, ok := merged[key]; ok {
			existing.score += wk * r.Score()
			continue
		}
		merged[key] = &fused{res: r, score: wk * r.Score()}
		order = append(order, key)
	}

	results := make([]result.Result, 0, len(order))
	for _, key := range order {
		f := merged[key]
		results = append(results, f.res.WithScore(f.score))
	}
	result.SortByScore(results)

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
