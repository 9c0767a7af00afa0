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

// SemanticRetriever ranks embedded sections and scenarios by similarity to the
// query vector. Laws carry no embeddings of their own: each active law scores
// as its best-matching section.
type SemanticRetriever struct {
	embed         Embedder
	store         VectorStore
	poolSize      int
	minSimilarity float64
}

// NewSemanticRetriever creates a semantic retriever returning at most poolSize results.
func NewSemanticRetriever(embed Embedder, store VectorStore, poolSize int, minSimilarity float64) *SemanticRetriever {
	return &SemanticRetriever{
		embed:         embed,
		store:         store,
		poolSize:      poolSize,
		minSimilarity: minSimilarity,
	}
}

// Retrieve returns the ranked candidate pool. Any failure, from the embedding
// provider or the store, is returned as an error and no partial pool is kept.
func (r *SemanticRetriever) Retrieve(ctx context.Context, q query.Query) ([]result.Result, error) {
	emb, err := r.embed.Embed(ctx, q.Text())
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	f := q.Filter()
	vf := content.VectorFilter{
		LawIDs:        q.LawIDs(),
		Limit:         r.poolSize,
		MinSimilarity: r.minSimilarity,
	}

	var sections, scenarios []content.Hit
	g, gctx := errgroup.WithContext(ctx)
	if f.Includes(kind.Section) || f.Includes(kind.Law) {
		g.Go(func() error {
			hits, err := r.store.NearestSections(gctx, emb.Embedding, vf)
			if err != nil {
				return fmt.Errorf("nearest sections: %w", err)
			}
			sections = hits
			return nil
		})
	}
	if f.Includes(kind.Scenario) {
		g.Go(func() error {
			hits, err := r.store.NearestScenarios(gctx, emb.Embedding, vf)
			if err != nil {
				return fmt.Errorf("nearest scenarios: %w", err)
			}
			scenarios = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // wrapped above
	}

	pool := make([]result.Result, 0, len(sections)+len(scenarios))
	if f.Includes(kind.Section) {
		for i := range sections {
			pool = append(pool, similarityResult(&sections[i].Row, sections[i].Similarity, q.Text()))
		}
	}
	for i := range scenarios {
		pool = append(pool, similarityResult(&scenarios[i].Row, scenarios[i].Similarity, q.Text()))
	}
	if f.Includes(kind.Law) {
		pool = append(pool, lawsFromSections(sections, q.Text())...)
	}

	result.SortByScore(pool)
	if len(pool) > r.poolSize {
		pool = pool[:r.poolSize]
	}
	return pool, nil
}

func similarityResult(row *content.Row, similarity float64, text string) result.Result {
	return result.New(
		row.Kind, row.ID, row.Title,
		relevance.Excerpt(row.MatchText(), text, relevance.DefaultExcerptLen),
		similarity,
		row.Law.Ref(),
	)
}

// lawsFromSections scores each active parent law by its best section hit.
// Laws keep the order in which their first section appeared.
func lawsFromSections(hits []content.Hit, text string) []result.Result {
	index := make(map[string]int)
	var laws []result.Result
	for _, h := range hits {
		law := h.Row.Law
		if law == nil || !law.Active {
			continue
		}
		if i, ok := index[law.ID]; ok {
			if h.Similarity > laws[i].Score() {
				laws[i] = laws[i].WithScore(h.Similarity)
			}
			continue
		}
		index[law.ID] = len(laws)
		laws = append(laws, result.New(
			kind.Law, law.ID, law.Title,
			relevance.Excerpt(law.Description, text, relevance.DefaultExcerptLen),
			h.Similarity,
			law.Ref(),
		))
	}
	return laws
}
