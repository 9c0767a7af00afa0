package search

import (
	"context"

	"github.com/catuchi/LawMadeSimple-sub001/internal/domain"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/content"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/kind"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/searchlog"
)

// ContentStore answers case-insensitive containment queries per entity kind.
type ContentStore interface {
	CountMatches(ctx context.Context, k kind.Kind, f content.Filter) (int64, error)
	FindMatches(ctx context.Context, k kind.Kind, f content.Filter, limit, offset int) ([]content.Row, error)
}

// VectorStore ranks embedded rows by similarity to a query vector.
type VectorStore interface {
	NearestSections(ctx context.Context, vec []float32, f content.VectorFilter) ([]content.Hit, error)
	NearestScenarios(ctx context.Context, vec []float32, f content.VectorFilter) ([]content.Hit, error)
}

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// UsageGate enforces per-identity search allowances.
type UsageGate interface {
	CanSearch(ctx context.Context, id domain.Identity) bool
	RecordUsage(ctx context.Context, id domain.Identity, event string, metadata map[string]string) error
}

// LogSink stores completed searches.
type LogSink interface {
	Append(ctx context.Context, e searchlog.Entry) error
}

// Runner executes side effects without blocking the caller.
type Runner interface {
	Go(ctx context.Context, name string, task func(ctx context.Context) error)
}
