package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/catuchi/LawMadeSimple-sub001/internal/domain"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/kind"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/mode"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/page"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/query"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/result"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/searchlog"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/usage"
	"github.com/catuchi/LawMadeSimple-sub001/internal/logger"
	"github.com/catuchi/LawMadeSimple-sub001/internal/metrics"
)

// Side-effect task names.
const (
	taskSearchLog   = "search_log"
	taskUsageRecord = "usage_record"
)

type keywordRetriever interface {
	Retrieve(ctx context.Context, q query.Query) (KeywordPage, error)
}

type poolRetriever interface {
	Retrieve(ctx context.Context, q query.Query) ([]result.Result, error)
}

// Response is one page of ranked results and the mode that produced it.
type Response struct {
	Results []result.Result
	Page    page.Envelope
	Mode    mode.Served
}

// SemanticAvailable reports whether the semantic path served this response.
func (r Response) SemanticAvailable() bool { return r.Mode.SemanticAvailable() }

// Service validates, gates, dispatches and paginates searches.
type Service struct {
	keyword  keywordRetriever
	semantic poolRetriever
	hybrid   poolRetriever
	usage    UsageGate
	logs     LogSink
	runner   Runner
	limits   query.Limits
}

// New creates a search service. limits is copied and never changes afterwards.
func New(
	keyword keywordRetriever, semantic, hybrid poolRetriever,
	gate UsageGate, logs LogSink, runner Runner, limits query.Limits,
) *Service {
	return &Service{
		keyword:  keyword,
		semantic: semantic,
		hybrid:   hybrid,
		usage:    gate,
		logs:     logs,
		runner:   runner,
		limits:   limits,
	}
}

// Search runs one search for id (anonymous when empty).
//
// Validation and quota failures return before any retrieval and leave no
// side effects. A failing semantic or hybrid pass is replaced by a keyword
// search and reported as mode.KeywordFallback. A failing keyword search is
// returned as domain.ErrRetrievalFailed.
func (s *Service) Search(ctx context.Context, id domain.Identity, p query.Params) (Response, error) {
	start := time.Now()

	q, err := query.New(p, s.limits)
	if err != nil {
		metrics.SearchRejectedTotal.WithLabelValues("validation").Inc()
		return Response{}, fmt.Errorf("validate query: %w", err)
	}

	if !id.Anonymous() && !s.usage.CanSearch(ctx, id) {
		metrics.SearchRejectedTotal.WithLabelValues("quota").Inc()
		return Response{}, domain.ErrQuotaExceeded
	}

	var (
		results []result.Result
		total   int
		served  mode.Served
	)

	switch q.Strategy() {
	case mode.Keyword:
		results, total, err = s.searchKeyword(ctx, q)
		served = mode.ServedKeyword

	case mode.Semantic, mode.Hybrid:
		results, total, err = s.searchPool(ctx, q)
		served = q.Strategy().Served()
		if err != nil {
			s.logFallback(ctx, q, err)
			results, total, err = s.searchKeyword(ctx, q)
			served = mode.KeywordFallback
		}

	default:
		return Response{}, fmt.Errorf("unsupported search strategy: %s", q.Strategy())
	}
	if err != nil {
		return Response{}, err
	}

	resp := Response{
		Results: results,
		Page:    page.New(q.Page(), q.PageSize(), total),
		Mode:    served,
	}

	metrics.SearchRequestsTotal.WithLabelValues(string(q.Strategy()), string(served)).Inc()
	metrics.SearchDuration.WithLabelValues(string(served)).Observe(time.Since(start).Seconds())

	s.recordSideEffects(ctx, id, q, resp)
	return resp, nil
}

// searchKeyword returns the keyword page as-is: the retriever already applied
// paging for the requested filter.
func (s *Service) searchKeyword(ctx context.Context, q query.Query) ([]result.Result, int, error) {
	kp, err := s.keyword.Retrieve(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("keyword search: %w: %w", domain.ErrRetrievalFailed, err)
	}
	return kp.Results, kp.Total, nil
}

// searchPool runs the semantic or hybrid pass and pages its pool in memory.
// The total is the pool size, which is capped by the retriever.
func (s *Service) searchPool(ctx context.Context, q query.Query) ([]result.Result, int, error) {
	src := s.hybrid
	if q.Strategy() == mode.Semantic {
		src = s.semantic
	}

	// Laws ride on the unfiltered pass and are picked out afterwards.
	dispatch := q
	if q.Filter() == kind.OnlyLaws {
		dispatch = q.WithFilter(kind.All)
	}

	pool, err := src.Retrieve(ctx, dispatch)
	if err != nil {
		return nil, 0, fmt.Errorf("%s search: %w", q.Strategy(), err)
	}
	if q.Filter() == kind.OnlyLaws {
		pool = result.OfKinds(pool, kind.OnlyLaws)
	}

	start, end := page.Bounds(q.Page(), q.PageSize(), len(pool))
	return pool[start:end], len(pool), nil
}

func (s *Service) logFallback(ctx context.Context, q query.Query, cause error) {
	reason := "retrieval_failed"
	switch {
	case errors.Is(cause, domain.ErrEmbeddingQuotaExceeded):
		reason = "embedding_quota"
	case errors.Is(cause, domain.ErrEmbeddingProviderError):
		reason = "embedding_provider"
	}
	metrics.SearchFallbackTotal.WithLabelValues(string(q.Strategy()), reason).Inc()

	logger.FromContext(ctx).Warn("Falling back to keyword search",
		zap.String("strategy", string(q.Strategy())),
		zap.String("reason", reason),
		zap.Error(cause),
	)
}

// recordSideEffects logs the search and, for identified callers, records usage.
// Neither is awaited and neither can change resp.
func (s *Service) recordSideEffects(ctx context.Context, id domain.Identity, q query.Query, resp Response) {
	entry := searchlog.NewEntry(id, q.Text(), resp.Page.Total, q.Filter(), q.LawIDs(), resp.Mode)
	s.runner.Go(ctx, taskSearchLog, func(ctx context.Context) error {
		return s.logs.Append(ctx, entry)
	})

	if id.Anonymous() {
		return
	}
	meta := map[string]string{
		"mode":   string(resp.Mode),
		"filter": string(q.Filter()),
	}
	if len(q.LawIDs()) > 0 {
		meta["lawIds"] = strings.Join(q.LawIDs(), ",")
	}
	s.runner.Go(ctx, taskUsageRecord, func(ctx context.Context) error {
		return s.usage.RecordUsage(ctx, id, usage.EventSearch, meta)
	})
}
