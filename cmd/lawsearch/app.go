package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/catuchi/LawMadeSimple-sub001/internal/async"
	"github.com/catuchi/LawMadeSimple-sub001/internal/config"
	"github.com/catuchi/LawMadeSimple-sub001/internal/db"
	"github.com/catuchi/LawMadeSimple-sub001/internal/db/postgres"
	dbRedis "github.com/catuchi/LawMadeSimple-sub001/internal/db/redis"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/query"
	"github.com/catuchi/LawMadeSimple-sub001/internal/metrics"
	contentrepo "github.com/catuchi/LawMadeSimple-sub001/internal/repository/content"
	"github.com/catuchi/LawMadeSimple-sub001/internal/repository/counter"
	"github.com/catuchi/LawMadeSimple-sub001/internal/repository/embcache"
	searchlogrepo "github.com/catuchi/LawMadeSimple-sub001/internal/repository/searchlog"
	openaiEmb "github.com/catuchi/LawMadeSimple-sub001/internal/transport/openai"
	embeddinguc "github.com/catuchi/LawMadeSimple-sub001/internal/usecase/embedding"
	healthuc "github.com/catuchi/LawMadeSimple-sub001/internal/usecase/health"
	"github.com/catuchi/LawMadeSimple-sub001/internal/usecase/ratelimit"
	searchuc "github.com/catuchi/LawMadeSimple-sub001/internal/usecase/search"
	usageuc "github.com/catuchi/LawMadeSimple-sub001/internal/usecase/usage"
)

// app is the composition root shared by serve and search.
type app struct {
	pg      *postgres.DB
	kv      *dbRedis.Store
	runner  *async.Runner
	search  *searchuc.Service
	usage   *usageuc.Gate
	limiter *ratelimit.Limiter
	health  *healthuc.Service
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	pg, err := postgres.Open(postgres.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
		SlowQuery:       time.Duration(cfg.Database.SlowQueryMs) * time.Millisecond,
		LogQueries:      cfg.Database.LogQueries,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := pg.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		_ = pg.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	// Content tables are owned by the content pipeline; only the log table is ours.
	if err := pg.Gorm().WithContext(ctx).AutoMigrate(&searchlogrepo.Record{}); err != nil {
		_ = pg.Close()
		return nil, fmt.Errorf("migrate search_logs: %w", err)
	}
	logger.Info("Connected to postgres")

	kv, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Redis.Addrs,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		_ = pg.Close()
		return nil, fmt.Errorf("create redis store: %w", err)
	}
	if err := kv.WaitForReady(ctx, time.Duration(cfg.Redis.ReadinessTimeout)*time.Second); err != nil {
		kv.Close()
		_ = pg.Close()
		return nil, fmt.Errorf("redis not ready: %w", err)
	}
	logger.Info("Connected to redis")

	counters := counter.New(kv, cfg.Redis.KeyPrefix, 0, 0)
	embedder := buildEmbedder(ctx, cfg.Embedding, cfg.Redis.KeyPrefix, kv, counters, logger)

	runner, err := async.NewRunner(cfg.SideEffects.PoolSize,
		time.Duration(cfg.SideEffects.TimeoutSec)*time.Second, logger)
	if err != nil {
		kv.Close()
		_ = pg.Close()
		return nil, fmt.Errorf("create side-effect runner: %w", err)
	}

	content := contentrepo.New(pg.Gorm())
	keyword := searchuc.NewKeywordRetriever(content)
	semantic := searchuc.NewSemanticRetriever(embedder, content,
		cfg.Search.SemanticPoolSize, cfg.Search.MinSimilarity)
	hybrid := searchuc.NewHybridMerger(semantic, keyword,
		cfg.Search.SemanticWeight, cfg.Search.KeywordWeight, cfg.Search.SemanticPoolSize)

	gate := usageuc.New(counters, usageuc.Limits{
		Daily:   cfg.Quota.DailySearches,
		Monthly: cfg.Quota.MonthlySearches,
	})

	svc := searchuc.New(keyword, semantic, hybrid, gate, searchlogrepo.NewSink(pg.Gorm()), runner,
		query.Limits{DefaultPageSize: cfg.Search.DefaultPageSize, MaxPageSize: cfg.Search.MaxPageSize})

	var embHealth healthuc.EmbeddingChecker
	if cfg.Embedding.Enabled() {
		embHealth = newEmbeddingHealthChecker(embedder)
	}

	return &app{
		pg:     pg,
		kv:     kv,
		runner: runner,
		search: svc,
		usage:  gate,
		limiter: ratelimit.New(kv, ratelimit.Config{
			Window:          time.Duration(cfg.RateLimit.WindowSec) * time.Second,
			AnonymousLimit:  cfg.RateLimit.AnonymousLimit,
			IdentifiedLimit: cfg.RateLimit.IdentifiedLimit,
		}),
		health: healthuc.New(pg, kv, embHealth),
	}, nil
}

// close drains side effects before the stores they write to go away.
func (a *app) close(ctx context.Context, logger *zap.Logger) {
	if err := a.runner.Shutdown(ctx); err != nil {
		logger.Warn("Side effects not drained", zap.Error(err))
	}
	a.kv.Close()
	if err := a.pg.Close(); err != nil {
		logger.Warn("Error closing postgres", zap.Error(err))
	}
}

// buildEmbedder assembles the query embedding chain:
// OpenAI -> Cached -> Instrumented (budget) -> Breaker -> Instruction.
func buildEmbedder(
	ctx context.Context,
	cfg config.EmbeddingConfig,
	keyPrefix string,
	kv db.KVStore,
	counters *counter.Store,
	logger *zap.Logger,
) domain.Embedder {
	if !cfg.Enabled() {
		logger.Warn("Embedding provider not configured, semantic search will fall back to keyword")
		return disabledEmbedder{}
	}

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   cfg.Provider,
		Timeout:    time.Duration(cfg.TimeoutSec) * time.Second,
		Logger:     logger,
	})

	var embedder domain.Embedder = embcache.New(base, kv, embcache.Options{
		KeyPrefix: keyPrefix,
		Model:     cfg.Model,
		TTL:       time.Duration(cfg.CacheTTLSec) * time.Second,
	}, metrics.EmbeddingCacheTotal, logger)

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	var budget embeddinguc.BudgetChecker
	if cfg.Budget.DailyTokenLimit > 0 || cfg.Budget.MonthlyTokenLimit > 0 {
		action := embeddinguc.BudgetActionWarn
		if cfg.Budget.Action == string(embeddinguc.BudgetActionReject) {
			action = embeddinguc.BudgetActionReject
		}
		budget = embeddinguc.NewBudgetTracker(
			cfg.Provider, cfg.Budget.DailyTokenLimit, cfg.Budget.MonthlyTokenLimit, action, logger,
		).WithStore(ctx, counters)
	}
	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Provider, cfg.Model, budget, logger)

	breakerCfg := embeddinguc.DefaultBreakerConfig()
	if b := cfg.Breaker; b.MinRequests > 0 {
		breakerCfg = embeddinguc.BreakerConfig{
			MaxRequests:  b.MaxRequests,
			Interval:     time.Duration(b.IntervalSec) * time.Second,
			Timeout:      time.Duration(b.TimeoutSec) * time.Second,
			MinRequests:  b.MinRequests,
			FailureRatio: b.FailureRatio,
		}
	}
	embedder = embeddinguc.NewBreakerEmbedder(embedder, cfg.Provider, breakerCfg, logger)

	// Instruction prefix is outermost so cache keys include it.
	if cfg.QueryInstruction != "" {
		embedder = domain.NewInstructionEmbedder(embedder, cfg.QueryInstruction)
	}

	logger.Info("Embedder created",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.Int("dimensions", cfg.Dimensions),
	)
	return embedder
}

// disabledEmbedder stands in when no provider key is configured.
type disabledEmbedder struct{}

func (disabledEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, fmt.Errorf("no embedding provider configured: %w", domain.ErrEmbeddingProviderError)
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}
