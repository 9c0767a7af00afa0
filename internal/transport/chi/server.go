package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/catuchi/LawMadeSimple-sub001/internal/domain"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/kind"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/mode"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/query"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/result"
	domusage "github.com/catuchi/LawMadeSimple-sub001/internal/domain/usage"
	"github.com/catuchi/LawMadeSimple-sub001/internal/logger"
	healthuc "github.com/catuchi/LawMadeSimple-sub001/internal/usecase/health"
	searchuc "github.com/catuchi/LawMadeSimple-sub001/internal/usecase/search"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

type searchService interface {
	Search(ctx context.Context, id domain.Identity, p query.Params) (searchuc.Response, error)
}

type usageReporter interface {
	Report(ctx context.Context, id domain.Identity, period domusage.Period) (domusage.Report, error)
}

type healthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Server serves the search HTTP API.
type Server struct {
	search        searchService
	usage         usageReporter
	health        healthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(search searchService, usage usageReporter, health healthChecker, logger *zap.Logger) *Server {
	s := &Server{
		search: search,
		usage:  usage,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		validationHandler,
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrUnauthorized, http.StatusUnauthorized, ErrorCodeUnauthorized),
		sentinelHandler(domain.ErrQuotaExceeded, http.StatusTooManyRequests, ErrorCodeQuotaExceeded),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, ErrorCodeRateLimited),
	}
	return s
}

// Routes mounts the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/search", s.Search)
		r.Get("/usage", s.GetUsage)
	})
}

// Search handles GET /api/v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	params, err := searchParams(r)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	resp, err := s.search.Search(r.Context(), domain.IdentityFromContext(r.Context()), params)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, NewSearchResponse(resp))
}

// GetUsage handles GET /api/v1/usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	id := domain.IdentityFromContext(r.Context())
	if id.Anonymous() {
		writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "usage requires an api key")
		return
	}

	period := domusage.PeriodDay
	if raw := r.URL.Query().Get("period"); raw != "" {
		period = domusage.Period(raw)
		if !period.IsValid() {
			writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "period must be one of day, month")
			return
		}
	}

	report, err := s.usage.Report(r.Context(), id, period)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, UsageResponse{
		Identity:      string(report.Identity()),
		Period:        string(report.Period()),
		Limit:         report.Limit(),
		Used:          report.Used(),
		Remaining:     report.Remaining(),
		Unlimited:     report.Unlimited(),
		Exhausted:     report.Exhausted(),
		PeriodStartAt: time.UnixMilli(report.PeriodStart()).UTC(),
		ResetsAt:      time.UnixMilli(report.ResetsAt()).UTC(),
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// searchParams reads raw search parameters from the query string. Range and
// enum checks are left to query.New.
func searchParams(r *http.Request) (query.Params, error) {
	q := r.URL.Query()

	page, err := intParam(q.Get("page"), "page")
	if err != nil {
		return query.Params{}, err
	}
	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		return query.Params{}, err
	}

	return query.Params{
		Text:     q.Get("q"),
		Filter:   kind.Filter(q.Get("type")),
		Strategy: mode.Strategy(q.Get("mode")),
		LawIDs:   query.ParseLawIDs(q.Get("lawIds")),
		Page:     page,
		PageSize: limit,
	}, nil
}

func intParam(raw, field string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError(field, "must be an integer")
	}
	if n == 0 {
		return 0, domain.NewValidationError(field, "must be at least 1")
	}
	return n, nil
}

// NewSearchResponse converts a service response into the wire envelope.
func NewSearchResponse(resp searchuc.Response) SearchResponse {
	items := make([]SearchResultItem, len(resp.Results))
	for i := range resp.Results {
		items[i] = searchResultItem(&resp.Results[i])
	}
	return SearchResponse{
		Results: items,
		Pagination: Pagination{
			Page:       resp.Page.Page,
			PageSize:   resp.Page.PageSize,
			Total:      resp.Page.Total,
			TotalPages: resp.Page.TotalPages,
			HasMore:    resp.Page.HasMore,
		},
		Extra: SearchExtra{
			SearchMode:        string(resp.Mode),
			SemanticAvailable: resp.SemanticAvailable(),
		},
	}
}

func searchResultItem(r *result.Result) SearchResultItem {
	item := SearchResultItem{
		Kind:           string(r.Kind()),
		ID:             r.ID(),
		Title:          r.Title(),
		Excerpt:        r.Excerpt(),
		RelevanceScore: r.Score(),
	}
	if law := r.ParentLaw(); law != nil {
		item.ParentLaw = &ParentLaw{Slug: law.Slug, ShortTitle: law.ShortTitle}
	}
	return item
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrValidation,
		domain.ErrUnauthorized,
		domain.ErrQuotaExceeded,
		domain.ErrRateLimited,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// validationHandler names the offending parameter in the message.
func validationHandler(w http.ResponseWriter, err error, _ string) bool {
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, ve.Error())
	return true
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logger.FromContextOr(ctx, s.logger)
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			log.Info("request rejected", zap.Error(err))
			return
		}
	}
	if errors.Is(err, domain.ErrRetrievalFailed) {
		log.Error("keyword retrieval failed", zap.Error(err))
	} else {
		log.Error("internal error", zap.Error(err))
	}
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
