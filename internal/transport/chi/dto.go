package chi

import "time"

// ErrorCode is a machine-checkable error identifier.
type ErrorCode string

// Error codes returned in ErrorResponse.Code.
const (
	ErrorCodeValidationFailed ErrorCode = "validation_failed"
	ErrorCodeUnauthorized     ErrorCode = "unauthorized"
	ErrorCodeQuotaExceeded    ErrorCode = "quota_exceeded"
	ErrorCodeRateLimited      ErrorCode = "rate_limited"
	ErrorCodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// SearchResponse is the body of GET /api/v1/search.
type SearchResponse struct {
	Results    []SearchResultItem `json:"results"`
	Pagination Pagination         `json:"pagination"`
	Extra      SearchExtra        `json:"extra"`
}

// SearchResultItem is one ranked hit.
type SearchResultItem struct {
	Kind           string     `json:"kind"`
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Excerpt        string     `json:"excerpt"`
	RelevanceScore float64    `json:"relevanceScore"`
	ParentLaw      *ParentLaw `json:"parentLaw,omitempty"`
}

// ParentLaw identifies the statute a result belongs to.
type ParentLaw struct {
	Slug       string `json:"slug"`
	ShortTitle string `json:"shortTitle"`
}

// Pagination describes the page within the full result set.
type Pagination struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"pageSize"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasMore    bool `json:"hasMore"`
}

// SearchExtra reports which retrieval path served the response.
type SearchExtra struct {
	SearchMode        string `json:"searchMode"`
	SemanticAvailable bool   `json:"semanticAvailable"`
}

// UsageResponse is the body of GET /api/v1/usage.
type UsageResponse struct {
	Identity      string    `json:"identity"`
	Period        string    `json:"period"`
	Limit         int64     `json:"limit"`
	Used          int64     `json:"used"`
	Remaining     int64     `json:"remaining"`
	Unlimited     bool      `json:"unlimited"`
	Exhausted     bool      `json:"exhausted"`
	PeriodStartAt time.Time `json:"periodStartAt"`
	ResetsAt      time.Time `json:"resetsAt"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
