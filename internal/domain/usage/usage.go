package usage

import "github.com/catuchi/LawMadeSimple-sub001/internal/domain"

// Period is the allowance window.
type Period string

// Allowance period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// IsValid checks if the period is supported.
func (p Period) IsValid() bool { return p == PeriodDay || p == PeriodMonth }

// EventSearch is the usage event recorded for each completed search.
const EventSearch = "search"

// Report is an identity's search allowance for one period.
type Report struct {
	identity    domain.Identity
	period      Period
	periodStart int64
	resetsAt    int64
	limit       int64
	used        int64
}

// NewReport creates an allowance report. A limit of 0 means unlimited.
// Timestamps are unix millis.
func NewReport(id domain.Identity, period Period, start, resetsAt, limit, used int64) Report {
	return Report{
		identity:    id,
		period:      period,
		periodStart: start,
		resetsAt:    resetsAt,
		limit:       limit,
		used:        used,
	}
}

// Identity returns the caller the report describes.
func (r Report) Identity() domain.Identity { return r.identity }

// Period returns the allowance window.
func (r Report) Period() Period { return r.period }

// PeriodStart returns the window start (unix millis).
func (r Report) PeriodStart() int64 { return r.periodStart }

// ResetsAt returns when the window rolls over (unix millis).
func (r Report) ResetsAt() int64 { return r.resetsAt }

// Limit returns the search cap, 0 for unlimited.
func (r Report) Limit() int64 { return r.limit }

// Used returns searches recorded in the window.
func (r Report) Used() int64 { return r.used }

// Unlimited reports whether the identity has no cap.
func (r Report) Unlimited() bool { return r.limit <= 0 }

// Remaining returns searches left, or -1 when unlimited.
func (r Report) Remaining() int64 {
	if r.Unlimited() {
		return -1
	}
	if left := r.limit - r.used; left > 0 {
		return left
	}
	return 0
}

// Exhausted reports whether no searches are left.
func (r Report) Exhausted() bool {
	return !r.Unlimited() && r.used >= r.limit
}
