package usage

import (
	"context"
	"time"
)

// Counters provides per-subject daily and monthly event counts.
type Counters interface {
	Add(ctx context.Context, subject string, n int64, now time.Time) error
	Daily(ctx context.Context, subject string, now time.Time) (int64, error)
	Monthly(ctx context.Context, subject string, now time.Time) (int64, error)
}
