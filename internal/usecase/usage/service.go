package usage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/catuchi/LawMadeSimple-sub001/internal/domain"
	domusage "github.com/catuchi/LawMadeSimple-sub001/internal/domain/usage"
	"github.com/catuchi/LawMadeSimple-sub001/internal/logger"
)

const subjectPrefix = "usage:"

// Limits caps searches per identity. Zero means unlimited.
type Limits struct {
	Daily   int64
	Monthly int64
}

// Gate answers whether an identity may search and records searches.
type Gate struct {
	counters Counters
	limits   Limits
	now      func() time.Time
}

// New creates a Gate.
func New(counters Counters, limits Limits) *Gate {
	return &Gate{
		counters: counters,
		limits:   limits,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func subject(id domain.Identity) string { return subjectPrefix + string(id) }

// CanSearch reports whether id has allowance left in the current day and month.
// Counter failures fail open: a broken store must not lock users out.
func (g *Gate) CanSearch(ctx context.Context, id domain.Identity) bool {
	if g.limits.Daily <= 0 && g.limits.Monthly <= 0 {
		return true
	}
	now := g.now()

	if g.limits.Daily > 0 {
		used, err := g.counters.Daily(ctx, subject(id), now)
		if err != nil {
			logger.FromContext(ctx).Warn("Usage check failed, allowing search",
				zap.String("identity", string(id)), zap.Error(err))
			return true
		}
		if used >= g.limits.Daily {
			return false
		}
	}

	if g.limits.Monthly > 0 {
		used, err := g.counters.Monthly(ctx, subject(id), now)
		if err != nil {
			logger.FromContext(ctx).Warn("Usage check failed, allowing search",
				zap.String("identity", string(id)), zap.Error(err))
			return true
		}
		if used >= g.limits.Monthly {
			return false
		}
	}
	return true
}

// RecordUsage counts one event for id. Only search events consume allowance;
// metadata is logged at debug level and not stored.
func (g *Gate) RecordUsage(ctx context.Context, id domain.Identity, event string, metadata map[string]string) error {
	logger.FromContext(ctx).Debug("Recording usage",
		zap.String("identity", string(id)),
		zap.String("event", event),
		zap.Any("metadata", metadata),
	)
	if event != domusage.EventSearch {
		return nil
	}
	if err := g.counters.Add(ctx, subject(id), 1, g.now()); err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// Report builds id's allowance report for period.
func (g *Gate) Report(ctx context.Context, id domain.Identity, period domusage.Period) (domusage.Report, error) {
	now := g.now()

	var (
		start, end time.Time
		limit      int64
		used       int64
		err        error
	)
	switch period {
	case domusage.PeriodMonth:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0)
		limit = g.limits.Monthly
		used, err = g.counters.Monthly(ctx, subject(id), now)
	default:
		period = domusage.PeriodDay
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		end = start.Add(24 * time.Hour)
		limit = g.limits.Daily
		used, err = g.counters.Daily(ctx, subject(id), now)
	}
	if err != nil {
		return domusage.Report{}, fmt.Errorf("read %s usage: %w", period, err)
	}

	return domusage.NewReport(id, period, start.UnixMilli(), end.UnixMilli(), limit, used), nil
}
