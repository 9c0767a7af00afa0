// Package counter keeps calendar-bucketed usage counters (per UTC day and
// per UTC month) in the key-value store.
package counter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/catuchi/LawMadeSimple-sub001/internal/db"
)

// Default retention for counter keys. Keys outlive their bucket so a late
// reader still sees the final value.
const (
	DefaultDailyTTL   = 48 * time.Hour
	DefaultMonthlyTTL = 62 * 24 * time.Hour
)

// store is the consumer interface for counter operations (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Store implements daily and monthly counters on top of DB (INCRBY + EXPIRE NX).
type Store struct {
	store    store
	prefix   string
	dailyTTL time.Duration
	monthTTL time.Duration
}

// New creates a counter store. Zero TTLs fall back to the defaults.
func New(s store, prefix string, dailyTTL, monthTTL time.Duration) *Store {
	if dailyTTL <= 0 {
		dailyTTL = DefaultDailyTTL
	}
	if monthTTL <= 0 {
		monthTTL = DefaultMonthlyTTL
	}
	return &Store{
		store:    s,
		prefix:   prefix,
		dailyTTL: dailyTTL,
		monthTTL: monthTTL,
	}
}

// DailyKey returns the key of subject's bucket for the UTC day containing t.
func (s *Store) DailyKey(subject string, t time.Time) string {
	return fmt.Sprintf("%s%s:daily:%s", s.prefix, subject, t.UTC().Format("2006-01-02"))
}

// MonthlyKey returns the key of subject's bucket for the UTC month containing t.
func (s *Store) MonthlyKey(subject string, t time.Time) string {
	return fmt.Sprintf("%s%s:monthly:%s", s.prefix, subject, t.UTC().Format("2006-01"))
}

// Add increments both the daily and the monthly bucket of subject by n.
func (s *Store) Add(ctx context.Context, subject string, n int64, now time.Time) error {
	if err := s.incr(ctx, s.DailyKey(subject, now), n, s.dailyTTL); err != nil {
		return err
	}
	return s.incr(ctx, s.MonthlyKey(subject, now), n, s.monthTTL)
}

// Daily returns subject's count for the current UTC day. Missing keys count as 0.
func (s *Store) Daily(ctx context.Context, subject string, now time.Time) (int64, error) {
	return s.get(ctx, s.DailyKey(subject, now))
}

// Monthly returns subject's count for the current UTC month. Missing keys count as 0.
func (s *Store) Monthly(ctx context.Context, subject string, now time.Time) (int64, error) {
	return s.get(ctx, s.MonthlyKey(subject, now))
}

func (s *Store) incr(ctx context.Context, key string, n int64, ttl time.Duration) error {
	if err := s.store.IncrBy(ctx, key, n); err != nil {
		return fmt.Errorf("counter INCRBY %s: %w", key, err)
	}
	// NX: the first write of a bucket fixes its expiry.
	if err := s.store.Expire(ctx, key, ttl, true); err != nil {
		return fmt.Errorf("counter EXPIRE %s: %w", key, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) (int64, error) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("counter GET %s: %w", key, err)
	}

	val, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("counter GET %s parse: %w", key, err)
	}
	return val, nil
}
