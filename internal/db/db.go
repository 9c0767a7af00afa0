package db

import (
	"context"
	"time"
)

// Store is the key-value facade used for counters, rate-limit windows and the
// embedding cache. Consumers declare the narrow sub-interface they need.
type Store interface {
	Pinger
	KVStore
	WindowCounter
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// WindowCounter counts hits in a fixed expiring window.
type WindowCounter interface {
	// IncrWindow increments key, starting a window of the given length on the
	// first hit, and returns the new count with the time left in the window.
	IncrWindow(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
}
