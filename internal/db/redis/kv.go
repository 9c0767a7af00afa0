package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/catuchi/LawMadeSimple-sub001/internal/db"
)

// Get retrieves a value by key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := s.b().Get().Key(key).Build()
	data, err := s.do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return data, nil
}

// Set stores a value at the given key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	cmd := s.b().Set().Key(key).Value(rueidis.BinaryString(value)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// SetWithTTL stores a value with an expiration.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := s.b().Set().Key(key).Value(rueidis.BinaryString(value)).Ex(ttl).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// IncrBy atomically increments a key by the given amount.
func (s *Store) IncrBy(ctx context.Context, key string, val int64) error {
	cmd := s.b().Incrby().Key(key).Increment(val).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpIncrBy, Err: err}
	}
	return nil
}

// Expire sets TTL on a key. With nx it only applies when the key has no expiry yet.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error {
	var cmd rueidis.Completed
	if nx {
		cmd = s.b().Expire().Key(key).Seconds(seconds(ttl)).Nx().Build()
	} else {
		cmd = s.b().Expire().Key(key).Seconds(seconds(ttl)).Build()
	}
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpExpire, Err: err}
	}
	return nil
}

// IncrWindow runs INCR, EXPIRE NX and PTTL in one round trip.
func (s *Store) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	results := s.client.DoMulti(ctx,
		s.b().Incr().Key(key).Build(),
		s.b().Expire().Key(key).Seconds(seconds(window)).Nx().Build(),
		s.b().Pttl().Key(key).Build(),
	)

	count, err := results[0].AsInt64()
	if err != nil {
		return 0, 0, &db.Error{Op: db.OpIncr, Err: err}
	}
	if err := results[1].Error(); err != nil {
		return 0, 0, &db.Error{Op: db.OpExpire, Err: err}
	}
	ms, err := results[2].AsInt64()
	if err != nil {
		return 0, 0, &db.Error{Op: db.OpPTTL, Err: err}
	}
	// PTTL is negative when the key has no expiry or vanished between commands.
	ttl := time.Duration(ms) * time.Millisecond
	if ms < 0 {
		ttl = window
	}
	return count, ttl, nil
}

// seconds rounds up so sub-second windows still expire.
func seconds(d time.Duration) int64 {
	s := int64(d / time.Second)
	if d%time.Second != 0 || s == 0 {
		s++
	}
	return s
}
