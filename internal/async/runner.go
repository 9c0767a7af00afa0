// Package async runs best-effort side effects off the request path.
package async

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/catuchi/LawMadeSimple-sub001/internal/logger"
	"github.com/catuchi/LawMadeSimple-sub001/internal/metrics"
)

// Defaults for NewRunner.
const (
	DefaultPoolSize = 64
	DefaultTimeout  = 5 * time.Second
)

// Runner executes tasks on a bounded, non-blocking goroutine pool.
// A task that cannot be scheduled immediately is dropped.
type Runner struct {
	pool    *ants.Pool
	timeout time.Duration
	logger  *zap.Logger

	// mu orders wg.Add in Go before wg.Wait in Shutdown.
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewRunner creates a runner with the given pool size and per-task timeout.
func NewRunner(size int, timeout time.Duration, log *zap.Logger) (*Runner, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	pool, err := ants.NewPool(size,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p any) {
			log.Error("Side-effect worker panicked", zap.Any("panic", p))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create side-effect pool: %w", err)
	}

	return &Runner{pool: pool, timeout: timeout, logger: log}, nil
}

// Go schedules task without waiting for it. The task context keeps the values
// of ctx (request id, logger) but not its cancellation, and carries its own timeout.
// The task error is logged and otherwise ignored. Tasks submitted once
// Shutdown has started are dropped.
func (r *Runner) Go(ctx context.Context, name string, task func(ctx context.Context) error) {
	detached := context.WithoutCancel(ctx)
	log := logger.FromContextOr(ctx, r.logger)

	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		r.drop(log, name, ants.ErrPoolClosed)
		return
	}
	r.wg.Add(1)
	r.mu.RUnlock()

	err := r.pool.Submit(func() {
		defer r.wg.Done()
		r.run(detached, log, name, task)
	})
	if err != nil {
		r.wg.Done()
		r.drop(log, name, err)
	}
}

func (r *Runner) drop(log *zap.Logger, name string, err error) {
	metrics.SideEffectsTotal.WithLabelValues(name, "dropped").Inc()
	log.Warn("Side effect dropped", zap.String("task", name), zap.Error(err))
}

func (r *Runner) run(ctx context.Context, log *zap.Logger, name string, task func(context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			metrics.SideEffectsTotal.WithLabelValues(name, "panic").Inc()
			log.Error("Side effect panicked", zap.String("task", name), zap.Any("panic", p))
		}
	}()

	if err := task(ctx); err != nil {
		metrics.SideEffectsTotal.WithLabelValues(name, "error").Inc()
		log.Warn("Side effect failed", zap.String("task", name), zap.Error(err))
		return
	}
	metrics.SideEffectsTotal.WithLabelValues(name, "ok").Inc()
}

// Running returns the number of tasks currently executing.
func (r *Runner) Running() int { return r.pool.Running() }

// Shutdown waits for scheduled tasks until ctx is done, then releases the pool.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.pool.Release()
		return nil
	case <-ctx.Done():
		r.logger.Warn("Side effects still running at shutdown", zap.Int("running", r.pool.Running()))
		r.pool.Release()
		return fmt.Errorf("drain side effects: %w", ctx.Err())
	}
}
