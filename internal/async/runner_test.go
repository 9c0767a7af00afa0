package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/catuchi/LawMadeSimple-sub001/internal/metrics"
)

type ctxMarker struct{}

func newTestRunner(t *testing.T, size int) *Runner {
	t.Helper()
	r, err := NewRunner(size, time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return r
}

func TestRunner_DetachesCancellationKeepsValues(t *testing.T) {
	r := newTestRunner(t, 4)

	parent, cancel := context.WithCancel(context.WithValue(context.Background(), ctxMarker{}, "req-1"))
	cancel()

	got := make(chan string, 1)
	ctxErr := make(chan error, 1)
	r.Go(parent, "log", func(ctx context.Context) error {
		v, _ := ctx.Value(ctxMarker{}).(string)
		got <- v
		ctxErr <- ctx.Err()
		return nil
	})

	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if v := <-got; v != "req-1" {
		t.Errorf("context value = %q, want req-1", v)
	}
	if err := <-ctxErr; err != nil {
		t.Errorf("task context must not inherit cancellation, got %v", err)
	}
}

func TestRunner_TaskHasDeadline(t *testing.T) {
	r := newTestRunner(t, 1)

	hasDeadline := make(chan bool, 1)
	r.Go(context.Background(), "usage", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		hasDeadline <- ok
		return nil
	})
	_ = r.Shutdown(context.Background())

	if !<-hasDeadline {
		t.Error("expected task context to carry a timeout")
	}
}

func TestRunner_ErrorsAndPanicsAreContained(t *testing.T) {
	r := newTestRunner(t, 2)
	before := testutil.ToFloat64(metrics.SideEffectsTotal.WithLabelValues("boom", "panic"))

	r.Go(context.Background(), "fail", func(context.Context) error { return errors.New("db down") })
	r.Go(context.Background(), "boom", func(context.Context) error { panic("unexpected") })

	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if got := testutil.ToFloat64(metrics.SideEffectsTotal.WithLabelValues("boom", "panic")); got != before+1 {
		t.Errorf("panic counter = %v, want %v", got, before+1)
	}
}

func TestRunner_DropsWhenSaturated(t *testing.T) {
	r := newTestRunner(t, 1)
	release := make(chan struct{})
	started := make(chan struct{})

	r.Go(context.Background(), "slow", func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	before := testutil.ToFloat64(metrics.SideEffectsTotal.WithLabelValues("extra", "dropped"))
	var ran atomic.Bool
	r.Go(context.Background(), "extra", func(context.Context) error {
		ran.Store(true)
		return nil
	})

	close(release)
	_ = r.Shutdown(context.Background())

	if ran.Load() {
		t.Error("saturated pool must drop instead of queueing")
	}
	if got := testutil.ToFloat64(metrics.SideEffectsTotal.WithLabelValues("extra", "dropped")); got != before+1 {
		t.Errorf("dropped counter = %v, want %v", got, before+1)
	}
}

func TestRunner_ShutdownTimeout(t *testing.T) {
	r := newTestRunner(t, 1)
	release := make(chan struct{})
	defer close(release)

	r.Go(context.Background(), "stuck", func(context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestRunner_DropsAfterShutdown(t *testing.T) {
	r := newTestRunner(t, 4)
	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	before := testutil.ToFloat64(metrics.SideEffectsTotal.WithLabelValues("late", "dropped"))
	var ran atomic.Bool
	r.Go(context.Background(), "late", func(context.Context) error {
		ran.Store(true)
		return nil
	})

	if ran.Load() {
		t.Error("task submitted after shutdown must not run")
	}
	if got := testutil.ToFloat64(metrics.SideEffectsTotal.WithLabelValues("late", "dropped")); got != before+1 {
		t.Errorf("dropped counter = %v, want %v", got, before+1)
	}
}

func TestRunner_ConcurrentGoAndShutdown(t *testing.T) {
	r := newTestRunner(t, 8)
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Go(context.Background(), "racing", func(context.Context) error { return nil })
		}()
	}
	if err := r.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
	wg.Wait()
}
