package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/catuchi/LawMadeSimple-sub001/internal/domain"
	domusage "github.com/catuchi/LawMadeSimple-sub001/internal/domain/usage"
)

// --- Mock ---

type mockCounters struct {
	daily    map[string]int64
	monthly  map[string]int64
	err      error
	addErr   error
	adds     int
	lastSubj string
}

func newMockCounters() *mockCounters {
	return &mockCounters{daily: map[string]int64{}, monthly: map[string]int64{}}
}

func (m *mockCounters) Add(_ context.Context, subject string, n int64, _ time.Time) error {
	m.adds++
	m.lastSubj = subject
	if m.addErr != nil {
		return m.addErr
	}
	m.daily[subject] += n
	m.monthly[subject] += n
	return nil
}

func (m *mockCounters) Daily(_ context.Context, subject string, _ time.Time) (int64, error) {
	return m.daily[subject], m.err
}

func (m *mockCounters) Monthly(_ context.Context, subject string, _ time.Time) (int64, error) {
	return m.monthly[subject], m.err
}

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func newGate(c Counters, limits Limits) *Gate {
	g := New(c, limits)
	g.now = func() time.Time { return fixedNow }
	return g
}

// --- Tests ---

func TestCanSearch(t *testing.T) {
	tests := []struct {
		name    string
		limits  Limits
		daily   int64
		monthly int64
		want    bool
	}{
		{"unlimited", Limits{}, 1000, 1000, true},
		{"under daily", Limits{Daily: 20}, 19, 19, true},
		{"daily exhausted", Limits{Daily: 20}, 20, 20, false},
		{"monthly exhausted", Limits{Daily: 20, Monthly: 100}, 3, 100, false},
		{"monthly only", Limits{Monthly: 100}, 99, 99, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newMockCounters()
			c.daily["usage:user-1"] = tt.daily
			c.monthly["usage:user-1"] = tt.monthly
			g := newGate(c, tt.limits)

			if got := g.CanSearch(context.Background(), "user-1"); got != tt.want {
				t.Errorf("CanSearch = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanSearch_FailsOpen(t *testing.T) {
	c := newMockCounters()
	c.err = errors.New("redis: connection refused")
	c.daily["usage:user-1"] = 500
	g := newGate(c, Limits{Daily: 20})

	if !g.CanSearch(context.Background(), "user-1") {
		t.Error("counter failure should allow the search")
	}
}

func TestRecordUsage(t *testing.T) {
	c := newMockCounters()
	g := newGate(c, Limits{Daily: 2})
	ctx := context.Background()

	for range 2 {
		if err := g.RecordUsage(ctx, "user-1", domusage.EventSearch, map[string]string{"mode": "hybrid"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if c.lastSubj != "usage:user-1" {
		t.Errorf("subject = %q", c.lastSubj)
	}
	if g.CanSearch(ctx, "user-1") {
		t.Error("allowance should be used up after two searches")
	}
	if !g.CanSearch(ctx, "user-2") {
		t.Error("other identities are unaffected")
	}
}

func TestRecordUsage_IgnoresOtherEvents(t *testing.T) {
	c := newMockCounters()
	g := newGate(c, Limits{Daily: 2})

	if err := g.RecordUsage(context.Background(), "user-1", "explain", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.adds != 0 {
		t.Errorf("adds = %d, want 0", c.adds)
	}
}

func TestRecordUsage_Error(t *testing.T) {
	c := newMockCounters()
	c.addErr = errors.New("redis down")
	g := newGate(c, Limits{})

	if err := g.RecordUsage(context.Background(), "user-1", domusage.EventSearch, nil); !errors.Is(err, c.addErr) {
		t.Errorf("expected wrapped add error, got %v", err)
	}
}

func TestReport_Daily(t *testing.T) {
	c := newMockCounters()
	c.daily["usage:user-1"] = 7
	g := newGate(c, Limits{Daily: 20})

	r, err := g.Report(context.Background(), "user-1", domusage.PeriodDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dayStart := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	if r.PeriodStart() != dayStart.UnixMilli() {
		t.Errorf("period start = %d, want %d", r.PeriodStart(), dayStart.UnixMilli())
	}
	if r.ResetsAt() != dayStart.Add(24*time.Hour).UnixMilli() {
		t.Errorf("resets at = %d", r.ResetsAt())
	}
	if r.Identity() != domain.Identity("user-1") || r.Limit() != 20 || r.Used() != 7 || r.Remaining() != 13 {
		t.Errorf("report = %+v", r)
	}
	if r.Exhausted() {
		t.Error("report should not be exhausted")
	}
}

func TestReport_Monthly(t *testing.T) {
	c := newMockCounters()
	c.monthly["usage:user-1"] = 150
	g := newGate(c, Limits{Daily: 20, Monthly: 150})

	r, err := g.Report(context.Background(), "user-1", domusage.PeriodMonth)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	monthStart := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if r.PeriodStart() != monthStart.UnixMilli() {
		t.Errorf("period start = %d", r.PeriodStart())
	}
	if r.ResetsAt() != time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC).UnixMilli() {
		t.Errorf("resets at = %d", r.ResetsAt())
	}
	if !r.Exhausted() || r.Remaining() != 0 {
		t.Errorf("expected exhausted report, got %+v", r)
	}
}

func TestReport_Unlimited(t *testing.T) {
	g := newGate(newMockCounters(), Limits{})

	r, err := g.Report(context.Background(), "user-1", domusage.PeriodDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Unlimited() || r.Remaining() != -1 {
		t.Errorf("expected unlimited report, got %+v", r)
	}
}

func TestReport_CounterError(t *testing.T) {
	c := newMockCounters()
	c.err = errors.New("redis down")
	g := newGate(c, Limits{Daily: 20})

	if _, err := g.Report(context.Background(), "user-1", domusage.PeriodDay); !errors.Is(err, c.err) {
		t.Errorf("expected counter error, got %v", err)
	}
}
