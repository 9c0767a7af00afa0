package search

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/catuchi/LawMadeSimple-sub001/internal/domain"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/content"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/kind"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/query"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/result"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/searchlog"
	"github.com/catuchi/LawMadeSimple-sub001/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterSearchMetrics()
	os.Exit(m.Run())
}

// --- Content store ---

type mockContentStore struct {
	mu         sync.Mutex
	rows       map[kind.Kind][]content.Row
	totals     map[kind.Kind]int64
	countErr   error
	findErr    error
	countCalls map[kind.Kind]int
	findCalls  map[kind.Kind]int
	lastLimit  map[kind.Kind]int
	lastOffset map[kind.Kind]int
	lastFilter content.Filter
}

func newMockContentStore() *mockContentStore {
	return &mockContentStore{
		rows:       map[kind.Kind][]content.Row{},
		totals:     map[kind.Kind]int64{},
		countCalls: map[kind.Kind]int{},
		findCalls:  map[kind.Kind]int{},
		lastLimit:  map[kind.Kind]int{},
		lastOffset: map[kind.Kind]int{},
	}
}

func (m *mockContentStore) CountMatches(_ context.Context, k kind.Kind, f content.Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.countCalls[k]++
	m.lastFilter = f
	if m.countErr != nil {
		return 0, m.countErr
	}
	if n, ok := m.totals[k]; ok {
		return n, nil
	}
	return int64(len(m.rows[k])), nil
}

func (m *mockContentStore) FindMatches(
	_ context.Context, k kind.Kind, f content.Filter, limit, offset int,
) ([]content.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findCalls[k]++
	m.lastLimit[k] = limit
	m.lastOffset[k] = offset
	m.lastFilter = f
	if m.findErr != nil {
		return nil, m.findErr
	}
	rows := m.rows[k]
	if offset >= len(rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end], nil
}

func (m *mockContentStore) calls(k kind.Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countCalls[k] + m.findCalls[k]
}

func (m *mockContentStore) totalCalls() int {
	return m.calls(kind.Law) + m.calls(kind.Section) + m.calls(kind.Scenario)
}

// --- Vector store ---

type mockVectorStore struct {
	mu            sync.Mutex
	sections      []content.Hit
	scenarios     []content.Hit
	err           error
	sectionCalls  int
	scenarioCalls int
	lastFilter    content.VectorFilter
}

func (m *mockVectorStore) NearestSections(_ context.Context, _ []float32, f content.VectorFilter) ([]content.Hit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sectionCalls++
	m.lastFilter = f
	return m.sections, m.err
}

func (m *mockVectorStore) NearestScenarios(_ context.Context, _ []float32, f content.VectorFilter) ([]content.Hit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenarioCalls++
	m.lastFilter = f
	return m.scenarios, m.err
}

// --- Embedder ---

type mockEmbedder struct {
	mu    sync.Mutex
	vec   []float32
	err   error
	calls int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec, TotalTokens: 4}, nil
}

// --- Usage gate ---

type recordedUsage struct {
	id    domain.Identity
	event string
	meta  map[string]string
}

type mockUsageGate struct {
	allow     bool
	recordErr error
	canCalls  int
	recorded  []recordedUsage
}

func (m *mockUsageGate) CanSearch(_ context.Context, _ domain.Identity) bool {
	m.canCalls++
	return m.allow
}

func (m *mockUsageGate) RecordUsage(_ context.Context, id domain.Identity, event string, meta map[string]string) error {
	m.recorded = append(m.recorded, recordedUsage{id: id, event: event, meta: meta})
	return m.recordErr
}

// --- Log sink ---

type mockLogSink struct {
	entries []searchlog.Entry
	err     error
}

func (m *mockLogSink) Append(_ context.Context, e searchlog.Entry) error {
	m.entries = append(m.entries, e)
	return m.err
}

// --- Runner ---

// syncRunner runs side effects inline so tests can observe them.
type syncRunner struct {
	names []string
	errs  []error
}

func (r *syncRunner) Go(ctx context.Context, name string, task func(ctx context.Context) error) {
	r.names = append(r.names, name)
	if err := task(ctx); err != nil {
		r.errs = append(r.errs, err)
	}
}

// countingKeyword counts calls to the keyword retriever entry points.
type countingKeyword struct {
	inner         *KeywordRetriever
	retrieveCalls int
	poolCalls     int
	mu            sync.Mutex
}

func (c *countingKeyword) Retrieve(ctx context.Context, q query.Query) (KeywordPage, error) {
	c.mu.Lock()
	c.retrieveCalls++
	c.mu.Unlock()
	return c.inner.Retrieve(ctx, q)
}

func (c *countingKeyword) Pool(ctx context.Context, q query.Query, size int) ([]result.Result, error) {
	c.mu.Lock()
	c.poolCalls++
	c.mu.Unlock()
	return c.inner.Pool(ctx, q, size)
}

// --- Fixtures ---

var testLaw = &content.Law{
	ID: "law-acja", Slug: "acja-2015", Title: "Administration of Criminal Justice Act",
	ShortTitle: "ACJA", Description: "Criminal procedure, arrest and bail", Active: true,
}

var testConstitution = &content.Law{
	ID: "law-const", Slug: "constitution-1999", Title: "Constitution of the Federal Republic",
	ShortTitle: "Constitution", Description: "Fundamental rights including the right to life", Active: true,
}

func sectionRow(id, title, body string, law *content.Law) content.Row {
	return content.Row{Kind: kind.Section, ID: id, Title: title, Body: body, Law: law}
}

func scenarioRow(id, title, body string) content.Row {
	return content.Row{Kind: kind.Scenario, ID: id, Title: title, Body: body}
}

func lawRow(l *content.Law) content.Row {
	return content.Row{Kind: kind.Law, ID: l.ID, Title: l.Title, Body: l.Description, Law: l}
}

func mustQuery(t *testing.T, p query.Params) query.Query {
	t.Helper()
	q, err := query.New(p, query.DefaultLimits())
	if err != nil {
		t.Fatalf("query.New: %v", err)
	}
	return q
}
