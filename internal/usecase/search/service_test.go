package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/catuchi/LawMadeSimple-sub001/internal/domain"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/content"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/kind"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/mode"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/search/query"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/searchlog"
	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/usage"
)

type fixture struct {
	store   *mockContentStore
	vectors *mockVectorStore
	embed   *mockEmbedder
	keyword *countingKeyword
	gate    *mockUsageGate
	logs    *mockLogSink
	runner  *syncRunner
	svc     *Service
}

func newFixture() *fixture {
	f := &fixture{
		store:   newMockContentStore(),
		vectors: &mockVectorStore{},
		embed:   &mockEmbedder{vec: []float32{0.1, 0.2, 0.3}},
		gate:    &mockUsageGate{allow: true},
		logs:    &mockLogSink{},
		runner:  &syncRunner{},
	}
	f.keyword = &countingKeyword{inner: NewKeywordRetriever(f.store)}
	semantic := NewSemanticRetriever(f.embed, f.vectors, 50, 0)
	hybrid := NewHybridMerger(semantic, f.keyword, DefaultSemanticWeight, DefaultKeywordWeight, 50)
	f.svc = New(f.keyword, semantic, hybrid, f.gate, f.logs, f.runner, query.DefaultLimits())
	return f
}

func (f *fixture) noRetrieval(t *testing.T) {
	t.Helper()
	if n := f.store.totalCalls(); n != 0 {
		t.Errorf("content store calls = %d, want 0", n)
	}
	if f.embed.calls != 0 {
		t.Errorf("embed calls = %d, want 0", f.embed.calls)
	}
	if f.vectors.sectionCalls+f.vectors.scenarioCalls != 0 {
		t.Error("vector store must not be queried")
	}
	if len(f.runner.names) != 0 {
		t.Errorf("side effects = %v, want none", f.runner.names)
	}
}

func TestSearch_Example1KeywordSection(t *testing.T) {
	f := newFixture()
	f.store.rows[kind.Section] = []content.Row{
		sectionRow("s35", "Arrest Procedures", "A suspect may be arrested only on reasonable grounds.", testLaw),
	}

	resp, err := f.svc.Search(context.Background(), "", query.Params{
		Text: "arrest", Filter: kind.OnlySections, Strategy: mode.Keyword, Page: 1, PageSize: 10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(resp.Results) != 1 {
		t.Fatalf("results = %d, want 1", len(resp.Results))
	}
	r := resp.Results[0]
	if r.Kind() != kind.Section || r.ID() != "s35" {
		t.Errorf("result = %s", r.Key())
	}
	if r.Score() <= 0.5 {
		t.Errorf("score = %v, want > 0.5", r.Score())
	}
	if !strings.Contains(r.Excerpt(), "**arrest**") {
		t.Errorf("excerpt = %q, want highlighted match", r.Excerpt())
	}
	if resp.Page.Total != 1 || resp.Page.TotalPages != 1 || resp.Page.HasMore {
		t.Errorf("page = %+v", resp.Page)
	}
	if resp.Mode != mode.ServedKeyword || !resp.SemanticAvailable() {
		t.Errorf("mode = %s, semanticAvailable = %v", resp.Mode, resp.SemanticAvailable())
	}
	if f.store.calls(kind.Law)+f.store.calls(kind.Scenario) != 0 {
		t.Error("section filter must not touch laws or scenarios")
	}
}

func TestSearch_Example2HybridFallback(t *testing.T) {
	seed := func(f *fixture) {
		f.store.rows[kind.Section] = []content.Row{
			sectionRow("s33", "Right to life", "Every person has a right to life.", testConstitution),
		}
		f.store.rows[kind.Scenario] = []content.Row{
			scenarioRow("c7", "Police shooting", "Was the right to life of the victim violated?"),
		}
		f.store.rows[kind.Law] = []content.Row{lawRow(testConstitution)}
	}
	params := query.Params{Text: "right to life", Strategy: mode.Hybrid}

	f := newFixture()
	seed(f)
	f.embed.err = fmt.Errorf("openai: %w", domain.ErrEmbeddingProviderError)

	resp, err := f.svc.Search(context.Background(), "user-1", params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Mode != mode.KeywordFallback {
		t.Errorf("mode = %s, want keyword_fallback", resp.Mode)
	}
	if resp.SemanticAvailable() {
		t.Error("semanticAvailable should be false on fallback")
	}

	direct := newFixture()
	seed(direct)
	kwParams := params
	kwParams.Strategy = mode.Keyword
	want, err := direct.svc.Search(context.Background(), "user-1", kwParams)
	if err != nil {
		t.Fatalf("direct keyword search: %v", err)
	}

	if resp.Page != want.Page {
		t.Errorf("page = %+v, want %+v", resp.Page, want.Page)
	}
	if len(resp.Results) != len(want.Results) {
		t.Fatalf("results = %d, want %d", len(resp.Results), len(want.Results))
	}
	for i := range want.Results {
		got, exp := resp.Results[i], want.Results[i]
		if got.Key() != exp.Key() || got.Score() != exp.Score() || got.Excerpt() != exp.Excerpt() {
			t.Errorf("results[%d] = %s %.2f, want %s %.2f", i, got.Key(), got.Score(), exp.Key(), exp.Score())
		}
	}
}

func TestSearch_ValidationRejectsBeforeRetrieval(t *testing.T) {
	tests := []struct {
		name   string
		params query.Params
	}{
		{"empty", query.Params{Text: ""}},
		{"whitespace", query.Params{Text: "   \t\n"}},
		{"too long", query.Params{Text: strings.Repeat("a", query.MaxTextLength+1)}},
		{"bad type", query.Params{Text: "bail", Filter: "statute"}},
		{"bad mode", query.Params{Text: "bail", Strategy: "fuzzy"}},
		{"bad page", query.Params{Text: "bail", Page: -1}},
		{"page offset overflows", query.Params{Text: "bail", Strategy: mode.Semantic, Page: 1<<62 + 1, PageSize: 2}},
		{"page size too large", query.Params{Text: "bail", PageSize: query.MaxPageSize + 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.Search(context.Background(), "user-1", tt.params)
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
			if f.gate.canCalls != 0 {
				t.Errorf("quota checked %d times before validation", f.gate.canCalls)
			}
			f.noRetrieval(t)
		})
	}
}

func TestSearch_QuotaExceeded(t *testing.T) {
	f := newFixture()
	f.gate.allow = false

	_, err := f.svc.Search(context.Background(), "user-1", query.Params{Text: "bail"})
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if f.gate.canCalls != 1 {
		t.Errorf("quota checks = %d, want 1", f.gate.canCalls)
	}
	f.noRetrieval(t)
}

func TestSearch_AnonymousSkipsQuota(t *testing.T) {
	f := newFixture()
	f.gate.allow = false
	f.store.rows[kind.Section] = []content.Row{sectionRow("s1", "Bail", "bail", testLaw)}

	resp, err := f.svc.Search(context.Background(), "", query.Params{Text: "bail", Strategy: mode.Keyword})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Errorf("results = %d, want 1", len(resp.Results))
	}
	if f.gate.canCalls != 0 {
		t.Errorf("quota checks = %d, want 0", f.gate.canCalls)
	}
	if len(f.gate.recorded) != 0 {
		t.Errorf("usage recorded for anonymous caller: %+v", f.gate.recorded)
	}
	if len(f.logs.entries) != 1 || f.logs.entries[0].Identity != "" {
		t.Errorf("log entries = %+v", f.logs.entries)
	}
}

func TestSearch_FallbackRunsKeywordOnce(t *testing.T) {
	causes := []struct {
		name string
		err  error
	}{
		{"provider", fmt.Errorf("embed: %w", domain.ErrEmbeddingProviderError)},
		{"budget", fmt.Errorf("budget check: %w", domain.ErrEmbeddingQuotaExceeded)},
		{"unclassified", errors.New("socket closed")},
	}
	for _, strategy := range []mode.Strategy{mode.Semantic, mode.Hybrid} {
		for _, c := range causes {
			t.Run(string(strategy)+"/"+c.name, func(t *testing.T) {
				f := newFixture()
				f.embed.err = c.err
				f.store.rows[kind.Section] = []content.Row{sectionRow("s1", "Bail", "bail", testLaw)}

				resp, err := f.svc.Search(context.Background(), "user-1", query.Params{
					Text: "bail", Strategy: strategy,
				})
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if resp.Mode != mode.KeywordFallback || resp.SemanticAvailable() {
					t.Errorf("mode = %s", resp.Mode)
				}
				if f.keyword.retrieveCalls != 1 {
					t.Errorf("keyword retrieve calls = %d, want 1", f.keyword.retrieveCalls)
				}
				if len(resp.Results) != 1 {
					t.Errorf("results = %d, want 1", len(resp.Results))
				}
			})
		}
	}
}

func TestSearch_VectorStoreFailureFallsBack(t *testing.T) {
	f := newFixture()
	f.vectors.err = errors.New("ivfflat index missing")
	f.store.rows[kind.Scenario] = []content.Row{scenarioRow("c1", "Eviction", "eviction notice")}

	resp, err := f.svc.Search(context.Background(), "", query.Params{Text: "eviction", Strategy: mode.Semantic})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Mode != mode.KeywordFallback {
		t.Errorf("mode = %s, want keyword_fallback", resp.Mode)
	}
}

func TestSearch_KeywordFailure(t *testing.T) {
	tests := []struct {
		name     string
		strategy mode.Strategy
		embedErr error
	}{
		{"keyword", mode.Keyword, nil},
		{"fallback", mode.Semantic, domain.ErrEmbeddingProviderError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.store.countErr = errors.New("connection refused")
			f.embed.err = tt.embedErr

			_, err := f.svc.Search(context.Background(), "user-1", query.Params{Text: "bail", Strategy: tt.strategy})
			if !errors.Is(err, domain.ErrRetrievalFailed) {
				t.Errorf("expected ErrRetrievalFailed, got %v", err)
			}
			if len(f.runner.names) != 0 {
				t.Errorf("side effects on failure: %v", f.runner.names)
			}
		})
	}
}

func TestSearch_SemanticPagination(t *testing.T) {
	f := newFixture()
	for i := range 12 {
		f.vectors.sections = append(f.vectors.sections,
			sectionHit(fmt.Sprintf("s%02d", i), 0.95-float64(i)*0.01, nil))
	}

	resp, err := f.svc.Search(context.Background(), "", query.Params{
		Text: "tenancy", Filter: kind.OnlySections, Strategy: mode.Semantic, Page: 2, PageSize: 5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Mode != mode.ServedSemantic || !resp.SemanticAvailable() {
		t.Errorf("mode = %s", resp.Mode)
	}
	if len(resp.Results) != 5 || resp.Results[0].ID() != "s05" {
		t.Errorf("page 2 = %d results starting at %v", len(resp.Results), resp.Results)
	}
	if resp.Page.Total != 12 || resp.Page.TotalPages != 3 || !resp.Page.HasMore {
		t.Errorf("page = %+v", resp.Page)
	}
	if f.store.totalCalls() != 0 {
		t.Error("semantic search must not run keyword retrieval")
	}
}

func TestSearch_PageBeyondPool(t *testing.T) {
	f := newFixture()
	f.vectors.sections = []content.Hit{sectionHit("s1", 0.9, nil)}

	resp, err := f.svc.Search(context.Background(), "", query.Params{
		Text: "bail", Filter: kind.OnlySections, Strategy: mode.Semantic, Page: 5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Results) != 0 || resp.Page.Total != 1 || resp.Page.HasMore {
		t.Errorf("results = %d, page = %+v", len(resp.Results), resp.Page)
	}
}

func TestSearch_FarPageWithinRange(t *testing.T) {
	f := newFixture()
	f.vectors.sections = []content.Hit{sectionHit("s1", 0.9, nil)}

	resp, err := f.svc.Search(context.Background(), "", query.Params{
		Text: "bail", Filter: kind.OnlySections, Strategy: mode.Semantic, Page: 1 << 40, PageSize: 50,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Results) != 0 || resp.Page.Total != 1 {
		t.Errorf("results = %d, page = %+v", len(resp.Results), resp.Page)
	}
}

func TestSearch_EmptySemanticPool(t *testing.T) {
	f := newFixture()

	resp, err := f.svc.Search(context.Background(), "", query.Params{Text: "obscure", Strategy: mode.Semantic})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Mode != mode.ServedSemantic {
		t.Errorf("mode = %s, want semantic", resp.Mode)
	}
	if resp.Page.Total != 0 || resp.Page.TotalPages != 0 || resp.Page.HasMore {
		t.Errorf("page = %+v", resp.Page)
	}
}

func TestSearch_LawFilterUsesSectionHits(t *testing.T) {
	f := newFixture()
	f.vectors.sections = []content.Hit{
		sectionHit("s1", 0.9, testConstitution),
		sectionHit("s2", 0.7, testLaw),
	}
	f.vectors.scenarios = []content.Hit{scenarioHit("c1", 0.95)}

	resp, err := f.svc.Search(context.Background(), "", query.Params{
		Text: "right to life", Filter: kind.OnlyLaws, Strategy: mode.Semantic,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(resp.Results))
	}
	for _, r := range resp.Results {
		if r.Kind() != kind.Law {
			t.Errorf("kind = %s, want law", r.Kind())
		}
	}
	if resp.Results[0].ID() != testConstitution.ID {
		t.Errorf("first = %s", resp.Results[0].ID())
	}
}

func TestSearch_HybridSectionFilterIsolation(t *testing.T) {
	f := newFixture()
	f.store.rows[kind.Section] = []content.Row{sectionRow("s1", "Bail", "bail", testLaw)}
	f.vectors.sections = []content.Hit{sectionHit("s1", 0.8, testLaw)}

	resp, err := f.svc.Search(context.Background(), "", query.Params{
		Text: "bail", Filter: kind.OnlySections, Strategy: mode.Hybrid,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Mode != mode.ServedHybrid {
		t.Errorf("mode = %s", resp.Mode)
	}
	if f.store.calls(kind.Law)+f.store.calls(kind.Scenario) != 0 || f.vectors.scenarioCalls != 0 {
		t.Error("section filter touched other kinds")
	}
	for _, r := range resp.Results {
		if r.Kind() != kind.Section {
			t.Errorf("kind = %s", r.Kind())
		}
	}
}

func TestSearch_SideEffects(t *testing.T) {
	f := newFixture()
	f.store.rows[kind.Section] = []content.Row{sectionRow("s1", "Bail", "bail", testLaw)}
	raw := "bail\x00\x07 " + strings.Repeat("x", 300)

	_, err := f.svc.Search(context.Background(), "user-9", query.Params{
		Text: raw, Strategy: mode.Keyword, LawIDs: []string{"law-acja"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.runner.names) != 2 || f.runner.names[0] != taskSearchLog || f.runner.names[1] != taskUsageRecord {
		t.Errorf("tasks = %v", f.runner.names)
	}

	if len(f.logs.entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(f.logs.entries))
	}
	e := f.logs.entries[0]
	if len([]rune(e.QueryText)) > searchlog.MaxQueryLength {
		t.Errorf("logged query length = %d", len([]rune(e.QueryText)))
	}
	if strings.ContainsAny(e.QueryText, "\x00\x07") {
		t.Errorf("logged query kept control characters: %q", e.QueryText)
	}
	if e.Identity != "user-9" || e.Mode != mode.ServedKeyword || e.Filter != kind.All {
		t.Errorf("entry = %+v", e)
	}

	if len(f.gate.recorded) != 1 {
		t.Fatalf("usage records = %d, want 1", len(f.gate.recorded))
	}
	u := f.gate.recorded[0]
	if u.event != usage.EventSearch || u.id != "user-9" {
		t.Errorf("usage = %+v", u)
	}
	if u.meta["mode"] != "keyword" || u.meta["filter"] != "all" || u.meta["lawIds"] != "law-acja" {
		t.Errorf("usage metadata = %v", u.meta)
	}
}

func TestSearch_SideEffectFailuresAreSwallowed(t *testing.T) {
	f := newFixture()
	f.logs.err = errors.New("search_logs insert failed")
	f.gate.recordErr = errors.New("redis down")
	f.store.rows[kind.Section] = []content.Row{sectionRow("s1", "Bail", "bail", testLaw)}

	resp, err := f.svc.Search(context.Background(), "user-1", query.Params{Text: "bail", Strategy: mode.Keyword})
	if err != nil {
		t.Fatalf("side effect failure leaked: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Errorf("results = %d, want 1", len(resp.Results))
	}
	if len(f.runner.errs) != 2 {
		t.Errorf("task errors = %d, want 2", len(f.runner.errs))
	}
}
