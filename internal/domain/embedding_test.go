package domain

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	result EmbeddingResult
	err    error
	got    string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	s.got = text
	return s.result, s.err
}

type healthyStub struct {
	stubEmbedder
	healthErr error
}

func (h *healthyStub) HealthCheck(_ context.Context) error { return h.healthErr }

func TestInstructionEmbedder_PrependsInstruction(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}}
	emb := NewInstructionEmbedder(inner, "search_query: ")

	result, err := emb.Embed(context.Background(), "right to life")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.got != "search_query: right to life" {
		t.Errorf("expected prepended text, got %q", inner.got)
	}
	if len(result.Embedding) != 3 {
		t.Errorf("expected 3-element vector, got %d", len(result.Embedding))
	}
}

func TestInstructionEmbedder_ErrorPropagation(t *testing.T) {
	inner := &stubEmbedder{err: ErrEmbeddingProviderError}
	emb := NewInstructionEmbedder(inner, "search_query: ")

	_, err := emb.Embed(context.Background(), "arrest")
	if !errors.Is(err, ErrEmbeddingProviderError) {
		t.Errorf("expected wrapped provider error, got %v", err)
	}
}

func TestInstructionEmbedder_HealthCheckForwarded(t *testing.T) {
	down := errors.New("down")
	emb := NewInstructionEmbedder(&healthyStub{healthErr: down}, "")
	if err := emb.HealthCheck(context.Background()); !errors.Is(err, down) {
		t.Errorf("expected inner health error, got %v", err)
	}

	plain := NewInstructionEmbedder(&stubEmbedder{}, "")
	if err := plain.HealthCheck(context.Background()); err != nil {
		t.Errorf("expected nil for embedder without health check, got %v", err)
	}
}

func TestValidationError_UnwrapsToSentinel(t *testing.T) {
	err := NewValidationError("q", "must not be empty")
	if !errors.Is(err, ErrValidation) {
		t.Fatal("expected errors.Is(err, ErrValidation)")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "q" {
		t.Errorf("expected field q, got %+v", ve)
	}
}

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()
	if !IdentityFromContext(ctx).Anonymous() {
		t.Error("empty context should be anonymous")
	}
	ctx = ContextWithIdentity(ctx, "user-42")
	if got := IdentityFromContext(ctx); got != "user-42" {
		t.Errorf("expected user-42, got %q", got)
	}
}
