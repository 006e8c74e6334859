package backend_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/whisvoice/internal/resilience"
	"github.com/MrWong99/whisvoice/pkg/backend"
)

type stubTranscriber struct {
	text string
	err  error
}

func (s stubTranscriber) Transcribe(ctx context.Context, input backend.BatchInput) (string, error) {
	return s.text, s.err
}

func TestFallbackTranscriber_PrimarySuccess(t *testing.T) {
	ft := backend.NewFallbackTranscriber(stubTranscriber{text: "primary"}, "primary", resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{MaxFailures: 3},
	})
	ft.AddFallback("secondary", stubTranscriber{text: "secondary"})

	text, err := ft.Transcribe(context.Background(), backend.BatchInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "primary" {
		t.Fatalf("text = %q, want primary", text)
	}
}

func TestFallbackTranscriber_FallsThroughOnPrimaryFailure(t *testing.T) {
	primaryErr := errors.New("primary down")
	ft := backend.NewFallbackTranscriber(stubTranscriber{err: primaryErr}, "primary", resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{MaxFailures: 3},
	})
	ft.AddFallback("secondary", stubTranscriber{text: "secondary"})

	text, err := ft.Transcribe(context.Background(), backend.BatchInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "secondary" {
		t.Fatalf("text = %q, want secondary", text)
	}
}

func TestFallbackTranscriber_AllFail(t *testing.T) {
	ft := backend.NewFallbackTranscriber(stubTranscriber{err: errors.New("primary down")}, "primary", resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{MaxFailures: 3},
	})
	ft.AddFallback("secondary", stubTranscriber{err: errors.New("secondary down")})

	_, err := ft.Transcribe(context.Background(), backend.BatchInput{})
	if !errors.Is(err, resilience.ErrAllFailed) {
		t.Fatalf("expected ErrAllFailed, got: %v", err)
	}
}
