package backend

import (
	"context"

	"github.com/MrWong99/whisvoice/internal/resilience"
)

// FallbackTranscriber wraps a primary BatchTranscriber and zero or more
// fallback instances behind resilience.FallbackGroup: each entry gets its
// own circuit breaker, and a segment is retried against the next healthy
// entry in registration order when the current one fails or its breaker is
// open. This is the adapted form of the teacher's
// internal/resilience.FallbackGroup, generalised from "primary/fallback LLM
// provider" to "primary/fallback cloud transcription backend" — the
// composite-failure shape (wrap, skip open breakers, report the last error)
// is identical.
//
// cmd/whisvoice's buildBackend constructs one directly when a config sets
// backend.fallback; there is no registry entry for it. FallbackTranscriber
// itself has no opinion on how its entries were built.
type FallbackTranscriber struct {
	group *resilience.FallbackGroup[BatchTranscriber]
}

// NewFallbackTranscriber returns a FallbackTranscriber with primary as its
// first (and initially only) entry.
func NewFallbackTranscriber(primary BatchTranscriber, primaryName string, cfg resilience.FallbackConfig) *FallbackTranscriber {
	return &FallbackTranscriber{
		group: resilience.NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback appends a fallback backend, tried after every entry already
// registered.
func (f *FallbackTranscriber) AddFallback(name string, b BatchTranscriber) {
	f.group.AddFallback(name, b)
}

// Transcribe tries the primary backend first, falling through to each
// registered fallback in order. Returns the first success, or
// resilience.ErrAllFailed wrapping the last entry's error.
func (f *FallbackTranscriber) Transcribe(ctx context.Context, input BatchInput) (string, error) {
	return resilience.ExecuteWithResult(f.group, func(b BatchTranscriber) (string, error) {
		return b.Transcribe(ctx, input)
	})
}
