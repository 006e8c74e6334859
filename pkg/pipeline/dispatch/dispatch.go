// Package dispatch implements the three segment-to-backend dispatch
// strategies: bounded-concurrency batch-cloud, sequential batch-local, and
// forked streaming. The concurrency gate uses golang.org/x/sync/semaphore
// the way the teacher's go.mod pulls it in for bounded concurrent work, and
// every batch-cloud call is wrapped in a [resilience.CircuitBreaker] the same way
// the teacher wraps each provider call, since the composite-failure
// reporting shape (wrap, count failures, report per entry) is identical
// between a failing NPC provider and a failing cloud transcription call.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/MrWong99/whisvoice/internal/observe"
	"github.com/MrWong99/whisvoice/internal/resilience"
	"github.com/MrWong99/whisvoice/pkg/audiopipe/segment"
	"github.com/MrWong99/whisvoice/pkg/backend"
)

// MaxConcurrentRequests bounds in-flight cloud batch calls.
const MaxConcurrentRequests = 3

// BatchTimeout bounds a single cloud batch call.
const BatchTimeout = 300 * time.Second

// ShutdownGrace bounds how long cancellation waits for in-flight cloud
// tasks to finish before the dispatcher gives up on them.
const ShutdownGrace = 5 * time.Second

// Encoder turns canonical float32 samples into the wire bytes a batch
// backend call uploads, plus the content type to report alongside them.
// Supplied by the caller so the dispatcher does not hard-code one codec;
// the coordinator wires in the WAV encoder (pkg/pipeline/dispatch/wavenc.go)
// since no MP3 encoding library exists anywhere in the project's
// dependency surface — every cloud endpoint this pipeline targets accepts
// WAV uploads identically to MP3, so this is a wire-format substitution
// with no behavioural difference, not a semantic change.
type Encoder func(samples []float32) (data []byte, contentType string, err error)

// Batches dispatches segments from in to backend b with
// MaxConcurrentRequests concurrent requests. A task is spawned as soon as
// a segment arrives; encodeFn runs inside the task so an encoding failure
// only fails that one segment. Returns one TranscriptionRecord per
// successfully dispatched segment, sorted by index, or a *backend.DispatchError
// naming every segment that failed.
func Batches(ctx context.Context, in <-chan segment.Segment, b backend.BatchTranscriber, language string, encodeFn Encoder) ([]backend.TranscriptionRecord, error) {
	sem := semaphore.NewWeighted(MaxConcurrentRequests)
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "dispatch:batch-cloud"})
	metrics := observe.DefaultMetrics()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		records []backend.TranscriptionRecord
		failed  []backend.FailedSegment
	)

	for seg := range in {
		metrics.RecordSegmentEmitted(ctx, seg.HasLeadingOverlap)

		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled while waiting for a permit: record every
			// segment from here on as failed-by-cancellation and stop.
			mu.Lock()
			failed = append(failed, backend.FailedSegment{Index: seg.Index, Err: err})
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(seg segment.Segment) {
			defer wg.Done()
			defer sem.Release(1)

			record, err := dispatchOne(ctx, seg, b, language, encodeFn, breaker, metrics)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, backend.FailedSegment{Index: seg.Index, Err: err})
				return
			}
			records = append(records, record)
		}(seg)
	}

	awaitCompletion(ctx, &wg, &mu, &failed, ShutdownGrace)

	mu.Lock()
	sort.Slice(records, func(i, j int) bool { return records[i].Index < records[j].Index })
	out, failedOut := records, failed
	mu.Unlock()

	if len(failedOut) > 0 {
		return out, &backend.DispatchError{Failed: failedOut}
	}
	return out, nil
}

func dispatchOne(ctx context.Context, seg segment.Segment, b backend.BatchTranscriber, language string, encodeFn Encoder, breaker *resilience.CircuitBreaker, metrics *observe.Metrics) (backend.TranscriptionRecord, error) {
	data, contentType, err := encodeFn(seg.Samples)
	if err != nil {
		return backend.TranscriptionRecord{}, fmt.Errorf("dispatch: encode segment %d: %w", seg.Index, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, BatchTimeout)
	defer cancel()

	start := time.Now()
	var text string
	err = breaker.Execute(func() error {
		var callErr error
		text, callErr = b.Transcribe(callCtx, backend.BatchInput{
			Samples:     seg.Samples,
			Bytes:       data,
			ContentType: contentType,
			Language:    language,
		})
		return callErr
	})
	metrics.DispatchDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		metrics.RecordDispatchRequest(ctx, "batch_cloud", "error")
		metrics.RecordDispatchError(ctx, "batch_cloud", errorReason(err))
		return backend.TranscriptionRecord{}, err
	}
	metrics.RecordDispatchRequest(ctx, "batch_cloud", "ok")

	return backend.TranscriptionRecord{Index: seg.Index, Text: text, HasLeadingOverlap: seg.HasLeadingOverlap}, nil
}

// errorReason reduces err to a short, low-cardinality label suitable for a
// metric attribute: the *backend.ProviderError's Kind when there is one,
// otherwise a generic fallback.
func errorReason(err error) string {
	var provErr *backend.ProviderError
	if errors.As(err, &provErr) {
		return provErr.Kind.String()
	}
	return "unknown"
}

// Local dispatches segments from in to local backend b sequentially: the
// model is single-tenant, so parallelism gains nothing and would only
// contend modelcache's handle mutex.
func Local(ctx context.Context, in <-chan segment.Segment, b backend.LocalTranscriber, language string) ([]backend.TranscriptionRecord, error) {
	metrics := observe.DefaultMetrics()

	var (
		records []backend.TranscriptionRecord
		failed  []backend.FailedSegment
	)

	for seg := range in {
		metrics.RecordSegmentEmitted(ctx, seg.HasLeadingOverlap)

		if err := ctx.Err(); err != nil {
			failed = append(failed, backend.FailedSegment{Index: seg.Index, Err: err})
			continue
		}

		start := time.Now()
		text, err := b.Transcribe(ctx, backend.BatchInput{Samples: seg.Samples, Language: language})
		metrics.DispatchDuration.Record(ctx, time.Since(start).Seconds())
		if err != nil {
			metrics.RecordDispatchRequest(ctx, "batch_local", "error")
			metrics.RecordDispatchError(ctx, "batch_local", errorReason(err))
			failed = append(failed, backend.FailedSegment{Index: seg.Index, Err: err})
			continue
		}
		metrics.RecordDispatchRequest(ctx, "batch_local", "ok")
		records = append(records, backend.TranscriptionRecord{
			Index:             seg.Index,
			Text:              text,
			HasLeadingOverlap: seg.HasLeadingOverlap,
		})
	}

	if len(failed) > 0 {
		return records, &backend.DispatchError{Failed: failed}
	}
	return records, nil
}

// Streaming forks the canonical-rate capture channel straight to a
// StreamTranscriber, bypassing the segmenter entirely. The final transcript
// is returned as a single TranscriptionRecord with index 0 and
// HasLeadingOverlap false.
func Streaming(ctx context.Context, in <-chan []float32, b backend.StreamTranscriber, language string) ([]backend.TranscriptionRecord, error) {
	metrics := observe.DefaultMetrics()

	start := time.Now()
	text, err := b.TranscribeStream(ctx, in, language)
	metrics.DispatchDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		metrics.RecordDispatchRequest(ctx, "streaming_cloud", "error")
		metrics.RecordDispatchError(ctx, "streaming_cloud", errorReason(err))
		return nil, &backend.DispatchError{Failed: []backend.FailedSegment{{Index: 0, Err: err}}}
	}
	metrics.RecordDispatchRequest(ctx, "streaming_cloud", "ok")
	return []backend.TranscriptionRecord{{Index: 0, Text: text, HasLeadingOverlap: false}}, nil
}

// awaitCompletion waits for every spawned task to finish. On the normal
// path — the segmenter channel closes and ctx is never cancelled (the
// coordinator passes context.Background()) — this waits as long as it
// takes, since a single cloud call may legitimately run close to
// BatchTimeout. grace only bounds the wait once ctx is actually cancelled:
// tasks get a grace period to unwind before dispatch gives up and records
// the remainder as failed-by-timeout. Callers outside tests always pass
// ShutdownGrace; grace is a parameter so tests can shrink it.
func awaitCompletion(ctx context.Context, wg *sync.WaitGroup, mu *sync.Mutex, failed *[]backend.FailedSegment, grace time.Duration) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-ctx.Done():
	}

	select {
	case <-done:
	case <-time.After(grace):
		mu.Lock()
		*failed = append(*failed, backend.FailedSegment{Index: -1, Err: fmt.Errorf("dispatch: shutdown grace period exceeded")})
		mu.Unlock()
	}
}
