// Package observe provides application-wide observability primitives for
// whisvoice: OpenTelemetry metrics, distributed tracing, and structured
// logging.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all whisvoice metrics.
const meterName = "github.com/MrWong99/whisvoice"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// SegmentDuration tracks the wall-clock duration of segments emitted by
	// the segmenter, from first sample to flush.
	SegmentDuration metric.Float64Histogram

	// DispatchDuration tracks backend transcription request latency.
	DispatchDuration metric.Float64Histogram

	// PostProcessDuration tracks LLM rewrite latency.
	PostProcessDuration metric.Float64Histogram

	// --- Counters ---

	// CaptureDrops counts audio chunks dropped because the capture stream's
	// bounded channel was full. Use with attribute: attribute.String("device", ...)
	CaptureDrops metric.Int64Counter

	// SegmentsEmitted counts segments handed to the dispatcher. Use with
	// attribute: attribute.Bool("has_leading_overlap", ...)
	SegmentsEmitted metric.Int64Counter

	// DispatchRequests counts backend transcription requests. Use with
	// attributes: attribute.String("backend", ...), attribute.String("status", ...)
	DispatchRequests metric.Int64Counter

	// MergeTrimmedWords counts words trimmed from a record's leading overlap
	// by the overlap merger.
	MergeTrimmedWords metric.Int64Counter

	// --- Error counters ---

	// DispatchErrors counts failed backend transcription requests. Use with
	// attributes: attribute.String("backend", ...), attribute.String("reason", ...)
	DispatchErrors metric.Int64Counter

	// PostProcessErrors counts failed post-processing rewrite calls. Use with
	// attribute: attribute.String("kind", ...)
	PostProcessErrors metric.Int64Counter

	// --- Gauges ---

	// ActivePipelines tracks the number of currently running recording
	// pipelines (0 or 1, per the single-session invariant).
	ActivePipelines metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.SegmentDuration, err = m.Float64Histogram("whisvoice.segment.duration",
		metric.WithDescription("Wall-clock duration of emitted segments."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DispatchDuration, err = m.Float64Histogram("whisvoice.dispatch.duration",
		metric.WithDescription("Latency of backend transcription requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PostProcessDuration, err = m.Float64Histogram("whisvoice.postprocess.duration",
		metric.WithDescription("Latency of LLM post-processing rewrite calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.CaptureDrops, err = m.Int64Counter("whisvoice.capture.drops",
		metric.WithDescription("Total audio chunks dropped due to back-pressure."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsEmitted, err = m.Int64Counter("whisvoice.segments.emitted",
		metric.WithDescription("Total segments handed to the dispatcher."),
	); err != nil {
		return nil, err
	}
	if met.DispatchRequests, err = m.Int64Counter("whisvoice.dispatch.requests",
		metric.WithDescription("Total backend transcription requests by backend and status."),
	); err != nil {
		return nil, err
	}
	if met.MergeTrimmedWords, err = m.Int64Counter("whisvoice.merge.trimmed_words",
		metric.WithDescription("Total words trimmed by the overlap merger."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.DispatchErrors, err = m.Int64Counter("whisvoice.dispatch.errors",
		metric.WithDescription("Total failed backend transcription requests by backend and reason."),
	); err != nil {
		return nil, err
	}
	if met.PostProcessErrors, err = m.Int64Counter("whisvoice.postprocess.errors",
		metric.WithDescription("Total failed post-processing rewrite calls by kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActivePipelines, err = m.Int64UpDownCounter("whisvoice.active_pipelines",
		metric.WithDescription("Number of currently running recording pipelines."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordDispatchRequest is a convenience method that records a backend
// dispatch request counter increment with the standard attribute set.
func (m *Metrics) RecordDispatchRequest(ctx context.Context, backendName, status string) {
	m.DispatchRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("backend", backendName),
			attribute.String("status", status),
		),
	)
}

// RecordSegmentEmitted is a convenience method that records a segment
// counter increment.
func (m *Metrics) RecordSegmentEmitted(ctx context.Context, hasLeadingOverlap bool) {
	m.SegmentsEmitted.Add(ctx, 1,
		metric.WithAttributes(attribute.Bool("has_leading_overlap", hasLeadingOverlap)),
	)
}

// RecordCaptureDrop is a convenience method that records a capture
// back-pressure drop.
func (m *Metrics) RecordCaptureDrop(ctx context.Context, device string) {
	m.CaptureDrops.Add(ctx, 1,
		metric.WithAttributes(attribute.String("device", device)),
	)
}

// RecordDispatchError is a convenience method that records a dispatch error
// counter increment.
func (m *Metrics) RecordDispatchError(ctx context.Context, backendName, reason string) {
	m.DispatchErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("backend", backendName),
			attribute.String("reason", reason),
		),
	)
}

// RecordPostProcessError is a convenience method that records a
// post-processing error counter increment.
func (m *Metrics) RecordPostProcessError(ctx context.Context, kind string) {
	m.PostProcessErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}
