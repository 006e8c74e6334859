// Package pipeline wires the resampler, VAD, segmenter, dispatcher, overlap
// merger, and post-processor into the top-level object a consumer (CLI,
// hotkey handler, system-tray icon) actually calls: Start/Stop/Status. It is
// grounded on the teacher's internal/app.App for subsystem wiring and
// ordered-closer shutdown, and on internal/app/SessionManager for the
// single-active-session guard — generalised here from "one Discord voice
// session per guild" to "at most one recording pipeline per process",
// the same mutex-guarded active-bool shape applied to a narrower invariant.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/whisvoice/internal/observe"
	"github.com/MrWong99/whisvoice/pkg/audiopipe/capture"
	"github.com/MrWong99/whisvoice/pkg/audiopipe/resample"
	"github.com/MrWong99/whisvoice/pkg/audiopipe/segment"
	"github.com/MrWong99/whisvoice/pkg/audiopipe/vad"
	"github.com/MrWong99/whisvoice/pkg/backend"
	"github.com/MrWong99/whisvoice/pkg/pipeline/dispatch"
	"github.com/MrWong99/whisvoice/pkg/pipeline/merge"
	"github.com/MrWong99/whisvoice/pkg/pipeline/postprocess"
)

// State is the session's lifecycle position. Idle->Recording on Start;
// Recording->Transcribing when Stop is called (capture torn down, segments
// draining); Transcribing->Idle once the final transcript is produced or a
// fatal error occurs. No other transition is legal.
type State int32

const (
	Idle State = iota
	Recording
	Transcribing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Transcribing:
		return "transcribing"
	default:
		return "unknown"
	}
}

// Sink delivers the final transcript to wherever the caller wants it
// (clipboard, autotype, stdout). The core only ever calls this function; it
// never implements one itself — concrete sinks live in internal/sink.
type Sink func(text string) error

// segmentBufferSize is the segmenter->dispatcher channel's buffer. The
// channel is "unbounded" in the design sense (the dispatcher must never
// block the segmenter waiting for a consumer): in practice segments take on
// the order of a minute to form, so any reasonably large buffer never fills
// during a single session.
const segmentBufferSize = 256

// streamBufferSize buffers canonical samples forked straight to a streaming
// backend, bypassing the segmenter.
const streamBufferSize = 64

// warmupTimeout bounds the optional connectivity probe issued against the
// transcriber before capture begins.
const warmupTimeout = 5 * time.Second

// Config is the immutable snapshot passed once at Start. Changes made to a
// Config value after Start has returned do not apply to that session.
type Config struct {
	// Capture selects the input device and its native format.
	Capture capture.Config

	// VAD configures voice-activity gating. Zero value runs the built-in
	// energy scorer with default thresholds; set VAD.Disabled to skip
	// gating entirely.
	VAD vad.Config

	// Segment configures the progressive segmenter. Ignored when Kind is
	// backend.KindStreamingCloud.
	Segment segment.Config

	// Kind selects the dispatch strategy, mirroring the Descriptor the
	// Transcriber was built from.
	Kind backend.Kind

	// Transcriber is the already-constructed backend instance. It must
	// additionally implement backend.LocalTranscriber when Kind is
	// KindBatchLocal, or backend.StreamTranscriber when Kind is
	// KindStreamingCloud.
	Transcriber backend.BatchTranscriber

	// Language is an optional ISO 639-1 hint forwarded to the backend.
	Language string

	// Encoder turns a segment's canonical samples into upload bytes for
	// batch-cloud dispatch. Nil selects dispatch.EncodeWAV.
	Encoder dispatch.Encoder

	// PostProcess configures the optional second-pass LLM rewrite. The
	// zero value (Kind: postprocess.None) passes the merged transcript
	// through unchanged.
	PostProcess postprocess.Config

	// Sink receives the final transcript. Required.
	Sink Sink
}

func (cfg Config) validate() error {
	if cfg.Transcriber == nil {
		return &backend.ConfigError{Reason: "pipeline: Config.Transcriber must not be nil"}
	}
	if cfg.Kind == backend.KindBatchLocal {
		if _, ok := cfg.Transcriber.(backend.LocalTranscriber); !ok {
			return &backend.ConfigError{Reason: "pipeline: KindBatchLocal requires a backend.LocalTranscriber"}
		}
	}
	if cfg.Kind == backend.KindStreamingCloud {
		if _, ok := cfg.Transcriber.(backend.StreamTranscriber); !ok {
			return &backend.ConfigError{Reason: "pipeline: KindStreamingCloud requires a backend.StreamTranscriber"}
		}
	}
	if cfg.Sink == nil {
		return &backend.ConfigError{Reason: "pipeline: Config.Sink must not be nil"}
	}
	return nil
}

// Coordinator enforces the at-most-one-active-session-per-process
// invariant. The package-level Start/Stop functions operate against a
// shared default Coordinator; construct one explicitly (via NewCoordinator)
// only for tests that want an isolated guard.
type Coordinator struct {
	mu     sync.Mutex
	active bool
}

// NewCoordinator returns a Coordinator with no active session.
func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

var defaultCoordinator = NewCoordinator()

// Start begins a new recording session against the shared default
// Coordinator. See (*Coordinator).Start.
func Start(cfg Config) (*Handle, error) {
	return defaultCoordinator.Start(cfg)
}

// Start validates cfg, transitions Idle->Recording, and begins capturing
// and processing audio in the background. Returns a *backend.ConfigError
// without touching any device if cfg is invalid or a session is already
// active.
func (c *Coordinator) Start(cfg Config) (*Handle, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return nil, &backend.ConfigError{Reason: "pipeline: a recording session is already active"}
	}
	c.active = true
	c.mu.Unlock()

	warmupCtx, warmupCancel := context.WithTimeout(context.Background(), warmupTimeout)
	if err := backend.WarmupProbe(warmupCtx, cfg.Transcriber); err != nil {
		slog.Warn("pipeline: warmup probe failed, proceeding anyway", "err", err)
	}
	warmupCancel()

	streamCtx, streamCancel := context.WithCancel(context.Background())

	stream, err := capture.Start(streamCtx, cfg.Capture)
	if err != nil {
		streamCancel()
		c.release()
		return nil, err
	}

	h := &Handle{
		coord:        c,
		cfg:          cfg,
		stream:       stream,
		streamCancel: streamCancel,
		done:         make(chan runResult, 1),
	}
	h.state.Store(int32(Recording))

	go h.run()

	return h, nil
}

func (c *Coordinator) release() {
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
}

// runResult is what the background pipeline goroutine hands back to Stop.
type runResult struct {
	text string
	err  error
}

// Handle is the live handle returned by Start. One Handle corresponds to
// exactly one recording session; only its first Stop call returns the
// transcript.
type Handle struct {
	coord *Coordinator
	cfg   Config

	stream       *capture.Stream
	streamCancel context.CancelFunc

	state    atomic.Int32
	stopOnce sync.Once
	done     chan runResult
}

// Status reports the session's current lifecycle position.
func (h *Handle) Status() State {
	return State(h.state.Load())
}

// Stop transitions Recording->Transcribing: it terminates capture, drains
// whatever segments are already in flight, runs the merger and
// post-processor, transitions to Idle, and returns the final transcript.
// Calling Stop more than once, or calling it concurrently with ctx
// cancellation, is safe; only the first call's outcome is observable.
func (h *Handle) Stop(ctx context.Context) (string, error) {
	h.stopOnce.Do(func() {
		h.state.Store(int32(Transcribing))
		if err := h.stream.Stop(); err != nil {
			slog.Warn("pipeline: capture stop error", "err", err)
		}
	})

	select {
	case res, ok := <-h.done:
		if !ok {
			return "", fmt.Errorf("pipeline: session already stopped")
		}
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// run owns the whole capture-to-sink graph for one session. It exits only
// once the dispatcher has returned. The dispatcher runs on
// context.Background(), so its shutdown grace period never applies here;
// Stop's wait on h.done is bounded only by the ctx passed to Stop.
func (h *Handle) run() {
	defer h.coord.release()

	resampler, err := resample.New(int(h.stream.SampleRate()), int(h.stream.Channels()))
	if err != nil {
		h.finish(runResult{err: fmt.Errorf("pipeline: build resampler: %w", err)})
		return
	}
	detector := vad.New(h.cfg.VAD)
	segmenter := segment.New(h.cfg.Segment)

	streaming := h.cfg.Kind == backend.KindStreamingCloud

	segCh := make(chan segment.Segment, segmentBufferSize)
	streamCh := make(chan []float32, streamBufferSize)

	var records []backend.TranscriptionRecord
	var dispatchErr error
	dispatchDone := make(chan struct{})

	go func() {
		defer close(dispatchDone)
		switch h.cfg.Kind {
		case backend.KindBatchCloud:
			encodeFn := h.cfg.Encoder
			if encodeFn == nil {
				encodeFn = dispatch.EncodeWAV
			}
			records, dispatchErr = dispatch.Batches(context.Background(), segCh, h.cfg.Transcriber, h.cfg.Language, encodeFn)
		case backend.KindBatchLocal:
			local := h.cfg.Transcriber.(backend.LocalTranscriber)
			records, dispatchErr = dispatch.Local(context.Background(), segCh, local, h.cfg.Language)
		case backend.KindStreamingCloud:
			streamer := h.cfg.Transcriber.(backend.StreamTranscriber)
			records, dispatchErr = dispatch.Streaming(context.Background(), streamCh, streamer, h.cfg.Language)
		default:
			dispatchErr = &backend.ConfigError{Reason: fmt.Sprintf("pipeline: unknown backend.Kind %d", h.cfg.Kind)}
		}
	}()

	var droppedSegments int
	for chunk := range h.stream.Chunks() {
		canonical := resampler.Process(chunk.Samples)
		if len(canonical) == 0 {
			continue
		}

		if streaming {
			sendSamples(streamCh, h.cfg.Capture.DeviceName, canonical)
			continue
		}

		gated, err := detector.Process(canonical)
		if err != nil {
			slog.Warn("pipeline: vad error, dropping frame batch", "err", err)
			continue
		}
		if len(gated) == 0 {
			continue
		}
		pushSegment(segmenter, segCh, h.cfg.Capture.DeviceName, gated, !detector.State().Speaking, &droppedSegments)
	}
	if droppedSegments > 0 {
		slog.Warn("pipeline: segment channel saturated, segments dropped", "count", droppedSegments)
	}

	// Capture closed (Stop was called): flush the resampler and VAD tails,
	// emit the segmenter's final segment, then close whichever downstream
	// channel the dispatcher is reading.
	if streaming {
		if tail := resampler.Flush(); len(tail) > 0 {
			sendSamples(streamCh, h.cfg.Capture.DeviceName, tail)
		}
		close(streamCh)
	} else {
		if tail := resampler.Flush(); len(tail) > 0 {
			if gated, err := detector.Process(tail); err == nil && len(gated) > 0 {
				pushSegment(segmenter, segCh, h.cfg.Capture.DeviceName, gated, !detector.State().Speaking, &droppedSegments)
			}
		}
		if tail := detector.Flush(); len(tail) > 0 {
			pushSegment(segmenter, segCh, h.cfg.Capture.DeviceName, tail, true, &droppedSegments)
		}
		if seg, ok := segmenter.Flush(); ok {
			segCh <- seg
		}
		close(segCh)
	}

	<-dispatchDone

	if dispatchErr != nil {
		h.finish(runResult{err: dispatchErr})
		return
	}

	merged := merge.Records(records)

	rewritten, ppErr := postprocess.Run(context.Background(), h.cfg.PostProcess, merged)
	if ppErr != nil {
		slog.Warn("pipeline: post-processing failed, delivering raw transcript", "err", ppErr)
	}

	if err := h.cfg.Sink(rewritten); err != nil {
		slog.Warn("pipeline: sink delivery failed", "err", err)
	}

	h.finish(runResult{text: rewritten})
}

func (h *Handle) finish(res runResult) {
	h.state.Store(int32(Idle))
	h.done <- res
	close(h.done)
}

// sendSamples forwards canonical samples to a streaming backend's input
// channel, never blocking the capture loop: a full channel means the
// streaming backend has fallen behind, which is reported rather than
// allowed to stall capture.
func sendSamples(ch chan<- []float32, device string, samples []float32) {
	select {
	case ch <- samples:
	default:
		slog.Warn("pipeline: streaming channel saturated, samples dropped", "count", len(samples))
		observe.DefaultMetrics().RecordCaptureDrop(context.Background(), device)
	}
}

// pushSegment feeds samples through the segmenter and, if a segment boundary
// is reached, forwards it to segCh without blocking: a full buffer only
// happens if the dispatcher has fallen far behind, in which case the oldest
// in-flight work already bounds memory growth more than a blocked segmenter
// would.
func pushSegment(segmenter *segment.Segmenter, segCh chan<- segment.Segment, device string, samples []float32, vadSilence bool, dropped *int) {
	seg, ok := segmenter.Push(samples, vadSilence)
	if !ok {
		return
	}
	select {
	case segCh <- seg:
	default:
		*dropped++
		observe.DefaultMetrics().RecordCaptureDrop(context.Background(), device)
	}
}
