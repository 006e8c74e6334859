// Package backend defines the tagged-union abstraction over heterogeneous
// transcription backends: cloud batch-HTTP, cloud streaming-WebSocket, and
// on-device ML models. The three shapes have genuinely different
// lifecycles (one suspend per call vs. a drained channel vs. a
// mutex-serialised local handle), so they are three interfaces rather than
// one — mirroring the teacher's own split of stt/tts/s2s/llm provider
// packages by call shape instead of forcing every provider behind a single
// do-everything interface.
package backend

import "context"

// Kind tags which of the three families a Descriptor belongs to. The
// dispatcher switches on this to choose a dispatch strategy.
type Kind int

const (
	// KindBatchCloud is a backend reached over HTTP, one request per
	// segment, dispatched with bounded concurrency.
	KindBatchCloud Kind = iota
	// KindBatchLocal is an on-device model invoked synchronously,
	// one segment at a time.
	KindBatchLocal
	// KindStreamingCloud is a backend reached over a long-lived
	// WebSocket session that receives the whole capture and returns one
	// final transcript.
	KindStreamingCloud
)

func (k Kind) String() string {
	switch k {
	case KindBatchCloud:
		return "batch_cloud"
	case KindBatchLocal:
		return "batch_local"
	case KindStreamingCloud:
		return "streaming_cloud"
	default:
		return "unknown"
	}
}

// Descriptor names one configured backend instance: which provider, with
// what credentials/model path, and what it declares about its own
// operating requirements.
type Descriptor struct {
	// Name identifies the provider, e.g. "openai", "deepgram", "whisper".
	Name string

	// Kind selects the dispatch strategy.
	Kind Kind

	// Language is an optional ISO 639-1 hint passed to the backend.
	Language string

	// RequiredSampleRate is the sample rate a streaming backend requires
	// on the wire; zero means "accepts the canonical 16 kHz directly".
	// Only meaningful for KindStreamingCloud.
	RequiredSampleRate int

	// RequiresKeepalive is true when a streaming backend's protocol
	// requires periodic keepalive frames during idle silence.
	RequiresKeepalive bool
}

// BatchInput is the audio handed to a batch transcription call: either raw
// encoded bytes with a content type, or canonical samples for the backend
// to encode itself.
type BatchInput struct {
	Samples     []float32
	Bytes       []byte
	ContentType string
	Language    string
}

// BatchTranscriber is implemented by every backend, including streaming
// ones (which delegate to a non-streaming sibling so that file-input code
// paths never need to special-case a streaming backend name).
type BatchTranscriber interface {
	// Transcribe performs one batch transcription call and returns the
	// recognised text, or a *ProviderError.
	Transcribe(ctx context.Context, input BatchInput) (string, error)
}

// StreamTranscriber is implemented by streaming (WebSocket) backends. The
// caller sends canonical float32 sample batches on in, closing it to
// signal end-of-audio, then reads exactly one value from the returned
// result (or receives a *ProviderError).
type StreamTranscriber interface {
	BatchTranscriber

	// TranscribeStream drains in until it is closed or ctx is cancelled,
	// then returns the final transcript.
	TranscribeStream(ctx context.Context, in <-chan []float32, language string) (string, error)
}

// LocalTranscriber is implemented by on-device model backends (whisper.cpp,
// Parakeet ONNX). Local backends are always KindBatchLocal and are called
// at most once at a time per model handle, enforced by the caller via
// pkg/backend/modelcache.
type LocalTranscriber interface {
	BatchTranscriber

	// Close releases the underlying model handle. Safe to call more than
	// once.
	Close() error
}

// WarmupProbe issues a cheap connectivity check against the backend b,
// within the 5s warmup budget. Cloud backends that support probing
// implement Prober; others are a no-op.
func WarmupProbe(ctx context.Context, b BatchTranscriber) error {
	if p, ok := b.(Prober); ok {
		return p.Probe(ctx)
	}
	return nil
}

// Prober is optionally implemented by a backend to support WarmupProbe.
type Prober interface {
	Probe(ctx context.Context) error
}

// TranscriptionRecord is one segment's transcription result, produced by
// the dispatcher and consumed by the overlap merger.
type TranscriptionRecord struct {
	Index             int
	Text              string
	HasLeadingOverlap bool
}

// Registry looks up a constructor for a named backend, the way the
// teacher's config.Registry looks up provider constructors by name.
type Registry struct {
	factories map[string]func(Descriptor) (BatchTranscriber, error)
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]func(Descriptor) (BatchTranscriber, error))}
}

// Register adds a named backend constructor. Registering the same name
// twice overwrites the previous entry.
func (r *Registry) Register(name string, factory func(Descriptor) (BatchTranscriber, error)) {
	r.factories[name] = factory
}

// Build constructs a backend instance by name from a Descriptor.
func (r *Registry) Build(d Descriptor) (BatchTranscriber, error) {
	factory, ok := r.factories[d.Name]
	if !ok {
		return nil, &ConfigError{Reason: "unknown backend " + d.Name}
	}
	return factory(d)
}
