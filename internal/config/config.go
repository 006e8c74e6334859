// Package config provides the configuration schema and loader for the
// whisvoice pipeline: the immutable snapshot spec.md's Configuration
// Snapshot data model describes, taken once at pipeline start.
package config

// Config is the root configuration structure for a whisvoice session,
// typically loaded from a YAML file via [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Backend     BackendConfig     `yaml:"backend"`
	Segment     SegmentConfig     `yaml:"segment"`
	VAD         VADConfig         `yaml:"vad"`
	PostProcess PostProcessConfig `yaml:"post_process"`
	Sink        SinkConfig        `yaml:"sink"`
}

// LogLevel is the server's logging verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IsValid reports whether l is one of the known levels, or empty (meaning
// "use the default").
func (l LogLevel) IsValid() bool {
	switch l {
	case "", LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	default:
		return false
	}
}

// ServerConfig holds process-wide logging settings.
type ServerConfig struct {
	// LogLevel controls verbosity. Valid values: "debug", "info", "warn", "error".
	LogLevel LogLevel `yaml:"log_level"`
}

// BackendConfig selects and configures one transcription backend, the
// Go-native equivalent of spec.md's tagged-variant Backend Descriptor.
type BackendConfig struct {
	// Name selects the registered backend implementation, e.g. "openai",
	// "mistral", "groq", "deepgram", "deepgram-realtime", "openai-realtime",
	// "elevenlabs", "whisper", "whisper-native", "parakeet".
	Name string `yaml:"name"`

	// APIKey authenticates cloud backends. Ignored by local backends.
	APIKey string `yaml:"api_key"`

	// ModelPath is the on-disk model file or directory for local backends
	// (ggml whisper model file, or Parakeet ONNX model directory). The
	// mistral backend reads it as the model name, and the whisper HTTP
	// backend forwards it to the server as a model-name hint.
	ModelPath string `yaml:"model_path"`

	// LibraryPath is an optional override for the Parakeet backend's ONNX
	// Runtime shared library location.
	LibraryPath string `yaml:"library_path"`

	// ServerURL points a whisper.cpp HTTP-server-backed backend at its
	// inference endpoint. Ignored by every other backend.
	ServerURL string `yaml:"server_url"`

	// Language is an optional ISO 639-1 hint forwarded to the backend.
	Language string `yaml:"language"`

	// Fallback optionally names a second cloud batch backend to fall
	// through to when Name's backend fails or its circuit breaker is open.
	// Only supported when both Name and Fallback select a KindBatchCloud
	// backend; any other combination is rejected with a configuration error
	// when the backend is built.
	Fallback *BackendConfig `yaml:"fallback"`
}

// SegmentConfig controls the progressive segmenter's boundary decisions.
type SegmentConfig struct {
	// TargetDurationSecs is the desired segment length; zero selects 90.
	TargetDurationSecs float64 `yaml:"target_duration_secs"`

	// VADAware switches the emit predicate to wait for a silence near the
	// target instead of cutting at a fixed duration.
	VADAware bool `yaml:"vad_aware"`
}

// VADConfig controls voice-activity gating ahead of the segmenter.
type VADConfig struct {
	// Disabled makes capture a pure passthrough with no speech gating.
	Disabled bool `yaml:"disabled"`

	// Threshold is the score at or above which a frame counts as speech.
	// Range [0,1]; zero selects the detector's default of 0.5.
	Threshold float64 `yaml:"threshold"`
}

// PostProcessKind selects the optional second-pass LLM rewrite variant.
type PostProcessKind string

const (
	PostProcessNone    PostProcessKind = "none"
	PostProcessOpenAI  PostProcessKind = "openai"
	PostProcessMistral PostProcessKind = "mistral"
	PostProcessOllama  PostProcessKind = "ollama"
)

// IsValid reports whether k is a recognised kind.
func (k PostProcessKind) IsValid() bool {
	switch k {
	case PostProcessNone, PostProcessOpenAI, PostProcessMistral, PostProcessOllama:
		return true
	default:
		return false
	}
}

// PostProcessConfig configures the optional transcript rewrite pass.
type PostProcessConfig struct {
	Kind PostProcessKind `yaml:"kind"`

	// APIKey authenticates the OpenAI/Mistral variants. Ignored by Ollama.
	APIKey string `yaml:"api_key"`

	// Model overrides the variant's default model name.
	Model string `yaml:"model"`

	// OllamaBaseURL overrides the default local Ollama server address.
	// Ignored by every other variant.
	OllamaBaseURL string `yaml:"ollama_base_url"`

	// Prompt is the system message sent alongside the raw transcript.
	// Ignored (overwritten) when Preset names a known preset.
	Prompt string `yaml:"prompt"`

	// Preset names a built-in Preset (see preset.go) to resolve onto this
	// section before Validate runs: its Prompt always wins, its Kind/Model
	// overrides apply only when the preset declares one. Empty skips
	// resolution entirely.
	Preset string `yaml:"preset"`
}

// SinkKind selects where the final transcript is delivered. The core never
// implements a sink itself; these names select an internal/sink adapter.
type SinkKind string

const (
	SinkClipboard SinkKind = "clipboard"
	SinkStdout    SinkKind = "stdout"
	SinkAutotype  SinkKind = "autotype"
)

// IsValid reports whether k is a recognised sink kind, or empty (meaning
// "use the default").
func (k SinkKind) IsValid() bool {
	switch k {
	case "", SinkClipboard, SinkStdout, SinkAutotype:
		return true
	default:
		return false
	}
}

// SinkConfig selects the output sink.
type SinkConfig struct {
	Kind SinkKind `yaml:"kind"`
}
