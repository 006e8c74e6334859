package main

import (
	"fmt"

	"github.com/MrWong99/whisvoice/internal/config"
	"github.com/MrWong99/whisvoice/internal/resilience"
	"github.com/MrWong99/whisvoice/pkg/backend"
	"github.com/MrWong99/whisvoice/pkg/backend/deepgram"
	"github.com/MrWong99/whisvoice/pkg/backend/elevenlabs"
	"github.com/MrWong99/whisvoice/pkg/backend/groq"
	"github.com/MrWong99/whisvoice/pkg/backend/mistral"
	"github.com/MrWong99/whisvoice/pkg/backend/modelcache"
	"github.com/MrWong99/whisvoice/pkg/backend/openai"
	"github.com/MrWong99/whisvoice/pkg/backend/whisper"
)

// newParakeetBatch constructs the on-device Parakeet ONNX backend. Left nil
// unless the binary is built with the "parakeet" tag, in which case
// backend_parakeet.go's init sets it — the same conditional-compile seam
// pkg/audiopipe/vad uses for its optional Silero scorer.
var newParakeetBatch func(modelDir, libPath string) (backend.BatchTranscriber, error)

// buildBackend instantiates the transcriber named by bc.Name and reports the
// dispatch strategy the coordinator should use for it. cache is shared
// across the process so repeated native-model backends never reload
// weights. When bc.Fallback is set and both backends resolve to
// KindBatchCloud, the two are wrapped in a backend.FallbackTranscriber so a
// failing primary falls through to the secondary instead of failing the
// segment outright.
func buildBackend(bc config.BackendConfig, cache *modelcache.Cache) (backend.BatchTranscriber, backend.Kind, error) {
	primary, kind, err := buildOneBackend(bc, cache)
	if err != nil || bc.Fallback == nil {
		return primary, kind, err
	}

	fallback, fallbackKind, err := buildOneBackend(*bc.Fallback, cache)
	if err != nil {
		return nil, 0, fmt.Errorf("build fallback backend %q: %w", bc.Fallback.Name, err)
	}
	if kind != backend.KindBatchCloud || fallbackKind != backend.KindBatchCloud {
		return nil, 0, &backend.ConfigError{Reason: "backend.fallback is only supported between two batch-cloud backends"}
	}

	group := backend.NewFallbackTranscriber(primary, bc.Name, resilience.FallbackConfig{})
	group.AddFallback(bc.Fallback.Name, fallback)
	return group, backend.KindBatchCloud, nil
}

// buildOneBackend instantiates a single named backend with no fallback
// composition.
func buildOneBackend(bc config.BackendConfig, cache *modelcache.Cache) (backend.BatchTranscriber, backend.Kind, error) {
	switch bc.Name {
	case "openai":
		b, err := openai.NewBatch(bc.APIKey)
		return b, backend.KindBatchCloud, err
	case "openai-realtime":
		b, err := openai.NewRealtime(bc.APIKey)
		return b, backend.KindStreamingCloud, err
	case "mistral":
		b, err := mistral.NewBatch(bc.APIKey, bc.ModelPath)
		return b, backend.KindBatchCloud, err
	case "groq":
		b, err := groq.NewBatch(bc.APIKey)
		return b, backend.KindBatchCloud, err
	case "deepgram":
		b, err := deepgram.NewBatch(bc.APIKey)
		return b, backend.KindBatchCloud, err
	case "deepgram-realtime":
		b, err := deepgram.NewRealtime(bc.APIKey)
		return b, backend.KindStreamingCloud, err
	case "elevenlabs":
		b, err := elevenlabs.NewBatch(bc.APIKey)
		return b, backend.KindBatchCloud, err
	case "whisper":
		b, err := whisper.NewHTTPBatch(bc.ServerURL, bc.ModelPath)
		return b, backend.KindBatchLocal, err
	case "whisper-native":
		b, err := whisper.NewNativeBatch(cache, bc.ModelPath, bc.Language)
		return b, backend.KindBatchLocal, err
	case "parakeet":
		if newParakeetBatch == nil {
			return nil, 0, &backend.ConfigError{Reason: "parakeet backend requires a binary built with -tags parakeet"}
		}
		b, err := newParakeetBatch(bc.ModelPath, bc.LibraryPath)
		return b, backend.KindBatchLocal, err
	default:
		return nil, 0, &backend.ConfigError{Reason: fmt.Sprintf("unknown backend name %q", bc.Name)}
	}
}
