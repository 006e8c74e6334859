package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/whisvoice/internal/config"
)

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()
	yaml := `
backend:
  name: openai
  api_key: sk-test
segment:
  target_duration_secs: 90
vad:
  threshold: 0.5
post_process:
  kind: none
sink:
  kind: clipboard
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend.Name != "openai" {
		t.Errorf("backend.name = %q, want openai", cfg.Backend.Name)
	}
}

func TestValidate_ClampsTargetDurationSecs(t *testing.T) {
	t.Parallel()
	yaml := `
backend:
  name: openai
segment:
  target_duration_secs: 500
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Segment.TargetDurationSecs != 300 {
		t.Errorf("target_duration_secs = %v, want clamped to 300", cfg.Segment.TargetDurationSecs)
	}
}

func TestValidate_ClampsTargetDurationSecsBelowMinimum(t *testing.T) {
	t.Parallel()
	yaml := `
backend:
  name: openai
segment:
  target_duration_secs: 5
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Segment.TargetDurationSecs != 10 {
		t.Errorf("target_duration_secs = %v, want clamped to 10", cfg.Segment.TargetDurationSecs)
	}
}

func TestValidate_ZeroTargetDurationSecsNotClamped(t *testing.T) {
	t.Parallel()
	yaml := `
backend:
  name: openai
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Segment.TargetDurationSecs != 0 {
		t.Errorf("target_duration_secs = %v, want left at 0 (package default applies downstream)", cfg.Segment.TargetDurationSecs)
	}
}

func TestLoadFromReader_BackendFallback(t *testing.T) {
	t.Parallel()
	yaml := `
backend:
  name: openai
  api_key: sk-test
  fallback:
    name: deepgram
    api_key: dg-test
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend.Fallback == nil || cfg.Backend.Fallback.Name != "deepgram" {
		t.Fatalf("backend.fallback not decoded, got: %+v", cfg.Backend.Fallback)
	}
}

func TestValidate_FallbackMissingName(t *testing.T) {
	t.Parallel()
	yaml := `
backend:
  name: openai
  fallback:
    api_key: dg-test
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil || !strings.Contains(err.Error(), "backend.fallback.name") {
		t.Fatalf("expected backend.fallback.name error, got: %v", err)
	}
}

func TestValidate_MissingBackendName(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(``))
	if err == nil {
		t.Fatal("expected error for missing backend.name, got nil")
	}
	if !strings.Contains(err.Error(), "backend.name") {
		t.Errorf("error should mention backend.name, got: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
backend:
  name: openai
server:
  log_level: loud
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil || !strings.Contains(err.Error(), "log_level") {
		t.Fatalf("expected log_level error, got: %v", err)
	}
}

func TestValidate_InvalidVADThreshold(t *testing.T) {
	t.Parallel()
	yaml := `
backend:
  name: openai
vad:
  threshold: 1.5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil || !strings.Contains(err.Error(), "threshold") {
		t.Fatalf("expected threshold error, got: %v", err)
	}
}

func TestValidate_InvalidPostProcessKind(t *testing.T) {
	t.Parallel()
	yaml := `
backend:
  name: openai
post_process:
  kind: claude
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil || !strings.Contains(err.Error(), "post_process.kind") {
		t.Fatalf("expected post_process.kind error, got: %v", err)
	}
}

func TestValidate_CloudPostProcessRequiresAPIKey(t *testing.T) {
	t.Parallel()
	yaml := `
backend:
  name: openai
post_process:
  kind: mistral
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil || !strings.Contains(err.Error(), "post_process.api_key") {
		t.Fatalf("expected post_process.api_key error, got: %v", err)
	}
}

func TestValidate_OllamaPostProcessDoesNotRequireAPIKey(t *testing.T) {
	t.Parallel()
	yaml := `
backend:
  name: whisper-native
  model_path: /models/ggml-base.bin
post_process:
  kind: ollama
  model: llama3
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidSinkKind(t *testing.T) {
	t.Parallel()
	yaml := `
backend:
  name: openai
sink:
  kind: teleport
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil || !strings.Contains(err.Error(), "sink.kind") {
		t.Fatalf("expected sink.kind error, got: %v", err)
	}
}

func TestValidBackendNames(t *testing.T) {
	t.Parallel()
	if len(config.ValidBackendNames) == 0 {
		t.Fatal("ValidBackendNames should not be empty")
	}
	found := false
	for _, n := range config.ValidBackendNames {
		if n == "openai" {
			found = true
		}
	}
	if !found {
		t.Error("ValidBackendNames should contain \"openai\"")
	}
}
