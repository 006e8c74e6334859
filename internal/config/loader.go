package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidBackendNames lists known backend names. Used by [Validate] to warn
// about unrecognised backend names rather than reject them outright, since
// third-party backends may be registered into pkg/backend.Registry without
// a corresponding change here.
var ValidBackendNames = []string{
	"openai", "openai-realtime", "mistral", "groq",
	"deepgram", "deepgram-realtime", "elevenlabs",
	"whisper", "whisper-native", "parakeet",
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
// An empty document decodes to a zero Config, which then fails validation.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if cfg.PostProcess.Preset != "" {
		preset, err := LookupPreset(cfg.PostProcess.Preset)
		if err != nil {
			return nil, err
		}
		preset.Resolve(&cfg.PostProcess)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Backend.Name == "" {
		errs = append(errs, fmt.Errorf("backend.name is required"))
	} else {
		validateBackendName(cfg.Backend.Name)
	}
	if cfg.Backend.Fallback != nil {
		if cfg.Backend.Fallback.Name == "" {
			errs = append(errs, fmt.Errorf("backend.fallback.name is required when backend.fallback is set"))
		} else {
			validateBackendName(cfg.Backend.Fallback.Name)
		}
	}

	if cfg.Segment.TargetDurationSecs != 0 {
		cfg.Segment.TargetDurationSecs = clampTargetDuration(cfg.Segment.TargetDurationSecs)
	}

	if cfg.VAD.Threshold < 0 || cfg.VAD.Threshold > 1 {
		errs = append(errs, fmt.Errorf("vad.threshold %.2f is out of range [0.0, 1.0]", cfg.VAD.Threshold))
	}

	if cfg.PostProcess.Kind != "" && !cfg.PostProcess.Kind.IsValid() {
		errs = append(errs, fmt.Errorf("post_process.kind %q is invalid; valid values: none, openai, mistral, ollama", cfg.PostProcess.Kind))
	}
	if cfg.PostProcess.Kind == PostProcessOpenAI || cfg.PostProcess.Kind == PostProcessMistral {
		if cfg.PostProcess.APIKey == "" {
			errs = append(errs, fmt.Errorf("post_process.api_key is required when post_process.kind is %q", cfg.PostProcess.Kind))
		}
	}

	if !cfg.Sink.Kind.IsValid() {
		errs = append(errs, fmt.Errorf("sink.kind %q is invalid; valid values: clipboard, stdout, autotype", cfg.Sink.Kind))
	}

	return errors.Join(errs...)
}

// minTargetDurationSecs and maxTargetDurationSecs bound segment.target_duration_secs
// per spec: any configured value outside [10, 300] is clamped into range
// rather than rejected, since a too-short or too-long target is a usability
// problem, not a configuration error.
const (
	minTargetDurationSecs = 10
	maxTargetDurationSecs = 300
)

// clampTargetDuration clamps secs into [minTargetDurationSecs, maxTargetDurationSecs],
// logging a warning when the configured value was out of range.
func clampTargetDuration(secs float64) float64 {
	switch {
	case secs < minTargetDurationSecs:
		slog.Warn("segment.target_duration_secs below minimum, clamping",
			"configured", secs, "clamped_to", minTargetDurationSecs)
		return minTargetDurationSecs
	case secs > maxTargetDurationSecs:
		slog.Warn("segment.target_duration_secs above maximum, clamping",
			"configured", secs, "clamped_to", maxTargetDurationSecs)
		return maxTargetDurationSecs
	default:
		return secs
	}
}

// validateBackendName logs a warning if name is not found in
// [ValidBackendNames]; unknown names are not rejected outright since a
// caller may have registered a third-party backend into
// pkg/backend.Registry under a name this package does not know about.
func validateBackendName(name string) {
	if slices.Contains(ValidBackendNames, name) {
		return
	}
	slog.Warn("unknown backend name — may be a typo or a custom registered backend",
		"name", name,
		"known", ValidBackendNames,
	)
}
