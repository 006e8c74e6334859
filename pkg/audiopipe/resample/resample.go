// Package resample converts arbitrary-rate, arbitrary-channel PCM audio into
// canonical 16 kHz mono float32 samples, incrementally.
//
// The heavy lifting — high-quality, FFT-based polyphase rate conversion — is
// delegated to github.com/tphakala/go-audio-resampler, the same library
// wired into the WebRTC audio bridge this package is grounded on. Resampler
// only owns the bookkeeping a streaming caller needs on top of that library:
// channel downmixing, fixed-chunk buffering, and a passthrough fast path for
// audio that is already canonical.
package resample

import (
	"fmt"

	goresampler "github.com/tphakala/go-audio-resampler"
)

// CanonicalSampleRate is the sample rate all downstream pipeline stages
// assume: 16 kHz mono float32.
const CanonicalSampleRate = 16000

// CanonicalChannels is the channel count all downstream pipeline stages
// assume.
const CanonicalChannels = 1

// chunkSize is the fixed number of mono input samples the underlying FFT
// resampler consumes per call (about 21 ms of audio at 48 kHz, 64 ms at
// 16 kHz), so buffering stays bounded at one chunk, per the audio-callback
// discipline design note.
const chunkSize = 1024

// ConfigError is returned by New when the requested source format is invalid.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("resample: invalid configuration: %s", e.Reason)
}

// Resampler incrementally converts (sourceRate, sourceChannels) PCM audio to
// canonical 16 kHz mono float32. A single Resampler instance is not safe for
// concurrent use — the audio-callback discipline design note calls for exactly
// one owner per capture stream.
type Resampler struct {
	sourceRate     int
	sourceChannels int
	passthrough    bool

	engine *goresampler.Resampler

	// pending holds downmixed mono samples not yet long enough to form a
	// full chunkSize input chunk.
	pending []float32
}

// New creates a Resampler converting from (sourceRate, sourceChannels) to
// canonical audio. Returns a *ConfigError if sourceRate or sourceChannels is
// zero.
func New(sourceRate, sourceChannels int) (*Resampler, error) {
	if sourceRate <= 0 {
		return nil, &ConfigError{Reason: "sourceRate must be positive"}
	}
	if sourceChannels <= 0 {
		return nil, &ConfigError{Reason: "sourceChannels must be positive"}
	}

	r := &Resampler{
		sourceRate:     sourceRate,
		sourceChannels: sourceChannels,
		passthrough:    sourceRate == CanonicalSampleRate && sourceChannels == CanonicalChannels,
	}

	if !r.passthrough {
		engine, err := goresampler.New(sourceRate, CanonicalSampleRate, 1)
		if err != nil {
			return nil, fmt.Errorf("resample: create FFT resampler: %w", err)
		}
		r.engine = engine
	}

	return r, nil
}

// Process accepts an arbitrary-length slice of interleaved source-format
// frames and returns zero or more canonical samples. Residual samples that
// don't yet form a full chunk stay buffered internally until a future call
// to Process or Flush.
func (r *Resampler) Process(samples []float32) []float32 {
	if len(samples) == 0 {
		return nil
	}
	if r.passthrough {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}

	mono := downmix(samples, r.sourceChannels)
	r.pending = append(r.pending, mono...)

	var out []float32
	for len(r.pending) >= chunkSize {
		chunk := r.pending[:chunkSize]
		out = append(out, r.engine.Process(chunk)...)
		r.pending = r.pending[chunkSize:]
	}
	// Compact to avoid the backing array growing unbounded across many
	// partial calls.
	if len(r.pending) > 0 {
		r.pending = append([]float32(nil), r.pending...)
	}
	return out
}

// Flush zero-pads any remaining buffered samples to one full chunk, processes
// them once, and returns the result. Subsequent calls return an empty slice.
func (r *Resampler) Flush() []float32 {
	if r.passthrough || len(r.pending) == 0 {
		r.pending = nil
		return nil
	}
	padded := make([]float32, chunkSize)
	copy(padded, r.pending)
	r.pending = nil
	return r.engine.Process(padded)
}

// downmix averages interleaved multi-channel frames down to mono. For
// channels == 1 it is a no-op copy.
func downmix(samples []float32, channels int) []float32 {
	if channels == 1 {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}
	n := len(samples) / channels
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
