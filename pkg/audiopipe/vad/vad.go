// Package vad classifies 512-sample (32 ms at 16 kHz) frames of canonical
// audio as speech or silence and gates the stream so that only speech,
// padded with a prefill and hangover margin, passes through.
//
// The detector contract is fixed: a single in-process state machine over the
// prefill/onset/hangover ring buffer, rather than a pluggable probability
// model behind a gRPC boundary. An optional Silero ONNX scorer can be
// swapped in via Config.Scorer for higher recall than the built-in energy
// heuristic; see silero_onnx.go.
package vad

// FrameSamples is the fixed frame size the detector operates on: 512 samples
// at 16 kHz, i.e. 32 ms.
const FrameSamples = 512

// Defaults for the prefill/onset/hangover state machine.
const (
	DefaultThreshold      = 0.5
	DefaultPrefillFrames  = 15
	DefaultOnsetFrames    = 2
	DefaultHangoverFrames = 15
)

// Scorer assigns a speech probability in [0,1] to one 512-sample frame. The
// built-in energyScorer is always available; Config.Scorer overrides it with a
// model-backed implementation (e.g. Silero v5 via ONNX Runtime).
type Scorer interface {
	// Score returns the speech probability for a single canonical 512-sample
	// frame.
	Score(frame []float32) (float64, error)
}

// Config holds the tunable parameters of a Detector.
type Config struct {
	// Threshold is the score at or above which a frame counts toward onset
	// confirmation. Range [0,1]. Zero selects DefaultThreshold.
	Threshold float64

	// PrefillFrames is the number of frames, immediately preceding a
	// confirmed speech onset, that are emitted along with it so that
	// word-beginnings are not clipped. Zero selects DefaultPrefillFrames.
	PrefillFrames int

	// OnsetFrames is the number of consecutive above-threshold frames
	// required to confirm speech onset, rejecting single-frame impulsive
	// noise. Zero selects DefaultOnsetFrames.
	OnsetFrames int

	// HangoverFrames is the number of frames of continued output after
	// score drops below threshold, capturing word-endings. Zero selects
	// DefaultHangoverFrames.
	HangoverFrames int

	// Scorer overrides the default energy-based scorer. Nil selects the
	// built-in heuristic.
	Scorer Scorer

	// Disabled makes the Detector a pure passthrough: Process returns its
	// input unchanged and State always reports silence, per the spec's
	// "VAD off" contract.
	Disabled bool
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.PrefillFrames <= 0 {
		c.PrefillFrames = DefaultPrefillFrames
	}
	if c.OnsetFrames <= 0 {
		c.OnsetFrames = DefaultOnsetFrames
	}
	if c.HangoverFrames <= 0 {
		c.HangoverFrames = DefaultHangoverFrames
	}
	if c.Scorer == nil {
		c.Scorer = energyScorer{}
	}
	return c
}

// State reports the Detector's current classification, read by the
// segmenter to decide whether a natural pause boundary has occurred.
type State struct {
	Speaking   bool
	InHangover bool
}

// Detector implements the prefill/onset/hangover state machine from the
// pipeline design. A Detector instance is not safe for concurrent use; one
// instance is owned by exactly one capture stream.
type Detector struct {
	cfg Config

	speaking        bool
	onsetCounter    int
	hangoverCounter int

	// ring holds up to cfg.PrefillFrames of the most recent confirmed-silent
	// frames, in arrival order, so that a confirmed onset can emit the
	// lead-in. Frames that are part of an in-progress (possibly aborted)
	// onset attempt live in onsetBuffer instead, not ring.
	ring [][]float32

	// onsetBuffer accumulates the candidate speech frames seen since
	// speaking last went false, while onsetCounter has not yet reached
	// OnsetFrames. Discarded if the attempt is abandoned (a frame drops
	// back below threshold before confirmation), rejecting impulsive noise
	// as a side effect.
	onsetBuffer [][]float32

	// buf accumulates samples not yet long enough to form a full
	// FrameSamples frame.
	buf []float32
}

// New creates a Detector with the given configuration. Zero-valued fields
// fall back to the package defaults.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg.withDefaults()}
}

// Process accumulates samples into 512-sample aligned frames and returns the
// gated output: silence is dropped, speech (plus prefill/hangover margin) is
// passed through unchanged. If the detector is disabled, Process is a pure
// passthrough.
func (d *Detector) Process(samples []float32) ([]float32, error) {
	if d.cfg.Disabled {
		return samples, nil
	}

	d.buf = append(d.buf, samples...)

	var out []float32
	for len(d.buf) >= FrameSamples {
		frame := d.buf[:FrameSamples]
		d.buf = d.buf[FrameSamples:]

		emitted, err := d.processFrame(frame)
		if err != nil {
			return out, err
		}
		out = append(out, emitted...)
	}
	return out, nil
}

// processFrame runs the per-frame state transition table from the pipeline
// design and returns whatever that frame contributes to the gated output.
func (d *Detector) processFrame(frame []float32) ([]float32, error) {
	score, err := d.cfg.Scorer.Score(frame)
	if err != nil {
		return nil, err
	}
	isSpeech := score >= d.cfg.Threshold

	switch {
	case !d.speaking && isSpeech:
		d.onsetCounter++
		d.onsetBuffer = append(d.onsetBuffer, cloneFrame(frame))
		if d.onsetCounter >= d.cfg.OnsetFrames {
			d.speaking = true
			d.hangoverCounter = d.cfg.HangoverFrames
			d.onsetCounter = 0
			out := make([]float32, 0, (len(d.ring)+len(d.onsetBuffer))*FrameSamples)
			for _, f := range d.ring {
				out = append(out, f...)
			}
			for _, f := range d.onsetBuffer {
				out = append(out, f...)
			}
			d.ring = d.ring[:0]
			d.onsetBuffer = nil
			return out, nil
		}
		return nil, nil

	case d.speaking && isSpeech:
		d.hangoverCounter = d.cfg.HangoverFrames
		return cloneFrame(frame), nil

	case d.speaking && !isSpeech:
		if d.hangoverCounter > 0 {
			d.hangoverCounter--
			return cloneFrame(frame), nil
		}
		d.speaking = false
		return nil, nil

	default: // !speaking && !isSpeech
		d.onsetCounter = 0
		d.onsetBuffer = nil
		d.pushRing(frame)
		return nil, nil
	}
}

// pushRing appends frame to the prefill ring, evicting the oldest frame once
// the ring holds PrefillFrames entries.
func (d *Detector) pushRing(frame []float32) {
	d.ring = append(d.ring, cloneFrame(frame))
	if len(d.ring) > d.cfg.PrefillFrames {
		d.ring = d.ring[len(d.ring)-d.cfg.PrefillFrames:]
	}
}

func cloneFrame(frame []float32) []float32 {
	out := make([]float32, len(frame))
	copy(out, frame)
	return out
}

// State reports the detector's current classification. While VAD is
// disabled this always reports silence, per spec.
func (d *Detector) State() State {
	if d.cfg.Disabled {
		return State{}
	}
	return State{Speaking: d.speaking, InHangover: d.speaking && d.hangoverCounter > 0}
}

// Flush returns any trailing samples if the detector is mid-speech when
// capture ends, including a final partial frame shorter than FrameSamples.
// When the detector is not mid-speech, those buffered samples are
// discarded.
func (d *Detector) Flush() []float32 {
	if d.cfg.Disabled || !d.speaking {
		d.buf = nil
		return nil
	}
	out := append([]float32(nil), d.buf...)
	d.buf = nil
	return out
}

// Reset zeros all counters and buffers, as if the Detector were freshly
// constructed with the same configuration.
func (d *Detector) Reset() {
	d.speaking = false
	d.onsetCounter = 0
	d.hangoverCounter = 0
	d.ring = nil
	d.onsetBuffer = nil
	d.buf = nil
}
