// Package segment implements the progressive segmenter: it buffers
// canonical-rate audio into variable-length segments suitable for batch
// transcription, and seeds each new segment with the tail of the previous
// one so that a transcription backend has two seconds of context to
// disambiguate a word split across a cut boundary.
//
// The overlap ring is backed by smallnest/ringbuffer the same way the
// teacher's analysis buffer packages use it for a fixed-capacity audio
// history, generalised here from a byte-oriented 16-bit PCM ring to the
// canonical float32 samples this pipeline carries.
package segment

import (
	"encoding/binary"
	"math"

	"github.com/smallnest/ringbuffer"
)

// CanonicalSampleRate is the sample rate all segment durations are computed
// against.
const CanonicalSampleRate = 16000

// OverlapSamples is the number of trailing samples (2 seconds at 16 kHz)
// copied into the next segment.
const OverlapSamples = 2 * CanonicalSampleRate

const bytesPerSample = 4

// Segment is one chunk of audio handed to the dispatcher.
type Segment struct {
	// Index is the monotonically increasing segment number, starting at 0.
	Index int

	// Samples is the canonical float32 PCM for this segment, including any
	// leading overlap copied from the previous segment's tail.
	Samples []float32

	// HasLeadingOverlap is true for every segment after the first: its
	// first OverlapSamples samples duplicate the tail of the previous
	// segment and must be accounted for by the overlap merger.
	HasLeadingOverlap bool
}

// Config controls segment boundary decisions.
type Config struct {
	// TargetDurationSecs is the desired segment length. The minimum and
	// maximum durations are always 2/3 and 4/3 of this value respectively.
	TargetDurationSecs float64

	// VADAware switches the emit predicate from a fixed target duration to
	// one that waits for a VAD-reported silence near the target, forcing a
	// cut only once the maximum duration is reached.
	VADAware bool
}

func (c Config) withDefaults() Config {
	if c.TargetDurationSecs <= 0 {
		c.TargetDurationSecs = 90
	}
	return c
}

func (c Config) minDurationSecs() float64 { return c.TargetDurationSecs * 2 / 3 }
func (c Config) maxDurationSecs() float64 { return c.TargetDurationSecs * 4 / 3 }

// Segmenter accumulates canonical samples and decides segment boundaries
// per Config. Not safe for concurrent use: one Segmenter per capture
// stream.
type Segmenter struct {
	cfg Config

	current []float32
	ring    *ringbuffer.RingBuffer
	index   int
}

// New constructs a Segmenter. Zero-valued Config fields fall back to
// defaults.
func New(cfg Config) *Segmenter {
	return &Segmenter{
		cfg:  cfg.withDefaults(),
		ring: ringbuffer.New(OverlapSamples * bytesPerSample),
	}
}

// Push appends one batch of canonical samples and reports whether the
// batch's arrival completes a segment, given the latest VAD silence state.
// The returned Segment is valid only when ok is true.
func (s *Segmenter) Push(samples []float32, vadSilence bool) (seg Segment, ok bool) {
	s.current = append(s.current, samples...)
	s.pushRing(samples)

	durationSecs := float64(len(s.current)) / CanonicalSampleRate

	shouldEmit := durationSecs >= s.cfg.maxDurationSecs()
	if !shouldEmit {
		if s.cfg.VADAware {
			shouldEmit = durationSecs >= s.cfg.minDurationSecs() && vadSilence
		} else {
			shouldEmit = durationSecs >= s.cfg.TargetDurationSecs
		}
	}
	if !shouldEmit {
		return Segment{}, false
	}

	return s.emit(), true
}

// Flush emits a final segment containing whatever remains accumulated, if
// any. Call once the input stream has closed. Nothing is carried forward
// after a flush, so a second Flush reports ok false.
func (s *Segmenter) Flush() (seg Segment, ok bool) {
	if len(s.current) == 0 {
		return Segment{}, false
	}
	seg = s.emit()
	s.current = nil
	return seg, true
}

func (s *Segmenter) emit() Segment {
	seg := Segment{
		Index:             s.index,
		Samples:           s.current,
		HasLeadingOverlap: s.index > 0,
	}
	s.index++
	s.current = append([]float32(nil), s.ringSnapshot()...)
	return seg
}

// pushRing writes samples into the overlap ring, discarding the oldest
// bytes first whenever the write would exceed the ring's fixed capacity so
// that the ring always holds at most the most recent OverlapSamples
// samples.
func (s *Segmenter) pushRing(samples []float32) {
	buf := make([]byte, len(samples)*bytesPerSample)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(buf[i*bytesPerSample:], math.Float32bits(v))
	}

	capacity := s.ring.Capacity()
	if overflow := s.ring.Length() + len(buf) - capacity; overflow > 0 {
		discard := make([]byte, overflow)
		_, _ = s.ring.Read(discard)
	}
	if len(buf) > capacity {
		buf = buf[len(buf)-capacity:]
	}
	_, _ = s.ring.Write(buf)
}

// ringSnapshot returns the ring's current contents, in arrival order,
// without draining it.
func (s *Segmenter) ringSnapshot() []float32 {
	n := s.ring.Length()
	raw := make([]byte, n)
	// Read drains the ring, so the bytes are copied out with Read and then
	// written back in to restore the pre-read state.
	read, _ := s.ring.Read(raw)
	raw = raw[:read]
	_, _ = s.ring.Write(raw)

	out := make([]float32, read/bytesPerSample)
	for i := range out {
		bits := binary.LittleEndian.Uint32(raw[i*bytesPerSample:])
		out[i] = math.Float32frombits(bits)
	}
	return out
}
