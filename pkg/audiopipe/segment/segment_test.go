package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplesOfLen(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i%100) / 100
	}
	return out
}

func TestFixedDuration_EmitsAtTarget(t *testing.T) {
	s := New(Config{TargetDurationSecs: 1}) // target=1s=16000 samples

	_, ok := s.Push(samplesOfLen(8000), false)
	assert.False(t, ok, "half a second should not emit")

	seg, ok := s.Push(samplesOfLen(8000), false)
	require.True(t, ok, "reaching the target duration should emit")
	assert.Equal(t, 0, seg.Index)
	assert.Len(t, seg.Samples, 16000)
	assert.False(t, seg.HasLeadingOverlap)
}

func TestSecondSegment_HasLeadingOverlap(t *testing.T) {
	s := New(Config{TargetDurationSecs: 1})

	_, _ = s.Push(samplesOfLen(16000), false)
	seg, ok := s.Push(samplesOfLen(16000), false)
	require.True(t, ok)
	assert.Equal(t, 1, seg.Index)
	assert.True(t, seg.HasLeadingOverlap)
	// The overlap ring holds at most OverlapSamples (32000) samples, but
	// the first segment only produced 16000, so the carried prefix is
	// bounded by what was actually emitted so far.
	assert.LessOrEqual(t, len(seg.Samples)-16000, OverlapSamples)
}

func TestOverlapRing_CapsAtTwoSeconds(t *testing.T) {
	s := New(Config{TargetDurationSecs: 1})

	// First segment much longer than the ring capacity, to verify the
	// carried-over prefix never exceeds OverlapSamples regardless of how
	// much audio preceded the cut.
	_, ok := s.Push(samplesOfLen(OverlapSamples*3), false)
	require.True(t, ok)

	// The carried-over current buffer is already a full ring (32000
	// samples), so even one more sample exceeds max duration and forces
	// an immediate second cut.
	seg, ok := s.Push(samplesOfLen(1), false)
	require.True(t, ok)
	assert.LessOrEqual(t, len(seg.Samples), OverlapSamples+1)

	// The overlap seed itself is a full ring, so it remains in current for
	// the next segment rather than vanishing.
	final, ok := s.Flush()
	require.True(t, ok)
	assert.LessOrEqual(t, len(final.Samples), OverlapSamples)
}

func TestVADAware_WaitsForSilenceNearTarget(t *testing.T) {
	s := New(Config{TargetDurationSecs: 1, VADAware: true})

	// At target duration but VAD reports speech: must not cut.
	_, ok := s.Push(samplesOfLen(16000), false)
	assert.False(t, ok)

	// Still speaking, push past max (4/3 * 1s = ~21333 samples): must force
	// a cut regardless of VAD state.
	_, ok = s.Push(samplesOfLen(6000), false)
	assert.True(t, ok, "max duration should force a cut even mid-speech")
}

func TestVADAware_CutsEarlyOnSilence(t *testing.T) {
	s := New(Config{TargetDurationSecs: 1, VADAware: true})

	// Past min (2/3 * 1s) but below target, with VAD reporting silence:
	// should emit.
	seg, ok := s.Push(samplesOfLen(11000), true)
	require.True(t, ok)
	assert.Len(t, seg.Samples, 11000)
}

func TestFlush_EmitsRemainderAndIsIdempotent(t *testing.T) {
	s := New(Config{TargetDurationSecs: 90})

	_, ok := s.Push(samplesOfLen(1000), false)
	assert.False(t, ok)

	seg, ok := s.Flush()
	require.True(t, ok)
	assert.Len(t, seg.Samples, 1000)

	_, ok = s.Flush()
	assert.False(t, ok, "a second flush with nothing accumulated should be a no-op")
}
