package resample

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New(0, 1)
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)

	_, err = New(16000, 0)
	require.Error(t, err)
}

func TestPassthrough_RoundTrip(t *testing.T) {
	r, err := New(CanonicalSampleRate, CanonicalChannels)
	require.NoError(t, err)

	xs := []float32{0.1, -0.2, 0.3, -0.4, 0.5}
	out := r.Process(xs)
	out = append(out, r.Flush()...)

	assert.Equal(t, xs, out)
}

func TestPassthrough_FlushIsIdempotent(t *testing.T) {
	r, err := New(CanonicalSampleRate, CanonicalChannels)
	require.NoError(t, err)

	_ = r.Process([]float32{0.1, 0.2})
	first := r.Flush()
	second := r.Flush()

	assert.Empty(t, first)
	assert.Empty(t, second)
}

func TestDownmix_AveragesChannels(t *testing.T) {
	// Stereo frame pairs (L, R) -> mono average.
	stereo := []float32{1.0, -1.0, 0.5, 0.5}
	mono := downmix(stereo, 2)
	require.Len(t, mono, 2)
	assert.InDelta(t, 0.0, mono[0], 1e-6)
	assert.InDelta(t, 0.5, mono[1], 1e-6)
}

func TestProcess_BuffersResidualBelowChunkSize(t *testing.T) {
	r, err := New(44100, 1)
	require.NoError(t, err)

	out := r.Process(make([]float32, chunkSize/2))
	assert.Empty(t, out, "a partial chunk should not be emitted yet")
	assert.Len(t, r.pending, chunkSize/2)
}

func TestProcess_EmitsOncePerFullChunk(t *testing.T) {
	r, err := New(44100, 1)
	require.NoError(t, err)

	// Two full chunks worth of input should drain the buffer to empty.
	out := r.Process(make([]float32, chunkSize*2))
	assert.NotNil(t, out)
	assert.Empty(t, r.pending)
}
