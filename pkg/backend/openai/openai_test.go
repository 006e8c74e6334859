package openai

import (
	"testing"

	"github.com/MrWong99/whisvoice/pkg/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBatch_RejectsMissingKey(t *testing.T) {
	_, err := NewBatch("")
	require.Error(t, err)
	var pErr *backend.ProviderError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, backend.MissingAPIKey, pErr.Kind)
}

func TestNewBatch_RejectsBadKeyFormat(t *testing.T) {
	_, err := NewBatch("not-an-openai-key")
	require.Error(t, err)
	var pErr *backend.ProviderError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, backend.InvalidAPIKey, pErr.Kind)
}

func TestNewBatch_AcceptsValidKeyFormat(t *testing.T) {
	b, err := NewBatch("sk-abc123")
	require.NoError(t, err)
	assert.NotNil(t, b)
}

func TestResampleLinear16to24_ScalesLengthByRatio(t *testing.T) {
	samples := make([]float32, 1600) // 0.1s at 16kHz
	out := resampleLinear16to24(samples)
	assert.Equal(t, 2400, len(out)) // 0.1s at 24kHz
}

func TestResampleLinear16to24_EmptyInput(t *testing.T) {
	assert.Empty(t, resampleLinear16to24(nil))
}

func TestFloat32ToPCM16LE_ClampsAndEncodes(t *testing.T) {
	samples := []float32{0, 1.0, -1.0, 2.0, -2.0}
	out := float32ToPCM16LE(samples)
	require.Len(t, out, 10)

	// Zero sample.
	assert.Equal(t, byte(0), out[0])
	assert.Equal(t, byte(0), out[1])
}
