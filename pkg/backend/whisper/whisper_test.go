package whisper

import (
	"testing"

	"github.com/MrWong99/whisvoice/pkg/backend"
	"github.com/MrWong99/whisvoice/pkg/backend/modelcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPBatch_RejectsEmptyServerURL(t *testing.T) {
	_, err := NewHTTPBatch("", "")
	require.Error(t, err)
	var cfgErr *backend.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestNewHTTPBatch_AcceptsValidURL(t *testing.T) {
	b, err := NewHTTPBatch("http://localhost:8080", "base.en")
	require.NoError(t, err)
	assert.NotNil(t, b)
}

func TestHTTPBatch_Transcribe_RejectsEmptySamples(t *testing.T) {
	b, err := NewHTTPBatch("http://localhost:8080", "")
	require.NoError(t, err)

	_, err = b.Transcribe(t.Context(), backend.BatchInput{})
	require.Error(t, err)
	var pErr *backend.ProviderError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, backend.LocalModelError, pErr.Kind)
}

func TestNewNativeBatch_RejectsEmptyPath(t *testing.T) {
	_, err := NewNativeBatch(modelcache.New(), "", "en")
	require.Error(t, err)
	var cfgErr *backend.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestNativeBatch_Transcribe_RejectsEmptySamples(t *testing.T) {
	b, err := NewNativeBatch(modelcache.New(), "/models/ggml-base.en.bin", "en")
	require.NoError(t, err)

	_, err = b.Transcribe(t.Context(), backend.BatchInput{})
	require.Error(t, err)
	var pErr *backend.ProviderError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, backend.LocalModelError, pErr.Kind)
}

func TestSamplesToPCM16LE_ClampsAndEncodes(t *testing.T) {
	out := samplesToPCM16LE([]float32{2.0, -2.0, 0})
	require.Len(t, out, 6)
	assert.Equal(t, byte(0xFF), out[0])
	assert.Equal(t, byte(0x7F), out[1])
}

func TestEncodeWAV_ProducesRIFFHeader(t *testing.T) {
	wav := encodeWAV([]byte{1, 2, 3, 4}, 16000, 1)
	require.GreaterOrEqual(t, len(wav), 44)
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, "data", string(wav[36:40]))
}

func TestParseTextField_ExtractsText(t *testing.T) {
	text, err := parseTextField([]byte(`{"text":"hello world"}`))
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}
