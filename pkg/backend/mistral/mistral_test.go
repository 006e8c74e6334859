package mistral

import (
	"testing"

	"github.com/MrWong99/whisvoice/pkg/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBatch_RejectsMissingKey(t *testing.T) {
	_, err := NewBatch("", "")
	require.Error(t, err)
	var pErr *backend.ProviderError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, backend.MissingAPIKey, pErr.Kind)
}

func TestNewBatch_DefaultsModel(t *testing.T) {
	b, err := NewBatch("key", "")
	require.NoError(t, err)
	assert.Equal(t, defaultModel, b.model)
}

func TestNewBatch_RespectsExplicitModel(t *testing.T) {
	b, err := NewBatch("key", "custom-model")
	require.NoError(t, err)
	assert.Equal(t, "custom-model", b.model)
}
