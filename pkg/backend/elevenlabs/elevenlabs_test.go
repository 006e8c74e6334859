package elevenlabs

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

func TestNewBatch_AcceptsAnyNonEmptyKey(t *testing.T) {
	b, err := NewBatch("arbitrary-key")
	require.NoError(t, err)
	assert.NotNil(t, b)
}
