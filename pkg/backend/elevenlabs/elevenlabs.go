// Package elevenlabs implements the ElevenLabs batch transcription backend:
// the same multipart wire shape as OpenAI's, but auth travels in a custom
// "xi-api-key" header instead of an Authorization bearer token, and the
// model/language fields use ElevenLabs' own names.
package elevenlabs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/MrWong99/whisvoice/pkg/backend"
	"github.com/MrWong99/whisvoice/pkg/backend/internal/wireutil"
)

const (
	batchEndpoint = "https://api.elevenlabs.io/v1/speech-to-text"
	batchModel    = "scribe_v1"
)

var _ backend.BatchTranscriber = (*Batch)(nil)

// Batch implements the ElevenLabs speech-to-text endpoint.
type Batch struct {
	apiKey string
	client *http.Client
}

// NewBatch returns a ready-to-use Batch backend. apiKey must be non-empty.
func NewBatch(apiKey string) (*Batch, error) {
	if apiKey == "" {
		return nil, &backend.ProviderError{Kind: backend.MissingAPIKey}
	}
	return &Batch{apiKey: apiKey, client: &http.Client{Timeout: 300 * time.Second}}, nil
}

// Transcribe performs one multipart POST to /v1/speech-to-text.
func (b *Batch) Transcribe(ctx context.Context, input backend.BatchInput) (string, error) {
	if len(input.Bytes) == 0 {
		return "", &backend.ProviderError{Kind: backend.TranscriptionFailed, Detail: "no audio bytes supplied"}
	}

	fields := []wireutil.MultipartField{
		{Name: "model_id", Value: batchModel},
		{Name: "language_code", Value: input.Language},
	}
	headers := map[string]string{"xi-api-key": b.apiKey}

	data, status, respHeaders, err := wireutil.PostAudioMultipart(ctx, b.client, batchEndpoint, input.Bytes, fields, headers)
	if err != nil {
		return "", &backend.ProviderError{Kind: backend.NetworkError, Err: err}
	}
	if status == http.StatusTooManyRequests {
		return "", &backend.ProviderError{Kind: backend.RateLimitExceeded, RetryAfter: wireutil.ParseRetryAfter(respHeaders)}
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return "", &backend.ProviderError{Kind: backend.InvalidAPIKey}
	}
	if status != http.StatusOK {
		return "", &backend.ProviderError{Kind: backend.TranscriptionFailed, Detail: fmt.Sprintf("http %d: %s", status, data)}
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", &backend.ProviderError{Kind: backend.TranscriptionFailed, Detail: "parse response", Err: err}
	}
	return result.Text, nil
}
