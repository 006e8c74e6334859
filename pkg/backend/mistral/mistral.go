// Package mistral implements the Mistral batch transcription backend: same
// multipart wire shape as OpenAI's, different endpoint and model, following
// the spec's "Same shape as OpenAI" contract.
package mistral

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
	batchEndpoint = "https://api.mistral.ai/v1/audio/transcriptions"
	defaultModel  = "voxtral-mini-latest"
)

var _ backend.BatchTranscriber = (*Batch)(nil)

// Batch implements the Mistral audio transcription endpoint.
type Batch struct {
	apiKey string
	model  string
	client *http.Client
}

// NewBatch returns a ready-to-use Batch backend. apiKey must be non-empty.
// model defaults to "voxtral-mini-latest" when empty.
func NewBatch(apiKey, model string) (*Batch, error) {
	if apiKey == "" {
		return nil, &backend.ProviderError{Kind: backend.MissingAPIKey}
	}
	if model == "" {
		model = defaultModel
	}
	return &Batch{apiKey: apiKey, model: model, client: &http.Client{Timeout: 300 * time.Second}}, nil
}

// Transcribe performs one multipart POST to /v1/audio/transcriptions.
func (b *Batch) Transcribe(ctx context.Context, input backend.BatchInput) (string, error) {
	if len(input.Bytes) == 0 {
		return "", &backend.ProviderError{Kind: backend.TranscriptionFailed, Detail: "no audio bytes supplied"}
	}

	fields := []wireutil.MultipartField{
		{Name: "model", Value: b.model},
		{Name: "language", Value: input.Language},
	}
	headers := map[string]string{"Authorization": "Bearer " + b.apiKey}

	data, status, respHeaders, err := wireutil.PostAudioMultipart(ctx, b.client, batchEndpoint, input.Bytes, fields, headers)
	if err != nil {
		return "", &backend.ProviderError{Kind: backend.NetworkError, Err: err}
	}
	if status == http.StatusTooManyRequests {
		return "", &backend.ProviderError{Kind: backend.RateLimitExceeded, RetryAfter: wireutil.ParseRetryAfter(respHeaders)}
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
