// Package groq implements the Groq batch transcription backend: the same
// multipart wire shape as OpenAI's, with Groq's endpoint, model, and key
// format ("gsk_" prefix).
package groq

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/whisvoice/pkg/backend"
	"github.com/MrWong99/whisvoice/pkg/backend/internal/wireutil"
)

const (
	batchEndpoint = "https://api.groq.com/openai/v1/audio/transcriptions"
	batchModel    = "whisper-large-v3"
)

var _ backend.BatchTranscriber = (*Batch)(nil)

// Batch implements the Groq audio transcription endpoint.
type Batch struct {
	apiKey string
	client *http.Client
}

// NewBatch validates the key format (must start with "gsk_") and returns a
// ready-to-use Batch backend.
func NewBatch(apiKey string) (*Batch, error) {
	if apiKey == "" {
		return nil, &backend.ProviderError{Kind: backend.MissingAPIKey}
	}
	if !strings.HasPrefix(apiKey, "gsk_") {
		return nil, &backend.ProviderError{Kind: backend.InvalidAPIKey, Detail: `groq keys must start with "gsk_"`}
	}
	return &Batch{apiKey: apiKey, client: &http.Client{Timeout: 300 * time.Second}}, nil
}

// Transcribe performs one multipart POST to Groq's OpenAI-compatible
// audio transcriptions endpoint.
func (b *Batch) Transcribe(ctx context.Context, input backend.BatchInput) (string, error) {
	if len(input.Bytes) == 0 {
		return "", &backend.ProviderError{Kind: backend.TranscriptionFailed, Detail: "no audio bytes supplied"}
	}

	fields := []wireutil.MultipartField{
		{Name: "model", Value: batchModel},
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
