package postprocess

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

var _ Rewriter = (*HTTPChatRewriter)(nil)

// HTTPChatRewriter rewrites a transcript through Mistral's
// /v1/chat/completions endpoint via a plain JSON POST, since no Mistral Go
// SDK appears anywhere in the example pack's dependency surface (OpenAI's
// equivalent call goes through the openai-go SDK instead; see openai.go).
type HTTPChatRewriter struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

// NewMistralChatRewriter returns a Rewriter backed by Mistral's
// /v1/chat/completions endpoint.
func NewMistralChatRewriter(apiKey, model string) (*HTTPChatRewriter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("postprocess: mistral apiKey must not be empty")
	}
	if model == "" {
		model = "mistral-small-latest"
	}
	return &HTTPChatRewriter{
		endpoint: "https://api.mistral.ai/v1/chat/completions",
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{Timeout: cloudTimeout},
	}, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Rewrite POSTs a two-message chat completion body {system=prompt,
// user=transcript} and parses choices[0].message.content.
func (r *HTTPChatRewriter) Rewrite(ctx context.Context, prompt, transcript string) (string, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model: r.model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt},
			{Role: "user", Content: transcript},
		},
	})
	if err != nil {
		return "", fmt.Errorf("postprocess: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("postprocess: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("postprocess: http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("postprocess: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("postprocess: http %d after %s: %s", resp.StatusCode, time.Since(start), data)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("postprocess: parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("postprocess: empty choices in response")
	}
	return parsed.Choices[0].Message.Content, nil
}
