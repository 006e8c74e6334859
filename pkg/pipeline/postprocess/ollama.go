package postprocess

import (
	"context"
	"fmt"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
)

var _ Rewriter = (*OllamaRewriter)(nil)

// OllamaRewriter rewrites a transcript through a local Ollama server using
// mozilla-ai/any-llm-go's universal chat-completions client, the same
// dependency the teacher's pkg/provider/llm/anyllm wraps for its NewOllama
// constructor.
type OllamaRewriter struct {
	backend anyllmlib.Provider
	model   string
}

// NewOllamaRewriter returns a Rewriter backed by a local Ollama server
// running model. opts are forwarded to any-llm-go (e.g. WithBaseURL to
// point at a non-default Ollama host).
func NewOllamaRewriter(model string, opts ...anyllmlib.Option) (*OllamaRewriter, error) {
	if model == "" {
		return nil, fmt.Errorf("postprocess: ollama model must not be empty")
	}
	backend, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("postprocess: create ollama backend: %w", err)
	}
	return &OllamaRewriter{backend: backend, model: model}, nil
}

// Rewrite sends a two-message chat completion (system=prompt, user=transcript)
// and returns the assistant's reply content.
func (r *OllamaRewriter) Rewrite(ctx context.Context, prompt, transcript string) (string, error) {
	resp, err := r.backend.Completion(ctx, anyllmlib.CompletionParams{
		Model: r.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: prompt},
			{Role: anyllmlib.RoleUser, Content: transcript},
		},
	})
	if err != nil {
		return "", fmt.Errorf("postprocess: ollama completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("postprocess: ollama returned no choices")
	}
	return resp.Choices[0].Message.ContentString(), nil
}
