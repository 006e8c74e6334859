package postprocess

import (
	"context"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var _ Rewriter = (*OpenAIChatRewriter)(nil)

// OpenAIChatRewriter rewrites a transcript through OpenAI's chat-completions
// API using the official openai-go SDK client, the same client the
// teacher's pkg/provider/llm/openai wraps for its own Complete call.
type OpenAIChatRewriter struct {
	client oai.Client
	model  string
}

// NewOpenAIChatRewriter returns a Rewriter backed by OpenAI's
// /v1/chat/completions endpoint via the SDK client.
func NewOpenAIChatRewriter(apiKey, model string) (*OpenAIChatRewriter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("postprocess: openai apiKey must not be empty")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	client := oai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIChatRewriter{client: client, model: model}, nil
}

// Rewrite sends a two-message chat completion (system=prompt, user=transcript)
// and returns the assistant's reply content.
func (r *OpenAIChatRewriter) Rewrite(ctx context.Context, prompt, transcript string) (string, error) {
	resp, err := r.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: oai.ChatModel(r.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(prompt),
			oai.UserMessage(transcript),
		},
	})
	if err != nil {
		return "", fmt.Errorf("postprocess: openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("postprocess: openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
