package main

import (
	"fmt"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/whisvoice/internal/config"
	"github.com/MrWong99/whisvoice/pkg/pipeline/postprocess"
)

// buildPostProcess translates the configured post-processing kind into a
// postprocess.Config ready to hand to pipeline.Config.PostProcess.
func buildPostProcess(pc config.PostProcessConfig) (postprocess.Config, error) {
	switch pc.Kind {
	case config.PostProcessNone, "":
		return postprocess.Config{Kind: postprocess.None}, nil
	case config.PostProcessOpenAI:
		r, err := postprocess.NewOpenAIChatRewriter(pc.APIKey, pc.Model)
		if err != nil {
			return postprocess.Config{}, fmt.Errorf("build openai post-processor: %w", err)
		}
		return postprocess.Config{Kind: postprocess.KindOpenAI, Prompt: pc.Prompt, Rewriter: r}, nil
	case config.PostProcessMistral:
		r, err := postprocess.NewMistralChatRewriter(pc.APIKey, pc.Model)
		if err != nil {
			return postprocess.Config{}, fmt.Errorf("build mistral post-processor: %w", err)
		}
		return postprocess.Config{Kind: postprocess.KindMistral, Prompt: pc.Prompt, Rewriter: r}, nil
	case config.PostProcessOllama:
		var opts []anyllmlib.Option
		if pc.OllamaBaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(pc.OllamaBaseURL))
		}
		r, err := postprocess.NewOllamaRewriter(pc.Model, opts...)
		if err != nil {
			return postprocess.Config{}, fmt.Errorf("build ollama post-processor: %w", err)
		}
		return postprocess.Config{Kind: postprocess.KindOllama, Prompt: pc.Prompt, Rewriter: r}, nil
	default:
		return postprocess.Config{}, fmt.Errorf("unknown post_process.kind %q", pc.Kind)
	}
}
