// Package postprocess implements the optional second-pass LLM rewrite
// (grammar/filler cleanup) applied to a merged transcript before it
// reaches the sink. It is grounded on the teacher's pkg/provider/llm
// providers: the OpenAI variant follows pkg/provider/llm/openai's use of
// the openai-go SDK client, the Mistral variant is a plain JSON POST since
// no Mistral SDK exists in the example pack, and the Ollama variant is
// built on pkg/provider/llm/anyllm, which already wraps Ollama's
// chat-completions API through mozilla-ai/any-llm-go.
//
// Every variant's failure is non-fatal: [Run] always returns the raw
// transcript on error, alongside a *backend.PostProcessError the caller
// surfaces as a warning, never as the session's terminal error.
package postprocess

import (
	"context"
	"time"

	"github.com/MrWong99/whisvoice/internal/observe"
	"github.com/MrWong99/whisvoice/pkg/backend"
)

// Kind selects which post-processing variant to run.
type Kind int

const (
	// None performs no post-processing; Run returns the transcript
	// unchanged.
	None Kind = iota
	KindOpenAI
	KindMistral
	KindOllama
)

func (k Kind) String() string {
	switch k {
	case KindOpenAI:
		return "openai"
	case KindMistral:
		return "mistral"
	case KindOllama:
		return "ollama"
	default:
		return "none"
	}
}

// cloudTimeout bounds OpenAI/Mistral chat-completion calls.
const cloudTimeout = 60 * time.Second

// ollamaTimeout bounds Ollama chat calls, longer because local inference
// is typically slower than a cloud GPU.
const ollamaTimeout = 120 * time.Second

// Rewriter performs one post-processing call: system=prompt, user=transcript.
type Rewriter interface {
	Rewrite(ctx context.Context, prompt, transcript string) (string, error)
}

// Config selects a Rewriter and the prompt it is given.
type Config struct {
	Kind     Kind
	Prompt   string
	Rewriter Rewriter
}

// Run applies cfg's rewriter to transcript. When cfg.Kind is None, or
// cfg.Rewriter is nil, transcript is returned unchanged with no error. On
// any rewrite failure, transcript is returned unchanged alongside a
// *backend.PostProcessError describing the failure — the caller decides
// whether to log it as a warning.
func Run(ctx context.Context, cfg Config, transcript string) (string, error) {
	if cfg.Kind == None || cfg.Rewriter == nil {
		return transcript, nil
	}

	timeout := cloudTimeout
	if cfg.Kind == KindOllama {
		timeout = ollamaTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	metrics := observe.DefaultMetrics()
	start := time.Now()
	rewritten, err := cfg.Rewriter.Rewrite(callCtx, cfg.Prompt, transcript)
	metrics.PostProcessDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		metrics.RecordPostProcessError(ctx, cfg.Kind.String())
		return transcript, &backend.PostProcessError{Err: err}
	}
	return rewritten, nil
}
