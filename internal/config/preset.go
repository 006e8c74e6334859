package config

import "fmt"

// Preset is a named, reusable post-processing bundle: a description, the
// system prompt handed to the rewriter, and optional overrides for which
// variant and model run it. Recovered from the original Rust
// implementation's preset.rs, scoped down to built-ins only — no
// filesystem-backed user preset directory, since nothing else in this
// config package touches disk beyond the single YAML file [Load] reads.
type Preset struct {
	Name        string
	Description string
	Prompt      string

	// PostProcessor optionally overrides PostProcessConfig.Kind; empty
	// means "use whatever post_process.kind the caller already set".
	PostProcessor PostProcessKind

	// Model optionally overrides PostProcessConfig.Model.
	Model string
}

// builtinPresets are the three presets the original implementation shipped.
var builtinPresets = []Preset{
	{
		Name:        "ai-prompt",
		Description: "Clean voice transcript for AI assistant prompts",
		Prompt: "Clean up this voice transcript for use as an AI prompt. " +
			"Remove filler words (um, uh, like, you know) and false starts. " +
			"Fix grammar and punctuation. " +
			"If the speaker corrected themselves, keep only the correction. " +
			"Preserve the speaker's wording. Only restructure if the original is genuinely unclear. " +
			"Output only the cleaned text.",
	},
	{
		Name:        "email",
		Description: "Format transcript as an email",
		Prompt: "Clean up this voice transcript into an email. " +
			"Fix grammar and punctuation. Remove filler words. " +
			"Keep it concise. Match the sender's original tone (casual or formal). " +
			"Do NOT add placeholder names or unnecessary formalities. " +
			"Output only the cleaned text.",
	},
	{
		Name:        "default",
		Description: "Basic cleanup - fixes grammar and removes filler words",
		Prompt: "Lightly clean up this voice transcript for personal notes. " +
			"Fix major grammar issues and remove excessive filler words. " +
			"Preserve the speaker's natural voice and thought structure. " +
			"Output ONLY the cleaned transcript, nothing else.",
	},
}

// Presets returns the built-in preset list, sorted the way they are
// declared above (ai-prompt, email, default).
func Presets() []Preset {
	out := make([]Preset, len(builtinPresets))
	copy(out, builtinPresets)
	return out
}

// LookupPreset returns the built-in preset named name, or an error naming
// the available presets if none matches.
func LookupPreset(name string) (Preset, error) {
	for _, p := range builtinPresets {
		if p.Name == name {
			return p, nil
		}
	}
	names := make([]string, len(builtinPresets))
	for i, p := range builtinPresets {
		names[i] = p.Name
	}
	return Preset{}, fmt.Errorf("config: unknown preset %q; available: %v", name, names)
}

// Resolve applies p onto cfg's PostProcess section: cfg.PostProcess.Prompt is
// always overwritten, and Kind/Model are overwritten only when p declares an
// override. Called once before Start, the same "resolve sugar into the real
// config" shape the rest of this package's loader follows.
func (p Preset) Resolve(cfg *PostProcessConfig) {
	cfg.Prompt = p.Prompt
	if p.PostProcessor != "" {
		cfg.Kind = p.PostProcessor
	}
	if p.Model != "" {
		cfg.Model = p.Model
	}
}
