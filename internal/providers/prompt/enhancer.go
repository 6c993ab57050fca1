package prompt

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Enhancer rewrites a user prompt into one better suited for the video
// model. Implementations are best-effort: Enhance must return a usable
// prompt even when the underlying model call fails.
type Enhancer interface {
	Enhance(ctx context.Context, prompt string) string
}

// PassthroughEnhancer returns prompts unchanged. Used when no LLM endpoint
// is configured and as the terminal fallback in tests.
type PassthroughEnhancer struct{}

func NewPassthroughEnhancer() *PassthroughEnhancer {
	return &PassthroughEnhancer{}
}

func (p *PassthroughEnhancer) Enhance(ctx context.Context, prompt string) string {
	return prompt
}

var _ Enhancer = (*PassthroughEnhancer)(nil)

// buildSystemPrompt renders the instruction block for the enhancement model.
// The style name is title-cased so it reads naturally inside the template.
func buildSystemPrompt(style string) string {
	styleName := cases.Title(language.Und).String(strings.TrimSpace(style))
	if styleName == "" {
		styleName = "Cinematic"
	}
	var b strings.Builder
	b.WriteString("You are an expert at crafting prompts for AI video generation models.\n")
	b.WriteString("Transform simple user descriptions into detailed, effective video generation prompts.\n\n")
	b.WriteString("Guidelines:\n")
	b.WriteString("1. Be specific about camera movements (pan, zoom, tracking, static)\n")
	b.WriteString("2. Describe lighting conditions (golden hour, dramatic shadows, soft diffused)\n")
	b.WriteString("3. Include motion descriptions (how subjects move, speed, direction)\n")
	b.WriteString("4. Specify visual style (")
	b.WriteString(styleName)
	b.WriteString(" style)\n")
	b.WriteString("5. Add quality keywords (4K, high resolution, cinematic)\n")
	b.WriteString("6. Keep prompts concise but descriptive (50-100 words ideal)\n\n")
	b.WriteString("Output only the enhanced prompt, nothing else.")
	return b.String()
}

// trimQuotes removes one pair of wrapping quotes some models add around
// their output.
func trimQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}
