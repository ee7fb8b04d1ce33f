package llm

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var promptsYAML []byte

// PromptSpec describes one operation's prompt and call limits.
type PromptSpec struct {
	MaxInputChars int     `yaml:"max_input_chars"`
	MaxTokens     int     `yaml:"max_tokens"`
	Temperature   float32 `yaml:"temperature"`
	Template      string  `yaml:"template"`
}

// Prompts is the prompt catalog.
type Prompts struct {
	Summarize PromptSpec `yaml:"summarize"`
	Ask       PromptSpec `yaml:"ask"`
	KeyPoints PromptSpec `yaml:"key_points"`
}

// DefaultPrompts returns the embedded catalog.
func DefaultPrompts() (Prompts, error) {
	return ParsePrompts(promptsYAML)
}

// ParsePrompts decodes and validates a catalog.
func ParsePrompts(raw []byte) (Prompts, error) {
	var p Prompts
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Prompts{}, fmt.Errorf("parse prompts: %w", err)
	}
	for name, spec := range map[string]PromptSpec{
		"summarize":  p.Summarize,
		"ask":        p.Ask,
		"key_points": p.KeyPoints,
	} {
		if strings.TrimSpace(spec.Template) == "" {
			return Prompts{}, fmt.Errorf("prompt %s: template is empty", name)
		}
		if !strings.Contains(spec.Template, "{{text}}") {
			return Prompts{}, fmt.Errorf("prompt %s: template lacks {{text}}", name)
		}
		if spec.MaxInputChars <= 0 || spec.MaxTokens <= 0 {
			return Prompts{}, fmt.Errorf("prompt %s: limits must be positive", name)
		}
	}
	if !strings.Contains(p.Ask.Template, "{{question}}") {
		return Prompts{}, fmt.Errorf("prompt ask: template lacks {{question}}")
	}
	return p, nil
}

// Render substitutes placeholders in a single pass, so values containing
// placeholder text are left as is.
func (s PromptSpec) Render(text, question string) string {
	return strings.NewReplacer("{{text}}", text, "{{question}}", question).Replace(s.Template)
}

// Truncate cuts s to max runes and appends "..." when anything was removed.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i] + "..."
		}
		n++
	}
	return s
}
