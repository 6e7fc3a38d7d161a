package ai

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// PromptConfig controls how essays are presented to the model.
type PromptConfig struct {
	Model       string  `yaml:"model"`
	System      string  `yaml:"system"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// DefaultPromptConfig returns the built-in essay evaluator prompt.
func DefaultPromptConfig() PromptConfig {
	return PromptConfig{
		System:      essayEvaluatorSystemPrompt(),
		Temperature: 0.2,
		MaxTokens:   600,
	}
}

// LoadPromptConfig overlays a YAML prompt file on the defaults. An empty path
// returns the defaults unchanged.
func LoadPromptConfig(path string) (PromptConfig, error) {
	cfg := DefaultPromptConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return PromptConfig{}, fmt.Errorf("read prompt file: %w", err)
	}

	var override PromptConfig
	if err := yaml.Unmarshal(data, &override); err != nil {
		return PromptConfig{}, fmt.Errorf("parse prompt file: %w", err)
	}

	if strings.TrimSpace(override.System) != "" {
		cfg.System = strings.TrimSpace(override.System)
	}
	if override.Model != "" {
		cfg.Model = override.Model
	}
	if override.Temperature > 0 {
		cfg.Temperature = override.Temperature
	}
	if override.MaxTokens > 0 {
		cfg.MaxTokens = override.MaxTokens
	}

	return cfg, nil
}

func essayEvaluatorSystemPrompt() string {
	return strings.Join([]string{
		"You are an English essay evaluator.",
		"Return JSON ONLY with the exact shape:",
		`{ "score": number (0-10 integer), "feedback": string, "highlights": string[] }`,
		"Rules:",
		`- "score" MUST be an integer from 0 to 10.`,
		`- "feedback" MUST be concise paragraph-level comments.`,
		`- "highlights" MUST contain phrases that APPEAR VERBATIM in the user essay.`,
		"- Do NOT include meta-comments like 'Clear thesis' unless those exact words appear in the essay.",
		"- Use only ASCII quotes if you include quoted phrases.",
	}, "\n")
}
