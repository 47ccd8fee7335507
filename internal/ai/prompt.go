package ai

import (
	"fmt"
	"log"
	"regexp"

	"speakup/internal/confload"
)

var placeholder = regexp.MustCompile(`\{\{\s*([^{}]*?)\s*\}\}`)

// Render replaces every {{ token }} in template with vars[token].
// Unknown tokens render as the empty string.
func Render(template string, vars map[string]string) string {
	return placeholder.ReplaceAllStringFunc(template, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		return vars[name]
	})
}

// PromptTemplate is a single named template.
type PromptTemplate struct {
	Template string `json:"template" yaml:"template"`
}

// Templates holds the prompt templates used to steer the conversation partner.
type Templates struct {
	Opening  PromptTemplate `json:"opening" yaml:"opening"`
	FollowUp PromptTemplate `json:"followUp" yaml:"followUp"`
}

// LoadTemplates reads prompt templates from a JSON or YAML file.
func LoadTemplates(path string) (*Templates, error) {
	var t Templates
	if err := confload.File(path, &t); err != nil {
		return nil, fmt.Errorf("unable to load prompt templates: %w", err)
	}
	if t.Opening.Template == "" || t.FollowUp.Template == "" {
		return nil, fmt.Errorf("prompt templates: opening and followUp templates are required")
	}
	log.Printf("[Prompt] Loaded prompt templates from %s", path)
	return &t, nil
}
