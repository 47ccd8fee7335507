package ai

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"speakup/internal/config"
)

// Request describes a single text generation call.
type Request struct {
	Prompt          string
	Temperature     float32
	TopP            float32
	MaxOutputTokens int
	// JSON asks the provider for a JSON object response.
	JSON bool
}

// Generator produces text from a prompt.
// Failures wrap apperr.ErrProviderUnavailable or apperr.ErrEmptyGeneration.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// NewGenerator creates the text generator selected by cfg.LLMProvider.
func NewGenerator(cfg *config.Config) (Generator, error) {
	client := &http.Client{Timeout: cfg.ProviderTimeout}
	switch cfg.LLMProvider {
	case "gemini":
		if cfg.GeminiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY environment variable is not set")
		}
		log.Printf("[LLM Factory] Creating Gemini generator with model: %s", cfg.GeminiModel)
		return NewGemini(cfg.GeminiURL, cfg.GeminiModel, cfg.GeminiKey, client), nil
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		log.Printf("[LLM Factory] Creating OpenAI generator with model: %s", cfg.OpenAIModel)
		return NewOpenAI(cfg.OpenAIKey, "", cfg.OpenAIModel, client), nil
	case "ollama":
		log.Printf("[LLM Factory] Creating Ollama generator at %s with model: %s", cfg.OllamaEndpoint, cfg.OllamaModel)
		return NewOllama(cfg.OllamaEndpoint, cfg.OllamaModel, client), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s. Supported: gemini, openai, ollama", cfg.LLMProvider)
	}
}

// ExtractJSON strips markdown code fences around a JSON payload.
func ExtractJSON(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}
	return strings.TrimSpace(content)
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func since(start time.Time) time.Duration {
	return time.Since(start).Round(time.Millisecond)
}
