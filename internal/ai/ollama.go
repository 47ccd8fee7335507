package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"speakup/internal/apperr"
)

// OllamaGenerator talks to a local Ollama /api/generate endpoint.
type OllamaGenerator struct {
	endpoint string
	model    string
	client   *http.Client
}

func NewOllama(endpoint, model string, client *http.Client) *OllamaGenerator {
	if endpoint == "" {
		endpoint = "http://localhost:11434/api/generate"
	}
	if model == "" {
		model = "llama3"
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &OllamaGenerator{endpoint: endpoint, model: model, client: client}
}

func (o *OllamaGenerator) Name() string {
	return "ollama"
}

type ollamaOptions struct {
	Temperature float32 `json:"temperature"`
	TopP        float32 `json:"top_p,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Format  string        `json:"format,omitempty"`
	Options ollamaOptions `json:"options"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func (o *OllamaGenerator) Generate(ctx context.Context, req Request) (string, error) {
	body := ollamaRequest{
		Model:  o.model,
		Prompt: req.Prompt,
		Stream: false,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			TopP:        req.TopP,
			NumPredict:  req.MaxOutputTokens,
		},
	}
	if req.JSON {
		body.Format = "json"
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		log.Printf("[Ollama] Request failed: %v", err)
		return "", fmt.Errorf("%w: post to ollama: %w", apperr.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: ollama returned status %d", apperr.ErrProviderUnavailable, resp.StatusCode)
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode ollama response: %w", apperr.ErrProviderUnavailable, err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("%w: ollama: %s", apperr.ErrProviderUnavailable, out.Error)
	}
	text := strings.TrimSpace(out.Response)
	if text == "" {
		return "", fmt.Errorf("%w: ollama returned empty response", apperr.ErrEmptyGeneration)
	}
	return text, nil
}
