package ai

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"speakup/internal/apperr"
)

// OpenAIGenerator generates text with the OpenAI chat completions API.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates an OpenAI generator. baseURL may be empty for the public API.
func NewOpenAI(apiKey, baseURL, model string, httpClient *http.Client) *OpenAIGenerator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIGenerator{client: openai.NewClientWithConfig(cfg), model: model}
}

func (g *OpenAIGenerator) Name() string {
	return "openai"
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	chatReq := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxOutputTokens,
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := g.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		log.Printf("[OpenAI] API error: %v", err)
		return "", fmt.Errorf("%w: openai: %w", apperr.ErrProviderUnavailable, err)
	}
	log.Printf("[OpenAI] Response received in %v (prompt tokens=%d, completion tokens=%d)",
		since(start), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices", apperr.ErrEmptyGeneration)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: openai returned empty content", apperr.ErrEmptyGeneration)
	}
	log.Printf("[OpenAI] Response preview: %s", truncateString(text, 200))
	return text, nil
}
