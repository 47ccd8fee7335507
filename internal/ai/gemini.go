package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"speakup/internal/apperr"
)

// GeminiGenerator calls the Gemini generateContent REST endpoint.
type GeminiGenerator struct {
	baseURL string
	model   string
	apiKey  string
	client  *http.Client
}

func NewGemini(baseURL, model, apiKey string, client *http.Client) *GeminiGenerator {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &GeminiGenerator{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
		client:  client,
	}
}

func (g *GeminiGenerator) Name() string {
	return "gemini"
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float32 `json:"temperature"`
	TopP             float32 `json:"topP,omitempty"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     req.Temperature,
			TopP:            req.TopP,
			MaxOutputTokens: req.MaxOutputTokens,
		},
	}
	if req.JSON {
		body.GenerationConfig.ResponseMimeType = "application/json"
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal gemini request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s:generateContent?key=%s", g.baseURL, g.model, url.QueryEscape(g.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		log.Printf("[Gemini] Request failed: %v", err)
		return "", fmt.Errorf("%w: gemini: %w", apperr.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read gemini response: %w", apperr.ErrProviderUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("[Gemini] API error: Status %d, Body: %s", resp.StatusCode, truncateString(string(raw), 500))
		return "", fmt.Errorf("%w: gemini returned status %d", apperr.ErrProviderUnavailable, resp.StatusCode)
	}

	var out geminiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: decode gemini response: %w", apperr.ErrProviderUnavailable, err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("%w: gemini error %d: %s", apperr.ErrProviderUnavailable, out.Error.Code, out.Error.Message)
	}
	if len(out.Candidates) == 0 {
		return "", fmt.Errorf("%w: gemini returned no candidates", apperr.ErrEmptyGeneration)
	}

	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("%w: gemini returned empty text", apperr.ErrEmptyGeneration)
	}
	log.Printf("[Gemini] Response received in %v, length=%d", since(start), len(text))
	return text, nil
}
