package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

// WhisperProvider calls a local Whisper inference server that accepts a
// multipart "file" field and returns JSON {"text":"..."}.
type WhisperProvider struct {
	endpoint string
	client   *http.Client
}

func NewWhisperProvider(endpoint string, client *http.Client) *WhisperProvider {
	if endpoint == "" {
		endpoint = "http://localhost:7070/inference"
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &WhisperProvider{endpoint: endpoint, client: client}
}

func (p *WhisperProvider) Name() string {
	return "whisper"
}

type whisperResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration,omitempty"`
}

func (p *WhisperProvider) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	audioBytes, err := readAudio(audioPath)
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	mw := multipart.NewWriter(&b)
	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(audioBytes); err != nil {
		return nil, fmt.Errorf("write audio to form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, &b)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, unavailable(p.Name(), "post to whisper server: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unavailable(p.Name(), "read response body: %v", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("[Whisper STT] Server returned status %d: %s", resp.StatusCode, preview(body))
		return nil, unavailable(p.Name(), "status %d", resp.StatusCode)
	}

	var wr whisperResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		return nil, unavailable(p.Name(), "unmarshal response: %v", err)
	}
	text := strings.TrimSpace(wr.Text)
	if text == "" {
		return nil, emptyTranscript(p.Name())
	}

	// the local server reports no confidence
	result := &Result{Text: text, Provider: p.Name(), RawResponse: string(body)}
	if wr.Duration > 0 {
		result.DurationSeconds = floatPtr(wr.Duration)
	}
	return result, nil
}
