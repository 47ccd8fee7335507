package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// FPTProvider implements STT using FPT.AI Speech-to-Text API
type FPTProvider struct {
	apiKey string
	url    string
	client *http.Client
}

// NewFPTProvider creates a new FPT STT provider
func NewFPTProvider(apiKey, url string, client *http.Client) *FPTProvider {
	if client == nil {
		client = &http.Client{Timeout: 90 * time.Second}
	}
	return &FPTProvider{apiKey: apiKey, url: url, client: client}
}

// Name returns the provider name
func (p *FPTProvider) Name() string {
	return "fpt"
}

// FPTSTTResponse represents FPT.AI STT API response
type FPTSTTResponse struct {
	Hypotheses []struct {
		Utterance  string  `json:"utterance"`
		Confidence float64 `json:"confidence"`
	} `json:"hypotheses"`
	ErrorCode int    `json:"errorCode,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Transcribe sends the raw audio bytes to FPT.AI and returns the best hypothesis.
func (p *FPTProvider) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	startTime := time.Now()
	audioBytes, err := readAudio(audioPath)
	if err != nil {
		return nil, err
	}
	log.Printf("[FPT STT] Processing audio file: %s, size: %d bytes", audioPath, len(audioBytes))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(audioBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("api-key", p.apiKey)
	req.Header.Set("Content-Type", "text/plain")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, unavailable(p.Name(), "failed to send request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unavailable(p.Name(), "failed to read response body: %v", err)
	}
	log.Printf("[FPT STT] Response preview: %s", preview(body))

	if resp.StatusCode != http.StatusOK {
		return nil, unavailable(p.Name(), "API returned status %d", resp.StatusCode)
	}

	var sttResp FPTSTTResponse
	if err := json.Unmarshal(body, &sttResp); err != nil {
		return nil, unavailable(p.Name(), "failed to parse response: %v", err)
	}
	if sttResp.ErrorCode != 0 {
		log.Printf("[FPT STT] API error code %d: %s", sttResp.ErrorCode, sttResp.Message)
		return nil, unavailable(p.Name(), "API error %d: %s", sttResp.ErrorCode, sttResp.Message)
	}
	if len(sttResp.Hypotheses) == 0 {
		return nil, emptyTranscript(p.Name())
	}

	hyp := sttResp.Hypotheses[0]
	transcript := strings.TrimSpace(hyp.Utterance)
	if transcript == "" {
		return nil, emptyTranscript(p.Name())
	}

	log.Printf("[FPT STT] Transcription successful: confidence=%.2f, length=%d, took=%v",
		hyp.Confidence, len(transcript), time.Since(startTime))
	return &Result{
		Text:        transcript,
		Confidence:  floatPtr(hyp.Confidence),
		Provider:    p.Name(),
		RawResponse: string(body),
	}, nil
}
