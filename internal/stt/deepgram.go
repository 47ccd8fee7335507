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
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// DeepgramProvider implements STT using the Deepgram pre-recorded listen API.
type DeepgramProvider struct {
	apiKey   string
	endpoint string
	model    string
	client   *http.Client
}

func NewDeepgramProvider(apiKey, endpoint, model string, client *http.Client) *DeepgramProvider {
	if model == "" {
		model = "nova-2"
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &DeepgramProvider{apiKey: apiKey, endpoint: endpoint, model: model, client: client}
}

func (p *DeepgramProvider) Name() string {
	return "deepgram"
}

type deepgramResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
				Words      []Word  `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (p *DeepgramProvider) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	startTime := time.Now()
	audioBytes, err := readAudio(audioPath)
	if err != nil {
		return nil, err
	}
	log.Printf("[Deepgram STT] Processing audio file: %s, size: %d bytes", audioPath, len(audioBytes))

	var b bytes.Buffer
	mw := multipart.NewWriter(&b)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filepath.Base(audioPath)))
	h.Set("Content-Type", audioContentType(audioPath))
	fw, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(audioBytes); err != nil {
		return nil, fmt.Errorf("write audio to form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	q := url.Values{}
	q.Set("model", p.model)
	q.Set("smart_format", "true")
	endpoint := p.endpoint
	if strings.Contains(endpoint, "?") {
		endpoint += "&" + q.Encode()
	} else {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &b)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		log.Printf("[Deepgram STT] HTTP error: %v", err)
		return nil, unavailable(p.Name(), "request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unavailable(p.Name(), "read response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("[Deepgram STT] API error: Status %d, Body: %s", resp.StatusCode, preview(body))
		return nil, unavailable(p.Name(), "status %d", resp.StatusCode)
	}

	var dg deepgramResponse
	if err := json.Unmarshal(body, &dg); err != nil {
		log.Printf("[Deepgram STT] Failed to parse response. Raw body: %s", preview(body))
		return nil, unavailable(p.Name(), "parse response: %v", err)
	}

	result := &Result{Provider: p.Name(), RawResponse: string(body)}
	if dg.Metadata.Duration > 0 {
		result.DurationSeconds = floatPtr(dg.Metadata.Duration)
	}
	if len(dg.Results.Channels) == 0 || len(dg.Results.Channels[0].Alternatives) == 0 {
		return nil, emptyTranscript(p.Name())
	}
	alt := dg.Results.Channels[0].Alternatives[0]
	result.Text = strings.TrimSpace(alt.Transcript)
	if result.Text == "" {
		return nil, emptyTranscript(p.Name())
	}
	result.Confidence = floatPtr(alt.Confidence)
	result.Words = alt.Words

	log.Printf("[Deepgram STT] Transcription successful: confidence=%.2f, length=%d, took=%v",
		alt.Confidence, len(result.Text), time.Since(startTime))
	return result, nil
}
