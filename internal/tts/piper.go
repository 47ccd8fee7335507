package tts

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// PiperSynthesizer posts url-encoded text to a local Piper server, which
// answers with WAV audio.
type PiperSynthesizer struct {
	endpoint string
	client   *http.Client
}

func NewPiper(endpoint string, client *http.Client) *PiperSynthesizer {
	if endpoint == "" {
		endpoint = "http://localhost:7071/tts"
	}
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return &PiperSynthesizer{endpoint: endpoint, client: client}
}

func (p *PiperSynthesizer) Name() string {
	return "piper"
}

// Synthesize ignores voice; the Piper server is started with a single model.
func (p *PiperSynthesizer) Synthesize(ctx context.Context, text, _ string) (*Result, error) {
	text, err := checkText(text)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("text", text)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, unavailable(p.Name(), "post form to piper tts: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unavailable(p.Name(), "read tts response: %v", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, unavailable(p.Name(), "bad status %d", resp.StatusCode)
	}
	if len(body) == 0 {
		return nil, unavailable(p.Name(), "empty audio response")
	}
	return &Result{Audio: body, MimeType: "audio/wav", Voice: p.Name()}, nil
}
