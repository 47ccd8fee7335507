package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"time"
)

// DeepgramSynthesizer calls the Deepgram speak endpoint.
type DeepgramSynthesizer struct {
	apiKey       string
	endpoint     string
	defaultVoice string
	format       string
	client       *http.Client
}

func NewDeepgram(apiKey, endpoint, defaultVoice, format string, client *http.Client) *DeepgramSynthesizer {
	if defaultVoice == "" {
		defaultVoice = "aura-asteria-en"
	}
	if format == "" {
		format = "audio/mpeg"
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &DeepgramSynthesizer{apiKey: apiKey, endpoint: endpoint, defaultVoice: defaultVoice, format: format, client: client}
}

func (d *DeepgramSynthesizer) Name() string {
	return "deepgram"
}

func (d *DeepgramSynthesizer) Synthesize(ctx context.Context, text, voice string) (*Result, error) {
	text, err := checkText(text)
	if err != nil {
		return nil, err
	}
	if voice == "" {
		voice = d.defaultVoice
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	endpoint := d.endpoint + "?model=" + url.QueryEscape(voice)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", d.format)

	resp, err := d.client.Do(req)
	if err != nil {
		log.Printf("[Deepgram TTS] HTTP error: %v", err)
		return nil, unavailable(d.Name(), "request failed: %v", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unavailable(d.Name(), "read audio: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("[Deepgram TTS] API error: Status %d, Body: %.300s", resp.StatusCode, audio)
		return nil, unavailable(d.Name(), "status %d", resp.StatusCode)
	}
	if len(audio) == 0 {
		return nil, unavailable(d.Name(), "empty audio response")
	}

	mimeType := d.format
	if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil && mt != "" {
		mimeType = mt
	}
	log.Printf("[Deepgram TTS] Synthesized %d chars into %d bytes (%s, voice=%s)", len(text), len(audio), mimeType, voice)
	return &Result{Audio: audio, MimeType: mimeType, Voice: voice}, nil
}
