package stt

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"speakup/internal/apperr"
)

// Word is a single recognized word with timing in seconds.
type Word struct {
	Word       string  `json:"word"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Result represents the result of a speech-to-text transcription
type Result struct {
	Text            string   `json:"text"`
	DurationSeconds *float64 `json:"durationSeconds,omitempty"`
	Confidence      *float64 `json:"confidence,omitempty"`
	Words           []Word   `json:"words,omitempty"`
	Provider        string   `json:"provider"`
	RawResponse     string   `json:"-"`
}

func readAudio(audioPath string) ([]byte, error) {
	audioBytes, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio file: %w", err)
	}
	if len(audioBytes) == 0 {
		return nil, fmt.Errorf("%w: audio file %s is empty", apperr.ErrInvalidAudio, filepath.Base(audioPath))
	}
	return audioBytes, nil
}

func audioContentType(audioPath string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(audioPath))); ct != "" {
		return ct
	}
	switch strings.ToLower(filepath.Ext(audioPath)) {
	case ".webm":
		return "audio/webm"
	case ".m4a":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	}
	return "application/octet-stream"
}

func unavailable(provider, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s: %s", apperr.ErrProviderUnavailable, provider, fmt.Sprintf(format, args...))
}

func emptyTranscript(provider string) error {
	return fmt.Errorf("%w: %s returned no speech", apperr.ErrEmptyTranscript, provider)
}

func floatPtr(v float64) *float64 {
	return &v
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 500 {
		return s[:500] + "..."
	}
	return s
}
