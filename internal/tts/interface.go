// Package tts adapts external text-to-speech endpoints.
package tts

import (
	"context"
	"fmt"
	"strings"

	"speakup/internal/apperr"
)

// Result is synthesized audio.
type Result struct {
	Audio    []byte
	MimeType string
	Voice    string
}

// Synthesizer converts text to audio.
// Empty text fails with apperr.ErrInvalidArgument, provider failures wrap
// apperr.ErrProviderUnavailable.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (*Result, error)
	Name() string
}

func checkText(text string) (string, error) {
	t := strings.TrimSpace(text)
	if t == "" {
		return "", fmt.Errorf("%w: text to synthesize is empty", apperr.ErrInvalidArgument)
	}
	return t, nil
}

func unavailable(provider, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s: %s", apperr.ErrProviderUnavailable, provider, fmt.Sprintf(format, args...))
}
