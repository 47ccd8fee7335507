package stt

import "context"

// Provider defines the interface for speech-to-text providers.
// Transport and provider-side failures wrap apperr.ErrProviderUnavailable;
// a response without discernible speech wraps apperr.ErrEmptyTranscript.
// Low confidence is never an error.
type Provider interface {
	// Transcribe transcribes an audio file and returns the result
	Transcribe(ctx context.Context, audioPath string) (*Result, error)

	// Name returns the name of the provider (e.g., "deepgram", "google")
	Name() string
}
