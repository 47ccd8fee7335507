package apperr

import "errors"

// Error kinds shared by the orchestrator and its provider adapters.
// Wrap them with fmt.Errorf("...: %w", ErrX) and test with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInvalidAudio        = errors.New("invalid audio")
	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrEmptyTranscript     = errors.New("empty transcript")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrEmptyGeneration     = errors.New("empty generation")
)

const (
	msgEmptyAudio   = "We did not capture any sound in that recording. Please speak clearly and hold the button a little longer."
	msgNotHeard     = "We could not hear you clearly. Please try recording again."
	msgNoTranscript = "We did not get any words from that recording. Could you say it again, a bit louder and clearer?"
)

// UserMessage returns learner-facing text for errors that the learner can act on.
// The second return value is false for every other error.
func UserMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrInvalidAudio):
		return msgEmptyAudio, true
	case errors.Is(err, ErrEmptyTranscript):
		return msgNoTranscript, true
	case errors.Is(err, ErrTranscriptionFailed):
		return msgNotHeard, true
	}
	return "", false
}
