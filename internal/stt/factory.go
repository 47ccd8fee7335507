package stt

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"speakup/internal/config"
)

// CreateProvider creates the STT provider selected by cfg.STTProvider.
func CreateProvider(ctx context.Context, cfg *config.Config) (Provider, error) {
	client := &http.Client{Timeout: cfg.ProviderTimeout}

	switch cfg.STTProvider {
	case "deepgram":
		if cfg.DeepgramKey == "" {
			return nil, fmt.Errorf("DEEPGRAM_API_KEY environment variable is not set")
		}
		log.Printf("[STT Factory] Creating Deepgram STT provider (model=%s)", cfg.DeepgramModel)
		return NewDeepgramProvider(cfg.DeepgramKey, cfg.DeepgramURL, cfg.DeepgramModel, client), nil
	case "whisper":
		log.Printf("[STT Factory] Creating Whisper STT provider at %s", cfg.WhisperEndpoint)
		return NewWhisperProvider(cfg.WhisperEndpoint, client), nil
	case "fpt":
		if cfg.FPTApiKey == "" {
			return nil, fmt.Errorf("FPT_AI_API_KEY environment variable is not set")
		}
		log.Printf("[STT Factory] Creating FPT STT provider")
		return NewFPTProvider(cfg.FPTApiKey, cfg.FPTSTTURL, client), nil
	case "google":
		return createGoogleProvider(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported STT provider: %s. Supported: deepgram, whisper, fpt, google", cfg.STTProvider)
	}
}

// createGoogleProvider creates a Google STT provider
// GOOGLE_STT_KEY_FILE can be either:
//   - An API key (39 characters, typically starts with "AIzaSy")
//   - A file path to a JSON key file (e.g., "./keys/google-service-account.json")
//   - A JSON string containing the service account credentials
func createGoogleProvider(ctx context.Context, cfg *config.Config) (Provider, error) {
	if !IsGoogleAPIKey(cfg.GoogleSTTKeyFile) && cfg.GoogleSTTProjectID == "" {
		return nil, fmt.Errorf("GOOGLE_STT_PROJECT_ID environment variable is required when using service account")
	}
	if IsGoogleAPIKey(cfg.GoogleSTTKeyFile) {
		log.Printf("[STT Factory] Creating Google STT provider with API key")
	} else {
		log.Printf("[STT Factory] Creating Google STT provider with project: %s", cfg.GoogleSTTProjectID)
	}
	return NewGoogleProvider(ctx, cfg.GoogleSTTProjectID, cfg.GoogleSTTKeyFile, cfg.STTLanguage, cfg.ProviderTimeout)
}
