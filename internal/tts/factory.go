package tts

import (
	"fmt"
	"log"
	"net/http"

	"speakup/internal/config"
)

// NewSynthesizer creates the synthesizer selected by cfg.TTSProvider.
func NewSynthesizer(cfg *config.Config) (Synthesizer, error) {
	client := &http.Client{Timeout: cfg.ProviderTimeout}
	switch cfg.TTSProvider {
	case "deepgram":
		if cfg.DeepgramKey == "" {
			return nil, fmt.Errorf("DEEPGRAM_API_KEY environment variable is not set")
		}
		log.Printf("[TTS Factory] Creating Deepgram synthesizer (voice=%s, format=%s)", cfg.DeepgramTTSVoice, cfg.DeepgramTTSFormat)
		return NewDeepgram(cfg.DeepgramKey, cfg.DeepgramTTSURL, cfg.DeepgramTTSVoice, cfg.DeepgramTTSFormat, client), nil
	case "piper":
		log.Printf("[TTS Factory] Creating Piper synthesizer at %s", cfg.PiperEndpoint)
		return NewPiper(cfg.PiperEndpoint, client), nil
	default:
		return nil, fmt.Errorf("unsupported TTS provider: %s. Supported: deepgram, piper", cfg.TTSProvider)
	}
}
