package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	Port         string
	DatabaseURL  string
	DatabasePath string
	JWTSecret    string
	CORSOrigins  []string

	AudioBaseDir    string
	ScenarioConfig  string
	PromptTemplates string
	ScenarioSeed    string

	LLMProvider string
	STTProvider string
	TTSProvider string

	OpenAIKey   string
	OpenAIModel string

	GeminiKey   string
	GeminiModel string
	GeminiURL   string

	OllamaEndpoint string
	OllamaModel    string

	DeepgramKey       string
	DeepgramURL       string
	DeepgramModel     string
	DeepgramTTSURL    string
	DeepgramTTSVoice  string
	DeepgramTTSFormat string

	STTLanguage string

	WhisperEndpoint string
	PiperEndpoint   string

	GoogleSTTProjectID string
	GoogleSTTKeyFile   string

	FPTApiKey string
	FPTSTTURL string

	ProviderTimeout    time.Duration
	IdleSessionTimeout time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabasePath: getEnv("DATABASE_PATH", "data/speakup.db"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		CORSOrigins:  splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),

		AudioBaseDir:    getEnv("AUDIO_BASE_DIR", "uploads/ai-chat"),
		ScenarioConfig:  getEnv("SCENARIO_CONFIG", "configs/scenario-config.json"),
		PromptTemplates: getEnv("PROMPT_TEMPLATES", "configs/prompt-templates.json"),
		ScenarioSeed:    getEnv("SCENARIO_SEED", "configs/default-scenarios.json"),

		LLMProvider: strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
		STTProvider: strings.ToLower(getEnv("STT_PROVIDER", "deepgram")),
		TTSProvider: strings.ToLower(getEnv("TTS_PROVIDER", "deepgram")),

		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIModel: getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		GeminiKey:   os.Getenv("GEMINI_API_KEY"),
		GeminiModel: getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiURL:   getEnv("GEMINI_API_URL", "https://generativelanguage.googleapis.com/v1beta/models"),

		OllamaEndpoint: getEnv("OLLAMA_ENDPOINT", "http://localhost:11434/api/generate"),
		OllamaModel:    getEnv("OLLAMA_MODEL", "llama3"),

		DeepgramKey:       os.Getenv("DEEPGRAM_API_KEY"),
		DeepgramURL:       getEnv("DEEPGRAM_API_URL", "https://api.deepgram.com/v1/listen"),
		DeepgramModel:     getEnv("DEEPGRAM_MODEL", "nova-2"),
		DeepgramTTSURL:    getEnv("DEEPGRAM_TTS_URL", "https://api.deepgram.com/v1/speak"),
		DeepgramTTSVoice:  getEnv("DEEPGRAM_TTS_VOICE", "aura-asteria-en"),
		DeepgramTTSFormat: getEnv("DEEPGRAM_TTS_FORMAT", "audio/mpeg"),

		STTLanguage: getEnv("STT_LANGUAGE", "en-US"),

		WhisperEndpoint: getEnv("WHISPER_ENDPOINT", "http://localhost:7070/inference"),
		PiperEndpoint:   getEnv("PIPER_ENDPOINT", "http://localhost:7071/tts"),

		GoogleSTTProjectID: os.Getenv("GOOGLE_STT_PROJECT_ID"),
		GoogleSTTKeyFile:   os.Getenv("GOOGLE_STT_KEY_FILE"),

		FPTApiKey: os.Getenv("FPT_AI_API_KEY"),
		FPTSTTURL: getEnv("FPT_AI_STT_URL", "https://api.fpt.ai/hmi/asr/v1"),
	}

	var err error
	if cfg.ProviderTimeout, err = getDuration("PROVIDER_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.IdleSessionTimeout, err = getDuration("IDLE_SESSION_TIMEOUT", 6*time.Hour); err != nil {
		return nil, err
	}

	// Provider keys are validated by the factories for the selected provider only.
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required. Please set it as environment variable:\n  Linux/Mac: export JWT_SECRET=\"your_secret\"")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration (e.g. 30s, 6h), got %q", key, v)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
