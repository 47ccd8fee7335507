package stt

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleSpeechBaseURL = "https://speech.googleapis.com/v1"

// GoogleProvider implements STT using Google Cloud Speech-to-Text REST API
type GoogleProvider struct {
	projectID  string
	apiKey     string
	language   string
	baseURL    string
	httpClient *http.Client
	useAPIKey  bool
}

// IsGoogleAPIKey reports whether keyData looks like an API key rather than
// service account credentials.
func IsGoogleAPIKey(keyData string) bool {
	k := strings.TrimSpace(keyData)
	return len(k) == 39 && strings.HasPrefix(k, "AIzaSy")
}

// NewGoogleProvider creates a new Google STT provider
// keyData can be either:
//   - An API key (39 characters, typically starts with "AIzaSy")
//   - A file path to a JSON key file (e.g., "./keys/google-service-account.json")
//   - A JSON string containing the service account credentials
//   - Empty, to use application default credentials
func NewGoogleProvider(ctx context.Context, projectID, keyData, language string, timeout time.Duration) (*GoogleProvider, error) {
	keyDataTrimmed := strings.TrimSpace(keyData)
	p := &GoogleProvider{projectID: projectID, language: language, baseURL: googleSpeechBaseURL}

	if IsGoogleAPIKey(keyDataTrimmed) {
		log.Printf("[Google STT] Using API key authentication")
		p.apiKey = keyDataTrimmed
		p.useAPIKey = true
		p.httpClient = &http.Client{Timeout: timeout}
		return p, nil
	}

	const scope = "https://www.googleapis.com/auth/cloud-platform"
	var creds *google.Credentials
	var err error
	switch {
	case keyDataTrimmed == "":
		creds, err = google.FindDefaultCredentials(ctx, scope)
		if err != nil {
			return nil, fmt.Errorf("failed to find default credentials: %w. Please set GOOGLE_STT_KEY_FILE", err)
		}
	case strings.HasPrefix(keyDataTrimmed, "{"):
		log.Printf("[Google STT] Using JSON string from environment variable")
		creds, err = google.CredentialsFromJSON(ctx, []byte(keyDataTrimmed), scope)
	default:
		log.Printf("[Google STT] Reading key file: %s", keyDataTrimmed)
		jsonData, readErr := os.ReadFile(keyDataTrimmed)
		if readErr != nil {
			return nil, fmt.Errorf("failed to read key file '%s': %w", keyDataTrimmed, readErr)
		}
		creds, err = google.CredentialsFromJSON(ctx, jsonData, scope)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create credentials from JSON: %w", err)
	}

	client := oauth2.NewClient(ctx, creds.TokenSource)
	client.Timeout = timeout
	p.httpClient = client
	return p, nil
}

// Name returns the provider name
func (p *GoogleProvider) Name() string {
	return "google"
}

type googleSTTRequest struct {
	Config googleSTTConfig `json:"config"`
	Audio  googleSTTAudio  `json:"audio"`
}

type googleSTTConfig struct {
	Encoding                   string `json:"encoding"`
	SampleRateHertz            int    `json:"sampleRateHertz,omitempty"`
	LanguageCode               string `json:"languageCode"`
	EnableAutomaticPunctuation bool   `json:"enableAutomaticPunctuation"`
	EnableWordTimeOffsets      bool   `json:"enableWordTimeOffsets"`
	Model                      string `json:"model,omitempty"`
}

type googleSTTAudio struct {
	Content string `json:"content"`
}

type googleSTTResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				Word      string `json:"word"`
				StartTime string `json:"startTime"`
				EndTime   string `json:"endTime"`
			} `json:"words"`
		} `json:"alternatives"`
		ResultEndTime string `json:"resultEndTime"`
	} `json:"results"`
	TotalBilledTime string          `json:"totalBilledTime"`
	Error           *googleSTTError `json:"error,omitempty"`
}

type googleSTTError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Transcribe transcribes an audio file using Google Cloud Speech-to-Text REST API
func (p *GoogleProvider) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	startTime := time.Now()
	audioBytes, err := readAudio(audioPath)
	if err != nil {
		return nil, err
	}
	log.Printf("[Google STT] Processing audio file: %s, size: %d bytes", audioPath, len(audioBytes))

	encoding, sampleRate := getGoogleAudioConfig(filepath.Ext(audioPath))
	reqJSON, err := json.Marshal(googleSTTRequest{
		Config: googleSTTConfig{
			Encoding:                   encoding,
			SampleRateHertz:            sampleRate,
			LanguageCode:               p.language,
			EnableAutomaticPunctuation: true,
			EnableWordTimeOffsets:      true,
			Model:                      "latest_short",
		},
		Audio: googleSTTAudio{Content: base64.StdEncoding.EncodeToString(audioBytes)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	apiURL := p.baseURL + "/speech:recognize"
	if p.useAPIKey {
		apiURL += "?key=" + p.apiKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(reqJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if !p.useAPIKey && p.projectID != "" {
		req.Header.Set("x-goog-user-project", p.projectID)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		log.Printf("[Google STT] HTTP error: %v", err)
		return nil, unavailable(p.Name(), "request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unavailable(p.Name(), "failed to read response body: %v", err)
	}

	var sttResp googleSTTResponse
	if resp.StatusCode != http.StatusOK {
		log.Printf("[Google STT] API error: Status %d, Body: %s", resp.StatusCode, preview(body))
		return nil, unavailable(p.Name(), "API returned status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &sttResp); err != nil {
		return nil, unavailable(p.Name(), "failed to parse response: %v", err)
	}
	if sttResp.Error != nil {
		return nil, unavailable(p.Name(), "API error %s: %s", sttResp.Error.Status, sttResp.Error.Message)
	}

	// long utterances come back split across several results
	var parts []string
	var words []Word
	var confSum float64
	var confN int
	var duration float64
	for _, r := range sttResp.Results {
		if d := parseGoogleDuration(r.ResultEndTime); d > duration {
			duration = d
		}
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		if t := strings.TrimSpace(alt.Transcript); t != "" {
			parts = append(parts, t)
			confSum += alt.Confidence
			confN++
		}
		for _, w := range alt.Words {
			words = append(words, Word{
				Word:  w.Word,
				Start: parseGoogleDuration(w.StartTime),
				End:   parseGoogleDuration(w.EndTime),
			})
		}
	}
	if len(parts) == 0 {
		return nil, emptyTranscript(p.Name())
	}

	result := &Result{
		Text:        strings.Join(parts, " "),
		Confidence:  floatPtr(confSum / float64(confN)),
		Words:       words,
		Provider:    p.Name(),
		RawResponse: string(body),
	}
	if duration > 0 {
		result.DurationSeconds = floatPtr(duration)
	}
	log.Printf("[Google STT] Transcription successful: confidence=%.2f, length=%d, took=%v",
		*result.Confidence, len(result.Text), time.Since(startTime))
	return result, nil
}

// parseGoogleDuration parses protobuf JSON durations such as "1.500s".
func parseGoogleDuration(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "s"), 64)
	if err != nil {
		return 0
	}
	return v
}

// getGoogleAudioConfig determines encoding and sample rate based on file extension
func getGoogleAudioConfig(fileExt string) (string, int) {
	switch strings.ToLower(fileExt) {
	case ".wav":
		return "LINEAR16", 16000
	case ".mp3":
		return "MP3", 44100
	case ".ogg":
		return "OGG_OPUS", 48000
	case ".webm":
		return "WEBM_OPUS", 48000
	case ".flac":
		return "FLAC", 0
	default:
		return "ENCODING_UNSPECIFIED", 0
	}
}
