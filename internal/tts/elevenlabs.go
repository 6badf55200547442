package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/contextmirror/voice-mirror/internal/logger"
)

// Env var consulted when no API key is configured.
const EnvElevenLabsAPIKey = "ELEVENLABS_API_KEY"

const defaultElevenLabsEndpoint = "https://api.elevenlabs.io/v1/text-to-speech"

// Default ElevenLabs voices.
var elevenLabsVoices = []string{
	"Rachel", "Domi", "Bella", "Antoni", "Elli",
	"Josh", "Arnold", "Adam", "Sam",
}

// ElevenLabsAdapter synthesizes speech through the ElevenLabs API.
// The service returns MP3; the player decodes it on playback.
type ElevenLabsAdapter struct {
	apiKey     string
	endpoint   string
	voice      string
	httpClient *http.Client
	log        *logger.Logger
	loaded     bool
}

// NewElevenLabsAdapter creates the adapter. Call Load before use.
func NewElevenLabsAdapter(opts Options, log *logger.Logger) *ElevenLabsAdapter {
	voice := opts.Voice
	if voice == "" {
		voice = "Rachel"
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = defaultElevenLabsEndpoint
	}
	return &ElevenLabsAdapter{
		apiKey:   opts.APIKey,
		endpoint: endpoint,
		voice:    voice,
		httpClient: &http.Client{
			Timeout: 45 * time.Second,
		},
		log: log,
	}
}

// Load validates credentials.
func (a *ElevenLabsAdapter) Load() bool {
	if a.apiKey == "" {
		a.apiKey = os.Getenv(EnvElevenLabsAPIKey)
	}
	if a.apiKey == "" {
		a.log.Error("elevenlabs tts: no API key (set %s or tts.api_key)", EnvElevenLabsAPIKey)
		a.loaded = false
		return false
	}
	a.loaded = true
	a.log.Info("elevenlabs tts ready (voice=%s)", a.voice)
	return true
}

func (a *ElevenLabsAdapter) Loaded() bool { return a.loaded }

// Voices returns the static default voice catalog.
func (a *ElevenLabsAdapter) Voices() []string {
	out := make([]string, len(elevenLabsVoices))
	copy(out, elevenLabsVoices)
	return out
}

func (a *ElevenLabsAdapter) DisplayName() string {
	return fmt.Sprintf("ElevenLabs (%s)", a.voice)
}

type elevenLabsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// SynthesizeChunk posts one chunk and writes the MP3 response to a
// temp artifact.
func (a *ElevenLabsAdapter) SynthesizeChunk(ctx context.Context, text string) (*Result, error) {
	if !a.loaded {
		return nil, &SynthesisError{Adapter: a.DisplayName(), Err: ErrNotLoaded}
	}

	payload, err := json.Marshal(elevenLabsRequest{
		Text:    text,
		ModelID: "eleven_multilingual_v2",
	})
	if err != nil {
		return nil, &SynthesisError{Adapter: a.DisplayName(), Err: err}
	}

	url := fmt.Sprintf("%s/%s?output_format=mp3_44100_128", a.endpoint, a.voice)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &SynthesisError{Adapter: a.DisplayName(), Err: err}
	}
	req.Header.Set("xi-api-key", a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	a.log.Debug("elevenlabs tts: synthesizing %d chars", len(text))

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &SynthesisError{Adapter: a.DisplayName(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &SynthesisError{
			Adapter: a.DisplayName(),
			Err:     fmt.Errorf("status %d: %s", resp.StatusCode, string(body)),
		}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SynthesisError{Adapter: a.DisplayName(), Err: err}
	}

	path := artifactPath(FormatMP3)
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return nil, &SynthesisError{Adapter: a.DisplayName(), Err: err}
	}
	a.log.Debug("elevenlabs tts: %d bytes -> %s", len(audio), path)
	return &Result{Path: path, Format: FormatMP3}, nil
}
