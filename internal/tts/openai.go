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
const EnvOpenAIAPIKey = "OPENAI_API_KEY"

const defaultOpenAIEndpoint = "https://api.openai.com/v1/audio/speech"

// Voices offered by the OpenAI speech API.
var openAIVoices = []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}

// OpenAIAdapter synthesizes speech through the OpenAI text-to-speech
// API. Responses are requested as WAV so they feed the player without
// an extra decode step.
type OpenAIAdapter struct {
	apiKey     string
	endpoint   string
	voice      string
	model      string
	httpClient *http.Client
	log        *logger.Logger
	loaded     bool
}

// NewOpenAIAdapter creates the adapter. Call Load before use.
func NewOpenAIAdapter(opts Options, log *logger.Logger) *OpenAIAdapter {
	voice := opts.Voice
	if voice == "" {
		voice = "alloy"
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = defaultOpenAIEndpoint
	}
	return &OpenAIAdapter{
		apiKey:   opts.APIKey,
		endpoint: endpoint,
		voice:    voice,
		model:    "tts-1",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

// Load validates credentials. No network round trip: a bad key
// surfaces on the first synthesis call.
func (a *OpenAIAdapter) Load() bool {
	if a.apiKey == "" {
		a.apiKey = os.Getenv(EnvOpenAIAPIKey)
	}
	if a.apiKey == "" {
		a.log.Error("openai tts: no API key (set %s or tts.api_key)", EnvOpenAIAPIKey)
		a.loaded = false
		return false
	}
	a.loaded = true
	a.log.Info("openai tts ready (voice=%s, model=%s)", a.voice, a.model)
	return true
}

func (a *OpenAIAdapter) Loaded() bool { return a.loaded }

// Voices returns the static OpenAI voice catalog.
func (a *OpenAIAdapter) Voices() []string {
	out := make([]string, len(openAIVoices))
	copy(out, openAIVoices)
	return out
}

func (a *OpenAIAdapter) DisplayName() string {
	return fmt.Sprintf("OpenAI TTS (%s)", a.voice)
}

type openAISpeechRequest struct {
	Model          string `json:"model"`
	Voice          string `json:"voice"`
	Input          string `json:"input"`
	ResponseFormat string `json:"response_format"`
}

// SynthesizeChunk posts one chunk and writes the WAV response to a
// temp artifact.
func (a *OpenAIAdapter) SynthesizeChunk(ctx context.Context, text string) (*Result, error) {
	if !a.loaded {
		return nil, &SynthesisError{Adapter: a.DisplayName(), Err: ErrNotLoaded}
	}

	payload, err := json.Marshal(openAISpeechRequest{
		Model:          a.model,
		Voice:          a.voice,
		Input:          text,
		ResponseFormat: "wav",
	})
	if err != nil {
		return nil, &SynthesisError{Adapter: a.DisplayName(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &SynthesisError{Adapter: a.DisplayName(), Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	a.log.Debug("openai tts: synthesizing %d chars", len(text))

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

	path := artifactPath(FormatWAV)
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return nil, &SynthesisError{Adapter: a.DisplayName(), Err: err}
	}
	a.log.Debug("openai tts: %d bytes -> %s", len(audio), path)
	return &Result{Path: path, Format: FormatWAV}, nil
}
