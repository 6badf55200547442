package tts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/contextmirror/voice-mirror/internal/logger"
)

// Piper voices with downloadable models.
var piperVoices = []string{
	"en_US-amy-medium",
	"en_US-lessac-medium",
	"en_US-libritts_r-medium",
	"en_GB-cori-medium",
	"en_GB-alan-medium",
}

// PiperAdapter synthesizes speech by running the piper CLI as a
// subprocess: text on stdin, WAV on stdout. Local, fast, and free,
// which is why it is the registry's preferred default.
//
// The mutex keeps one subprocess in flight per adapter instance;
// prefetch goroutines would otherwise race each other for the model.
type PiperAdapter struct {
	bin       string
	modelPath string
	voice     string
	log       *logger.Logger
	loaded    bool
	mu        sync.Mutex
}

// NewPiperAdapter creates the adapter. Call Load before use.
func NewPiperAdapter(opts Options, log *logger.Logger) *PiperAdapter {
	voice := opts.Voice
	if voice == "" {
		voice = "en_US-amy-medium"
	}
	return &PiperAdapter{
		bin:       "piper",
		modelPath: opts.ModelPath,
		voice:     voice,
		log:       log,
	}
}

// Load checks that the piper binary and the voice model exist. When no
// model_path is configured, piper's own model lookup by voice name is
// used (--model <voice>).
func (a *PiperAdapter) Load() bool {
	if _, err := exec.LookPath(a.bin); err != nil {
		a.log.Error("piper tts: binary %q not found in PATH", a.bin)
		a.loaded = false
		return false
	}
	if a.modelPath != "" {
		if _, err := os.Stat(a.modelPath); err != nil {
			a.log.Error("piper tts: model not found at %s", a.modelPath)
			a.loaded = false
			return false
		}
	}
	a.loaded = true
	a.log.Info("piper tts ready (voice=%s)", a.voice)
	return true
}

func (a *PiperAdapter) Loaded() bool { return a.loaded }

// Voices returns the static Piper voice catalog.
func (a *PiperAdapter) Voices() []string {
	out := make([]string, len(piperVoices))
	copy(out, piperVoices)
	return out
}

func (a *PiperAdapter) DisplayName() string {
	return fmt.Sprintf("Piper (%s)", a.voice)
}

// SynthesizeChunk runs piper on one chunk and captures the WAV output
// as a temp artifact.
func (a *PiperAdapter) SynthesizeChunk(ctx context.Context, text string) (*Result, error) {
	if !a.loaded {
		return nil, &SynthesisError{Adapter: a.DisplayName(), Err: ErrNotLoaded}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	model := a.modelPath
	if model == "" {
		model = a.voice
	}
	path := artifactPath(FormatWAV)

	cmd := exec.CommandContext(ctx, a.bin, "--model", model, "--output_file", path)
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	a.log.Debug("piper tts: synthesizing %d chars", len(text))

	if err := cmd.Run(); err != nil {
		os.Remove(path)
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return nil, &SynthesisError{Adapter: a.DisplayName(), Err: err}
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &SynthesisError{Adapter: a.DisplayName(), Err: fmt.Errorf("no output produced: %w", err)}
	}
	return &Result{Path: path, Format: FormatWAV}, nil
}
