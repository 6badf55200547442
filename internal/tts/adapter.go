// Package tts is the speech-synthesis core: it splits text into
// chunks, synthesizes them through a swappable adapter, and plays them
// back with single-slot lookahead so the next chunk is ready the
// moment the current one finishes.
package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
)

// Format is the audio container of a synthesized artifact.
type Format string

const (
	FormatWAV Format = "wav"
	FormatMP3 Format = "mp3"
)

// Result is one synthesized chunk of audio, referenced by a temporary
// file. The pipeline exclusively owns every Result it receives and
// releases it after playback or on abort.
type Result struct {
	Path   string
	Format Format
}

// Release deletes the artifact file. Safe to call more than once.
func (r *Result) Release() error {
	if r == nil || r.Path == "" {
		return nil
	}
	err := os.Remove(r.Path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// Adapter is the capability contract every synthesis backend
// implements, local or cloud. The pipeline holds exactly one adapter
// for its lifetime and never looks past this interface.
//
// SynthesizeChunk may run concurrently with playback of a previous
// result, but the pipeline never issues two synthesis calls to the
// same adapter at once.
type Adapter interface {
	// Load performs one-time setup (client construction, credential
	// checks, model load). Returns false when the backend is unusable;
	// the pipeline refuses to speak through an unloaded adapter.
	Load() bool

	// SynthesizeChunk turns one chunk of text into a playable artifact.
	// Failures are reported as a *SynthesisError.
	SynthesizeChunk(ctx context.Context, text string) (*Result, error)

	// Voices returns the adapter's static voice catalog.
	Voices() []string

	// DisplayName returns a human-readable name, e.g. "Piper (en_US-amy-medium)".
	DisplayName() string

	// Loaded reports whether Load succeeded.
	Loaded() bool
}

// SynthesisError is a failed chunk synthesis, carrying the adapter
// name and the underlying cause.
type SynthesisError struct {
	Adapter string
	Err     error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("%s synthesis failed: %v", e.Adapter, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// ErrNotLoaded is returned when synthesis is attempted on an adapter
// whose Load failed or was never called.
var ErrNotLoaded = errors.New("tts: adapter not loaded")

// artifactSeq numbers temp artifacts. The pipeline serializes its
// synthesis calls, so within one utterance the sequence follows chunk
// order; prefetches and cache hits get their own numbers instead of
// clobbering files still queued for playback.
var artifactSeq atomic.Int64

const artifactPrefix = "voice_mirror_tts_"

// artifactPath returns a fresh temp-file path for a synthesized chunk.
func artifactPath(format Format) string {
	n := artifactSeq.Add(1)
	return filepath.Join(os.TempDir(), fmt.Sprintf("%s%d.%s", artifactPrefix, n, format))
}
