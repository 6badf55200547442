package tts

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"github.com/contextmirror/voice-mirror/internal/logger"
)

// MockAdapter produces short silent WAV artifacts without touching any
// backend. Used in tests and for running the CLI on machines with no
// model or credentials.
type MockAdapter struct {
	voice  string
	log    *logger.Logger
	loaded bool
}

// NewMockAdapter creates the adapter.
func NewMockAdapter(opts Options, log *logger.Logger) *MockAdapter {
	voice := opts.Voice
	if voice == "" {
		voice = "silence"
	}
	return &MockAdapter{voice: voice, log: log}
}

// Load always succeeds.
func (a *MockAdapter) Load() bool {
	a.loaded = true
	return true
}

func (a *MockAdapter) Loaded() bool { return a.loaded }

func (a *MockAdapter) Voices() []string { return []string{"silence"} }

func (a *MockAdapter) DisplayName() string {
	return fmt.Sprintf("Mock (%s)", a.voice)
}

// SynthesizeChunk writes a silent WAV whose duration scales with the
// text length (roughly reading pace). Deterministic for a given text.
func (a *MockAdapter) SynthesizeChunk(ctx context.Context, text string) (*Result, error) {
	select {
	case <-ctx.Done():
		return nil, &SynthesisError{Adapter: a.DisplayName(), Err: ctx.Err()}
	case <-time.After(10 * time.Millisecond):
	}

	const sampleRate = 22050
	// ~60ms of silence per 10 characters.
	samples := sampleRate * 6 * len(text) / 1000
	if samples < sampleRate/20 {
		samples = sampleRate / 20
	}

	path := artifactPath(FormatWAV)
	if err := os.WriteFile(path, silentWAV(sampleRate, 1, samples), 0o644); err != nil {
		return nil, &SynthesisError{Adapter: a.DisplayName(), Err: err}
	}
	return &Result{Path: path, Format: FormatWAV}, nil
}

// silentWAV builds a minimal 16-bit PCM WAV file of zero samples.
func silentWAV(sampleRate, channels, samples int) []byte {
	dataLen := samples * channels * 2
	buf := make([]byte, 44+dataLen)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*channels*2))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(channels*2))
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
	return buf
}
