// Package audio plays synthesized artifacts through the system audio
// device via oto.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/hajimehoshi/go-mp3"

	"github.com/contextmirror/voice-mirror/internal/logger"
	"github.com/contextmirror/voice-mirror/internal/tts"
)

// Output format of the oto context. Artifacts at other rates or
// channel counts are converted on decode.
const (
	SampleRate   = 24000
	ChannelCount = 1
)

// Player is the audio sink: it owns the system audio context and plays
// one artifact at a time. Play blocks until the audio finishes or Stop
// is called from another goroutine.
type Player struct {
	ctx    *oto.Context
	log    *logger.Logger
	mu     sync.Mutex
	active *oto.Player // currently playing, nil when idle
}

// NewPlayer initializes the system audio context. Returns an error if
// the audio device is unavailable.
func NewPlayer(log *logger.Logger) (*Player, error) {
	op := &oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: ChannelCount,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-readyChan

	log.Debug("audio player initialized (rate=%d, channels=%d)", SampleRate, ChannelCount)
	return &Player{ctx: ctx, log: log}, nil
}

// Play decodes the artifact and plays it synchronously. Blocks until
// playback finishes or Stop is called.
func (p *Player) Play(res *tts.Result) error {
	pcm, err := p.decode(res)
	if err != nil {
		return err
	}

	player := p.ctx.NewPlayer(bytes.NewReader(pcm))

	p.mu.Lock()
	p.active = player
	p.mu.Unlock()

	player.Play()
	p.log.Debug("audio player: playing %d bytes of PCM", len(pcm))

	// Wait for playback to complete or be interrupted.
	for player.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}

	p.mu.Lock()
	p.active = nil
	p.mu.Unlock()

	return player.Close()
}

// Stop interrupts the currently playing audio, if any. Safe to call
// concurrently and when nothing is playing.
func (p *Player) Stop() {
	p.mu.Lock()
	active := p.active
	p.mu.Unlock()

	if active != nil {
		active.Pause()
		p.log.Debug("audio player: interrupted")
	}
}

// decode turns an artifact into PCM matching the context format.
func (p *Player) decode(res *tts.Result) ([]byte, error) {
	switch res.Format {
	case tts.FormatWAV:
		data, err := os.ReadFile(res.Path)
		if err != nil {
			return nil, err
		}
		pcm, rate, channels, err := parseWAV(data)
		if err != nil {
			return nil, err
		}
		return convertPCM(pcm, rate, channels), nil

	case tts.FormatMP3:
		f, err := os.Open(res.Path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		dec, err := mp3.NewDecoder(f)
		if err != nil {
			return nil, err
		}
		pcm, err := io.ReadAll(dec)
		if err != nil {
			return nil, err
		}
		// go-mp3 always yields 16-bit stereo at the source rate.
		return convertPCM(pcm, dec.SampleRate(), 2), nil
	}
	return nil, fmt.Errorf("unsupported artifact format %q", res.Format)
}

// parseWAV walks the RIFF chunks and returns the raw PCM data plus the
// sample rate and channel count from the fmt chunk. Only 16-bit PCM is
// accepted.
func parseWAV(wav []byte) (pcm []byte, rate, channels int, err error) {
	if len(wav) < 44 {
		return nil, 0, 0, errors.New("wav data too short")
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, 0, 0, errors.New("not a valid WAV file")
	}

	pos := 12
	for pos+8 <= len(wav) {
		chunkID := string(wav[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[pos+4 : pos+8]))
		body := pos + 8

		switch chunkID {
		case "fmt ":
			if body+16 > len(wav) {
				return nil, 0, 0, errors.New("truncated fmt chunk")
			}
			format := binary.LittleEndian.Uint16(wav[body : body+2])
			channels = int(binary.LittleEndian.Uint16(wav[body+2 : body+4]))
			rate = int(binary.LittleEndian.Uint32(wav[body+4 : body+8]))
			bits := binary.LittleEndian.Uint16(wav[body+14 : body+16])
			if format != 1 || bits != 16 {
				return nil, 0, 0, fmt.Errorf("unsupported wav encoding (format=%d, bits=%d)", format, bits)
			}
		case "data":
			if rate == 0 || channels == 0 {
				return nil, 0, 0, errors.New("wav data chunk before fmt chunk")
			}
			end := body + chunkSize
			if end > len(wav) {
				end = len(wav)
			}
			return wav[body:end], rate, channels, nil
		}

		pos = body + chunkSize
		// Chunks are word-aligned.
		if chunkSize%2 != 0 {
			pos++
		}
	}
	return nil, 0, 0, errors.New("data chunk not found in WAV")
}

// convertPCM adapts 16-bit PCM to the context format: channels are
// averaged down to mono and the rate is linearly resampled. Returns
// the input unchanged when it already matches.
func convertPCM(pcm []byte, srcRate, srcChannels int) []byte {
	if srcRate == SampleRate && srcChannels == ChannelCount {
		return pcm
	}

	frames := len(pcm) / (2 * srcChannels)
	mono := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int
		for c := 0; c < srcChannels; c++ {
			off := (i*srcChannels + c) * 2
			sum += int(int16(binary.LittleEndian.Uint16(pcm[off : off+2])))
		}
		mono[i] = int16(sum / srcChannels)
	}

	out := mono
	if srcRate != SampleRate && srcRate > 0 && frames > 1 {
		outFrames := frames * SampleRate / srcRate
		out = make([]int16, outFrames)
		for i := range out {
			posit := float64(i) * float64(srcRate) / float64(SampleRate)
			j := int(posit)
			if j >= frames-1 {
				out[i] = mono[frames-1]
				continue
			}
			frac := posit - float64(j)
			out[i] = int16(float64(mono[j])*(1-frac) + float64(mono[j+1])*frac)
		}
	}

	buf := make([]byte, len(out)*2)
	for i, s := range out {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}
