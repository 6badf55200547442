package tts

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/contextmirror/voice-mirror/internal/logger"
)

// State is the pipeline lifecycle. Interrupted, Completed, and Failed
// are teardown states; the pipeline returns to Idle before Speak
// returns, ready for the next call.
type State int32

const (
	StateIdle State = iota
	StateSpeaking
	StateInterrupted
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSpeaking:
		return "speaking"
	case StateInterrupted:
		return "interrupted"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Callbacks notify a surrounding system of speaking start and stop.
// Both are optional. OnStart fires synchronously before the first
// synthesis call. OnEnd fires after natural completion only; an
// interrupted run never fires it, since the interrupting caller
// already knows playback stopped.
type Callbacks struct {
	OnStart func()
	OnEnd   func()
}

// Sink plays one artifact at a time. Play blocks until the audio
// finishes or Stop is called; Stop is idempotent and safe when nothing
// is playing.
type Sink interface {
	Play(res *Result) error
	Stop()
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithMaxChars sets the chunk size budget. Default 400.
func WithMaxChars(n int) PipelineOption {
	return func(p *Pipeline) { p.maxChars = n }
}

// WithSettleDelay sets the pause after natural completion, before
// OnEnd fires. Default 300ms. Whatever starts listening again the
// moment OnEnd fires (a wake-word detector, usually) would otherwise
// clip the audio tail.
func WithSettleDelay(d time.Duration) PipelineOption {
	return func(p *Pipeline) { p.settle = d }
}

// WithSynthTimeout sets a per-chunk synthesis deadline. Expiry is
// treated like any other synthesis failure. Zero means no deadline.
func WithSynthTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) { p.synthTimeout = d }
}

// Pipeline turns a block of text into audible output through one
// adapter: chunk, synthesize with single-slot lookahead, play in
// order, clean up. One Speak may be active at a time; Interrupt stops
// it mid-utterance from any goroutine.
type Pipeline struct {
	adapter Adapter
	sink    Sink
	log     *logger.Logger

	maxChars     int
	settle       time.Duration
	synthTimeout time.Duration

	// The only state shared with other goroutines. The pipeline's own
	// Speak call is the sole writer of everything else.
	speaking    atomic.Bool
	interrupted atomic.Bool
	state       atomic.Int32
}

// NewPipeline creates a pipeline around one adapter and one sink.
func NewPipeline(adapter Adapter, sink Sink, log *logger.Logger, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		adapter:  adapter,
		sink:     sink,
		log:      log,
		maxChars: 400,
		settle:   300 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State { return State(p.state.Load()) }

// IsSpeaking reports whether a Speak call is in progress.
func (p *Pipeline) IsSpeaking() bool { return p.speaking.Load() }

// Interrupt stops active playback immediately and causes the running
// Speak call to abandon its remaining chunks. Cooperative for
// synthesis: an in-flight backend call is not killed, its artifact is
// discarded once it completes. Calling Interrupt while idle is a no-op.
func (p *Pipeline) Interrupt() {
	if !p.speaking.Load() {
		return
	}
	p.interrupted.Store(true)
	p.sink.Stop()
	p.log.Debug("pipeline: interrupted, playback stopped")
}

type synthResult struct {
	res *Result
	err error
}

// Speak synthesizes and plays text, blocking the calling goroutine
// until speaking finishes or is interrupted. Empty text is a no-op
// with no callbacks. A second Speak while one is active is rejected.
// Synthesis and playback failures abort the remainder of the
// utterance but never escape: the voice loop degrades to "spoke less
// than requested" rather than crashing the caller.
func (p *Pipeline) Speak(ctx context.Context, text string, cb Callbacks) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if !p.adapter.Loaded() {
		p.log.Warn("pipeline: speak refused, %s is not loaded", p.adapter.DisplayName())
		return
	}
	if !p.speaking.CompareAndSwap(false, true) {
		p.log.Warn("pipeline: speak rejected, already speaking")
		return
	}
	p.state.Store(int32(StateSpeaking))

	if cb.OnStart != nil {
		cb.OnStart()
	}

	chunks := ChunkText(text, p.maxChars)
	p.log.Debug("pipeline: speaking %d chars in %d chunks", len(text), len(chunks))

	var held []*Result
	var next chan synthResult
	outcome := StateCompleted

	defer func() {
		// Collect a still-pending lookahead so its artifact is
		// released along with everything else. Runs on every exit
		// path.
		if next != nil {
			if out := <-next; out.res != nil {
				held = append(held, out.res)
			}
		}
		for _, r := range held {
			if err := r.Release(); err != nil {
				p.log.Warn("pipeline: artifact cleanup: %v", err)
			}
		}

		if p.interrupted.Swap(false) {
			outcome = StateInterrupted
		}
		p.state.Store(int32(outcome))
		p.speaking.Store(false)

		if outcome == StateCompleted {
			time.Sleep(p.settle)
			if cb.OnEnd != nil {
				cb.OnEnd()
			}
		}
		p.state.Store(int32(StateIdle))
		p.log.Debug("pipeline: done (%s)", outcome)
	}()

	for i := range chunks {
		if p.interrupted.Load() {
			return
		}

		var res *Result
		var err error
		if next != nil {
			out := <-next
			next = nil
			res, err = out.res, out.err
		} else {
			// First chunk, or recovery after a drained slot: nothing
			// to overlap with, so synthesis is awaited here.
			res, err = p.synthesize(ctx, chunks[i].Text)
		}
		if err != nil {
			p.log.Error("pipeline: chunk %d synthesis failed: %v", i, err)
			outcome = StateFailed
			return
		}
		held = append(held, res)

		if p.interrupted.Load() {
			return
		}

		// Single-slot lookahead: start the next chunk before playback
		// so it is ready the instant this one finishes.
		if i+1 < len(chunks) {
			next = p.synthesizeAhead(ctx, chunks[i+1].Text)
		}

		if err := p.sink.Play(res); err != nil {
			p.log.Error("pipeline: chunk %d playback failed: %v", i, err)
			outcome = StateFailed
			return
		}
	}
}

// Prewarmer is implemented by adapters that can warm a cache without
// producing a pipeline-owned artifact. See NewCachingAdapter.
type Prewarmer interface {
	Prewarm(ctx context.Context, text string) error
}

// Prefetch pre-synthesizes texts in background goroutines so a later
// Speak starts instantly. Non-blocking. Does nothing unless the
// adapter can cache (a bare adapter would just waste a backend call).
func (p *Pipeline) Prefetch(ctx context.Context, texts ...string) {
	pw, ok := p.adapter.(Prewarmer)
	if !ok {
		return
	}
	for _, t := range texts {
		for _, c := range ChunkText(t, p.maxChars) {
			go func(s string) {
				if err := pw.Prewarm(ctx, s); err != nil {
					p.log.Debug("prefetch: %v", err)
				}
			}(c.Text)
		}
	}
}

func (p *Pipeline) synthesize(ctx context.Context, text string) (*Result, error) {
	if p.synthTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.synthTimeout)
		defer cancel()
	}
	return p.adapter.SynthesizeChunk(ctx, text)
}

func (p *Pipeline) synthesizeAhead(ctx context.Context, text string) chan synthResult {
	ch := make(chan synthResult, 1)
	go func() {
		res, err := p.synthesize(ctx, text)
		ch <- synthResult{res: res, err: err}
	}()
	return ch
}
