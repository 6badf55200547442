package tts

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/contextmirror/voice-mirror/internal/logger"
)

// fakeAdapter synthesizes chunks into real temp files whose content is
// the chunk text, so a sink can assert playback order.
type fakeAdapter struct {
	mu        sync.Mutex
	calls     int
	artifacts []string
	failOn    int // 1-based call number to fail on, 0 = never
	delay     time.Duration
	unloaded  bool
}

func (f *fakeAdapter) Load() bool          { return !f.unloaded }
func (f *fakeAdapter) Loaded() bool        { return !f.unloaded }
func (f *fakeAdapter) Voices() []string    { return []string{"test-voice"} }
func (f *fakeAdapter) DisplayName() string { return "Fake" }

func (f *fakeAdapter) SynthesizeChunk(ctx context.Context, text string) (*Result, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, &SynthesisError{Adapter: "Fake", Err: ctx.Err()}
		}
	}
	if f.failOn != 0 && n == f.failOn {
		return nil, &SynthesisError{Adapter: "Fake", Err: errors.New("backend unavailable")}
	}

	path := artifactPath(FormatWAV)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.artifacts = append(f.artifacts, path)
	f.mu.Unlock()
	return &Result{Path: path, Format: FormatWAV}, nil
}

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// assertNoArtifacts verifies every temp file the adapter created has
// been released.
func (f *fakeAdapter) assertNoArtifacts(t *testing.T) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, path := range f.artifacts {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			os.Remove(path)
			t.Fatalf("artifact not released: %s", path)
		}
	}
}

// fakeSink records the content of everything it plays. With block set,
// Play spins until Stop is called.
type fakeSink struct {
	mu      sync.Mutex
	played  []string
	stops   int
	stopped bool
	block   bool
	started chan struct{}
}

func newFakeSink() *fakeSink {
	return &fakeSink{started: make(chan struct{}, 16)}
}

func (s *fakeSink) Play(res *Result) error {
	data, err := os.ReadFile(res.Path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.played = append(s.played, string(data))
	s.mu.Unlock()

	select {
	case s.started <- struct{}{}:
	default:
	}

	if s.block {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			s.mu.Lock()
			stopped := s.stopped
			s.mu.Unlock()
			if stopped {
				return nil
			}
			time.Sleep(time.Millisecond)
		}
	}
	return nil
}

func (s *fakeSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.stops++
}

func (s *fakeSink) playedTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.played))
	copy(out, s.played)
	return out
}

// events records callback firings in order.
type events struct {
	mu    sync.Mutex
	items []string
}

func (e *events) add(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = append(e.items, name)
}

func (e *events) list() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.items))
	copy(out, e.items)
	return out
}

func newTestPipeline(adapter Adapter, sink Sink, opts ...PipelineOption) *Pipeline {
	log := logger.New(logger.LevelOff, nil)
	opts = append([]PipelineOption{WithSettleDelay(0)}, opts...)
	return NewPipeline(adapter, sink, log, opts...)
}

func TestSpeakPlaysChunksInOrder(t *testing.T) {
	adapter := &fakeAdapter{}
	sink := newFakeSink()
	ev := &events{}

	p := newTestPipeline(adapter, sink, WithMaxChars(20))
	p.Speak(context.Background(), "Hello. How are you today? Fine, thanks.", Callbacks{
		OnStart: func() { ev.add("start") },
		OnEnd:   func() { ev.add("end") },
	})

	want := []string{"Hello.", "How are you today?", "Fine, thanks."}
	got := sink.playedTexts()
	if len(got) != len(want) {
		t.Fatalf("played %d chunks, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chunk %d: played %q, want %q", i, got[i], want[i])
		}
	}

	if evs := ev.list(); len(evs) != 2 || evs[0] != "start" || evs[1] != "end" {
		t.Fatalf("callbacks: %v", evs)
	}
	if p.State() != StateIdle {
		t.Fatalf("state after speak: %s", p.State())
	}
	adapter.assertNoArtifacts(t)
}

func TestSpeakEmptyTextIsNoop(t *testing.T) {
	adapter := &fakeAdapter{}
	sink := newFakeSink()
	ev := &events{}

	p := newTestPipeline(adapter, sink)
	p.Speak(context.Background(), "   \n\t ", Callbacks{
		OnStart: func() { ev.add("start") },
		OnEnd:   func() { ev.add("end") },
	})

	if adapter.callCount() != 0 {
		t.Fatalf("adapter called %d times for empty text", adapter.callCount())
	}
	if evs := ev.list(); len(evs) != 0 {
		t.Fatalf("callbacks fired for empty text: %v", evs)
	}
}

func TestSpeakRefusedWhenAdapterNotLoaded(t *testing.T) {
	adapter := &fakeAdapter{unloaded: true}
	sink := newFakeSink()

	p := newTestPipeline(adapter, sink)
	p.Speak(context.Background(), "Hello.", Callbacks{})

	if adapter.callCount() != 0 {
		t.Fatal("adapter was called despite not being loaded")
	}
	if len(sink.playedTexts()) != 0 {
		t.Fatal("sink played despite unloaded adapter")
	}
}

func TestInterruptStopsUtterance(t *testing.T) {
	adapter := &fakeAdapter{}
	sink := newFakeSink()
	sink.block = true
	ev := &events{}

	p := newTestPipeline(adapter, sink, WithMaxChars(20))

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Speak(context.Background(), "One sentence. Two sentences. Three sentences.", Callbacks{
			OnStart: func() { ev.add("start") },
			OnEnd:   func() { ev.add("end") },
		})
	}()

	// Wait for the first chunk to start playing, then interrupt.
	select {
	case <-sink.started:
	case <-time.After(2 * time.Second):
		t.Fatal("playback never started")
	}
	p.Interrupt()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Speak did not return after interrupt")
	}

	if got := sink.playedTexts(); len(got) != 1 {
		t.Fatalf("played %d chunks after interrupt, want 1: %v", len(got), got)
	}
	if sink.stops == 0 {
		t.Fatal("sink.Stop was never called")
	}
	// An interrupted utterance never completes, so OnEnd stays silent.
	if evs := ev.list(); len(evs) != 1 || evs[0] != "start" {
		t.Fatalf("callbacks after interrupt: %v", evs)
	}
	if p.IsSpeaking() {
		t.Fatal("still marked speaking after interrupt")
	}
	if p.State() != StateIdle {
		t.Fatalf("state after interrupt: %s", p.State())
	}
	adapter.assertNoArtifacts(t)
}

func TestInterruptWhileIdleIsNoop(t *testing.T) {
	adapter := &fakeAdapter{}
	sink := newFakeSink()

	p := newTestPipeline(adapter, sink)
	p.Interrupt()

	if sink.stops != 0 {
		t.Fatal("Stop called while idle")
	}

	// The pipeline must still speak normally afterwards.
	p.Speak(context.Background(), "Still here.", Callbacks{})
	if got := sink.playedTexts(); len(got) != 1 {
		t.Fatalf("played %d chunks, want 1", len(got))
	}
	adapter.assertNoArtifacts(t)
}

func TestSynthesisFailureAbortsRemainder(t *testing.T) {
	adapter := &fakeAdapter{failOn: 2}
	sink := newFakeSink()
	ev := &events{}

	p := newTestPipeline(adapter, sink, WithMaxChars(20))
	p.Speak(context.Background(), "First sentence here. Second one fails. Third never runs.", Callbacks{
		OnStart: func() { ev.add("start") },
		OnEnd:   func() { ev.add("end") },
	})

	if got := sink.playedTexts(); len(got) != 1 || got[0] != "First sentence here." {
		t.Fatalf("played: %v", got)
	}
	// Failure aborts without the completion callback.
	if evs := ev.list(); len(evs) != 1 || evs[0] != "start" {
		t.Fatalf("callbacks after failure: %v", evs)
	}
	if p.State() != StateIdle {
		t.Fatalf("state after failure: %s", p.State())
	}
	adapter.assertNoArtifacts(t)
}

func TestSecondSpeakRejectedWhileActive(t *testing.T) {
	adapter := &fakeAdapter{}
	sink := newFakeSink()
	sink.block = true
	ev := &events{}

	p := newTestPipeline(adapter, sink)

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Speak(context.Background(), "A long first utterance.", Callbacks{})
	}()

	select {
	case <-sink.started:
	case <-time.After(2 * time.Second):
		t.Fatal("playback never started")
	}

	// Second call must bounce without touching the adapter or firing
	// callbacks.
	before := adapter.callCount()
	p.Speak(context.Background(), "The impatient second utterance.", Callbacks{
		OnStart: func() { ev.add("start") },
	})
	if adapter.callCount() != before {
		t.Fatal("rejected Speak still reached the adapter")
	}
	if evs := ev.list(); len(evs) != 0 {
		t.Fatalf("rejected Speak fired callbacks: %v", evs)
	}

	p.Interrupt()
	<-done
	adapter.assertNoArtifacts(t)
}

func TestSynthTimeoutFailsChunk(t *testing.T) {
	adapter := &fakeAdapter{delay: 200 * time.Millisecond}
	sink := newFakeSink()
	ev := &events{}

	p := newTestPipeline(adapter, sink, WithSynthTimeout(10*time.Millisecond))
	p.Speak(context.Background(), "Too slow to synthesize.", Callbacks{
		OnEnd: func() { ev.add("end") },
	})

	if got := sink.playedTexts(); len(got) != 0 {
		t.Fatalf("played despite timeout: %v", got)
	}
	if evs := ev.list(); len(evs) != 0 {
		t.Fatalf("OnEnd fired despite timeout: %v", evs)
	}
	adapter.assertNoArtifacts(t)
}

func TestSpeakReleasesPendingLookahead(t *testing.T) {
	adapter := &fakeAdapter{}
	sink := newFakeSink()
	sink.block = true

	p := newTestPipeline(adapter, sink, WithMaxChars(20))

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Speak(context.Background(), "Chunk number one. Chunk number two. Chunk number three.", Callbacks{})
	}()

	select {
	case <-sink.started:
	case <-time.After(2 * time.Second):
		t.Fatal("playback never started")
	}

	// Give the lookahead synthesis of chunk two time to land, then
	// interrupt. Its artifact must be drained and released too.
	time.Sleep(50 * time.Millisecond)
	p.Interrupt()
	<-done

	adapter.assertNoArtifacts(t)
}

func TestSpeakReusableAfterEachOutcome(t *testing.T) {
	adapter := &fakeAdapter{}
	sink := newFakeSink()

	p := newTestPipeline(adapter, sink)
	for i := 0; i < 3; i++ {
		p.Speak(context.Background(), "Round and round.", Callbacks{})
	}

	if got := sink.playedTexts(); len(got) != 3 {
		t.Fatalf("played %d chunks over 3 speaks, want 3", len(got))
	}
	adapter.assertNoArtifacts(t)
}
