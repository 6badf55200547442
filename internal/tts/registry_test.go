package tts

import (
	"errors"
	"strings"
	"testing"

	"github.com/contextmirror/voice-mirror/internal/logger"
)

func testConstructor() Constructor {
	return func(opts Options, log *logger.Logger) Adapter {
		return &fakeAdapter{}
	}
}

func TestRegistryCreateUnknownAdapter(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	r := NewRegistry()
	r.Register("mock", testConstructor())

	_, err := r.Create("nonexistent", Options{}, log)
	if err == nil {
		t.Fatal("expected an error for an unknown adapter")
	}
	if !errors.Is(err, ErrUnknownAdapter) {
		t.Fatalf("expected ErrUnknownAdapter, got %v", err)
	}
	// The error names what is available so the user can fix their config.
	if !strings.Contains(err.Error(), "mock") {
		t.Fatalf("error does not list available adapters: %v", err)
	}
}

func TestRegistryCreateCaseInsensitive(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	r := NewRegistry()
	r.Register("Mock", testConstructor())

	if _, err := r.Create("MOCK", Options{}, log); err != nil {
		t.Fatalf("case-insensitive lookup failed: %v", err)
	}
}

func TestRegistryDefaultName(t *testing.T) {
	r := NewRegistry()

	if _, err := r.DefaultName(); !errors.Is(err, ErrNoAdapterAvailable) {
		t.Fatalf("empty registry: expected ErrNoAdapterAvailable, got %v", err)
	}

	r.Register("first", testConstructor())
	r.Register("second", testConstructor())

	// No preference set: first registered wins.
	name, err := r.DefaultName()
	if err != nil {
		t.Fatalf("default name: %v", err)
	}
	if name != "first" {
		t.Fatalf("default name %q, want %q", name, "first")
	}

	r.SetPreferred("second")
	if name, _ = r.DefaultName(); name != "second" {
		t.Fatalf("preferred name %q, want %q", name, "second")
	}

	// Preferring an unregistered adapter falls back to the first.
	r.SetPreferred("ghost")
	if name, _ = r.DefaultName(); name != "first" {
		t.Fatalf("fallback name %q, want %q", name, "first")
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry()
	r.Register("zulu", testConstructor())
	r.Register("alpha", testConstructor())
	r.Register("mike", testConstructor())

	names := r.Names()
	want := []string{"alpha", "mike", "zulu"}
	if len(names) != len(want) {
		t.Fatalf("names: %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestDefaultRegistryKnowsAllAdapters(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	r := DefaultRegistry()

	for _, name := range []string{"piper", "openai", "elevenlabs", "mock"} {
		adapter, err := r.Create(name, Options{}, log)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if adapter.DisplayName() == "" {
			t.Fatalf("adapter %s has no display name", name)
		}
	}

	name, err := r.DefaultName()
	if err != nil {
		t.Fatalf("default name: %v", err)
	}
	if name != "piper" {
		t.Fatalf("default adapter %q, want piper", name)
	}
}
