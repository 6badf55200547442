package tts

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/contextmirror/voice-mirror/internal/logger"
)

// Options are the recognized per-adapter settings. Unset fields fall
// back to adapter-defined defaults.
type Options struct {
	Voice     string
	APIKey    string // cloud adapters
	Endpoint  string // cloud adapters
	ModelPath string // local adapters
}

// Constructor builds an adapter from options. Construction never
// fails; Load is where an adapter discovers it is unusable.
type Constructor func(opts Options, log *logger.Logger) Adapter

// ErrUnknownAdapter is returned by Create for a name that was never
// registered. It indicates a configuration mistake, not a transient
// runtime condition.
var ErrUnknownAdapter = errors.New("tts: unknown adapter")

// ErrNoAdapterAvailable is returned by DefaultName on an empty registry.
var ErrNoAdapterAvailable = errors.New("tts: no adapters registered")

// Registry maps adapter names to constructors. It is an explicit
// value, built at startup and handed to whatever constructs pipelines;
// there is no process-wide registry. Registration order only affects
// default selection, never correctness.
type Registry struct {
	mu        sync.Mutex
	order     []string
	ctors     map[string]Constructor
	preferred string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// Register adds a constructor under name. Re-registering a name
// replaces its constructor but keeps its original position.
func (r *Registry) Register(name string, ctor Constructor) {
	name = strings.ToLower(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ctors[name]; !exists {
		r.order = append(r.order, name)
	}
	r.ctors[name] = ctor
}

// SetPreferred marks name as the preferred default. It only takes
// effect if the name is (or later becomes) registered.
func (r *Registry) SetPreferred(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.preferred = strings.ToLower(name)
}

// Create builds the adapter registered under name.
func (r *Registry) Create(name string, opts Options, log *logger.Logger) (Adapter, error) {
	name = strings.ToLower(name)
	r.mu.Lock()
	ctor, ok := r.ctors[name]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownAdapter, name, strings.Join(r.Names(), ", "))
	}
	return ctor(opts, log), nil
}

// Names returns the registered adapter names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	return names
}

// DefaultName resolves the default adapter: the preferred name when it
// is registered, otherwise the first registered name.
func (r *Registry) DefaultName() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.preferred != "" {
		if _, ok := r.ctors[r.preferred]; ok {
			return r.preferred, nil
		}
	}
	if len(r.order) > 0 {
		return r.order[0], nil
	}
	return "", ErrNoAdapterAvailable
}

// DefaultRegistry builds the standard adapter set. Piper is preferred
// as the default: it is local, fast, and needs no credentials.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("piper", func(opts Options, log *logger.Logger) Adapter {
		return NewPiperAdapter(opts, log)
	})
	r.Register("openai", func(opts Options, log *logger.Logger) Adapter {
		return NewOpenAIAdapter(opts, log)
	})
	r.Register("elevenlabs", func(opts Options, log *logger.Logger) Adapter {
		return NewElevenLabsAdapter(opts, log)
	})
	r.Register("mock", func(opts Options, log *logger.Logger) Adapter {
		return NewMockAdapter(opts, log)
	})
	r.SetPreferred("piper")
	return r
}
