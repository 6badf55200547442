package tts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	"github.com/contextmirror/voice-mirror/internal/logger"
)

// AudioCache is a thread-safe two-tier cache (in-memory + filesystem)
// for synthesized audio bytes. The key is sha256(voice + ":" + text),
// so switching voices causes misses until the voice is switched back.
//
// The disk layer is always read when a directory is configured; new
// entries are written to disk only when diskWrite is set. That gives a
// warm start from previous runs even when persistence is off.
type AudioCache struct {
	mu        sync.RWMutex
	entries   map[string]cacheEntry
	log       *logger.Logger
	voice     string
	cacheDir  string // empty = no disk layer
	diskWrite bool
	hits      int64
	misses    int64
}

type cacheEntry struct {
	data   []byte
	format Format
}

// NewAudioCache creates an audio cache keyed by voice.
func NewAudioCache(voice, cacheDir string, diskWrite bool, log *logger.Logger) *AudioCache {
	c := &AudioCache{
		entries:   make(map[string]cacheEntry),
		log:       log,
		voice:     voice,
		cacheDir:  cacheDir,
		diskWrite: diskWrite,
	}
	if cacheDir != "" && diskWrite {
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			log.Error("cache: creating cache dir %s: %v", cacheDir, err)
		}
	}
	return c
}

// Get returns cached audio for text, checking memory then disk.
func (c *AudioCache) Get(text string) ([]byte, Format, bool) {
	key := c.hashKey(text)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return entry.data, entry.format, true
	}

	if c.cacheDir != "" {
		for _, format := range []Format{FormatWAV, FormatMP3} {
			if data, ok := c.readDisk(key, format); ok {
				// Promote to memory for faster subsequent hits.
				c.mu.Lock()
				c.entries[key] = cacheEntry{data: data, format: format}
				c.hits++
				c.mu.Unlock()
				return data, format, true
			}
		}
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	return nil, "", false
}

// Put stores audio for text. Always writes to memory; writes to disk
// only when persistence is enabled.
func (c *AudioCache) Put(text string, data []byte, format Format) {
	key := c.hashKey(text)

	c.mu.Lock()
	c.entries[key] = cacheEntry{data: data, format: format}
	c.mu.Unlock()

	if c.cacheDir != "" && c.diskWrite {
		path := c.diskPath(key, format)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			c.log.Error("cache: disk write %s: %v", path, err)
		}
	}
}

// Has reports whether audio for text is cached in memory or on disk.
func (c *AudioCache) Has(text string) bool {
	key := c.hashKey(text)

	c.mu.RLock()
	_, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return true
	}
	if c.cacheDir != "" {
		for _, format := range []Format{FormatWAV, FormatMP3} {
			if _, err := os.Stat(c.diskPath(key, format)); err == nil {
				return true
			}
		}
	}
	return false
}

// Stats returns hit and miss counts.
func (c *AudioCache) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

func (c *AudioCache) hashKey(text string) string {
	h := sha256.Sum256([]byte(c.voice + ":" + text))
	return hex.EncodeToString(h[:])
}

func (c *AudioCache) diskPath(key string, format Format) string {
	return filepath.Join(c.cacheDir, key+"."+string(format))
}

func (c *AudioCache) readDisk(key string, format Format) ([]byte, bool) {
	data, err := os.ReadFile(c.diskPath(key, format))
	if err != nil {
		return nil, false
	}
	return data, true
}

// CachingAdapter wraps an adapter with an AudioCache. Cache hits are
// served by materializing a fresh temp artifact, so every Result the
// pipeline sees is still exclusively pipeline-owned and safe to delete
// after playback.
type CachingAdapter struct {
	inner Adapter
	cache *AudioCache
	log   *logger.Logger
}

// NewCachingAdapter wraps inner with cache.
func NewCachingAdapter(inner Adapter, cache *AudioCache, log *logger.Logger) *CachingAdapter {
	return &CachingAdapter{inner: inner, cache: cache, log: log}
}

func (a *CachingAdapter) Load() bool          { return a.inner.Load() }
func (a *CachingAdapter) Loaded() bool        { return a.inner.Loaded() }
func (a *CachingAdapter) Voices() []string    { return a.inner.Voices() }
func (a *CachingAdapter) DisplayName() string { return a.inner.DisplayName() }

// SynthesizeChunk serves from cache when possible, otherwise delegates
// and stores the fresh audio.
func (a *CachingAdapter) SynthesizeChunk(ctx context.Context, text string) (*Result, error) {
	if data, format, ok := a.cache.Get(text); ok {
		path := artifactPath(format)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, &SynthesisError{Adapter: a.DisplayName(), Err: err}
		}
		a.log.Debug("cache hit: %d bytes for %q", len(data), truncate(text, 40))
		return &Result{Path: path, Format: format}, nil
	}

	res, err := a.inner.SynthesizeChunk(ctx, text)
	if err != nil {
		return nil, err
	}
	if data, err := os.ReadFile(res.Path); err == nil {
		a.cache.Put(text, data, res.Format)
	}
	return res, nil
}

// Prewarm synthesizes text into the cache without leaving an artifact
// behind. Already-cached texts are skipped.
func (a *CachingAdapter) Prewarm(ctx context.Context, text string) error {
	if a.cache.Has(text) {
		return nil
	}
	res, err := a.inner.SynthesizeChunk(ctx, text)
	if err != nil {
		return err
	}
	defer res.Release()
	data, err := os.ReadFile(res.Path)
	if err != nil {
		return err
	}
	a.cache.Put(text, data, res.Format)
	a.log.Debug("prefetch: cached %d bytes for %q", len(data), truncate(text, 40))
	return nil
}

// truncate shortens a string for logging.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
