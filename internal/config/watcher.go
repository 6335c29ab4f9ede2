package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultWatchInterval is how often a [Watcher] polls when no interval is set.
const DefaultWatchInterval = 5 * time.Second

// Watcher polls a config file and passes every valid change to a callback.
// Content is compared by hash, so touching the file or rewriting it with the
// same bytes is not a change. An invalid file is logged once and the last
// valid config stays current.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)

	mu      sync.Mutex
	current *Config
	sum     [sha256.Size]byte
	failing bool
	badSum  [sha256.Size]byte
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. Non-positive values are ignored.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads path and returns a watcher holding it. Polling starts
// with [Watcher.Run]. onChange may be nil.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{path: path, interval: DefaultWatchInterval, onChange: onChange}
	for _, o := range opts {
		o(w)
	}
	cfg, sum, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.current, w.sum = cfg, sum
	return w, nil
}

// Current returns the last valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run polls until ctx is done and then returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := w.Reload(); err != nil {
				slog.Warn("config: reload skipped", "path", w.path, "err", err)
			}
		}
	}
}

// Reload reads the file now. It reports whether the config changed, in
// which case the callback has run by the time Reload returns. An error
// means the file could not be read or is invalid; it is returned once per
// failing content, and later polls of the same content return nil.
func (w *Watcher) Reload() (bool, error) {
	cfg, sum, err := w.read()

	w.mu.Lock()
	switch {
	case err != nil && w.failing && sum == w.badSum:
		w.mu.Unlock()
		return false, nil
	case err != nil:
		w.failing, w.badSum = true, sum
		w.mu.Unlock()
		return false, err
	case sum == w.sum:
		w.failing = false
		w.mu.Unlock()
		return false, nil
	}
	old := w.current
	w.current, w.sum, w.failing = cfg, sum, false
	w.mu.Unlock()

	slog.Info("config: reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
	return true, nil
}

// read parses the file and returns it with its content hash. The hash is
// set whenever the bytes were read, even if they do not parse.
func (w *Watcher) read() (*Config, [sha256.Size]byte, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, [sha256.Size]byte{}, err
	}
	sum := sha256.Sum256(data)
	cfg, err := Decode(bytes.NewReader(data), FormatFor(w.path))
	return cfg, sum, err
}
