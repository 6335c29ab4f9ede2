package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrAllFailed is returned when every provider in a [FallbackGroup] failed or
// was skipped because its breaker was open.
var ErrAllFailed = errors.New("all providers failed")

// ErrAllOpen is returned by [FallbackGroup.Check] while no provider would be
// called.
var ErrAllOpen = errors.New("every provider circuit is open")

// FallbackConfig configures a [FallbackGroup].
type FallbackConfig struct {
	// CircuitBreaker is the template for each provider's breaker. Name is
	// replaced by the provider name.
	CircuitBreaker CircuitBreakerConfig

	// Stop reports errors that end failover at once. They are returned
	// unwrapped and do not count against the breaker. Defaults to context
	// cancellation.
	Stop func(error) bool
}

func (cfg FallbackConfig) withDefaults() FallbackConfig {
	if cfg.Stop == nil {
		cfg.Stop = func(err error) bool { return errors.Is(err, context.Canceled) }
	}
	if cfg.CircuitBreaker.Ignore == nil {
		cfg.CircuitBreaker.Ignore = cfg.Stop
	}
	return cfg
}

type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds providers of one kind in failover order, each behind
// its own [CircuitBreaker]. Register fallbacks before first use; the entry
// list is not guarded.
type FallbackGroup[T any] struct {
	cfg     FallbackConfig
	entries []fallbackEntry[T]
}

// NewFallbackGroup creates a group whose first entry is primary.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{cfg: cfg.withDefaults()}
	fg.AddFallback(primaryName, primary)
	return fg
}

// AddFallback appends a provider after those already registered.
func (fg *FallbackGroup[T]) AddFallback(name string, value T) {
	bc := fg.cfg.CircuitBreaker
	bc.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{name: name, value: value, breaker: NewCircuitBreaker(bc)})
}

// Names returns the provider names in failover order.
func (fg *FallbackGroup[T]) Names() []string {
	names := make([]string, len(fg.entries))
	for i, e := range fg.entries {
		names[i] = e.name
	}
	return names
}

// Primary returns the first provider.
func (fg *FallbackGroup[T]) Primary() T { return fg.entries[0].value }

// States returns each provider's breaker state, keyed by name.
func (fg *FallbackGroup[T]) States() map[string]State {
	out := make(map[string]State, len(fg.entries))
	for _, e := range fg.entries {
		out[e.name] = e.breaker.State()
	}
	return out
}

// Check returns nil while at least one provider would be called, and an
// error wrapping [ErrAllOpen] otherwise. Its signature fits a readiness
// check.
func (fg *FallbackGroup[T]) Check(context.Context) error {
	for _, e := range fg.entries {
		if e.breaker.State() != StateOpen {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrAllOpen, strings.Join(fg.Names(), ", "))
}

// Execute calls fn with each provider in turn until one succeeds.
func (fg *FallbackGroup[T]) Execute(fn func(T) error) error {
	_, err := ExecuteWithResult(fg, func(v T) (struct{}, error) {
		return struct{}{}, fn(v)
	})
	return err
}

// ExecuteWithResult calls fn with each provider in turn and returns the
// first successful result. Providers with an open breaker are skipped. A
// Stop error is returned as is; otherwise, when nothing succeeds, the error
// wraps both [ErrAllFailed] and the last provider's error.
func ExecuteWithResult[T, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var zero R
	var lastErr error
	for i := range fg.entries {
		e := &fg.entries[i]
		var res R
		err := e.breaker.Execute(func() error {
			var callErr error
			res, callErr = fn(e.value)
			return callErr
		})
		switch {
		case err == nil:
			return res, nil
		case fg.cfg.Stop(err):
			return zero, err
		case errors.Is(err, ErrCircuitOpen):
			slog.Debug("provider skipped, circuit open", "provider", e.name)
		default:
			slog.Warn("provider failed, trying next", "provider", e.name, "err", err)
		}
		lastErr = err
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}
