package resilience

import (
	"context"

	"github.com/audiora/audiora/pkg/provider/translate"
)

// TranslateFallback implements [translate.Provider] with failover from the
// translation endpoint to further backends, typically an LLM translator.
// Cancellation ends failover and keeps its [translate.ErrCancelled] kind so
// the lookup session can drop it silently.
type TranslateFallback struct {
	group *FallbackGroup[translate.Provider]
}

var _ translate.Provider = (*TranslateFallback)(nil)

// NewTranslateFallback creates a [TranslateFallback] with primary as the
// preferred backend.
func NewTranslateFallback(primary translate.Provider, primaryName string, cfg FallbackConfig) *TranslateFallback {
	if cfg.Stop == nil {
		cfg.Stop = translate.IsCancelled
	}
	return &TranslateFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional translation provider.
func (f *TranslateFallback) AddFallback(name string, provider translate.Provider) {
	f.group.AddFallback(name, provider)
}

// Names returns the provider names in failover order.
func (f *TranslateFallback) Names() []string {
	return f.group.Names()
}

// Check reports whether any provider would still be called.
func (f *TranslateFallback) Check(ctx context.Context) error { return f.group.Check(ctx) }

// Translate asks each healthy provider in turn. When every provider fails the
// error wraps both [ErrAllFailed] and the last provider's error, so
// [translate.KindOf] still classifies it.
func (f *TranslateFallback) Translate(ctx context.Context, req translate.Request) (string, error) {
	return ExecuteWithResult(f.group, func(p translate.Provider) (string, error) {
		return p.Translate(ctx, req)
	})
}
