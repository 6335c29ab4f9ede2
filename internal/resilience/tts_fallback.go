package resilience

import (
	"context"
	"fmt"

	"github.com/audiora/audiora/pkg/provider/tts"
)

// TTSFallback is a [tts.Provider] that starts each stream on the first
// backend whose breaker admits the call. Every backend in the chain emits
// PCM at one rate, so the player never has to switch formats mid-session.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback returns a chain that tries primary first.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback appends p, which must share the primary's sample rate.
func (f *TTSFallback) AddFallback(name string, p tts.Provider) error {
	if rate, want := p.SampleRate(), f.SampleRate(); rate != want {
		return fmt.Errorf("resilience: tts fallback %q emits %d Hz, primary emits %d Hz", name, rate, want)
	}
	f.group.AddFallback(name, p)
	return nil
}

// Check fails once every breaker in the chain is open.
func (f *TTSFallback) Check(ctx context.Context) error { return f.group.Check(ctx) }

// SynthesizeStream starts a stream on the first healthy provider. Only the
// start is covered by failover; a stream that ends early is the caller's
// concern.
func (f *TTSFallback) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.Voice) (<-chan []byte, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) (<-chan []byte, error) {
		return p.SynthesizeStream(ctx, text, voice)
	})
}

// ListVoices asks the first admitted backend.
func (f *TTSFallback) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) ([]tts.Voice, error) {
		return p.ListVoices(ctx)
	})
}

// SampleRate is the rate shared by the chain.
func (f *TTSFallback) SampleRate() int { return f.group.Primary().SampleRate() }
