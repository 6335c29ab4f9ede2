package resilience

import (
	"context"

	"github.com/audiora/audiora/pkg/audio"
	"github.com/audiora/audiora/pkg/provider/stt"
)

// STTFallback is a [stt.Transcriber] over a chain of speech backends, so a
// pronunciation attempt is still scored while one vendor is down.
type STTFallback struct {
	group *FallbackGroup[stt.Transcriber]
}

var _ stt.Transcriber = (*STTFallback)(nil)

// NewSTTFallback returns a chain that tries primary first.
func NewSTTFallback(primary stt.Transcriber, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback appends a backend to the chain.
func (f *STTFallback) AddFallback(name string, t stt.Transcriber) { f.group.AddFallback(name, t) }

// Check fails once every breaker in the chain is open.
func (f *STTFallback) Check(ctx context.Context) error { return f.group.Check(ctx) }

// Transcribe returns the first backend's transcript that succeeds. An empty
// recording fails at once without touching any breaker.
func (f *STTFallback) Transcribe(ctx context.Context, rec audio.Recording, language string) (stt.Transcript, error) {
	if len(rec.PCM) == 0 {
		return stt.Transcript{}, stt.ErrEmptyRecording
	}
	return ExecuteWithResult(f.group, func(p stt.Transcriber) (stt.Transcript, error) {
		return p.Transcribe(ctx, rec, language)
	})
}
