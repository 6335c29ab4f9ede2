// Package tts defines the Provider interface for text-to-speech backends.
//
// Reference pronunciations are synthesised through a TTS provider: the
// practice service sends the target line and streams the resulting 16-bit
// PCM back to the learner as WAV. SynthesizeStream accepts a channel of text
// fragments so long lines can be fed sentence by sentence.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"
	"fmt"

	"github.com/audiora/audiora/pkg/audio"
)

// ErrNoAudio is returned by [Synthesize] when the stream closed without
// producing any PCM.
var ErrNoAudio = errors.New("tts: synthesis produced no audio")

// Voice describes a voice offered by a provider.
type Voice struct {
	// ID is the provider-specific voice identifier.
	ID string `json:"id"`

	// Name is the human-readable voice name.
	Name string `json:"name"`

	// Provider identifies which TTS provider this voice belongs to.
	Provider string `json:"provider"`

	// Language is the ISO code the voice is tuned for, empty when multilingual.
	Language string `json:"language,omitempty"`

	// Metadata holds provider-specific attributes (gender, accent, ...).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// SynthesizeStream consumes text fragments and returns a channel emitting
	// 16-bit mono PCM at SampleRate as it is synthesised.
	//
	// The audio channel is closed when all text has been synthesised or ctx is
	// cancelled. Errors during synthesis close the channel early; callers
	// check ctx.Err() to tell cancellation apart. A non-nil error means the
	// stream could not be started.
	SynthesizeStream(ctx context.Context, text <-chan string, voice Voice) (<-chan []byte, error)

	// ListVoices returns the provider's current voice catalogue.
	ListVoices(ctx context.Context) ([]Voice, error)

	// SampleRate is the rate of the PCM emitted by SynthesizeStream.
	SampleRate() int
}

// Synthesize speaks a single text with p and collects the stream into a mono
// recording.
func Synthesize(ctx context.Context, p Provider, text string, voice Voice) (audio.Recording, error) {
	in := make(chan string, 1)
	in <- text
	close(in)

	out, err := p.SynthesizeStream(ctx, in, voice)
	if err != nil {
		return audio.Recording{}, err
	}
	var pcm []byte
	for chunk := range out {
		pcm = append(pcm, chunk...)
	}
	if err := ctx.Err(); err != nil {
		return audio.Recording{}, fmt.Errorf("tts: synthesize: %w", err)
	}
	if len(pcm) == 0 {
		return audio.Recording{}, ErrNoAudio
	}
	if len(pcm)%2 != 0 {
		pcm = pcm[:len(pcm)-1]
	}
	return audio.Recording{PCM: pcm, SampleRate: p.SampleRate(), Channels: 1}, nil
}
