// Package mock is an in-memory tts.Provider for tests.
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/audiora/audiora/pkg/provider/tts"
)

// Call is one SynthesizeStream invocation. Text is filled in once the
// caller closes the text channel.
type Call struct {
	Text  []string
	Voice tts.Voice
}

// Provider replays Chunks for every synthesis.
type Provider struct {
	// Chunks are sent in order on each stream.
	Chunks [][]byte
	// Err fails SynthesizeStream before a stream starts.
	Err error

	Voices    []tts.Voice
	VoicesErr error

	// Rate is the reported sample rate; 0 means 16000.
	Rate int

	mu    sync.Mutex
	calls []Call
}

var _ tts.Provider = (*Provider)(nil)

func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.Voice) (<-chan []byte, error) {
	p.mu.Lock()
	idx := len(p.calls)
	p.calls = append(p.calls, Call{Voice: voice})
	chunks, err := slices.Clone(p.Chunks), p.Err
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make(chan []byte, len(chunks))
	go func() {
		defer close(out)
		var got []string
		for s := range text {
			got = append(got, s)
		}
		p.mu.Lock()
		p.calls[idx].Text = got
		p.mu.Unlock()

		for _, c := range chunks {
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (p *Provider) ListVoices(context.Context) ([]tts.Voice, error) {
	return p.Voices, p.VoicesErr
}

func (p *Provider) SampleRate() int {
	if p.Rate == 0 {
		return 16000
	}
	return p.Rate
}

// Calls returns a copy of the recorded invocations.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.calls)
}
