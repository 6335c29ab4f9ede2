// Package coqui synthesises reference audio on a self-hosted Coqui TTS
// server (ghcr.io/coqui-ai/tts-cpu).
//
// The server renders one WAV per GET /api/tts, so SynthesizeStream cuts the
// incoming text at sentence ends and keeps a few sentences rendering at once
// while emitting PCM in order.
package coqui

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/audiora/audiora/pkg/audio"
	"github.com/audiora/audiora/pkg/provider/tts"
)

const (
	defaultTimeout = 30 * time.Second
	ttsPath        = "/api/tts"
	detailsPath    = "/details"

	// inFlight bounds concurrent sentence requests.
	inFlight = 4

	chunkBytes  = 4096
	maxWAVBytes = 32 << 20
)

// Option configures a [Provider].
type Option func(*Provider)

// WithLanguage sets the language_id for multilingual models. A voice with
// its own Language wins.
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithTimeout bounds each HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.client.Timeout = d }
}

// WithOutputSampleRate sets the rate PCM is resampled to.
func WithOutputSampleRate(rate int) Option {
	return func(p *Provider) {
		if rate > 0 {
			p.rate = rate
		}
	}
}

// Provider is a Coqui tts.Provider.
type Provider struct {
	base     string
	language string
	rate     int
	client   *http.Client
}

var _ tts.Provider = (*Provider)(nil)

// New returns a provider for the server at base, e.g. http://localhost:5002.
func New(base string, opts ...Option) (*Provider, error) {
	if base == "" {
		return nil, errors.New("coqui: server URL is required")
	}
	p := &Provider{
		base:   strings.TrimRight(base, "/"),
		rate:   audio.SpeechSampleRate,
		client: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

func (p *Provider) SampleRate() int { return p.rate }

// rendering is one sentence on its way through the server.
type rendering struct {
	done chan struct{}
	pcm  []byte
	err  error
}

// SynthesizeStream renders sentences concurrently and emits them in input
// order. The first failed sentence ends the stream.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.Voice) (<-chan []byte, error) {
	queue := make(chan *rendering, inFlight)
	out := make(chan []byte, 64)

	go func() {
		defer close(queue)
		start := func(sentence string) bool {
			r := &rendering{done: make(chan struct{})}
			select {
			case queue <- r:
			case <-ctx.Done():
				return false
			}
			go func() {
				defer close(r.done)
				r.pcm, r.err = p.render(ctx, sentence, voice)
			}()
			return true
		}

		var pending string
		for {
			select {
			case <-ctx.Done():
				return
			case frag, ok := <-text:
				if !ok {
					if s := strings.TrimSpace(pending); s != "" {
						start(s)
					}
					return
				}
				var sentences []string
				sentences, pending = splitSentences(pending + frag)
				for _, s := range sentences {
					if !start(s) {
						return
					}
				}
			}
		}
	}()

	go func() {
		defer close(out)
		for r := range queue {
			select {
			case <-r.done:
			case <-ctx.Done():
				return
			}
			if r.err != nil {
				if ctx.Err() == nil {
					slog.Warn("coqui: sentence failed", "err", r.err)
				}
				return
			}
			for chunk := range slices.Chunk(r.pcm, chunkBytes) {
				select {
				case out <- chunk:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// render fetches one sentence and converts it to mono PCM at the output
// rate.
func (p *Provider) render(ctx context.Context, sentence string, voice tts.Voice) ([]byte, error) {
	q := url.Values{"text": {sentence}}
	if voice.ID != "" {
		q.Set("speaker_id", voice.ID)
	}
	if lang := cmp.Or(voice.Language, p.language); lang != "" {
		q.Set("language_id", lang)
	}

	body, err := p.get(ctx, ttsPath+"?"+q.Encode(), "audio/wav")
	if err != nil {
		return nil, err
	}
	defer body.Close()
	wav, err := io.ReadAll(io.LimitReader(body, maxWAVBytes))
	if err != nil {
		return nil, fmt.Errorf("coqui: read audio: %w", err)
	}
	rec, err := audio.DecodeWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("coqui: %w", err)
	}
	pcm := rec.PCM
	if rec.Channels == 2 {
		pcm = audio.StereoToMono(pcm)
	}
	return audio.ResampleMono16(pcm, rec.SampleRate, p.rate), nil
}

// get issues a GET and returns the body of a 200 response.
func (p *Provider) get(ctx context.Context, path, accept string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: %w", err)
	}
	req.Header.Set("Accept", accept)
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("coqui: GET %s: %s", req.URL.Path, resp.Status)
	}
	return resp.Body, nil
}

type details struct {
	ModelName string   `json:"model_name"`
	Language  string   `json:"language"`
	Speakers  []string `json:"speakers"`
}

// ListVoices reads GET /details. A multi-speaker model yields its speakers
// sorted by name; otherwise the model itself is the only voice.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	body, err := p.get(ctx, detailsPath, "application/json")
	if err != nil {
		return nil, err
	}
	defer body.Close()
	var d details
	if err := json.NewDecoder(body).Decode(&d); err != nil {
		return nil, fmt.Errorf("coqui: decode details: %w", err)
	}

	voice := func(id, kind string) tts.Voice {
		return tts.Voice{
			ID:       id,
			Name:     id,
			Provider: "coqui",
			Language: d.Language,
			Metadata: map[string]string{"type": kind, "model_name": cmp.Or(d.ModelName, id)},
		}
	}
	if len(d.Speakers) == 0 {
		return []tts.Voice{voice(cmp.Or(d.ModelName, "default"), "single-speaker")}, nil
	}
	speakers := slices.Sorted(slices.Values(d.Speakers))
	voices := make([]tts.Voice, len(speakers))
	for i, s := range speakers {
		voices[i] = voice(s, "speaker")
	}
	return voices, nil
}

// splitSentences cuts s after each '.', '!' or '?' that ends s or precedes
// whitespace. It returns the trimmed sentences and the unfinished tail.
func splitSentences(s string) (sentences []string, rest string) {
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', '!', '?':
		default:
			continue
		}
		if i+1 < len(s) && !isSpace(s[i+1]) {
			continue
		}
		if t := strings.TrimSpace(s[start : i+1]); t != "" {
			sentences = append(sentences, t)
		}
		start = i + 1
	}
	return sentences, s[start:]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
