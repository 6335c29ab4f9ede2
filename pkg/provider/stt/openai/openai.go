// Package openai transcribes recordings with the OpenAI audio API.
//
// The gpt-4o transcribe models can return token log probabilities; their
// geometric mean becomes the transcript confidence. whisper-1 cannot, so its
// transcripts have none.
package openai

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/audiora/audiora/pkg/audio"
	"github.com/audiora/audiora/pkg/provider/stt"
)

// DefaultModel is used when New gets no model.
const DefaultModel = oai.AudioModelGPT4oMiniTranscribe

var _ stt.Transcriber = (*Provider)(nil)

// Option adjusts the underlying API client.
type Option func(*[]option.RequestOption)

// WithBaseURL sends requests to another OpenAI-compatible server.
func WithBaseURL(url string) Option {
	return func(ro *[]option.RequestOption) { *ro = append(*ro, option.WithBaseURL(url)) }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(ro *[]option.RequestOption) {
		if d > 0 {
			*ro = append(*ro, option.WithRequestTimeout(d))
		}
	}
}

// Provider is an OpenAI [stt.Transcriber].
type Provider struct {
	client oai.Client
	model  string
}

// New returns a transcriber for model, or [DefaultModel] when model is empty.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai stt: api key is required")
	}
	ro := []option.RequestOption{option.WithAPIKey(apiKey)}
	for _, opt := range opts {
		opt(&ro)
	}
	return &Provider{client: oai.NewClient(ro...), model: cmp.Or(model, DefaultModel)}, nil
}

// Transcribe uploads rec as 16 kHz mono WAV.
func (p *Provider) Transcribe(ctx context.Context, rec audio.Recording, language string) (stt.Transcript, error) {
	if len(rec.PCM) == 0 {
		return stt.Transcript{}, fmt.Errorf("openai stt: %w", stt.ErrEmptyRecording)
	}
	if err := rec.Validate(); err != nil {
		return stt.Transcript{}, fmt.Errorf("openai stt: %w", err)
	}
	rec = audio.Normalize(rec)

	resp, err := p.client.Audio.Transcriptions.New(ctx, p.params(rec, language))
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("openai stt: %w", err)
	}

	tr := stt.Transcript{
		Text:     strings.TrimSpace(resp.Text),
		Duration: time.Duration(rec.DurationMs()) * time.Millisecond,
	}
	if len(resp.Logprobs) > 0 {
		var sum float64
		for _, lp := range resp.Logprobs {
			sum += lp.Logprob
		}
		tr.Confidence = stt.Confidence(geometricMean(sum, len(resp.Logprobs)))
	}
	return tr, nil
}

func (p *Provider) params(rec audio.Recording, language string) oai.AudioTranscriptionNewParams {
	params := oai.AudioTranscriptionNewParams{
		File:           oai.File(bytes.NewReader(audio.EncodeWAV(rec)), "audio.wav", "audio/wav"),
		Model:          p.model,
		ResponseFormat: oai.AudioResponseFormatJSON,
	}
	if code := stt.LanguageCode(language); code != "" {
		params.Language = oai.String(code)
	}
	if p.model != oai.AudioModelWhisper1 {
		params.Include = []oai.TranscriptionInclude{oai.TranscriptionIncludeLogprobs}
	}
	return params
}

// geometricMean turns the sum of n token log probabilities into the mean
// token probability.
func geometricMean(logSum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return math.Exp(logSum / float64(n))
}
