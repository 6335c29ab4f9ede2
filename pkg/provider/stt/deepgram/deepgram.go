// Package deepgram transcribes recordings over Deepgram's live listen
// WebSocket. The recording is sent in 100 ms frames, the stream is closed,
// and every final result is folded into one transcript.
package deepgram

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/audiora/audiora/pkg/audio"
	"github.com/audiora/audiora/pkg/provider/stt"
)

const (
	listenEndpoint  = "wss://api.deepgram.com/v1/listen"
	defaultModel    = "nova-3"
	defaultLanguage = "en"
	frameMs         = 100
)

var closeStream = []byte(`{"type":"CloseStream"}`)

var _ stt.Transcriber = (*Provider)(nil)

// Option configures a [Provider].
type Option func(*Provider)

// WithModel selects the Deepgram model, for example "nova-3" or "base".
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the language used when Transcribe gets none.
func WithLanguage(language string) Option {
	return func(p *Provider) { p.language = language }
}

// WithEndpoint points the provider at another listen URL.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) { p.endpoint = endpoint }
}

// Provider is a Deepgram [stt.Transcriber].
type Provider struct {
	apiKey   string
	model    string
	language string
	endpoint string
}

// New returns a provider authenticated with apiKey.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: api key is required")
	}
	p := &Provider{
		apiKey:   apiKey,
		model:    defaultModel,
		language: defaultLanguage,
		endpoint: listenEndpoint,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Transcribe streams rec and returns the joined final results. Confidence
// is the mean over results that carried text.
func (p *Provider) Transcribe(ctx context.Context, rec audio.Recording, language string) (stt.Transcript, error) {
	if len(rec.PCM) == 0 {
		return stt.Transcript{}, fmt.Errorf("deepgram: %w", stt.ErrEmptyRecording)
	}
	if err := rec.Validate(); err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: %w", err)
	}
	rec = audio.Normalize(rec)

	target, err := p.listenURL(language, rec)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: endpoint: %w", err)
	}
	conn, _, err := websocket.Dial(ctx, target, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": {"Token " + p.apiKey}},
	})
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: dial: %w", err)
	}
	defer conn.CloseNow()

	var acc accumulator
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return send(gctx, conn, rec) })
	g.Go(func() error { return acc.receive(gctx, conn) })
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return stt.Transcript{}, fmt.Errorf("deepgram: %w", ctxErr)
		}
		return stt.Transcript{}, err
	}

	tr := acc.transcript()
	tr.Duration = time.Duration(rec.DurationMs()) * time.Millisecond
	return tr, nil
}

func (p *Provider) listenURL(language string, rec audio.Recording) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}
	q := url.Values{
		"model":       {p.model},
		"language":    {stt.LanguageCode(cmp.Or(language, p.language))},
		"punctuate":   {"true"},
		"encoding":    {"linear16"},
		"sample_rate": {strconv.Itoa(rec.SampleRate)},
		"channels":    {strconv.Itoa(rec.Channels)},
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func send(ctx context.Context, conn *websocket.Conn, rec audio.Recording) error {
	frame := max(rec.SampleRate*rec.Channels*(audio.BitsPerSample/8)*frameMs/1000, 1)
	for chunk := range slices.Chunk(rec.PCM, frame) {
		if err := conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
			return fmt.Errorf("deepgram: send audio: %w", err)
		}
	}
	if err := conn.Write(ctx, websocket.MessageText, closeStream); err != nil {
		return fmt.Errorf("deepgram: close stream: %w", err)
	}
	return nil
}

// message is a server event. Only "Results" events are used.
type message struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []alternative `json:"alternatives"`
	} `json:"channel"`
}

type alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
	Words      []struct {
		Word       string  `json:"word"`
		Start      float64 `json:"start"`
		End        float64 `json:"end"`
		Confidence float64 `json:"confidence"`
	} `json:"words"`
}

// final returns the best alternative of a final Results event.
func (m message) final() (alternative, bool) {
	if m.Type != "Results" || !m.IsFinal || len(m.Channel.Alternatives) == 0 {
		return alternative{}, false
	}
	return m.Channel.Alternatives[0], true
}

func (a alternative) words() []stt.WordDetail {
	out := make([]stt.WordDetail, len(a.Words))
	for i, w := range a.Words {
		out[i] = stt.WordDetail{
			Word:       w.Word,
			Start:      time.Duration(w.Start * float64(time.Second)),
			End:        time.Duration(w.End * float64(time.Second)),
			Confidence: w.Confidence,
		}
	}
	return out
}

// accumulator folds final alternatives into one transcript.
type accumulator struct {
	parts []string
	words []stt.WordDetail
	sum   float64
}

func (acc *accumulator) add(a alternative) {
	text := strings.TrimSpace(a.Transcript)
	if text == "" {
		return
	}
	acc.parts = append(acc.parts, text)
	acc.words = append(acc.words, a.words()...)
	acc.sum += a.Confidence
}

func (acc *accumulator) transcript() stt.Transcript {
	tr := stt.Transcript{Text: strings.Join(acc.parts, " "), Words: acc.words}
	if n := len(acc.parts); n > 0 {
		tr.Confidence = stt.Confidence(acc.sum / float64(n))
	}
	return tr
}

// receive reads events until the server closes the stream normally.
// Malformed and non-final events are skipped.
func (acc *accumulator) receive(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
			return nil
		}
		if err != nil {
			return fmt.Errorf("deepgram: receive: %w", err)
		}
		var m message
		if json.Unmarshal(data, &m) != nil {
			continue
		}
		if alt, ok := m.final(); ok {
			acc.add(alt)
		}
	}
}
