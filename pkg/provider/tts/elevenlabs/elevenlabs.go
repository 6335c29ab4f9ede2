// Package elevenlabs synthesises reference audio through the ElevenLabs
// stream-input WebSocket and lists voices through its REST API.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/audiora/audiora/pkg/provider/tts"
)

const (
	wsBase        = "wss://api.elevenlabs.io"
	restBase      = "https://api.elevenlabs.io"
	defaultModel  = "eleven_multilingual_v2"
	defaultFormat = "pcm_16000"
)

// ErrNoVoice is returned when neither the request nor the provider names a
// voice.
var ErrNoVoice = errors.New("elevenlabs: no voice ID")

// Option configures a [Provider].
type Option func(*Provider)

// WithModel selects the synthesis model, e.g. "eleven_flash_v2_5".
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithOutputFormat selects a "pcm_<rate>" output format. Other formats are
// ignored because callers need raw PCM.
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		if _, ok := pcmRate(format); ok {
			p.format = format
		}
	}
}

// WithVoice sets the voice used for requests without one.
func WithVoice(id string) Option {
	return func(p *Provider) { p.voice = id }
}

// WithVoiceSettings tunes stability and similarity boost, both in [0,1].
func WithVoiceSettings(stability, similarity float64) Option {
	return func(p *Provider) { p.settings = voiceSettings{Stability: stability, SimilarityBoost: similarity} }
}

// WithEndpoints points the provider at other WebSocket and REST hosts.
func WithEndpoints(ws, rest string) Option {
	return func(p *Provider) {
		p.ws = strings.TrimRight(ws, "/")
		p.rest = strings.TrimRight(rest, "/")
	}
}

// WithHTTPClient sets the client used for REST calls.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// Provider is an ElevenLabs tts.Provider.
type Provider struct {
	apiKey   string
	model    string
	format   string
	voice    string
	settings voiceSettings
	ws, rest string
	client   *http.Client
}

var _ tts.Provider = (*Provider)(nil)

// New returns a provider authenticating with apiKey.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: API key is required")
	}
	p := &Provider{
		apiKey:   apiKey,
		model:    defaultModel,
		format:   defaultFormat,
		settings: voiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
		ws:       wsBase,
		rest:     restBase,
		client:   http.DefaultClient,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

func (p *Provider) SampleRate() int {
	rate, _ := pcmRate(p.format)
	return rate
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// inputMessage is a client frame. The first one carries the key and
// settings; an empty Text ends the input.
type inputMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	APIKey        string         `json:"xi_api_key,omitempty"`
}

// outputMessage is a server frame.
type outputMessage struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
}

// decode returns the frame's PCM. A frame carrying only a message is a
// server-side error.
func (m outputMessage) decode() ([]byte, error) {
	if m.Audio == "" {
		if m.Message != "" && !m.IsFinal {
			return nil, fmt.Errorf("elevenlabs: %s", m.Message)
		}
		return nil, nil
	}
	pcm, err := base64.StdEncoding.DecodeString(m.Audio)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: audio payload: %w", err)
	}
	return pcm, nil
}

func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.Voice) (<-chan []byte, error) {
	id := voice.ID
	if id == "" {
		id = p.voice
	}
	if id == "" {
		return nil, ErrNoVoice
	}

	conn, _, err := websocket.Dial(ctx, p.streamURL(id, voice.Language), nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %w", err)
	}
	s := &stream{conn: conn}
	// The service rejects an empty opening frame.
	open := inputMessage{Text: " ", VoiceSettings: &p.settings, APIKey: p.apiKey}
	if err := s.send(ctx, open); err != nil {
		conn.CloseNow()
		return nil, fmt.Errorf("elevenlabs: open stream: %w", err)
	}

	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		defer conn.Close(websocket.StatusNormalClosure, "")

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return s.pump(gctx, text) })
		g.Go(func() error { return s.receive(gctx, out) })
		if err := g.Wait(); err != nil && !errors.Is(err, errDone) && ctx.Err() == nil {
			slog.Warn("elevenlabs: stream ended early", "voice", id, "err", err)
		}
	}()
	return out, nil
}

// stream is one open stream-input connection.
type stream struct {
	conn *websocket.Conn
}

func (s *stream) send(ctx context.Context, m inputMessage) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.conn.Write(ctx, websocket.MessageText, b)
}

// pump forwards text fragments and sends the end-of-input frame once text
// is closed.
func (s *stream) pump(ctx context.Context, text <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frag, ok := <-text:
			if !ok {
				return s.send(ctx, inputMessage{})
			}
			if strings.TrimSpace(frag) == "" {
				continue
			}
			// Generation starts once a fragment ends in a space.
			if !strings.HasSuffix(frag, " ") {
				frag += " "
			}
			if err := s.send(ctx, inputMessage{Text: frag}); err != nil {
				return fmt.Errorf("send text: %w", err)
			}
		}
	}
}

// receive forwards PCM until the final frame or a normal close, then
// returns errDone so the errgroup stops pump.
func (s *stream) receive(ctx context.Context, out chan<- []byte) error {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return errDone
			}
			return fmt.Errorf("read: %w", err)
		}
		var m outputMessage
		if err := json.Unmarshal(data, &m); err != nil {
			continue
		}
		pcm, err := m.decode()
		if err != nil {
			return err
		}
		if len(pcm) > 0 {
			select {
			case out <- pcm:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if m.IsFinal {
			return errDone
		}
	}
}

var errDone = errors.New("elevenlabs: stream complete")

func (p *Provider) streamURL(voiceID, language string) string {
	q := url.Values{"model_id": {p.model}, "output_format": {p.format}}
	if language != "" {
		q.Set("language_code", language)
	}
	return p.ws + "/v1/text-to-speech/" + url.PathEscape(voiceID) + "/stream-input?" + q.Encode()
}

type voiceList struct {
	Voices []struct {
		ID       string            `json:"voice_id"`
		Name     string            `json:"name"`
		Category string            `json:"category"`
		Labels   map[string]string `json:"labels"`
	} `json:"voices"`
}

func (l voiceList) voices() []tts.Voice {
	out := make([]tts.Voice, 0, len(l.Voices))
	for _, v := range l.Voices {
		meta := maps.Clone(v.Labels)
		if meta == nil {
			meta = map[string]string{}
		}
		if v.Category != "" {
			meta["category"] = v.Category
		}
		out = append(out, tts.Voice{
			ID:       v.ID,
			Name:     v.Name,
			Provider: "elevenlabs",
			Language: v.Labels["language"],
			Metadata: meta,
		})
	}
	return out
}

// ListVoices returns the voices available to the API key.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.rest+"/v1/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs: list voices: %s", resp.Status)
	}
	var l voiceList
	if err := json.NewDecoder(resp.Body).Decode(&l); err != nil {
		return nil, fmt.Errorf("elevenlabs: decode voices: %w", err)
	}
	return l.voices(), nil
}

// pcmRate parses the rate out of a "pcm_<rate>" format name.
func pcmRate(format string) (int, bool) {
	s, ok := strings.CutPrefix(format, "pcm_")
	if !ok {
		return 0, false
	}
	rate, err := strconv.Atoi(s)
	if err != nil || rate <= 0 {
		return 0, false
	}
	return rate, true
}
