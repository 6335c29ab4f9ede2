// Package whisper transcribes with whisper.cpp.
//
// [Provider] posts to a whisper-server's /inference endpoint and
// [NativeProvider] runs the model in-process through the CGO bindings.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/audiora/audiora/pkg/audio"
	"github.com/audiora/audiora/pkg/provider/stt"
)

const maxResponseBytes = 1 << 20

// Option configures a [Provider].
type Option func(*Provider)

// WithModel names the model the server should use. Empty keeps the one it
// was started with.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the language used when Transcribe gets none. Empty
// means auto-detect.
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithHTTPClient replaces the default client, which times out after 30s.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// Provider is a whisper-server stt.Transcriber.
type Provider struct {
	base     string
	model    string
	language string
	client   *http.Client
}

var _ stt.Transcriber = (*Provider)(nil)

// New returns a provider for the server at base, e.g. http://localhost:8080.
func New(base string, opts ...Option) (*Provider, error) {
	if base == "" {
		return nil, errors.New("whisper: server URL is required")
	}
	p := &Provider{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// prepare validates rec and converts it to the recogniser's input format.
func prepare(ctx context.Context, rec audio.Recording) (audio.Recording, error) {
	if len(rec.PCM) == 0 {
		return rec, fmt.Errorf("whisper: %w", stt.ErrEmptyRecording)
	}
	if err := rec.Validate(); err != nil {
		return rec, fmt.Errorf("whisper: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return rec, fmt.Errorf("whisper: %w", err)
	}
	return audio.Normalize(rec), nil
}

// Transcribe uploads rec as 16 kHz mono WAV. Words and confidence come from
// the server's word timestamps when it reports them.
func (p *Provider) Transcribe(ctx context.Context, rec audio.Recording, language string) (stt.Transcript, error) {
	rec, err := prepare(ctx, rec)
	if err != nil {
		return stt.Transcript{}, err
	}
	if language == "" {
		language = p.language
	}

	body, contentType, err := p.form(audio.EncodeWAV(rec), stt.LanguageCode(language))
	if err != nil {
		return stt.Transcript{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.base+"/inference", body)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := p.client.Do(req)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: inference: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return stt.Transcript{}, fmt.Errorf("whisper: inference: %s", resp.Status)
	}

	var out inference
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: decode inference: %w", err)
	}
	return out.transcript(time.Duration(rec.DurationMs()) * time.Millisecond), nil
}

// form builds the multipart upload. Empty fields are left out.
func (p *Provider) form(wav []byte, language string) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err == nil {
		_, err = fw.Write(wav)
	}
	for _, kv := range [][2]string{{"response_format", "verbose_json"}, {"language", language}, {"model", p.model}} {
		if err == nil && kv[1] != "" {
			err = mw.WriteField(kv[0], kv[1])
		}
	}
	if err == nil {
		err = mw.Close()
	}
	if err != nil {
		return nil, "", fmt.Errorf("whisper: build upload: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

// inference is the server's verbose_json answer. Plain json answers only
// fill Text.
type inference struct {
	Text     string `json:"text"`
	Segments []struct {
		Text  string `json:"text"`
		Words []struct {
			Word        string  `json:"word"`
			Start       float64 `json:"start"`
			End         float64 `json:"end"`
			Probability float64 `json:"probability"`
		} `json:"words"`
	} `json:"segments"`
}

func (in inference) transcript(dur time.Duration) stt.Transcript {
	if len(in.Segments) == 0 {
		return assemble([]segment{{text: in.Text}}, dur)
	}
	segs := make([]segment, 0, len(in.Segments))
	for _, s := range in.Segments {
		seg := segment{text: s.Text}
		for _, w := range s.Words {
			word := strings.TrimSpace(w.Word)
			if word == "" || control(word) {
				continue
			}
			seg.words = append(seg.words, stt.WordDetail{
				Word:       word,
				Start:      seconds(w.Start),
				End:        seconds(w.End),
				Confidence: w.Probability,
			})
			seg.probs = append(seg.probs, w.Probability)
		}
		segs = append(segs, seg)
	}
	return assemble(segs, dur)
}

func seconds(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }
