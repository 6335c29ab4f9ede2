package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/audiora/audiora/pkg/audio"
	"github.com/audiora/audiora/pkg/provider/stt"
)

// NativeProvider runs whisper.cpp in-process. Building it needs libwhisper.a
// and whisper.h on LIBRARY_PATH and C_INCLUDE_PATH.
type NativeProvider struct {
	model    whisperlib.Model
	language string
}

var _ stt.Transcriber = (*NativeProvider)(nil)

// NativeOption configures a [NativeProvider].
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the language used when Transcribe gets none.
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// NewNative loads the model file at path. Call Close to free it.
func NewNative(path string, opts ...NativeOption) (*NativeProvider, error) {
	if path == "" {
		return nil, errors.New("whisper: model path is required")
	}
	model, err := whisperlib.New(path)
	if err != nil {
		return nil, fmt.Errorf("whisper: load %s: %w", path, err)
	}
	p := &NativeProvider{model: model}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

func (p *NativeProvider) Close() error {
	if p.model == nil {
		return nil
	}
	return p.model.Close()
}

// Transcribe runs inference on rec. Confidence is the mean probability of
// the speech tokens.
func (p *NativeProvider) Transcribe(ctx context.Context, rec audio.Recording, language string) (stt.Transcript, error) {
	rec, err := prepare(ctx, rec)
	if err != nil {
		return stt.Transcript{}, err
	}
	if language == "" {
		language = p.language
	}

	// The model is shared; a context is per call.
	wctx, err := p.model.NewContext()
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: new context: %w", err)
	}
	lang := stt.LanguageCode(language)
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: language not supported, detecting instead", "language", lang, "err", err)
	}
	if err := wctx.Process(audio.Float32Mono(rec), nil, nil, nil); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: process: %w", err)
	}

	var segs []segment
	for {
		s, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stt.Transcript{}, fmt.Errorf("whisper: next segment: %w", err)
		}
		seg := segment{text: s.Text}
		for _, tok := range s.Tokens {
			if !control(tok.Text) {
				seg.probs = append(seg.probs, float64(tok.P))
			}
		}
		segs = append(segs, seg)
	}
	return assemble(segs, time.Duration(rec.DurationMs())*time.Millisecond), nil
}
