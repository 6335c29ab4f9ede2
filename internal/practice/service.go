package practice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/audiora/audiora/internal/observe"
	"github.com/audiora/audiora/internal/pronounce"
	"github.com/audiora/audiora/pkg/audio"
	"github.com/audiora/audiora/pkg/provider/stt"
	"github.com/audiora/audiora/pkg/provider/tts"
)

var (
	// ErrNotSaved wraps a store failure after a successful evaluation. The
	// attempt returned alongside it is complete.
	ErrNotSaved = errors.New("practice: attempt was scored but not saved")

	// ErrNoSynthesizer is returned by [Service.Reference] when no TTS
	// provider is configured.
	ErrNoSynthesizer = errors.New("practice: no speech synthesizer configured")
)

// Option configures a [Service].
type Option func(*Service)

// WithScorer sets the initial scorer. Defaults to [pronounce.NewScorer].
func WithScorer(sc *pronounce.Scorer) Option {
	return func(s *Service) { s.scorer.Store(sc) }
}

// WithSynthesizer enables [Service.Reference]. voices maps a language code
// ("es") to the voice used for it; languages without an entry use the
// provider's default voice.
func WithSynthesizer(p tts.Provider, voices map[string]tts.Voice) Option {
	return func(s *Service) {
		s.synth = p
		s.voices = voices
	}
}

// WithSilenceThreshold sets the RMS below which a recording is rejected
// before transcription. Defaults to [audio.DefaultSilenceRMS].
func WithSilenceThreshold(rms float64) Option {
	return func(s *Service) { s.silenceRMS = rms }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// Service evaluates recordings and serves reference audio.
type Service struct {
	transcriber stt.Transcriber
	store       AttemptStore
	scorer      atomic.Pointer[pronounce.Scorer]
	synth       tts.Provider
	voices      map[string]tts.Voice
	silenceRMS  float64
	metrics     *observe.Metrics
}

// NewService returns a Service that transcribes with transcriber and keeps
// attempts in store.
func NewService(transcriber stt.Transcriber, store AttemptStore, opts ...Option) (*Service, error) {
	if transcriber == nil {
		return nil, errors.New("practice: transcriber must not be nil")
	}
	if store == nil {
		return nil, errors.New("practice: store must not be nil")
	}
	s := &Service{transcriber: transcriber, store: store}
	for _, o := range opts {
		o(s)
	}
	if s.scorer.Load() == nil {
		s.scorer.Store(pronounce.NewScorer())
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s, nil
}

// SetScorer swaps the scorer used by later evaluations. It is safe to call
// while evaluations are running.
func (s *Service) SetScorer(sc *pronounce.Scorer) {
	if sc != nil {
		s.scorer.Store(sc)
	}
}

// Scorer returns the scorer in effect.
func (s *Service) Scorer() *pronounce.Scorer { return s.scorer.Load() }

// Evaluate transcribes rec, scores it against target and stores the attempt.
//
// Silent or empty recordings and empty transcriptions fail with
// [pronounce.ErrNoSpeechDetected]. A store failure returns the scored
// attempt together with an error wrapping [ErrNotSaved].
func (s *Service) Evaluate(ctx context.Context, userID, target, language string, rec audio.Recording) (_ *Attempt, err error) {
	if strings.TrimSpace(target) == "" {
		return nil, errors.New("practice: target must not be empty")
	}
	if len(rec.PCM) == 0 {
		return nil, pronounce.ErrNoSpeechDetected
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("practice: %w", err)
	}
	rec = audio.Normalize(rec)
	if audio.IsSilent(rec, s.silenceRMS) {
		return nil, pronounce.ErrNoSpeechDetected
	}

	ctx, span := observe.StartSpan(ctx, "practice.evaluate")
	defer func() { observe.EndSpan(span, err) }()

	start := time.Now()
	tr, err := s.transcriber.Transcribe(ctx, rec, language)
	s.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("practice: transcribe: %w", err)
	}

	language = strings.ToLower(strings.TrimSpace(language))
	res, err := s.scorer.Load().Score(target, tr.Text, language, tr.Confidence)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordScore(ctx, language, res.Score)

	a := &Attempt{
		UserID:          userID,
		TargetText:      target,
		TranscribedText: tr.Text,
		Language:        language,
		Confidence:      tr.Confidence,
		Score:           res.Score,
		Feedback:        res.Feedback,
		PoorAudio:       res.PoorAudio,
		Words:           res.Words,
	}
	if err := s.store.Save(ctx, a); err != nil {
		observe.Logger(ctx).Error("practice: save attempt", "user_id", userID, "err", err)
		return a, fmt.Errorf("%w: %w", ErrNotSaved, err)
	}
	return a, nil
}

// Reference synthesises text in language and returns it as a WAV file.
func (s *Service) Reference(ctx context.Context, text, language string) ([]byte, error) {
	if s.synth == nil {
		return nil, ErrNoSynthesizer
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("practice: reference text must not be empty")
	}

	code := stt.LanguageCode(language)
	voice, ok := s.voices[code]
	if !ok {
		slog.Debug("practice: no voice configured for language, using provider default", "language", code)
	}
	if voice.Language == "" {
		voice.Language = code
	}

	start := time.Now()
	rec, err := tts.Synthesize(ctx, s.synth, text, voice)
	s.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("practice: reference: %w", err)
	}
	return audio.EncodeWAV(rec), nil
}

// Recent returns the user's latest attempts.
func (s *Service) Recent(ctx context.Context, userID string, limit int) ([]Attempt, error) {
	return s.store.Recent(ctx, userID, limit)
}

// Stats returns the user's progress summary.
func (s *Service) Stats(ctx context.Context, userID, language string) (Stats, error) {
	return s.store.Stats(ctx, userID, language)
}
