// Package pronounce scores a transcribed utterance against a target phrase
// and produces tiered, human-readable feedback.
//
// Scoring works on normalised text (see [Normalize]):
//
//  1. An exact normalised match scores 100.
//  2. [CJK] text scores round(characterSimilarity × 100), where
//     characterSimilarity = 1 − Levenshtein / len(longer).
//  3. Other text is tokenised on whitespace. Equal token counts with every
//     token matching positionally score 100; at least [Thresholds.WordMatchRatio]
//     matching tokens score round(ratio × [Thresholds.WordMatchScale]).
//     Anything else falls back to character similarity capped at
//     [Thresholds.CharFallbackCap].
//  4. A speech-recognition confidence, when present, adds
//     min([Thresholds.MaxConfidenceBonus], confidence × 10), capped at 100.
package pronounce

import (
	"errors"
	"math"
	"strings"

	"github.com/antzucaro/matchr"
)

// ErrNoSpeechDetected is returned when the transcription is empty, so there
// is nothing to score.
var ErrNoSpeechDetected = errors.New("pronounce: no speech detected")

// Thresholds holds the tunable constants of the scoring and feedback rules.
type Thresholds struct {
	// WordMatchRatio is the minimum share of positionally matching tokens for
	// the word-level path. Default: 0.8.
	WordMatchRatio float64 `yaml:"word_match_ratio" toml:"word_match_ratio"`

	// WordMatchScale multiplies the match ratio on the word-level path.
	// Default: 90.
	WordMatchScale float64 `yaml:"word_match_scale" toml:"word_match_scale"`

	// CharFallbackCap bounds the character-similarity fallback for non-CJK
	// text. Default: 50.
	CharFallbackCap int `yaml:"char_fallback_cap" toml:"char_fallback_cap"`

	// MaxConfidenceBonus bounds the confidence bonus. Default: 10.
	MaxConfidenceBonus float64 `yaml:"max_confidence_bonus" toml:"max_confidence_bonus"`

	// PoorAudioConfidence is the confidence below which the audio is
	// reported as poor. Default: 0.4.
	PoorAudioConfidence float64 `yaml:"poor_audio_confidence" toml:"poor_audio_confidence"`

	// LowConfidence is the confidence below which feedback avoids quoting
	// the transcription. Default: 0.6.
	LowConfidence float64 `yaml:"low_confidence" toml:"low_confidence"`
}

// DefaultThresholds returns the stock scoring constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		WordMatchRatio:      0.8,
		WordMatchScale:      90,
		CharFallbackCap:     50,
		MaxConfidenceBonus:  10,
		PoorAudioConfidence: 0.4,
		LowConfidence:       0.6,
	}
}

// withDefaults fills zero fields from [DefaultThresholds].
func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	if t.WordMatchRatio <= 0 {
		t.WordMatchRatio = d.WordMatchRatio
	}
	if t.WordMatchScale <= 0 {
		t.WordMatchScale = d.WordMatchScale
	}
	if t.CharFallbackCap <= 0 {
		t.CharFallbackCap = d.CharFallbackCap
	}
	if t.MaxConfidenceBonus <= 0 {
		t.MaxConfidenceBonus = d.MaxConfidenceBonus
	}
	if t.PoorAudioConfidence <= 0 {
		t.PoorAudioConfidence = d.PoorAudioConfidence
	}
	if t.LowConfidence <= 0 {
		t.LowConfidence = d.LowConfidence
	}
	return t
}

// Result is the outcome of scoring one attempt.
type Result struct {
	// Score is the accuracy in [0, 100].
	Score int `json:"score"`

	// Feedback is the human-readable guidance for the learner.
	Feedback string `json:"feedback"`

	// ExactMatch is true when the normalised texts are identical.
	ExactMatch bool `json:"exact_match"`

	// PoorAudio is true when the confidence fell below
	// [Thresholds.PoorAudioConfidence].
	PoorAudio bool `json:"poor_audio"`

	// Family is the script family used for comparison.
	Family ScriptFamily `json:"-"`

	// Words holds per-token details for tokenised scripts. Nil for CJK.
	Words []WordResult `json:"words,omitempty"`
}

// Option is a functional option for configuring a [Scorer].
type Option func(*Scorer)

// WithThresholds overrides the scoring constants. Zero fields keep their
// defaults.
func WithThresholds(t Thresholds) Option {
	return func(s *Scorer) {
		s.thresholds = t.withDefaults()
	}
}

// WithPhoneticThreshold sets the minimum Jaro-Winkler similarity for a
// mismatched word to be flagged as sounding alike. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(s *Scorer) {
		s.phoneticThreshold = threshold
	}
}

// Scorer computes pronunciation scores. It is immutable after construction
// and safe for concurrent use.
type Scorer struct {
	thresholds        Thresholds
	phoneticThreshold float64
}

// NewScorer returns a [Scorer] configured with the supplied options.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		thresholds:        DefaultThresholds(),
		phoneticThreshold: defaultPhoneticThreshold,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Thresholds returns the scoring constants in effect.
func (s *Scorer) Thresholds() Thresholds {
	return s.thresholds
}

// Score compares transcribed against target. confidence is the recogniser's
// confidence in [0, 1], or nil when unavailable; out-of-range values are
// clamped and NaN is treated as absent.
//
// The only error is [ErrNoSpeechDetected], returned when transcribed is empty
// after normalisation. Malformed input never fails: it scores 0 with generic
// feedback.
func (s *Scorer) Score(target, transcribed, language string, confidence *float64) (Result, error) {
	family := Classify(language)
	conf := sanitizeConfidence(confidence)

	normTarget := Normalize(target, family)
	normHeard := Normalize(transcribed, family)
	if normHeard == "" {
		return Result{Family: family}, ErrNoSpeechDetected
	}

	res := Result{Family: family}
	if conf != nil && *conf < s.thresholds.PoorAudioConfidence {
		res.PoorAudio = true
	}

	if normTarget == "" {
		res.Feedback = feedbackUnscorable
		if res.PoorAudio {
			res.Feedback = feedbackPoorAudio
		}
		return res, nil
	}

	raw := s.rawScore(normTarget, normHeard, family)
	res.ExactMatch = normTarget == normHeard
	res.Score = s.applyConfidence(raw, conf)
	if family != CJK {
		res.Words = s.compareWords(normTarget, normHeard, family)
	}
	res.Feedback = s.feedback(res, target, transcribed, conf)
	return res, nil
}

// rawScore returns the score before the confidence bonus.
func (s *Scorer) rawScore(target, heard string, family ScriptFamily) float64 {
	if target == heard {
		return 100
	}
	if family == CJK {
		return math.Round(CharacterSimilarity(target, heard) * 100)
	}

	targetTokens := strings.Fields(target)
	heardTokens := strings.Fields(heard)
	if len(targetTokens) == len(heardTokens) {
		matched := 0
		for i := range targetTokens {
			if targetTokens[i] == heardTokens[i] {
				matched++
			}
		}
		ratio := float64(matched) / float64(len(targetTokens))
		if matched == len(targetTokens) {
			return 100
		}
		if ratio >= s.thresholds.WordMatchRatio {
			return math.Round(ratio * s.thresholds.WordMatchScale)
		}
	}

	charScore := math.Round(CharacterSimilarity(target, heard) * 100)
	return math.Min(charScore, float64(s.thresholds.CharFallbackCap))
}

func (s *Scorer) applyConfidence(raw float64, conf *float64) int {
	if conf != nil {
		raw += math.Min(s.thresholds.MaxConfidenceBonus, *conf*10)
	}
	return int(math.Min(100, math.Max(0, math.Round(raw))))
}

// CharacterSimilarity returns 1 − Levenshtein(a, b) / max(len(a), len(b)),
// measured in runes. Two empty strings are identical.
func CharacterSimilarity(a, b string) float64 {
	longer := max(len([]rune(a)), len([]rune(b)))
	if longer == 0 {
		return 1
	}
	return 1 - float64(matchr.Levenshtein(a, b))/float64(longer)
}

func sanitizeConfidence(c *float64) *float64 {
	if c == nil || math.IsNaN(*c) {
		return nil
	}
	v := math.Min(1, math.Max(0, *c))
	return &v
}
