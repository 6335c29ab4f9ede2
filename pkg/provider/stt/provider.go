// Package stt defines the Transcriber interface for speech-to-text backends.
//
// A Transcriber turns one recorded utterance into text. Pronunciation practice
// submits short, complete clips, so every backend works in batch mode even
// when the underlying service is a streaming one.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/audiora/audiora/pkg/audio"
)

// ErrEmptyRecording is returned when a recording carries no PCM data.
var ErrEmptyRecording = errors.New("stt: recording is empty")

// Transcript is the result of transcribing one recording.
type Transcript struct {
	// Text is the transcribed speech. Empty when nothing was recognised.
	Text string

	// Confidence is the overall recognition confidence in [0, 1], or nil when
	// the backend does not report one.
	Confidence *float64

	// Words contains per-word detail when the backend provides it.
	Words []WordDetail

	// Duration is the length of the transcribed audio.
	Duration time.Duration
}

// WordDetail holds per-word metadata from backends that support it.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// Transcriber is the abstraction over any STT backend.
type Transcriber interface {
	// Transcribe recognises speech in rec. language is a language name
	// ("spanish") or tag ("es-MX"); an empty string lets the backend detect it.
	Transcribe(ctx context.Context, rec audio.Recording, language string) (Transcript, error)
}

// Confidence returns a pointer to v for populating [Transcript.Confidence].
func Confidence(v float64) *float64 { return &v }

var languageCodes = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"dutch":      "nl",
	"swedish":    "sv",
	"polish":     "pl",
	"turkish":    "tr",
	"japanese":   "ja",
	"chinese":    "zh",
	"mandarin":   "zh",
	"cantonese":  "zh",
	"korean":     "ko",
	"russian":    "ru",
	"ukrainian":  "uk",
	"greek":      "el",
	"arabic":     "ar",
	"hebrew":     "he",
	"hindi":      "hi",
	"thai":       "th",
}

// LanguageCode maps a language name or tag to the ISO 639-1 code speech
// backends expect. Unknown names are returned lowercased.
func LanguageCode(language string) string {
	lang := strings.ToLower(strings.TrimSpace(language))
	if code, ok := languageCodes[lang]; ok {
		return code
	}
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		return lang[:i]
	}
	return lang
}
