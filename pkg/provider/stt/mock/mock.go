// Package mock provides a test double for the stt.Transcriber interface.
//
// Example:
//
//	tr := &mock.Transcriber{Result: stt.Transcript{Text: "hola", Confidence: stt.Confidence(0.9)}}
//	got, _ := tr.Transcribe(ctx, rec, "spanish")
package mock

import (
	"context"
	"sync"

	"github.com/audiora/audiora/pkg/audio"
	"github.com/audiora/audiora/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Recording is the audio passed to Transcribe.
	Recording audio.Recording
	// Language is the language passed to Transcribe.
	Language string
}

// Transcriber is a mock implementation of stt.Transcriber.
type Transcriber struct {
	mu sync.Mutex

	// Result is returned from Transcribe when Err is nil.
	Result stt.Transcript

	// Err, if non-nil, is returned from Transcribe.
	Err error

	// TranscribeFunc, if set, handles every call.
	TranscribeFunc func(ctx context.Context, rec audio.Recording, language string) (stt.Transcript, error)

	// TranscribeCalls records every call to Transcribe.
	TranscribeCalls []TranscribeCall
}

var _ stt.Transcriber = (*Transcriber)(nil)

// Transcribe records the call and returns Result or Err.
func (m *Transcriber) Transcribe(ctx context.Context, rec audio.Recording, language string) (stt.Transcript, error) {
	m.mu.Lock()
	m.TranscribeCalls = append(m.TranscribeCalls, TranscribeCall{Ctx: ctx, Recording: rec, Language: language})
	fn, res, err := m.TranscribeFunc, m.Result, m.Err
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, rec, language)
	}
	if err != nil {
		return stt.Transcript{}, err
	}
	return res, nil
}

// CallCount returns the number of Transcribe calls so far.
func (m *Transcriber) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.TranscribeCalls)
}
