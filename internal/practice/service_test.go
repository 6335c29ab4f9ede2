package practice

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/audiora/audiora/internal/observe"
	"github.com/audiora/audiora/internal/pronounce"
	"github.com/audiora/audiora/pkg/audio"
	"github.com/audiora/audiora/pkg/provider/stt"
	sttmock "github.com/audiora/audiora/pkg/provider/stt/mock"
	"github.com/audiora/audiora/pkg/provider/tts"
	ttsmock "github.com/audiora/audiora/pkg/provider/tts/mock"
)

// tone returns a square wave of the given amplitude.
func tone(ms, rate, channels int, amplitude int16) audio.Recording {
	frames := rate * ms / 1000
	pcm := make([]byte, frames*channels*2)
	for i := 0; i < frames*channels; i++ {
		v := amplitude
		if (i/channels/20)%2 == 1 {
			v = -amplitude
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return audio.Recording{PCM: pcm, SampleRate: rate, Channels: channels}
}

func newTestMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

type failingStore struct{ MemStore }

func (f *failingStore) Save(context.Context, *Attempt) error { return errors.New("db down") }

func TestNewService_Validation(t *testing.T) {
	t.Parallel()
	if _, err := NewService(nil, NewMemStore()); err == nil {
		t.Error("expected error for nil transcriber")
	}
	if _, err := NewService(&sttmock.Transcriber{}, nil); err == nil {
		t.Error("expected error for nil store")
	}
}

func TestService_Evaluate(t *testing.T) {
	t.Parallel()

	loud := tone(500, 16000, 1, 4000)
	tests := []struct {
		name       string
		rec        audio.Recording
		transcript stt.Transcript
		sttErr     error
		wantErr    error
		wantCalls  int
		wantScore  int
		wantPoor   bool
	}{
		{
			name:       "exact match",
			rec:        loud,
			transcript: stt.Transcript{Text: "¡Hola!"},
			wantCalls:  1,
			wantScore:  100,
		},
		{
			name:       "poor audio still scored",
			rec:        loud,
			transcript: stt.Transcript{Text: "hola", Confidence: stt.Confidence(0.2)},
			wantCalls:  1,
			wantScore:  100,
			wantPoor:   true,
		},
		{
			name:    "empty recording",
			rec:     audio.Recording{SampleRate: 16000, Channels: 1},
			wantErr: pronounce.ErrNoSpeechDetected,
		},
		{
			name:    "silent recording",
			rec:     tone(500, 16000, 1, 0),
			wantErr: pronounce.ErrNoSpeechDetected,
		},
		{
			name:       "empty transcript",
			rec:        loud,
			transcript: stt.Transcript{Text: "  "},
			wantCalls:  1,
			wantErr:    pronounce.ErrNoSpeechDetected,
		},
		{
			name:      "transcriber error",
			rec:       loud,
			sttErr:    stt.ErrEmptyRecording,
			wantCalls: 1,
			wantErr:   stt.ErrEmptyRecording,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tr := &sttmock.Transcriber{Result: tt.transcript, Err: tt.sttErr}
			store := NewMemStore()
			m, _ := newTestMetrics(t)
			svc, err := NewService(tr, store, WithMetrics(m))
			if err != nil {
				t.Fatalf("NewService: %v", err)
			}

			a, err := svc.Evaluate(context.Background(), "u1", "hola", "Spanish", tt.rec)
			if tr.CallCount() != tt.wantCalls {
				t.Errorf("transcriber calls = %d, want %d", tr.CallCount(), tt.wantCalls)
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if a.Score != tt.wantScore || a.PoorAudio != tt.wantPoor {
				t.Errorf("attempt = score %d poor %v, want %d %v", a.Score, a.PoorAudio, tt.wantScore, tt.wantPoor)
			}
			if a.Language != "spanish" || a.ID == "" {
				t.Errorf("attempt = %+v", a)
			}
			recent, _ := store.Recent(context.Background(), "u1", 0)
			if len(recent) != 1 {
				t.Errorf("stored %d attempts, want 1", len(recent))
			}
		})
	}
}

func TestService_EvaluateNormalizesAudio(t *testing.T) {
	t.Parallel()
	tr := &sttmock.Transcriber{Result: stt.Transcript{Text: "bonjour"}}
	m, _ := newTestMetrics(t)
	svc, _ := NewService(tr, NewMemStore(), WithMetrics(m))

	if _, err := svc.Evaluate(context.Background(), "u1", "bonjour", "french", tone(200, 44100, 2, 3000)); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	got := tr.TranscribeCalls[0].Recording
	if got.SampleRate != audio.SpeechSampleRate || got.Channels != 1 {
		t.Errorf("transcriber got %d Hz/%d ch, want 16 kHz mono", got.SampleRate, got.Channels)
	}
}

func TestService_EvaluateWordDetail(t *testing.T) {
	t.Parallel()
	tr := &sttmock.Transcriber{Result: stt.Transcript{Text: "buenos dia", Confidence: stt.Confidence(0.9)}}
	m, _ := newTestMetrics(t)
	svc, _ := NewService(tr, NewMemStore(), WithMetrics(m))

	a, err := svc.Evaluate(context.Background(), "u1", "buenos días", "spanish", tone(300, 16000, 1, 4000))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if a.Score <= 0 || a.Score >= 100 {
		t.Errorf("score = %d, want partial credit", a.Score)
	}
	if len(a.Words) != 2 || !a.Words[0].Match || a.Words[1].Match {
		t.Errorf("words = %+v", a.Words)
	}
}

func TestService_EvaluateStoreFailure(t *testing.T) {
	t.Parallel()
	tr := &sttmock.Transcriber{Result: stt.Transcript{Text: "hola"}}
	m, _ := newTestMetrics(t)
	svc, _ := NewService(tr, &failingStore{}, WithMetrics(m))

	a, err := svc.Evaluate(context.Background(), "u1", "hola", "spanish", tone(300, 16000, 1, 4000))
	if !errors.Is(err, ErrNotSaved) {
		t.Fatalf("err = %v, want ErrNotSaved", err)
	}
	if a == nil || a.Score != 100 {
		t.Errorf("attempt = %+v, want scored attempt", a)
	}
}

func TestService_EvaluateRecordsScore(t *testing.T) {
	t.Parallel()
	m, reader := newTestMetrics(t)
	svc, _ := NewService(&sttmock.Transcriber{Result: stt.Transcript{Text: "hola"}}, NewMemStore(), WithMetrics(m))
	if _, err := svc.Evaluate(context.Background(), "u1", "hola", "spanish", tone(300, 16000, 1, 4000)); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var found bool
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "audiora.pronunciation.score" {
				continue
			}
			hist, ok := met.Data.(metricdata.Histogram[int64])
			if !ok || len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
				t.Fatalf("score histogram = %+v", met.Data)
			}
			found = true
		}
	}
	if !found {
		t.Fatal("pronunciation score metric not recorded")
	}
}

func TestService_SetScorer(t *testing.T) {
	t.Parallel()
	m, _ := newTestMetrics(t)
	svc, _ := NewService(&sttmock.Transcriber{Result: stt.Transcript{Text: "uno dos tres cuatro cinco seis"}}, NewMemStore(), WithMetrics(m))
	target := "uno dos tres cuatro cinco siete"
	rec := tone(300, 16000, 1, 4000)

	before, err := svc.Evaluate(context.Background(), "u1", target, "spanish", rec)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	svc.SetScorer(pronounce.NewScorer(pronounce.WithThresholds(pronounce.Thresholds{WordMatchScale: 60})))
	after, err := svc.Evaluate(context.Background(), "u1", target, "spanish", rec)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if before.Score != 75 || after.Score != 50 {
		t.Errorf("scores = %d then %d, want 75 then 50", before.Score, after.Score)
	}
	svc.SetScorer(nil)
	if svc.Scorer() == nil {
		t.Error("SetScorer(nil) cleared the scorer")
	}
}

func TestService_Reference(t *testing.T) {
	t.Parallel()
	synth := &ttsmock.Provider{Chunks: [][]byte{{1, 0, 2, 0}}}
	m, _ := newTestMetrics(t)
	svc, _ := NewService(&sttmock.Transcriber{}, NewMemStore(), WithMetrics(m),
		WithSynthesizer(synth, map[string]tts.Voice{"es": {ID: "lucia"}}))

	wav, err := svc.Reference(context.Background(), "buenos días", "Spanish")
	if err != nil {
		t.Fatalf("Reference: %v", err)
	}
	if !bytes.HasPrefix(wav, []byte("RIFF")) || len(wav) != 44+4 {
		t.Errorf("wav = %d bytes, want 48-byte RIFF file", len(wav))
	}
	calls := synth.Calls()
	if len(calls) != 1 || calls[0].Voice.ID != "lucia" || calls[0].Voice.Language != "es" {
		t.Errorf("synth calls = %+v", calls)
	}

	if _, err := svc.Reference(context.Background(), "  ", "es"); err == nil {
		t.Error("expected error for empty text")
	}
}

func TestService_ReferenceNoSynthesizer(t *testing.T) {
	t.Parallel()
	svc, _ := NewService(&sttmock.Transcriber{}, NewMemStore())
	if _, err := svc.Reference(context.Background(), "hola", "es"); !errors.Is(err, ErrNoSynthesizer) {
		t.Fatalf("err = %v, want ErrNoSynthesizer", err)
	}
}
