package coqui

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/audiora/audiora/pkg/audio"
	"github.com/audiora/audiora/pkg/provider/tts"
)

func collect(ch <-chan []byte) []byte {
	var out []byte
	for c := range ch {
		out = append(out, c...)
	}
	return out
}

func fragments(parts ...string) <-chan string {
	ch := make(chan string, len(parts))
	for _, p := range parts {
		ch <- p
	}
	close(ch)
	return ch
}

func wavOf(b byte, n int) []byte {
	return audio.EncodeWAV(audio.Recording{PCM: bytes.Repeat([]byte{b}, n), SampleRate: 16000, Channels: 1})
}

func TestNew(t *testing.T) {
	t.Parallel()
	if _, err := New(""); err == nil {
		t.Fatal("New(\"\") succeeded")
	}

	p, err := New("http://localhost:5002/")
	if err != nil {
		t.Fatal(err)
	}
	if p.base != "http://localhost:5002" || p.client.Timeout != defaultTimeout || p.SampleRate() != audio.SpeechSampleRate {
		t.Errorf("defaults = %s %v %d", p.base, p.client.Timeout, p.SampleRate())
	}

	p, _ = New("http://tts", WithLanguage("de"), WithTimeout(5*time.Second), WithOutputSampleRate(24000), WithOutputSampleRate(-1))
	if p.language != "de" || p.client.Timeout != 5*time.Second || p.SampleRate() != 24000 {
		t.Errorf("options = %s %v %d", p.language, p.client.Timeout, p.SampleRate())
	}
}

func TestSplitSentences(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in       string
		want     []string
		wantRest string
	}{
		{"Hello.", []string{"Hello."}, ""},
		{"Hello. World", []string{"Hello."}, " World"},
		{"¡Hola! ¿Qué tal? Bien", []string{"¡Hola!", "¿Qué tal?"}, " Bien"},
		{"no end yet", nil, "no end yet"},
		{"3.14 is pi", nil, "3.14 is pi"},
		{"Dr. Smith", []string{"Dr."}, " Smith"},
		{"", nil, ""},
		{"...  ", []string{"..."}, "  "},
	}
	for _, tt := range tests {
		got, rest := splitSentences(tt.in)
		if !slices.Equal(got, tt.want) || rest != tt.wantRest {
			t.Errorf("splitSentences(%q) = %q, %q; want %q, %q", tt.in, got, rest, tt.want, tt.wantRest)
		}
	}
}

func TestSynthesizeStream(t *testing.T) {
	t.Parallel()
	var (
		mu      sync.Mutex
		queries []map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != ttsPath {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		mu.Lock()
		queries = append(queries, map[string]string{
			"text": q.Get("text"), "language_id": q.Get("language_id"), "speaker_id": q.Get("speaker_id"),
		})
		mu.Unlock()
		// The first sentence finishes last; output must keep input order.
		if q.Get("text") == "Hola mundo." {
			time.Sleep(50 * time.Millisecond)
			_, _ = w.Write(wavOf(1, 6000))
			return
		}
		_, _ = w.Write(wavOf(2, 4))
	}))
	defer srv.Close()

	p, _ := New(srv.URL, WithLanguage("en"))
	ch, err := p.SynthesizeStream(context.Background(),
		fragments("Hola ", "mundo. ", "¿Qué ", "tal?"),
		tts.Voice{ID: "ana", Language: "es"})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	want := append(bytes.Repeat([]byte{1}, 6000), 2, 2, 2, 2)
	if got := collect(ch); !bytes.Equal(got, want) {
		t.Errorf("PCM = %d bytes, want the first sentence's 6000 then the second's 4", len(got))
	}

	mu.Lock()
	defer mu.Unlock()
	var texts []string
	for _, q := range queries {
		texts = append(texts, q["text"])
		if q["language_id"] != "es" || q["speaker_id"] != "ana" {
			t.Errorf("query = %v, want language_id=es speaker_id=ana", q)
		}
	}
	slices.Sort(texts)
	if !slices.Equal(texts, []string{"Hola mundo.", "¿Qué tal?"}) {
		t.Errorf("texts = %q", texts)
	}
}

func TestSynthesizeStream_Resamples(t *testing.T) {
	t.Parallel()
	wav := audio.EncodeWAV(audio.Recording{PCM: make([]byte, 2*22050/10), SampleRate: 22050, Channels: 1})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write(wav) }))
	defer srv.Close()

	p, _ := New(srv.URL)
	rec, err := tts.Synthesize(context.Background(), p, "Bonjour.", tts.Voice{})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if rec.SampleRate != audio.SpeechSampleRate || rec.DurationMs() != 100 {
		t.Errorf("recording = %d Hz, %d ms; want 16000 Hz, 100 ms", rec.SampleRate, rec.DurationMs())
	}
}

func TestSynthesizeStream_FailureEndsStream(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("text") == "Dos." {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(wavOf(7, 2))
	}))
	defer srv.Close()

	p, _ := New(srv.URL)
	ch, _ := p.SynthesizeStream(context.Background(), fragments("Uno. Dos. Tres."), tts.Voice{})
	if got := collect(ch); !bytes.Equal(got, []byte{7, 7}) {
		t.Errorf("PCM = %v, want only the sentence before the failure", got)
	}
}

func TestSynthesizeStream_Cancelled(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write(wavOf(1, 2)) }))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p, _ := New(srv.URL)
	ch, err := p.SynthesizeStream(ctx, make(chan string), tts.Voice{})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	select {
	case <-waitClosed(ch):
	case <-time.After(5 * time.Second):
		t.Fatal("stream stayed open after cancellation")
	}
}

func waitClosed(ch <-chan []byte) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		collect(ch)
		close(done)
	}()
	return done
}

func TestListVoices(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		body     string
		wantIDs  []string
		wantType string
	}{
		{"speakers sorted", `{"model_name":"vits","language":"en","speakers":["zoe","adam"]}`, []string{"adam", "zoe"}, "speaker"},
		{"single speaker", `{"model_name":"tacotron2","speakers":null}`, []string{"tacotron2"}, "single-speaker"},
		{"unnamed model", `{}`, []string{"default"}, "single-speaker"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != detailsPath {
					http.NotFound(w, r)
					return
				}
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p, _ := New(srv.URL)
			voices, err := p.ListVoices(context.Background())
			if err != nil {
				t.Fatalf("ListVoices: %v", err)
			}
			var ids []string
			for _, v := range voices {
				ids = append(ids, v.ID)
				if v.Provider != "coqui" || v.Metadata["type"] != tt.wantType {
					t.Errorf("voice = %+v, want coqui %s", v, tt.wantType)
				}
			}
			if !slices.Equal(ids, tt.wantIDs) {
				t.Errorf("ids = %v, want %v", ids, tt.wantIDs)
			}
		})
	}
}

func TestListVoices_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, _ *http.Request) { http.Error(w, "nope", http.StatusNotFound) }},
		{"bad json", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("{")) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			p, _ := New(srv.URL)
			if _, err := p.ListVoices(context.Background()); err == nil {
				t.Error("ListVoices succeeded")
			}
		})
	}
}
