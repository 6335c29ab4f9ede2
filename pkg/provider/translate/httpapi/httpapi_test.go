package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/audiora/audiora/pkg/provider/translate"
	"github.com/audiora/audiora/pkg/provider/translate/httpapi"
)

// fastRetry keeps backoff waits in the millisecond range.
var fastRetry = translate.RetryPolicy{Base: time.Millisecond, Factor: 2, Cap: 4 * time.Millisecond, MaxRetries: 3}

func newProvider(t *testing.T, url string, opts ...httpapi.Option) *httpapi.Provider {
	t.Helper()
	opts = append([]httpapi.Option{
		httpapi.WithDebounce(0, 0),
		httpapi.WithRetryPolicy(fastRetry),
	}, opts...)
	p, err := httpapi.New(url, "secret-token", opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestTranslate_Word(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret-token" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["type"] != "word" || body["word"] != "corazón" || body["language"] != "spanish" {
			t.Errorf("unexpected body %v", body)
		}
		if body["context"] != "mi corazón late" {
			t.Errorf("context = %q", body["context"])
		}
		if _, ok := body["text"]; ok {
			t.Error("word request must not carry text")
		}
		writeJSON(w, http.StatusOK, map[string]string{"translation": "heart"})
	}))
	defer srv.Close()

	got, err := newProvider(t, srv.URL).Translate(context.Background(), translate.Request{
		Kind: translate.KindWord, Text: "corazón", Language: "spanish", Context: "mi corazón late",
	})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "heart" {
		t.Errorf("translation = %q, want heart", got)
	}
}

func TestTranslate_Line(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["type"] != "line" || body["text"] != "te quiero" {
			t.Errorf("unexpected body %v", body)
		}
		writeJSON(w, http.StatusOK, map[string]string{"translation": "I love you"})
	}))
	defer srv.Close()

	got, err := newProvider(t, srv.URL).Translate(context.Background(), translate.Request{
		Kind: translate.KindLine, Text: "te quiero", Language: "es",
	})
	if err != nil || got != "I love you" {
		t.Fatalf("Translate = %q, %v", got, err)
	}
}

func TestTranslate_RetriesRateLimit(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "slow down"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"translation": "hello"})
	}))
	defer srv.Close()

	var retries atomic.Int32
	p := newProvider(t, srv.URL, httpapi.WithRetryHook(func(int, error) { retries.Add(1) }))
	got, err := p.Translate(context.Background(), translate.Request{Kind: translate.KindWord, Text: "hola", Language: "es"})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "hello" {
		t.Errorf("translation = %q", got)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
	if retries.Load() != 1 {
		t.Errorf("retry hook calls = %d, want 1", retries.Load())
	}
}

func TestTranslate_ErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantKind  translate.ErrorKind
		wantCalls int32
	}{
		{
			name: "server error exhausts retries",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream"})
			},
			wantKind:  translate.ErrServer,
			wantCalls: 4,
		},
		{
			name: "rate limit exhausts retries",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "1")
				writeJSON(w, http.StatusTooManyRequests, nil)
			},
			wantKind:  translate.ErrRateLimited,
			wantCalls: 4,
		},
		{
			name: "client error is not retried",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "bad token"})
			},
			wantKind:  translate.ErrClient,
			wantCalls: 1,
		},
		{
			name: "wrong content type",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				_, _ = w.Write([]byte("<html>login</html>"))
			},
			wantKind:  translate.ErrMalformedResponse,
			wantCalls: 1,
		},
		{
			name: "unparseable body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte("{not json"))
			},
			wantKind:  translate.ErrMalformedResponse,
			wantCalls: 1,
		},
		{
			name: "missing translation",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]string{})
			},
			wantKind:  translate.ErrMalformedResponse,
			wantCalls: 1,
		},
		{
			name: "error field on success status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]string{"error": "unsupported language"})
			},
			wantKind:  translate.ErrClient,
			wantCalls: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tc.handler(w, r)
			}))
			defer srv.Close()

			_, err := newProvider(t, srv.URL).Translate(context.Background(),
				translate.Request{Kind: translate.KindWord, Text: "hola", Language: "es"})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := translate.KindOf(err); got != tc.wantKind {
				t.Errorf("kind = %v, want %v (err: %v)", got, tc.wantKind, err)
			}
			if calls.Load() != tc.wantCalls {
				t.Errorf("calls = %d, want %d", calls.Load(), tc.wantCalls)
			}
		})
	}
}

func TestTranslate_Offline(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	p := newProvider(t, srv.URL, httpapi.WithConnectivity(httpapi.ConnectivityFunc(func(context.Context) bool { return false })))
	_, err := p.Translate(context.Background(), translate.Request{Kind: translate.KindWord, Text: "hola", Language: "es"})
	if got := translate.KindOf(err); got != translate.ErrOffline {
		t.Errorf("kind = %v, want offline", got)
	}
	if calls.Load() != 0 {
		t.Errorf("offline call reached the server %d times", calls.Load())
	}
}

func TestTranslate_Cancelled(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := newProvider(t, srv.URL).Translate(ctx, translate.Request{Kind: translate.KindWord, Text: "hola", Language: "es"})
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !translate.IsCancelled(err) {
			t.Errorf("err = %v, want cancelled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Translate did not return after cancellation")
	}
}

func TestTranslate_AttemptTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	p := newProvider(t, srv.URL,
		httpapi.WithAttemptTimeout(20*time.Millisecond),
		httpapi.WithRetryPolicy(translate.RetryPolicy{MaxRetries: -1}),
	)
	_, err := p.Translate(context.Background(), translate.Request{Kind: translate.KindWord, Text: "hola", Language: "es"})
	if got := translate.KindOf(err); got != translate.ErrServer {
		t.Errorf("kind = %v, want server-error (err: %v)", got, err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want wrapped DeadlineExceeded", err)
	}
}

func TestTranslate_InvalidRequest(t *testing.T) {
	t.Parallel()

	p := newProvider(t, "http://127.0.0.1:1")
	_, err := p.Translate(context.Background(), translate.Request{Kind: "paragraph", Text: "", Language: "es"})
	if got := translate.KindOf(err); got != translate.ErrClient {
		t.Errorf("kind = %v, want client-error", got)
	}
}

func TestNew_EmptyEndpoint(t *testing.T) {
	t.Parallel()
	if _, err := httpapi.New("", "token"); err == nil {
		t.Error("expected error for empty endpoint")
	}
}
