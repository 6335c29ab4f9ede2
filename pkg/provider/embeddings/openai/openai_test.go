package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeServer answers /embeddings with one vector per input whose first
// component is the input's length. It lists data in reverse order to check
// that results are reordered by index.
type fakeServer struct {
	mu       sync.Mutex
	requests []map[string]any
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/embeddings") {
		http.NotFound(w, r)
		return
	}
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.requests = append(f.requests, body)
	f.mu.Unlock()

	var inputs []string
	switch in := body["input"].(type) {
	case string:
		inputs = []string{in}
	case []any:
		for _, v := range in {
			inputs = append(inputs, v.(string))
		}
	}
	var data []string
	for i := len(inputs) - 1; i >= 0; i-- {
		data = append(data, fmt.Sprintf(`{"object":"embedding","index":%d,"embedding":[%d,0.5]}`, i, len(inputs[i])))
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"object":"list","model":%q,"data":[%s],"usage":{"prompt_tokens":1,"total_tokens":1}}`,
		body["model"], strings.Join(data, ","))
}

func newTestProvider(t *testing.T, opts ...Option) (*Provider, *fakeServer) {
	t.Helper()
	fake := &fakeServer{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	p, err := New("sk-test", "", append([]Option{WithBaseURL(srv.URL + "/v1")}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, fake
}

func TestNew(t *testing.T) {
	t.Parallel()
	if _, err := New("", "text-embedding-3-small"); err == nil {
		t.Error("New without api key succeeded")
	}
	p, err := New("sk-test", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.ModelID() != DefaultModel {
		t.Errorf("ModelID = %q, want %q", p.ModelID(), DefaultModel)
	}
}

func TestDimensions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		model string
		n     int
		want  int
	}{
		{"text-embedding-3-small", 0, 1536},
		{"text-embedding-3-large", 0, 3072},
		{"text-embedding-ada-002", 0, 1536},
		{"some-future-model", 0, 1536},
		{"text-embedding-3-small", 512, 512},
		{"text-embedding-3-large", 1024, 1024},
		{"text-embedding-ada-002", 512, 1536},
	}
	for _, tt := range tests {
		p, err := New("sk-test", tt.model, WithDimensions(tt.n))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if got := p.Dimensions(); got != tt.want {
			t.Errorf("%s with %d: Dimensions() = %d, want %d", tt.model, tt.n, got, tt.want)
		}
	}
}

func TestEmbed(t *testing.T) {
	t.Parallel()
	p, fake := newTestProvider(t, WithDimensions(2))
	vec, err := p.Embed(context.Background(), "es: casa (house)")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 2 || vec[0] != float32(len("es: casa (house)")) || vec[1] != 0.5 {
		t.Errorf("vector = %v", vec)
	}
	req := fake.requests[0]
	if req["model"] != DefaultModel || req["dimensions"] != float64(2) {
		t.Errorf("request = %v, want default model and dimensions 2", req)
	}
}

func TestEmbedBatch(t *testing.T) {
	t.Parallel()
	p, fake := newTestProvider(t, WithBatchSize(2))
	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vecs, err := p.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("got %d vectors, want %d", len(vecs), len(texts))
	}
	for i, v := range vecs {
		if v[0] != float32(len(texts[i])) {
			t.Errorf("vector %d belongs to input of length %v, want %d", i, v[0], len(texts[i]))
		}
	}
	if len(fake.requests) != 3 {
		t.Errorf("requests = %d, want 3 batches of at most 2", len(fake.requests))
	}

	if vecs, err := p.EmbedBatch(context.Background(), nil); err != nil || len(vecs) != 0 {
		t.Errorf("EmbedBatch(nil) = %v, %v", vecs, err)
	}
}
