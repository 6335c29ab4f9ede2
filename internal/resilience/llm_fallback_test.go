package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/audiora/audiora/pkg/provider/llm"
	llmmock "github.com/audiora/audiora/pkg/provider/llm/mock"
)

func TestLLMFallback_Complete(t *testing.T) {
	t.Parallel()
	ok := func(s string) *llmmock.Provider {
		return &llmmock.Provider{Reply: s}
	}
	down := func() *llmmock.Provider { return &llmmock.Provider{Err: errors.New("down")} }

	tests := []struct {
		name           string
		primary, spare *llmmock.Provider
		want           string
		wantErr        error
		wantSpareCalls int
	}{
		{name: "primary answers", primary: ok("hola"), spare: ok("spare"), want: "hola"},
		{name: "spare answers", primary: down(), spare: ok("spare"), want: "spare", wantSpareCalls: 1},
		{name: "both down", primary: down(), spare: down(), wantErr: ErrAllFailed, wantSpareCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fb := NewLLMFallback(tt.primary, "gemini", FallbackConfig{})
			fb.AddFallback("ollama", tt.spare)

			resp, err := fb.Complete(context.Background(), llm.CompletionRequest{})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil || resp.Content != tt.want {
				t.Fatalf("Complete = %+v, %v; want %q", resp, err, tt.want)
			}
			if got := len(tt.spare.Requests()); got != tt.wantSpareCalls {
				t.Errorf("spare calls = %d, want %d", got, tt.wantSpareCalls)
			}
		})
	}
}
