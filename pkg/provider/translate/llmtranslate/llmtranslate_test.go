package llmtranslate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/audiora/audiora/pkg/provider/llm/mock"
	"github.com/audiora/audiora/pkg/provider/translate"
)

func TestTranslate_Word(t *testing.T) {
	t.Parallel()

	m := &mock.Provider{Reply: "  \"heart\"\n"}
	p, err := New(m)
	if err != nil {
		t.Fatal(err)
	}

	got, err := p.Translate(context.Background(), translate.Request{
		Kind: translate.KindWord, Text: "corazón", Language: "spanish", Context: "mi corazón late",
	})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "heart" {
		t.Errorf("translation = %q, want heart", got)
	}

	reqs := m.Requests()
	if len(reqs) != 1 {
		t.Fatalf("Complete calls = %d, want 1", len(reqs))
	}
	prompt := reqs[0].Messages[0].Content
	for _, want := range []string{"corazón", "spanish", "English", "mi corazón late"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt %q does not mention %q", prompt, want)
		}
	}
	if reqs[0].SystemPrompt == "" {
		t.Error("system prompt not set")
	}
}

func TestTranslate_LineTargetLanguage(t *testing.T) {
	t.Parallel()

	m := &mock.Provider{Reply: "Ich liebe dich"}
	p, _ := New(m, WithTargetLanguage("German"))
	got, err := p.Translate(context.Background(), translate.Request{Kind: translate.KindLine, Text: "te quiero", Language: "es"})
	if err != nil || got != "Ich liebe dich" {
		t.Fatalf("Translate = %q, %v", got, err)
	}
	if prompt := m.Requests()[0].Messages[0].Content; !strings.Contains(prompt, "German") {
		t.Errorf("prompt %q does not name the target language", prompt)
	}
}

func TestTranslate_Errors(t *testing.T) {
	t.Parallel()

	t.Run("backend failure", func(t *testing.T) {
		t.Parallel()
		p, _ := New(&mock.Provider{Err: errors.New("quota")})
		_, err := p.Translate(context.Background(), translate.Request{Kind: translate.KindWord, Text: "a", Language: "es"})
		if translate.KindOf(err) != translate.ErrServer {
			t.Errorf("kind = %v, want server-error", translate.KindOf(err))
		}
	})

	t.Run("empty completion", func(t *testing.T) {
		t.Parallel()
		p, _ := New(&mock.Provider{Reply: "  "})
		_, err := p.Translate(context.Background(), translate.Request{Kind: translate.KindWord, Text: "a", Language: "es"})
		if translate.KindOf(err) != translate.ErrMalformedResponse {
			t.Errorf("kind = %v, want malformed-response", translate.KindOf(err))
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p, _ := New(&mock.Provider{Err: context.Canceled})
		_, err := p.Translate(ctx, translate.Request{Kind: translate.KindWord, Text: "a", Language: "es"})
		if !translate.IsCancelled(err) {
			t.Errorf("err = %v, want cancelled", err)
		}
	})
}

func TestClean(t *testing.T) {
	t.Parallel()

	tests := [][2]string{
		{`"heart"`, "heart"},
		{"“heart”", "heart"},
		{"«cœur»", "cœur"},
		{" heart \n", "heart"},
		{`it's`, "it's"},
		{`"`, `"`},
		{`'quoted'`, "quoted"},
	}
	for _, tc := range tests {
		in, want := tc[0], tc[1]
		if got := clean(in); got != want {
			t.Errorf("clean(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNew_NilProvider(t *testing.T) {
	t.Parallel()
	if _, err := New(nil); err == nil {
		t.Error("expected error for nil provider")
	}
}
