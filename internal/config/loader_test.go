package config_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/audiora/audiora/internal/config"
)

func TestValidate_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{
			name:    "invalid log level",
			yaml:    "server:\n  log_level: verbose\n",
			wantMsg: "server.log_level",
		},
		{
			name:    "tls without key",
			yaml:    "server:\n  tls:\n    cert_file: cert.pem\n",
			wantMsg: "server.tls",
		},
		{
			name:    "metrics path without slash",
			yaml:    "server:\n  metrics_path: metrics\n",
			wantMsg: "server.metrics_path",
		},
		{
			name:    "sample ratio above one",
			yaml:    "server:\n  trace_sample_ratio: 1.5\n",
			wantMsg: "server.trace_sample_ratio",
		},
		{
			name:    "short jwt secret",
			yaml:    "auth:\n  jwt_secret: short\n",
			wantMsg: "auth.jwt_secret",
		},
		{
			name:    "negative leeway",
			yaml:    "auth:\n  leeway: -1s\n",
			wantMsg: "auth.leeway",
		},
		{
			name:    "llm translation without llm provider",
			yaml:    "providers:\n  translate:\n    name: llm\n",
			wantMsg: "providers.llm is not configured",
		},
		{
			name:    "llm fallback without llm provider",
			yaml:    "providers:\n  translate:\n    name: httpapi\n    base_url: http://x\n    fallbacks:\n      - name: llm\n",
			wantMsg: "providers.llm is not configured",
		},
		{
			name:    "httpapi without base url",
			yaml:    "providers:\n  translate:\n    name: httpapi\n",
			wantMsg: "providers.translate.base_url",
		},
		{
			name:    "negative auto hide",
			yaml:    "lookup:\n  auto_hide: -2s\n",
			wantMsg: "lookup.auto_hide",
		},
		{
			name:    "api debounce inverted",
			yaml:    "lookup:\n  api_debounce_min: 500ms\n  api_debounce_max: 100ms\n",
			wantMsg: "lookup.api_debounce_max",
		},
		{
			name:    "retry factor below one",
			yaml:    "lookup:\n  retry:\n    factor: 0.5\n",
			wantMsg: "lookup.retry.factor",
		},
		{
			name:    "word match ratio above one",
			yaml:    "scoring:\n  word_match_ratio: 1.5\n",
			wantMsg: "scoring.word_match_ratio",
		},
		{
			name:    "char fallback cap out of range",
			yaml:    "scoring:\n  char_fallback_cap: 120\n",
			wantMsg: "scoring.char_fallback_cap",
		},
		{
			name:    "poor audio confidence out of range",
			yaml:    "scoring:\n  poor_audio_confidence: 2\n",
			wantMsg: "scoring.poor_audio_confidence",
		},
		{
			name:    "negative silence rms",
			yaml:    "scoring:\n  silence_rms: -1\n",
			wantMsg: "scoring.silence_rms",
		},
		{
			name:    "elevenlabs voice without id",
			yaml:    "providers:\n  tts:\n    name: elevenlabs\nvoices:\n  es:\n    name: Lucia\n",
			wantMsg: "voices.es.voice_id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error should mention %q, got: %v", tt.wantMsg, err)
			}
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
scoring:
  low_confidence: 3
  word_match_scale: 150
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	msg := err.Error()
	for _, want := range []string{"server.log_level", "scoring.low_confidence", "scoring.word_match_scale"} {
		if !strings.Contains(msg, want) {
			t.Errorf("joined error should mention %q, got: %v", want, msg)
		}
	}
}

func TestValidate_LLMTranslationWithProviderIsValid(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  translate:
    name: llm
  llm:
    name: openai
    api_key: sk-test
lookup:
  target_language: english
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_UnknownProviderNameOnlyWarns(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  stt:
    name: homegrown
  tts:
    name: piper
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err != nil {
		t.Fatalf("unknown provider names should not fail validation: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	for _, kind := range []string{"translate", "llm", "stt", "tts", "embeddings"} {
		names, ok := config.ValidProviderNames[kind]
		if !ok || len(names) == 0 {
			t.Errorf("ValidProviderNames[%q] is empty", kind)
		}
	}
	if !slices.Contains(config.ValidProviderNames["stt"], "whisper-native") {
		t.Error("stt names should include whisper-native")
	}
	if !slices.Contains(config.ValidProviderNames["translate"], "httpapi") {
		t.Error("translate names should include httpapi")
	}
}
