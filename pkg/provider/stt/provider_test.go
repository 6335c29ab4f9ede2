package stt

import "testing"

func TestLanguageCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"spanish", "es"},
		{"Japanese", "ja"},
		{" mandarin ", "zh"},
		{"es-MX", "es"},
		{"pt_BR", "pt"},
		{"de", "de"},
		{"", ""},
		{"klingon", "klingon"},
	}
	for _, tt := range tests {
		if got := LanguageCode(tt.in); got != tt.want {
			t.Errorf("LanguageCode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConfidence(t *testing.T) {
	t.Parallel()

	c := Confidence(0.75)
	if c == nil || *c != 0.75 {
		t.Fatalf("Confidence(0.75) = %v", c)
	}
	if Confidence(0.5) == Confidence(0.5) {
		t.Error("Confidence returned a shared pointer")
	}
}
