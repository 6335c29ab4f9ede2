package anyllm

import (
	"slices"
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/audiora/audiora/pkg/provider/llm"
)

func TestParams(t *testing.T) {
	t.Parallel()
	p := &Provider{model: "gemini-2.0-flash"}
	tests := []struct {
		name      string
		req       llm.CompletionRequest
		wantRoles []string
		wantTemp  *float64
		wantMax   *int
	}{
		{
			name: "system prompt first",
			req: llm.CompletionRequest{
				SystemPrompt: "Translate to English.",
				Messages:     []llm.Message{{Role: llm.RoleUser, Content: "hola"}},
			},
			wantRoles: []string{anyllmlib.RoleSystem, llm.RoleUser},
		},
		{
			name:      "no system prompt",
			req:       llm.CompletionRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "hola"}}},
			wantRoles: []string{llm.RoleUser},
		},
		{
			name:      "sampling settings",
			req:       llm.CompletionRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "hola"}}, Temperature: 0.2, MaxTokens: 64},
			wantRoles: []string{llm.RoleUser},
			wantTemp:  ptr(0.2),
			wantMax:   ptr(64),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			params := p.params(tt.req)
			if params.Model != "gemini-2.0-flash" {
				t.Errorf("Model = %q", params.Model)
			}
			var roles []string
			for _, m := range params.Messages {
				roles = append(roles, m.Role)
			}
			if !slices.Equal(roles, tt.wantRoles) {
				t.Errorf("roles = %v, want %v", roles, tt.wantRoles)
			}
			if got := params.Messages[len(params.Messages)-1].ContentString(); got != "hola" {
				t.Errorf("last content = %q, want hola", got)
			}
			if (params.Temperature == nil) != (tt.wantTemp == nil) || (tt.wantTemp != nil && *params.Temperature != *tt.wantTemp) {
				t.Errorf("Temperature = %v, want %v", params.Temperature, tt.wantTemp)
			}
			if (params.MaxTokens == nil) != (tt.wantMax == nil) || (tt.wantMax != nil && *params.MaxTokens != *tt.wantMax) {
				t.Errorf("MaxTokens = %v, want %v", params.MaxTokens, tt.wantMax)
			}
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestNew(t *testing.T) {
	t.Parallel()
	tests := []struct {
		backend, model string
		wantErr        bool
	}{
		{backend: "openai", model: "gpt-4o-mini"},
		{backend: " OpenAI ", model: "gpt-4o-mini"},
		{backend: "openai", wantErr: true},
		{backend: "", model: "m", wantErr: true},
		{backend: "nonexistent", model: "m", wantErr: true},
	}
	for _, tt := range tests {
		p, err := New(tt.backend, tt.model, anyllmlib.WithAPIKey("sk-test"))
		if (err != nil) != tt.wantErr {
			t.Errorf("New(%q, %q) err = %v, wantErr %v", tt.backend, tt.model, err, tt.wantErr)
			continue
		}
		if err == nil && (p.name != "openai" || p.model != tt.model) {
			t.Errorf("New(%q) = %s/%s", tt.backend, p.name, p.model)
		}
	}
}

func TestBackends(t *testing.T) {
	t.Parallel()
	got := Backends()
	if !slices.IsSorted(got) || !slices.Contains(got, "ollama") || len(got) != len(constructors) {
		t.Errorf("Backends() = %v", got)
	}
}
