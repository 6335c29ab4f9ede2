// Package llm is the chat-completion interface behind the "llm" translation
// backend. A lookup that the dedicated translation API cannot serve is
// phrased as a single prompt, so one blocking completion is all a backend
// has to offer; there is no streaming or tool use.
//
// Implementations must be safe for concurrent use.
package llm

import "context"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of the prompt.
type Message struct {
	Role    string // RoleSystem, RoleUser or RoleAssistant
	Content string
}

// Usage is the token count a backend reported for one completion. Zero
// fields mean the backend did not say.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest is one prompt. Messages must not be empty.
type CompletionRequest struct {
	// SystemPrompt, when set, is sent ahead of Messages.
	SystemPrompt string
	Messages     []Message

	// Temperature and MaxTokens keep the backend default when zero.
	Temperature float64
	MaxTokens   int
}

// CompletionResponse is the assistant's whole reply.
type CompletionResponse struct {
	Content string
	Usage   Usage
}

// Provider is a chat-completion backend.
type Provider interface {
	// Complete blocks until the reply is complete, ctx ends or the request
	// fails.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
