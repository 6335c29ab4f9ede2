// Package mock is a scripted llm.Provider for tests.
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/audiora/audiora/pkg/provider/llm"
)

// Provider answers every completion with Reply, or fails with Err. Func,
// when set, takes over entirely.
type Provider struct {
	Reply string
	Usage llm.Usage
	Err   error
	Func  func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error)

	mu   sync.Mutex
	reqs []llm.CompletionRequest
}

var _ llm.Provider = (*Provider)(nil)

func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.reqs = append(p.reqs, req)
	p.mu.Unlock()

	switch {
	case p.Func != nil:
		return p.Func(ctx, req)
	case p.Err != nil:
		return nil, p.Err
	}
	return &llm.CompletionResponse{Content: p.Reply, Usage: p.Usage}, nil
}

// Requests returns the completion requests received so far.
func (p *Provider) Requests() []llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.reqs)
}
