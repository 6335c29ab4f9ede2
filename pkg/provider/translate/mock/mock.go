// Package mock provides a test double for the translate.Provider interface.
//
// Example:
//
//	p := &mock.Provider{Translations: map[string]string{"hola": "hello"}}
//	got, err := p.Translate(ctx, translate.Request{Kind: translate.KindWord, Text: "hola", Language: "es"})
package mock

import (
	"context"
	"sync"

	"github.com/audiora/audiora/pkg/provider/translate"
)

// Call records a single invocation of Translate.
type Call struct {
	// Ctx is the context passed to Translate.
	Ctx context.Context
	// Req is the request passed to Translate.
	Req translate.Request
}

// Provider is a mock implementation of translate.Provider.
//
// Resolution order: TranslateFunc, then Err, then Translations[req.Text],
// then Default.
type Provider struct {
	mu sync.Mutex

	// Translations maps request text to its translation.
	Translations map[string]string

	// Default is returned for text missing from Translations.
	Default string

	// Err, if non-nil, is returned from every call.
	Err error

	// TranslateFunc, if set, handles every call.
	TranslateFunc func(ctx context.Context, req translate.Request) (string, error)

	// TranslateCalls records every call in order.
	TranslateCalls []Call
}

var _ translate.Provider = (*Provider)(nil)

// Translate implements translate.Provider.
func (p *Provider) Translate(ctx context.Context, req translate.Request) (string, error) {
	p.mu.Lock()
	p.TranslateCalls = append(p.TranslateCalls, Call{Ctx: ctx, Req: req})
	fn, err := p.TranslateFunc, p.Err
	out, ok := p.Translations[req.Text]
	if !ok {
		out = p.Default
	}
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return "", err
	}
	return out, nil
}

// CallCount returns the number of Translate calls so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranslateCalls)
}
