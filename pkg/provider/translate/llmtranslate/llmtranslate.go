// Package llmtranslate implements translate.Provider by prompting an LLM.
//
// It is used as the fallback translator when the primary endpoint is down.
// The model is asked for the bare translation only; surrounding quotes and
// whitespace are trimmed from the reply.
package llmtranslate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/audiora/audiora/pkg/provider/llm"
	"github.com/audiora/audiora/pkg/provider/translate"
)

const (
	defaultTargetLanguage = "English"
	defaultMaxTokens      = 256
)

const systemPrompt = `You are a translation engine for language learners reading song lyrics.
Reply with the translation only: no quotes, no notes, no transliteration.`

// Option is a functional option for configuring a [Provider].
type Option func(*Provider)

// WithTargetLanguage sets the language translations are produced in.
// Default: English.
func WithTargetLanguage(lang string) Option {
	return func(p *Provider) {
		p.target = lang
	}
}

// Provider implements translate.Provider over an [llm.Provider].
type Provider struct {
	llm    llm.Provider
	target string
}

var _ translate.Provider = (*Provider)(nil)

// New creates a Provider using model for completions.
func New(model llm.Provider, opts ...Option) (*Provider, error) {
	if model == nil {
		return nil, errors.New("llmtranslate: llm provider must not be nil")
	}
	p := &Provider{llm: model, target: defaultTargetLanguage}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Translate implements translate.Provider.
func (p *Provider) Translate(ctx context.Context, req translate.Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", &translate.Error{Kind: translate.ErrClient, Err: err}
	}

	resp, err := p.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: p.prompt(req)}},
		MaxTokens:    defaultMaxTokens,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", &translate.Error{Kind: translate.ErrCancelled, Err: ctx.Err()}
		}
		return "", &translate.Error{Kind: translate.ErrServer, Err: fmt.Errorf("llmtranslate: %w", err)}
	}

	out := clean(resp.Content)
	if out == "" {
		return "", &translate.Error{Kind: translate.ErrMalformedResponse, Message: "empty completion"}
	}
	return out, nil
}

func (p *Provider) prompt(req translate.Request) string {
	var b strings.Builder
	if req.Kind == translate.KindWord {
		fmt.Fprintf(&b, "Translate the %s word %q into %s.", req.Language, req.Text, p.target)
		if req.Context != "" {
			fmt.Fprintf(&b, " It appears in the lyric line %q; translate it as used there.", req.Context)
		}
	} else {
		fmt.Fprintf(&b, "Translate this %s lyric line into %s: %q", req.Language, p.target, req.Text)
	}
	return b.String()
}

// quotePairs are the opening and closing quotes models wrap replies in.
var quotePairs = [][2]string{{`"`, `"`}, {`'`, `'`}, {"“", "”"}, {"«", "»"}}

// clean strips whitespace and one layer of matching quotes.
func clean(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range quotePairs {
		open, closing := q[0], q[1]
		if len(s) >= len(open)+len(closing) && strings.HasPrefix(s, open) && strings.HasSuffix(s, closing) {
			return strings.TrimSpace(s[len(open) : len(s)-len(closing)])
		}
	}
	return s
}
