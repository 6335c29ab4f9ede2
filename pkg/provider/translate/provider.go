// Package translate defines the Provider interface for translation backends
// and the error taxonomy shared by all of them.
//
// A provider turns a word (optionally with its surrounding lyric line as
// context) or a whole lyric line into the learner's language. Errors are
// classified into a small set of [ErrorKind] values so callers can decide
// whether to retry, fall back, or stay silent.
//
// Implementations must be safe for concurrent use and must honour context
// cancellation promptly.
package translate

import (
	"context"
	"errors"
	"strings"
)

// Kind is the granularity of a translation request.
type Kind string

const (
	// KindWord translates a single word, optionally disambiguated by Context.
	KindWord Kind = "word"

	// KindLine translates a full lyric line.
	KindLine Kind = "line"
)

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	return k == KindWord || k == KindLine
}

// Request describes a translation lookup.
type Request struct {
	// Kind is the request granularity.
	Kind Kind

	// Text is the word or line to translate.
	Text string

	// Language is the language of Text, by name ("spanish") or code ("es").
	Language string

	// Context is the lyric line a word was taken from. Ignored for lines.
	Context string
}

// Validate checks that the request is well formed.
func (r Request) Validate() error {
	var errs []error
	if !r.Kind.IsValid() {
		errs = append(errs, errors.New("translate: kind must be \"word\" or \"line\""))
	}
	if strings.TrimSpace(r.Text) == "" {
		errs = append(errs, errors.New("translate: text must not be empty"))
	}
	if strings.TrimSpace(r.Language) == "" {
		errs = append(errs, errors.New("translate: language must not be empty"))
	}
	return errors.Join(errs...)
}

// Provider is the abstraction over any translation backend.
type Provider interface {
	// Translate returns the translation of req.Text. Errors should be, or
	// wrap, an [*Error] so that [KindOf] can classify them.
	Translate(ctx context.Context, req Request) (string, error)
}
