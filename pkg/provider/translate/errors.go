package translate

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies translation failures.
type ErrorKind int

const (
	// ErrUnknown is any failure that fits no other kind.
	ErrUnknown ErrorKind = iota

	// ErrOffline means no network connectivity. Never retried.
	ErrOffline

	// ErrRateLimited is HTTP 429. Retried with backoff.
	ErrRateLimited

	// ErrServer is HTTP 5xx or a per-attempt timeout. Retried with backoff.
	ErrServer

	// ErrClient is any other non-2xx response. Never retried.
	ErrClient

	// ErrMalformedResponse is a 2xx response with the wrong content type or
	// an unparseable body. Never retried.
	ErrMalformedResponse

	// ErrCancelled means the caller abandoned the request. Never shown to the
	// user.
	ErrCancelled
)

// String returns the kind in kebab-case.
func (k ErrorKind) String() string {
	switch k {
	case ErrOffline:
		return "offline"
	case ErrRateLimited:
		return "rate-limited"
	case ErrServer:
		return "server-error"
	case ErrClient:
		return "client-error"
	case ErrMalformedResponse:
		return "malformed-response"
	case ErrCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Retryable reports whether failures of this kind are retried with backoff.
func (k ErrorKind) Retryable() bool {
	return k == ErrRateLimited || k == ErrServer
}

// Error is a classified translation failure.
type Error struct {
	// Kind is the failure class.
	Kind ErrorKind

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Message is the server-supplied error text, if any.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements error.
func (e *Error) Error() string {
	msg := "translate: " + e.Kind.String()
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// KindOf classifies err. A nil error has kind [ErrUnknown].
//
// Classification order: context cancellation, an [*Error] in the chain,
// network dial and DNS failures (offline), deadline expiry (server), and
// finally [ErrUnknown].
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrUnknown
	}
	if errors.Is(err, context.Canceled) {
		return ErrCancelled
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrOffline
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return ErrOffline
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrServer
	}
	return ErrUnknown
}

// IsCancelled reports whether err is a cancellation that must be silently
// dropped.
func IsCancelled(err error) bool {
	return KindOf(err) == ErrCancelled
}
