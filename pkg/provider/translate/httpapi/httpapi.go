// Package httpapi implements translate.Provider against the Audiora
// translation endpoint: a bearer-authenticated JSON POST that answers with
// {"translation": "..."} or {"error": "..."}.
//
// Every call is preceded by a short randomised debounce, each attempt is
// bounded by its own timeout, and rate-limited (429) or server (5xx) failures
// are retried with exponential backoff. Connectivity is checked before each
// call when a [Connectivity] probe is configured.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/audiora/audiora/pkg/provider/translate"
)

const (
	defaultAttemptTimeout = 30 * time.Second
	defaultDebounceMin    = 500 * time.Millisecond
	defaultDebounceMax    = 800 * time.Millisecond

	// maxResponseBytes bounds the response body we are willing to read.
	maxResponseBytes = 1 << 20
)

// Connectivity reports whether the network is reachable.
type Connectivity interface {
	Online(ctx context.Context) bool
}

// ConnectivityFunc adapts a function to [Connectivity].
type ConnectivityFunc func(ctx context.Context) bool

// Online implements [Connectivity].
func (f ConnectivityFunc) Online(ctx context.Context) bool { return f(ctx) }

// Option is a functional option for configuring a [Provider].
type Option func(*Provider)

// WithHTTPClient overrides the HTTP client. The client's own Timeout should
// be zero or larger than the attempt timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.client = c
	}
}

// WithAttemptTimeout sets the hard timeout of a single attempt. Default: 30s.
func WithAttemptTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.attemptTimeout = d
	}
}

// WithRetryPolicy overrides the backoff schedule. Zero fields keep their
// defaults.
func WithRetryPolicy(rp translate.RetryPolicy) Option {
	return func(p *Provider) {
		p.retry = rp
	}
}

// WithDebounce sets the randomised delay before a call is issued. The delay
// is drawn uniformly from [min, max]. Zero disables it. Default: 500–800ms.
func WithDebounce(minDelay, maxDelay time.Duration) Option {
	return func(p *Provider) {
		p.debounceMin = minDelay
		p.debounceMax = max(minDelay, maxDelay)
	}
}

// WithConnectivity installs an offline probe consulted before each call.
func WithConnectivity(c Connectivity) Option {
	return func(p *Provider) {
		p.connectivity = c
	}
}

// WithRetryHook registers a callback invoked before each retry wait.
func WithRetryHook(fn func(retry int, err error)) Option {
	return func(p *Provider) {
		p.onRetry = fn
	}
}

// Provider implements translate.Provider over HTTP.
// All methods are safe for concurrent use.
type Provider struct {
	endpoint       string
	token          string
	client         *http.Client
	attemptTimeout time.Duration
	retry          translate.RetryPolicy
	debounceMin    time.Duration
	debounceMax    time.Duration
	connectivity   Connectivity
	onRetry        func(int, error)
}

var _ translate.Provider = (*Provider)(nil)

// New creates a new Provider posting to endpoint with the given bearer
// token. endpoint must not be empty; token may be empty for unauthenticated
// development servers.
func New(endpoint, token string, opts ...Option) (*Provider, error) {
	if endpoint == "" {
		return nil, errors.New("httpapi: endpoint must not be empty")
	}
	p := &Provider{
		endpoint:       endpoint,
		token:          token,
		client:         &http.Client{},
		attemptTimeout: defaultAttemptTimeout,
		retry:          translate.DefaultRetryPolicy(),
		debounceMin:    defaultDebounceMin,
		debounceMax:    defaultDebounceMax,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// requestBody is the JSON payload sent to the endpoint. Word requests carry
// "word", line requests carry "text".
type requestBody struct {
	Type     translate.Kind `json:"type"`
	Word     string         `json:"word,omitempty"`
	Text     string         `json:"text,omitempty"`
	Context  string         `json:"context,omitempty"`
	Language string         `json:"language"`
}

// responseBody is the JSON payload returned by the endpoint.
type responseBody struct {
	Translation *string `json:"translation"`
	Error       string  `json:"error"`
}

// Translate implements translate.Provider.
func (p *Provider) Translate(ctx context.Context, req translate.Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", &translate.Error{Kind: translate.ErrClient, Err: err}
	}
	if p.connectivity != nil && !p.connectivity.Online(ctx) {
		return "", &translate.Error{Kind: translate.ErrOffline, Message: "no network connectivity"}
	}
	if err := p.debounce(ctx); err != nil {
		return "", err
	}

	body := requestBody{Type: req.Kind, Language: req.Language}
	if req.Kind == translate.KindWord {
		body.Word = req.Text
		body.Context = req.Context
	} else {
		body.Text = req.Text
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("httpapi: marshal request: %w", err)
	}

	return translate.Do(ctx, p.retry, func(ctx context.Context) (string, error) {
		return p.attempt(ctx, payload)
	}, p.onRetry)
}

// delay draws the debounce before one call from [debounceMin, debounceMax].
func (p *Provider) delay() time.Duration {
	d := p.debounceMin
	if spread := p.debounceMax - p.debounceMin; spread > 0 {
		d += rand.N(spread + 1)
	}
	return d
}

// debounce waits the drawn delay unless ctx ends first.
func (p *Provider) debounce(ctx context.Context) error {
	d := p.delay()
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return &translate.Error{Kind: translate.ErrCancelled, Err: ctx.Err()}
	case <-t.C:
		return nil
	}
}

// attempt performs one HTTP round trip bounded by the attempt timeout.
func (p *Provider) attempt(ctx context.Context, payload []byte) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, p.attemptTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", &translate.Error{Kind: translate.ErrClient, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if p.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return "", &translate.Error{Kind: translate.ErrCancelled, Err: ctx.Err()}
		case attemptCtx.Err() != nil:
			return "", &translate.Error{Kind: translate.ErrServer, Message: "attempt timed out", Err: attemptCtx.Err()}
		case translate.KindOf(err) == translate.ErrOffline:
			return "", &translate.Error{Kind: translate.ErrOffline, Err: err}
		default:
			return "", &translate.Error{Kind: translate.ErrServer, Err: err}
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctx.Err() != nil {
			return "", &translate.Error{Kind: translate.ErrCancelled, Err: ctx.Err()}
		}
		return "", &translate.Error{Kind: translate.ErrServer, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", statusError(resp, raw)
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return "", &translate.Error{
			Kind:       translate.ErrMalformedResponse,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected content type %q", resp.Header.Get("Content-Type")),
		}
	}

	var body responseBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", &translate.Error{Kind: translate.ErrMalformedResponse, StatusCode: resp.StatusCode, Err: err}
	}
	if body.Error != "" {
		return "", &translate.Error{Kind: translate.ErrClient, StatusCode: resp.StatusCode, Message: body.Error}
	}
	if body.Translation == nil {
		return "", &translate.Error{Kind: translate.ErrMalformedResponse, StatusCode: resp.StatusCode, Message: "missing translation"}
	}
	return *body.Translation, nil
}

// statusError classifies a non-2xx response.
func statusError(resp *http.Response, raw []byte) error {
	e := &translate.Error{StatusCode: resp.StatusCode}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		e.Kind = translate.ErrRateLimited
	case resp.StatusCode >= 500:
		e.Kind = translate.ErrServer
	default:
		e.Kind = translate.ErrClient
	}

	var body responseBody
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		e.Message = body.Error
	} else if s := http.StatusText(resp.StatusCode); s != "" {
		e.Message = s
	}
	if ra := resp.Header.Get("Retry-After"); ra != "" && e.Kind == translate.ErrRateLimited {
		if secs, err := strconv.Atoi(ra); err == nil {
			e.Message += fmt.Sprintf(" (retry after %ds)", secs)
		}
	}
	return e
}
