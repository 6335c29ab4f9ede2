// Package health serves the liveness and readiness probes.
//
// GET /healthz answers 200 while the process runs. GET /readyz runs every
// registered [Checker] and answers 503 when a required one fails. Optional
// checkers only downgrade the status to "degraded": lyrics keep playing
// while a translation backend is down. Readiness results are cached briefly
// so frequent probes do not hammer the backends.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status values reported in the "status" field.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusFail     = "fail"
)

// Defaults for [New].
const (
	DefaultCheckTimeout = 5 * time.Second
	DefaultCacheTTL     = 2 * time.Second
)

// Checker probes one dependency.
type Checker struct {
	// Name keys the check in the response.
	Name string

	// Check returns nil while the dependency is usable. It must honour ctx.
	Check func(ctx context.Context) error

	// Optional checkers degrade readiness instead of failing it.
	Optional bool
}

// Report is the JSON body of both endpoints.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Option configures a [Handler].
type Option func(*Handler)

// WithCheckers registers readiness checkers.
func WithCheckers(c ...Checker) Option {
	return func(h *Handler) { h.checkers = append(h.checkers, c...) }
}

// WithCheckTimeout bounds each checker run.
func WithCheckTimeout(d time.Duration) Option {
	return func(h *Handler) { h.timeout = d }
}

// WithCacheTTL reuses a readiness report for d. Zero disables caching.
func WithCacheTTL(d time.Duration) Option {
	return func(h *Handler) { h.ttl = d }
}

// Handler serves the probe endpoints. The checker list is fixed by [New].
type Handler struct {
	checkers []Checker
	timeout  time.Duration
	ttl      time.Duration
	now      func() time.Time

	mu       sync.Mutex
	cached   Report
	cachedAt time.Time
}

// New returns a Handler with the given options.
func New(opts ...Option) *Handler {
	h := &Handler{timeout: DefaultCheckTimeout, ttl: DefaultCacheTTL, now: time.Now}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Register mounts GET /healthz and GET /readyz on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// Healthz always reports ok.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Report{Status: StatusOK})
}

// Readyz reports the result of [Handler.Check].
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	rep := h.Check(r.Context())
	code := http.StatusOK
	if rep.Status == StatusFail {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, rep)
}

// Check runs every checker concurrently, or returns the cached report when
// it is younger than the cache TTL.
func (h *Handler) Check(ctx context.Context) Report {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ttl > 0 && !h.cachedAt.IsZero() && h.now().Sub(h.cachedAt) < h.ttl {
		return h.cached
	}

	errs := make([]error, len(h.checkers))
	var g errgroup.Group
	for i, c := range h.checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, h.timeout)
			defer cancel()
			errs[i] = c.Check(cctx)
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{Status: StatusOK, Checks: make(map[string]string, len(h.checkers))}
	for i, c := range h.checkers {
		if errs[i] == nil {
			rep.Checks[c.Name] = StatusOK
			continue
		}
		rep.Checks[c.Name] = StatusFail + ": " + errs[i].Error()
		if !c.Optional {
			rep.Status = StatusFail
		} else if rep.Status == StatusOK {
			rep.Status = StatusDegraded
		}
	}

	// A cancelled request says nothing about the dependencies.
	if ctx.Err() == nil {
		h.cached, h.cachedAt = rep, h.now()
	}
	return rep
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping returns a required checker that pings p.
func Ping(name string, p Pinger) Checker {
	return Checker{Name: name, Check: p.Ping}
}

// Probe reports whether an HTTP endpoint answers at all: any status below
// 500 counts. The translation client uses one as its connectivity check.
type Probe struct {
	url    string
	client *http.Client
}

// NewProbe returns a Probe for url. A nil client gets a 3s timeout.
func NewProbe(url string, client *http.Client) *Probe {
	if client == nil {
		client = &http.Client{Timeout: 3 * time.Second}
	}
	return &Probe{url: url, client: client}
}

// Check sends HEAD to the endpoint.
func (p *Probe) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return fmt.Errorf("health: %s: %w", p.url, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("health: %s unreachable: %w", p.url, err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("health: %s answered %s", p.url, resp.Status)
	}
	return nil
}

// Online reports whether Check succeeds.
func (p *Probe) Online(ctx context.Context) bool { return p.Check(ctx) == nil }

// Checker wraps p in an optional checker.
func (p *Probe) Checker(name string) Checker {
	return Checker{Name: name, Check: p.Check, Optional: true}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
