// Package web serves the Audiora HTTP API: word and line translation, the
// vocabulary list, pronunciation scoring, the song catalog, and the player
// WebSocket that keeps lyrics and the word popup in sync with playback.
//
// All routes under /api/ require a bearer token when a verifier is
// configured. Health and metrics endpoints are public.
package web

import (
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/audiora/audiora/internal/auth"
	"github.com/audiora/audiora/internal/catalog"
	"github.com/audiora/audiora/internal/health"
	"github.com/audiora/audiora/internal/lookup"
	"github.com/audiora/audiora/internal/observe"
	"github.com/audiora/audiora/internal/practice"
	"github.com/audiora/audiora/internal/vocab"
)

// AnonymousUser is the user id assigned to every request when the server
// runs without a token verifier.
const AnonymousUser = "local"

// Deps are the services behind the API. Lookup and Catalog are required.
// A nil Vocab disables the vocabulary routes and the popup's save action; a
// nil Practice makes the pronunciation routes answer 503.
type Deps struct {
	Lookup   *lookup.Service
	Vocab    *vocab.Service
	Practice *practice.Service
	Catalog  catalog.Store
}

// Option configures a [Server].
type Option func(*Server)

// WithVerifier requires a valid bearer token on every /api/ route.
func WithVerifier(v *auth.Verifier) Option {
	return func(s *Server) { s.verifier = v }
}

// WithMetrics sets the metrics the request middleware records to.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithOriginPatterns lists the cross-origin hosts allowed to open the player
// WebSocket. Same-origin requests are always allowed.
func WithOriginPatterns(patterns []string) Option {
	return func(s *Server) { s.origins = patterns }
}

// WithHealth mounts /healthz and /readyz from h.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetricsHandler mounts h at path, outside authentication.
func WithMetricsHandler(path string, h http.Handler) Option {
	return func(s *Server) {
		s.metricsPath = path
		s.metricsHandler = h
	}
}

// WithTimings sets the popup countdowns for player sessions.
func WithTimings(t lookup.Timings) Option {
	return func(s *Server) { s.timings.Store(&t) }
}

// Server is the HTTP front end. It is safe for concurrent use.
type Server struct {
	lookup   *lookup.Service
	vocab    *vocab.Service
	practice *practice.Service
	catalog  catalog.Store

	verifier       *auth.Verifier
	metrics        *observe.Metrics
	origins        []string
	health         *health.Handler
	metricsPath    string
	metricsHandler http.Handler

	timings atomic.Pointer[lookup.Timings]
}

// New creates a Server.
func New(deps Deps, opts ...Option) (*Server, error) {
	if deps.Lookup == nil {
		return nil, errors.New("web: lookup service must not be nil")
	}
	if deps.Catalog == nil {
		return nil, errors.New("web: catalog must not be nil")
	}
	s := &Server{
		lookup:   deps.Lookup,
		vocab:    deps.Vocab,
		practice: deps.Practice,
		catalog:  deps.Catalog,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.timings.Load() == nil {
		t := lookup.DefaultTimings()
		s.timings.Store(&t)
	}
	return s, nil
}

// SetTimings replaces the popup countdowns. Players connected afterwards use
// the new values; open players keep theirs.
func (s *Server) SetTimings(t lookup.Timings) {
	s.timings.Store(&t)
	slog.Info("web: lookup timings updated",
		"word_debounce", t.WordDebounce,
		"auto_hide", t.AutoHide,
		"grace_period", t.GracePeriod,
		"confirm_display", t.ConfirmDisplay,
	)
}

// Timings returns the countdowns new players will use.
func (s *Server) Timings() lookup.Timings {
	return *s.timings.Load()
}

// Handler returns the root handler with every route mounted.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /api/translate", s.handleTranslate)

	api.HandleFunc("POST /api/vocabulary", s.handleSaveVocabulary)
	api.HandleFunc("GET /api/vocabulary", s.handleListVocabulary)
	api.HandleFunc("GET /api/vocabulary/related", s.handleRelatedVocabulary)
	api.HandleFunc("DELETE /api/vocabulary/{id}", s.handleDeleteVocabulary)

	api.HandleFunc("POST /api/pronunciation", s.handleEvaluate)
	api.HandleFunc("GET /api/pronunciation/stats", s.handleStats)
	api.HandleFunc("GET /api/pronunciation/recent", s.handleRecent)
	api.HandleFunc("GET /api/pronunciation/reference", s.handleReference)

	api.HandleFunc("GET /api/songs", s.handleSongs)
	api.HandleFunc("GET /api/songs/{id}/lyrics", s.handleLyrics)
	api.HandleFunc("GET /api/songs/{id}/active", s.handleActiveLine)
	api.HandleFunc("GET /api/songs/{id}/play", s.handlePlayer)

	root := http.NewServeMux()
	root.Handle("/api/", s.authenticate(api))
	if s.health != nil {
		s.health.Register(root)
	}
	if s.metricsHandler != nil {
		root.Handle("GET "+s.metricsPath, s.metricsHandler)
	}
	route := func(r *http.Request) string {
		if _, p := api.Handler(r); p != "" {
			return p
		}
		if _, p := root.Handler(r); p != "" {
			return p
		}
		return "unmatched"
	}
	return observe.Middleware(s.metrics,
		observe.WithRouteLabel(route),
		observe.WithQuietPaths("/healthz", "/readyz", s.metricsPath),
	)(root)
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	if s.verifier != nil {
		return auth.Middleware(s.verifier)(next)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), AnonymousUser)))
	})
}
