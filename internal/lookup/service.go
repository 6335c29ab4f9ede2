// Package lookup implements on-demand word and line translation: a
// process-wide translation cache, the [Service] that fronts a
// translate.Provider with it, and the [Session] state machine behind the
// word-lookup popup.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/audiora/audiora/internal/observe"
	"github.com/audiora/audiora/pkg/provider/translate"
	"go.opentelemetry.io/otel/metric"
)

// Result is a resolved translation.
type Result struct {
	Text string `json:"translation"`
	// Cached is true when no provider call was made.
	Cached bool `json:"cached"`
}

// Option configures a [Service].
type Option func(*Service)

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithProviderName sets the provider label used in metrics.
func WithProviderName(name string) Option {
	return func(s *Service) { s.providerName = name }
}

// Service resolves translations through the cache and a provider.
// Safe for concurrent use.
type Service struct {
	cache        *Cache
	provider     translate.Provider
	metrics      *observe.Metrics
	providerName string
}

// NewService creates a Service. A nil cache gets a fresh one.
func NewService(provider translate.Provider, cache *Cache, opts ...Option) (*Service, error) {
	if provider == nil {
		return nil, errors.New("lookup: provider must not be nil")
	}
	if cache == nil {
		cache = NewCache()
	}
	s := &Service{cache: cache, provider: provider, providerName: "translate"}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s, nil
}

// Cache returns the service's cache.
func (s *Service) Cache() *Cache { return s.cache }

// Cached returns the cached translation for req without calling the provider.
func (s *Service) Cached(req translate.Request) (string, bool) {
	return s.cache.Get(req.Kind, req.Text, req.Language)
}

// Lookup returns the translation for req. A cache hit returns immediately;
// a miss calls the provider and caches a successful result. Failures are
// never cached. Provider errors keep their *translate.Error chain.
func (s *Service) Lookup(ctx context.Context, req translate.Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, fmt.Errorf("lookup: %w", err)
	}

	if text, ok := s.Cached(req); ok {
		s.metrics.RecordCacheLookup(ctx, string(req.Kind), true)
		return Result{Text: text, Cached: true}, nil
	}
	s.metrics.RecordCacheLookup(ctx, string(req.Kind), false)

	start := time.Now()
	text, err := s.provider.Translate(ctx, req)
	s.metrics.TranslateDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("kind", string(req.Kind))))
	if err != nil {
		kind := translate.KindOf(err)
		if kind != translate.ErrCancelled {
			s.metrics.RecordProviderRequest(ctx, s.providerName, string(req.Kind), "error")
			s.metrics.RecordProviderError(ctx, s.providerName, kind.String())
			slog.Warn("lookup: translation failed",
				"kind", req.Kind,
				"language", req.Language,
				"error_kind", kind.String(),
				"err", err,
			)
		}
		return Result{}, fmt.Errorf("lookup: translate %s: %w", req.Kind, err)
	}
	s.metrics.RecordProviderRequest(ctx, s.providerName, string(req.Kind), "ok")

	s.cache.Set(req.Kind, req.Text, req.Language, text)
	return Result{Text: text}, nil
}
