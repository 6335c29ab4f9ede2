// Package observe wires OpenTelemetry into Audiora: the metric instruments
// every service records into, tracing helpers, trace-aware logging and the
// HTTP middleware that joins them.
//
// Instruments are created against a [metric.MeterProvider]. In production
// that is the provider built by [InitProvider], which exports to Prometheus.
// Tests pass their own provider to [NewMetrics] so readings stay isolated.
package observe

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope of every Audiora instrument.
const meterName = "github.com/audiora/audiora"

// Metrics groups Audiora's instruments. The zero value is unusable; build
// one with [NewMetrics] or take [DefaultMetrics].
type Metrics struct {
	// Latencies in seconds.
	TranslateDuration     metric.Float64Histogram
	STTDuration           metric.Float64Histogram
	TTSDuration           metric.Float64Histogram
	ToolExecutionDuration metric.Float64Histogram
	HTTPRequestDuration   metric.Float64Histogram

	// PronunciationScore is bucketed at the feedback tiers.
	PronunciationScore metric.Int64Histogram

	ProviderRequests   metric.Int64Counter // provider, kind, status
	ProviderErrors     metric.Int64Counter // provider, kind
	CacheLookups       metric.Int64Counter // kind, result
	TranslateRetries   metric.Int64Counter // reason
	BreakerTransitions metric.Int64Counter // provider, to
	ToolCalls          metric.Int64Counter // tool, status

	ActiveLookupSessions metric.Int64UpDownCounter
	ActivePlayers        metric.Int64UpDownCounter
}

var (
	// latencyBuckets span a cache hit up to a translation retried to its
	// deadline.
	latencyBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

	scoreBuckets = []float64{40, 60, 75, 80, 90, 100}
)

// instruments creates instruments on one meter and keeps every error.
type instruments struct {
	meter metric.Meter
	err   error
}

func (in *instruments) seconds(name, desc string, buckets ...float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{metric.WithDescription(desc), metric.WithUnit("s")}
	if len(buckets) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(buckets...))
	}
	h, err := in.meter.Float64Histogram(name, opts...)
	in.err = errors.Join(in.err, err)
	return h
}

func (in *instruments) counter(name, desc string) metric.Int64Counter {
	c, err := in.meter.Int64Counter(name, metric.WithDescription(desc))
	in.err = errors.Join(in.err, err)
	return c
}

func (in *instruments) gauge(name, desc string) metric.Int64UpDownCounter {
	g, err := in.meter.Int64UpDownCounter(name, metric.WithDescription(desc))
	in.err = errors.Join(in.err, err)
	return g
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	in := &instruments{meter: mp.Meter(meterName)}

	score, err := in.meter.Int64Histogram("audiora.pronunciation.score",
		metric.WithDescription("Pronunciation accuracy scores by language."),
		metric.WithExplicitBucketBoundaries(scoreBuckets...))
	in.err = errors.Join(in.err, err)

	m := &Metrics{
		TranslateDuration:     in.seconds("audiora.translate.duration", "Latency of translation lookups.", latencyBuckets...),
		STTDuration:           in.seconds("audiora.stt.duration", "Latency of speech-to-text transcription.", latencyBuckets...),
		TTSDuration:           in.seconds("audiora.tts.duration", "Latency of reference audio synthesis.", latencyBuckets...),
		ToolExecutionDuration: in.seconds("audiora.tool_execution.duration", "Latency of MCP tool calls.", latencyBuckets...),
		HTTPRequestDuration:   in.seconds("audiora.http.request.duration", "HTTP request latency by method, route and status."),
		PronunciationScore:    score,

		ProviderRequests:   in.counter("audiora.provider.requests", "Provider calls by provider, kind and status."),
		ProviderErrors:     in.counter("audiora.provider.errors", "Provider errors by provider and error kind."),
		CacheLookups:       in.counter("audiora.translate.cache.lookups", "Translation cache lookups by kind and result."),
		TranslateRetries:   in.counter("audiora.translate.retries", "Retried translation attempts by reason."),
		BreakerTransitions: in.counter("audiora.provider.breaker.transitions", "Circuit breaker transitions by provider and new state."),
		ToolCalls:          in.counter("audiora.tool.calls", "MCP tool calls by tool and status."),

		ActiveLookupSessions: in.gauge("audiora.lookup.active_sessions", "Open word lookup sessions."),
		ActivePlayers:        in.gauge("audiora.player.active", "Connected player WebSockets."),
	}
	if in.err != nil {
		return nil, fmt.Errorf("observe: create instruments: %w", in.err)
	}
	return m, nil
}

var defaultMetrics = sync.OnceValue(func() *Metrics {
	m, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		panic(err)
	}
	return m
})

// DefaultMetrics returns the process-wide instance on the global meter
// provider. Instruments created before [InitProvider] installs its provider
// are forwarded to it by the otel global delegate.
func DefaultMetrics() *Metrics { return defaultMetrics() }

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue { return attribute.String(key, value) }

func attrs(kv ...string) metric.MeasurementOption {
	set := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		set = append(set, attribute.String(kv[i], kv[i+1]))
	}
	return metric.WithAttributes(set...)
}

// RecordProviderRequest counts one provider call.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1, attrs("provider", provider, "kind", kind, "status", status))
}

// RecordProviderError counts one provider error of the given kind.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1, attrs("provider", provider, "kind", kind))
}

// RecordCacheLookup counts a translation cache hit or miss.
func (m *Metrics) RecordCacheLookup(ctx context.Context, kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.Add(ctx, 1, attrs("kind", kind, "result", result))
}

func (m *Metrics) RecordRetry(ctx context.Context, reason string) {
	m.TranslateRetries.Add(ctx, 1, attrs("reason", reason))
}

// RecordBreakerTransition counts a breaker entering state to.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, provider, to string) {
	m.BreakerTransitions.Add(ctx, 1, attrs("provider", provider, "to", to))
}

func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1, attrs("tool", tool, "status", status))
}

func (m *Metrics) RecordScore(ctx context.Context, language string, score int) {
	m.PronunciationScore.Record(ctx, int64(score), attrs("language", language))
}
