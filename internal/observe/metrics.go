// Package observe provides application-wide observability primitives for
// codevox: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all codevox metrics.
const meterName = "github.com/MrWong99/codevox"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// FormatDuration tracks the time spent formatting one transcript.
	FormatDuration metric.Float64Histogram

	// ClassifyDuration tracks identifier discovery latency.
	ClassifyDuration metric.Float64Histogram

	// Replacements counts accepted identifier spans. Use with attribute:
	//   attribute.String("source", "literal"|"window")
	Replacements metric.Int64Counter

	// MatchAttempts counts matcher calls. Use with attribute:
	//   attribute.String("kind", "exact"|"fuzzy"|"phonetic"|"none")
	MatchAttempts metric.Int64Counter

	// ContextCaptures counts context lookups. Use with attribute:
	//   attribute.String("status", "hit"|"miss"|"unchanged"|"error")
	ContextCaptures metric.Int64Counter

	// ContextIdentifiers reports the size of the last captured identifier set.
	ContextIdentifiers metric.Int64Gauge

	// ConfigReloads counts configuration reloads. Use with attribute:
	//   attribute.String("status", "ok"|"error")
	ConfigReloads metric.Int64Counter

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...),
	//   attribute.String("status", "2xx"|"4xx"|"5xx")
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// in-process text transforms.
var latencyBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FormatDuration, err = m.Float64Histogram("codevox.format.duration",
		metric.WithDescription("Latency of formatting one transcript."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ClassifyDuration, err = m.Float64Histogram("codevox.classify.duration",
		metric.WithDescription("Latency of identifier discovery in free text."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Replacements, err = m.Int64Counter("codevox.format.replacements",
		metric.WithDescription("Total identifier spans rewritten by source."),
	); err != nil {
		return nil, err
	}
	if met.MatchAttempts, err = m.Int64Counter("codevox.match.attempts",
		metric.WithDescription("Total phrase match attempts by result kind."),
	); err != nil {
		return nil, err
	}
	if met.ContextCaptures, err = m.Int64Counter("codevox.context.captures",
		metric.WithDescription("Total context identifier lookups by status."),
	); err != nil {
		return nil, err
	}
	if met.ContextIdentifiers, err = m.Int64Gauge("codevox.context.identifiers",
		metric.WithDescription("Number of identifiers in the last captured context."),
	); err != nil {
		return nil, err
	}
	if met.ConfigReloads, err = m.Int64Counter("codevox.config.reloads",
		metric.WithDescription("Total configuration reloads by status."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("codevox.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordReplacement records one accepted span found by the given pass.
func (m *Metrics) RecordReplacement(ctx context.Context, source string) {
	m.Replacements.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordMatch records a matcher call. kind is "none" when nothing matched.
func (m *Metrics) RecordMatch(ctx context.Context, kind string) {
	m.MatchAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordContextCapture records a context lookup outcome.
func (m *Metrics) RecordContextCapture(ctx context.Context, status string) {
	m.ContextCaptures.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordConfigReload records a configuration reload outcome.
func (m *Metrics) RecordConfigReload(ctx context.Context, status string) {
	m.ConfigReloads.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
