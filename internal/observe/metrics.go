// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics, tracing helpers, structured logging, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
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

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/keybeam/keybeam"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// SessionDuration tracks the wall-clock length of streaming sessions.
	SessionDuration metric.Float64Histogram

	// ExtractionDuration tracks keyterm generation latency. Use with
	// attribute:
	//   attribute.String("operation", "extract"|"refresh")
	ExtractionDuration metric.Float64Histogram

	// --- Counters ---

	// TurnsFinalized counts finalized turns. Use with attribute:
	//   attribute.Bool("boosted", ...)
	TurnsFinalized metric.Int64Counter

	// VocabularyUpdates counts mid-session keyterm pushes. Use with
	// attributes:
	//   attribute.String("operation", ...), attribute.String("status", ...)
	VocabularyUpdates metric.Int64Counter

	// --- Error counters ---

	// ExtractionErrors counts failed keyterm generations. Use with attribute:
	//   attribute.String("operation", ...)
	ExtractionErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live streaming sessions.
	ActiveSessions metric.Int64UpDownCounter

	// VocabularySize reports the size of the most recently applied keyterm
	// set.
	VocabularySize metric.Int64Gauge

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// extractionBuckets defines histogram bucket boundaries (in seconds) for LLM
// keyterm generation latencies.
var extractionBuckets = []float64{
	0.25, 0.5, 1, 2.5, 5, 10, 20, 30,
}

// sessionBuckets defines histogram bucket boundaries (in seconds) for
// streaming session lifetimes.
var sessionBuckets = []float64{
	5, 15, 30, 60, 120, 300, 600, 1800,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.SessionDuration, err = m.Float64Histogram("keybeam.session.duration",
		metric.WithDescription("Wall-clock length of streaming recognition sessions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(sessionBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ExtractionDuration, err = m.Float64Histogram("keybeam.extraction.duration",
		metric.WithDescription("Latency of LLM keyterm generation by operation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(extractionBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.TurnsFinalized, err = m.Int64Counter("keybeam.turns.finalized",
		metric.WithDescription("Total finalized turns by boosted flag."),
	); err != nil {
		return nil, err
	}
	if met.VocabularyUpdates, err = m.Int64Counter("keybeam.vocabulary.updates",
		metric.WithDescription("Total mid-session keyterm pushes by operation and status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ExtractionErrors, err = m.Int64Counter("keybeam.extraction.errors",
		metric.WithDescription("Total failed keyterm generations by operation."),
	); err != nil {
		return nil, err
	}

	// Gauges.
	if met.ActiveSessions, err = m.Int64UpDownCounter("keybeam.active_sessions",
		metric.WithDescription("Number of live streaming sessions."),
	); err != nil {
		return nil, err
	}
	if met.VocabularySize, err = m.Int64Gauge("keybeam.vocabulary.size",
		metric.WithDescription("Size of the most recently applied keyterm set."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("keybeam.http.request.duration",
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

// RecordTurn records a finalized turn.
func (m *Metrics) RecordTurn(ctx context.Context, boosted bool) {
	m.TurnsFinalized.Add(ctx, 1,
		metric.WithAttributes(attribute.Bool("boosted", boosted)),
	)
}

// RecordExtraction records the latency of one keyterm generation and, when it
// failed, the corresponding error counter. operation is "extract" or
// "refresh".
func (m *Metrics) RecordExtraction(ctx context.Context, operation string, seconds float64, failed bool) {
	attrs := metric.WithAttributes(attribute.String("operation", operation))
	m.ExtractionDuration.Record(ctx, seconds, attrs)
	if failed {
		m.ExtractionErrors.Add(ctx, 1, attrs)
	}
}

// RecordVocabularyUpdate records a keyterm push with the standard attribute
// set and updates the size gauge.
func (m *Metrics) RecordVocabularyUpdate(ctx context.Context, operation, status string, size int) {
	m.VocabularyUpdates.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("status", status),
		),
	)
	m.VocabularySize.Record(ctx, int64(size))
}
