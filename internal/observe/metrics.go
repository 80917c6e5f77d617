// Package observe provides application-wide observability primitives for
// Assessly: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
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
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Assessly metrics.
const meterName = "github.com/assessly-ai/assessly"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// EvaluationDuration tracks transcript evaluation latency, from the
	// moment a session stops until the structured result is parsed.
	EvaluationDuration metric.Float64Histogram

	// RelayDuration tracks report delivery latency (summary plus document).
	RelayDuration metric.Float64Histogram

	// PlaybackScheduled tracks the audio duration of each reply chunk
	// scheduled for playback.
	PlaybackScheduled metric.Float64Histogram

	// --- Counters ---

	// SessionsStarted counts interview sessions that reached the live state.
	SessionsStarted metric.Int64Counter

	// SessionsEnded counts finished sessions. Use with attributes:
	//   attribute.String("trigger", ...), attribute.String("outcome", ...)
	SessionsEnded metric.Int64Counter

	// AudioChunks counts capture audio chunks forwarded upstream. Use with
	// attribute: attribute.String("status", "sent"|"dropped")
	AudioChunks metric.Int64Counter

	// SnapshotsSent counts camera snapshots forwarded upstream.
	SnapshotsSent metric.Int64Counter

	// Interruptions counts candidate barge-ins that silenced queued replies.
	Interruptions metric.Int64Counter

	// RelayDeliveries counts report delivery attempts. Use with attribute:
	//   attribute.String("status", "ok"|"error")
	RelayDeliveries metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts upstream provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of currently live interview sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("route", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for realtime-session latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.EvaluationDuration, err = m.Float64Histogram("assessly.evaluation.duration",
		metric.WithDescription("Latency of transcript evaluation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RelayDuration, err = m.Float64Histogram("assessly.relay.duration",
		metric.WithDescription("Latency of report delivery."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PlaybackScheduled, err = m.Float64Histogram("assessly.playback.scheduled",
		metric.WithDescription("Audio duration of reply chunks scheduled for playback."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.SessionsStarted, err = m.Int64Counter("assessly.sessions.started",
		metric.WithDescription("Total interview sessions that went live."),
	); err != nil {
		return nil, err
	}
	if met.SessionsEnded, err = m.Int64Counter("assessly.sessions.ended",
		metric.WithDescription("Total finished sessions by trigger and outcome."),
	); err != nil {
		return nil, err
	}
	if met.AudioChunks, err = m.Int64Counter("assessly.audio.chunks",
		metric.WithDescription("Total capture audio chunks by forwarding status."),
	); err != nil {
		return nil, err
	}
	if met.SnapshotsSent, err = m.Int64Counter("assessly.snapshots.sent",
		metric.WithDescription("Total camera snapshots forwarded upstream."),
	); err != nil {
		return nil, err
	}
	if met.Interruptions, err = m.Int64Counter("assessly.interruptions",
		metric.WithDescription("Total candidate barge-ins."),
	); err != nil {
		return nil, err
	}
	if met.RelayDeliveries, err = m.Int64Counter("assessly.relay.deliveries",
		metric.WithDescription("Total report delivery attempts by status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("assessly.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("assessly.active_sessions",
		metric.WithDescription("Number of currently live interview sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("assessly.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
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

// RecordSessionEnded records a finished session. trigger names what ended the
// session (user, timeout, channel, media) and outcome is "complete" or
// "failed".
func (m *Metrics) RecordSessionEnded(ctx context.Context, trigger, outcome string) {
	m.SessionsEnded.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("trigger", trigger),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordAudioChunk records a capture audio chunk with its forwarding status.
func (m *Metrics) RecordAudioChunk(ctx context.Context, status string) {
	m.AudioChunks.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordRelayDelivery records a report delivery attempt and its latency.
func (m *Metrics) RecordRelayDelivery(ctx context.Context, status string, elapsed time.Duration) {
	m.RelayDeliveries.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
	m.RelayDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
