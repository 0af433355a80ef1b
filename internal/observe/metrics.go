// Package observe provides application-wide observability primitives for
// Mimik: OpenTelemetry metrics plus the Prometheus exporter bridge that makes
// them scrapeable from the status HTTP listener.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A package-level
// default [Metrics] instance ([DefaultMetrics]) is provided for convenience;
// tests should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Mimik metrics.
const meterName = "github.com/ayanero/mimik"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// DecodeDuration tracks the latency of one incremental speech decode pass.
	DecodeDuration metric.Float64Histogram

	// TranscriptEvents counts transcript events published by the voice
	// pipeline. Use with attribute.String("mode", "fast"|"accurate").
	TranscriptEvents metric.Int64Counter

	// EmotionChanges counts emotion label changes published by the emotion
	// pipeline. Use with attribute.String("label", ...).
	EmotionChanges metric.Int64Counter

	// Dispatches counts actions the resolver decided to fire. Use with
	// attribute.String("source", "keyword"|"emotion").
	Dispatches metric.Int64Counter

	// CooldownDrops counts triggers suppressed by an armed cooldown.
	CooldownDrops metric.Int64Counter

	// TriggerErrors counts hotkey triggers the gateway failed to deliver.
	TriggerErrors metric.Int64Counter

	// FramesDropped counts capture frames discarded because the pipeline
	// bridge channel was full.
	FramesDropped metric.Int64Counter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// incremental decode passes over short utterances.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.DecodeDuration, err = m.Float64Histogram("mimik.decode.duration",
		metric.WithDescription("Latency of one incremental speech decode pass."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.TranscriptEvents, err = m.Int64Counter("mimik.transcript.events",
		metric.WithDescription("Total transcript events published, by decode mode."),
	); err != nil {
		return nil, err
	}
	if met.EmotionChanges, err = m.Int64Counter("mimik.emotion.changes",
		metric.WithDescription("Total emotion label changes published, by label."),
	); err != nil {
		return nil, err
	}
	if met.Dispatches, err = m.Int64Counter("mimik.dispatches",
		metric.WithDescription("Total dispatched actions, by trigger source."),
	); err != nil {
		return nil, err
	}
	if met.CooldownDrops, err = m.Int64Counter("mimik.cooldown.drops",
		metric.WithDescription("Total triggers suppressed by an armed cooldown."),
	); err != nil {
		return nil, err
	}
	if met.TriggerErrors, err = m.Int64Counter("mimik.trigger.errors",
		metric.WithDescription("Total hotkey triggers the gateway failed to deliver."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("mimik.frames.dropped",
		metric.WithDescription("Total capture frames discarded by the pipeline bridge."),
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

// RecordDispatch records a dispatched action with its trigger source
// ("keyword" or "emotion").
func (m *Metrics) RecordDispatch(ctx context.Context, source string) {
	m.Dispatches.Add(ctx, 1,
		metric.WithAttributes(attribute.String("source", source)),
	)
}

// RecordTranscript records a published transcript event for a decode mode.
func (m *Metrics) RecordTranscript(ctx context.Context, mode string) {
	m.TranscriptEvents.Add(ctx, 1,
		metric.WithAttributes(attribute.String("mode", mode)),
	)
}

// RecordEmotionChange records an emotion label change.
func (m *Metrics) RecordEmotionChange(ctx context.Context, label string) {
	m.EmotionChanges.Add(ctx, 1,
		metric.WithAttributes(attribute.String("label", label)),
	)
}
