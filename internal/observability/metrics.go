package observability

import (
	"context"

	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/cory-johannsen/draconic"

// Metrics holds the OpenTelemetry instruments recorded by the scripting core.
// All fields are safe for concurrent use.
type Metrics struct {
	// Expansions counts top-level invocations. Use with attribute:
	//   attribute.String("scope", ...)
	Expansions metric.Int64Counter

	// ExpansionErrors counts failed invocations. Use with attribute:
	//   attribute.String("kind", ...)
	ExpansionErrors metric.Int64Counter

	// ExpansionDuration tracks the wall-clock time of one invocation.
	ExpansionDuration metric.Float64Histogram

	// DiceRolled counts individual dice rolled by scripts.
	DiceRolled metric.Int64Counter

	// MutationsFlushed counts pending mutations written to storage.
	MutationsFlushed metric.Int64Counter
}

var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates all instruments on mp.
//
// Precondition: mp must be non-nil.
// Postcondition: Returns a fully initialised Metrics or the first instrument error.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Expansions, err = m.Int64Counter("draconic.expansions",
		metric.WithDescription("Total top-level script expansions by execution scope."),
	); err != nil {
		return nil, err
	}
	if met.ExpansionErrors, err = m.Int64Counter("draconic.expansion.errors",
		metric.WithDescription("Total failed expansions by error kind."),
	); err != nil {
		return nil, err
	}
	if met.ExpansionDuration, err = m.Float64Histogram("draconic.expansion.duration",
		metric.WithDescription("Latency of one top-level expansion."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DiceRolled, err = m.Int64Counter("draconic.dice.rolled",
		metric.WithDescription("Total dice rolled by scripts."),
	); err != nil {
		return nil, err
	}
	if met.MutationsFlushed, err = m.Int64Counter("draconic.mutations.flushed",
		metric.WithDescription("Total pending mutations written to storage."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// RecordExpansion records one finished invocation. An empty errKind marks success.
func (m *Metrics) RecordExpansion(ctx context.Context, scope, errKind string, seconds float64) {
	m.Expansions.Add(ctx, 1, metric.WithAttributes(attribute.String("scope", scope)))
	m.ExpansionDuration.Record(ctx, seconds)
	if errKind != "" {
		m.ExpansionErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", errKind)))
	}
}

// InitMetricsProvider installs a global MeterProvider backed by the Prometheus
// exporter and returns metrics bound to it.
//
// Postcondition: on success the returned shutdown func flushes and closes the provider.
func InitMetricsProvider() (*Metrics, func(context.Context) error, error) {
	promExp, err := promexporter.New()
	if err != nil {
		return nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(promExp))
	otel.SetMeterProvider(mp)
	met, err := NewMetrics(mp)
	if err != nil {
		_ = mp.Shutdown(context.Background())
		return nil, nil, err
	}
	return met, mp.Shutdown, nil
}
