package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const scopeName = "github.com/anonto42/barrierfree/backend"

// Setup installs a global meter provider. With exporter "stdout" metrics are
// printed periodically; anything else leaves the no-op provider in place.
func Setup(exporter string) (func(context.Context) error, error) {
	if exporter != "stdout" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := stdoutmetric.New()
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(time.Minute))),
	)
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}

// Metrics counts lifecycle transitions, lost compare-and-set races and
// counter drift found by reconciliation.
type Metrics struct {
	transitions metric.Int64Counter
	conflicts   metric.Int64Counter
	drift       metric.Int64Counter
}

// NewMetrics creates the instruments from the global meter provider
func NewMetrics() *Metrics {
	m := otel.Meter(scopeName)
	transitions, _ := m.Int64Counter("bf.lifecycle.transitions",
		metric.WithDescription("Applied lifecycle transitions"),
	)
	conflicts, _ := m.Int64Counter("bf.lifecycle.conflicts",
		metric.WithDescription("Operations rejected because the entity moved on"),
	)
	drift, _ := m.Int64Counter("bf.stats.drift",
		metric.WithDescription("Counters corrected by reconciliation"),
	)
	return &Metrics{transitions: transitions, conflicts: conflicts, drift: drift}
}

func (m *Metrics) Transition(ctx context.Context, aggregate, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("aggregate", aggregate),
		attribute.String("to", to),
	))
}

func (m *Metrics) Conflict(ctx context.Context, op string) {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (m *Metrics) Drift(ctx context.Context, entity string, n int64) {
	if m == nil || m.drift == nil || n == 0 {
		return
	}
	m.drift.Add(ctx, n, metric.WithAttributes(attribute.String("entity", entity)))
}
