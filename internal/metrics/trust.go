package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// TrustMetrics records certificate trust decisions.
type TrustMetrics interface {
	// RecordDecision counts one decision. Source is the step that decided
	// ("session", "store", "prompt", "error"); outcome is "accepted" or "rejected".
	RecordDecision(ctx context.Context, source, outcome string)

	// RecordDuration records how long a decision took, including any wait on a human.
	RecordDuration(ctx context.Context, source string, duration time.Duration, outcome string)
}

type trustMetrics struct {
	decisionCounter metric.Int64Counter
	durationHisto   metric.Float64Histogram
}

// NewTrustMetrics creates TrustMetrics on meterProvider. Metric names are prefixed with namespace.
func NewTrustMetrics(meterProvider metric.MeterProvider, namespace string) (TrustMetrics, error) {
	meter := meterProvider.Meter(namespace)

	decisionCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_trust_decisions_total", namespace),
		metric.WithDescription("Total number of certificate trust decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create decision counter: %w", err)
	}

	durationHisto, err := meter.Float64Histogram(
		fmt.Sprintf("%s_trust_decision_duration_seconds", namespace),
		metric.WithDescription("Duration of certificate trust decisions in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return &trustMetrics{
		decisionCounter: decisionCounter,
		durationHisto:   durationHisto,
	}, nil
}

func (m *trustMetrics) RecordDecision(ctx context.Context, source, outcome string) {
	m.decisionCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("source", source),
			attribute.String("outcome", outcome),
		),
	)
}

func (m *trustMetrics) RecordDuration(ctx context.Context, source string, duration time.Duration, outcome string) {
	m.durationHisto.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("source", source),
			attribute.String("outcome", outcome),
		),
	)
}

// NoOpTrustMetrics discards everything. Used when metrics are disabled.
type NoOpTrustMetrics struct{}

// NewNoOpTrustMetrics creates a no-op TrustMetrics implementation.
func NewNoOpTrustMetrics() TrustMetrics {
	return &NoOpTrustMetrics{}
}

// RecordDecision does nothing.
func (n *NoOpTrustMetrics) RecordDecision(ctx context.Context, source, outcome string) {}

// RecordDuration does nothing.
func (n *NoOpTrustMetrics) RecordDuration(
	ctx context.Context,
	source string,
	duration time.Duration,
	outcome string,
) {
}
