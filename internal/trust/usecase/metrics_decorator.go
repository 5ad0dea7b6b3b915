package usecase

import (
	"context"
	"time"

	"github.com/allisson/glvault/internal/metrics"
	trustDomain "github.com/allisson/glvault/internal/trust/domain"
)

// trustGateWithMetrics decorates TrustGate with metrics instrumentation.
type trustGateWithMetrics struct {
	next    TrustGate
	metrics metrics.TrustMetrics
}

// NewTrustGateWithMetrics wraps a TrustGate with metrics recording.
func NewTrustGateWithMetrics(gate TrustGate, m metrics.TrustMetrics) TrustGate {
	return &trustGateWithMetrics{
		next:    gate,
		metrics: m,
	}
}

// Verify records the decision source, outcome and latency.
func (g *trustGateWithMetrics) Verify(ctx context.Context, req VerifyRequest) trustDomain.Verdict {
	start := time.Now()
	verdict := g.next.Verify(ctx, req)

	outcome := "accepted"
	if !verdict.Accepted {
		outcome = "rejected"
	}

	g.metrics.RecordDecision(ctx, string(verdict.Source), outcome)
	g.metrics.RecordDuration(ctx, string(verdict.Source), time.Since(start), outcome)

	return verdict
}

func (g *trustGateWithMetrics) ResetSession() {
	g.next.ResetSession()
}
