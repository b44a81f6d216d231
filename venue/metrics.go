package venue

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	outcomeConfirmed = "confirmed"
	outcomeRejected  = "rejected"
	outcomeTimeout   = "timeout"
	outcomeFailed    = "failed"
)

type metrics struct {
	transactions metric.Int64Counter
	readFailures metric.Int64Counter
}

func newMetrics() *metrics {
	meter := otel.Meter("vaultgate.venue")
	m := &metrics{}
	if counter, err := meter.Int64Counter("vaultgate_venue_transactions",
		metric.WithDescription("Venue transactions by terminal outcome"),
		metric.WithUnit("{transaction}")); err == nil {
		m.transactions = counter
	}
	if counter, err := meter.Int64Counter("vaultgate_venue_read_failures",
		metric.WithDescription("Venue reads that degraded to an unavailable value"),
		metric.WithUnit("{call}")); err == nil {
		m.readFailures = counter
	}
	return m
}

func (m *metrics) recordTransaction(venue, method, outcome string) {
	if m == nil || m.transactions == nil {
		return
	}
	m.transactions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("venue", venue),
		attribute.String("method", method),
		attribute.String("outcome", outcome),
	))
}

func (m *metrics) recordReadFailure(venue, method string) {
	if m == nil || m.readFailures == nil {
		return
	}
	m.readFailures.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("venue", venue),
		attribute.String("method", method),
	))
}
