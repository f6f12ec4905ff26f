package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const billingMeterName = "github.com/autoshop/backend/billing"

// Delivery outcomes
const (
	OutcomeProcessed = "processed"
	OutcomeIgnored   = "ignored"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// BillingMetrics counts event deliveries and the invoices they produce
type BillingMetrics struct {
	deliveries metric.Int64Counter
	invoices   metric.Int64Counter
}

// NewBillingMetrics creates the instruments on meter. A nil meter uses the
// global meter provider.
func NewBillingMetrics(meter metric.Meter) (*BillingMetrics, error) {
	if meter == nil {
		meter = otel.Meter(billingMeterName)
	}
	deliveries, err := meter.Int64Counter("billing.event.deliveries",
		metric.WithDescription("Event deliveries received from the sidecar"),
		metric.WithUnit("{delivery}"),
	)
	if err != nil {
		return nil, err
	}
	invoices, err := meter.Int64Counter("billing.invoices.issued",
		metric.WithDescription("Invoices issued from completed work orders"),
		metric.WithUnit("{invoice}"),
	)
	if err != nil {
		return nil, err
	}
	return &BillingMetrics{deliveries: deliveries, invoices: invoices}, nil
}

// RecordDelivery counts one delivery on topic with its outcome. Safe on a
// nil receiver.
func (m *BillingMetrics) RecordDelivery(ctx context.Context, topic, outcome string) {
	if m == nil {
		return
	}
	m.deliveries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("messaging.destination.name", topic),
		attribute.String("outcome", outcome),
	))
	if outcome == OutcomeProcessed {
		m.invoices.Add(ctx, 1)
	}
}
