package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/autoshop/backend/internal/domain/billing"
	"github.com/autoshop/backend/internal/domain/shared"
	"github.com/autoshop/backend/internal/infrastructure/correlation"
	"github.com/autoshop/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// AutoInvoiceNotes is attached to invoices issued from completed work orders
const AutoInvoiceNotes = "auto-generated from completed work order"

// Outcome is how a delivery was handled
type Outcome string

const (
	// OutcomeProcessed means an invoice was issued
	OutcomeProcessed Outcome = "processed"
	// OutcomeIgnored means the payload can never be processed and must not be redelivered
	OutcomeIgnored Outcome = "ignored"
	// OutcomeDuplicate means the delivery id was already processed
	OutcomeDuplicate Outcome = "duplicate"
)

// Result reports the outcome of one delivery
type Result struct {
	Outcome   Outcome
	InvoiceID string
}

// WorkOrderCompletedHandler turns work_order.completed deliveries into
// draft invoices.
//
// Without an idempotency store every delivery issues a new invoice, so a
// redelivered event produces a second invoice for the same work order.
type WorkOrderCompletedHandler struct {
	issuer
	settings    Settings
	idempotency shared.IdempotencyStore
	dedupeTTL   time.Duration
}

// NewWorkOrderCompletedHandler creates the auto-invoice workflow handler
func NewWorkOrderCompletedHandler(
	repo billing.InvoiceRepository,
	counter billing.SequenceCounter,
	publisher shared.MessagePublisher,
	settings Settings,
	log *zap.Logger,
	opts ...ServiceOption,
) *WorkOrderCompletedHandler {
	return &WorkOrderCompletedHandler{
		issuer:   newIssuer(repo, counter, publisher, log, opts),
		settings: settings,
	}
}

// WithDeliveryDedupe makes the handler skip deliveries whose CloudEvent id
// was already processed within ttl. Bare deliveries carry no id and are
// always processed.
func (h *WorkOrderCompletedHandler) WithDeliveryDedupe(store shared.IdempotencyStore, ttl time.Duration) *WorkOrderCompletedHandler {
	h.idempotency = store
	h.dedupeTTL = ttl
	return h
}

// Topic returns the topic this handler consumes
func (h *WorkOrderCompletedHandler) Topic() string {
	return billing.TopicWorkOrderCompleted
}

// Handle runs the auto-invoice workflow for one delivery. A returned error
// means an infrastructure failure; the delivery should be retried.
func (h *WorkOrderCompletedHandler) Handle(ctx context.Context, delivery billing.Delivery) (Result, error) {
	event := delivery.Event

	correlationID := correlation.Sanitize(event.CorrelationID)
	if correlationID == "" {
		correlationID = correlation.FromContext(ctx)
	}
	ctx, log := logger.WithCorrelationID(ctx, h.logger, correlationID)
	log = log.With(
		zap.String("delivery_kind", delivery.Kind.String()),
		zap.String("delivery_id", delivery.ID()),
	)

	if !event.Valid() {
		log.Warn("ignoring work order event without work_order_id or customer_id",
			zap.String("work_order_id", event.WorkOrderID),
			zap.String("customer_id", event.CustomerID),
		)
		return Result{Outcome: OutcomeIgnored}, nil
	}
	if delivery.Problem != nil {
		log.Warn("ignoring undecodable work order event",
			zap.String("work_order_id", event.WorkOrderID),
			zap.Error(delivery.Problem),
		)
		return Result{Outcome: OutcomeIgnored}, nil
	}

	log = log.With(
		zap.String("work_order_id", event.WorkOrderID),
		zap.String("customer_id", event.CustomerID),
	)

	claimed := false
	if h.idempotency != nil && delivery.ID() != "" {
		fresh, err := h.idempotency.MarkProcessed(ctx, delivery.ID(), h.dedupeTTL)
		if err != nil {
			log.Error("failed to claim delivery", zap.Error(err))
			return Result{}, fmt.Errorf("claim delivery %s: %w", delivery.ID(), err)
		}
		if !fresh {
			log.Info("skipping already processed delivery")
			return Result{Outcome: OutcomeDuplicate}, nil
		}
		claimed = true
	}

	currency := h.settings.Currency
	if event.Currency != "" {
		currency = event.Currency
	}

	inv, err := h.issue(ctx, issueRequest{
		WorkOrderID: event.WorkOrderID,
		CustomerID:  event.CustomerID,
		LineItems:   event.LineItems(),
		TaxRate:     h.settings.TaxRate,
		Currency:    currency,
		DueDays:     h.settings.DueDays,
		Notes:       AutoInvoiceNotes,
	})
	if err != nil {
		log.Error("failed to issue invoice for completed work order", zap.Error(err))
		if claimed {
			if ferr := h.idempotency.Forget(ctx, delivery.ID()); ferr != nil {
				log.Warn("failed to release delivery claim", zap.Error(ferr))
			}
		}
		return Result{}, fmt.Errorf("issue invoice for work order %s: %w", event.WorkOrderID, err)
	}

	log.Info("invoice issued for completed work order",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.Int64("subtotal_cents", inv.Subtotal),
		zap.Int64("tax_cents", inv.TaxAmount),
		zap.Int64("total_cents", inv.Total),
	)

	return Result{Outcome: OutcomeProcessed, InvoiceID: inv.ID.String()}, nil
}
