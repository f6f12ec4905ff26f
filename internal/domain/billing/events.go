package billing

import (
	"time"

	"github.com/autoshop/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Topics
const (
	TopicWorkOrderCompleted = "work_order.completed"
	TopicInvoiceCreated     = "invoice.created"
	TopicInvoicePaid        = "invoice.paid"
)

// InvoiceCreatedEvent is raised when a new invoice is issued
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID `json:"invoice_id"`
	InvoiceNumber string    `json:"invoice_number"`
	WorkOrderID   string    `json:"work_order_id"`
	CustomerID    string    `json:"customer_id"`
	TotalCents    int64     `json:"total_cents"`
	Currency      string    `json:"currency"`
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(TopicInvoiceCreated, inv.ID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		WorkOrderID:     inv.WorkOrderID,
		CustomerID:      inv.CustomerID,
		TotalCents:      inv.Total,
		Currency:        inv.Currency,
	}
}

// InvoicePaidEvent is raised when an invoice moves to paid
type InvoicePaidEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID `json:"invoice_id"`
	InvoiceNumber string    `json:"invoice_number"`
	WorkOrderID   string    `json:"work_order_id"`
	CustomerID    string    `json:"customer_id"`
	TotalCents    int64     `json:"total_cents"`
	Currency      string    `json:"currency"`
	PaidAt        time.Time `json:"paid_at"`
}

// NewInvoicePaidEvent creates a new InvoicePaidEvent. The invoice must have PaidAt set.
func NewInvoicePaidEvent(inv *Invoice) *InvoicePaidEvent {
	var paidAt time.Time
	if inv.PaidAt != nil {
		paidAt = *inv.PaidAt
	}
	return &InvoicePaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(TopicInvoicePaid, inv.ID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		WorkOrderID:     inv.WorkOrderID,
		CustomerID:      inv.CustomerID,
		TotalCents:      inv.Total,
		Currency:        inv.Currency,
		PaidAt:          paidAt,
	}
}
