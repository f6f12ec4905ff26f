package billing

import (
	"context"

	"github.com/autoshop/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// InvoiceFilter narrows invoice list queries
type InvoiceFilter struct {
	Status     Status
	CustomerID string
	Page       shared.Page
}

// InvoiceRepository persists invoices
type InvoiceRepository interface {
	// Save inserts a new invoice
	Save(ctx context.Context, inv *Invoice) error
	// Update persists changes to an existing invoice
	Update(ctx context.Context, inv *Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// FindAll returns one page of invoices, newest first, and the total count
	FindAll(ctx context.Context, filter InvoiceFilter) ([]Invoice, int64, error)
	FindByCustomerID(ctx context.Context, customerID string) ([]Invoice, error)
	// FindByWorkOrderID returns the most recent invoice for a work order
	FindByWorkOrderID(ctx context.Context, workOrderID string) (*Invoice, error)
}
