package billing

import (
	"time"

	"github.com/autoshop/backend/internal/domain/billing"
	"github.com/shopspring/decimal"
)

// Int64 amounts carry the ",string" option so that the DTOs round-trip
// through the protobuf JSON mapping, which renders 64-bit integers as strings.

// LineItemInput describes one line of a directly created invoice
type LineItemInput struct {
	Type           string          `json:"type" validate:"required,oneof=part labor"`
	Description    string          `json:"description" validate:"required,max=500"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPriceCents int64           `json:"unit_price_cents,string" validate:"min=0"`
	TotalCents     int64           `json:"total_cents,string"`
}

// CreateInvoiceInput is the input of the direct invoice creation call
type CreateInvoiceInput struct {
	WorkOrderID string           `json:"work_order_id" validate:"max=100"`
	CustomerID  string           `json:"customer_id" validate:"required,max=100"`
	LineItems   []LineItemInput  `json:"line_items" validate:"dive"`
	TaxRate     *decimal.Decimal `json:"tax_rate,omitempty"`
	Currency    string           `json:"currency" validate:"omitempty,len=3,alpha"`
	DueDays     *int32           `json:"due_days,omitempty" validate:"omitempty,min=0,max=365"`
	Notes       string           `json:"notes" validate:"max=2000"`
}

// ListInvoicesInput filters and pages the invoice list
type ListInvoicesInput struct {
	Status   string `json:"status" validate:"omitempty,oneof=draft sent paid overdue cancelled"`
	Page     int32  `json:"page" validate:"min=0"`
	PageSize int32  `json:"page_size" validate:"min=0,max=100"`
}

// UpdateInvoiceStatusInput moves an invoice to a new status
type UpdateInvoiceStatusInput struct {
	ID     string `json:"id" validate:"required,uuid"`
	Status string `json:"status" validate:"required"`
}

// LineItemDTO is the read model of a line item
type LineItemDTO struct {
	Type           string          `json:"type"`
	Description    string          `json:"description"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPriceCents int64           `json:"unit_price_cents,string"`
	TotalCents     int64           `json:"total_cents,string"`
}

// InvoiceDTO is the read model of an invoice
type InvoiceDTO struct {
	ID            string        `json:"id"`
	InvoiceNumber string        `json:"invoice_number"`
	WorkOrderID   string        `json:"work_order_id"`
	CustomerID    string        `json:"customer_id"`
	Status        string        `json:"status"`
	LineItems     []LineItemDTO `json:"line_items"`
	SubtotalCents int64         `json:"subtotal_cents,string"`
	TaxRate       string        `json:"tax_rate"`
	TaxCents      int64         `json:"tax_cents,string"`
	TotalCents    int64         `json:"total_cents,string"`
	Currency      string        `json:"currency"`
	IssuedAt      time.Time     `json:"issued_at"`
	DueAt         time.Time     `json:"due_at"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	Notes         string        `json:"notes"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// InvoiceListResult is one page of invoices
type InvoiceListResult struct {
	Invoices   []InvoiceDTO `json:"invoices"`
	Total      int64        `json:"total,string"`
	Page       int32        `json:"page"`
	PageSize   int32        `json:"page_size"`
	TotalPages int32        `json:"total_pages"`
}

// InvoicesResult is an unpaged invoice list
type InvoicesResult struct {
	Invoices []InvoiceDTO `json:"invoices"`
}

// ToInvoiceDTO converts the aggregate to its read model
func ToInvoiceDTO(inv *billing.Invoice) InvoiceDTO {
	items := make([]LineItemDTO, len(inv.LineItems))
	for i, item := range inv.LineItems {
		items[i] = LineItemDTO{
			Type:           string(item.Type),
			Description:    item.Description,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			TotalCents:     item.TotalCents,
		}
	}
	return InvoiceDTO{
		ID:            inv.ID.String(),
		InvoiceNumber: inv.InvoiceNumber,
		WorkOrderID:   inv.WorkOrderID,
		CustomerID:    inv.CustomerID,
		Status:        inv.Status.String(),
		LineItems:     items,
		SubtotalCents: inv.Subtotal,
		TaxRate:       inv.TaxRate.String(),
		TaxCents:      inv.TaxAmount,
		TotalCents:    inv.Total,
		Currency:      inv.Currency,
		IssuedAt:      inv.IssuedAt,
		DueAt:         inv.DueAt,
		PaidAt:        inv.PaidAt,
		Notes:         inv.Notes,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
	}
}

func toInvoiceDTOs(invoices []billing.Invoice) []InvoiceDTO {
	out := make([]InvoiceDTO, len(invoices))
	for i := range invoices {
		out[i] = ToInvoiceDTO(&invoices[i])
	}
	return out
}
