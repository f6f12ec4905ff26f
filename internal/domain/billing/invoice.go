package billing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/autoshop/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Status represents the lifecycle status of an invoice
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

// AllStatuses returns every known invoice status
func AllStatuses() []Status {
	return []Status{StatusDraft, StatusSent, StatusPaid, StatusOverdue, StatusCancelled}
}

// IsValid checks if the status is a known Status
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusPaid, StatusOverdue, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// ParseStatus parses a status case-insensitively
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", shared.Newf(shared.CodeInvalidInput, "unknown invoice status %q", raw)
	}
	return s, nil
}

// LineItemType distinguishes part lines from labor lines
type LineItemType string

const (
	LineItemPart  LineItemType = "part"
	LineItemLabor LineItemType = "labor"
)

// IsValid checks if the line item type is known
func (t LineItemType) IsValid() bool {
	return t == LineItemPart || t == LineItemLabor
}

// LineItem is one billable line. TotalCents is taken as given by the
// producer and is not recomputed from quantity and unit price.
type LineItem struct {
	Type           LineItemType    `json:"type"`
	Description    string          `json:"description"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPriceCents int64           `json:"unit_price_cents"`
	TotalCents     int64           `json:"total_cents"`
}

// LineItems implements GORM Scanner/Valuer for JSON storage
type LineItems []LineItem

// Value implements driver.Valuer
func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (l *LineItems) Scan(value any) error {
	if value == nil {
		*l = LineItems{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan LineItems: unsupported type")
	}

	if len(bytes) == 0 {
		*l = LineItems{}
		return nil
	}
	return json.Unmarshal(bytes, l)
}

// Invoice is the aggregate root of the billing context. Invoices are never
// deleted; their status only changes through UpdateStatus.
type Invoice struct {
	shared.BaseAggregateRoot
	InvoiceNumber string
	WorkOrderID   string
	CustomerID    string
	Status        Status
	LineItems     LineItems
	Subtotal      int64
	TaxRate       decimal.Decimal
	TaxAmount     int64
	Total         int64
	Currency      string
	IssuedAt      time.Time
	DueAt         time.Time
	PaidAt        *time.Time
	Notes         string
}

// NewInvoiceParams holds everything needed to issue an invoice
type NewInvoiceParams struct {
	InvoiceNumber string
	WorkOrderID   string
	CustomerID    string
	LineItems     []LineItem
	TaxRate       decimal.Decimal
	Currency      string
	IssuedAt      time.Time
	DueDays       int
	Notes         string
}

// NewInvoice issues a draft invoice and records an InvoiceCreatedEvent
func NewInvoice(p NewInvoiceParams) (*Invoice, error) {
	if strings.TrimSpace(p.InvoiceNumber) == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "invoice number is required")
	}
	if strings.TrimSpace(p.CustomerID) == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "customer id is required")
	}
	if p.TaxRate.IsNegative() || p.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "tax rate must be between 0 and 1")
	}
	if p.DueDays < 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "due days must not be negative")
	}
	for i, item := range p.LineItems {
		if !item.Type.IsValid() {
			return nil, shared.Newf(shared.CodeInvalidInput, "line item %d has unknown type %q", i, item.Type)
		}
	}
	if p.IssuedAt.IsZero() {
		p.IssuedAt = time.Now()
	}

	items := make(LineItems, len(p.LineItems))
	copy(items, p.LineItems)
	totals := ComputeTotals(items, p.TaxRate)

	inv := &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(p.IssuedAt),
		InvoiceNumber:     p.InvoiceNumber,
		WorkOrderID:       p.WorkOrderID,
		CustomerID:        p.CustomerID,
		Status:            StatusDraft,
		LineItems:         items,
		Subtotal:          totals.Subtotal,
		TaxRate:           p.TaxRate,
		TaxAmount:         totals.Tax,
		Total:             totals.Total,
		Currency:          strings.ToUpper(p.Currency),
		IssuedAt:          p.IssuedAt,
		DueAt:             p.IssuedAt.AddDate(0, 0, p.DueDays),
		Notes:             p.Notes,
	}
	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv))
	return inv, nil
}

// UpdateStatus moves the invoice to target. Only membership of target in
// the status enum is checked; any status may be set from any other.
// Entering paid stamps PaidAt and records an InvoicePaidEvent, leaving paid
// clears PaidAt.
func (inv *Invoice) UpdateStatus(target Status, at time.Time) error {
	if !target.IsValid() {
		return shared.Newf(shared.CodeInvalidInput, "unknown invoice status %q", target)
	}
	if target == inv.Status {
		return nil
	}

	switch {
	case target == StatusPaid:
		paidAt := at
		inv.PaidAt = &paidAt
		inv.AddDomainEvent(NewInvoicePaidEvent(inv))
	case inv.Status == StatusPaid:
		inv.PaidAt = nil
	}

	inv.Status = target
	inv.Modified(at)
	return nil
}

// IsPaid reports whether the invoice is paid
func (inv *Invoice) IsPaid() bool {
	return inv.Status == StatusPaid
}
