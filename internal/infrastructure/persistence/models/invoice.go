package models

import (
	"time"

	"github.com/autoshop/backend/internal/domain/billing"
	"github.com/autoshop/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate
type InvoiceModel struct {
	EntityColumns
	InvoiceNumber string            `gorm:"type:varchar(32);not null;uniqueIndex"`
	WorkOrderID   string            `gorm:"type:varchar(64);index"`
	CustomerID    string            `gorm:"type:varchar(64);not null;index"`
	Status        billing.Status    `gorm:"type:varchar(16);not null;index"`
	LineItems     billing.LineItems `gorm:"type:jsonb;not null"`
	Subtotal      int64             `gorm:"not null"`
	TaxRate       decimal.Decimal   `gorm:"type:decimal(6,4);not null"`
	TaxAmount     int64             `gorm:"not null"`
	Total         int64             `gorm:"not null"`
	Currency      string            `gorm:"type:varchar(3);not null"`
	IssuedAt      time.Time         `gorm:"not null"`
	DueAt         time.Time         `gorm:"not null"`
	PaidAt        *time.Time
	Notes         string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	items := m.LineItems
	if items == nil {
		items = billing.LineItems{}
	}
	return &billing.Invoice{
		BaseAggregateRoot: shared.BaseAggregateRoot{BaseEntity: m.entity()},
		InvoiceNumber:     m.InvoiceNumber,
		WorkOrderID:       m.WorkOrderID,
		CustomerID:        m.CustomerID,
		Status:            m.Status,
		LineItems:         items,
		Subtotal:          m.Subtotal,
		TaxRate:           m.TaxRate,
		TaxAmount:         m.TaxAmount,
		Total:             m.Total,
		Currency:          m.Currency,
		IssuedAt:          m.IssuedAt,
		DueAt:             m.DueAt,
		PaidAt:            m.PaidAt,
		Notes:             m.Notes,
	}
}

// FromDomain populates the persistence model from a domain Invoice
func (m *InvoiceModel) FromDomain(inv *billing.Invoice) {
	m.EntityColumns = entityColumns(inv.BaseEntity)
	m.InvoiceNumber = inv.InvoiceNumber
	m.WorkOrderID = inv.WorkOrderID
	m.CustomerID = inv.CustomerID
	m.Status = inv.Status
	m.LineItems = inv.LineItems
	m.Subtotal = inv.Subtotal
	m.TaxRate = inv.TaxRate
	m.TaxAmount = inv.TaxAmount
	m.Total = inv.Total
	m.Currency = inv.Currency
	m.IssuedAt = inv.IssuedAt
	m.DueAt = inv.DueAt
	m.PaidAt = inv.PaidAt
	m.Notes = inv.Notes
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice
func InvoiceModelFromDomain(inv *billing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}
