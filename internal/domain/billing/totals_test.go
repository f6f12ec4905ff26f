package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func lines(totals ...int64) []LineItem {
	items := make([]LineItem, 0, len(totals))
	for _, t := range totals {
		items = append(items, LineItem{Type: LineItemPart, TotalCents: t})
	}
	return items
}

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name     string
		items    []LineItem
		rate     decimal.Decimal
		expected Totals
	}{
		{"single line", lines(100), DefaultTaxRate, Totals{Subtotal: 100, Tax: 21, Total: 121}},
		{"two lines", lines(10000, 5000), DefaultTaxRate, Totals{Subtotal: 15000, Tax: 3150, Total: 18150}},
		{"no lines", nil, DefaultTaxRate, Totals{}},
		{"half cent rounds up", lines(50), DefaultTaxRate, Totals{Subtotal: 50, Tax: 11, Total: 61}},
		{"below half rounds down", lines(2), DefaultTaxRate, Totals{Subtotal: 2, Tax: 0, Total: 2}},
		{"negative half rounds away from zero", lines(-50), DefaultTaxRate, Totals{Subtotal: -50, Tax: -11, Total: -61}},
		{"zero rate", lines(999), decimal.Zero, Totals{Subtotal: 999, Tax: 0, Total: 999}},
		{"custom rate", lines(1000), decimal.RequireFromString("0.075"), Totals{Subtotal: 1000, Tax: 75, Total: 1075}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ComputeTotals(tt.items, tt.rate))
		})
	}
}

func TestInvoiceNumbering(t *testing.T) {
	assert.Equal(t, "invoice-2026", CounterKey(2026))
	assert.Equal(t, "INV-2026-00001", FormatInvoiceNumber(2026, 1))
	assert.Equal(t, "INV-2026-12345", FormatInvoiceNumber(2026, 12345))
	assert.Equal(t, "INV-2026-123456", FormatInvoiceNumber(2026, 123456))
}
