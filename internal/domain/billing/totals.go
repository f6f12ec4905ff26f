package billing

import "github.com/shopspring/decimal"

// DefaultTaxRate applies when no rate is configured
var DefaultTaxRate = decimal.RequireFromString("0.21")

// Totals are the monetary totals of an invoice in minor currency units
type Totals struct {
	Subtotal int64
	Tax      int64
	Total    int64
}

// ComputeTotals sums the line item totals and applies the tax rate.
// Tax is rounded to whole cents half away from zero.
func ComputeTotals(items []LineItem, taxRate decimal.Decimal) Totals {
	var subtotal int64
	for _, item := range items {
		subtotal += item.TotalCents
	}
	tax := decimal.NewFromInt(subtotal).Mul(taxRate).Round(0).IntPart()
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal + tax,
	}
}
