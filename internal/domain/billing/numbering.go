package billing

import (
	"context"
	"fmt"
)

// CounterKey returns the sequence counter name for a calendar year
func CounterKey(year int) string {
	return fmt.Sprintf("invoice-%d", year)
}

// FormatInvoiceNumber renders the human-readable invoice number
func FormatInvoiceNumber(year int, seq int64) string {
	return fmt.Sprintf("INV-%d-%05d", year, seq)
}

// SequenceCounter hands out strictly increasing values per name.
// Next must be atomic across processes: N concurrent calls for one name
// return N distinct contiguous values. The first call for a name returns 1.
type SequenceCounter interface {
	Next(ctx context.Context, name string) (int64, error)
}

// NextInvoiceNumber draws the next number for the given year
func NextInvoiceNumber(ctx context.Context, counter SequenceCounter, year int) (string, error) {
	seq, err := counter.Next(ctx, CounterKey(year))
	if err != nil {
		return "", fmt.Errorf("next invoice sequence: %w", err)
	}
	return FormatInvoiceNumber(year, seq), nil
}
