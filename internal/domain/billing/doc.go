// Package billing provides the invoicing domain of the auto-repair shop.
//
// Key Aggregates:
//   - Invoice: a bill for a customer, usually produced from a completed work order
//
// Value Objects:
//   - LineItem: one part or labor line on an invoice
//   - Totals: subtotal, tax and total in minor currency units
//
// The billing domain consumes work_order.completed deliveries from the
// work-order service and publishes invoice.created and invoice.paid.
package billing
