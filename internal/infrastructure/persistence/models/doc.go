// Package models contains GORM persistence models that map to database tables.
// Domain types stay free of GORM tags; each model converts with ToDomain and
// FromDomain.
//
//   - base.go: id and timestamp columns shared by aggregate tables
//   - invoice.go: invoices
//   - sequence.go: named monotonic counters used for invoice numbering
//   - outbox.go: outbox entries relayed by the outbox processor
package models
