package billing

import (
	"context"

	"github.com/autoshop/backend/internal/domain/billing"
	"github.com/autoshop/backend/internal/domain/shared"
)

// TransactionScope runs fn inside one database transaction. Invoice writes
// and messages published through repos commit or roll back together.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories are bound to the transaction of one Execute call
type TransactionalRepositories interface {
	InvoiceRepo() billing.InvoiceRepository
	Publisher() shared.MessagePublisher
}

// WithTransactionScope writes invoices and their events atomically through
// scope. A failed publish then fails the whole operation.
func WithTransactionScope(scope TransactionScope) ServiceOption {
	return func(i *issuer) {
		i.scope = scope
	}
}
