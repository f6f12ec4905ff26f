package persistence

import (
	"context"

	billingapp "github.com/autoshop/backend/internal/application/billing"
	"github.com/autoshop/backend/internal/domain/billing"
	"github.com/autoshop/backend/internal/domain/shared"
	"github.com/autoshop/backend/internal/infrastructure/event"
	"gorm.io/gorm"
)

// GormTransactionScope runs invoice writes and outbox inserts in one gorm
// transaction
type GormTransactionScope struct {
	db     *gorm.DB
	outbox *event.OutboxPublisher
}

// NewGormTransactionScope creates a scope over db writing messages to outbox
func NewGormTransactionScope(db *gorm.DB, outbox *event.OutboxPublisher) *GormTransactionScope {
	return &GormTransactionScope{db: db, outbox: outbox}
}

// Execute commits when fn returns nil and rolls back otherwise
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos billingapp.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&txRepositories{tx: tx, outbox: s.outbox})
	})
}

type txRepositories struct {
	tx     *gorm.DB
	outbox *event.OutboxPublisher
}

func (r *txRepositories) InvoiceRepo() billing.InvoiceRepository {
	return NewGormInvoiceRepository(r.tx)
}

func (r *txRepositories) Publisher() shared.MessagePublisher {
	return txPublisher(*r)
}

// txPublisher writes outbox entries through the open transaction
type txPublisher txRepositories

func (p txPublisher) Publish(ctx context.Context, topic string, payload any) error {
	return p.outbox.PublishWithTx(ctx, p.tx, topic, payload)
}

var (
	_ billingapp.TransactionScope          = (*GormTransactionScope)(nil)
	_ billingapp.TransactionalRepositories = (*txRepositories)(nil)
)
