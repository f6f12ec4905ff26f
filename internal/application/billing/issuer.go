package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/autoshop/backend/internal/domain/billing"
	"github.com/autoshop/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Settings are the billing defaults applied to new invoices
type Settings struct {
	TaxRate  decimal.Decimal
	Currency string
	DueDays  int
}

// DefaultSettings returns a 21% tax rate, EUR and 30 day terms
func DefaultSettings() Settings {
	return Settings{
		TaxRate:  billing.DefaultTaxRate,
		Currency: "EUR",
		DueDays:  30,
	}
}

// issuer numbers, persists and announces new invoices. It is shared by the
// direct creation call and the work-order workflow so both draw from the
// same counter.
type issuer struct {
	repo      billing.InvoiceRepository
	counter   billing.SequenceCounter
	publisher shared.MessagePublisher
	scope     TransactionScope
	logger    *zap.Logger
	now       func() time.Time
}

type issueRequest struct {
	WorkOrderID string
	CustomerID  string
	LineItems   []billing.LineItem
	TaxRate     decimal.Decimal
	Currency    string
	DueDays     int
	Notes       string
}

func (i *issuer) issue(ctx context.Context, req issueRequest) (*billing.Invoice, error) {
	issuedAt := i.now().UTC()

	number, err := billing.NextInvoiceNumber(ctx, i.counter, issuedAt.Year())
	if err != nil {
		return nil, err
	}

	inv, err := billing.NewInvoice(billing.NewInvoiceParams{
		InvoiceNumber: number,
		WorkOrderID:   req.WorkOrderID,
		CustomerID:    req.CustomerID,
		LineItems:     req.LineItems,
		TaxRate:       req.TaxRate,
		Currency:      req.Currency,
		IssuedAt:      issuedAt,
		DueDays:       req.DueDays,
		Notes:         req.Notes,
	})
	if err != nil {
		return nil, err
	}

	if err := i.persist(ctx, inv, billing.InvoiceRepository.Save); err != nil {
		return nil, fmt.Errorf("save invoice %s: %w", number, err)
	}
	return inv, nil
}

type invoiceWrite func(repo billing.InvoiceRepository, ctx context.Context, inv *billing.Invoice) error

// persist runs write and hands the recorded events on. In a transaction
// scope the events go to the outbox in the same transaction; without one
// they are published after the write.
func (i *issuer) persist(ctx context.Context, inv *billing.Invoice, write invoiceWrite) error {
	if i.scope == nil {
		if err := write(i.repo, ctx, inv); err != nil {
			return err
		}
		i.publishEvents(ctx, inv)
		return nil
	}

	return i.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := write(repos.InvoiceRepo(), ctx, inv); err != nil {
			return err
		}
		if err := shared.PublishEvents(ctx, repos.Publisher(), inv.PullDomainEvents()...); err != nil {
			return fmt.Errorf("record invoice events: %w", err)
		}
		return nil
	})
}

// publishEvents announces recorded events. The invoice is already
// committed, so failures are logged and dropped.
func (i *issuer) publishEvents(ctx context.Context, inv *billing.Invoice) {
	events := inv.PullDomainEvents()
	if len(events) == 0 {
		return
	}
	if err := shared.PublishEvents(ctx, i.publisher, events...); err != nil {
		i.logger.Warn("failed to publish invoice events",
			zap.String("invoice_id", inv.ID.String()),
			zap.String("invoice_number", inv.InvoiceNumber),
			zap.Error(err),
		)
	}
}
