package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/autoshop/backend/internal/domain/billing"
	"github.com/autoshop/backend/internal/domain/shared"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InvoiceService implements the billing service operations
type InvoiceService struct {
	issuer
	settings Settings
	validate *validator.Validate
}

// ServiceOption configures InvoiceService and WorkOrderCompletedHandler
type ServiceOption func(*issuer)

// WithClock overrides the time source
func WithClock(now func() time.Time) ServiceOption {
	return func(i *issuer) {
		i.now = now
	}
}

func newIssuer(
	repo billing.InvoiceRepository,
	counter billing.SequenceCounter,
	publisher shared.MessagePublisher,
	logger *zap.Logger,
	opts []ServiceOption,
) issuer {
	if logger == nil {
		logger = zap.NewNop()
	}
	i := issuer{
		repo:      repo,
		counter:   counter,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&i)
	}
	return i
}

// NewInvoiceService creates a new invoice service
func NewInvoiceService(
	repo billing.InvoiceRepository,
	counter billing.SequenceCounter,
	publisher shared.MessagePublisher,
	settings Settings,
	logger *zap.Logger,
	opts ...ServiceOption,
) *InvoiceService {
	return &InvoiceService{
		issuer:   newIssuer(repo, counter, publisher, logger, opts),
		settings: settings,
		validate: newValidator(),
	}
}

// Create issues an invoice from explicit line items
func (s *InvoiceService) Create(ctx context.Context, input CreateInvoiceInput) (*InvoiceDTO, error) {
	if err := validateInput(s.validate, input); err != nil {
		return nil, err
	}

	items := make([]billing.LineItem, len(input.LineItems))
	for i, in := range input.LineItems {
		qty := in.Quantity
		if qty.IsZero() {
			qty = decimal.NewFromInt(1)
		}
		total := in.TotalCents
		if total == 0 {
			total = qty.Mul(decimal.NewFromInt(in.UnitPriceCents)).Round(0).IntPart()
		}
		items[i] = billing.LineItem{
			Type:           billing.LineItemType(in.Type),
			Description:    in.Description,
			Quantity:       qty,
			UnitPriceCents: in.UnitPriceCents,
			TotalCents:     total,
		}
	}

	req := issueRequest{
		WorkOrderID: input.WorkOrderID,
		CustomerID:  input.CustomerID,
		LineItems:   items,
		TaxRate:     s.settings.TaxRate,
		Currency:    s.settings.Currency,
		DueDays:     s.settings.DueDays,
		Notes:       input.Notes,
	}
	if input.TaxRate != nil {
		req.TaxRate = *input.TaxRate
	}
	if input.Currency != "" {
		req.Currency = input.Currency
	}
	if input.DueDays != nil {
		req.DueDays = int(*input.DueDays)
	}

	inv, err := s.issue(ctx, req)
	if err != nil {
		return nil, err
	}

	s.logger.Info("invoice created",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("customer_id", inv.CustomerID),
		zap.Int64("total_cents", inv.Total),
	)

	dto := ToInvoiceDTO(inv)
	return &dto, nil
}

// Get returns one invoice
func (s *InvoiceService) Get(ctx context.Context, id string) (*InvoiceDTO, error) {
	inv, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := ToInvoiceDTO(inv)
	return &dto, nil
}

// List returns one page of invoices, optionally filtered by status
func (s *InvoiceService) List(ctx context.Context, input ListInvoicesInput) (*InvoiceListResult, error) {
	if err := validateInput(s.validate, input); err != nil {
		return nil, err
	}

	page := shared.Page{Number: int(input.Page), Size: int(input.PageSize)}.Normalize()
	invoices, total, err := s.repo.FindAll(ctx, billing.InvoiceFilter{
		Status: billing.Status(input.Status),
		Page:   page,
	})
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}

	paged := shared.NewPaginated(toInvoiceDTOs(invoices), total, page)
	return &InvoiceListResult{
		Invoices:   paged.Items,
		Total:      paged.Total,
		Page:       int32(paged.Page),
		PageSize:   int32(paged.PageSize),
		TotalPages: int32(paged.TotalPages),
	}, nil
}

// UpdateStatus sets the invoice status. Only membership of the target in
// the status enum is checked.
func (s *InvoiceService) UpdateStatus(ctx context.Context, input UpdateInvoiceStatusInput) (*InvoiceDTO, error) {
	if err := validateInput(s.validate, input); err != nil {
		return nil, err
	}
	status, err := billing.ParseStatus(input.Status)
	if err != nil {
		return nil, err
	}

	inv, err := s.find(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	previous := inv.Status
	if err := inv.UpdateStatus(status, s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, inv, billing.InvoiceRepository.Update); err != nil {
		return nil, fmt.Errorf("update invoice %s: %w", inv.ID, err)
	}

	s.logger.Info("invoice status updated",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("from", previous.String()),
		zap.String("to", status.String()),
	)

	dto := ToInvoiceDTO(inv)
	return &dto, nil
}

// ListByCustomer returns every invoice of a customer
func (s *InvoiceService) ListByCustomer(ctx context.Context, customerID string) (*InvoicesResult, error) {
	if customerID == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "customer id is required")
	}
	invoices, err := s.repo.FindByCustomerID(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list invoices of customer %s: %w", customerID, err)
	}
	return &InvoicesResult{Invoices: toInvoiceDTOs(invoices)}, nil
}

// GetByWorkOrder returns the most recent invoice issued for a work order
func (s *InvoiceService) GetByWorkOrder(ctx context.Context, workOrderID string) (*InvoiceDTO, error) {
	if workOrderID == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "work order id is required")
	}
	inv, err := s.repo.FindByWorkOrderID(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	dto := ToInvoiceDTO(inv)
	return &dto, nil
}

func (s *InvoiceService) find(ctx context.Context, rawID string) (*billing.Invoice, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, shared.Newf(shared.CodeInvalidInput, "invalid invoice id %q", rawID)
	}
	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find invoice %s: %w", id, err)
	}
	return inv, nil
}
