package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/autoshop/backend/internal/domain/billing"
	"github.com/autoshop/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(repo *MockInvoiceRepository, pub *MockPublisher) *InvoiceService {
	return NewInvoiceService(repo, newMemoryCounter(), pub, DefaultSettings(), zap.NewNop(), WithClock(fixedClock))
}

func draftInvoice(t *testing.T) *billing.Invoice {
	t.Helper()
	inv, err := billing.NewInvoice(billing.NewInvoiceParams{
		InvoiceNumber: "INV-2026-00001",
		WorkOrderID:   "wo-1",
		CustomerID:    "cust-1",
		LineItems:     []billing.LineItem{{Type: billing.LineItemPart, TotalCents: 100}},
		TaxRate:       billing.DefaultTaxRate,
		Currency:      "EUR",
		IssuedAt:      fixedNow,
		DueDays:       30,
	})
	require.NoError(t, err)
	inv.PullDomainEvents()
	return inv
}

func TestInvoiceService_Create(t *testing.T) {
	t.Run("creates with defaults and computes missing totals", func(t *testing.T) {
		repo := new(MockInvoiceRepository)
		pub := new(MockPublisher)
		repo.On("Save", mock.Anything, mock.Anything).Return(nil)
		pub.On("Publish", mock.Anything, billing.TopicInvoiceCreated, mock.Anything).Return(nil)

		dto, err := newService(repo, pub).Create(context.Background(), CreateInvoiceInput{
			CustomerID: "cust-1",
			LineItems: []LineItemInput{
				{Type: "part", Description: "Brake pads", Quantity: decimal.NewFromInt(2), UnitPriceCents: 2500},
				{Type: "labor", Description: "Fitting", UnitPriceCents: 5000, TotalCents: 5000},
			},
		})
		require.NoError(t, err)

		assert.Equal(t, "INV-2026-00001", dto.InvoiceNumber)
		assert.Equal(t, "draft", dto.Status)
		assert.Equal(t, int64(10000), dto.SubtotalCents)
		assert.Equal(t, int64(2100), dto.TaxCents)
		assert.Equal(t, int64(12100), dto.TotalCents)
		assert.Equal(t, "0.21", dto.TaxRate)
		assert.Equal(t, "EUR", dto.Currency)
		assert.Equal(t, "1", dto.LineItems[1].Quantity.String())
		pub.AssertExpectations(t)
	})

	t.Run("overrides from input", func(t *testing.T) {
		repo := new(MockInvoiceRepository)
		pub := new(MockPublisher)
		repo.On("Save", mock.Anything, mock.Anything).Return(nil)
		pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		rate := decimal.RequireFromString("0.1")
		due := int32(14)
		dto, err := newService(repo, pub).Create(context.Background(), CreateInvoiceInput{
			CustomerID: "cust-1",
			LineItems:  []LineItemInput{{Type: "part", Description: "Wiper", TotalCents: 1000}},
			TaxRate:    &rate,
			Currency:   "usd",
			DueDays:    &due,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(100), dto.TaxCents)
		assert.Equal(t, "USD", dto.Currency)
		assert.Equal(t, fixedNow.AddDate(0, 0, 14), dto.DueAt)
	})

	t.Run("validation failure", func(t *testing.T) {
		repo := new(MockInvoiceRepository)
		_, err := newService(repo, new(MockPublisher)).Create(context.Background(), CreateInvoiceInput{
			LineItems: []LineItemInput{{Type: "fee"}},
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
		assert.Contains(t, err.Error(), "customer_id: is required")
		assert.Contains(t, err.Error(), "line_items[0].type: must be one of")
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}

func TestInvoiceService_Get(t *testing.T) {
	repo := new(MockInvoiceRepository)
	svc := newService(repo, new(MockPublisher))
	inv := draftInvoice(t)

	repo.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)
	missing := uuid.New()
	repo.On("FindByID", mock.Anything, missing).Return(nil, shared.ErrNotFound)

	dto, err := svc.Get(context.Background(), inv.ID.String())
	require.NoError(t, err)
	assert.Equal(t, inv.InvoiceNumber, dto.InvoiceNumber)

	_, err = svc.Get(context.Background(), missing.String())
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	_, err = svc.Get(context.Background(), "not-a-uuid")
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
}

func TestInvoiceService_List(t *testing.T) {
	repo := new(MockInvoiceRepository)
	svc := newService(repo, new(MockPublisher))
	inv := draftInvoice(t)

	repo.On("FindAll", mock.Anything, billing.InvoiceFilter{
		Status: billing.StatusDraft,
		Page:   shared.Page{Number: 2, Size: 1},
	}).Return([]billing.Invoice{*inv}, int64(3), nil)

	result, err := svc.List(context.Background(), ListInvoicesInput{Status: "draft", Page: 2, PageSize: 1})
	require.NoError(t, err)
	assert.Len(t, result.Invoices, 1)
	assert.Equal(t, int64(3), result.Total)
	assert.Equal(t, int32(3), result.TotalPages)

	_, err = svc.List(context.Background(), ListInvoicesInput{Status: "void"})
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
}

func TestInvoiceService_UpdateStatus(t *testing.T) {
	t.Run("paid publishes invoice.paid", func(t *testing.T) {
		repo := new(MockInvoiceRepository)
		pub := new(MockPublisher)
		inv := draftInvoice(t)

		repo.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)
		repo.On("Update", mock.Anything, inv).Return(nil)
		pub.On("Publish", mock.Anything, billing.TopicInvoicePaid, mock.AnythingOfType("*billing.InvoicePaidEvent")).Return(nil)

		dto, err := newService(repo, pub).UpdateStatus(context.Background(), UpdateInvoiceStatusInput{
			ID: inv.ID.String(), Status: "paid",
		})
		require.NoError(t, err)
		assert.Equal(t, "paid", dto.Status)
		require.NotNil(t, dto.PaidAt)
		assert.Equal(t, fixedNow, *dto.PaidAt)
		pub.AssertExpectations(t)
	})

	t.Run("any known status is accepted", func(t *testing.T) {
		repo := new(MockInvoiceRepository)
		inv := draftInvoice(t)
		require.NoError(t, inv.UpdateStatus(billing.StatusPaid, fixedNow))
		inv.PullDomainEvents()

		repo.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)
		repo.On("Update", mock.Anything, inv).Return(nil)

		dto, err := newService(repo, new(MockPublisher)).UpdateStatus(context.Background(), UpdateInvoiceStatusInput{
			ID: inv.ID.String(), Status: "draft",
		})
		require.NoError(t, err)
		assert.Equal(t, "draft", dto.Status)
	})

	t.Run("unknown status is rejected before lookup", func(t *testing.T) {
		repo := new(MockInvoiceRepository)
		_, err := newService(repo, new(MockPublisher)).UpdateStatus(context.Background(), UpdateInvoiceStatusInput{
			ID: uuid.NewString(), Status: "refunded",
		})
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
		repo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})
}

func TestInvoiceService_Lookups(t *testing.T) {
	repo := new(MockInvoiceRepository)
	svc := newService(repo, new(MockPublisher))
	inv := draftInvoice(t)

	repo.On("FindByCustomerID", mock.Anything, "cust-1").Return([]billing.Invoice{*inv}, nil)
	repo.On("FindByWorkOrderID", mock.Anything, "wo-1").Return(inv, nil)
	repo.On("FindByWorkOrderID", mock.Anything, "wo-2").Return(nil, shared.ErrNotFound)

	byCustomer, err := svc.ListByCustomer(context.Background(), "cust-1")
	require.NoError(t, err)
	assert.Len(t, byCustomer.Invoices, 1)

	byWorkOrder, err := svc.GetByWorkOrder(context.Background(), "wo-1")
	require.NoError(t, err)
	assert.Equal(t, inv.ID.String(), byWorkOrder.ID)

	_, err = svc.GetByWorkOrder(context.Background(), "wo-2")
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	_, err = svc.ListByCustomer(context.Background(), "")
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
}

func TestInvoiceService_TransactionScope(t *testing.T) {
	input := CreateInvoiceInput{
		CustomerID: "cust-1",
		LineItems:  []LineItemInput{{Type: "part", Description: "Wiper", UnitPriceCents: 1200}},
	}

	t.Run("writes and publishes inside the scope", func(t *testing.T) {
		direct := new(MockInvoiceRepository)
		scoped := new(MockInvoiceRepository)
		outbox := new(MockPublisher)
		scoped.On("Save", mock.Anything, mock.Anything).Return(nil)
		outbox.On("Publish", mock.Anything, billing.TopicInvoiceCreated, mock.Anything).Return(nil)
		scope := &stubScope{repo: scoped, publisher: outbox}

		svc := NewInvoiceService(direct, newMemoryCounter(), new(MockPublisher), DefaultSettings(), zap.NewNop(),
			WithClock(fixedClock), WithTransactionScope(scope))
		_, err := svc.Create(context.Background(), input)

		require.NoError(t, err)
		assert.True(t, scope.committed)
		direct.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		scoped.AssertExpectations(t)
		outbox.AssertExpectations(t)
	})

	t.Run("publish failure fails the create", func(t *testing.T) {
		scoped := new(MockInvoiceRepository)
		outbox := new(MockPublisher)
		scoped.On("Save", mock.Anything, mock.Anything).Return(nil)
		outbox.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("outbox unavailable"))
		scope := &stubScope{repo: scoped, publisher: outbox}

		svc := NewInvoiceService(new(MockInvoiceRepository), newMemoryCounter(), new(MockPublisher), DefaultSettings(), zap.NewNop(),
			WithTransactionScope(scope))
		dto, err := svc.Create(context.Background(), input)

		require.Error(t, err)
		assert.Nil(t, dto)
		assert.True(t, scope.rolledBack)
	})
}
