//go:build integration

package persistence

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/autoshop/backend/internal/domain/billing"
	"github.com/autoshop/backend/internal/domain/shared"
	"github.com/autoshop/backend/internal/infrastructure/migration"
)

// newPostgresDB starts a throwaway postgres and applies the embedded migrations
func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("billing_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	sqlDB, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	m, err := migration.New(sqlDB, "", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())
	require.NoError(t, m.Close())

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if d, err := db.DB(); err == nil {
			_ = d.Close()
		}
	})
	return db
}

func TestPostgres_SequenceCounterIsContiguousUnderConcurrency(t *testing.T) {
	counter := NewSequenceCounter(newPostgresDB(t))
	ctx := context.Background()

	const callers = 50
	values := make([]int64, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := counter.Next(ctx, billing.CounterKey(2026))
			assert.NoError(t, err)
			values[i] = v
		}()
	}
	wg.Wait()

	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	for i, v := range values {
		assert.Equal(t, int64(i+1), v)
	}

	current, err := counter.Current(ctx, billing.CounterKey(2026))
	require.NoError(t, err)
	assert.Equal(t, int64(callers), current)
}

func TestPostgres_InvoiceRoundTrip(t *testing.T) {
	repo := NewGormInvoiceRepository(newPostgresDB(t))
	ctx := context.Background()
	issuedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	inv, err := billing.NewInvoice(billing.NewInvoiceParams{
		InvoiceNumber: "INV-2026-00001",
		WorkOrderID:   "wo-1",
		CustomerID:    "cust-1",
		LineItems: []billing.LineItem{
			{Type: billing.LineItemPart, Description: "Oil filter", Quantity: decimal.NewFromInt(1), UnitPriceCents: 1500, TotalCents: 1500},
			{Type: billing.LineItemLabor, Description: "Oil change", Quantity: decimal.NewFromInt(1), UnitPriceCents: 7500, TotalCents: 7500},
		},
		TaxRate:  decimal.RequireFromString("0.21"),
		Currency: "eur",
		IssuedAt: issuedAt,
		DueDays:  30,
	})
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, inv))

	found, err := repo.FindByWorkOrderID(ctx, "wo-1")
	require.NoError(t, err)
	assert.Equal(t, inv.ID, found.ID)
	assert.Equal(t, int64(9000), found.Subtotal)
	assert.Equal(t, int64(1890), found.TaxAmount)
	assert.Equal(t, int64(10890), found.Total)
	assert.Equal(t, "EUR", found.Currency)
	assert.True(t, found.TaxRate.Equal(decimal.RequireFromString("0.21")))
	require.Len(t, found.LineItems, 2)
	assert.Equal(t, billing.LineItemLabor, found.LineItems[1].Type)

	require.NoError(t, found.UpdateStatus(billing.StatusPaid, issuedAt.Add(time.Hour)))
	require.NoError(t, repo.Update(ctx, found))

	paid, total, err := repo.FindAll(ctx, billing.InvoiceFilter{
		Status: billing.StatusPaid,
		Page:   shared.Page{Number: 1, Size: 20},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, paid, 1)
	require.NotNil(t, paid[0].PaidAt)
}

func TestPostgres_DuplicateInvoiceNumber(t *testing.T) {
	repo := NewGormInvoiceRepository(newPostgresDB(t))
	ctx := context.Background()

	newInvoice := func() *billing.Invoice {
		inv, err := billing.NewInvoice(billing.NewInvoiceParams{
			InvoiceNumber: "INV-2026-00007",
			CustomerID:    "cust-1",
			TaxRate:       decimal.Zero,
			Currency:      "EUR",
		})
		require.NoError(t, err)
		return inv
	}

	require.NoError(t, repo.Save(ctx, newInvoice()))
	err := repo.Save(ctx, newInvoice())
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
}
