package event

import (
	"context"
	"errors"
	"testing"

	"github.com/autoshop/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type paidPayload struct {
	InvoiceID  string `json:"invoice_id"`
	TotalCents int64  `json:"total_cents"`
}

func TestOutboxPublisher_Publish(t *testing.T) {
	repo := NewGormOutboxRepository(setupTestDB(t))
	publisher := NewOutboxPublisher(repo)
	ctx := context.Background()

	require.NoError(t, publisher.Publish(ctx, "invoice.paid", paidPayload{InvoiceID: "inv-1", TotalCents: 10890}))

	pending, err := repo.FindPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "invoice.paid", pending[0].Topic)
	assert.Equal(t, shared.OutboxStatusPending, pending[0].Status)
	assert.JSONEq(t, `{"invoice_id":"inv-1","total_cents":10890}`, string(pending[0].Payload))
}

func TestOutboxPublisher_WithMaxRetries(t *testing.T) {
	repo := NewGormOutboxRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, NewOutboxPublisher(repo).WithMaxRetries(2).Publish(ctx, "invoice.paid", paidPayload{InvoiceID: "inv-1"}))
	require.NoError(t, NewOutboxPublisher(repo).WithMaxRetries(0).Publish(ctx, "invoice.paid", paidPayload{InvoiceID: "inv-2"}))

	pending, err := repo.FindPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	retries := []int{pending[0].MaxRetries, pending[1].MaxRetries}
	assert.ElementsMatch(t, []int{2, shared.DefaultMaxRetries}, retries)
}

func TestOutboxPublisher_UnencodablePayload(t *testing.T) {
	publisher := NewOutboxPublisher(NewGormOutboxRepository(setupTestDB(t)))

	err := publisher.Publish(context.Background(), "invoice.paid", make(chan int))
	assert.Error(t, err)
}

func TestOutboxPublisher_PublishWithTx(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOutboxRepository(db)
	publisher := NewOutboxPublisher(repo)
	ctx := context.Background()

	t.Run("rolled back with the transaction", func(t *testing.T) {
		errAbort := errors.New("abort")
		err := db.Transaction(func(tx *gorm.DB) error {
			require.NoError(t, publisher.PublishWithTx(ctx, tx, "invoice.created", paidPayload{InvoiceID: "inv-1"}))
			return errAbort
		})
		require.ErrorIs(t, err, errAbort)

		pending, err := repo.FindPending(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("committed with the transaction", func(t *testing.T) {
		err := db.Transaction(func(tx *gorm.DB) error {
			return publisher.PublishWithTx(ctx, tx, "invoice.created", paidPayload{InvoiceID: "inv-2"})
		})
		require.NoError(t, err)

		pending, err := repo.FindPending(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, pending, 1)
	})
}
