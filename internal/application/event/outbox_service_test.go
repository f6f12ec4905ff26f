package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/autoshop/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memoryOutboxRepo is an in-memory shared.OutboxRepository
type memoryOutboxRepo struct {
	entries map[uuid.UUID]*shared.OutboxEntry
	err     error
}

func newMemoryOutboxRepo() *memoryOutboxRepo {
	return &memoryOutboxRepo{entries: make(map[uuid.UUID]*shared.OutboxEntry)}
}

func (r *memoryOutboxRepo) Save(_ context.Context, entries ...*shared.OutboxEntry) error {
	for _, e := range entries {
		r.entries[e.ID] = e
	}
	return nil
}

func (r *memoryOutboxRepo) FindPending(context.Context, int) ([]*shared.OutboxEntry, error) {
	return nil, nil
}

func (r *memoryOutboxRepo) FindRetryable(context.Context, time.Time, int) ([]*shared.OutboxEntry, error) {
	return nil, nil
}

func (r *memoryOutboxRepo) FindDead(_ context.Context, page, pageSize int) ([]*shared.OutboxEntry, int64, error) {
	if r.err != nil {
		return nil, 0, r.err
	}
	var dead []*shared.OutboxEntry
	for _, e := range r.entries {
		if e.Status == shared.OutboxStatusDead {
			dead = append(dead, e)
		}
	}
	total := int64(len(dead))
	start := (page - 1) * pageSize
	if start >= len(dead) {
		return nil, total, nil
	}
	end := min(start+pageSize, len(dead))
	return dead[start:end], total, nil
}

func (r *memoryOutboxRepo) FindByID(_ context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	if e, ok := r.entries[id]; ok {
		return e, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memoryOutboxRepo) MarkProcessing(context.Context, []uuid.UUID) ([]*shared.OutboxEntry, error) {
	return nil, nil
}

func (r *memoryOutboxRepo) Update(_ context.Context, entry *shared.OutboxEntry) error {
	r.entries[entry.ID] = entry
	return nil
}

func (r *memoryOutboxRepo) DeleteOlderThan(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (r *memoryOutboxRepo) CountByStatus(context.Context) (map[shared.OutboxStatus]int64, error) {
	if r.err != nil {
		return nil, r.err
	}
	counts := make(map[shared.OutboxStatus]int64)
	for _, e := range r.entries {
		counts[e.Status]++
	}
	return counts, nil
}

func deadEntry(topic string) *shared.OutboxEntry {
	e := shared.NewOutboxEntry(topic, []byte(`{}`))
	e.MaxRetries = 1
	e.MarkFailed("sidecar rejected publish", time.Now())
	return e
}

func TestOutboxService_GetDeadLetterEntries(t *testing.T) {
	repo := newMemoryOutboxRepo()
	service := NewOutboxService(repo, zap.NewNop())

	for i := 0; i < 5; i++ {
		_ = repo.Save(context.Background(), deadEntry("invoice.created"))
	}
	_ = repo.Save(context.Background(), shared.NewOutboxEntry("invoice.paid", []byte(`{}`)))

	result, err := service.GetDeadLetterEntries(context.Background(), OutboxFilter{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.Total)
	assert.Equal(t, 3, result.TotalPages)
	require.Len(t, result.Items, 2)
	for _, entry := range result.Items {
		assert.Equal(t, "DEAD", entry.Status)
		assert.Equal(t, "invoice.created", entry.Topic)
		assert.Equal(t, "sidecar rejected publish", entry.LastError)
	}
}

func TestOutboxService_RetryDeadEntry(t *testing.T) {
	repo := newMemoryOutboxRepo()
	service := NewOutboxService(repo, zap.NewNop())
	ctx := context.Background()

	dead := deadEntry("invoice.created")
	_ = repo.Save(ctx, dead)

	dto, err := service.RetryDeadEntry(ctx, dead.ID)
	require.NoError(t, err)
	assert.Equal(t, "PENDING", dto.Status)
	assert.Zero(t, dto.RetryCount)
	assert.Empty(t, dto.LastError)

	t.Run("not found", func(t *testing.T) {
		_, err := service.RetryDeadEntry(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("entry is not dead", func(t *testing.T) {
		pending := shared.NewOutboxEntry("invoice.paid", []byte(`{}`))
		_ = repo.Save(ctx, pending)

		_, err := service.RetryDeadEntry(ctx, pending.ID)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})
}

func TestOutboxService_RetryAllDeadEntries(t *testing.T) {
	repo := newMemoryOutboxRepo()
	service := NewOutboxService(repo, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = repo.Save(ctx, deadEntry("invoice.created"))
	}

	count, err := service.RetryAllDeadEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	stats, err := service.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Pending)
	assert.Zero(t, stats.Dead)
}

func TestOutboxService_GetStats(t *testing.T) {
	repo := newMemoryOutboxRepo()
	service := NewOutboxService(repo, zap.NewNop())
	ctx := context.Background()

	sent := shared.NewOutboxEntry("invoice.created", []byte(`{}`))
	sent.MarkSent(time.Now())
	_ = repo.Save(ctx, sent, deadEntry("invoice.paid"), shared.NewOutboxEntry("invoice.paid", []byte(`{}`)))

	stats, err := service.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Sent)
	assert.Equal(t, int64(1), stats.Dead)
	assert.Equal(t, int64(1), stats.Pending)
	assert.Equal(t, int64(3), stats.Total)

	repo.err = errors.New("database is down")
	_, err = service.GetStats(ctx)
	assert.Error(t, err)
}
