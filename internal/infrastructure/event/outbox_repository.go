package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/autoshop/backend/internal/domain/shared"
	"github.com/autoshop/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOutboxRepository stores outbox entries in outbox_events
type GormOutboxRepository struct {
	db *gorm.DB
}

// NewGormOutboxRepository creates a repository over db
func NewGormOutboxRepository(db *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: db}
}

// WithTx returns a repository writing through tx
func (r *GormOutboxRepository) WithTx(tx *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: tx}
}

func inStatus(statuses ...shared.OutboxStatus) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(statuses) == 1 {
			return db.Where("status = ?", statuses[0])
		}
		return db.Where("status IN ?", statuses)
	}
}

func (r *GormOutboxRepository) rows(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.OutboxEventModel{})
}

func (r *GormOutboxRepository) list(q *gorm.DB) ([]*shared.OutboxEntry, error) {
	var rows []models.OutboxEventModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]*shared.OutboxEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].Entry()
	}
	return entries, nil
}

// Save inserts entries. Saving nothing is a no-op.
func (r *GormOutboxRepository) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := make([]*models.OutboxEventModel, 0, len(entries))
	for _, e := range entries {
		batch = append(batch, models.NewOutboxEventModel(e))
	}
	if err := r.db.WithContext(ctx).Create(batch).Error; err != nil {
		return fmt.Errorf("save outbox entries: %w", err)
	}
	return nil
}

// FindPending returns up to limit pending entries, oldest first
func (r *GormOutboxRepository) FindPending(ctx context.Context, limit int) ([]*shared.OutboxEntry, error) {
	return r.list(r.rows(ctx).
		Scopes(inStatus(shared.OutboxStatusPending)).
		Order("created_at").
		Limit(limit))
}

// FindRetryable returns up to limit failed entries due at or before before
func (r *GormOutboxRepository) FindRetryable(ctx context.Context, before time.Time, limit int) ([]*shared.OutboxEntry, error) {
	return r.list(r.rows(ctx).
		Scopes(inStatus(shared.OutboxStatusFailed)).
		Where("next_retry_at <= ?", before).
		Order("next_retry_at").
		Limit(limit))
}

// MarkProcessing claims the claimable entries among ids and returns them.
// Rows another relay holds locked are skipped, so an entry is claimed by
// one relay at a time.
func (r *GormOutboxRepository) MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var claimed []*shared.OutboxEntry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := r.list(tx.Model(&models.OutboxEventModel{}).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Scopes(inStatus(shared.OutboxStatusPending, shared.OutboxStatusFailed)).
			Where("id IN ?", ids))
		if err != nil || len(locked) == 0 {
			return err
		}

		now := time.Now()
		lockedIDs := make([]uuid.UUID, 0, len(locked))
		for _, e := range locked {
			if err := e.MarkProcessing(now); err != nil {
				return err
			}
			lockedIDs = append(lockedIDs, e.ID)
		}
		claimed = locked
		return tx.Model(&models.OutboxEventModel{}).
			Where("id IN ?", lockedIDs).
			Updates(map[string]any{"status": shared.OutboxStatusProcessing, "updated_at": now}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("claim outbox entries: %w", err)
	}
	return claimed, nil
}

// Update overwrites the stored entry with entry's state
func (r *GormOutboxRepository) Update(ctx context.Context, entry *shared.OutboxEntry) error {
	entry.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(models.NewOutboxEventModel(entry)).Error
}

// DeleteOlderThan removes sent entries processed before before
func (r *GormOutboxRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Scopes(inStatus(shared.OutboxStatusSent)).
		Where("processed_at < ?", before).
		Delete(&models.OutboxEventModel{})
	return res.RowsAffected, res.Error
}

// FindDead returns one page of dead entries, most recently failed first,
// and the number of dead entries overall
func (r *GormOutboxRepository) FindDead(ctx context.Context, page, pageSize int) ([]*shared.OutboxEntry, int64, error) {
	var total int64
	if err := r.rows(ctx).Scopes(inStatus(shared.OutboxStatusDead)).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	p := shared.Page{Number: page, Size: pageSize}.Normalize()
	entries, err := r.list(r.rows(ctx).
		Scopes(inStatus(shared.OutboxStatusDead)).
		Order("updated_at DESC").
		Offset(p.Offset()).
		Limit(p.Size))
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// FindByID returns shared.ErrNotFound for an unknown id
func (r *GormOutboxRepository) FindByID(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	var row models.OutboxEventModel
	err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, shared.ErrNotFound
	case err != nil:
		return nil, err
	}
	return row.Entry(), nil
}

// CountByStatus returns how many entries sit in each status. Statuses
// without entries are absent.
func (r *GormOutboxRepository) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	var groups []struct {
		Status shared.OutboxStatus
		N      int64
	}
	if err := r.rows(ctx).Select("status, COUNT(*) AS n").Group("status").Scan(&groups).Error; err != nil {
		return nil, err
	}
	counts := make(map[shared.OutboxStatus]int64, len(groups))
	for _, g := range groups {
		counts[g.Status] = g.N
	}
	return counts, nil
}

var _ shared.OutboxRepository = (*GormOutboxRepository)(nil)
