package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/autoshop/backend/internal/domain/billing"
	"gorm.io/gorm"
)

// incrementSequenceSQL creates the counter on first use and increments it
// otherwise. The single statement is atomic under concurrent callers in
// both postgres and sqlite.
const incrementSequenceSQL = `INSERT INTO sequence_counters (name, value, updated_at) VALUES (?, 1, ?)
ON CONFLICT (name) DO UPDATE SET value = sequence_counters.value + 1, updated_at = excluded.updated_at
RETURNING value`

// SequenceCounter hands out strictly increasing values per name from the
// sequence_counters table
type SequenceCounter struct {
	db *gorm.DB
}

// NewSequenceCounter creates a database-backed sequence counter
func NewSequenceCounter(db *gorm.DB) *SequenceCounter {
	return &SequenceCounter{db: db}
}

// Next increments the named counter and returns the new value
func (c *SequenceCounter) Next(ctx context.Context, name string) (int64, error) {
	var value int64
	if err := c.db.WithContext(ctx).Raw(incrementSequenceSQL, name, time.Now()).Scan(&value).Error; err != nil {
		return 0, fmt.Errorf("increment sequence %s: %w", name, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("increment sequence %s: no value returned", name)
	}
	return value, nil
}

// Current returns the last value handed out for name, zero if unused
func (c *SequenceCounter) Current(ctx context.Context, name string) (int64, error) {
	var value int64
	err := c.db.WithContext(ctx).
		Table("sequence_counters").
		Select("value").
		Where("name = ?", name).
		Scan(&value).Error
	if err != nil {
		return 0, fmt.Errorf("read sequence %s: %w", name, err)
	}
	return value, nil
}

var _ billing.SequenceCounter = (*SequenceCounter)(nil)
