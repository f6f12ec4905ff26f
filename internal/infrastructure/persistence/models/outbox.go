package models

import (
	"time"

	"github.com/autoshop/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// OutboxEventModel is a row of outbox_events. The partial indexes the relay
// queries by are created by migration 000003.
type OutboxEventModel struct {
	ID          uuid.UUID           `gorm:"type:uuid;primaryKey"`
	Topic       string              `gorm:"size:255;not null"`
	Payload     []byte              `gorm:"type:jsonb;not null"`
	Status      shared.OutboxStatus `gorm:"size:20;not null;index"`
	RetryCount  int                 `gorm:"not null"`
	MaxRetries  int                 `gorm:"not null"`
	LastError   string              `gorm:"type:text"`
	NextRetryAt *time.Time
	ProcessedAt *time.Time
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (OutboxEventModel) TableName() string {
	return "outbox_events"
}

// NewOutboxEventModel copies e into a row. The model mirrors
// shared.OutboxEntry field for field, so the two convert directly.
func NewOutboxEventModel(e *shared.OutboxEntry) *OutboxEventModel {
	m := OutboxEventModel(*e)
	return &m
}

// Entry rebuilds the domain entry
func (m *OutboxEventModel) Entry() *shared.OutboxEntry {
	e := shared.OutboxEntry(*m)
	return &e
}
