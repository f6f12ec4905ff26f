// Package event relays published messages through a transactional outbox.
package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/autoshop/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// OutboxPublisher implements shared.MessagePublisher by writing each
// message to the outbox table. An OutboxProcessor delivers it later.
// Unlike the direct publishers it reports storage failures to the caller.
type OutboxPublisher struct {
	repo       *GormOutboxRepository
	maxRetries int
}

// NewOutboxPublisher creates a publisher writing through repo
func NewOutboxPublisher(repo *GormOutboxRepository) *OutboxPublisher {
	return &OutboxPublisher{repo: repo, maxRetries: shared.DefaultMaxRetries}
}

// WithMaxRetries sets how many failed sends an entry survives before it
// is dead. Values below 1 are ignored.
func (p *OutboxPublisher) WithMaxRetries(n int) *OutboxPublisher {
	if n > 0 {
		p.maxRetries = n
	}
	return p
}

// Publish stores payload for topic as a pending outbox entry
func (p *OutboxPublisher) Publish(ctx context.Context, topic string, payload any) error {
	entry, err := p.newEntry(topic, payload)
	if err != nil {
		return err
	}
	return p.repo.Save(ctx, entry)
}

// PublishWithTx stores payload inside tx, so the message is committed or
// rolled back together with the business change
func (p *OutboxPublisher) PublishWithTx(ctx context.Context, tx *gorm.DB, topic string, payload any) error {
	entry, err := p.newEntry(topic, payload)
	if err != nil {
		return err
	}
	return p.repo.WithTx(tx).Save(ctx, entry)
}

func (p *OutboxPublisher) newEntry(topic string, payload any) (*shared.OutboxEntry, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", topic, err)
	}
	entry := shared.NewOutboxEntry(topic, body)
	entry.MaxRetries = p.maxRetries
	return entry, nil
}

var _ shared.MessagePublisher = (*OutboxPublisher)(nil)
