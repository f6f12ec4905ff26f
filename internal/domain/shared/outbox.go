package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus is the relay state of an outbox entry
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusSent       OutboxStatus = "SENT"
	OutboxStatusFailed     OutboxStatus = "FAILED"
	OutboxStatusDead       OutboxStatus = "DEAD"
)

const (
	DefaultMaxRetries  = 5
	DefaultBaseBackoff = time.Second
	MaxBackoff         = 10 * time.Minute
)

var (
	ErrOutboxNotClaimable = NewDomainError(CodeInvalidState, "only pending or failed entries can be claimed")
	ErrOutboxNotDead      = NewDomainError(CodeInvalidState, "can only retry dead letter entries")
)

// OutboxEntry is an encoded event stored in the same database as the
// invoices and relayed to the broker later. A failed send schedules a retry
// until MaxRetries is reached, then the entry is dead until an operator
// requeues it.
type OutboxEntry struct {
	ID          uuid.UUID
	Topic       string
	Payload     []byte
	Status      OutboxStatus
	RetryCount  int
	MaxRetries  int
	LastError   string
	NextRetryAt *time.Time
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewOutboxEntry creates a pending entry for payload
func NewOutboxEntry(topic string, payload []byte) *OutboxEntry {
	now := time.Now()
	return &OutboxEntry{
		ID:         uuid.New(),
		Topic:      topic,
		Payload:    payload,
		Status:     OutboxStatusPending,
		MaxRetries: DefaultMaxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// RetryBackoff is the wait before attempt n+1 after n failures: one second
// doubled per failure, capped at MaxBackoff.
func RetryBackoff(failures int) time.Duration {
	if failures < 1 {
		return DefaultBaseBackoff
	}
	d := DefaultBaseBackoff
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= MaxBackoff {
			return MaxBackoff
		}
	}
	return d
}

// CanRetry reports whether a failed entry still has attempts left
func (e *OutboxEntry) CanRetry() bool {
	return e.Status == OutboxStatusFailed && e.RetryCount < e.MaxRetries
}

// IsDead reports whether the entry has exhausted its retries
func (e *OutboxEntry) IsDead() bool {
	return e.Status == OutboxStatusDead
}

// MarkProcessing claims a pending or failed entry for a relay
func (e *OutboxEntry) MarkProcessing(at time.Time) error {
	switch e.Status {
	case OutboxStatusPending, OutboxStatusFailed:
	default:
		return ErrOutboxNotClaimable
	}
	e.Status = OutboxStatusProcessing
	e.UpdatedAt = at
	return nil
}

// MarkSent records a successful relay at the given time
func (e *OutboxEntry) MarkSent(at time.Time) {
	e.Status = OutboxStatusSent
	e.ProcessedAt = &at
	e.NextRetryAt = nil
	e.UpdatedAt = at
}

// MarkFailed counts a failed attempt. The entry is dead once RetryCount
// reaches MaxRetries, otherwise it becomes due again after RetryBackoff.
func (e *OutboxEntry) MarkFailed(reason string, at time.Time) {
	e.RetryCount++
	e.LastError = reason
	e.UpdatedAt = at

	if e.RetryCount >= e.MaxRetries {
		e.Status = OutboxStatusDead
		e.NextRetryAt = nil
		return
	}
	e.Status = OutboxStatusFailed
	next := at.Add(RetryBackoff(e.RetryCount))
	e.NextRetryAt = &next
}

// ResetForRetry puts a dead entry back in the pending queue with a fresh
// retry budget
func (e *OutboxEntry) ResetForRetry(at time.Time) error {
	if !e.IsDead() {
		return ErrOutboxNotDead
	}
	e.Status = OutboxStatusPending
	e.RetryCount = 0
	e.LastError = ""
	e.NextRetryAt = nil
	e.UpdatedAt = at
	return nil
}

// OutboxRepository stores outbox entries next to the invoices
type OutboxRepository interface {
	Save(ctx context.Context, entries ...*OutboxEntry) error
	FindPending(ctx context.Context, limit int) ([]*OutboxEntry, error)
	// FindRetryable returns failed entries whose NextRetryAt is before the given time
	FindRetryable(ctx context.Context, before time.Time, limit int) ([]*OutboxEntry, error)
	FindDead(ctx context.Context, page, pageSize int) ([]*OutboxEntry, int64, error)
	FindByID(ctx context.Context, id uuid.UUID) (*OutboxEntry, error)
	// MarkProcessing claims the given entries and returns the ones this caller won
	MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*OutboxEntry, error)
	Update(ctx context.Context, entry *OutboxEntry) error
	// DeleteOlderThan removes sent entries processed before the given time
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[OutboxStatus]int64, error)
}
