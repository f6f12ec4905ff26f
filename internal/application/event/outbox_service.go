// Package event holds operator-facing use cases over the message outbox.
package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/autoshop/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OutboxEntryDTO is the read model of an outbox entry
type OutboxEntryDTO struct {
	ID          uuid.UUID       `json:"id"`
	Topic       string          `json:"topic"`
	Status      string          `json:"status"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	RetryCount  int             `json:"retry_count"`
	MaxRetries  int             `json:"max_retries"`
	LastError   string          `json:"last_error,omitempty"`
	NextRetryAt *time.Time      `json:"next_retry_at,omitempty"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func newOutboxEntryDTO(e *shared.OutboxEntry) OutboxEntryDTO {
	dto := OutboxEntryDTO{
		ID:          e.ID,
		Topic:       e.Topic,
		Status:      string(e.Status),
		RetryCount:  e.RetryCount,
		MaxRetries:  e.MaxRetries,
		LastError:   e.LastError,
		NextRetryAt: e.NextRetryAt,
		ProcessedAt: e.ProcessedAt,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
	if json.Valid(e.Payload) {
		dto.Payload = e.Payload
	}
	return dto
}

// OutboxFilter selects a page of entries
type OutboxFilter struct {
	Page     int `form:"page,omitempty" binding:"omitempty,min=1"`
	PageSize int `form:"page_size,omitempty" binding:"omitempty,min=1,max=100"`
}

// OutboxListResult is a page of dead entries
type OutboxListResult = shared.Paginated[OutboxEntryDTO]

// OutboxStatsDTO counts entries per status
type OutboxStatsDTO struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Dead       int64 `json:"dead"`
	Total      int64 `json:"total"`
}

// OutboxService backs the outbox admin endpoints
type OutboxService struct {
	repo shared.OutboxRepository
	log  *zap.Logger
	now  func() time.Time
}

// NewOutboxService creates an OutboxService over repo
func NewOutboxService(repo shared.OutboxRepository, log *zap.Logger) *OutboxService {
	return &OutboxService{repo: repo, log: log.Named("outbox-admin"), now: time.Now}
}

// GetDeadLetterEntries lists dead entries, most recently failed first
func (s *OutboxService) GetDeadLetterEntries(ctx context.Context, filter OutboxFilter) (*OutboxListResult, error) {
	page := shared.Page{Number: filter.Page, Size: filter.PageSize}.Normalize()
	entries, total, err := s.repo.FindDead(ctx, page.Number, page.Size)
	if err != nil {
		return nil, fmt.Errorf("list dead outbox entries: %w", err)
	}

	items := make([]OutboxEntryDTO, 0, len(entries))
	for _, e := range entries {
		items = append(items, newOutboxEntryDTO(e))
	}
	result := shared.NewPaginated(items, total, page)
	return &result, nil
}

// GetEntry returns one entry with its payload
func (s *OutboxService) GetEntry(ctx context.Context, id uuid.UUID) (*OutboxEntryDTO, error) {
	entry, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := newOutboxEntryDTO(entry)
	return &dto, nil
}

// RetryDeadEntry puts a dead entry back in the pending queue. Any other
// status is an invalid state.
func (s *OutboxService) RetryDeadEntry(ctx context.Context, id uuid.UUID) (*OutboxEntryDTO, error) {
	entry, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requeue(ctx, entry); err != nil {
		return nil, err
	}
	s.log.Info("dead entry requeued", zap.Stringer("entry_id", id), zap.String("topic", entry.Topic))
	dto := newOutboxEntryDTO(entry)
	return &dto, nil
}

// RetryAllDeadEntries requeues every dead entry and returns how many moved.
// Requeued entries leave the dead set, so the first page is always the
// next batch; a batch in which nothing moved ends the loop.
func (s *OutboxService) RetryAllDeadEntries(ctx context.Context) (int64, error) {
	var moved int64
	for {
		batch, _, err := s.repo.FindDead(ctx, 1, shared.MaxPageSize)
		if err != nil {
			return moved, fmt.Errorf("list dead outbox entries: %w", err)
		}

		var n int64
		for _, e := range batch {
			if err := s.requeue(ctx, e); err != nil {
				s.log.Warn("dead entry not requeued", zap.Stringer("entry_id", e.ID), zap.Error(err))
				continue
			}
			n++
		}
		moved += n
		if n == 0 || len(batch) < shared.MaxPageSize {
			break
		}
	}

	if moved > 0 {
		s.log.Info("dead entries requeued", zap.Int64("count", moved))
	}
	return moved, nil
}

// GetStats counts entries per status
func (s *OutboxService) GetStats(ctx context.Context) (*OutboxStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count outbox entries: %w", err)
	}

	stats := &OutboxStatsDTO{}
	slots := map[shared.OutboxStatus]*int64{
		shared.OutboxStatusPending:    &stats.Pending,
		shared.OutboxStatusProcessing: &stats.Processing,
		shared.OutboxStatusSent:       &stats.Sent,
		shared.OutboxStatusFailed:     &stats.Failed,
		shared.OutboxStatusDead:       &stats.Dead,
	}
	for status, n := range counts {
		if slot, ok := slots[status]; ok {
			*slot = n
		}
		stats.Total += n
	}
	return stats, nil
}

func (s *OutboxService) requeue(ctx context.Context, e *shared.OutboxEntry) error {
	if err := e.ResetForRetry(s.now()); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, e); err != nil {
		return fmt.Errorf("requeue outbox entry %s: %w", e.ID, err)
	}
	return nil
}

func (s *OutboxService) load(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	entry, err := s.repo.FindByID(ctx, id)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return nil, shared.Newf(shared.CodeNotFound, "outbox entry %s not found", id)
	case err != nil:
		return nil, fmt.Errorf("find outbox entry %s: %w", id, err)
	}
	return entry, nil
}
