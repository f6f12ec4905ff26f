package event

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/autoshop/backend/internal/domain/shared"
)

// Sender delivers one message and reports whether it was accepted.
// pubsub.SidecarPublisher and pubsub.RabbitMQPublisher both implement it.
type Sender interface {
	Send(ctx context.Context, topic string, payload any) error
}

// OutboxProcessorConfig tunes the relay and the sent-entry sweeper
type OutboxProcessorConfig struct {
	BatchSize        int
	PollInterval     time.Duration
	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
}

// DefaultOutboxProcessorConfig relays up to 100 entries every 5s and keeps
// sent entries for a week
func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:        100,
		PollInterval:     5 * time.Second,
		CleanupEnabled:   true,
		CleanupRetention: 7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

func (c OutboxProcessorConfig) withDefaults() OutboxProcessorConfig {
	def := DefaultOutboxProcessorConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = def.CleanupInterval
	}
	if c.CleanupRetention <= 0 {
		c.CleanupRetention = def.CleanupRetention
	}
	return c
}

// BatchResult counts what one relay pass did
type BatchResult struct {
	Sent   int
	Failed int
	Dead   int
}

func (r BatchResult) total() int { return r.Sent + r.Failed + r.Dead }

// ProcessorOption customizes an OutboxProcessor
type ProcessorOption func(*OutboxProcessor)

// WithProcessorClock replaces time.Now for retry scheduling and cleanup
func WithProcessorClock(now func() time.Time) ProcessorOption {
	return func(p *OutboxProcessor) { p.now = now }
}

// WithProcessorMeter counts relayed entries per outcome on
// billing.outbox.relayed
func WithProcessorMeter(meter metric.Meter) ProcessorOption {
	return func(p *OutboxProcessor) {
		counter, err := meter.Int64Counter("billing.outbox.relayed",
			metric.WithDescription("Outbox entries relayed to the broker, by outcome"))
		if err == nil {
			p.relayed = counter
		}
	}
}

// OutboxProcessor relays outbox entries to a Sender in the background.
// Failed sends are retried with exponential backoff until the entry is dead.
type OutboxProcessor struct {
	repo    shared.OutboxRepository
	sender  Sender
	config  OutboxProcessorConfig
	logger  *zap.Logger
	now     func() time.Time
	relayed metric.Int64Counter

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOutboxProcessor builds a relay over repo. Zero config fields take
// their defaults.
func NewOutboxProcessor(repo shared.OutboxRepository, sender Sender, config OutboxProcessorConfig, logger *zap.Logger, opts ...ProcessorOption) *OutboxProcessor {
	p := &OutboxProcessor{
		repo:   repo,
		sender: sender,
		config: config.withDefaults(),
		logger: logger.Named("outbox"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the relay loop and, when enabled, the sweeper. Both stop
// when ctx is cancelled or Stop is called.
func (p *OutboxProcessor) Start(ctx context.Context) error {
	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Go(func() {
		every(ctx, p.config.PollInterval, func() { p.ProcessBatch(ctx) })
	})
	if p.config.CleanupEnabled {
		p.wg.Go(func() {
			every(ctx, p.config.CleanupInterval, func() { p.Cleanup(ctx) })
		})
	}

	p.logger.Info("outbox processor started",
		zap.Int("batch_size", p.config.BatchSize),
		zap.Duration("poll_interval", p.config.PollInterval),
		zap.Bool("cleanup", p.config.CleanupEnabled),
	)
	return nil
}

// Stop cancels the loops and waits for the batch in flight, or for ctx
func (p *OutboxProcessor) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("outbox processor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func every(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// ProcessBatch relays one batch of pending entries, then one batch of
// failed entries whose retry is due
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) BatchResult {
	var result BatchResult

	pending, err := p.repo.FindPending(ctx, p.config.BatchSize)
	if err != nil {
		p.logger.Error("failed to find pending entries", zap.Error(err))
		return result
	}
	p.relay(ctx, pending, &result)

	due, err := p.repo.FindRetryable(ctx, p.now(), p.config.BatchSize)
	if err != nil {
		p.logger.Error("failed to find retryable entries", zap.Error(err))
		return result
	}
	p.relay(ctx, due, &result)

	if result.total() > 0 {
		p.logger.Debug("outbox batch relayed",
			zap.Int("sent", result.Sent),
			zap.Int("failed", result.Failed),
			zap.Int("dead", result.Dead),
		)
	}
	return result
}

func (p *OutboxProcessor) relay(ctx context.Context, entries []*shared.OutboxEntry, result *BatchResult) {
	if len(entries) == 0 {
		return
	}
	ids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}

	claimed, err := p.repo.MarkProcessing(ctx, ids)
	if err != nil {
		p.logger.Error("failed to claim outbox entries", zap.Error(err))
		return
	}
	for _, entry := range claimed {
		outcome := p.send(ctx, entry)
		switch outcome {
		case "sent":
			result.Sent++
		case "dead":
			result.Dead++
		default:
			result.Failed++
		}
		if p.relayed != nil {
			p.relayed.Add(ctx, 1, metric.WithAttributes(
				attribute.String("outcome", outcome),
				attribute.String("topic", entry.Topic),
			))
		}
	}
}

// send delivers one claimed entry and writes back its new state. It returns
// the outcome: sent, failed or dead.
func (p *OutboxProcessor) send(ctx context.Context, entry *shared.OutboxEntry) string {
	log := p.logger.With(
		zap.String("entry_id", entry.ID.String()),
		zap.String("topic", entry.Topic),
	)

	sendErr := p.sender.Send(ctx, entry.Topic, json.RawMessage(entry.Payload))
	outcome := "sent"
	if sendErr == nil {
		entry.MarkSent(p.now())
	} else {
		entry.MarkFailed(sendErr.Error(), p.now())
		outcome = "failed"
		if entry.IsDead() {
			outcome = "dead"
			log.Warn("outbox entry moved to dead letter",
				zap.Int("retry_count", entry.RetryCount),
				zap.Error(sendErr),
			)
		} else {
			log.Warn("outbox send failed, will retry",
				zap.Int("retry_count", entry.RetryCount),
				zap.Timep("next_retry_at", entry.NextRetryAt),
				zap.Error(sendErr),
			)
		}
	}

	if err := p.repo.Update(ctx, entry); err != nil {
		log.Error("failed to write back outbox entry", zap.String("outcome", outcome), zap.Error(err))
	}
	return outcome
}

// Cleanup deletes sent entries older than the retention window
func (p *OutboxProcessor) Cleanup(ctx context.Context) int64 {
	cutoff := p.now().Add(-p.config.CleanupRetention)
	deleted, err := p.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Error("failed to clean up outbox", zap.Error(err))
		return 0
	}
	if deleted > 0 {
		p.logger.Info("cleaned up sent outbox entries",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
	return deleted
}
