package main

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	billingapp "github.com/autoshop/backend/internal/application/billing"
	"github.com/autoshop/backend/internal/domain/billing"
	"github.com/autoshop/backend/internal/domain/shared"
	"github.com/autoshop/backend/internal/infrastructure/cache"
	"github.com/autoshop/backend/internal/infrastructure/config"
	"github.com/autoshop/backend/internal/infrastructure/event"
	"github.com/autoshop/backend/internal/infrastructure/persistence"
	"github.com/autoshop/backend/internal/infrastructure/pubsub"
)

// newSequenceCounter picks the invoice number counter. The returned func
// releases any connection the counter holds.
func newSequenceCounter(ctx context.Context, cfg *config.Config, db *persistence.Database) (billing.SequenceCounter, func(), error) {
	switch cfg.Billing.CounterBackend {
	case "", "database":
		return persistence.NewSequenceCounter(db.DB), func() {}, nil
	case "redis":
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return cache.NewRedisSequenceCounter(client, ""), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown counter backend %q", cfg.Billing.CounterBackend)
	}
}

func newDedupeStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (shared.IdempotencyStore, error) {
	return cache.OpenIdempotencyStore(ctx, cfg.Event.DedupeBackend, cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
}

// sender is a publisher that can also report delivery failures
type sender interface {
	shared.MessagePublisher
	event.Sender
}

// publishing is the configured publisher plus, in outbox mode, the relay,
// the repository the admin endpoints read and the transaction scope that
// writes invoices and their outbox entries together.
type publishing struct {
	Publisher shared.MessagePublisher
	Outbox    *event.GormOutboxRepository
	Processor *event.OutboxProcessor
	Scope     billingapp.TransactionScope
	closers   []func() error
}

// ServiceOptions returns the options the billing services need for this
// publishing mode
func (p *publishing) ServiceOptions() []billingapp.ServiceOption {
	if p.Scope == nil {
		return nil
	}
	return []billingapp.ServiceOption{billingapp.WithTransactionScope(p.Scope)}
}

func (p *publishing) Close() {
	for _, c := range p.closers {
		_ = c()
	}
}

func newPublishing(cfg *config.Config, db *persistence.Database, meter metric.Meter, log *zap.Logger) (*publishing, error) {
	if cfg.Event.Publisher != "outbox" {
		s, closeFn, err := newSender(cfg, cfg.Event.Publisher, log)
		if err != nil {
			return nil, err
		}
		return &publishing{Publisher: s, closers: []func() error{closeFn}}, nil
	}

	delegate, closeFn, err := newSender(cfg, cfg.Event.OutboxDelegate, log)
	if err != nil {
		return nil, err
	}
	repo := event.NewGormOutboxRepository(db.DB)
	processorCfg := event.DefaultOutboxProcessorConfig()
	processorCfg.BatchSize = cfg.Event.BatchSize
	processorCfg.PollInterval = cfg.Event.PollInterval
	processorCfg.CleanupEnabled = cfg.Event.CleanupEnabled
	processorCfg.CleanupRetention = cfg.Event.CleanupRetention

	log.Info("Publishing through the outbox", zap.String("delegate", cfg.Event.OutboxDelegate))
	outbox := event.NewOutboxPublisher(repo).WithMaxRetries(cfg.Event.MaxRetries)
	return &publishing{
		Publisher: outbox,
		Outbox:    repo,
		Processor: event.NewOutboxProcessor(repo, delegate, processorCfg, log, event.WithProcessorMeter(meter)),
		Scope:     persistence.NewGormTransactionScope(db.DB, outbox),
		closers:   []func() error{closeFn},
	}, nil
}

func newSender(cfg *config.Config, kind string, log *zap.Logger) (sender, func() error, error) {
	switch kind {
	case "", "sidecar":
		p := pubsub.NewSidecarPublisher(cfg.Sidecar.HTTPBaseURL(), cfg.Event.PubSubName, log,
			pubsub.WithPublishTimeout(cfg.Event.PublishTimeout))
		return p, func() error { return nil }, nil
	case "rabbitmq":
		p, err := pubsub.NewRabbitMQPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, log)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown publisher %q", kind)
	}
}
