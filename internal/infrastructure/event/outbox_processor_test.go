package event

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/autoshop/backend/internal/domain/shared"
)

type sentMessage struct {
	Topic   string
	Payload string
}

// recordingSender records sends and fails while err is set
type recordingSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (s *recordingSender) Send(_ context.Context, topic string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	s.sent = append(s.sent, sentMessage{Topic: topic, Payload: string(raw)})
	return nil
}

func (s *recordingSender) Sent() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.sent...)
}

func TestOutboxProcessor_ProcessBatch_SendsPending(t *testing.T) {
	repo := NewGormOutboxRepository(setupTestDB(t))
	sender := &recordingSender{}
	processor := NewOutboxProcessor(repo, sender, DefaultOutboxProcessorConfig(), zap.NewNop())
	ctx := context.Background()

	publisher := NewOutboxPublisher(repo)
	require.NoError(t, publisher.Publish(ctx, "invoice.created", map[string]any{"invoice_id": "inv-1"}))

	result := processor.ProcessBatch(ctx)
	assert.Equal(t, BatchResult{Sent: 1}, result)

	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "invoice.created", sent[0].Topic)
	assert.JSONEq(t, `{"invoice_id":"inv-1"}`, sent[0].Payload)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[shared.OutboxStatusSent])
}

func TestOutboxProcessor_ProcessBatch_FailureSchedulesRetry(t *testing.T) {
	repo := NewGormOutboxRepository(setupTestDB(t))
	sender := &recordingSender{err: errors.New("sidecar unavailable")}
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	processor := NewOutboxProcessor(repo, sender, DefaultOutboxProcessorConfig(), zap.NewNop(),
		WithProcessorClock(func() time.Time { return now }))
	ctx := context.Background()

	entry := shared.NewOutboxEntry("invoice.created", []byte(`{}`))
	require.NoError(t, repo.Save(ctx, entry))

	assert.Equal(t, BatchResult{Failed: 1}, processor.ProcessBatch(ctx))

	stored, err := repo.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.OutboxStatusFailed, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Equal(t, "sidecar unavailable", stored.LastError)
	require.NotNil(t, stored.NextRetryAt)
	assert.True(t, stored.NextRetryAt.Equal(now.Add(time.Second)))
	assert.Empty(t, sender.Sent())

	// not due yet
	assert.Equal(t, BatchResult{}, processor.ProcessBatch(ctx))

	sender.mu.Lock()
	sender.err = nil
	sender.mu.Unlock()
	now = now.Add(2 * time.Second)
	assert.Equal(t, BatchResult{Sent: 1}, processor.ProcessBatch(ctx))
}

func TestOutboxProcessor_ProcessBatch_DeadAfterMaxRetries(t *testing.T) {
	repo := NewGormOutboxRepository(setupTestDB(t))
	sender := &recordingSender{err: errors.New("rejected")}
	processor := NewOutboxProcessor(repo, sender, DefaultOutboxProcessorConfig(), zap.NewNop())
	ctx := context.Background()

	entry := shared.NewOutboxEntry("invoice.created", []byte(`{}`))
	entry.MaxRetries = 1
	require.NoError(t, repo.Save(ctx, entry))

	assert.Equal(t, BatchResult{Dead: 1}, processor.ProcessBatch(ctx))

	stored, err := repo.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.OutboxStatusDead, stored.Status)
}

func TestOutboxProcessor_Cleanup(t *testing.T) {
	repo := NewGormOutboxRepository(setupTestDB(t))
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	processor := NewOutboxProcessor(repo, &recordingSender{}, DefaultOutboxProcessorConfig(), zap.NewNop(),
		WithProcessorClock(func() time.Time { return now }))
	ctx := context.Background()

	old := shared.NewOutboxEntry("invoice.created", []byte(`{}`))
	old.MarkSent(now.Add(-8 * 24 * time.Hour))
	recent := shared.NewOutboxEntry("invoice.created", []byte(`{}`))
	recent.MarkSent(now.Add(-time.Hour))
	require.NoError(t, repo.Save(ctx, old, recent, shared.NewOutboxEntry("invoice.paid", []byte(`{}`))))

	assert.Equal(t, int64(1), processor.Cleanup(ctx))

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[shared.OutboxStatusSent])
	assert.Equal(t, int64(1), counts[shared.OutboxStatusPending])
}

func TestOutboxProcessor_RelayMetric(t *testing.T) {
	repo := NewGormOutboxRepository(setupTestDB(t))
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")
	processor := NewOutboxProcessor(repo, &recordingSender{}, DefaultOutboxProcessorConfig(), zap.NewNop(),
		WithProcessorMeter(meter))
	ctx := context.Background()

	require.NoError(t, NewOutboxPublisher(repo).Publish(ctx, "invoice.created", map[string]string{"invoice_id": "inv-1"}))
	processor.ProcessBatch(ctx)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	var found bool
	for _, m := range rm.ScopeMetrics[0].Metrics {
		if m.Name != "billing.outbox.relayed" {
			continue
		}
		sum, ok := m.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, sum.DataPoints, 1)
		assert.Equal(t, int64(1), sum.DataPoints[0].Value)
		outcome, _ := sum.DataPoints[0].Attributes.Value("outcome")
		assert.Equal(t, "sent", outcome.AsString())
		found = true
	}
	assert.True(t, found)
}

func TestOutboxProcessor_StartStop(t *testing.T) {
	repo := NewGormOutboxRepository(setupTestDB(t))
	sender := &recordingSender{}
	config := OutboxProcessorConfig{BatchSize: 10, PollInterval: 20 * time.Millisecond}
	processor := NewOutboxProcessor(repo, sender, config, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, NewOutboxPublisher(repo).Publish(ctx, "invoice.paid", map[string]string{"invoice_id": "inv-9"}))
	require.NoError(t, processor.Start(ctx))

	assert.Eventually(t, func() bool { return len(sender.Sent()) == 1 }, 2*time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, processor.Stop(stopCtx))
}

func TestDefaultOutboxProcessorConfig(t *testing.T) {
	config := DefaultOutboxProcessorConfig()

	assert.Equal(t, 100, config.BatchSize)
	assert.Equal(t, 5*time.Second, config.PollInterval)
	assert.True(t, config.CleanupEnabled)
	assert.Equal(t, 7*24*time.Hour, config.CleanupRetention)
}
