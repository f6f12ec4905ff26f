package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var relayTime = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func TestNewOutboxEntry(t *testing.T) {
	entry := NewOutboxEntry("invoice.created", []byte(`{"invoice_id":"x"}`))

	assert.NotEqual(t, [16]byte{}, [16]byte(entry.ID))
	assert.Equal(t, "invoice.created", entry.Topic)
	assert.Equal(t, OutboxStatusPending, entry.Status)
	assert.Equal(t, DefaultMaxRetries, entry.MaxRetries)
	assert.Zero(t, entry.RetryCount)
}

func TestOutboxEntry_MarkProcessing(t *testing.T) {
	claimable := map[OutboxStatus]bool{
		OutboxStatusPending:    true,
		OutboxStatusFailed:     true,
		OutboxStatusProcessing: false,
		OutboxStatusSent:       false,
		OutboxStatusDead:       false,
	}
	for status, ok := range claimable {
		t.Run(string(status), func(t *testing.T) {
			entry := &OutboxEntry{Status: status}
			err := entry.MarkProcessing(relayTime)
			if !ok {
				assert.ErrorIs(t, err, ErrInvalidState)
				assert.Equal(t, status, entry.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, OutboxStatusProcessing, entry.Status)
			assert.Equal(t, relayTime, entry.UpdatedAt)
		})
	}
}

func TestOutboxEntry_MarkFailed(t *testing.T) {
	entry := NewOutboxEntry("invoice.created", nil)
	entry.MaxRetries = 3

	entry.MarkFailed("first", relayTime)
	require.NotNil(t, entry.NextRetryAt)
	assert.Equal(t, relayTime.Add(time.Second), *entry.NextRetryAt)

	entry.MarkFailed("second", relayTime)
	assert.Equal(t, OutboxStatusFailed, entry.Status)
	assert.Equal(t, relayTime.Add(2*time.Second), *entry.NextRetryAt)
	assert.True(t, entry.CanRetry())

	entry.MarkFailed("third", relayTime)
	assert.True(t, entry.IsDead())
	assert.False(t, entry.CanRetry())
	assert.Nil(t, entry.NextRetryAt)
	assert.Equal(t, "third", entry.LastError)
}

func TestRetryBackoff(t *testing.T) {
	tests := []struct {
		failures int
		want     time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{4, 8 * time.Second},
		{10, 512 * time.Second},
		{11, MaxBackoff},
		{40, MaxBackoff},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RetryBackoff(tt.failures), "failures=%d", tt.failures)
	}
}

func TestOutboxEntry_ResetForRetry(t *testing.T) {
	t.Run("dead entry gets a fresh budget", func(t *testing.T) {
		entry := NewOutboxEntry("invoice.paid", nil)
		entry.MaxRetries = 1
		entry.MarkFailed("broker down", relayTime)
		require.True(t, entry.IsDead())

		later := relayTime.Add(time.Hour)
		require.NoError(t, entry.ResetForRetry(later))
		assert.Equal(t, OutboxStatusPending, entry.Status)
		assert.Zero(t, entry.RetryCount)
		assert.Empty(t, entry.LastError)
		assert.Nil(t, entry.NextRetryAt)
		assert.Equal(t, later, entry.UpdatedAt)
	})

	t.Run("live entries are refused", func(t *testing.T) {
		for _, status := range []OutboxStatus{OutboxStatusPending, OutboxStatusProcessing, OutboxStatusSent, OutboxStatusFailed} {
			entry := &OutboxEntry{Status: status}
			err := entry.ResetForRetry(relayTime)
			assert.ErrorIs(t, err, ErrOutboxNotDead)
			assert.ErrorIs(t, err, ErrInvalidState)
		}
	})
}

func TestOutboxEntry_MarkSent(t *testing.T) {
	entry := NewOutboxEntry("invoice.created", nil)
	entry.MarkFailed("timeout", relayTime)
	entry.MarkSent(relayTime.Add(time.Minute))

	assert.Equal(t, OutboxStatusSent, entry.Status)
	require.NotNil(t, entry.ProcessedAt)
	assert.Equal(t, relayTime.Add(time.Minute), *entry.ProcessedAt)
	assert.Nil(t, entry.NextRetryAt)
}
