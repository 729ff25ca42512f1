package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homebase/referral-api/internal/model"
	"github.com/homebase/referral-api/internal/repository/memory"
	"github.com/homebase/referral-api/pkg/logger"
	"github.com/homebase/referral-api/pkg/messaging"
	"github.com/homebase/referral-api/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("test", "outbox")

type fakeBroker struct {
	mu        sync.Mutex
	published map[string][]interface{}
	failTimes int
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{published: make(map[string][]interface{})}
}

func (b *fakeBroker) Publish(_ context.Context, channel string, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failTimes > 0 {
		b.failTimes--
		return errors.New("broker unavailable")
	}
	b.published[channel] = append(b.published[channel], message)
	return nil
}

func (b *fakeBroker) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not implemented")
}

func (b *fakeBroker) Close() error { return nil }

func (b *fakeBroker) count(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published[channel])
}

func newProcessor(repo *memory.OutboxRepository, broker messaging.Broker) *OutboxProcessor {
	return NewOutboxProcessor(repo, broker, OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  10 * time.Millisecond,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	}, logger.NewLogger(&logger.Config{Output: io.Discard}), testMetrics)
}

func seedEvent(t *testing.T, repo *memory.OutboxRepository, eventType string) *model.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(map[string]string{"k": "v"})
	require.NoError(t, err)
	evt := &model.OutboxEvent{
		EventType: eventType,
		Payload:   payload,
		Status:    string(model.OutboxStatusPending),
	}
	require.NoError(t, repo.Create(context.Background(), evt))
	return evt
}

func TestProcessEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes to the channel for the event type", func(t *testing.T) {
		repo := memory.NewOutboxRepository()
		broker := newFakeBroker()
		p := newProcessor(repo, broker)

		seedEvent(t, repo, model.EventPayoutCreated)
		seedEvent(t, repo, model.EventCreditsUpdated)

		require.NoError(t, p.processEvents(ctx))

		assert.Equal(t, 1, broker.count(messaging.ChannelPayoutEvents))
		assert.Equal(t, 1, broker.count(messaging.ChannelReferralEvents))

		for _, e := range repo.Events() {
			assert.Equal(t, string(model.OutboxStatusProcessed), e.Status)
			assert.NotNil(t, e.ProcessedAt)
		}
	})

	t.Run("publish failure schedules a retry", func(t *testing.T) {
		repo := memory.NewOutboxRepository()
		broker := newFakeBroker()
		broker.failTimes = 1
		p := newProcessor(repo, broker)

		seedEvent(t, repo, model.EventPayoutCreated)

		require.NoError(t, p.processEvents(ctx))

		events := repo.Events()
		require.Len(t, events, 1)
		assert.Equal(t, string(model.OutboxStatusRetry), events[0].Status)
		assert.Equal(t, 1, events[0].RetryCount)
		require.NotNil(t, events[0].RetryAt)

		// Once the broker recovers, the due retry goes through.
		time.Sleep(2 * time.Millisecond)
		require.NoError(t, p.processEvents(ctx))
		events = repo.Events()
		assert.Equal(t, string(model.OutboxStatusProcessed), events[0].Status)
	})

	t.Run("retry budget exhaustion parks the event as failed", func(t *testing.T) {
		repo := memory.NewOutboxRepository()
		broker := newFakeBroker()
		broker.failTimes = 10
		p := newProcessor(repo, broker)

		seedEvent(t, repo, model.EventPayoutPaid)

		for i := 0; i < 3; i++ {
			require.NoError(t, p.processEvents(ctx))
			time.Sleep(2 * time.Millisecond)
		}

		events := repo.Events()
		require.Len(t, events, 1)
		assert.Equal(t, string(model.OutboxStatusFailed), events[0].Status)
		require.NotNil(t, events[0].ErrorMessage)
	})
}

func TestChannelFor(t *testing.T) {
	assert.Equal(t, messaging.ChannelPayoutEvents, channelFor(model.EventPayoutCreated))
	assert.Equal(t, messaging.ChannelPayoutEvents, channelFor(model.EventPayoutFailed))
	assert.Equal(t, messaging.ChannelReferralEvents, channelFor(model.EventReferralVoided))
	assert.Equal(t, messaging.ChannelReferralEvents, channelFor(model.EventCreditsUpdated))
}
