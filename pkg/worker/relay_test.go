package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/notification-service/internal/model"
	"github.com/jwalitptl/notification-service/pkg/logger"
	"github.com/jwalitptl/notification-service/pkg/metrics"
)

var testMetrics = metrics.New("relay_test")

type fakeOutboxRepo struct {
	pending []*model.OutboxEvent

	processed  []uuid.UUID
	retried    []uuid.UUID
	deadLetter []uuid.UUID
}

func (r *fakeOutboxRepo) Create(context.Context, *model.OutboxEvent) error { return nil }

func (r *fakeOutboxRepo) GetPendingWithLock(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	if limit < len(r.pending) {
		return r.pending[:limit], nil
	}
	return r.pending, nil
}

func (r *fakeOutboxRepo) MarkProcessed(_ context.Context, id uuid.UUID) error {
	r.processed = append(r.processed, id)
	return nil
}

func (r *fakeOutboxRepo) MarkRetry(_ context.Context, id uuid.UUID, _ string, _ time.Time) error {
	r.retried = append(r.retried, id)
	return nil
}

func (r *fakeOutboxRepo) MoveToDeadLetter(_ context.Context, event *model.OutboxEvent, _ string) error {
	r.deadLetter = append(r.deadLetter, event.ID)
	return nil
}

func (r *fakeOutboxRepo) DeleteProcessedBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type fakePublisher struct {
	published int
	failures  int
}

func (p *fakePublisher) Publish(context.Context, string, interface{}) error {
	if p.failures > 0 {
		p.failures--
		return errors.New("stream unavailable")
	}
	p.published++
	return nil
}

func testRelayConfig() RelayConfig {
	return RelayConfig{
		Stream:        "notification-events",
		BatchSize:     10,
		PollInterval:  time.Millisecond,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	}
}

func outboxEvent(retryCount int) *model.OutboxEvent {
	return &model.OutboxEvent{
		ID:         uuid.New(),
		EventType:  "like",
		Payload:    []byte(`{"type":"like","target_user_id":"user-1"}`),
		Status:     model.OutboxStatusPending,
		RetryCount: retryCount,
	}
}

func TestRelayMarksPublishedEventProcessed(t *testing.T) {
	repo := &fakeOutboxRepo{pending: []*model.OutboxEvent{outboxEvent(0)}}
	pub := &fakePublisher{}
	relay := NewOutboxRelay(repo, pub, testRelayConfig(), logger.New(nil), testMetrics)

	require.NoError(t, relay.processBatch(context.Background()))

	assert.Equal(t, 1, pub.published)
	assert.Equal(t, []uuid.UUID{repo.pending[0].ID}, repo.processed)
	assert.Empty(t, repo.retried)
	assert.Empty(t, repo.deadLetter)
}

func TestRelayRetriesTransientPublishFailure(t *testing.T) {
	repo := &fakeOutboxRepo{pending: []*model.OutboxEvent{outboxEvent(0)}}
	pub := &fakePublisher{failures: 2}
	relay := NewOutboxRelay(repo, pub, testRelayConfig(), logger.New(nil), testMetrics)

	require.NoError(t, relay.processBatch(context.Background()))

	// Third attempt succeeds within the same batch.
	assert.Equal(t, 1, pub.published)
	assert.Len(t, repo.processed, 1)
	assert.Empty(t, repo.retried)
}

func TestRelayMarksEventForRetryWhenAllAttemptsFail(t *testing.T) {
	event := outboxEvent(0)
	repo := &fakeOutboxRepo{pending: []*model.OutboxEvent{event}}
	pub := &fakePublisher{failures: 100}
	relay := NewOutboxRelay(repo, pub, testRelayConfig(), logger.New(nil), testMetrics)

	require.NoError(t, relay.processBatch(context.Background()))

	assert.Empty(t, repo.processed)
	assert.Equal(t, []uuid.UUID{event.ID}, repo.retried)
	assert.Empty(t, repo.deadLetter)
}

func TestRelayDeadLettersExhaustedEvent(t *testing.T) {
	event := outboxEvent(2)
	repo := &fakeOutboxRepo{pending: []*model.OutboxEvent{event}}
	pub := &fakePublisher{failures: 100}
	relay := NewOutboxRelay(repo, pub, testRelayConfig(), logger.New(nil), testMetrics)

	require.NoError(t, relay.processBatch(context.Background()))

	assert.Empty(t, repo.processed)
	assert.Empty(t, repo.retried)
	assert.Equal(t, []uuid.UUID{event.ID}, repo.deadLetter)
}

func TestNewOutboxRelayValidatesConfig(t *testing.T) {
	repo := &fakeOutboxRepo{}
	pub := &fakePublisher{}

	cfg := testRelayConfig()
	cfg.Stream = ""
	assert.Panics(t, func() {
		NewOutboxRelay(repo, pub, cfg, logger.New(nil), testMetrics)
	})

	cfg = testRelayConfig()
	cfg.BatchSize = 0
	assert.Panics(t, func() {
		NewOutboxRelay(repo, pub, cfg, logger.New(nil), testMetrics)
	})
}
