package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/notification-service/internal/model"
	"github.com/jwalitptl/notification-service/internal/repository"
	"github.com/jwalitptl/notification-service/pkg/logger"
	"github.com/jwalitptl/notification-service/pkg/messaging"
	"github.com/jwalitptl/notification-service/pkg/metrics"
)

type RelayConfig struct {
	Stream        string
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	CleanupAfter  time.Duration
}

// OutboxRelay moves staged producer events from the outbox table onto the
// notification stream. Events that exhaust their publish retries go to the
// dead-letter table instead of blocking the batch.
type OutboxRelay struct {
	repo    repository.OutboxRepository
	broker  messaging.Publisher
	config  RelayConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewOutboxRelay(
	repo repository.OutboxRepository,
	broker messaging.Publisher,
	config RelayConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *OutboxRelay {
	if config.Stream == "" {
		panic("Stream must be set")
	}
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		panic("RetryAttempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		panic("RetryDelay must be greater than 0")
	}

	return &OutboxRelay{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}
}

func (r *OutboxRelay) Start(ctx context.Context) {
	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	var cleanup <-chan time.Time
	if r.config.CleanupAfter > 0 {
		cleanupTicker := time.NewTicker(time.Hour)
		defer cleanupTicker.Stop()
		cleanup = cleanupTicker.C
	}

	r.logger.Info("starting outbox relay", "stream", r.config.Stream)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("shutting down outbox relay")
			return
		case <-ticker.C:
			if err := r.processBatch(ctx); err != nil {
				r.logger.Error(err, "failed to process outbox batch")
			}
		case <-cleanup:
			cutoff := time.Now().Add(-r.config.CleanupAfter)
			deleted, err := r.repo.DeleteProcessedBefore(ctx, cutoff)
			if err != nil {
				r.logger.Error(err, "failed to clean up processed events")
				continue
			}
			if deleted > 0 {
				r.logger.Info("cleaned up processed outbox events", "deleted", deleted)
			}
		}
	}
}

func (r *OutboxRelay) processBatch(ctx context.Context) error {
	timer := prometheus.NewTimer(r.metrics.RelayDuration)
	defer timer.ObserveDuration()

	events, err := r.repo.GetPendingWithLock(ctx, r.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending events: %w", err)
	}

	for _, event := range events {
		if err := r.relayEvent(ctx, event); err != nil {
			r.logger.Error(err, "failed to relay event",
				"event_id", event.ID.String(),
				"event_type", event.EventType)
		}
	}

	return nil
}

func (r *OutboxRelay) relayEvent(ctx context.Context, event *model.OutboxEvent) error {
	var publishErr error
	for attempt := 0; attempt < r.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			r.metrics.RelayRetries.WithLabelValues(event.EventType).Inc()
			time.Sleep(time.Duration(attempt) * r.config.RetryDelay)
		}
		if publishErr = r.broker.Publish(ctx, r.config.Stream, event.Payload); publishErr == nil {
			break
		}
	}

	if publishErr != nil {
		r.metrics.RelayEventsFailed.Inc()
		if event.RetryCount+1 >= r.config.RetryAttempts {
			if dlErr := r.repo.MoveToDeadLetter(ctx, event, publishErr.Error()); dlErr != nil {
				return fmt.Errorf("failed to dead-letter event: %w", dlErr)
			}
			return fmt.Errorf("event moved to dead letter: %w", publishErr)
		}
		retryAt := time.Now().Add(r.config.RetryDelay)
		if retryErr := r.repo.MarkRetry(ctx, event.ID, publishErr.Error(), retryAt); retryErr != nil {
			return fmt.Errorf("failed to mark event for retry: %w", retryErr)
		}
		return publishErr
	}

	if err := r.repo.MarkProcessed(ctx, event.ID); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}

	r.metrics.RelayEventsPublished.Inc()
	return nil
}
