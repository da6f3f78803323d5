package aggregator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/notification-service/internal/config"
	"github.com/jwalitptl/notification-service/internal/model"
	"github.com/jwalitptl/notification-service/internal/repository"
	"github.com/jwalitptl/notification-service/pkg/logger"
	"github.com/jwalitptl/notification-service/pkg/messaging"
	"github.com/jwalitptl/notification-service/pkg/metrics"
)

// Sink delivers a freshly persisted notification to the recipient's live
// connection, if any. Best effort only; the store is the system of record.
type Sink interface {
	Push(userID string, n *model.Notification)
}

// Service folds heterogeneous domain events into de-duplicated per-user
// notification aggregates. Every delivery is terminal in one pass: the
// message is acknowledged whether processing succeeded, the event was
// malformed, or the store failed. Queue liveness always wins over
// delivery guarantees.
type Service struct {
	repo    repository.NotificationRepository
	sink    Sink
	logger  *logger.Logger
	metrics *metrics.Metrics
	onError config.ErrorPolicy
}

func NewService(
	repo repository.NotificationRepository,
	sink Sink,
	logger *logger.Logger,
	metrics *metrics.Metrics,
	onError config.ErrorPolicy,
) *Service {
	if onError == "" {
		onError = config.ErrorPolicyDrop
	}
	return &Service{
		repo:    repo,
		sink:    sink,
		logger:  logger,
		metrics: metrics,
		onError: onError,
	}
}

// Run processes deliveries until the channel closes or ctx is cancelled.
func (s *Service) Run(ctx context.Context, deliveries <-chan messaging.Delivery) {
	s.logger.Info("notification aggregator started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("notification aggregator shutting down")
			return
		case d, ok := <-deliveries:
			if !ok {
				s.logger.Info("delivery channel closed")
				return
			}
			s.Handle(ctx, d)
		}
	}
}

// Handle runs one message through validate, derive, lookup, merge-or-create,
// render, persist, deliver, ack.
func (s *Service) Handle(ctx context.Context, d messaging.Delivery) {
	timer := prometheus.NewTimer(s.metrics.ProcessingDuration)
	defer timer.ObserveDuration()

	defer func() {
		if p := recover(); p != nil {
			s.logger.Error(fmt.Errorf("panic: %v", p), "recovered while processing event",
				"payload", string(d.Payload()))
			s.ack(ctx, d)
		}
	}()

	var event model.Event
	if err := json.Unmarshal(d.Payload(), &event); err != nil {
		s.metrics.EventsDropped.WithLabelValues("unparseable").Inc()
		s.logger.Error(err, "dropping unparseable event", "payload", string(d.Payload()))
		s.ack(ctx, d)
		return
	}

	// Poison-message policy: an event missing type or target can never
	// become valid, so it is dropped without touching the store.
	if err := event.Validate(); err != nil {
		s.metrics.EventsDropped.WithLabelValues("missing_fields").Inc()
		s.logger.Error(err, "dropping event with missing required fields",
			"payload", string(d.Payload()))
		s.ack(ctx, d)
		return
	}

	notification, err := s.process(ctx, &event)
	if err != nil {
		s.metrics.EventsFailed.WithLabelValues(string(event.Type)).Inc()
		s.logger.Error(err, "failed to process event", "payload", string(d.Payload()))
		if s.onError == config.ErrorPolicyDeadLetter {
			if rejectErr := d.Reject(ctx); rejectErr != nil {
				s.logger.Error(rejectErr, "failed to dead-letter event")
			}
			return
		}
		s.ack(ctx, d)
		return
	}

	s.sink.Push(notification.UserID, notification)
	s.metrics.EventsProcessed.WithLabelValues(string(event.Type)).Inc()
	s.ack(ctx, d)
}

func (s *Service) process(ctx context.Context, event *model.Event) (*model.Notification, error) {
	ref := event.Reference()

	// Orders never aggregate: one notification per order per party, keyed
	// further by for_shop_owner, so the unread lookup is skipped entirely.
	if event.Type != model.EventOrder {
		existing, err := s.repo.FindUnreadAggregate(ctx, event.TargetUserID, event.Type, ref.Type, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up unread aggregate: %w", err)
		}
		if existing != nil {
			return s.merge(ctx, event, ref, existing)
		}
	}

	return s.create(ctx, event, ref)
}

func (s *Service) merge(ctx context.Context, event *model.Event, ref model.Reference, existing *model.Notification) (*model.Notification, error) {
	actors := existing.Actors
	// Exact, case-sensitive match: the same display name is never appended
	// twice, and no fuzzy de-duplication is attempted.
	if !actors.Contains(event.ActorName) {
		actors = append(actors, event.ActorName)
	}

	content := formatContent(event.Type, actors, ref.Type)
	updated, err := s.repo.UpdateAggregate(ctx, existing.NotificationID, actors, len(actors), content)
	if err != nil {
		return nil, fmt.Errorf("failed to merge into aggregate %s: %w", existing.NotificationID, err)
	}

	s.metrics.AggregateMerges.Inc()
	return updated, nil
}

func (s *Service) create(ctx context.Context, event *model.Event, ref model.Reference) (*model.Notification, error) {
	n := &model.Notification{
		UserID:        event.TargetUserID,
		Type:          event.Type,
		ReferenceType: ref.Type,
		ReferenceID:   ref.ID,
		Actors:        model.ActorList{event.ActorName},
		Count:         1,
	}

	if event.Type == model.EventOrder {
		if event.ForShopOwner {
			n.Title = "New Order Received"
			n.Content = fmt.Sprintf("You have an order (%s) from user %s.", event.OrderNumberOrID(), event.ActorName)
		} else {
			n.Title = "Order Placed"
			n.Content = fmt.Sprintf("Your order (%s) is being processed.", event.OrderNumberOrID())
		}
	} else {
		n.Title = titleFor(event.Type)
		n.Content = formatContent(event.Type, n.Actors, ref.Type)
	}

	created, err := s.repo.Create(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	s.metrics.AggregateCreates.Inc()
	return created, nil
}

func (s *Service) ack(ctx context.Context, d messaging.Delivery) {
	if err := d.Ack(ctx); err != nil {
		s.logger.Error(err, "failed to ack delivery", "delivery_id", d.ID())
	}
}
