package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/notification-service/internal/model"
)

// ErrNotFound is returned when an operation targets a row that does not exist.
var ErrNotFound = errors.New("not found")

type (
	// NotificationRepository is the persistence contract for notification
	// aggregates. Mark and bulk operations are idempotent; marking a missing
	// id is a no-op, not an error.
	NotificationRepository interface {
		Create(ctx context.Context, n *model.Notification) (*model.Notification, error)
		// FindUnreadAggregate returns the single open aggregate for the key,
		// or nil when none exists.
		FindUnreadAggregate(ctx context.Context, userID string, eventType model.EventType, refType, refID string) (*model.Notification, error)
		// UpdateAggregate rewrites the mutable aggregate fields and bumps
		// updated_at. Returns ErrNotFound when the id does not exist.
		UpdateAggregate(ctx context.Context, id uuid.UUID, actors model.ActorList, count int, content string) (*model.Notification, error)
		List(ctx context.Context, userID string, limit, offset int) ([]*model.Notification, error)
		CountUnread(ctx context.Context, userID string) (int, error)
		MarkRead(ctx context.Context, id uuid.UUID) error
		MarkUnread(ctx context.Context, id uuid.UUID) error
		MarkAllRead(ctx context.Context, userID string) error
		DeleteAll(ctx context.Context, userID string) error
	}

	// OutboxRepository stages producer events for the relay worker.
	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error
		MoveToDeadLetter(ctx context.Context, event *model.OutboxEvent, errMsg string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
