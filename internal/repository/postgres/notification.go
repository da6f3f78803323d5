package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/notification-service/internal/model"
	"github.com/jwalitptl/notification-service/internal/repository"
)

const notificationColumns = `
	notification_id, user_id, type, title, content,
	reference_type, COALESCE(reference_id, '') AS reference_id,
	actors, count, is_read, created_at, updated_at`

type notificationRepository struct {
	*BaseRepository
}

func NewNotificationRepository(base *BaseRepository) repository.NotificationRepository {
	return &notificationRepository{BaseRepository: base}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) (*model.Notification, error) {
	query := `
		INSERT INTO notifications (
			notification_id, user_id, type, title, content,
			reference_type, reference_id, actors, count, is_read,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, false, $10, $10
		)
	`
	n.NotificationID = uuid.New()
	n.IsRead = false
	n.CreatedAt = time.Now().UTC()
	n.UpdatedAt = n.CreatedAt
	if n.Actors == nil {
		n.Actors = model.ActorList{}
	}

	_, err := r.db.ExecContext(ctx, query,
		n.NotificationID,
		n.UserID,
		n.Type,
		n.Title,
		n.Content,
		n.ReferenceType,
		n.ReferenceID,
		n.Actors,
		n.Count,
		n.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	return n, nil
}

func (r *notificationRepository) FindUnreadAggregate(ctx context.Context, userID string, eventType model.EventType, refType, refID string) (*model.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE user_id = $1
		  AND type = $2
		  AND reference_type = $3
		  AND reference_id IS NOT DISTINCT FROM NULLIF($4, '')
		  AND is_read = false
		LIMIT 1
	`
	var n model.Notification
	err := r.db.GetContext(ctx, &n, query, userID, eventType, refType, refID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find unread aggregate: %w", err)
	}
	return &n, nil
}

func (r *notificationRepository) UpdateAggregate(ctx context.Context, id uuid.UUID, actors model.ActorList, count int, content string) (*model.Notification, error) {
	query := `
		UPDATE notifications
		SET actors = $1, count = $2, content = $3, updated_at = NOW()
		WHERE notification_id = $4
		RETURNING ` + notificationColumns + `
	`
	var n model.Notification
	err := r.db.GetContext(ctx, &n, query, actors, count, content, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update aggregate: %w", err)
	}
	return &n, nil
}

func (r *notificationRepository) List(ctx context.Context, userID string, limit, offset int) ([]*model.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	notifications := []*model.Notification{}
	if err := r.db.SelectContext(ctx, &notifications, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = false`
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE notifications SET is_read = true, updated_at = NOW() WHERE notification_id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

func (r *notificationRepository) MarkUnread(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE notifications SET is_read = false, updated_at = NOW() WHERE notification_id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark notification unread: %w", err)
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	query := `UPDATE notifications SET is_read = true, updated_at = NOW() WHERE user_id = $1 AND is_read = false`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to mark all notifications read: %w", err)
	}
	return nil
}

func (r *notificationRepository) DeleteAll(ctx context.Context, userID string) error {
	query := `DELETE FROM notifications WHERE user_id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to delete notifications: %w", err)
	}
	return nil
}
