// Package postgres provides PostgreSQL implementation of notifications repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/authorshaven/notify/internal/domain"
	"github.com/authorshaven/notify/internal/notifications"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements notifications.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateNotification inserts a notification record.
func (r *Repository) CreateNotification(ctx context.Context, notification *domain.Notification) error {
	query := `
		INSERT INTO notifications (user_id, message, url)
		VALUES ($1, $2, $3)
		RETURNING id, read, created_at
	`
	err := r.db.QueryRow(ctx, query,
		notification.UserID,
		notification.Message,
		notification.URL,
	).Scan(&notification.ID, &notification.Read, &notification.CreatedAt)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// GetNotificationByID retrieves a notification by ID.
func (r *Repository) GetNotificationByID(ctx context.Context, id string) (*domain.Notification, error) {
	query := `
		SELECT id, user_id, message, url, read, created_at
		FROM notifications
		WHERE id = $1
	`
	var notification domain.Notification
	err := r.db.QueryRow(ctx, query, id).Scan(
		&notification.ID,
		&notification.UserID,
		&notification.Message,
		&notification.URL,
		&notification.Read,
		&notification.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notifications.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return &notification, nil
}

// ListNotifications retrieves a user's notifications, newest first. A nil
// read filter returns all of them.
func (r *Repository) ListNotifications(ctx context.Context, userID string, read *bool, limit, offset int) ([]domain.Notification, error) {
	query := `
		SELECT id, user_id, message, url, read, created_at
		FROM notifications
		WHERE user_id = $1 AND ($2::boolean IS NULL OR read = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.Query(ctx, query, userID, read, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var notification domain.Notification
		if err := rows.Scan(
			&notification.ID,
			&notification.UserID,
			&notification.Message,
			&notification.URL,
			&notification.Read,
			&notification.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		result = append(result, notification)
	}
	return result, rows.Err()
}

// CountNotifications counts a user's notifications for the given read filter.
func (r *Repository) CountNotifications(ctx context.Context, userID string, read *bool) (int, error) {
	query := `
		SELECT count(*)
		FROM notifications
		WHERE user_id = $1 AND ($2::boolean IS NULL OR read = $2)
	`
	var count int
	if err := r.db.QueryRow(ctx, query, userID, read).Scan(&count); err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return count, nil
}

// MarkNotificationRead sets read to true and returns the updated record.
func (r *Repository) MarkNotificationRead(ctx context.Context, id string) (*domain.Notification, error) {
	query := `
		UPDATE notifications
		SET read = true
		WHERE id = $1
		RETURNING id, user_id, message, url, read, created_at
	`
	var notification domain.Notification
	err := r.db.QueryRow(ctx, query, id).Scan(
		&notification.ID,
		&notification.UserID,
		&notification.Message,
		&notification.URL,
		&notification.Read,
		&notification.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notifications.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	return &notification, nil
}

// CreateSubscription creates the default subscription for a user. Creating
// an existing subscription is a no-op so repeated signup events stay safe.
func (r *Repository) CreateSubscription(ctx context.Context, userID string) error {
	query := `
		INSERT INTO notification_subscriptions (user_id, email, app)
		VALUES ($1, true, true)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

// GetSubscription retrieves a user's subscription settings.
func (r *Repository) GetSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	query := `
		SELECT user_id, email, app, created_at, updated_at
		FROM notification_subscriptions
		WHERE user_id = $1
	`
	var sub domain.Subscription
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&sub.UserID,
		&sub.Email,
		&sub.App,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notifications.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return &sub, nil
}

// UpdateSubscription persists a user's channel opt-in flags.
func (r *Repository) UpdateSubscription(ctx context.Context, sub *domain.Subscription) error {
	query := `
		UPDATE notification_subscriptions
		SET email = $2, app = $3, updated_at = now()
		WHERE user_id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query, sub.UserID, sub.Email, sub.App).Scan(&sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notifications.ErrSubscriptionNotFound
		}
		return fmt.Errorf("update subscription: %w", err)
	}
	return nil
}

// OptedOutUserIDs returns the set of users who disabled the given channel.
func (r *Repository) OptedOutUserIDs(ctx context.Context, channel domain.Channel) (map[string]bool, error) {
	var query string
	switch channel {
	case domain.ChannelApp:
		query = `SELECT user_id FROM notification_subscriptions WHERE app = false`
	case domain.ChannelEmail:
		query = `SELECT user_id FROM notification_subscriptions WHERE email = false`
	default:
		return nil, fmt.Errorf("unknown channel: %s", channel)
	}

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list opted out users: %w", err)
	}
	defer rows.Close()

	optedOut := make(map[string]bool)
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		optedOut[userID] = true
	}
	return optedOut, rows.Err()
}

// EnqueueMail inserts a mail queue item in pending state.
func (r *Repository) EnqueueMail(ctx context.Context, item *notifications.MailQueueItem) error {
	query := `
		INSERT INTO mail_queue (event_kind, subject, body, recipients, status, max_attempts, next_attempt_at)
		VALUES ($1, $2, $3, $4, 'pending', $5, now())
		RETURNING id, status, attempts, next_attempt_at, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		item.EventKind,
		item.Subject,
		item.Body,
		item.Recipients,
		item.MaxAttempts,
	).Scan(
		&item.ID,
		&item.Status,
		&item.Attempts,
		&item.NextAttemptAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("enqueue mail: %w", err)
	}
	return nil
}

// FetchPendingMail claims due pending items for processing. SKIP LOCKED
// keeps concurrent workers from claiming the same item twice.
func (r *Repository) FetchPendingMail(ctx context.Context, limit int) ([]*notifications.MailQueueItem, error) {
	query := `
		UPDATE mail_queue
		SET status = 'processing', updated_at = now()
		WHERE id IN (
			SELECT id FROM mail_queue
			WHERE status = 'pending' AND next_attempt_at <= now()
			ORDER BY next_attempt_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, event_kind, subject, body, recipients, status, attempts, max_attempts, next_attempt_at, last_error, created_at, updated_at, sent_at
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch pending mail: %w", err)
	}
	defer rows.Close()

	var items []*notifications.MailQueueItem
	for rows.Next() {
		item, err := scanMailItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// MarkMailSent transitions an item to sent.
func (r *Repository) MarkMailSent(ctx context.Context, id string) error {
	query := `
		UPDATE mail_queue
		SET status = 'sent', attempts = attempts + 1, last_error = '', sent_at = now(), updated_at = now()
		WHERE id = $1
	`
	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("mark mail sent: %w", err)
	}
	return nil
}

// MarkMailFailed transitions an item to failed permanently.
func (r *Repository) MarkMailFailed(ctx context.Context, id string, sendErr error) error {
	query := `
		UPDATE mail_queue
		SET status = 'failed', attempts = attempts + 1, last_error = $2, updated_at = now()
		WHERE id = $1
	`
	if _, err := r.db.Exec(ctx, query, id, sendErr.Error()); err != nil {
		return fmt.Errorf("mark mail failed: %w", err)
	}
	return nil
}

// MarkMailForRetry returns an item to pending with a future attempt time.
func (r *Repository) MarkMailForRetry(ctx context.Context, id string, sendErr error, nextAttempt time.Time) error {
	query := `
		UPDATE mail_queue
		SET status = 'pending', attempts = attempts + 1, last_error = $2, next_attempt_at = $3, updated_at = now()
		WHERE id = $1
	`
	if _, err := r.db.Exec(ctx, query, id, sendErr.Error(), nextAttempt); err != nil {
		return fmt.Errorf("mark mail for retry: %w", err)
	}
	return nil
}

// MailQueueStats returns queue sizes per status.
func (r *Repository) MailQueueStats(ctx context.Context) (*notifications.QueueStats, error) {
	query := `
		SELECT
			count(*) FILTER (WHERE status = 'pending'),
			count(*) FILTER (WHERE status = 'processing'),
			count(*) FILTER (WHERE status = 'sent'),
			count(*) FILTER (WHERE status = 'failed')
		FROM mail_queue
	`
	var stats notifications.QueueStats
	err := r.db.QueryRow(ctx, query).Scan(
		&stats.Pending,
		&stats.Processing,
		&stats.Sent,
		&stats.Failed,
	)
	if err != nil {
		return nil, fmt.Errorf("mail queue stats: %w", err)
	}
	return &stats, nil
}

func scanMailItem(rows pgx.Rows) (*notifications.MailQueueItem, error) {
	var item notifications.MailQueueItem
	if err := rows.Scan(
		&item.ID,
		&item.EventKind,
		&item.Subject,
		&item.Body,
		&item.Recipients,
		&item.Status,
		&item.Attempts,
		&item.MaxAttempts,
		&item.NextAttemptAt,
		&item.LastError,
		&item.CreatedAt,
		&item.UpdatedAt,
		&item.SentAt,
	); err != nil {
		return nil, fmt.Errorf("scan mail item: %w", err)
	}
	return &item, nil
}
