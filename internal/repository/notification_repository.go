package repository

import (
	"context"
	"fmt"

	"github.com/civictech/grievance-core/domain"
)

// NotificationRepository persists user-facing alerts.
type NotificationRepository struct {
	db Querier
}

func NewNotificationRepository(db Querier) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications
			(user_id, type, title, message, complaint_id, link)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.UserID, n.Type, n.Title, n.Message, n.ComplaintID, n.Link,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create notification: %w", err)
	}
	return result.LastInsertId()
}

func scanNotification(row interface{ Scan(...interface{}) error }) (*domain.Notification, error) {
	var n domain.Notification
	if err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message,
		&n.ComplaintID, &n.Link, &n.IsRead, &n.ReadAt, &n.CreatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}

const notificationColumns = `notification_id, user_id, type, title, message,
	complaint_id, link, is_read, read_at, created_at`

// FindByUser lists a user's notifications, newest first.
func (r *NotificationRepository) FindByUser(ctx context.Context, userID int64, limit int) ([]*domain.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications for user %d: %w", userID, err)
	}
	defer rows.Close()
	var out []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// FindUnreadByUser lists the unread subset, for a badge count or inbox view.
func (r *NotificationRepository) FindUnreadByUser(ctx context.Context, userID int64) ([]*domain.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE user_id = ? AND is_read = FALSE ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unread notifications for user %d: %w", userID, err)
	}
	defer rows.Close()
	var out []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// UnreadCount is the cheap badge-count query, split out from
// FindUnreadByUser so callers that only need the number don't pay for
// hydrating every row.
func (r *NotificationRepository) UnreadCount(ctx context.Context, userID int64) (int, error) {
	var n int
	row := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = FALSE`, userID)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications for user %d: %w", userID, err)
	}
	return n, nil
}

// FindByUserAndComplaint supports a complaint detail view's "what was I
// told about this" timeline.
func (r *NotificationRepository) FindByUserAndComplaint(ctx context.Context, userID, complaintID int64) ([]*domain.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE user_id = ? AND complaint_id = ? ORDER BY created_at ASC`,
		userID, complaintID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications for user %d complaint %d: %w", userID, complaintID, err)
	}
	defer rows.Close()
	var out []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flips is_read and stamps read_at for one notification owned by userID.
func (r *NotificationRepository) MarkRead(ctx context.Context, notificationID, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE, read_at = NOW() WHERE notification_id = ? AND user_id = ?`,
		notificationID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification %d read: %w", notificationID, err)
	}
	return nil
}
