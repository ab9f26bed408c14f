package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gudangmitra/gudang/internal/model"
)

// CreateNotification stores a notification, assigning an id if it has none.
func CreateNotification(ctx context.Context, db *sql.DB, n model.Notification) (*model.Notification, error) {
	if n.UserID <= 0 {
		return nil, validationf("user_id required")
	}
	if strings.TrimSpace(n.Message) == "" {
		return nil, validationf("message required")
	}
	if n.Type == "" {
		n.Type = model.NotifySystem
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, type, message, related_request_id) VALUES (?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Type, n.Message, nullString(n.RelatedRequestID),
	)
	if err != nil {
		return nil, fmt.Errorf("creating notification: %w", err)
	}
	return GetNotification(ctx, db, n.ID)
}

// GetNotification returns a notification by id.
func GetNotification(ctx context.Context, db *sql.DB, id string) (*model.Notification, error) {
	n, err := scanNotification(db.QueryRowContext(ctx,
		`SELECT id, user_id, type, message, related_request_id, is_read, created_at
		 FROM notifications WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, notFoundf("notification %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting notification: %w", err)
	}
	return n, nil
}

// ListNotifications returns a user's notifications, newest first. limit <= 0
// means no limit.
func ListNotifications(ctx context.Context, db *sql.DB, userID int64, unreadOnly bool, limit int) ([]model.Notification, error) {
	query := `SELECT id, user_id, type, message, related_request_id, is_read, created_at
		FROM notifications WHERE user_id = ?`
	args := []any{userID}
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		notifications = append(notifications, *n)
	}
	return notifications, rows.Err()
}

// CountUnreadNotifications returns how many unread notifications a user has.
func CountUnreadNotifications(ctx context.Context, db *sql.DB, userID int64) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0`, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return n, nil
}

// MarkNotificationRead marks one of the user's notifications as read.
func MarkNotificationRead(ctx context.Context, db *sql.DB, id string, userID int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID,
	)
	if err != nil {
		return fmt.Errorf("marking notification read: %w", err)
	}
	return requireAffected(result, notFoundf("notification %s", id))
}

// MarkAllNotificationsRead marks every unread notification of a user as read
// and returns how many changed.
func MarkAllNotificationsRead(ctx context.Context, db *sql.DB, userID int64) (int64, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0`, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("marking notifications read: %w", err)
	}
	return result.RowsAffected()
}

// DeleteNotification deletes one of the user's notifications.
func DeleteNotification(ctx context.Context, db *sql.DB, id string, userID int64) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM notifications WHERE id = ? AND user_id = ?`, id, userID,
	)
	if err != nil {
		return fmt.Errorf("deleting notification: %w", err)
	}
	return requireAffected(result, notFoundf("notification %s", id))
}

func scanNotification(row rowScanner) (*model.Notification, error) {
	n := &model.Notification{}
	var related sql.NullString
	if err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &related, &n.IsRead, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.RelatedRequestID = related.String
	return n, nil
}
