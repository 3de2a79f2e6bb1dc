package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
)

// NotificationRepository caches a user's active notifications.
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository creates a new NotificationRepository with the given database connection
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationColumns = `id, user_id, kind, status, request_id, chat_id, sender_id, preview, version, created_at`

// Replace swaps the cached notifications of userID for notes.
func (r *NotificationRepository) Replace(ctx context.Context, ex execer, userID string, notes []models.Notification) error {
	if _, err := ex.ExecContext(ctx, `DELETE FROM notifications WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to clear notifications: %w", err)
	}

	query := `INSERT INTO notifications (` + notificationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, n := range notes {
		if err := n.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		_, err := ex.ExecContext(ctx, query,
			n.ID,
			userID,
			n.Kind,
			n.Status,
			n.Payload.RequestID,
			n.Payload.ChatID,
			n.Payload.SenderID,
			n.Payload.Preview,
			n.Version,
			n.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert notification %s: %w", n.ID, err)
		}
	}
	return nil
}

// Get retrieves one cached notification.
func (r *NotificationRepository) Get(ctx context.Context, id string) (*models.Notification, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id)
	n, err := r.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrNotificationNotFound, id)
	}
	return n, err
}

// List returns the cached notifications of userID, newest first.
func (r *NotificationRepository) List(ctx context.Context, userID string) ([]models.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var notes []models.Notification
	for rows.Next() {
		n, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	return notes, nil
}

func (r *NotificationRepository) scan(s scanner) (*models.Notification, error) {
	var n models.Notification
	err := s.Scan(
		&n.ID,
		&n.UserID,
		&n.Kind,
		&n.Status,
		&n.Payload.RequestID,
		&n.Payload.ChatID,
		&n.Payload.SenderID,
		&n.Payload.Preview,
		&n.Version,
		&n.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan notification: %w", err)
	}
	return &n, nil
}
