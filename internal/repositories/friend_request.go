package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
)

// FriendRequestRepository caches the friend requests a user sent or received.
type FriendRequestRepository struct {
	db *sql.DB
}

// NewFriendRequestRepository creates a new FriendRequestRepository with the given database connection
func NewFriendRequestRepository(db *sql.DB) *FriendRequestRepository {
	return &FriendRequestRepository{db: db}
}

// Replace swaps the cached requests of userID for reqs, skipping ones the server has not confirmed.
func (r *FriendRequestRepository) Replace(ctx context.Context, ex execer, userID string, reqs []models.FriendRequest) error {
	if _, err := ex.ExecContext(ctx, `DELETE FROM friend_requests WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to clear friend requests: %w", err)
	}
	for _, req := range reqs {
		if shared.IsTempID(req.ID) {
			continue
		}
		_, err := ex.ExecContext(ctx, `
			INSERT INTO friend_requests (id, user_id, from_user_id, to_user_id, status, created_at, version)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, req.ID, userID, req.FromUserID, req.ToUserID, req.Status, req.CreatedAt, req.Version)
		if err != nil {
			return fmt.Errorf("failed to insert friend request %s: %w", req.ID, err)
		}
	}
	return nil
}

// List returns the cached requests of userID, oldest first.
func (r *FriendRequestRepository) List(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, from_user_id, to_user_id, status, created_at, version
		FROM friend_requests
		WHERE user_id = ?
		ORDER BY created_at, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query friend requests: %w", err)
	}
	defer rows.Close()

	var reqs []models.FriendRequest
	for rows.Next() {
		var req models.FriendRequest
		if err := rows.Scan(&req.ID, &req.FromUserID, &req.ToUserID, &req.Status, &req.CreatedAt, &req.Version); err != nil {
			return nil, fmt.Errorf("failed to scan friend request: %w", err)
		}
		reqs = append(reqs, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating friend requests: %w", err)
	}
	return reqs, nil
}
