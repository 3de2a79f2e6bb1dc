package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/tunesync/internal/models"
)

// SnapshotRepository persists whole snapshots for warm starts. It implements tasks.SnapshotCache.
//
// Only server-confirmed state is written; presence and connection states are not cached.
type SnapshotRepository struct {
	db       *sql.DB
	notes    *NotificationRepository
	chats    *ChatRepository
	requests *FriendRequestRepository
}

// NewSnapshotRepository creates a new SnapshotRepository with the given database connection
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{
		db:       db,
		notes:    NewNotificationRepository(db),
		chats:    NewChatRepository(db),
		requests: NewFriendRequestRepository(db),
	}
}

// Save replaces the cached state of snap.UserID with snap in a single transaction.
func (r *SnapshotRepository) Save(ctx context.Context, snap *models.Snapshot) error {
	if snap == nil || snap.UserID == "" {
		return fmt.Errorf("failed to save snapshot: missing user id")
	}
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := r.notes.Replace(ctx, tx, snap.UserID, snap.Notifications); err != nil {
			return err
		}
		if err := r.chats.Replace(ctx, tx, snap.UserID, snap.Chats, snap.Messages); err != nil {
			return err
		}
		return r.requests.Replace(ctx, tx, snap.UserID, snap.FriendRequests)
	})
}

// Load reads the cached state of userID. A user with nothing cached gets an empty snapshot.
func (r *SnapshotRepository) Load(ctx context.Context, userID string) (*models.Snapshot, error) {
	snap := &models.Snapshot{UserID: userID, Messages: make(map[string][]models.Message)}

	var err error
	if snap.Notifications, err = r.notes.List(ctx, userID); err != nil {
		return nil, err
	}
	for _, n := range snap.Notifications {
		if n.Unread() {
			snap.UnreadNotifications++
		}
	}

	if snap.Chats, err = r.chats.List(ctx, userID); err != nil {
		return nil, err
	}
	for _, c := range snap.Chats {
		msgs, err := r.chats.Messages(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		snap.Messages[c.ID] = msgs
	}

	if snap.FriendRequests, err = r.requests.List(ctx, userID); err != nil {
		return nil, err
	}
	return snap, nil
}
