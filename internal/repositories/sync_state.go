package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/tunesync/internal/mirror"
	"github.com/desertthunder/tunesync/internal/models"
)

// SyncState is the last successful resync of one channel.
type SyncState struct {
	Channel    models.Channel
	SyncedAt   time.Time
	StaleCount int
}

// SyncStateRepository records when each channel was last resynced. It implements tasks.SyncJournal.
type SyncStateRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSyncStateRepository creates a new SyncStateRepository with the given database connection
func NewSyncStateRepository(db *sql.DB) *SyncStateRepository {
	return &SyncStateRepository{db: db, now: time.Now}
}

// Record stores report as the latest resync of its channel for userID.
func (r *SyncStateRepository) Record(ctx context.Context, userID string, report *mirror.ResyncReport) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_state (user_id, channel, synced_at, stale_count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, channel) DO UPDATE SET synced_at = excluded.synced_at, stale_count = excluded.stale_count
	`, userID, report.Channel, r.now().UTC(), len(report.Stale))
	if err != nil {
		return fmt.Errorf("failed to record sync state: %w", err)
	}
	return nil
}

// List returns the recorded resyncs of userID ordered by channel.
func (r *SyncStateRepository) List(ctx context.Context, userID string) ([]SyncState, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT channel, synced_at, stale_count FROM sync_state WHERE user_id = ? ORDER BY channel
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync state: %w", err)
	}
	defer rows.Close()

	var states []SyncState
	for rows.Next() {
		var s SyncState
		if err := rows.Scan(&s.Channel, &s.SyncedAt, &s.StaleCount); err != nil {
			return nil, fmt.Errorf("failed to scan sync state: %w", err)
		}
		states = append(states, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync state: %w", err)
	}
	return states, nil
}
