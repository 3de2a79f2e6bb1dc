package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/tunesync/internal/models"
)

// ChatRepository caches a user's chats and their confirmed messages.
type ChatRepository struct {
	db *sql.DB
}

// NewChatRepository creates a new ChatRepository with the given database connection
func NewChatRepository(db *sql.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// Replace swaps the cached chats of userID, and every message of those chats, for chats and msgs.
// Messages the server has not confirmed are skipped.
func (r *ChatRepository) Replace(ctx context.Context, ex execer, userID string, chats []models.Chat, msgs map[string][]models.Message) error {
	if _, err := ex.ExecContext(ctx,
		`DELETE FROM messages WHERE chat_id IN (SELECT id FROM chats WHERE user_id = ?)`, userID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	if _, err := ex.ExecContext(ctx, `DELETE FROM chats WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to clear chats: %w", err)
	}

	for _, c := range chats {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		participants, err := encodeJSON(c.Participants)
		if err != nil {
			return err
		}

		var lastActivity any
		if !c.LastActivity.IsZero() {
			lastActivity = c.LastActivity
		}
		_, err = ex.ExecContext(ctx, `
			INSERT INTO chats (id, user_id, participants, last_activity, last_message, last_sender_id, version)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, c.ID, userID, participants, lastActivity, c.LastMessage, c.LastSenderID, c.Version)
		if err != nil {
			return fmt.Errorf("failed to insert chat %s: %w", c.ID, err)
		}

		for _, m := range msgs[c.ID] {
			if m.Pending() {
				continue
			}
			if err := r.insertMessage(ctx, ex, m); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *ChatRepository) insertMessage(ctx context.Context, ex execer, m models.Message) error {
	reactions, err := encodeJSON(m.Reactions)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO messages (id, chat_id, sender_id, content, timestamp, is_read, reactions, client_msg_id, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.ChatID, m.SenderID, m.Content, m.Timestamp, m.IsRead, reactions, m.ClientMsgID, m.Version)
	if err != nil {
		return fmt.Errorf("failed to insert message %s: %w", m.ID, err)
	}
	return nil
}

// List returns the cached chats of userID, most recent activity first.
func (r *ChatRepository) List(ctx context.Context, userID string) ([]models.Chat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, participants, last_activity, last_message, last_sender_id, version
		FROM chats
		WHERE user_id = ?
		ORDER BY last_activity DESC, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	defer rows.Close()

	var chats []models.Chat
	for rows.Next() {
		var (
			c            models.Chat
			participants string
			lastActivity sql.NullTime
		)
		if err := rows.Scan(&c.ID, &participants, &lastActivity, &c.LastMessage, &c.LastSenderID, &c.Version); err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		if c.Participants, err = decodeJSON[string](participants); err != nil {
			return nil, err
		}
		if lastActivity.Valid {
			c.LastActivity = lastActivity.Time
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chats: %w", err)
	}
	return chats, nil
}

// Messages returns the cached messages of chatID ordered by timestamp, ties by id.
func (r *ChatRepository) Messages(ctx context.Context, chatID string) ([]models.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, chat_id, sender_id, content, timestamp, is_read, reactions, client_msg_id, version
		FROM messages
		WHERE chat_id = ?
		ORDER BY timestamp, id
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var (
			m         models.Message
			ts        time.Time
			reactions string
		)
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &ts, &m.IsRead, &reactions, &m.ClientMsgID, &m.Version); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Timestamp = ts
		if m.Reactions, err = decodeJSON[models.Reaction](reactions); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return msgs, nil
}
