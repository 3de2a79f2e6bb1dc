package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/desertthunder/tunesync/internal/shared"
)

// GlobalUnread is the [UnreadCounts] key holding the sum over every chat.
const GlobalUnread = "global"

// Chat is a conversation between two or more users.
//
// LastMessage and LastSenderID are the denormalised preview the chat list renders.
type Chat struct {
	ID           string    `json:"id"`
	Participants []string  `json:"participants"`
	LastActivity time.Time `json:"lastActivity"`
	LastMessage  string    `json:"lastMessage,omitempty"`
	LastSenderID string    `json:"lastSenderId,omitempty"`
	UnreadCount  int       `json:"unreadCount"`
	Version      int64     `json:"version"`
}

// Validate checks that the chat has an id and at least two participants.
func (c Chat) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: chat id is empty", shared.ErrInvalidInput)
	}
	if len(c.Participants) < 2 {
		return fmt.Errorf("%w: chat %s has %d participants", shared.ErrInvalidInput, c.ID, len(c.Participants))
	}
	return nil
}

// Reaction is one user's emoji on a message.
type Reaction struct {
	UserID string `json:"userId"`
	Emoji  string `json:"emoji"`
}

// Message is one chat message.
//
// ClientMsgID is set by the sender before the server assigns ID and is echoed back so an optimistic copy can be matched.
type Message struct {
	ID          string     `json:"id"`
	ChatID      string     `json:"chatId"`
	SenderID    string     `json:"senderId"`
	Content     string     `json:"content"`
	Timestamp   time.Time  `json:"timestamp"`
	IsRead      bool       `json:"isRead"`
	Reactions   []Reaction `json:"reactions,omitempty"`
	ClientMsgID string     `json:"clientMsgId,omitempty"`
	Version     int64      `json:"version"`
}

// Pending reports whether the message is a local copy the server has not confirmed.
func (m Message) Pending() bool { return shared.IsTempID(m.ID) }

// UnreadFor reports whether the message counts as unread for userID.
func (m Message) UnreadFor(userID string) bool {
	return !m.IsRead && m.SenderID != userID
}

// MessageLess orders messages by timestamp, breaking ties by id.
func MessageLess(a, b Message) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.ID < b.ID
}

// SortMessages sorts msgs in place with [MessageLess].
func SortMessages(msgs []Message) {
	sort.Slice(msgs, func(i, j int) bool { return MessageLess(msgs[i], msgs[j]) })
}

// UnreadCounts maps chat id to unread messages, with the total under [GlobalUnread].
type UnreadCounts map[string]int

// Global returns the total across chats.
func (u UnreadCounts) Global() int { return u[GlobalUnread] }

// Equal reports whether both maps agree on every key. Missing keys count as zero.
func (u UnreadCounts) Equal(other UnreadCounts) bool {
	for k, v := range u {
		if other[k] != v {
			return false
		}
	}
	for k, v := range other {
		if u[k] != v {
			return false
		}
	}
	return true
}

// SendMessageRequest is the body of a send-message call.
type SendMessageRequest struct {
	ChatID      string `json:"chatId"`
	SenderID    string `json:"senderId"`
	Content     string `json:"content"`
	ClientMsgID string `json:"clientMsgId,omitempty"`
}
