package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/tunesync/internal/shared"
)

// NotificationKind classifies what a notification is about.
type NotificationKind string

const (
	KindFriendRequest         NotificationKind = "friend_request"
	KindFriendRequestAccepted NotificationKind = "friend_request_accepted"
	KindFriendRemoved         NotificationKind = "friend_removed"
	KindMessage               NotificationKind = "message"
	KindOther                 NotificationKind = "other"
)

// NotificationStatus moves forward only: unread, read, handled.
// Unread may skip straight to handled.
type NotificationStatus string

const (
	StatusUnread  NotificationStatus = "unread"
	StatusRead    NotificationStatus = "read"
	StatusHandled NotificationStatus = "handled"
)

func (s NotificationStatus) rank() int {
	switch s {
	case StatusUnread:
		return 0
	case StatusRead:
		return 1
	case StatusHandled:
		return 2
	default:
		return -1
	}
}

// Valid reports whether s is one of the known statuses.
func (s NotificationStatus) Valid() bool {
	return s.rank() >= 0
}

// CanTransition reports whether moving from s to next keeps the status monotonic.
// Staying in place is allowed.
func (s NotificationStatus) CanTransition(next NotificationStatus) bool {
	return next.Valid() && next.rank() >= s.rank()
}

// Max returns the later of the two statuses.
func (s NotificationStatus) Max(other NotificationStatus) NotificationStatus {
	if other.rank() > s.rank() {
		return other
	}
	return s
}

// NotificationPayload carries the kind-specific references of a notification.
type NotificationPayload struct {
	RequestID string `json:"requestId,omitempty"`
	ChatID    string `json:"chatId,omitempty"`
	SenderID  string `json:"senderId,omitempty"`
	Preview   string `json:"preview,omitempty"`
}

// Notification is one entry of a user's notification set.
type Notification struct {
	ID        string              `json:"id"`
	UserID    string              `json:"userId"`
	Kind      NotificationKind    `json:"kind"`
	Status    NotificationStatus  `json:"status"`
	Payload   NotificationPayload `json:"payload"`
	CreatedAt time.Time           `json:"createdAt"`
	Version   int64               `json:"version"`
}

// Unread reports whether the notification counts toward the bell badge.
func (n Notification) Unread() bool { return n.Status == StatusUnread }

// Active reports whether the notification belongs in the list; handled ones do not.
func (n Notification) Active() bool { return n.Status != StatusHandled }

// Validate checks the fields the mirror relies on.
func (n Notification) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("%w: notification id is empty", shared.ErrInvalidInput)
	}
	if !n.Status.Valid() {
		return fmt.Errorf("%w: notification %s has status %q", shared.ErrInvalidInput, n.ID, n.Status)
	}
	return nil
}

// NotificationPage is one page of the REST notification listing.
type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unreadCount"`
	Total         int            `json:"total"`
}
