package bridge

import "github.com/desertthunder/tunesync/internal/models"

// NotificationRef points at one notification.
type NotificationRef struct {
	ID string
}

// MessageRef points at one message of a chat. TempID is the optimistic id the message had before confirmation.
type MessageRef struct {
	ChatID    string
	MessageID string
	TempID    string
}

// Rollback describes a mutation that was reverted.
type Rollback struct {
	MutationID string
	Kind       string
	Target     string
	Err        error
}

// StateChange is a channel connection transition.
type StateChange struct {
	Channel  models.Channel
	Previous models.ConnState
	Current  models.ConnState
}

// ResyncResult summarises a completed resync.
type ResyncResult struct {
	Channel models.Channel
	Stale   []string
}

var (
	NotificationDeleted    = NewTopic[NotificationRef]("notification.deleted")
	NotificationsCleared   = NewTopic[struct{}]("notifications.cleared")
	NotificationsRead      = NewTopic[[]string]("notifications.read")
	NotificationHandled    = NewTopic[NotificationRef]("notification.handled")
	MessageSent            = NewTopic[MessageRef]("message.sent")
	ReactionSent           = NewTopic[MessageRef]("reaction.sent")
	ChatRead               = NewTopic[string]("chat.read")
	FriendRequestSent      = NewTopic[models.FriendRequest]("friend_request.sent")
	FriendRequestAnswered  = NewTopic[models.FriendRequest]("friend_request.answered")
	MutationRolledBack     = NewTopic[Rollback]("mutation.rolled_back")
	ConnectionStateChanged = NewTopic[StateChange]("connection.state_changed")
	StaleData              = NewTopic[[]string]("data.stale")
	ResyncCompleted        = NewTopic[ResyncResult]("resync.completed")
)
