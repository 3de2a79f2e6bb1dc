package hub

import "github.com/desertthunder/tunesync/internal/models"

// Handler receives the events of a channel. Embed [NopHandler] to implement only the kinds a surface cares about.
//
// Handlers run on the channel's read goroutine, except Resynced which runs on the goroutine that resynced, so they
// must return quickly. They may call back into the hub.
type Handler interface {
	NewNotification(models.NewNotification)
	NotificationMarkedRead(models.NotificationMarkedRead)
	NotificationHandled(models.NotificationHandled)
	NotificationDeleted(models.NotificationDeleted)
	UnreadCountUpdate(models.UnreadCountUpdate)
	MessageReceived(models.MessageReceived)
	ChatUnreadCountUpdate(models.ChatUnreadCountUpdate)
	ReactionUpdated(models.ReactionUpdated)
	PresenceChanged(models.PresenceChanged)
	FriendRequestUpdated(models.FriendRequestUpdated)
	ConnectionStateChange(models.ConnectionStateChange)
	Resynced(models.Resynced)
}

// NopHandler ignores every event.
type NopHandler struct{}

func (NopHandler) NewNotification(models.NewNotification)               {}
func (NopHandler) NotificationMarkedRead(models.NotificationMarkedRead) {}
func (NopHandler) NotificationHandled(models.NotificationHandled)       {}
func (NopHandler) NotificationDeleted(models.NotificationDeleted)       {}
func (NopHandler) UnreadCountUpdate(models.UnreadCountUpdate)           {}
func (NopHandler) MessageReceived(models.MessageReceived)               {}
func (NopHandler) ChatUnreadCountUpdate(models.ChatUnreadCountUpdate)   {}
func (NopHandler) ReactionUpdated(models.ReactionUpdated)               {}
func (NopHandler) PresenceChanged(models.PresenceChanged)               {}
func (NopHandler) FriendRequestUpdated(models.FriendRequestUpdated)     {}
func (NopHandler) ConnectionStateChange(models.ConnectionStateChange)   {}
func (NopHandler) Resynced(models.Resynced)                             {}

// EventFunc adapts a single function to [Handler]; it receives every event kind.
type EventFunc func(models.Event)

func (f EventFunc) NewNotification(e models.NewNotification)               { f(e) }
func (f EventFunc) NotificationMarkedRead(e models.NotificationMarkedRead) { f(e) }
func (f EventFunc) NotificationHandled(e models.NotificationHandled)       { f(e) }
func (f EventFunc) NotificationDeleted(e models.NotificationDeleted)       { f(e) }
func (f EventFunc) UnreadCountUpdate(e models.UnreadCountUpdate)           { f(e) }
func (f EventFunc) MessageReceived(e models.MessageReceived)               { f(e) }
func (f EventFunc) ChatUnreadCountUpdate(e models.ChatUnreadCountUpdate)   { f(e) }
func (f EventFunc) ReactionUpdated(e models.ReactionUpdated)               { f(e) }
func (f EventFunc) PresenceChanged(e models.PresenceChanged)               { f(e) }
func (f EventFunc) FriendRequestUpdated(e models.FriendRequestUpdated)     { f(e) }
func (f EventFunc) ConnectionStateChange(e models.ConnectionStateChange)   { f(e) }
func (f EventFunc) Resynced(e models.Resynced)                             { f(e) }

// deliver calls the method of h matching the kind of ev. It reports false for kinds handlers never see.
func deliver(h Handler, ev models.Event) bool {
	switch e := ev.(type) {
	case models.NewNotification:
		h.NewNotification(e)
	case models.NotificationMarkedRead:
		h.NotificationMarkedRead(e)
	case models.NotificationHandled:
		h.NotificationHandled(e)
	case models.NotificationDeleted:
		h.NotificationDeleted(e)
	case models.UnreadCountUpdate:
		h.UnreadCountUpdate(e)
	case models.MessageReceived:
		h.MessageReceived(e)
	case models.ChatUnreadCountUpdate:
		h.ChatUnreadCountUpdate(e)
	case models.ReactionUpdated:
		h.ReactionUpdated(e)
	case models.PresenceChanged:
		h.PresenceChanged(e)
	case models.FriendRequestUpdated:
		h.FriendRequestUpdated(e)
	case models.ConnectionStateChange:
		h.ConnectionStateChange(e)
	case models.Resynced:
		h.Resynced(e)
	default:
		return false
	}
	return true
}
