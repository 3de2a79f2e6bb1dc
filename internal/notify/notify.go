// Package notify raises desktop notifications for incoming social notifications.
package notify

import (
	"fmt"

	"github.com/gen2brain/beeep"

	"github.com/desertthunder/tunesync/internal/models"
)

const (
	appName    = "tunesync"
	maxPreview = 100
)

// Notifier shows a notification to the user outside the terminal.
type Notifier interface {
	Notify(n models.Notification) error
}

// Desktop sends notifications through the operating system's notification service.
type Desktop struct {
	Icon string
}

// Notify implements [Notifier].
func (d Desktop) Notify(n models.Notification) error {
	if err := beeep.Notify(Title(n), Body(n), d.Icon); err != nil {
		return fmt.Errorf("failed to send desktop notification: %w", err)
	}
	return nil
}

// Func adapts a function to [Notifier].
type Func func(n models.Notification) error

// Notify implements [Notifier].
func (f Func) Notify(n models.Notification) error { return f(n) }

// Title is the headline shown for n.
func Title(n models.Notification) string {
	switch n.Kind {
	case models.KindFriendRequest:
		return appName + " - Friend request"
	case models.KindFriendRequestAccepted:
		return appName + " - Friend request accepted"
	case models.KindFriendRemoved:
		return appName + " - Friend removed"
	case models.KindMessage:
		return appName + " - New message"
	default:
		return appName
	}
}

// Body is the text shown for n, truncated to 100 characters.
func Body(n models.Notification) string {
	body := n.Payload.Preview
	if body == "" {
		switch n.Kind {
		case models.KindFriendRequest:
			body = "sent you a friend request"
		case models.KindFriendRequestAccepted:
			body = "accepted your friend request"
		case models.KindFriendRemoved:
			body = "removed you as a friend"
		default:
			body = "You have a new notification"
		}
	}
	if n.Payload.SenderID != "" {
		body = fmt.Sprintf("%s: %s", n.Payload.SenderID, body)
	}

	runes := []rune(body)
	if len(runes) > maxPreview {
		body = string(runes[:maxPreview-3]) + "..."
	}
	return body
}
