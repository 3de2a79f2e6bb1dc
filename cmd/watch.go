package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/desertthunder/tunesync/internal/bridge"
	"github.com/desertthunder/tunesync/internal/hub"
	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/notify"
	"github.com/urfave/cli/v3"
)

// watchKey is the handler key the watch command registers under.
const watchKey = "cli.watch"

// watchLine is the --json shape of one event.
type watchLine struct {
	Time    time.Time        `json:"time"`
	Channel models.Channel   `json:"channel"`
	Kind    models.EventKind `json:"kind"`
	Event   models.Event     `json:"event"`
}

// Watch connects the requested channels and prints every event until interrupted.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	channels := models.Channels()
	if names := cmd.StringSlice("channel"); len(names) > 0 {
		channels = channels[:0:0]
		for _, name := range names {
			ch, err := models.ParseChannel(name)
			if err != nil {
				return err
			}
			channels = append(channels, ch)
		}
	}
	asJSON := cmd.Bool("json")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := r.openHub()
	if err != nil {
		return err
	}

	var mu sync.Mutex
	emit := func(ch models.Channel, ev models.Event) {
		mu.Lock()
		defer mu.Unlock()
		if asJSON {
			if err := r.writeJSON(watchLine{Time: time.Now().UTC(), Channel: ch, Kind: ev.Kind(), Event: ev}, false); err != nil {
				r.logger.Warn("failed to write event", "error", err)
			}
			return
		}
		r.writePlain("%s %-16s %s\n", time.Now().Format(time.TimeOnly), ch, describeEvent(ev))
	}

	for _, ch := range channels {
		if err := h.SetHandlers(ch, watchKey, hub.EventFunc(func(ev models.Event) { emit(ch, ev) })); err != nil {
			return err
		}
		defer h.RemoveHandlers(ch, watchKey)
	}

	rollbacks := bridge.Subscribe(h.Bus(), bridge.MutationRolledBack, func(rb bridge.Rollback) {
		r.logger.Warn("mutation rolled back", "kind", rb.Kind, "target", rb.Target, "error", rb.Err)
	})
	defer h.Bus().Unsubscribe(rollbacks)

	r.logger.Info("watching", "channels", channels, "user", h.UserID())
	<-ctx.Done()
	return nil
}

// describeEvent renders ev as a short human-readable line.
func describeEvent(ev models.Event) string {
	switch e := ev.(type) {
	case models.NewNotification:
		return fmt.Sprintf("%s: %s (%s)", notify.Title(e.Notification), notify.Body(e.Notification), e.Notification.ID)
	case models.NotificationMarkedRead:
		if e.All {
			return "all notifications read"
		}
		return "notification read " + e.ID
	case models.NotificationHandled:
		return "notification handled " + e.ID
	case models.NotificationDeleted:
		if e.All {
			return "all notifications deleted"
		}
		return "notification deleted " + e.ID
	case models.UnreadCountUpdate:
		return fmt.Sprintf("unread notifications: %d", e.Count)
	case models.MessageReceived:
		return fmt.Sprintf("[%s] %s: %s", e.Message.ChatID, e.Message.SenderID, e.Message.Content)
	case models.ChatUnreadCountUpdate:
		return fmt.Sprintf("unread messages in %s: %d", e.ChatID, e.Count)
	case models.ReactionUpdated:
		return fmt.Sprintf("reactions on %s/%s: %d", e.ChatID, e.MessageID, len(e.Reactions))
	case models.PresenceChanged:
		state := "offline"
		if e.Online {
			state = "online"
		}
		return e.UserID + " is " + state
	case models.FriendRequestUpdated:
		return fmt.Sprintf("friend request %s from %s to %s: %s", e.Request.ID, e.Request.FromUserID, e.Request.ToUserID, e.Request.Status)
	case models.ConnectionStateChange:
		return fmt.Sprintf("%s → %s", e.Previous, e.Current)
	case models.Resynced:
		if len(e.Stale) > 0 {
			return fmt.Sprintf("resynced, %d stale", len(e.Stale))
		}
		return "resynced"
	default:
		return string(ev.Kind())
	}
}
