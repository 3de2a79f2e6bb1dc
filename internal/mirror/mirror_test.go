package mirror_test

import (
	"context"
	"errors"
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tunesync/internal/mirror"
	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
	tu "github.com/desertthunder/tunesync/internal/testing"
)

const me = "u1"

func newStore(pageSize int) *mirror.Store {
	return mirror.New(mirror.Options{UserID: me, PageSize: pageSize, Logger: log.New(io.Discard)})
}

func note(id string, version int64, status models.NotificationStatus) models.Notification {
	return models.Notification{
		ID:        id,
		UserID:    me,
		Kind:      models.KindOther,
		Status:    status,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, int(version), 0, time.UTC),
		Version:   version,
	}
}

func TestApplyServerEvent(t *testing.T) {
	t.Run("earlier snapshots do not see later writes", func(t *testing.T) {
		s := newStore(0)
		s.ApplyServerEvent(models.NewNotification{Notification: note("n1", 1, models.StatusUnread)})
		before := s.Read()

		s.ApplyServerEvent(models.NotificationMarkedRead{ID: "n1", Version: 2})
		s.ApplyServerEvent(models.NewNotification{Notification: note("n2", 1, models.StatusUnread)})

		if before.UnreadNotifications != 1 || len(before.Notifications) != 1 {
			t.Errorf("expected the earlier snapshot unchanged, got %d unread of %d", before.UnreadNotifications, len(before.Notifications))
		}
		if n, _ := before.Notification("n1"); n.Status != models.StatusUnread {
			t.Errorf("expected n1 unread in the earlier snapshot, got %v", n.Status)
		}
		if after := s.Read(); after == before || after.UnreadNotifications != 1 || len(after.Notifications) != 2 {
			t.Errorf("expected a fresh snapshot with n2 unread, got %+v", after)
		}
	})

	t.Run("duplicate notification changes nothing", func(t *testing.T) {
		s := newStore(0)
		ev := models.NewNotification{Notification: note("n1", 1, models.StatusUnread)}

		if out := s.ApplyServerEvent(ev); !out.Changed {
			t.Fatal("expected first delivery to change state")
		}
		first := s.Read()
		if out := s.ApplyServerEvent(ev); out.Changed {
			t.Error("expected duplicate delivery to be a no-op")
		}
		if second := s.Read(); second != first {
			t.Error("expected snapshot to be reused after a duplicate")
		}
		if first.UnreadNotifications != 1 {
			t.Errorf("expected 1 unread, got %d", first.UnreadNotifications)
		}
	})

	t.Run("status never moves backwards", func(t *testing.T) {
		s := newStore(0)
		s.ApplyServerEvent(models.NewNotification{Notification: note("n1", 1, models.StatusUnread)})
		s.ApplyServerEvent(models.NotificationMarkedRead{ID: "n1", Version: 2})
		s.ApplyServerEvent(models.NewNotification{Notification: note("n1", 2, models.StatusUnread)})

		n, ok := s.Read().Notification("n1")
		if !ok {
			t.Fatal("expected n1 in snapshot")
		}
		if n.Status != models.StatusRead {
			t.Errorf("expected read, got %s", n.Status)
		}

		s.ApplyServerEvent(models.NotificationHandled{ID: "n1", Version: 3})
		s.ApplyServerEvent(models.NotificationMarkedRead{ID: "n1", Version: 4})
		if _, ok := s.Read().Notification("n1"); ok {
			t.Error("expected handled notification to stay out of the list")
		}
	})

	t.Run("older copy is ignored", func(t *testing.T) {
		s := newStore(0)
		newer := note("n1", 5, models.StatusUnread)
		newer.Payload.Preview = "new"
		older := note("n1", 3, models.StatusUnread)
		older.Payload.Preview = "old"

		s.ApplyServerEvent(models.NewNotification{Notification: newer})
		if out := s.ApplyServerEvent(models.NewNotification{Notification: older}); out.Changed {
			t.Error("expected older version to be ignored")
		}
		n, _ := s.Read().Notification("n1")
		if n.Payload.Preview != "new" {
			t.Errorf("expected preview new, got %q", n.Payload.Preview)
		}
	})

	t.Run("deleted notification is not resurrected", func(t *testing.T) {
		s := newStore(0)
		s.ApplyServerEvent(models.NewNotification{Notification: note("n1", 1, models.StatusUnread)})
		s.ApplyServerEvent(models.NotificationDeleted{ID: "n1", Version: 2})
		s.ApplyServerEvent(models.NewNotification{Notification: note("n1", 1, models.StatusUnread)})

		if got := len(s.Read().Notifications); got != 0 {
			t.Errorf("expected 0 notifications, got %d", got)
		}
	})

	t.Run("handled before creation leaves a tombstone", func(t *testing.T) {
		s := newStore(0)
		s.ApplyServerEvent(models.NotificationHandled{ID: "n1", Version: 2})
		s.ApplyServerEvent(models.NewNotification{Notification: note("n1", 1, models.StatusUnread)})

		if got := len(s.Read().Notifications); got != 0 {
			t.Errorf("expected 0 notifications, got %d", got)
		}
	})

	t.Run("mark all read and delete all", func(t *testing.T) {
		s := newStore(0)
		for i, id := range []string{"n1", "n2", "n3"} {
			s.ApplyServerEvent(models.NewNotification{Notification: note(id, int64(i+1), models.StatusUnread)})
		}

		s.ApplyServerEvent(models.NotificationMarkedRead{All: true})
		if got := s.Read().UnreadNotifications; got != 0 {
			t.Errorf("expected 0 unread, got %d", got)
		}
		if got := len(s.Read().Notifications); got != 3 {
			t.Errorf("expected 3 notifications, got %d", got)
		}

		s.ApplyServerEvent(models.NotificationDeleted{All: true})
		if got := len(s.Read().Notifications); got != 0 {
			t.Errorf("expected 0 notifications, got %d", got)
		}
	})

	t.Run("unread count mismatch asks for resync", func(t *testing.T) {
		s := newStore(0)
		s.ApplyServerEvent(models.NewNotification{Notification: note("n1", 1, models.StatusUnread)})

		if out := s.ApplyServerEvent(models.UnreadCountUpdate{Count: 1}); out.NeedsResync {
			t.Error("expected matching count to be accepted")
		}
		if out := s.ApplyServerEvent(models.UnreadCountUpdate{Count: 3}); !out.NeedsResync {
			t.Error("expected mismatched count to request a resync")
		}

		if _, err := s.Local("m1").MarkRead("n1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out := s.ApplyServerEvent(models.UnreadCountUpdate{Count: 1}); out.NeedsResync {
			t.Error("expected pending optimistic state to suppress the check")
		}
	})

	t.Run("connection state and presence", func(t *testing.T) {
		s := newStore(0)
		s.ApplyServerEvent(models.ConnectionStateChange{
			Channel:  models.ChannelChat,
			Previous: models.Connecting,
			Current:  models.Connected,
		})
		s.ApplyServerEvent(models.PresenceChanged{UserID: "u2", Online: true})

		snap := s.Read()
		if got := snap.State(models.ChannelChat); got != models.Connected {
			t.Errorf("expected connected, got %s", got)
		}
		if !snap.Presence["u2"] {
			t.Error("expected u2 online")
		}
		if out := s.ApplyServerEvent(models.PresenceChanged{UserID: "u2", Online: true}); out.Changed {
			t.Error("expected repeated presence to be a no-op")
		}
	})
}

func TestMessages(t *testing.T) {
	chat := models.Chat{ID: "c1", Participants: []string{me, "u2"}, Version: 1}
	msg := func(id string, version int64) models.Message {
		return models.Message{
			ID:        id,
			ChatID:    "c1",
			SenderID:  "u2",
			Content:   "hello " + id,
			Timestamp: time.Date(2026, 1, 1, 0, 0, int(version), 0, time.UTC),
			Version:   version,
		}
	}

	seeded := func(t *testing.T) *mirror.Store {
		t.Helper()
		b := tu.NewFakeBackend(me)
		b.AddChat(chat)
		s := newStore(0)
		if _, err := s.Resync(context.Background(), models.ChannelChat, b); err != nil {
			t.Fatalf("resync failed: %v", err)
		}
		return s
	}

	t.Run("duplicate delivery appears once", func(t *testing.T) {
		s := seeded(t)
		s.ApplyServerEvent(models.MessageReceived{Message: msg("m1", 2)})
		s.ApplyServerEvent(models.MessageReceived{Message: msg("m1", 2)})

		snap := s.Read()
		if got := len(snap.ChatMessages("c1")); got != 1 {
			t.Fatalf("expected 1 message, got %d", got)
		}
		c, _ := snap.Chat("c1")
		if c.UnreadCount != 1 {
			t.Errorf("expected 1 unread, got %d", c.UnreadCount)
		}
		if c.LastMessage != "hello m1" {
			t.Errorf("expected preview from last message, got %q", c.LastMessage)
		}
		if snap.UnreadMessages.Global() != 1 {
			t.Errorf("expected global unread 1, got %d", snap.UnreadMessages.Global())
		}
	})

	t.Run("server echo replaces the optimistic copy", func(t *testing.T) {
		s := seeded(t)
		temp := models.Message{
			ID:          shared.GenerateTempID(),
			ChatID:      "c1",
			SenderID:    me,
			Content:     "hi",
			Timestamp:   time.Now(),
			ClientMsgID: "client-1",
		}
		if err := s.Local("send").AddMessage(temp); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		echo := models.Message{ID: "m9", ChatID: "c1", SenderID: me, Content: "hi", Timestamp: temp.Timestamp, ClientMsgID: "client-1", Version: 9}
		out := s.ApplyServerEvent(models.MessageReceived{Message: echo})
		if out.Replaced[temp.ID] != "m9" {
			t.Errorf("expected %s to be replaced by m9, got %v", temp.ID, out.Replaced)
		}

		msgs := s.Read().ChatMessages("c1")
		if len(msgs) != 1 || msgs[0].ID != "m9" {
			t.Fatalf("expected only m9, got %+v", msgs)
		}
		if s.Pending("send") {
			t.Error("expected no patches left for the send")
		}
	})

	t.Run("message for unknown chat creates a placeholder", func(t *testing.T) {
		s := newStore(0)
		m := msg("m1", 1)
		m.ChatID = "c2"
		out := s.ApplyServerEvent(models.MessageReceived{Message: m})
		if !out.NeedsResync {
			t.Error("expected unknown chat to request a resync")
		}
		if _, ok := s.Read().Chat("c2"); !ok {
			t.Error("expected placeholder chat")
		}
	})

	t.Run("reactions follow versions", func(t *testing.T) {
		s := seeded(t)
		s.ApplyServerEvent(models.MessageReceived{Message: msg("m1", 2)})
		s.ApplyServerEvent(models.ReactionUpdated{ChatID: "c1", MessageID: "m1", Version: 4,
			Reactions: []models.Reaction{{UserID: "u2", Emoji: "🔥"}}})
		s.ApplyServerEvent(models.ReactionUpdated{ChatID: "c1", MessageID: "m1", Version: 3})

		got := s.Read().ChatMessages("c1")[0].Reactions
		if len(got) != 1 || got[0].Emoji != "🔥" {
			t.Errorf("expected newest reactions to win, got %+v", got)
		}
	})

	t.Run("chat count mismatch asks for resync", func(t *testing.T) {
		s := seeded(t)
		s.ApplyServerEvent(models.MessageReceived{Message: msg("m1", 2)})
		if out := s.ApplyServerEvent(models.ChatUnreadCountUpdate{ChatID: "c1", Count: 1}); out.NeedsResync {
			t.Error("expected matching count to be accepted")
		}
		if out := s.ApplyServerEvent(models.ChatUnreadCountUpdate{ChatID: models.GlobalUnread, Count: 2}); !out.NeedsResync {
			t.Error("expected mismatched global count to request a resync")
		}
	})
}

func TestLocal(t *testing.T) {
	seed := func() *mirror.Store {
		s := newStore(0)
		s.ApplyServerEvent(models.NewNotification{Notification: note("n1", 1, models.StatusUnread)})
		s.ApplyServerEvent(models.NewNotification{Notification: note("n2", 2, models.StatusUnread)})
		s.ApplyServerEvent(models.NewNotification{Notification: note("n3", 3, models.StatusRead)})
		return s
	}

	t.Run("discard restores the exact snapshot", func(t *testing.T) {
		s := seed()
		before := s.Read()

		ids := s.Local("all").MarkAllRead()
		if !reflect.DeepEqual(ids, []string{"n1", "n2"}) {
			t.Errorf("expected [n1 n2], got %v", ids)
		}
		if !s.Local("del").Delete("n3") {
			t.Error("expected delete to change state")
		}
		if got := s.Read().UnreadNotifications; got != 0 {
			t.Errorf("expected 0 unread, got %d", got)
		}

		s.Discard("all")
		s.Discard("del")
		if after := s.Read(); !reflect.DeepEqual(before, after) {
			t.Errorf("expected restored snapshot\nbefore: %+v\nafter:  %+v", before, after)
		}
	})

	t.Run("discard leaves other owners alone", func(t *testing.T) {
		s := seed()
		s.Local("a").MarkRead("n1")
		s.Local("b").MarkRead("n2")
		s.Discard("a")

		snap := s.Read()
		n1, _ := snap.Notification("n1")
		n2, _ := snap.Notification("n2")
		if n1.Status != models.StatusUnread || n2.Status != models.StatusRead {
			t.Errorf("expected n1 unread and n2 read, got %s and %s", n1.Status, n2.Status)
		}
	})

	t.Run("discard keeps server writes made since the patch", func(t *testing.T) {
		s := seed()
		s.Local("a").Delete("n1")
		s.ApplyServerEvent(models.NotificationMarkedRead{ID: "n1", Version: 9})

		if stale := s.Discard("a"); !reflect.DeepEqual(stale, []string{"n1"}) {
			t.Errorf("expected n1 stale, got %v", stale)
		}
		n, ok := s.Read().Notification("n1")
		if !ok || n.Status != models.StatusRead {
			t.Errorf("expected n1 back with server status read, got %+v (present %v)", n, ok)
		}
	})

	t.Run("commit survives later duplicates", func(t *testing.T) {
		s := seed()
		s.Local("a").MarkRead("n1")
		s.Commit("a")
		s.ApplyServerEvent(models.NewNotification{Notification: note("n1", 1, models.StatusUnread)})

		n, _ := s.Read().Notification("n1")
		if n.Status != models.StatusRead {
			t.Errorf("expected read, got %s", n.Status)
		}
		if s.Pending("a") {
			t.Error("expected nothing pending after commit")
		}
	})

	t.Run("no-ops", func(t *testing.T) {
		s := seed()
		if changed, err := s.Local("a").MarkRead("n3"); err != nil || changed {
			t.Errorf("expected read notification to be a no-op, got %v, %v", changed, err)
		}
		if _, err := s.Local("a").MarkRead("missing"); !errors.Is(err, shared.ErrNotificationNotFound) {
			t.Errorf("expected ErrNotificationNotFound, got %v", err)
		}
		if s.Local("a").Delete("missing") {
			t.Error("expected deleting a missing notification to be a no-op")
		}
	})

	t.Run("handled drops from list", func(t *testing.T) {
		s := seed()
		if changed, err := s.Local("h").MarkHandled("n1"); err != nil || !changed {
			t.Fatalf("expected change, got %v, %v", changed, err)
		}
		if _, ok := s.Read().Notification("n1"); ok {
			t.Error("expected n1 hidden while handled")
		}
		if changed, _ := s.Local("h2").MarkHandled("n1"); changed {
			t.Error("expected second handle to be a no-op")
		}
	})

	t.Run("friend requests", func(t *testing.T) {
		s := newStore(0)
		req := models.FriendRequest{ID: shared.GenerateTempID(), FromUserID: me, ToUserID: "u2", Status: models.RequestPending}
		if !s.Local("fr").AddFriendRequest(req) {
			t.Fatal("expected request to be added")
		}
		if s.Local("fr2").AddFriendRequest(models.FriendRequest{ID: "tmp-x", FromUserID: me, ToUserID: "u2", Status: models.RequestPending}) {
			t.Error("expected duplicate request to be a no-op")
		}

		s.ApplyServerEvent(models.FriendRequestUpdated{Request: models.FriendRequest{
			ID: "fr-1", FromUserID: me, ToUserID: "u2", Status: models.RequestPending, Version: 1,
		}})
		reqs := s.Read().FriendRequests
		if len(reqs) != 1 || reqs[0].ID != "fr-1" {
			t.Errorf("expected server request to replace the temp one, got %+v", reqs)
		}
	})
}

func TestResync(t *testing.T) {
	ctx := context.Background()

	t.Run("idempotent against an unchanged server", func(t *testing.T) {
		b := tu.NewFakeBackend(me)
		b.AddNotification(models.Notification{ID: "n1"})
		b.AddNotification(models.Notification{ID: "n2", Status: models.StatusRead})
		b.AddChat(models.Chat{ID: "c1", Participants: []string{me, "u2"}})
		b.AddMessage(models.Message{ChatID: "c1", SenderID: "u2", Content: "yo"})
		b.AddFriendRequest(models.FriendRequest{ID: "fr1", FromUserID: "u3", ToUserID: me})
		b.SetFriends(models.Friend{UserID: "u2", Online: true})

		s := newStore(1)
		for _, ch := range models.Channels() {
			if _, err := s.Resync(ctx, ch, b); err != nil {
				t.Fatalf("resync %s failed: %v", ch, err)
			}
		}
		first := s.Read()

		for _, ch := range models.Channels() {
			report, err := s.Resync(ctx, ch, b)
			if err != nil {
				t.Fatalf("resync %s failed: %v", ch, err)
			}
			if report.Changed {
				t.Errorf("expected second resync of %s to change nothing", ch)
			}
		}
		if second := s.Read(); !reflect.DeepEqual(first, second) {
			t.Errorf("expected identical snapshots\nfirst:  %+v\nsecond: %+v", first, second)
		}

		if len(first.Notifications) != 2 || first.UnreadNotifications != 1 {
			t.Errorf("expected 2 notifications with 1 unread, got %d with %d", len(first.Notifications), first.UnreadNotifications)
		}
		if first.UnreadMessages.Global() != 1 {
			t.Errorf("expected 1 unread message, got %d", first.UnreadMessages.Global())
		}
		if len(first.FriendRequests) != 1 || !first.Presence["u2"] {
			t.Errorf("expected request and presence, got %+v %+v", first.FriendRequests, first.Presence)
		}
	})

	t.Run("pages through notifications", func(t *testing.T) {
		b := tu.NewFakeBackend(me)
		for _, id := range []string{"n1", "n2", "n3", "n4", "n5"} {
			b.AddNotification(models.Notification{ID: id})
		}
		s := newStore(2)
		report, err := s.Resync(ctx, models.ChannelNotifications, b)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.Fetched != 5 {
			t.Errorf("expected 5 fetched, got %d", report.Fetched)
		}
		if got := b.Calls("Notifications"); got != 3 {
			t.Errorf("expected 3 page requests, got %d", got)
		}
	})

	t.Run("catches up after missed events", func(t *testing.T) {
		b := tu.NewFakeBackend(me)
		b.AddChat(models.Chat{ID: "c1", Participants: []string{me, "u2"}})
		s := newStore(0)
		s.Resync(ctx, models.ChannelChat, b)
		s.Resync(ctx, models.ChannelNotifications, b)

		b.AddNotification(models.Notification{ID: "n1"})
		b.AddNotification(models.Notification{ID: "n2"})
		b.AddMessage(models.Message{ChatID: "c1", SenderID: "u2", Content: "missed"})

		s.Resync(ctx, models.ChannelNotifications, b)
		s.Resync(ctx, models.ChannelChat, b)

		counts, _ := b.UnreadMessageCounts(ctx, me)
		snap := s.Read()
		if !snap.UnreadMessages.Equal(counts) {
			t.Errorf("expected unread %v, got %v", counts, snap.UnreadMessages)
		}
		if snap.UnreadNotifications != 2 {
			t.Errorf("expected 2 unread notifications, got %d", snap.UnreadNotifications)
		}
	})

	t.Run("reports stale optimistic state", func(t *testing.T) {
		b := tu.NewFakeBackend(me)
		b.AddNotification(models.Notification{ID: "n1"})
		s := newStore(0)
		s.Resync(ctx, models.ChannelNotifications, b)

		s.Local("m").MarkRead("n1")
		b.MarkAsHandled(ctx, "n1")

		report, err := s.Resync(ctx, models.ChannelNotifications, b)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(report.Stale, []string{"n1"}) {
			t.Errorf("expected n1 stale, got %v", report.Stale)
		}
		if s.Pending("m") {
			t.Error("expected stale patches to be dropped")
		}
	})

	t.Run("keeps pending state the server has not seen", func(t *testing.T) {
		b := tu.NewFakeBackend(me)
		b.AddNotification(models.Notification{ID: "n1"})
		s := newStore(0)
		s.Resync(ctx, models.ChannelNotifications, b)
		s.Local("m").MarkRead("n1")

		report, _ := s.Resync(ctx, models.ChannelNotifications, b)
		if len(report.Stale) != 0 {
			t.Errorf("expected nothing stale, got %v", report.Stale)
		}
		if got := s.Read().UnreadNotifications; got != 0 {
			t.Errorf("expected optimistic read to survive, got %d unread", got)
		}
	})

	t.Run("keeps events applied during the fetch", func(t *testing.T) {
		b := tu.NewFakeBackend(me)
		b.AddNotification(models.Notification{ID: "n1"})
		s := newStore(0)

		release := b.Block("Notifications")
		done := make(chan error, 1)
		go func() {
			_, err := s.Resync(ctx, models.ChannelNotifications, b)
			done <- err
		}()
		tu.Eventually(t, time.Second, func() bool { return b.Calls("Notifications") == 1 }, "resync never fetched")

		s.ApplyServerEvent(models.NewNotification{Notification: note("n-live", 100, models.StatusUnread)})
		release()
		if err := <-done; err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		snap := s.Read()
		if _, ok := snap.Notification("n-live"); !ok {
			t.Error("expected live notification to survive the resync")
		}
		if _, ok := snap.Notification("n1"); !ok {
			t.Error("expected fetched notification")
		}
	})

	t.Run("status never moves backwards at the same version", func(t *testing.T) {
		s := newStore(0)
		s.ApplyServerEvent(models.NewNotification{Notification: note("n1", 1, models.StatusUnread)})
		s.ApplyServerEvent(models.NewNotification{Notification: note("n2", 1, models.StatusUnread)})
		s.ApplyServerEvent(models.NotificationHandled{ID: "n1", Version: 1})
		s.ApplyServerEvent(models.NotificationMarkedRead{ID: "n2", Version: 1})

		src := &staticSource{notes: []models.Notification{
			note("n1", 1, models.StatusUnread),
			note("n2", 1, models.StatusUnread),
		}}
		if _, err := s.Resync(ctx, models.ChannelNotifications, src); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		snap := s.Read()
		if _, ok := snap.Notification("n1"); ok {
			t.Error("expected handled notification to stay out of the list")
		}
		if n, ok := snap.Notification("n2"); !ok || n.Status != models.StatusRead {
			t.Errorf("expected n2 to stay read, got %+v", n)
		}
		if snap.UnreadNotifications != 0 {
			t.Errorf("expected no unread notifications, got %d", snap.UnreadNotifications)
		}
	})

	t.Run("read messages stay read", func(t *testing.T) {
		s := newStore(0)
		msg := models.Message{ID: "m1", ChatID: "c1", SenderID: "u2", Content: "hi", IsRead: true, Version: 1}
		s.ApplyServerEvent(models.MessageReceived{Message: msg})

		unread := msg
		unread.IsRead = false
		src := &staticSource{
			chats: []models.Chat{{ID: "c1", Participants: []string{me, "u2"}, Version: 1}},
			msgs:  map[string][]models.Message{"c1": {unread}},
		}
		if _, err := s.Resync(ctx, models.ChannelChat, src); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := s.Read().UnreadMessages.Global(); got != 0 {
			t.Errorf("expected no unread messages, got %d", got)
		}
	})

	t.Run("unknown channel", func(t *testing.T) {
		s := newStore(0)
		if _, err := s.Resync(ctx, models.Channel("radio"), tu.NewFakeBackend(me)); !errors.Is(err, shared.ErrUnknownChannel) {
			t.Errorf("expected ErrUnknownChannel, got %v", err)
		}
	})

	t.Run("propagates fetch errors", func(t *testing.T) {
		b := tu.NewFakeBackend(me)
		b.Fail("Chats", shared.ErrServiceUnavailable)
		s := newStore(0)
		if _, err := s.Resync(ctx, models.ChannelChat, b); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestHydrate(t *testing.T) {
	s := newStore(0)
	s.Hydrate(&models.Snapshot{
		Notifications: []models.Notification{note("n1", 1, models.StatusUnread)},
		Chats:         []models.Chat{{ID: "c1", Participants: []string{me, "u2"}}},
		Messages: map[string][]models.Message{"c1": {
			{ID: "m1", ChatID: "c1", SenderID: "u2"},
			{ID: shared.GenerateTempID(), ChatID: "c1", SenderID: me},
		}},
	})

	snap := s.Read()
	if snap.UnreadNotifications != 1 {
		t.Errorf("expected 1 unread, got %d", snap.UnreadNotifications)
	}
	if got := len(snap.ChatMessages("c1")); got != 1 {
		t.Errorf("expected pending message to be skipped, got %d messages", got)
	}
}

// staticSource serves fixed server state, versions included.
type staticSource struct {
	notes []models.Notification
	chats []models.Chat
	msgs  map[string][]models.Message
}

func (s *staticSource) Notifications(ctx context.Context, userID string, limit, offset int) (*models.NotificationPage, error) {
	if offset >= len(s.notes) {
		return &models.NotificationPage{Total: len(s.notes)}, nil
	}
	return &models.NotificationPage{Notifications: s.notes[offset:], Total: len(s.notes)}, nil
}

func (s *staticSource) FriendRequests(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	return nil, nil
}

func (s *staticSource) Chats(ctx context.Context, userID string) ([]models.Chat, error) {
	return s.chats, nil
}

func (s *staticSource) ChatMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	return s.msgs[chatID], nil
}

func (s *staticSource) Friends(ctx context.Context, userID string) ([]models.Friend, error) {
	return nil, nil
}
