package hub

import (
	"io"
	"slices"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tunesync/internal/models"
)

type bell struct {
	NopHandler
	got []string
}

func (b *bell) NewNotification(e models.NewNotification) {
	b.got = append(b.got, e.Notification.ID)
}

func newTestRegistry() *Registry {
	return NewRegistry(log.New(io.Discard))
}

func named(name string, calls *[]string) Handler {
	return EventFunc(func(models.Event) { *calls = append(*calls, name) })
}

func TestRegistry(t *testing.T) {
	ev := models.NewNotification{Notification: models.Notification{ID: "n1"}}

	t.Run("set replaces instead of stacking", func(t *testing.T) {
		r := newTestRegistry()
		var calls []string
		for range 100 {
			r.Set("bell", named("h1", &calls))
		}
		r.Set("bell", named("h2", &calls))
		r.Dispatch(ev)
		r.Dispatch(ev)

		if !slices.Equal(calls, []string{"h2", "h2"}) {
			t.Errorf("expected only h2 twice, got %v", calls)
		}
		if r.Len() != 1 {
			t.Errorf("expected 1 registration, got %d", r.Len())
		}
	})

	t.Run("replacement keeps its position", func(t *testing.T) {
		r := newTestRegistry()
		var calls []string
		r.Set("a", named("a1", &calls))
		r.Set("b", named("b", &calls))
		r.Set("a", named("a2", &calls))
		r.Dispatch(ev)

		if !slices.Equal(calls, []string{"a2", "b"}) {
			t.Errorf("expected [a2 b], got %v", calls)
		}
		if keys := r.Keys(); !slices.Equal(keys, []string{"a", "b"}) {
			t.Errorf("expected keys [a b], got %v", keys)
		}
	})

	t.Run("remove drops only its key", func(t *testing.T) {
		r := newTestRegistry()
		var calls []string
		r.Set("a", named("a", &calls))
		r.Set("b", named("b", &calls))

		if !r.Remove("a") {
			t.Error("expected a to be removed")
		}
		if r.Remove("a") {
			t.Error("expected second removal to report false")
		}
		r.Dispatch(ev)
		if !slices.Equal(calls, []string{"b"}) {
			t.Errorf("expected [b], got %v", calls)
		}
	})

	t.Run("panicking handler does not stop the others", func(t *testing.T) {
		r := newTestRegistry()
		var calls []string
		r.Set("first", named("first", &calls))
		r.Set("broken", EventFunc(func(models.Event) { panic("boom") }))
		r.Set("last", named("last", &calls))

		r.Dispatch(ev)
		if !slices.Equal(calls, []string{"first", "last"}) {
			t.Errorf("expected [first last], got %v", calls)
		}
	})

	t.Run("handlers may change the registry during dispatch", func(t *testing.T) {
		r := newTestRegistry()
		var calls []string
		r.Set("self", EventFunc(func(models.Event) {
			calls = append(calls, "self")
			r.Remove("self")
			r.Set("late", named("late", &calls))
		}))
		r.Set("other", named("other", &calls))

		r.Dispatch(ev)
		if !slices.Equal(calls, []string{"self", "other"}) {
			t.Errorf("expected [self other] on first dispatch, got %v", calls)
		}

		calls = nil
		r.Dispatch(ev)
		if !slices.Equal(calls, []string{"other", "late"}) {
			t.Errorf("expected [other late] on second dispatch, got %v", calls)
		}
	})

	t.Run("dispatch without handlers is a no-op", func(t *testing.T) {
		r := newTestRegistry()
		r.Dispatch(ev)
		if r.Len() != 0 {
			t.Errorf("expected empty registry, got %d", r.Len())
		}
	})

	t.Run("nop handler embedding", func(t *testing.T) {
		r := newTestRegistry()
		b := &bell{}
		r.Set("bell", b)
		r.Dispatch(ev)
		r.Dispatch(models.PresenceChanged{UserID: "u2", Online: true})

		if !slices.Equal(b.got, []string{"n1"}) {
			t.Errorf("expected [n1], got %v", b.got)
		}
	})
}

func TestDeliver(t *testing.T) {
	var got []models.EventKind
	h := EventFunc(func(ev models.Event) { got = append(got, ev.Kind()) })

	events := []models.Event{
		models.NewNotification{},
		models.NotificationMarkedRead{},
		models.NotificationHandled{},
		models.NotificationDeleted{},
		models.UnreadCountUpdate{},
		models.MessageReceived{},
		models.ChatUnreadCountUpdate{},
		models.ReactionUpdated{},
		models.PresenceChanged{},
		models.FriendRequestUpdated{},
		models.ConnectionStateChange{},
		models.Resynced{},
	}
	for _, ev := range events {
		if !deliver(h, ev) {
			t.Errorf("expected %s to be delivered", ev.Kind())
		}
	}
	if len(got) != len(events) {
		t.Errorf("expected %d deliveries, got %d", len(events), len(got))
	}
	if deliver(h, models.Ping{}) {
		t.Error("expected Ping not to be delivered")
	}
}
