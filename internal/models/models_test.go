package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/tunesync/internal/shared"
)

func TestNotificationStatus(t *testing.T) {
	tc := []struct {
		name string
		from NotificationStatus
		to   NotificationStatus
		want bool
	}{
		{name: "unread to read", from: StatusUnread, to: StatusRead, want: true},
		{name: "unread to handled", from: StatusUnread, to: StatusHandled, want: true},
		{name: "read to handled", from: StatusRead, to: StatusHandled, want: true},
		{name: "read to read", from: StatusRead, to: StatusRead, want: true},
		{name: "read to unread", from: StatusRead, to: StatusUnread, want: false},
		{name: "handled to read", from: StatusHandled, to: StatusRead, want: false},
		{name: "handled to unread", from: StatusHandled, to: StatusUnread, want: false},
		{name: "unknown target", from: StatusUnread, to: "archived", want: false},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.want, got)
			}
		})
	}

	t.Run("Max never regresses", func(t *testing.T) {
		if got := StatusHandled.Max(StatusRead); got != StatusHandled {
			t.Errorf("expected handled, got %s", got)
		}
		if got := StatusUnread.Max(StatusRead); got != StatusRead {
			t.Errorf("expected read, got %s", got)
		}
	})
}

func TestMessageOrdering(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msgs := []Message{
		{ID: "c", Timestamp: base.Add(time.Second)},
		{ID: "b", Timestamp: base},
		{ID: "a", Timestamp: base},
	}
	SortMessages(msgs)

	want := []string{"a", "b", "c"}
	for i, id := range want {
		if msgs[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, msgs[i].ID)
		}
	}
}

func TestChatValidate(t *testing.T) {
	if err := (Chat{ID: "c1", Participants: []string{"u1"}}).Validate(); !errors.Is(err, shared.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for single participant, got %v", err)
	}
	if err := (Chat{ID: "c1", Participants: []string{"u1", "u2"}}).Validate(); err != nil {
		t.Errorf("expected valid chat, got %v", err)
	}
}

func TestEvents(t *testing.T) {
	t.Run("Decode typed payload", func(t *testing.T) {
		env := Envelope{
			Kind:    EventNewNotification,
			Payload: json.RawMessage(`{"notification":{"id":"n1","kind":"message","status":"unread","version":3}}`),
			Seq:     7,
		}
		ev, err := DecodeEvent(env)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		nn, ok := ev.(NewNotification)
		if !ok {
			t.Fatalf("expected NewNotification, got %T", ev)
		}
		if nn.Notification.ID != "n1" || nn.Notification.Version != 3 {
			t.Errorf("unexpected notification %+v", nn.Notification)
		}
	})

	t.Run("Encode then decode keeps kind", func(t *testing.T) {
		env, err := EncodeEvent(SendReaction{ChatID: "c1", MessageID: "m1", Emoji: "🔥", ClientMutationID: "mut-1"}, 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if env.Kind != EventSendReaction || env.Seq != 2 {
			t.Errorf("unexpected envelope %+v", env)
		}

		ev, err := DecodeEvent(env)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sr := ev.(SendReaction); sr.ClientMutationID != "mut-1" {
			t.Errorf("expected mut-1, got %s", sr.ClientMutationID)
		}
	})

	t.Run("Unknown kind", func(t *testing.T) {
		_, err := DecodeEvent(Envelope{Kind: "Telepathy"})
		if !errors.Is(err, shared.ErrUnknownEvent) {
			t.Errorf("expected ErrUnknownEvent, got %v", err)
		}
	})

	t.Run("Malformed payload", func(t *testing.T) {
		_, err := DecodeEvent(Envelope{Kind: EventUnreadCountUpdate, Payload: json.RawMessage(`{"count":"many"}`)})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestChannels(t *testing.T) {
	ch, err := ParseChannel("friend-presence")
	if err != nil || ch != ChannelPresence {
		t.Errorf("expected friend-presence, got %q (%v)", ch, err)
	}
	if _, err := ParseChannel("radio"); !errors.Is(err, shared.ErrUnknownChannel) {
		t.Errorf("expected ErrUnknownChannel, got %v", err)
	}

	var s ConnState
	if err := s.UnmarshalText([]byte("reconnecting")); err != nil || s != Reconnecting {
		t.Errorf("expected reconnecting, got %v (%v)", s, err)
	}
}
