package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/tunesync/internal/shared"
)

// EventKind tags an [Envelope].
type EventKind string

const (
	EventNewNotification        EventKind = "NewNotification"
	EventNotificationMarkedRead EventKind = "NotificationMarkedRead"
	EventNotificationHandled    EventKind = "NotificationHandled"
	EventNotificationDeleted    EventKind = "NotificationDeleted"
	EventUnreadCountUpdate      EventKind = "UnreadCountUpdate"
	EventMessageReceived        EventKind = "MessageReceived"
	EventChatUnreadCountUpdate  EventKind = "ChatUnreadCountUpdate"
	EventReactionUpdated        EventKind = "ReactionUpdated"
	EventPresenceChanged        EventKind = "PresenceChanged"
	EventFriendRequestUpdated   EventKind = "FriendRequestUpdated"

	// Synthesized locally, never received from the server.
	EventConnectionStateChange EventKind = "ConnectionStateChange"
	EventResynced              EventKind = "Resynced"

	// Outbound only.
	EventSendReaction EventKind = "SendReaction"
	EventPing         EventKind = "Ping"
)

// Envelope is the frame exchanged on a push channel.
type Envelope struct {
	Kind    EventKind       `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Seq     int64           `json:"seq,omitempty"`
}

// Event is the decoded payload of an [Envelope].
type Event interface {
	Kind() EventKind
}

type NewNotification struct {
	Notification Notification `json:"notification"`
}

// NotificationMarkedRead marks one notification read, or every unread one when All is set.
type NotificationMarkedRead struct {
	ID      string `json:"id,omitempty"`
	All     bool   `json:"all,omitempty"`
	Version int64  `json:"version"`
}

type NotificationHandled struct {
	ID      string `json:"id"`
	Version int64  `json:"version"`
}

// NotificationDeleted removes one notification, or all of them when All is set.
type NotificationDeleted struct {
	ID      string `json:"id,omitempty"`
	All     bool   `json:"all,omitempty"`
	Version int64  `json:"version"`
}

// UnreadCountUpdate is the server's notification badge count.
type UnreadCountUpdate struct {
	Count int `json:"count"`
}

type MessageReceived struct {
	Message Message `json:"message"`
}

// ChatUnreadCountUpdate is the server's unread count for one chat, or the total when ChatID is [GlobalUnread].
type ChatUnreadCountUpdate struct {
	ChatID string `json:"chatId"`
	Count  int    `json:"count"`
}

// ReactionUpdated carries the full reaction list of a message.
//
// ClientMutationID echoes the id of the [SendReaction] that caused it, if any.
type ReactionUpdated struct {
	ChatID           string     `json:"chatId"`
	MessageID        string     `json:"messageId"`
	Reactions        []Reaction `json:"reactions"`
	Version          int64      `json:"version"`
	ClientMutationID string     `json:"clientMutationId,omitempty"`
}

type PresenceChanged struct {
	UserID string    `json:"userId"`
	Online bool      `json:"online"`
	At     time.Time `json:"at"`
}

type FriendRequestUpdated struct {
	Request FriendRequest `json:"request"`
}

// ConnectionStateChange reports a channel state transition.
type ConnectionStateChange struct {
	Channel  Channel   `json:"channel"`
	Previous ConnState `json:"previous"`
	Current  ConnState `json:"current"`
}

// Resynced reports that a channel slice was replaced by a full read.
type Resynced struct {
	Channel Channel  `json:"channel"`
	Stale   []string `json:"stale,omitempty"`
}

// SendReaction asks the server to set the sender's reaction on a message.
type SendReaction struct {
	ChatID           string `json:"chatId"`
	MessageID        string `json:"messageId"`
	UserID           string `json:"userId"`
	Emoji            string `json:"emoji"`
	ClientMutationID string `json:"clientMutationId"`
}

type Ping struct{}

func (NewNotification) Kind() EventKind        { return EventNewNotification }
func (NotificationMarkedRead) Kind() EventKind { return EventNotificationMarkedRead }
func (NotificationHandled) Kind() EventKind    { return EventNotificationHandled }
func (NotificationDeleted) Kind() EventKind    { return EventNotificationDeleted }
func (UnreadCountUpdate) Kind() EventKind      { return EventUnreadCountUpdate }
func (MessageReceived) Kind() EventKind        { return EventMessageReceived }
func (ChatUnreadCountUpdate) Kind() EventKind  { return EventChatUnreadCountUpdate }
func (ReactionUpdated) Kind() EventKind        { return EventReactionUpdated }
func (PresenceChanged) Kind() EventKind        { return EventPresenceChanged }
func (FriendRequestUpdated) Kind() EventKind   { return EventFriendRequestUpdated }
func (ConnectionStateChange) Kind() EventKind  { return EventConnectionStateChange }
func (Resynced) Kind() EventKind               { return EventResynced }
func (SendReaction) Kind() EventKind           { return EventSendReaction }
func (Ping) Kind() EventKind                   { return EventPing }

// DecodeEvent unpacks the payload of env into its typed [Event].
func DecodeEvent(env Envelope) (Event, error) {
	var ev Event
	switch env.Kind {
	case EventNewNotification:
		ev = &NewNotification{}
	case EventNotificationMarkedRead:
		ev = &NotificationMarkedRead{}
	case EventNotificationHandled:
		ev = &NotificationHandled{}
	case EventNotificationDeleted:
		ev = &NotificationDeleted{}
	case EventUnreadCountUpdate:
		ev = &UnreadCountUpdate{}
	case EventMessageReceived:
		ev = &MessageReceived{}
	case EventChatUnreadCountUpdate:
		ev = &ChatUnreadCountUpdate{}
	case EventReactionUpdated:
		ev = &ReactionUpdated{}
	case EventPresenceChanged:
		ev = &PresenceChanged{}
	case EventFriendRequestUpdated:
		ev = &FriendRequestUpdated{}
	case EventSendReaction:
		ev = &SendReaction{}
	case EventPing:
		return Ping{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", shared.ErrUnknownEvent, env.Kind)
	}

	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, ev); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", shared.ErrInvalidInput, env.Kind, err)
		}
	}
	return deref(ev), nil
}

// EncodeEvent wraps ev in an [Envelope].
func EncodeEvent(ev Event, seq int64) (Envelope, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode %s: %w", ev.Kind(), err)
	}
	return Envelope{Kind: ev.Kind(), Payload: payload, Seq: seq}, nil
}

// deref returns events by value so type switches only need one case per kind.
func deref(ev Event) Event {
	switch e := ev.(type) {
	case *NewNotification:
		return *e
	case *NotificationMarkedRead:
		return *e
	case *NotificationHandled:
		return *e
	case *NotificationDeleted:
		return *e
	case *UnreadCountUpdate:
		return *e
	case *MessageReceived:
		return *e
	case *ChatUnreadCountUpdate:
		return *e
	case *ReactionUpdated:
		return *e
	case *PresenceChanged:
		return *e
	case *FriendRequestUpdated:
		return *e
	case *SendReaction:
		return *e
	}
	return ev
}
