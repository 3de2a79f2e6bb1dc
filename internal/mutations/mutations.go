package mutations

import (
	"fmt"
	"strings"

	"github.com/desertthunder/tunesync/internal/shared"
)

// Kind names a mutation.
type Kind string

const (
	KindMarkRead             Kind = "mark_read"
	KindMarkAllRead          Kind = "mark_all_read"
	KindMarkHandled          Kind = "mark_handled"
	KindDelete               Kind = "delete"
	KindDeleteAll            Kind = "delete_all"
	KindSendMessage          Kind = "send_message"
	KindSendReaction         Kind = "send_reaction"
	KindMarkChatRead         Kind = "mark_chat_read"
	KindSendFriendRequest    Kind = "send_friend_request"
	KindRespondFriendRequest Kind = "respond_friend_request"
)

// Mutation is one user intent. Build them with the constructors below.
type Mutation struct {
	Kind   Kind
	Target string

	MessageID string
	Content   string
	Emoji     string
	Accept    bool
}

// MarkRead marks one notification read.
func MarkRead(notificationID string) Mutation {
	return Mutation{Kind: KindMarkRead, Target: notificationID}
}

// MarkAllRead marks every notification read.
func MarkAllRead() Mutation { return Mutation{Kind: KindMarkAllRead} }

// MarkHandled marks one notification handled.
func MarkHandled(notificationID string) Mutation {
	return Mutation{Kind: KindMarkHandled, Target: notificationID}
}

// Delete removes one notification.
func Delete(notificationID string) Mutation {
	return Mutation{Kind: KindDelete, Target: notificationID}
}

// DeleteAll removes every notification.
func DeleteAll() Mutation { return Mutation{Kind: KindDeleteAll} }

// SendMessage posts content to a chat.
func SendMessage(chatID, content string) Mutation {
	return Mutation{Kind: KindSendMessage, Target: chatID, Content: content}
}

// SendReaction sets the user's reaction on a message. An empty emoji clears it.
func SendReaction(chatID, messageID, emoji string) Mutation {
	return Mutation{Kind: KindSendReaction, Target: chatID, MessageID: messageID, Emoji: emoji}
}

// MarkChatRead marks every message of a chat read.
func MarkChatRead(chatID string) Mutation {
	return Mutation{Kind: KindMarkChatRead, Target: chatID}
}

// SendFriendRequest invites another user.
func SendFriendRequest(toUserID string) Mutation {
	return Mutation{Kind: KindSendFriendRequest, Target: toUserID}
}

// RespondFriendRequest accepts or declines a pending request.
func RespondFriendRequest(requestID string, accept bool) Mutation {
	return Mutation{Kind: KindRespondFriendRequest, Target: requestID, Accept: accept}
}

func (m Mutation) validate() error {
	switch m.Kind {
	case KindMarkAllRead, KindDeleteAll:
		return nil
	case KindMarkRead, KindMarkHandled, KindDelete, KindMarkChatRead, KindSendFriendRequest, KindRespondFriendRequest:
	case KindSendMessage:
		if strings.TrimSpace(m.Content) == "" {
			return fmt.Errorf("%w: message content is empty", shared.ErrInvalidInput)
		}
	case KindSendReaction:
		if m.MessageID == "" {
			return fmt.Errorf("%w: message id is empty", shared.ErrMissingArgument)
		}
	default:
		return fmt.Errorf("%w: unknown mutation kind %q", shared.ErrInvalidArgument, m.Kind)
	}
	if m.Target == "" {
		return fmt.Errorf("%w: %s needs a target", shared.ErrMissingArgument, m.Kind)
	}
	return nil
}

const (
	scopeNotifications = "notifications"
	scopeChats         = "chats"
	scopeRequests      = "friend_requests"
)

// lockKey names what a mutation serializes on. An empty key claims the whole collection.
type lockKey struct {
	collection string
	key        string
}

func (m Mutation) scope(requestNotification string) []lockKey {
	switch m.Kind {
	case KindMarkAllRead, KindDeleteAll:
		return []lockKey{{collection: scopeNotifications}}
	case KindMarkRead, KindMarkHandled, KindDelete:
		return []lockKey{{scopeNotifications, m.Target}}
	case KindSendMessage:
		// new entity; nothing to serialize with
		return nil
	case KindSendReaction:
		return []lockKey{{scopeChats, m.Target + "/" + m.MessageID}}
	case KindMarkChatRead:
		return []lockKey{{scopeChats, m.Target}}
	case KindSendFriendRequest:
		return []lockKey{{scopeRequests, "to:" + m.Target}}
	case KindRespondFriendRequest:
		keys := []lockKey{{scopeRequests, m.Target}}
		if requestNotification != "" {
			keys = append(keys, lockKey{scopeNotifications, requestNotification})
		}
		return keys
	}
	return nil
}

// Error is returned by [Coordinator.Apply] when a mutation fails. Err wraps one of the shared mutation sentinels
// and the underlying cause.
type Error struct {
	Kind   Kind
	Target string
	Err    error
}

func (e *Error) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Target, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
