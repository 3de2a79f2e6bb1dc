package models

// Snapshot is a read-only view of the mirrored state.
//
// A snapshot is shared between every reader until the state changes, so callers must not modify it.
type Snapshot struct {
	UserID              string                `json:"userId"`
	Notifications       []Notification        `json:"notifications"`
	UnreadNotifications int                   `json:"unreadNotifications"`
	Chats               []Chat                `json:"chats"`
	Messages            map[string][]Message  `json:"messages"`
	UnreadMessages      UnreadCounts          `json:"unreadMessages"`
	FriendRequests      []FriendRequest       `json:"friendRequests"`
	Presence            map[string]bool       `json:"presence"`
	Connections         map[Channel]ConnState `json:"connections"`
}

// Notification looks up an active notification by id.
func (s *Snapshot) Notification(id string) (Notification, bool) {
	for _, n := range s.Notifications {
		if n.ID == id {
			return n, true
		}
	}
	return Notification{}, false
}

// Chat looks up a chat by id.
func (s *Snapshot) Chat(id string) (Chat, bool) {
	for _, c := range s.Chats {
		if c.ID == id {
			return c, true
		}
	}
	return Chat{}, false
}

// ChatMessages returns the ordered messages of a chat.
func (s *Snapshot) ChatMessages(chatID string) []Message {
	return s.Messages[chatID]
}

// State returns the connection state of ch, [Disconnected] when unknown.
func (s *Snapshot) State(ch Channel) ConnState {
	if s.Connections == nil {
		return Disconnected
	}
	return s.Connections[ch]
}
