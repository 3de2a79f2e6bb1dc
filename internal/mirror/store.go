package mirror

import (
	"slices"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
)

// patch is one optimistic change. It maps the server view (value, visible) to the local view.
type patch[T any] struct {
	owner  string
	at     uint64 // store clock when the patch was made
	create bool
	apply  func(v T, ok bool) (T, bool)
}

type entry[T any] struct {
	server  T
	exists  bool
	deleted bool
	version int64
	touched uint64
	patches []patch[T]
}

func (e entry[T]) view() (T, bool) {
	v, ok := e.server, e.exists
	for _, p := range e.patches {
		v, ok = p.apply(v, ok)
	}
	return v, ok
}

// empty reports whether the entry neither mirrors a server entity nor carries local state.
func (e entry[T]) empty() bool {
	return !e.exists && !e.deleted && len(e.patches) == 0
}

// Outcome describes what a server event did to the store.
type Outcome struct {
	Changed     bool
	NeedsResync bool

	// Replaced maps optimistic message ids to the server ids that superseded them.
	Replaced map[string]string
}

// Options configures a [Store].
type Options struct {
	UserID   string
	PageSize int
	Logger   *log.Logger
}

// Store is the state mirror. It is safe for concurrent use.
type Store struct {
	userID   string
	pageSize int
	logger   *log.Logger

	mu       sync.RWMutex
	clock    uint64
	notes    map[string]entry[models.Notification]
	chats    map[string]entry[models.Chat]
	msgs     map[string]map[string]entry[models.Message]
	requests map[string]entry[models.FriendRequest]
	presence map[string]bool
	conns    map[models.Channel]models.ConnState
	snap     *models.Snapshot
}

// New creates an empty [Store] for the signed-in user.
func New(opts Options) *Store {
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Store{
		userID:   opts.UserID,
		pageSize: opts.PageSize,
		logger:   shared.WithLogger(opts.Logger, "component", "mirror"),
		notes:    make(map[string]entry[models.Notification]),
		chats:    make(map[string]entry[models.Chat]),
		msgs:     make(map[string]map[string]entry[models.Message]),
		requests: make(map[string]entry[models.FriendRequest]),
		presence: make(map[string]bool),
		conns:    make(map[models.Channel]models.ConnState),
	}
}

// UserID returns the user the store mirrors.
func (s *Store) UserID() string { return s.userID }

// tick advances the write clock. Must be called with s.mu held.
func (s *Store) tick() uint64 {
	s.clock++
	s.snap = nil
	return s.clock
}

// Read returns the current snapshot. The same snapshot is returned to every reader until the state changes,
// so callers must treat it as read-only; copy what you need before modifying it.
func (s *Store) Read() *models.Snapshot {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()
	if snap != nil {
		return snap
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap == nil {
		s.snap = s.build()
	}
	return s.snap
}

// ApplyServerEvent merges a pushed event into the server copies. Applying the same event twice changes nothing
// the second time.
func (s *Store) ApplyServerEvent(ev models.Event) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out Outcome
	switch e := ev.(type) {
	case models.NewNotification:
		out.Changed = s.upsertNotification(e.Notification)
	case models.NotificationMarkedRead:
		out.Changed = s.advanceStatus(e.ID, e.All, models.StatusRead, e.Version)
	case models.NotificationHandled:
		out.Changed = s.advanceStatus(e.ID, false, models.StatusHandled, e.Version)
	case models.NotificationDeleted:
		out.Changed = s.deleteNotifications(e.ID, e.All, e.Version)
	case models.UnreadCountUpdate:
		out.NeedsResync = s.notificationCountDiffers(e.Count)
	case models.MessageReceived:
		out.Changed, out.NeedsResync, out.Replaced = s.upsertMessage(e.Message)
	case models.ChatUnreadCountUpdate:
		out.NeedsResync = s.chatCountDiffers(e.ChatID, e.Count)
	case models.ReactionUpdated:
		out.Changed = s.setReactions(e)
	case models.PresenceChanged:
		if cur, ok := s.presence[e.UserID]; !ok || cur != e.Online {
			s.presence[e.UserID] = e.Online
			s.tick()
			out.Changed = true
		}
	case models.FriendRequestUpdated:
		out.Changed = s.upsertRequest(e.Request)
	case models.ConnectionStateChange:
		if s.conns[e.Channel] != e.Current {
			s.conns[e.Channel] = e.Current
			s.tick()
			out.Changed = true
		}
	}
	return out
}

func (s *Store) upsertNotification(n models.Notification) bool {
	if err := n.Validate(); err != nil {
		s.logger.Warn("dropping notification", "error", err)
		return false
	}

	e, ok := s.notes[n.ID]
	if ok && e.deleted && n.Version <= e.version {
		return false
	}
	if ok && e.exists {
		if n.Version < e.version {
			return false
		}
		n.Status = e.server.Status.Max(n.Status)
		if n.Version == e.version && n == e.server {
			return false
		}
	}

	e.server, e.exists, e.deleted = n, true, false
	e.version = max(e.version, n.Version)
	e.touched = s.tick()
	s.notes[n.ID] = e
	return true
}

// advanceStatus moves one notification, or every unread one when all is set, forward to status.
// Unknown ids marked handled leave a tombstone so a late NewNotification cannot bring them back.
func (s *Store) advanceStatus(id string, all bool, status models.NotificationStatus, version int64) bool {
	if all {
		changed := false
		for nid, e := range s.notes {
			if e.exists && e.server.Unread() {
				e.server.Status = status
				e.touched = s.tick()
				s.notes[nid] = e
				changed = true
			}
		}
		return changed
	}

	e, ok := s.notes[id]
	if !ok || !e.exists {
		if status == models.StatusHandled && !ok {
			s.notes[id] = entry[models.Notification]{deleted: true, version: version, touched: s.tick()}
		}
		return false
	}
	if !e.server.Status.CanTransition(status) || e.server.Status == status {
		if version > e.version {
			e.version = version
			s.notes[id] = e
		}
		return false
	}

	e.server.Status = status
	e.server.Version = max(e.server.Version, version)
	e.version = max(e.version, version)
	e.touched = s.tick()
	s.notes[id] = e
	return true
}

func (s *Store) deleteNotifications(id string, all bool, version int64) bool {
	if all {
		changed := false
		for nid, e := range s.notes {
			if e.exists {
				e.exists, e.deleted = false, true
				e.version = max(e.version, version)
				e.touched = s.tick()
				s.notes[nid] = e
				changed = true
			}
		}
		return changed
	}

	e, ok := s.notes[id]
	if ok && e.deleted {
		return false
	}
	e.exists, e.deleted = false, true
	e.version = max(e.version, version)
	e.touched = s.tick()
	s.notes[id] = e
	return ok
}

// notificationCountDiffers compares the server badge count with the derived one. Pending patches make the
// local count legitimately differ, so they suppress the check.
func (s *Store) notificationCountDiffers(count int) bool {
	unread := 0
	for _, e := range s.notes {
		if len(e.patches) > 0 {
			return false
		}
		if e.exists && e.server.Unread() {
			unread++
		}
	}
	return unread != count
}

func (s *Store) chatCountDiffers(chatID string, count int) bool {
	unread := 0
	for cid, msgs := range s.msgs {
		if chatID != models.GlobalUnread && cid != chatID {
			continue
		}
		for _, e := range msgs {
			if len(e.patches) > 0 {
				return false
			}
			if e.exists && e.server.UnreadFor(s.userID) {
				unread++
			}
		}
	}
	return unread != count
}

func (s *Store) upsertMessage(m models.Message) (changed, resync bool, replaced map[string]string) {
	if m.ID == "" || m.ChatID == "" {
		s.logger.Warn("dropping message without id", "chat", m.ChatID)
		return false, false, nil
	}

	if _, ok := s.chats[m.ChatID]; !ok {
		participants := []string{m.SenderID}
		if m.SenderID != s.userID {
			participants = append(participants, s.userID)
		}
		s.chats[m.ChatID] = entry[models.Chat]{
			server:  models.Chat{ID: m.ChatID, Participants: participants, LastActivity: m.Timestamp},
			exists:  true,
			touched: s.tick(),
		}
		resync, changed = true, true
	}

	msgs := s.msgs[m.ChatID]
	if msgs == nil {
		msgs = make(map[string]entry[models.Message])
		s.msgs[m.ChatID] = msgs
	}

	if m.ClientMsgID != "" {
		for id, e := range msgs {
			if id == m.ID || e.exists {
				continue
			}
			if v, ok := e.view(); ok && v.ClientMsgID == m.ClientMsgID {
				delete(msgs, id)
				if replaced == nil {
					replaced = make(map[string]string)
				}
				replaced[id] = m.ID
				changed = true
			}
		}
	}

	e, ok := msgs[m.ID]
	if ok && e.exists {
		if m.Version < e.version {
			return changed, resync, replaced
		}
		m.IsRead = m.IsRead || e.server.IsRead
		if m.Version == e.version && sameMessage(m, e.server) {
			if changed {
				s.tick()
			}
			return changed, resync, replaced
		}
	}

	e.server, e.exists = m, true
	e.version = max(e.version, m.Version)
	e.touched = s.tick()
	msgs[m.ID] = e
	return true, resync, replaced
}

func sameMessage(a, b models.Message) bool {
	return a.ID == b.ID && a.ChatID == b.ChatID && a.SenderID == b.SenderID && a.Content == b.Content &&
		a.Timestamp.Equal(b.Timestamp) && a.IsRead == b.IsRead && a.ClientMsgID == b.ClientMsgID &&
		a.Version == b.Version && slices.Equal(a.Reactions, b.Reactions)
}

func (s *Store) setReactions(ev models.ReactionUpdated) bool {
	msgs := s.msgs[ev.ChatID]
	e, ok := msgs[ev.MessageID]
	if !ok || !e.exists || ev.Version < e.version {
		return false
	}
	if ev.Version == e.version && slices.Equal(e.server.Reactions, ev.Reactions) {
		return false
	}
	e.server.Reactions = slices.Clone(ev.Reactions)
	e.server.Version = max(e.server.Version, ev.Version)
	e.version = max(e.version, ev.Version)
	e.touched = s.tick()
	msgs[ev.MessageID] = e
	return true
}

func (s *Store) upsertRequest(r models.FriendRequest) bool {
	if r.ID == "" {
		return false
	}

	for id, e := range s.requests {
		if e.exists || id == r.ID {
			continue
		}
		if v, ok := e.view(); ok && v.FromUserID == r.FromUserID && v.ToUserID == r.ToUserID {
			delete(s.requests, id)
		}
	}

	e, ok := s.requests[r.ID]
	if ok && e.exists && (r.Version < e.version || (r.Version == e.version && r == e.server)) {
		return false
	}
	e.server, e.exists = r, true
	e.version = max(e.version, r.Version)
	e.touched = s.tick()
	s.requests[r.ID] = e
	return true
}

// build renders the snapshot. Must be called with s.mu held.
func (s *Store) build() *models.Snapshot {
	snap := &models.Snapshot{
		UserID:         s.userID,
		Notifications:  []models.Notification{},
		Chats:          []models.Chat{},
		Messages:       make(map[string][]models.Message),
		UnreadMessages: models.UnreadCounts{models.GlobalUnread: 0},
		FriendRequests: []models.FriendRequest{},
		Presence:       make(map[string]bool, len(s.presence)),
		Connections:    make(map[models.Channel]models.ConnState, len(s.conns)),
	}

	for _, e := range s.notes {
		n, ok := e.view()
		if !ok || !n.Active() {
			continue
		}
		snap.Notifications = append(snap.Notifications, n)
		if n.Unread() {
			snap.UnreadNotifications++
		}
	}
	sort.Slice(snap.Notifications, func(i, j int) bool {
		a, b := snap.Notifications[i], snap.Notifications[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	for id, ce := range s.chats {
		chat, ok := ce.view()
		if !ok {
			continue
		}
		chat.Participants = slices.Clone(chat.Participants)

		var msgs []models.Message
		for _, me := range s.msgs[id] {
			if m, ok := me.view(); ok {
				m.Reactions = slices.Clone(m.Reactions)
				msgs = append(msgs, m)
			}
		}
		models.SortMessages(msgs)

		chat.UnreadCount = 0
		for _, m := range msgs {
			if m.UnreadFor(s.userID) {
				chat.UnreadCount++
			}
		}
		if n := len(msgs); n > 0 {
			last := msgs[n-1]
			chat.LastMessage, chat.LastSenderID = last.Content, last.SenderID
			if last.Timestamp.After(chat.LastActivity) {
				chat.LastActivity = last.Timestamp
			}
		}

		snap.Chats = append(snap.Chats, chat)
		snap.Messages[id] = msgs
		snap.UnreadMessages[id] = chat.UnreadCount
		snap.UnreadMessages[models.GlobalUnread] += chat.UnreadCount
	}
	sort.Slice(snap.Chats, func(i, j int) bool {
		a, b := snap.Chats[i], snap.Chats[j]
		if !a.LastActivity.Equal(b.LastActivity) {
			return a.LastActivity.After(b.LastActivity)
		}
		return a.ID < b.ID
	})

	for _, e := range s.requests {
		if r, ok := e.view(); ok {
			snap.FriendRequests = append(snap.FriendRequests, r)
		}
	}
	sort.Slice(snap.FriendRequests, func(i, j int) bool {
		a, b := snap.FriendRequests[i], snap.FriendRequests[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	for k, v := range s.presence {
		snap.Presence[k] = v
	}
	for k, v := range s.conns {
		snap.Connections[k] = v
	}
	return snap
}
