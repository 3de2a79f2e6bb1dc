package mirror

import (
	"fmt"
	"slices"

	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
)

// Local applies optimistic changes on behalf of one pending mutation. Every change it makes can be undone with
// [Store.Discard] or made permanent with [Store.Commit] using the same owner.
//
// Methods report whether the visible state changed; a false result means the mutation is a no-op.
type Local struct {
	s     *Store
	owner string
}

// Local returns a writer whose patches belong to owner.
func (s *Store) Local(owner string) *Local {
	return &Local{s: s, owner: owner}
}

func addPatch[T any](e *entry[T], owner string, at uint64, create bool, fn func(T, bool) (T, bool)) {
	e.patches = append(e.patches, patch[T]{owner: owner, at: at, create: create, apply: fn})
}

func readPatch(n models.Notification, ok bool) (models.Notification, bool) {
	if ok {
		n.Status = n.Status.Max(models.StatusRead)
	}
	return n, ok
}

func handledPatch(n models.Notification, ok bool) (models.Notification, bool) {
	if ok {
		n.Status = models.StatusHandled
	}
	return n, ok
}

func hidePatch[T any](v T, _ bool) (T, bool) { return v, false }

// MarkRead marks a notification read.
func (l *Local) MarkRead(id string) (bool, error) {
	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.notes[id]
	n, visible := e.view()
	if !ok || !visible || !n.Active() {
		return false, fmt.Errorf("%w: %s", shared.ErrNotificationNotFound, id)
	}
	if !n.Unread() {
		return false, nil
	}
	addPatch(&e, l.owner, s.clock, false, readPatch)
	s.notes[id] = e
	s.tick()
	return true, nil
}

// MarkAllRead marks every visible unread notification read and returns their ids.
func (l *Local) MarkAllRead() []string {
	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, e := range s.notes {
		if n, ok := e.view(); ok && n.Unread() {
			addPatch(&e, l.owner, s.clock, false, readPatch)
			s.notes[id] = e
			ids = append(ids, id)
		}
	}
	if len(ids) > 0 {
		s.tick()
	}
	slices.Sort(ids)
	return ids
}

// MarkHandled moves a notification to handled, which drops it from the list.
func (l *Local) MarkHandled(id string) (bool, error) {
	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.notes[id]
	n, visible := e.view()
	if !ok || !visible {
		return false, fmt.Errorf("%w: %s", shared.ErrNotificationNotFound, id)
	}
	if !n.Active() {
		return false, nil
	}
	addPatch(&e, l.owner, s.clock, false, handledPatch)
	s.notes[id] = e
	s.tick()
	return true, nil
}

// Delete hides a notification. Deleting one that is already gone is a no-op.
func (l *Local) Delete(id string) bool {
	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.notes[id]
	if _, visible := e.view(); !ok || !visible {
		return false
	}
	addPatch(&e, l.owner, s.clock, false, hidePatch[models.Notification])
	s.notes[id] = e
	s.tick()
	return true
}

// DeleteAll hides every visible notification and returns their ids.
func (l *Local) DeleteAll() []string {
	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, e := range s.notes {
		if _, ok := e.view(); ok {
			addPatch(&e, l.owner, s.clock, false, hidePatch[models.Notification])
			s.notes[id] = e
			ids = append(ids, id)
		}
	}
	if len(ids) > 0 {
		s.tick()
	}
	slices.Sort(ids)
	return ids
}

// AddMessage inserts a message the server has not seen yet. msg.ID should be a temporary id.
func (l *Local) AddMessage(msg models.Message) error {
	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if ce, ok := s.chats[msg.ChatID]; !ok || !ce.exists {
		return fmt.Errorf("%w: %s", shared.ErrChatNotFound, msg.ChatID)
	}
	msgs := s.msgs[msg.ChatID]
	if msgs == nil {
		msgs = make(map[string]entry[models.Message])
		s.msgs[msg.ChatID] = msgs
	}

	var e entry[models.Message]
	addPatch(&e, l.owner, s.clock, true, func(models.Message, bool) (models.Message, bool) { return msg, true })
	msgs[msg.ID] = e
	s.tick()
	return nil
}

// SetReactions replaces the reactions of a message.
func (l *Local) SetReactions(chatID, messageID string, reactions []models.Reaction) (bool, error) {
	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.msgs[chatID]
	e, ok := msgs[messageID]
	m, visible := e.view()
	if !ok || !visible {
		return false, fmt.Errorf("%w: %s", shared.ErrMessageNotFound, messageID)
	}
	if slices.Equal(m.Reactions, reactions) {
		return false, nil
	}
	next := slices.Clone(reactions)
	addPatch(&e, l.owner, s.clock, false, func(m models.Message, ok bool) (models.Message, bool) {
		if ok {
			m.Reactions = next
		}
		return m, ok
	})
	msgs[messageID] = e
	s.tick()
	return true, nil
}

// MarkChatRead marks every message of a chat read for the user and returns their ids.
func (l *Local) MarkChatRead(chatID string) ([]string, error) {
	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if ce, ok := s.chats[chatID]; !ok || !ce.exists {
		return nil, fmt.Errorf("%w: %s", shared.ErrChatNotFound, chatID)
	}
	var ids []string
	msgs := s.msgs[chatID]
	for id, e := range msgs {
		if m, ok := e.view(); ok && m.UnreadFor(s.userID) {
			addPatch(&e, l.owner, s.clock, false, func(m models.Message, ok bool) (models.Message, bool) {
				m.IsRead = true
				return m, ok
			})
			msgs[id] = e
			ids = append(ids, id)
		}
	}
	if len(ids) > 0 {
		s.tick()
	}
	slices.Sort(ids)
	return ids, nil
}

// AddFriendRequest inserts an outgoing request under a temporary id. A pending request to the same user already
// in the store makes it a no-op.
func (l *Local) AddFriendRequest(req models.FriendRequest) bool {
	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.requests {
		if r, ok := e.view(); ok && r.FromUserID == req.FromUserID && r.ToUserID == req.ToUserID &&
			r.Status == models.RequestPending {
			return false
		}
	}
	var e entry[models.FriendRequest]
	addPatch(&e, l.owner, s.clock, true, func(models.FriendRequest, bool) (models.FriendRequest, bool) { return req, true })
	s.requests[req.ID] = e
	s.tick()
	return true
}

// SetRequestStatus answers a pending friend request.
func (l *Local) SetRequestStatus(id string, status models.FriendRequestStatus) (bool, error) {
	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.requests[id]
	r, visible := e.view()
	if !ok || !visible {
		return false, fmt.Errorf("%w: %s", shared.ErrFriendRequestNotFound, id)
	}
	if r.Status != models.RequestPending {
		return false, nil
	}
	addPatch(&e, l.owner, s.clock, false, func(r models.FriendRequest, ok bool) (models.FriendRequest, bool) {
		if ok && r.Status == models.RequestPending {
			r.Status = status
		}
		return r, ok
	})
	s.requests[id] = e
	s.tick()
	return true, nil
}

// Discard drops every patch owned by owner, returning each touched entity to its server copy. It returns the ids of
// entities the server wrote after the patch was made; those now show the server's state rather than the pre-mutation one.
func (s *Store) Discard(owner string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	stale := s.settle(owner, false)
	slices.Sort(stale)
	return stale
}

// Commit folds every patch owned by owner into the server copies. Created entities are not folded; the server
// echo that confirms them replaces them instead.
func (s *Store) Commit(owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settle(owner, true)
}

func (s *Store) settle(owner string, fold bool) []string {
	n, stale := settleAll(s.notes, owner, fold)
	m, st := settleAll(s.requests, owner, fold)
	n, stale = n+m, append(stale, st...)
	for _, msgs := range s.msgs {
		m, st := settleAll(msgs, owner, fold)
		n, stale = n+m, append(stale, st...)
	}
	if n > 0 {
		s.tick()
	}
	return stale
}

func settleAll[T any](m map[string]entry[T], owner string, fold bool) (int, []string) {
	n := 0
	var stale []string
	for id, e := range m {
		if !e.owns(owner) {
			continue
		}
		kept := e.patches[:0:0]
		for _, p := range e.patches {
			if p.owner != owner {
				kept = append(kept, p)
				continue
			}
			if fold && !p.create {
				e.server, e.exists = p.apply(e.server, e.exists)
				if !e.exists {
					e.deleted = true
				}
			}
			if !fold && e.touched > p.at && !p.create {
				stale = append(stale, id)
			}
			n++
		}
		e.patches = kept
		if e.empty() {
			delete(m, id)
			continue
		}
		m[id] = e
	}
	return n, slices.Compact(stale)
}

func (e entry[T]) owns(owner string) bool {
	return slices.ContainsFunc(e.patches, func(p patch[T]) bool { return p.owner == owner })
}

// Pending reports whether any patch owned by owner is still applied.
func (s *Store) Pending(owner string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.notes {
		if e.owns(owner) {
			return true
		}
	}
	for _, e := range s.requests {
		if e.owns(owner) {
			return true
		}
	}
	for _, msgs := range s.msgs {
		for _, e := range msgs {
			if e.owns(owner) {
				return true
			}
		}
	}
	return false
}
