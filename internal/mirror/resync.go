package mirror

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
)

// Source is the REST surface a resync reads from. [services.Backend] satisfies it.
type Source interface {
	Notifications(ctx context.Context, userID string, limit, offset int) (*models.NotificationPage, error)
	FriendRequests(ctx context.Context, userID string) ([]models.FriendRequest, error)
	Chats(ctx context.Context, userID string) ([]models.Chat, error)
	ChatMessages(ctx context.Context, chatID string) ([]models.Message, error)
	Friends(ctx context.Context, userID string) ([]models.Friend, error)
}

// ResyncReport summarises one resync.
type ResyncReport struct {
	Channel models.Channel
	Fetched int
	Changed bool

	// Stale lists entities whose optimistic state was discarded because the server had moved on.
	Stale []string
}

// chatFetchLimit bounds concurrent message fetches during a chat resync.
const chatFetchLimit = 4

// Resync refetches the slice of state fed by ch and replaces the server copies with it. Server events applied while
// the fetch was in flight are kept when they are at least as new as what was fetched. Running it twice against an
// unchanged server leaves the snapshot untouched.
func (s *Store) Resync(ctx context.Context, ch models.Channel, src Source) (*ResyncReport, error) {
	s.mu.RLock()
	start := s.clock
	s.mu.RUnlock()

	report := &ResyncReport{Channel: ch}
	switch ch {
	case models.ChannelNotifications:
		notes, err := s.fetchNotifications(ctx, src)
		if err != nil {
			return nil, err
		}
		reqs, err := src.FriendRequests(ctx, s.userID)
		if err != nil {
			return nil, fmt.Errorf("mirror.Resync: %w", err)
		}
		report.Fetched = len(notes) + len(reqs)

		s.mu.Lock()
		defer s.mu.Unlock()
		before := s.clock
		report.Stale = append(report.Stale, reconcile(s, s.notes, byID(notes, notificationID), start, notificationVersion, equalNotification, mergeNotification)...)
		report.Stale = append(report.Stale, reconcile(s, s.requests, byID(reqs, requestID), start, requestVersion, equalRequest, nil)...)
		report.Changed = s.clock != before

	case models.ChannelChat:
		chats, msgs, err := s.fetchChats(ctx, src)
		if err != nil {
			return nil, err
		}
		report.Fetched = len(chats)

		s.mu.Lock()
		defer s.mu.Unlock()
		before := s.clock
		fetched := byID(chats, chatID)
		for id, e := range s.chats {
			if _, ok := fetched[id]; ok || e.touched > start {
				continue
			}
			delete(s.chats, id)
			delete(s.msgs, id)
			s.tick()
		}
		reconcile(s, s.chats, fetched, start, chatVersion, equalChat, nil)
		for id, list := range msgs {
			report.Fetched += len(list)
			if s.msgs[id] == nil {
				s.msgs[id] = make(map[string]entry[models.Message])
			}
			report.Stale = append(report.Stale, reconcile(s, s.msgs[id], byID(list, messageID), start, messageVersion, equalMessage, mergeMessage)...)
		}
		report.Changed = s.clock != before

	case models.ChannelPresence:
		friends, err := src.Friends(ctx, s.userID)
		if err != nil {
			return nil, fmt.Errorf("mirror.Resync: %w", err)
		}
		report.Fetched = len(friends)

		s.mu.Lock()
		defer s.mu.Unlock()
		next := make(map[string]bool, len(friends))
		for _, f := range friends {
			next[f.UserID] = f.Online
		}
		if !mapsEqual(s.presence, next) {
			s.presence = next
			s.tick()
			report.Changed = true
		}

	default:
		return nil, fmt.Errorf("%w: %q", shared.ErrUnknownChannel, ch)
	}

	slices.Sort(report.Stale)
	if len(report.Stale) > 0 {
		s.logger.Warn("discarded stale optimistic state", "channel", ch, "ids", report.Stale)
	}
	return report, nil
}

func (s *Store) fetchNotifications(ctx context.Context, src Source) ([]models.Notification, error) {
	var all []models.Notification
	for offset := 0; ; {
		page, err := src.Notifications(ctx, s.userID, s.pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("mirror.Resync: %w", err)
		}
		all = append(all, page.Notifications...)
		offset += len(page.Notifications)
		if len(page.Notifications) < s.pageSize || offset >= page.Total {
			return all, nil
		}
	}
}

func (s *Store) fetchChats(ctx context.Context, src Source) ([]models.Chat, map[string][]models.Message, error) {
	chats, err := src.Chats(ctx, s.userID)
	if err != nil {
		return nil, nil, fmt.Errorf("mirror.Resync: %w", err)
	}

	var mu sync.Mutex
	msgs := make(map[string][]models.Message, len(chats))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(chatFetchLimit)
	for _, c := range chats {
		g.Go(func() error {
			list, err := src.ChatMessages(gctx, c.ID)
			if errors.Is(err, shared.ErrChatNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			msgs[c.ID] = list
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("mirror.Resync: %w", err)
	}
	return chats, msgs, nil
}

// reconcile replaces server copies in m with fetched and returns the ids whose optimistic patches were dropped
// with a visible difference. merge, when set, folds the current server copy into a fetched one so fields that only
// move forward keep doing so. Must be called with s.mu held.
func reconcile[T any](s *Store, m map[string]entry[T], fetched map[string]T, start uint64, version func(T) int64,
	equal func(a, b T) bool, merge func(cur, fetched T) T) []string {
	var stale []string
	for id, e := range m {
		f, ok := fetched[id]
		if ok && e.exists && merge != nil {
			f = merge(e.server, f)
		}
		if e.touched > start && (e.deleted || !ok || e.version >= version(f)) {
			continue
		}
		if ok && e.exists && e.version > version(f) {
			continue
		}
		if !ok && !e.exists {
			// local creations and tombstones
			continue
		}

		before, beforeOK := e.view()
		next := e
		if ok {
			next.server, next.exists, next.deleted = f, true, false
			next.version = max(e.version, version(f))
		} else {
			next.exists, next.deleted = false, true
		}
		if len(e.patches) > 0 && (!ok || version(f) > e.version) {
			next.patches = nil
			after, afterOK := next.view()
			if beforeOK != afterOK || (afterOK && !equal(before, after)) {
				stale = append(stale, id)
			}
		}

		if next.exists != e.exists || next.deleted != e.deleted || next.version != e.version ||
			len(next.patches) != len(e.patches) || !equal(next.server, e.server) {
			next.touched = s.tick()
			m[id] = next
		}
	}

	for id, f := range fetched {
		if _, ok := m[id]; !ok {
			m[id] = entry[T]{server: f, exists: true, version: version(f), touched: s.tick()}
		}
	}
	return stale
}

// Hydrate seeds the store from a cached snapshot. Entities already present are left alone; the next resync
// replaces whatever the cache got wrong.
func (s *Store) Hydrate(snap *models.Snapshot) {
	if snap == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range snap.Notifications {
		if _, ok := s.notes[n.ID]; !ok && n.ID != "" {
			s.notes[n.ID] = entry[models.Notification]{server: n, exists: true, version: n.Version, touched: s.tick()}
		}
	}
	for _, c := range snap.Chats {
		if _, ok := s.chats[c.ID]; ok || c.ID == "" {
			continue
		}
		s.chats[c.ID] = entry[models.Chat]{server: c, exists: true, version: c.Version, touched: s.tick()}
		msgs := make(map[string]entry[models.Message])
		for _, m := range snap.Messages[c.ID] {
			if m.Pending() {
				continue
			}
			msgs[m.ID] = entry[models.Message]{server: m, exists: true, version: m.Version, touched: s.tick()}
		}
		s.msgs[c.ID] = msgs
	}
	for _, r := range snap.FriendRequests {
		if _, ok := s.requests[r.ID]; !ok && !shared.IsTempID(r.ID) {
			s.requests[r.ID] = entry[models.FriendRequest]{server: r, exists: true, version: r.Version, touched: s.tick()}
		}
	}
	for k, v := range snap.Presence {
		if _, ok := s.presence[k]; !ok {
			s.presence[k] = v
			s.tick()
		}
	}
}

func byID[T any](items []T, id func(T) string) map[string]T {
	m := make(map[string]T, len(items))
	for _, it := range items {
		m[id(it)] = it
	}
	return m
}

func mapsEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}

func notificationID(n models.Notification) string     { return n.ID }
func notificationVersion(n models.Notification) int64 { return n.Version }
func requestID(r models.FriendRequest) string         { return r.ID }
func requestVersion(r models.FriendRequest) int64     { return r.Version }
func chatID(c models.Chat) string                     { return c.ID }
func chatVersion(c models.Chat) int64                 { return c.Version }
func messageID(m models.Message) string               { return m.ID }
func messageVersion(m models.Message) int64           { return m.Version }

// mergeNotification keeps the status monotonic, as the push path does.
func mergeNotification(cur, fetched models.Notification) models.Notification {
	fetched.Status = cur.Status.Max(fetched.Status)
	return fetched
}

// mergeMessage keeps a message read once it was seen read.
func mergeMessage(cur, fetched models.Message) models.Message {
	fetched.IsRead = fetched.IsRead || cur.IsRead
	return fetched
}

// The equal funcs below ignore versions; reconcile tracks those separately.

func equalNotification(a, b models.Notification) bool {
	a.Version, b.Version = 0, 0
	return a == b
}

func equalRequest(a, b models.FriendRequest) bool {
	a.Version, b.Version = 0, 0
	return a == b
}

func equalMessage(a, b models.Message) bool {
	a.Version, b.Version = 0, 0
	return sameMessage(a, b)
}

func equalChat(a, b models.Chat) bool {
	return a.ID == b.ID && a.LastActivity.Equal(b.LastActivity) && a.LastMessage == b.LastMessage &&
		a.LastSenderID == b.LastSenderID && a.UnreadCount == b.UnreadCount &&
		slices.Equal(a.Participants, b.Participants)
}
