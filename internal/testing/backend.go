package testing

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
)

// FakeBackend is an in-memory REST collaborator that behaves like the music service.
//
// Failures and stalls can be injected per method name, e.g. Fail("MarkAsRead", err) or Block("SendMessage").
type FakeBackend struct {
	UserID string

	mu            sync.Mutex
	seq           int
	clock         time.Time
	notifications map[string]models.Notification
	chats         map[string]models.Chat
	messages      map[string][]models.Message
	requests      map[string]models.FriendRequest
	friends       []models.Friend
	calls         map[string]int
	failures      map[string]error
	gates         map[string]chan struct{}
}

func NewFakeBackend(userID string) *FakeBackend {
	return &FakeBackend{
		UserID:        userID,
		clock:         time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
		notifications: make(map[string]models.Notification),
		chats:         make(map[string]models.Chat),
		messages:      make(map[string][]models.Message),
		requests:      make(map[string]models.FriendRequest),
		calls:         make(map[string]int),
		failures:      make(map[string]error),
		gates:         make(map[string]chan struct{}),
	}
}

// next advances the fake server clock and version counter. Must be called with b.mu held.
func (b *FakeBackend) next() (int64, time.Time) {
	b.seq++
	b.clock = b.clock.Add(time.Second)
	return int64(b.seq), b.clock
}

// Fail makes every call to method return err until cleared with a nil err.
func (b *FakeBackend) Fail(method string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failures, method)
		return
	}
	b.failures[method] = err
}

// Block stalls calls to method until the returned release func runs or the caller's context ends.
func (b *FakeBackend) Block(method string) (release func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	gate := make(chan struct{})
	b.gates[method] = gate
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.gates, method)
			b.mu.Unlock()
			close(gate)
		})
	}
}

// Calls reports how many times method was called.
func (b *FakeBackend) Calls(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method]
}

// ResetCalls zeroes every call counter.
func (b *FakeBackend) ResetCalls() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = make(map[string]int)
}

func (b *FakeBackend) enter(ctx context.Context, method string) error {
	b.mu.Lock()
	b.calls[method]++
	gate := b.gates[method]
	err := b.failures[method]
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return fmt.Errorf("fake.%s: %w", method, err)
	}
	return ctx.Err()
}

// AddNotification stores n as the server would, assigning a version and creation time when missing.
func (b *FakeBackend) AddNotification(n models.Notification) models.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	version, now := b.next()
	if n.UserID == "" {
		n.UserID = b.UserID
	}
	if n.Status == "" {
		n.Status = models.StatusUnread
	}
	if n.Kind == "" {
		n.Kind = models.KindOther
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.Version = version
	b.notifications[n.ID] = n
	return n
}

// AddChat stores a chat.
func (b *FakeBackend) AddChat(c models.Chat) models.Chat {
	b.mu.Lock()
	defer b.mu.Unlock()
	version, now := b.next()
	if c.LastActivity.IsZero() {
		c.LastActivity = now
	}
	c.Version = version
	b.chats[c.ID] = c
	return c
}

// AddMessage stores a message as if another participant sent it, assigning an id when missing.
func (b *FakeBackend) AddMessage(m models.Message) models.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addMessage(m)
}

func (b *FakeBackend) addMessage(m models.Message) models.Message {
	version, now := b.next()
	if m.ID == "" {
		m.ID = fmt.Sprintf("m-%04d", version)
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = now
	}
	m.Version = version
	b.messages[m.ChatID] = append(b.messages[m.ChatID], m)

	if c, ok := b.chats[m.ChatID]; ok {
		c.LastActivity = m.Timestamp
		c.LastMessage = m.Content
		c.LastSenderID = m.SenderID
		c.Version = version
		b.chats[m.ChatID] = c
	}
	return m
}

// AddFriendRequest stores a request.
func (b *FakeBackend) AddFriendRequest(r models.FriendRequest) models.FriendRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	version, now := b.next()
	if r.Status == "" {
		r.Status = models.RequestPending
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.Version = version
	b.requests[r.ID] = r
	return r
}

// SetFriends replaces the friend list.
func (b *FakeBackend) SetFriends(friends ...models.Friend) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.friends = friends
}

// Notification returns the server copy of a notification.
func (b *FakeBackend) Notification(id string) (models.Notification, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.notifications[id]
	return n, ok
}

func (b *FakeBackend) Notifications(ctx context.Context, userID string, limit, offset int) (*models.NotificationPage, error) {
	if err := b.enter(ctx, "Notifications"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var active []models.Notification
	unread := 0
	for _, n := range b.notifications {
		if n.UserID != userID || !n.Active() {
			continue
		}
		active = append(active, n)
		if n.Unread() {
			unread++
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if !active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].CreatedAt.After(active[j].CreatedAt)
		}
		return active[i].ID < active[j].ID
	})

	page := &models.NotificationPage{UnreadCount: unread, Total: len(active)}
	if offset < len(active) {
		end := len(active)
		if limit > 0 && offset+limit < end {
			end = offset + limit
		}
		page.Notifications = append([]models.Notification(nil), active[offset:end]...)
	}
	return page, nil
}

func (b *FakeBackend) setStatus(id string, status models.NotificationStatus) (*models.Notification, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.notifications[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrNotificationNotFound, id)
	}
	if n.Status.CanTransition(status) && n.Status != status {
		n.Status = status
		n.Version, _ = b.next()
		b.notifications[id] = n
	}
	return &n, nil
}

func (b *FakeBackend) MarkAsRead(ctx context.Context, notificationID string) (*models.Notification, error) {
	if err := b.enter(ctx, "MarkAsRead"); err != nil {
		return nil, err
	}
	return b.setStatus(notificationID, models.StatusRead)
}

func (b *FakeBackend) MarkAllAsRead(ctx context.Context, userID string) error {
	if err := b.enter(ctx, "MarkAllAsRead"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, n := range b.notifications {
		if n.UserID == userID && n.Unread() {
			n.Status = models.StatusRead
			n.Version, _ = b.next()
			b.notifications[id] = n
		}
	}
	return nil
}

func (b *FakeBackend) MarkAsHandled(ctx context.Context, notificationID string) (*models.Notification, error) {
	if err := b.enter(ctx, "MarkAsHandled"); err != nil {
		return nil, err
	}
	return b.setStatus(notificationID, models.StatusHandled)
}

func (b *FakeBackend) DeleteNotification(ctx context.Context, notificationID string) error {
	if err := b.enter(ctx, "DeleteNotification"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.notifications, notificationID)
	return nil
}

func (b *FakeBackend) DeleteAllNotifications(ctx context.Context, userID string) error {
	if err := b.enter(ctx, "DeleteAllNotifications"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, n := range b.notifications {
		if n.UserID == userID {
			delete(b.notifications, id)
		}
	}
	return nil
}

func (b *FakeBackend) Chats(ctx context.Context, userID string) ([]models.Chat, error) {
	if err := b.enter(ctx, "Chats"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var chats []models.Chat
	for _, c := range b.chats {
		member := false
		for _, p := range c.Participants {
			member = member || p == userID
		}
		if !member {
			continue
		}
		c.UnreadCount = 0
		for _, m := range b.messages[c.ID] {
			if m.UnreadFor(userID) {
				c.UnreadCount++
			}
		}
		chats = append(chats, c)
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i].ID < chats[j].ID })
	return chats, nil
}

func (b *FakeBackend) ChatMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	if err := b.enter(ctx, "ChatMessages"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.chats[chatID]; !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrChatNotFound, chatID)
	}
	msgs := append([]models.Message(nil), b.messages[chatID]...)
	models.SortMessages(msgs)
	return msgs, nil
}

func (b *FakeBackend) SendMessage(ctx context.Context, req models.SendMessageRequest) (*models.Message, error) {
	if err := b.enter(ctx, "SendMessage"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.chats[req.ChatID]; !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrChatNotFound, req.ChatID)
	}
	m := b.addMessage(models.Message{
		ChatID:      req.ChatID,
		SenderID:    req.SenderID,
		Content:     req.Content,
		ClientMsgID: req.ClientMsgID,
	})
	return &m, nil
}

func (b *FakeBackend) MarkChatRead(ctx context.Context, chatID, userID string) error {
	if err := b.enter(ctx, "MarkChatRead"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.messages[chatID]
	for i := range msgs {
		if msgs[i].UnreadFor(userID) {
			msgs[i].IsRead = true
			msgs[i].Version, _ = b.next()
		}
	}
	return nil
}

func (b *FakeBackend) UnreadMessageCounts(ctx context.Context, userID string) (models.UnreadCounts, error) {
	if err := b.enter(ctx, "UnreadMessageCounts"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	counts := models.UnreadCounts{models.GlobalUnread: 0}
	for chatID, msgs := range b.messages {
		for _, m := range msgs {
			if m.UnreadFor(userID) {
				counts[chatID]++
				counts[models.GlobalUnread]++
			}
		}
	}
	return counts, nil
}

func (b *FakeBackend) FriendRequests(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	if err := b.enter(ctx, "FriendRequests"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var reqs []models.FriendRequest
	for _, r := range b.requests {
		if r.FromUserID == userID || r.ToUserID == userID {
			reqs = append(reqs, r)
		}
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].ID < reqs[j].ID })
	return reqs, nil
}

func (b *FakeBackend) SendFriendRequest(ctx context.Context, fromUserID, toUserID string) (*models.FriendRequest, error) {
	if err := b.enter(ctx, "SendFriendRequest"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.requests {
		if r.FromUserID == fromUserID && r.ToUserID == toUserID && r.Status == models.RequestPending {
			return nil, fmt.Errorf("%w: request to %s already pending", shared.ErrMutationRejected, toUserID)
		}
	}
	version, now := b.next()
	r := models.FriendRequest{
		ID:         fmt.Sprintf("fr-%04d", version),
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Status:     models.RequestPending,
		CreatedAt:  now,
		Version:    version,
	}
	b.requests[r.ID] = r
	return &r, nil
}

func (b *FakeBackend) RespondFriendRequest(ctx context.Context, requestID string, accept bool) (*models.FriendRequest, error) {
	if err := b.enter(ctx, "RespondFriendRequest"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrFriendRequestNotFound, requestID)
	}
	if r.Status != models.RequestPending {
		return nil, fmt.Errorf("%w: request %s is %s", shared.ErrMutationRejected, requestID, r.Status)
	}
	r.Status = models.RequestDeclined
	if accept {
		r.Status = models.RequestAccepted
	}
	r.Version, _ = b.next()
	b.requests[requestID] = r
	return &r, nil
}

func (b *FakeBackend) Friends(ctx context.Context, userID string) ([]models.Friend, error) {
	if err := b.enter(ctx, "Friends"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Friend(nil), b.friends...), nil
}
