package mutations

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/desertthunder/tunesync/internal/bridge"
	"github.com/desertthunder/tunesync/internal/mirror"
	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/services"
	"github.com/desertthunder/tunesync/internal/shared"
)

// DefaultTimeout bounds the server round trip of one mutation.
const DefaultTimeout = 5 * time.Second

// Sender delivers an outbound event on a channel.
type Sender interface {
	Send(ctx context.Context, ch models.Channel, ev models.Event) error
}

// Options configures a [Coordinator].
type Options struct {
	UserID  string
	Timeout time.Duration
	Bus     *bridge.Bus
	Sender  Sender
	Logger  *log.Logger
}

// Result describes a mutation that went through.
type Result struct {
	ID     string
	Kind   Kind
	Target string

	// NoOp is set when the mutation would not have changed anything; no request was made.
	NoOp bool

	// Affected lists the entities a bulk mutation touched.
	Affected []string

	// TempID is the optimistic id of a created message or friend request and ServerID its confirmed id.
	TempID   string
	ServerID string

	Request *models.FriendRequest
}

// Pending is an outstanding mutation.
type Pending struct {
	ID      string
	Kind    Kind
	Target  string
	Started time.Time
}

// Coordinator applies mutations optimistically to the state mirror, confirms them with the server and rolls them
// back when the server refuses or does not answer in time.
type Coordinator struct {
	store   *mirror.Store
	backend services.Backend
	sender  Sender
	bus     *bridge.Bus
	userID  string
	timeout time.Duration
	logger  *log.Logger
	locks   *locker

	mu      sync.Mutex
	pending map[string]Pending
	echoes  map[string]chan models.ReactionUpdated
}

// New creates a [Coordinator] writing to store and confirming through backend.
func New(store *mirror.Store, backend services.Backend, opts Options) *Coordinator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Bus == nil {
		opts.Bus = bridge.New(opts.Logger)
	}
	if opts.UserID == "" {
		opts.UserID = store.UserID()
	}
	return &Coordinator{
		store:   store,
		backend: backend,
		sender:  opts.Sender,
		bus:     opts.Bus,
		userID:  opts.UserID,
		timeout: opts.Timeout,
		logger:  shared.WithLogger(opts.Logger, "component", "mutations"),
		locks:   newLocker(),
		pending: make(map[string]Pending),
		echoes:  make(map[string]chan models.ReactionUpdated),
	}
}

// Apply runs one mutation. Mutations touching the same entity run one at a time in arrival order; bulk mutations
// wait for, and hold off, every single-entity mutation of their collection.
//
// Failures come back as *[Error] wrapping [shared.ErrMutationRejected], [shared.ErrMutationTimeout],
// [shared.ErrNotConnected] or [shared.ErrMutationFailed], after the optimistic change has been rolled back.
func (c *Coordinator) Apply(ctx context.Context, m Mutation) (*Result, error) {
	if err := m.validate(); err != nil {
		return nil, &Error{Kind: m.Kind, Target: m.Target, Err: err}
	}

	noteID := ""
	if m.Kind == KindRespondFriendRequest {
		noteID = c.requestNotification(m.Target)
	}
	unlock, err := c.locks.acquire(ctx, m.scope(noteID))
	if err != nil {
		return nil, &Error{Kind: m.Kind, Target: m.Target, Err: fmt.Errorf("%w: %w", shared.ErrMutationFailed, err)}
	}
	defer unlock()

	id := uuid.NewString()
	res := &Result{ID: id, Kind: m.Kind, Target: m.Target}
	changed, err := c.optimistic(id, m, noteID, res)
	if err != nil {
		return nil, &Error{Kind: m.Kind, Target: m.Target, Err: err}
	}
	if !changed {
		res.NoOp = true
		c.logger.Debug("mutation is a no-op", "kind", m.Kind, "target", m.Target)
		return res, nil
	}

	c.track(id, m)
	defer c.untrack(id)

	rctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.remote(rctx, id, m, noteID, res); err != nil {
		stale := c.store.Discard(id)
		stale = append(stale, c.store.Discard(noteOwner(id))...)
		merr := &Error{Kind: m.Kind, Target: m.Target, Err: classify(ctx, err)}

		c.logger.Warn("mutation rolled back", "kind", m.Kind, "target", m.Target, "error", err)
		bridge.Publish(c.bus, bridge.MutationRolledBack, bridge.Rollback{
			MutationID: id,
			Kind:       string(m.Kind),
			Target:     m.Target,
			Err:        merr,
		})
		if len(stale) > 0 {
			bridge.Publish(c.bus, bridge.StaleData, stale)
		}
		return nil, merr
	}

	if m.Kind == KindSendReaction {
		// the echo already carried the server's reactions
		c.store.Discard(id)
	} else {
		c.store.Commit(id)
		c.store.Commit(noteOwner(id))
	}
	c.announce(m, noteID, res)
	return res, nil
}

// noteOwner owns the notification side of a friend request answer, which may fail on its own.
func noteOwner(id string) string { return id + "/notification" }

func classify(parent context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil:
		return fmt.Errorf("%w: %w", shared.ErrMutationTimeout, err)
	case errors.Is(err, shared.ErrNotConnected), errors.Is(err, shared.ErrMutationRejected):
		return err
	case services.IsClientError(err):
		return fmt.Errorf("%w: %w", shared.ErrMutationRejected, err)
	default:
		return fmt.Errorf("%w: %w", shared.ErrMutationFailed, err)
	}
}

func (c *Coordinator) optimistic(id string, m Mutation, noteID string, res *Result) (bool, error) {
	local := c.store.Local(id)
	switch m.Kind {
	case KindMarkRead:
		return local.MarkRead(m.Target)
	case KindMarkAllRead:
		res.Affected = local.MarkAllRead()
		return len(res.Affected) > 0, nil
	case KindMarkHandled:
		return local.MarkHandled(m.Target)
	case KindDelete:
		return local.Delete(m.Target), nil
	case KindDeleteAll:
		res.Affected = local.DeleteAll()
		return len(res.Affected) > 0, nil

	case KindSendMessage:
		res.TempID = shared.GenerateTempID()
		err := local.AddMessage(models.Message{
			ID:          res.TempID,
			ChatID:      m.Target,
			SenderID:    c.userID,
			Content:     m.Content,
			Timestamp:   time.Now().UTC(),
			ClientMsgID: id,
		})
		return err == nil, err

	case KindSendReaction:
		var current *models.Message
		for _, msg := range c.store.Read().ChatMessages(m.Target) {
			if msg.ID == m.MessageID {
				current = &msg
				break
			}
		}
		if current == nil {
			return false, fmt.Errorf("%w: %s", shared.ErrMessageNotFound, m.MessageID)
		}
		if current.Pending() {
			return false, fmt.Errorf("%w: message %s is not confirmed yet", shared.ErrInvalidInput, m.MessageID)
		}
		next := slices.DeleteFunc(slices.Clone(current.Reactions), func(r models.Reaction) bool { return r.UserID == c.userID })
		if m.Emoji != "" {
			next = append(next, models.Reaction{UserID: c.userID, Emoji: m.Emoji})
		}
		return local.SetReactions(m.Target, m.MessageID, next)

	case KindMarkChatRead:
		ids, err := local.MarkChatRead(m.Target)
		res.Affected = ids
		return len(ids) > 0, err

	case KindSendFriendRequest:
		if m.Target == c.userID {
			return false, fmt.Errorf("%w: cannot befriend yourself", shared.ErrInvalidArgument)
		}
		res.TempID = shared.GenerateTempID()
		return local.AddFriendRequest(models.FriendRequest{
			ID:         res.TempID,
			FromUserID: c.userID,
			ToUserID:   m.Target,
			Status:     models.RequestPending,
			CreatedAt:  time.Now().UTC(),
		}), nil

	case KindRespondFriendRequest:
		status := models.RequestDeclined
		if m.Accept {
			status = models.RequestAccepted
		}
		changed, err := local.SetRequestStatus(m.Target, status)
		if err != nil || !changed {
			return changed, err
		}
		if noteID != "" {
			if _, err := c.store.Local(noteOwner(id)).MarkHandled(noteID); err != nil {
				c.logger.Debug("request notification already gone", "notification", noteID, "error", err)
			}
		}
		return true, nil
	}
	return false, fmt.Errorf("%w: %q", shared.ErrInvalidArgument, m.Kind)
}

func (c *Coordinator) remote(ctx context.Context, id string, m Mutation, noteID string, res *Result) error {
	switch m.Kind {
	case KindMarkRead:
		n, err := c.backend.MarkAsRead(ctx, m.Target)
		if err != nil {
			return err
		}
		c.store.ApplyServerEvent(models.NewNotification{Notification: *n})
		return nil
	case KindMarkAllRead:
		return c.backend.MarkAllAsRead(ctx, c.userID)
	case KindMarkHandled:
		n, err := c.backend.MarkAsHandled(ctx, m.Target)
		if err != nil {
			return err
		}
		c.store.ApplyServerEvent(models.NotificationHandled{ID: n.ID, Version: n.Version})
		return nil
	case KindDelete:
		return c.backend.DeleteNotification(ctx, m.Target)
	case KindDeleteAll:
		return c.backend.DeleteAllNotifications(ctx, c.userID)

	case KindSendMessage:
		msg, err := c.backend.SendMessage(ctx, models.SendMessageRequest{
			ChatID:      m.Target,
			SenderID:    c.userID,
			Content:     m.Content,
			ClientMsgID: id,
		})
		if err != nil {
			return err
		}
		if msg.ClientMsgID == "" {
			msg.ClientMsgID = id
		}
		c.store.ApplyServerEvent(models.MessageReceived{Message: *msg})
		res.ServerID = msg.ID
		return nil

	case KindSendReaction:
		if c.sender == nil {
			return fmt.Errorf("%w: no channel to send on", shared.ErrNotConnected)
		}
		echo := c.expect(id)
		defer c.forget(id)
		err := c.sender.Send(ctx, models.ChannelChat, models.SendReaction{
			ChatID:           m.Target,
			MessageID:        m.MessageID,
			UserID:           c.userID,
			Emoji:            m.Emoji,
			ClientMutationID: id,
		})
		if err != nil {
			return err
		}
		select {
		case <-echo:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}

	case KindMarkChatRead:
		return c.backend.MarkChatRead(ctx, m.Target, c.userID)

	case KindSendFriendRequest:
		req, err := c.backend.SendFriendRequest(ctx, c.userID, m.Target)
		if err != nil {
			return err
		}
		c.store.ApplyServerEvent(models.FriendRequestUpdated{Request: *req})
		res.ServerID, res.Request = req.ID, req
		return nil

	case KindRespondFriendRequest:
		req, err := c.backend.RespondFriendRequest(ctx, m.Target, m.Accept)
		if err != nil {
			return err
		}
		c.store.ApplyServerEvent(models.FriendRequestUpdated{Request: *req})
		res.Request = req
		if noteID == "" {
			return nil
		}
		n, err := c.backend.MarkAsHandled(ctx, noteID)
		if err != nil {
			c.logger.Warn("friend request answered but its notification was not handled", "notification", noteID, "error", err)
			c.store.Discard(noteOwner(id))
			return nil
		}
		c.store.ApplyServerEvent(models.NotificationHandled{ID: n.ID, Version: n.Version})
		return nil
	}
	return fmt.Errorf("%w: %q", shared.ErrInvalidArgument, m.Kind)
}

func (c *Coordinator) announce(m Mutation, noteID string, res *Result) {
	switch m.Kind {
	case KindMarkRead:
		bridge.Publish(c.bus, bridge.NotificationsRead, []string{m.Target})
	case KindMarkAllRead:
		bridge.Publish(c.bus, bridge.NotificationsRead, res.Affected)
	case KindMarkHandled:
		bridge.Publish(c.bus, bridge.NotificationHandled, bridge.NotificationRef{ID: m.Target})
	case KindDelete:
		bridge.Publish(c.bus, bridge.NotificationDeleted, bridge.NotificationRef{ID: m.Target})
	case KindDeleteAll:
		bridge.Publish(c.bus, bridge.NotificationsCleared, struct{}{})
	case KindSendMessage:
		bridge.Publish(c.bus, bridge.MessageSent, bridge.MessageRef{ChatID: m.Target, MessageID: res.ServerID, TempID: res.TempID})
	case KindSendReaction:
		bridge.Publish(c.bus, bridge.ReactionSent, bridge.MessageRef{ChatID: m.Target, MessageID: m.MessageID})
	case KindMarkChatRead:
		bridge.Publish(c.bus, bridge.ChatRead, m.Target)
	case KindSendFriendRequest:
		bridge.Publish(c.bus, bridge.FriendRequestSent, *res.Request)
	case KindRespondFriendRequest:
		bridge.Publish(c.bus, bridge.FriendRequestAnswered, *res.Request)
		if noteID != "" {
			bridge.Publish(c.bus, bridge.NotificationHandled, bridge.NotificationRef{ID: noteID})
		}
	}
}

// requestNotification finds the active notification announcing a friend request.
func (c *Coordinator) requestNotification(requestID string) string {
	for _, n := range c.store.Read().Notifications {
		if n.Kind == models.KindFriendRequest && n.Payload.RequestID == requestID {
			return n.ID
		}
	}
	return ""
}

// Reconcile matches an inbound event against mutations waiting for an echo. The hub calls it after the mirror has
// applied the event.
func (c *Coordinator) Reconcile(ev models.Event) {
	ru, ok := ev.(models.ReactionUpdated)
	if !ok || ru.ClientMutationID == "" {
		return
	}
	c.mu.Lock()
	ch := c.echoes[ru.ClientMutationID]
	c.mu.Unlock()
	if ch != nil {
		select {
		case ch <- ru:
		default:
		}
	}
}

func (c *Coordinator) expect(id string) <-chan models.ReactionUpdated {
	ch := make(chan models.ReactionUpdated, 1)
	c.mu.Lock()
	c.echoes[id] = ch
	c.mu.Unlock()
	return ch
}

func (c *Coordinator) forget(id string) {
	c.mu.Lock()
	delete(c.echoes, id)
	c.mu.Unlock()
}

func (c *Coordinator) track(id string, m Mutation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[id] = Pending{ID: id, Kind: m.Kind, Target: m.Target, Started: time.Now()}
}

func (c *Coordinator) untrack(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

// Pending lists outstanding mutations, oldest first.
func (c *Coordinator) Pending() []Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Pending, 0, len(c.pending))
	for _, p := range c.pending {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Started.Before(out[j].Started) })
	return out
}
