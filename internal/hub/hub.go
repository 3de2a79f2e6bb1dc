package hub

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tunesync/internal/bridge"
	"github.com/desertthunder/tunesync/internal/mirror"
	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/mutations"
	"github.com/desertthunder/tunesync/internal/notify"
	"github.com/desertthunder/tunesync/internal/services"
	"github.com/desertthunder/tunesync/internal/shared"
	"github.com/desertthunder/tunesync/internal/tasks"
	"github.com/desertthunder/tunesync/internal/transport"
)

// Options configures a [Hub].
type Options struct {
	WSURL   string
	UserID  string
	Token   string
	Backend services.Backend

	// Dialer defaults to a [transport.WebsocketDialer] using PongWait.
	Dialer       transport.Dialer
	Backoff      transport.Backoff
	PingInterval time.Duration
	PongWait     time.Duration
	SendBuffer   int

	MutationTimeout time.Duration
	ResyncInterval  time.Duration
	PageSize        int

	// KeepWarm leaves a channel connected after its last handler is removed.
	KeepWarm bool

	Cache    tasks.SnapshotCache
	Journal  tasks.SyncJournal
	Notifier notify.Notifier
	Logger   *log.Logger

	// Rand and Sleep replace the reconnect jitter and wait in tests.
	Rand  func(n int64) int64
	Sleep func(ctx context.Context, d time.Duration) error
}

// OptionsFromConfig maps the [hub], [identity] and [server] sections of cfg onto Options.
// Backend, Cache, Journal and Notifier are left for the caller.
func OptionsFromConfig(cfg *shared.Config) Options {
	return Options{
		WSURL:           cfg.Server.WSURL,
		UserID:          cfg.Identity.UserID,
		Token:           cfg.Identity.Token,
		Backoff:         transport.Backoff{Min: cfg.Hub.ReconnectMin.Duration, Max: cfg.Hub.ReconnectMax.Duration},
		PingInterval:    cfg.Hub.PingInterval.Duration,
		PongWait:        cfg.Hub.PongWait.Duration,
		SendBuffer:      cfg.Hub.SendBuffer,
		MutationTimeout: cfg.Hub.MutationTimeout.Duration,
		ResyncInterval:  cfg.Hub.ResyncInterval.Duration,
		PageSize:        cfg.Hub.PageSize,
		KeepWarm:        cfg.Hub.KeepWarm,
	}
}

type channel struct {
	name     models.Channel
	conn     *transport.Connection
	registry *Registry
	seq      atomic.Int64

	resyncMu  sync.Mutex
	resyncing bool
	again     bool
}

// Hub owns the channel connections of one signed-in user and everything fed by them.
//
// Inbound events flow through the state mirror, then every registered [Handler], then the mutation coordinator,
// then the event bridge. A channel connects when its first handler is registered and every transition into
// Connected triggers a resync of that channel.
type Hub struct {
	opts   Options
	logger *log.Logger
	store  *mirror.Store
	bus    *bridge.Bus
	coord  *mutations.Coordinator
	engine *tasks.SyncEngine

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	channels map[models.Channel]*channel
}

// New creates a [Hub] with no open channels.
func New(opts Options) (*Hub, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("%w: hub needs a backend", shared.ErrInvalidConfig)
	}
	if opts.UserID == "" {
		return nil, fmt.Errorf("%w: identity.user_id is empty", shared.ErrMissingCredentials)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Dialer == nil {
		opts.Dialer = transport.WebsocketDialer{PongWait: opts.PongWait}
	}
	if opts.Backoff.Min <= 0 {
		opts.Backoff = transport.DefaultBackoff
	}
	if opts.Sleep == nil {
		opts.Sleep = transport.Sleep
	}

	h := &Hub{
		opts:     opts,
		logger:   shared.WithLogger(opts.Logger, "component", "hub"),
		bus:      bridge.New(opts.Logger),
		channels: make(map[models.Channel]*channel),
	}
	h.ctx, h.cancel = context.WithCancel(context.Background())
	h.store = mirror.New(mirror.Options{UserID: opts.UserID, PageSize: opts.PageSize, Logger: opts.Logger})
	h.coord = mutations.New(h.store, opts.Backend, mutations.Options{
		UserID:  opts.UserID,
		Timeout: opts.MutationTimeout,
		Bus:     h.bus,
		Sender:  h,
		Logger:  opts.Logger,
	})
	h.engine = tasks.NewSyncEngine(h.store, opts.Backend, tasks.EngineOptions{
		Interval: opts.ResyncInterval,
		Cache:    opts.Cache,
		Journal:  opts.Journal,
		Logger:   opts.Logger,
	})
	return h, nil
}

// UserID returns the signed-in user.
func (h *Hub) UserID() string { return h.opts.UserID }

// Bus returns the event bridge mutations and resyncs are announced on.
func (h *Hub) Bus() *bridge.Bus { return h.bus }

// Read returns the current snapshot of the mirrored state.
func (h *Hub) Read() *models.Snapshot { return h.store.Read() }

// Hydrate seeds the mirror from a cached snapshot before the first resync completes.
func (h *Hub) Hydrate(snap *models.Snapshot) { h.store.Hydrate(snap) }

// channel returns the entry for ch, creating its connection on first use.
func (h *Hub) channel(ch models.Channel) (*channel, error) {
	if _, err := models.ParseChannel(string(ch)); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, shared.ErrHubClosed
	}
	if c, ok := h.channels[ch]; ok {
		return c, nil
	}

	u, err := url.JoinPath(h.opts.WSURL, "ws", string(ch))
	if err != nil {
		return nil, fmt.Errorf("%w: server.ws_url: %v", shared.ErrInvalidConfig, err)
	}
	c := &channel{
		name:     ch,
		registry: NewRegistry(shared.WithLogger(h.logger, "channel", string(ch))),
		conn: transport.NewConnection(ch, h.opts.Dialer, transport.Options{
			URL:          u,
			Token:        h.opts.Token,
			Backoff:      h.opts.Backoff,
			SendBuffer:   h.opts.SendBuffer,
			PingInterval: h.opts.PingInterval,
			Logger:       h.opts.Logger,
			Rand:         h.opts.Rand,
			Sleep:        h.opts.Sleep,
		}),
	}
	c.conn.OnEvent(func(env models.Envelope) { h.receive(c, env) })
	c.conn.OnStateChange(func(prev, next models.ConnState) { h.stateChanged(c, prev, next) })
	h.channels[ch] = c
	return c, nil
}

func (h *Hub) lookup(ch models.Channel) *channel {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.channels[ch]
}

// Connect opens ch if it is not open yet and returns its connection. Calling it again returns the same connection
// without dialing.
func (h *Hub) Connect(ctx context.Context, ch models.Channel) (*transport.Connection, error) {
	c, err := h.channel(ch)
	if err != nil {
		return nil, err
	}
	if err := c.conn.Open(ctx); err != nil {
		return nil, err
	}
	return c.conn, nil
}

// SetHandlers registers handler under key on ch, replacing any handler already there, and connects ch if needed.
// It is cheap enough to call on every render.
func (h *Hub) SetHandlers(ch models.Channel, key string, handler Handler) error {
	if key == "" || handler == nil {
		return fmt.Errorf("%w: handler key and handler are required", shared.ErrMissingArgument)
	}
	c, err := h.channel(ch)
	if err != nil {
		return err
	}
	if c.registry.Set(key, handler) {
		h.logger.Debug("handler registered", "channel", ch, "key", key)
	}
	return c.conn.Open(context.Background())
}

// RemoveHandlers drops the handler under key on ch. When it was the last one the channel disconnects, unless the
// hub keeps channels warm. Pending mutations are not affected.
func (h *Hub) RemoveHandlers(ch models.Channel, key string) {
	c := h.lookup(ch)
	if c == nil || !c.registry.Remove(key) {
		return
	}
	h.logger.Debug("handler removed", "channel", ch, "key", key)
	if h.opts.KeepWarm || c.registry.Len() > 0 {
		return
	}

	c.conn.Close()
	// a handler registered while closing keeps the channel alive
	if c.registry.Len() > 0 {
		c.conn.Open(context.Background())
	}
}

// Handlers lists the keys registered on ch in dispatch order.
func (h *Hub) Handlers(ch models.Channel) []string {
	c := h.lookup(ch)
	if c == nil {
		return nil
	}
	return c.registry.Keys()
}

// State returns the connection state of ch.
func (h *Hub) State(ch models.Channel) models.ConnState {
	c := h.lookup(ch)
	if c == nil {
		return models.Disconnected
	}
	return c.conn.State()
}

// Send encodes ev and queues it on ch. It fails with [shared.ErrNotConnected] unless ch is connected.
func (h *Hub) Send(ctx context.Context, ch models.Channel, ev models.Event) error {
	c := h.lookup(ch)
	if c == nil {
		return fmt.Errorf("%w: %s was never opened", shared.ErrNotConnected, ch)
	}
	env, err := models.EncodeEvent(ev, c.seq.Add(1))
	if err != nil {
		return err
	}
	return c.conn.Send(ctx, env)
}

// Apply runs a mutation through the coordinator.
func (h *Hub) Apply(ctx context.Context, m mutations.Mutation) (*mutations.Result, error) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return nil, shared.ErrHubClosed
	}
	return h.coord.Apply(ctx, m)
}

// Pending lists the mutations waiting for the server.
func (h *Hub) Pending() []mutations.Pending { return h.coord.Pending() }

// Resync refetches the slice of ch and announces the result to its handlers and on the bridge.
func (h *Hub) Resync(ctx context.Context, ch models.Channel, progress chan<- tasks.ProgressUpdate) (*mirror.ResyncReport, error) {
	report, err := h.engine.Resync(ctx, ch, progress)
	if err != nil {
		return nil, err
	}
	h.resynced(report)
	return report, nil
}

// ResyncAll resyncs every channel. Failed channels do not stop the others.
func (h *Hub) ResyncAll(ctx context.Context, progress chan<- tasks.ProgressUpdate) ([]*mirror.ResyncReport, error) {
	reports, err := h.engine.ResyncAll(ctx, models.Channels(), progress)
	for _, r := range reports {
		h.resynced(r)
	}
	return reports, err
}

func (h *Hub) resynced(report *mirror.ResyncReport) {
	ev := models.Resynced{Channel: report.Channel, Stale: report.Stale}
	if c := h.lookup(report.Channel); c != nil {
		c.registry.Dispatch(ev)
	}
	if len(report.Stale) > 0 {
		h.logger.Warn("optimistic state overwritten by resync", "channel", report.Channel, "stale", report.Stale, "error", shared.ErrStaleData)
		bridge.Publish(h.bus, bridge.StaleData, report.Stale)
	}
	bridge.Publish(h.bus, bridge.ResyncCompleted, bridge.ResyncResult{Channel: report.Channel, Stale: report.Stale})
}

// resyncAsync resyncs c in the background, retrying with backoff until a resync succeeds, the channel
// leaves Connected or the hub logs out. A request made while a retry loop runs makes that loop go once more.
func (h *Hub) resyncAsync(c *channel) {
	c.resyncMu.Lock()
	if c.resyncing {
		c.again = true
		c.resyncMu.Unlock()
		return
	}
	c.resyncing = true
	c.resyncMu.Unlock()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		c.resyncMu.Lock()
		c.resyncing = false
		c.resyncMu.Unlock()
		return
	}
	h.wg.Add(1)
	h.mu.Unlock()

	go func() {
		defer h.wg.Done()
		for {
			h.resyncUntilDone(c)

			c.resyncMu.Lock()
			if !c.again || h.ctx.Err() != nil {
				c.resyncing = false
				c.again = false
				c.resyncMu.Unlock()
				return
			}
			c.again = false
			c.resyncMu.Unlock()
		}
	}()
}

func (h *Hub) resyncUntilDone(c *channel) {
	for attempt := 0; ; attempt++ {
		_, err := h.Resync(h.ctx, c.name, nil)
		if err == nil || h.ctx.Err() != nil {
			return
		}
		if c.conn.State() != models.Connected {
			h.logger.Warn("resync failed", "channel", c.name, "error", err)
			return
		}
		delay := h.opts.Backoff.Delay(attempt, h.opts.Rand)
		h.logger.Warn("resync failed, retrying", "channel", c.name, "attempt", attempt+1, "delay", delay, "error", err)
		if h.opts.Sleep(h.ctx, delay) != nil {
			return
		}
	}
}

func (h *Hub) stateChanged(c *channel, prev, next models.ConnState) {
	ev := models.ConnectionStateChange{Channel: c.name, Previous: prev, Current: next}
	h.store.ApplyServerEvent(ev)
	c.registry.Dispatch(ev)
	bridge.Publish(h.bus, bridge.ConnectionStateChanged, bridge.StateChange{Channel: c.name, Previous: prev, Current: next})

	if next == models.Connected {
		h.resyncAsync(c)
	}
}

// receive runs one inbound envelope through the mirror, the handlers, the coordinator and the bridge.
func (h *Hub) receive(c *channel, env models.Envelope) {
	ev, err := models.DecodeEvent(env)
	if err != nil {
		h.logger.Warn("dropping envelope", "channel", c.name, "kind", env.Kind, "error", err)
		return
	}
	switch ev.(type) {
	case models.Ping, models.SendReaction, models.ConnectionStateChange, models.Resynced:
		return
	}

	out := h.store.ApplyServerEvent(ev)
	if out.Changed || informational(ev) {
		c.registry.Dispatch(ev)
	} else {
		h.logger.Debug("duplicate event", "channel", c.name, "kind", ev.Kind(), "seq", env.Seq)
	}
	h.coord.Reconcile(ev)
	if out.Changed {
		h.announce(ev)
	}
	if out.NeedsResync {
		h.logger.Info("mirror out of step with server", "channel", c.name, "kind", ev.Kind())
		h.resyncAsync(c)
	}
}

// informational reports whether ev carries no mirrored state, so handlers see it even when the mirror did not change.
func informational(ev models.Event) bool {
	switch ev.(type) {
	case models.UnreadCountUpdate, models.ChatUnreadCountUpdate:
		return true
	}
	return false
}

// announce re-broadcasts server-side outcomes for listeners outside the hub.
func (h *Hub) announce(ev models.Event) {
	switch e := ev.(type) {
	case models.NewNotification:
		if e.Notification.Unread() && h.opts.Notifier != nil {
			go func(n models.Notification) {
				if err := h.opts.Notifier.Notify(n); err != nil {
					h.logger.Debug("desktop notification failed", "error", err)
				}
			}(e.Notification)
		}
	case models.NotificationMarkedRead:
		if !e.All {
			bridge.Publish(h.bus, bridge.NotificationsRead, []string{e.ID})
		}
	case models.NotificationHandled:
		bridge.Publish(h.bus, bridge.NotificationHandled, bridge.NotificationRef{ID: e.ID})
	case models.NotificationDeleted:
		if e.All {
			bridge.Publish(h.bus, bridge.NotificationsCleared, struct{}{})
		} else {
			bridge.Publish(h.bus, bridge.NotificationDeleted, bridge.NotificationRef{ID: e.ID})
		}
	case models.FriendRequestUpdated:
		if e.Request.Status != models.RequestPending {
			bridge.Publish(h.bus, bridge.FriendRequestAnswered, e.Request)
		}
	}
}

// Channels lists the channels that have been opened, sorted by name.
func (h *Hub) Channels() []models.Channel {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]models.Channel, 0, len(h.channels))
	for ch := range h.channels {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Logout closes every channel and stops background resyncs. The hub cannot be used afterwards; if it was the
// [Default] hub, the next call to Default builds a fresh one.
//
// Logout waits for background resyncs to exit, so it must not be called from a [Handler].
func (h *Hub) Logout() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	channels := make([]*channel, 0, len(h.channels))
	for _, c := range h.channels {
		channels = append(channels, c)
	}
	h.mu.Unlock()

	h.cancel()
	for _, c := range channels {
		c.conn.Close()
	}
	h.engine.Close()
	h.wg.Wait()
	forget(h)
	h.logger.Info("logged out", "user", h.opts.UserID)
}
