package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
)

// Options configures a [Connection].
type Options struct {
	URL          string
	Token        string
	Backoff      Backoff
	SendBuffer   int
	PingInterval time.Duration
	Logger       *log.Logger

	// Rand and Sleep replace the jitter source and the backoff wait in tests.
	Rand  func(n int64) int64
	Sleep func(ctx context.Context, d time.Duration) error
}

// Connection is the single transport connection of one channel.
type Connection struct {
	channel models.Channel
	dialer  Dialer
	opts    Options
	logger  *log.Logger

	mu        sync.Mutex
	state     models.ConnState
	gen       uint64
	cancel    context.CancelFunc
	out       chan models.Envelope
	connected chan struct{}
	onEvent   func(models.Envelope)
	onState   []func(prev, next models.ConnState)
}

// NewConnection creates a disconnected [Connection] for channel.
func NewConnection(channel models.Channel, dialer Dialer, opts Options) *Connection {
	if opts.Backoff.Min <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	if opts.Sleep == nil {
		opts.Sleep = Sleep
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &Connection{
		channel:   channel,
		dialer:    dialer,
		opts:      opts,
		logger:    shared.WithLogger(logger, "channel", string(channel)),
		connected: make(chan struct{}),
	}
}

// Channel returns the channel this connection serves.
func (c *Connection) Channel() models.Channel { return c.channel }

// State returns the current connection state.
func (c *Connection) State() models.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnEvent sets the callback receiving every inbound envelope, in transport order, from a single goroutine.
func (c *Connection) OnEvent(fn func(models.Envelope)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvent = fn
}

// OnStateChange adds a callback for state transitions.
func (c *Connection) OnStateChange(fn func(prev, next models.ConnState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = append(c.onState, fn)
}

// Open starts connecting in the background. Calling it on a connection that is not Disconnected does nothing.
//
// The connection outlives ctx; only [Connection.Close] stops it. ctx bounds nothing but the call itself.
func (c *Connection) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.state != models.Disconnected {
		c.mu.Unlock()
		return nil
	}
	c.gen++
	gen := c.gen
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	// leaving Disconnected under the same lock keeps concurrent Opens from starting a second run
	c.state = models.Connecting
	callbacks := c.onState
	c.mu.Unlock()

	c.logger.Debug("state", "from", models.Disconnected, "to", models.Connecting)
	for _, fn := range callbacks {
		fn(models.Disconnected, models.Connecting)
	}
	go c.run(runCtx, gen)
	return nil
}

// Ready blocks until the connection is Connected or ctx is done.
func (c *Connection) Ready(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.state == models.Connected {
			c.mu.Unlock()
			return nil
		}
		if c.state == models.Disconnected {
			c.mu.Unlock()
			return shared.ErrNotConnected
		}
		wait := c.connected
		c.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Send queues env for the writer. It fails with [shared.ErrNotConnected] unless the connection is Connected,
// and with [shared.ErrSendBufferFull] when the outbound buffer is full.
//
// Envelopes still buffered when the session drops are discarded.
func (c *Connection) Send(ctx context.Context, env models.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	out, state := c.out, c.state
	c.mu.Unlock()

	if state != models.Connected || out == nil {
		return fmt.Errorf("%w: %s is %s", shared.ErrNotConnected, c.channel, state)
	}

	select {
	case out <- env:
		return nil
	default:
		return fmt.Errorf("%w: %s", shared.ErrSendBufferFull, c.channel)
	}
}

// Close stops the connection. It does not wait for the background goroutines, so it is safe to call from
// an event or state callback.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.state == models.Disconnected {
		c.mu.Unlock()
		return nil
	}
	c.cancel()
	c.gen++
	prev := c.state
	c.state = models.Disconnected
	c.out = nil
	c.releaseWaiters()
	callbacks := c.onState
	c.mu.Unlock()

	c.logger.Debug("closed")
	for _, fn := range callbacks {
		fn(prev, models.Disconnected)
	}
	return nil
}

func (c *Connection) run(ctx context.Context, gen uint64) {
	header := http.Header{}
	if c.opts.Token != "" {
		header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	attempt := 0
	for {
		conn, err := c.dialer.Dial(ctx, c.opts.URL, header)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("dial failed", "attempt", attempt, "error", err)
			if !c.backoff(ctx, gen, attempt) {
				return
			}
			attempt++
			continue
		}

		attempt = 0
		err = c.serve(ctx, gen, conn)
		if ctx.Err() != nil || !c.current(gen) {
			return
		}
		if IsNormalClose(err) {
			c.logger.Info("connection closed by server")
		} else {
			c.logger.Warn("connection lost", "error", err)
		}
		if !c.backoff(ctx, gen, attempt) {
			return
		}
		attempt++
	}
}

func (c *Connection) backoff(ctx context.Context, gen uint64, attempt int) bool {
	if !c.current(gen) {
		return false
	}
	c.setState(gen, models.Reconnecting)
	delay := c.opts.Backoff.Delay(attempt, c.opts.Rand)
	c.logger.Debug("reconnecting", "delay", delay)
	return c.opts.Sleep(ctx, delay) == nil
}

// serve runs one session: a reader delivering envelopes in order and a writer draining the outbound buffer.
// It returns when either side fails or ctx is cancelled, after both goroutines have exited.
func (c *Connection) serve(ctx context.Context, gen uint64, conn Conn) error {
	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make(chan models.Envelope, c.opts.SendBuffer)
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.out = out
	c.mu.Unlock()

	c.setState(gen, models.Connected)

	errc := make(chan error, 2)
	go func() { errc <- c.readLoop(sessCtx, conn) }()
	go func() { errc <- c.writeLoop(sessCtx, conn, out) }()

	var err error
	pending := 2
	select {
	case err = <-errc:
		pending--
	case <-ctx.Done():
		err = ctx.Err()
	}

	c.mu.Lock()
	if c.gen == gen {
		c.out = nil
	}
	c.mu.Unlock()

	cancel()
	conn.Close()

	for ; pending > 0; pending-- {
		<-errc
	}
	return err
}

func (c *Connection) readLoop(ctx context.Context, conn Conn) error {
	for {
		var env models.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return fmt.Errorf("%w: read: %w", shared.ErrTransport, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.mu.Lock()
		fn := c.onEvent
		c.mu.Unlock()
		if fn != nil {
			fn(env)
		}
	}
}

func (c *Connection) writeLoop(ctx context.Context, conn Conn, out <-chan models.Envelope) error {
	var ping <-chan time.Time
	if c.opts.PingInterval > 0 {
		ticker := time.NewTicker(c.opts.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-out:
			if err := conn.WriteJSON(env); err != nil {
				return fmt.Errorf("%w: write: %v", shared.ErrTransport, err)
			}
		case <-ping:
			if err := conn.Ping(); err != nil {
				return fmt.Errorf("%w: ping: %v", shared.ErrTransport, err)
			}
		}
	}
}

// current reports whether gen is the live generation.
func (c *Connection) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

// setState records a transition made by generation gen and notifies the callbacks outside the lock.
// Transitions from a generation that was closed are dropped.
func (c *Connection) setState(gen uint64, next models.ConnState) {
	c.mu.Lock()
	if c.gen != gen || c.state == next {
		c.mu.Unlock()
		return
	}
	prev := c.state
	c.state = next
	if next == models.Connected {
		close(c.connected)
	} else if prev == models.Connected {
		c.connected = make(chan struct{})
	}
	callbacks := c.onState
	c.mu.Unlock()

	c.logger.Debug("state", "from", prev, "to", next)
	for _, fn := range callbacks {
		fn(prev, next)
	}
}

// releaseWaiters wakes Ready callers after Close. Must be called with c.mu held.
func (c *Connection) releaseWaiters() {
	select {
	case <-c.connected:
	default:
		close(c.connected)
	}
	c.connected = make(chan struct{})
}
