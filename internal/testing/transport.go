package testing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/transport"
)

// ErrConnClosed is returned by a [FakeConn] after Close.
var ErrConnClosed = errors.New("fake connection closed")

// FakeConn is an in-memory [transport.Conn]. Tests play the server side with Push and Sent.
type FakeConn struct {
	URL    string
	Header http.Header

	in     chan models.Envelope
	out    chan models.Envelope
	closed chan struct{}
	once   sync.Once
}

func NewFakeConn() *FakeConn {
	return &FakeConn{
		in:     make(chan models.Envelope, 64),
		out:    make(chan models.Envelope, 64),
		closed: make(chan struct{}),
	}
}

func (c *FakeConn) ReadJSON(v any) error {
	select {
	case env := <-c.in:
		b, err := json.Marshal(env)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, v)
	case <-c.closed:
		return ErrConnClosed
	}
}

func (c *FakeConn) WriteJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var env models.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}

	select {
	case <-c.closed:
		return ErrConnClosed
	case c.out <- env:
		return nil
	}
}

func (c *FakeConn) Ping() error {
	if c.IsClosed() {
		return ErrConnClosed
	}
	return nil
}

func (c *FakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// IsClosed reports whether the client or the test closed the connection.
func (c *FakeConn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Push delivers ev to the client as if the server sent it.
func (c *FakeConn) Push(t *testing.T, ev models.Event) {
	t.Helper()
	env, err := models.EncodeEvent(ev, 0)
	if err != nil {
		t.Fatalf("failed to encode %s: %v", ev.Kind(), err)
	}
	c.PushEnvelope(t, env)
}

// PushEnvelope delivers a raw envelope to the client.
func (c *FakeConn) PushEnvelope(t *testing.T, env models.Envelope) {
	t.Helper()
	select {
	case c.in <- env:
	case <-c.closed:
		t.Fatalf("push %s on closed connection", env.Kind)
	case <-time.After(time.Second):
		t.Fatalf("push %s blocked", env.Kind)
	}
}

// Sent waits for the next envelope written by the client.
func (c *FakeConn) Sent(t *testing.T, timeout time.Duration) models.Envelope {
	t.Helper()
	select {
	case env := <-c.out:
		return env
	case <-time.After(timeout):
		t.Fatalf("no envelope sent within %s", timeout)
		return models.Envelope{}
	}
}

// FakeDialer hands out [FakeConn] values and can be told to fail.
type FakeDialer struct {
	mu    sync.Mutex
	fail  int
	err   error
	dials int
	conns []*FakeConn
	ready chan *FakeConn
	gate  chan struct{}
}

var _ transport.Dialer = (*FakeDialer)(nil)

func NewFakeDialer() *FakeDialer {
	return &FakeDialer{ready: make(chan *FakeConn, 64), err: errors.New("dial refused")}
}

// Dial implements [transport.Dialer].
func (d *FakeDialer) Dial(ctx context.Context, url string, header http.Header) (transport.Conn, error) {
	d.mu.Lock()
	gate := d.gate
	d.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.dials++
	if d.fail > 0 {
		d.fail--
		err := d.err
		d.mu.Unlock()
		return nil, err
	}
	conn := NewFakeConn()
	conn.URL = url
	conn.Header = header.Clone()
	d.conns = append(d.conns, conn)
	d.mu.Unlock()

	select {
	case d.ready <- conn:
	default:
	}
	return conn, nil
}

// Hold makes dials wait until Release, simulating a server that cannot be reached.
func (d *FakeDialer) Hold() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gate == nil {
		d.gate = make(chan struct{})
	}
}

// Release lets held dials proceed.
func (d *FakeDialer) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gate != nil {
		close(d.gate)
		d.gate = nil
	}
}

// FailNext makes the next n dials fail.
func (d *FakeDialer) FailNext(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = n
}

// Dials counts dial attempts, failed ones included.
func (d *FakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// Open counts connections that have not been closed.
func (d *FakeDialer) Open() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.conns {
		if !c.IsClosed() {
			n++
		}
	}
	return n
}

// Next waits for the next successful dial.
func (d *FakeDialer) Next(t *testing.T, timeout time.Duration) *FakeConn {
	t.Helper()
	select {
	case c := <-d.ready:
		return c
	case <-time.After(timeout):
		t.Fatalf("no connection dialed within %s", timeout)
		return nil
	}
}

// NoSleep is a backoff wait that returns immediately unless ctx is done.
func NoSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
