package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/desertthunder/tunesync/internal/shared"
)

const (
	readLimit    = 512 * 1024
	writeTimeout = 10 * time.Second
)

// Conn is one live transport session.
//
// ReadJSON is called from a single goroutine and WriteJSON and Ping from another.
type Conn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Ping() error
	Close() error
}

// Dialer opens transport sessions.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

// WebsocketDialer dials channels with gorilla/websocket.
//
// When PongWait is set every read must arrive within PongWait, and pongs extend the deadline.
type WebsocketDialer struct {
	Dialer   *websocket.Dialer
	PongWait time.Duration
}

// Dial implements [Dialer].
func (d WebsocketDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	ws, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: dial %s: %s: %v", shared.ErrTransport, url, resp.Status, err)
		}
		return nil, fmt.Errorf("%w: dial %s: %v", shared.ErrTransport, url, err)
	}

	ws.SetReadLimit(readLimit)
	if d.PongWait > 0 {
		ws.SetReadDeadline(time.Now().Add(d.PongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(d.PongWait))
		})
	}
	return &wsConn{ws: ws, pongWait: d.PongWait}, nil
}

type wsConn struct {
	ws       *websocket.Conn
	pongWait time.Duration
}

func (c *wsConn) ReadJSON(v any) error {
	if err := c.ws.ReadJSON(v); err != nil {
		return err
	}
	if c.pongWait > 0 {
		c.ws.SetReadDeadline(time.Now().Add(c.pongWait))
	}
	return nil
}

func (c *wsConn) WriteJSON(v any) error {
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(v)
}

func (c *wsConn) Ping() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

func (c *wsConn) Close() error {
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return c.ws.Close()
}

// IsNormalClose reports whether err, possibly wrapped, is a close frame the peer sent on purpose.
func IsNormalClose(err error) bool {
	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway
}
