package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/Tobby-pro/New-Rental-Stack/internal/auth"
	"github.com/Tobby-pro/New-Rental-Stack/internal/realtime"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

var errConnClosed = errors.New("connection closed")

// wsConn is the realtime.Conn of one websocket. Send only queues; the write
// loop owns the socket writes.
type wsConn struct {
	id        string
	conn      *websocket.Conn
	principal auth.Principal
	limiter   *rate.Limiter

	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

var _ realtime.Conn = (*wsConn)(nil)

func newWsConn(id string, c *websocket.Conn, p auth.Principal, buffer int, limiter *rate.Limiter) *wsConn {
	return &wsConn{
		id:        id,
		conn:      c,
		principal: p,
		limiter:   limiter,
		send:      make(chan []byte, buffer),
		closed:    make(chan struct{}),
	}
}

func (c *wsConn) ID() string { return c.id }

// Send never blocks: a full queue means the client is not keeping up.
func (c *wsConn) Send(msg []byte) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return realtime.ErrSendBufferFull
	}
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

func (c *wsConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *wsConn) writeFrame(msg []byte, wait time.Duration) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(wait))
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}
