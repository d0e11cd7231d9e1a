package chat

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // base64 image payloads ride in send_message frames
	sendBufferSize = 256
)

var errConnClosed = errors.New("connection closed")

// Conn is one live websocket connection. Writes go through a buffered send
// channel drained by writePump; reads happen on the gateway's read loop.
// Separating the two avoids head-of-line blocking when a client is slow.
type Conn struct {
	id     string
	userID int64
	sock   *websocket.Conn
	send   chan []byte
	once   sync.Once
	done   chan struct{}
}

func newConn(userID int64, sock *websocket.Conn) *Conn {
	return &Conn{
		id:     uuid.NewString(),
		userID: userID,
		sock:   sock,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
}

// ID returns the transport-assigned connection identifier.
func (c *Conn) ID() string { return c.id }

// UserID returns the identity that authenticated this connection.
func (c *Conn) UserID() int64 { return c.userID }

// Send enqueues one frame for delivery. A connection whose buffer is full
// is considered broken and closed; the caller sees an error and the hub
// drops it from its groups.
func (c *Conn) Send(frame []byte) error {
	select {
	case <-c.done:
		return errConnClosed
	case c.send <- frame:
		return nil
	default:
		c.close()
		return errors.New("send buffer full")
	}
}

func (c *Conn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.sock.Close()
	})
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.sock.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
