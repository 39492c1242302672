package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Connection wraps a websocket with identity set once at join time and a
// buffered outbound queue drained by a single write goroutine. All frames go
// through Send; nothing else writes to the socket after the handshake.
type Connection struct {
	ws        *websocket.Conn
	userID    string
	userName  string
	role      string
	roomToken string

	sendCh       chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
}

func NewConnection(ws *websocket.Conn, userID, userName, role, roomToken string, sendBuffer int, writeTimeout time.Duration) *Connection {
	c := &Connection{
		ws:           ws,
		userID:       userID,
		userName:     userName,
		role:         role,
		roomToken:    roomToken,
		sendCh:       make(chan []byte, sendBuffer),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
	}
	go c.writeLoop()
	return c
}

func (c *Connection) UserID() string    { return c.userID }
func (c *Connection) UserName() string  { return c.userName }
func (c *Connection) Role() string      { return c.role }
func (c *Connection) RoomToken() string { return c.roomToken }

// Send queues a frame for delivery. A full queue means the peer stopped
// reading; the frame is dropped rather than stalling the sender's room.
func (c *Connection) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}
	select {
	case c.sendCh <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.sendCh:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// Ping sends a control ping from the handler's keepalive ticker.
func (c *Connection) Ping() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

// Close shuts the write loop down and closes the socket. Idempotent.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}
