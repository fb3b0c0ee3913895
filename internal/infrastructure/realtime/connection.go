package realtime

import (
	"errors"
	"sync"
	"time"

	"supportchat/internal/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Session is the registry's view of a live transport connection. It is an
// interface so the registry and its tests do not depend on a real socket.
type Session interface {
	ID() string
	PrincipalID() string
	PrincipalType() string
	Send(payload []byte) error
}

// Connection wraps a websocket and coordinates outbound writes via a buffered
// channel. A connection binds one live socket to one authenticated principal
// and is safe for concurrent use.
type Connection struct {
	id            string
	principalID   string
	principalType string

	ws    *websocket.Conn
	send  chan []byte
	once  sync.Once
	close chan struct{}
}

var _ Session = (*Connection)(nil)

// NewConnection constructs a Connection for the given principal.
func NewConnection(principalID, principalType string, ws *websocket.Conn) *Connection {
	return &Connection{
		id:            uuid.NewString(),
		principalID:   principalID,
		principalType: principalType,
		ws:            ws,
		send:          make(chan []byte, 128),
		close:         make(chan struct{}),
	}
}

func (c *Connection) ID() string            { return c.id }
func (c *Connection) PrincipalID() string   { return c.principalID }
func (c *Connection) PrincipalType() string { return c.principalType }

// Start launches the write loop. It must be called exactly once per connection.
func (c *Connection) Start() {
	metrics.WsConnections.Inc()
	go c.writeLoop()
}

// Send enqueues payload for delivery. Sending on a closed connection fails
// with an error, never a panic: the send channel is never closed, so a
// broadcast racing a disconnect cannot crash the process. If the client is
// slow and the buffer is full, the connection is closed to keep backpressure
// bounded.
func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.close:
		return errors.New("connection closed")
	default:
	}
	select {
	case <-c.close:
		return errors.New("connection closed")
	case c.send <- payload:
		return nil
	default:
		c.Close(websocket.CloseGoingAway, "send buffer full")
		return errors.New("connection buffer exceeded")
	}
}

// Close terminates the connection and stops the write loop. The send channel
// stays open; the write loop exits through the close signal instead.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		metrics.WsConnections.Dec()
		close(c.close)
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.close:
			return
		case msg := <-c.send:
			if err := c.writeMessage(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.writePing(); err != nil {
				return
			}
		}
	}
}

func (c *Connection) writeMessage(payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *Connection) writePing() error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}
