package api

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/MickeyBro19/Real-Time-Collaborative-Task-Board/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Client wraps one live websocket connection. Outbound messages go through
// a buffered send channel so a slow reader never blocks event processing;
// when the buffer is full the message is dropped for that connection and the
// next full-state broadcast heals it.
type Client struct {
	id     string
	conn   *websocket.Conn
	logger *log.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// NewClient wraps the connection with the given server-assigned id.
func NewClient(id string, conn *websocket.Conn, bufSize int, maxMessageSize int64, logger *log.Logger) *Client {
	if bufSize <= 0 {
		bufSize = 256
	}
	if conn != nil && maxMessageSize > 0 {
		conn.SetReadLimit(maxMessageSize)
	}
	return &Client{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, bufSize),
		logger: logger,
	}
}

// ID returns the server-assigned connection identifier.
func (c *Client) ID() string { return c.id }

// Send queues the payload for delivery, dropping it if the buffer is full
// or the connection is already closed.
func (c *Client) Send(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// readPump reads frames, decodes the envelope, and hands each event to the
// router. It returns when the connection closes or errors; the caller is
// responsible for disconnect cleanup.
func (c *Client) readPump(router *Router) {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.WithField("conn", c.id).Debugf("set read deadline: %v", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.WithField("conn", c.id).Warnf("read: %v", err)
			}
			return
		}

		var env domain.Envelope
		if err := sonic.ConfigStd.Unmarshal(raw, &env); err != nil || env.Event == "" {
			router.RejectMessage(c.id, "invalid message frame")
			continue
		}
		router.HandleEvent(c.id, env)
	}
}

// writePump flushes queued payloads to the socket and keeps the connection
// alive with periodic pings. It exits when the send channel is closed or a
// write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close releases the send channel, which stops the write pump and closes
// the underlying connection. Safe against concurrent Send calls.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
