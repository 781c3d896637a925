package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"codecollab/internal/dto"
	"codecollab/internal/pkg/logger"
)

var (
	// ErrMissingToken is a precondition failure: the session has no auth
	// token, so there is nothing to hand the relay at the handshake.
	ErrMissingToken = errors.New("transport: auth token missing")

	// ErrNotConnected is returned by Send while the channel is down. Sends
	// are never queued; the caller surfaces this to the user.
	ErrNotConnected = errors.New("transport: not connected")
)

// Handler consumes the raw payload of one named event.
type Handler func(data json.RawMessage)

// Channel is one persistent, authenticated, bidirectional event connection.
// Implementations must announce join-project after connecting and
// leave-project before disconnecting.
type Channel interface {
	Connect() error
	Send(event string, payload interface{}) error
	On(event string, h Handler)
	Connected() bool
	Close() error
}

// Options carries the connection-time metadata. The token and ids are part
// of the handshake, not of individual messages.
type Options struct {
	Endpoint          string
	AuthToken         string
	ProjectID         string
	UserID            string
	ReconnectAttempts int
	ReconnectDelay    time.Duration
}

// WebsocketChannel implements Channel over a single websocket with a JSON
// envelope per frame. It holds no message history.
type WebsocketChannel struct {
	opts Options
	log  logger.ILogger

	mu       sync.Mutex
	conn     *websocket.Conn
	handlers map[string][]Handler
	closed   bool
}

func NewWebsocketChannel(opts Options, log logger.ILogger) *WebsocketChannel {
	if opts.ReconnectAttempts <= 0 {
		opts.ReconnectAttempts = 5
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = time.Second
	}
	return &WebsocketChannel{
		opts:     opts,
		log:      log,
		handlers: make(map[string][]Handler),
	}
}

// On registers a handler for an event name. Handlers run on the read
// goroutine, in registration order.
func (c *WebsocketChannel) On(event string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], h)
}

// Connect dials the relay, announces the session via join-project, and
// starts the read loop.
func (c *WebsocketChannel) Connect() error {
	if c.opts.AuthToken == "" {
		return ErrMissingToken
	}

	conn, err := c.dial()
	if err != nil {
		return fmt.Errorf("transport: connect %s: %w", c.opts.Endpoint, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.closed = false
	c.mu.Unlock()

	if err := c.Send(dto.EventJoinProject, c.roomPayload()); err != nil {
		return err
	}

	go c.readLoop(conn)
	return nil
}

func (c *WebsocketChannel) dial() (*websocket.Conn, error) {
	u, err := url.Parse(c.opts.Endpoint)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("projectId", c.opts.ProjectID)
	q.Set("userId", c.opts.UserID)
	q.Set("token", c.opts.AuthToken)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	return conn, err
}

func (c *WebsocketChannel) roomPayload() dto.RoomPayload {
	return dto.RoomPayload{ProjectID: c.opts.ProjectID, UserID: c.opts.UserID}
}

// Send marshals one envelope onto the wire. While disconnected it fails with
// ErrNotConnected instead of buffering.
func (c *WebsocketChannel) Send(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("transport: marshal %s payload: %w", event, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.closed {
		return ErrNotConnected
	}
	if err := c.conn.WriteJSON(dto.Envelope{Event: event, Data: data}); err != nil {
		return fmt.Errorf("transport: send %s: %w", event, err)
	}
	return nil
}

// Connected reports whether a live connection is held right now.
func (c *WebsocketChannel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && !c.closed
}

// readLoop pumps frames off the connection and dispatches them to the
// registered handlers. On transport loss it runs the bounded reconnect
// sequence; exhaustion leaves the channel disconnected, which subsequent
// Sends report as ErrNotConnected.
func (c *WebsocketChannel) readLoop(conn *websocket.Conn) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.conn = nil
			c.mu.Unlock()
			if closed {
				return
			}

			c.log.Warn("Transport", "Connection lost, reconnecting", map[string]interface{}{"error": err.Error()})
			next, ok := c.reconnect()
			if !ok {
				c.log.Error("Transport", "Reconnect attempts exhausted", map[string]interface{}{
					"attempts": c.opts.ReconnectAttempts,
				})
				return
			}
			conn = next
			continue
		}

		var env dto.Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			c.log.Warn("Transport", "Discarding undecodable frame", map[string]interface{}{"error": err.Error()})
			continue
		}

		c.mu.Lock()
		hs := append([]Handler(nil), c.handlers[env.Event]...)
		c.mu.Unlock()
		for _, h := range hs {
			h(env.Data)
		}
	}
}

// reconnect retries the dial with a fixed inter-attempt delay, re-announcing
// the session on success.
func (c *WebsocketChannel) reconnect() (*websocket.Conn, bool) {
	for attempt := 1; attempt <= c.opts.ReconnectAttempts; attempt++ {
		time.Sleep(c.opts.ReconnectDelay)

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, false
		}
		c.mu.Unlock()

		conn, err := c.dial()
		if err != nil {
			c.log.Warn("Transport", "Reconnect attempt failed", map[string]interface{}{
				"attempt": attempt,
				"error":   err.Error(),
			})
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		if err := c.Send(dto.EventJoinProject, c.roomPayload()); err != nil {
			c.log.Warn("Transport", "Re-join after reconnect failed", map[string]interface{}{"error": err.Error()})
			conn.Close()
			c.mu.Lock()
			c.conn = nil
			c.mu.Unlock()
			continue
		}
		return conn, true
	}
	return nil, false
}

// Close announces leave-project synchronously, then severs the connection.
// A failed leave is logged, never returned: teardown always completes.
func (c *WebsocketChannel) Close() error {
	if err := c.Send(dto.EventLeaveProject, c.roomPayload()); err != nil {
		c.log.Warn("Transport", "Leave announcement failed", map[string]interface{}{"error": err.Error()})
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.handlers = make(map[string][]Handler)
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.log.Warn("Transport", "Disconnect failed", map[string]interface{}{"error": err.Error()})
		}
		c.conn = nil
	}
	return nil
}
