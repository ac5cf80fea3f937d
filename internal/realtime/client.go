package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/cartsync/pkg/logger"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// clientSeq orders clients for deterministic fan-out.
var clientSeq atomic.Uint64

// Inbound is a command frame sent by a browser.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Dispatcher handles inbound commands for one client.
type Dispatcher interface {
	Dispatch(ctx context.Context, c *Client, in Inbound)
}

type Client struct {
	id    string
	seq   uint64
	hub   *Hub
	conn  *websocket.Conn
	rooms map[string]bool // guarded by hub.mu

	mu     sync.Mutex
	send   chan Message
	closed bool
}

func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:    uuid.NewString(),
		seq:   clientSeq.Add(1),
		hub:   hub,
		conn:  conn,
		rooms: make(map[string]bool),
		send:  make(chan Message, sendBuffer),
	}
}

func (c *Client) ID() string {
	return c.id
}

// Send queues msg for this client. It reports false when the client is gone
// or its buffer is full.
func (c *Client) Send(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// SendError queues an error frame.
func (c *Client) SendError(message string) {
	c.Send(Message{Type: MessageTypeError, Data: map[string]string{"message": message}})
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) readPump(ctx context.Context, d Dispatcher) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var in Inbound
		if err := c.conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Str("client_id", c.id).Msg("unexpected websocket close")
			}
			return
		}

		if in.Type == MessageTypePing {
			c.Send(Message{Type: MessageTypePong})
			continue
		}
		d.Dispatch(ctx, c, in)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				logger.Debug().Err(err).Str("client_id", c.id).Msg("websocket write failed")
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
