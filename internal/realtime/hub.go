// Package realtime pushes cart and catalog events to browsers over websockets.
//
// A Hub owns every connected Client and the rooms they joined; rooms are
// keyed by cart id. Events reach the hub through Publish, which makes the hub
// a notify.Publisher.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/fjod/cartsync/internal/metrics"
	"github.com/fjod/cartsync/internal/notify"
	"github.com/fjod/cartsync/pkg/logger"
)

const (
	MessageTypePing  = "ping"
	MessageTypePong  = "pong"
	MessageTypeError = "error"
)

var ErrBroadcastFull = errors.New("broadcast channel full")

// Message is the frame exchanged with browsers.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type envelope struct {
	room string
	msg  Message
}

type membership struct {
	client *Client
	room   string
}

type Hub struct {
	clients    map[*Client]bool
	rooms      map[string]map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	join       chan membership
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		broadcast:  make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan membership),
		done:       make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes all
// clients.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			n := h.ClientCount()
			h.closeAll()
			logger.Info().Int("clients_closed", n).Msg("websocket hub stopped")
			return nil

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WSClients.Set(float64(total))
			logger.Info().Str("client_id", c.id).Int("total_clients", total).Msg("websocket client connected")

		case c := <-h.unregister:
			h.mu.Lock()
			h.remove(c)
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WSClients.Set(float64(total))
			logger.Info().Str("client_id", c.id).Int("total_clients", total).Msg("websocket client disconnected")

		case m := <-h.join:
			h.mu.Lock()
			if h.clients[m.client] {
				if h.rooms[m.room] == nil {
					h.rooms[m.room] = make(map[*Client]bool)
				}
				h.rooms[m.room][m.client] = true
				m.client.rooms[m.room] = true
			}
			h.mu.Unlock()
			logger.Debug().Str("client_id", m.client.id).Str("room", m.room).Msg("client joined room")

		case e := <-h.broadcast:
			h.deliver(e)
		}
	}
}

// Publish queues ev for delivery to its room, or to every client when the
// event has no room. It never blocks.
func (h *Hub) Publish(_ context.Context, ev notify.Event) error {
	msg := Message{Type: ev.Type, Data: json.RawMessage(ev.Data)}
	select {
	case h.broadcast <- envelope{room: ev.Room, msg: msg}:
		return nil
	default:
		logger.Warn().Str("event", ev.Type).Msg("broadcast channel full, dropping message")
		return ErrBroadcastFull
	}
}

// Join subscribes c to room and returns once the hub has applied it, so any
// event published afterwards reaches c. Membership ends on disconnect.
func (h *Hub) Join(c *Client, room string) {
	select {
	case h.join <- membership{client: c, room: room}:
	case <-h.done:
	}
}

// Register adds c to the hub. It returns false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) deliver(e envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	targets := h.clients
	if e.room != "" {
		targets = h.rooms[e.room]
	}

	clients := make([]*Client, 0, len(targets))
	for c := range targets {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].seq < clients[j].seq })

	var slow []*Client
	for _, c := range clients {
		if !c.Send(e.msg) {
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		logger.Warn().Str("client_id", c.id).Msg("dropping slow websocket client")
		h.remove(c)
	}
	if len(slow) > 0 {
		metrics.WSClients.Set(float64(len(h.clients)))
	}
}

// remove must be called with h.mu held.
func (h *Hub) remove(c *Client) {
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	for room := range c.rooms {
		delete(h.rooms[room], c)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
	c.close()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.remove(c)
	}
	metrics.WSClients.Set(0)
}
