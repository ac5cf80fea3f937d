package realtime

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/fjod/cartsync/pkg/logger"
	"github.com/gorilla/websocket"
)

// Server upgrades HTTP requests to websocket clients of a hub.
type Server struct {
	hub      *Hub
	commands *Commands
	upgrader websocket.Upgrader
}

// NewServer builds the /ws endpoint. With no allowed origins the upgrader
// only accepts same-origin requests; "*" accepts any origin.
func NewServer(hub *Hub, commands *Commands, allowedOrigins []string) *Server {
	s := &Server{
		hub:      hub,
		commands: commands,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
		},
	}
	if len(allowedOrigins) > 0 {
		s.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
		}
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(s.hub, conn)
	if !s.hub.Register(client) {
		_ = conn.Close()
		return
	}

	// the request context ends when this handler returns
	ctx := context.WithoutCancel(r.Context())
	go client.writePump()
	go client.readPump(ctx, s.commands)
	s.commands.Welcome(ctx, client)
}
