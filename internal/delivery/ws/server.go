package ws

import (
	"context"
	"net/http"
	"slices"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vogiaan1904/listenroom/pkg/logger"
)

// Server upgrades authenticated HTTP requests to websocket connections.
type Server struct {
	hub        *Hub
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader
	draining   atomic.Bool
	l          logger.Logger
}

// NewServer accepts any origin when allowOrigins is empty or contains "*".
func NewServer(hub *Hub, d *Dispatcher, allowOrigins []string, l logger.Logger) *Server {
	return &Server{
		hub:        hub,
		dispatcher: d,
		l:          l,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowOrigins) == 0 || slices.Contains(allowOrigins, "*") {
					return true
				}
				return slices.Contains(allowOrigins, r.Header.Get("Origin"))
			},
		},
	}
}

// Serve upgrades the request for userID and blocks until the connection ends.
func (s *Server) Serve(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	ctx := s.l.WithFields(context.WithoutCancel(r.Context()), "user_id", userID)
	c := newClient(uuid.NewString(), userID, conn, s.l)
	s.hub.Register(c)

	s.l.Debugf(ctx, "Websocket connected conn_id=%s user_id=%s", c.id, userID)

	go c.writePump()
	c.readPump(ctx, s.dispatcher)

	// Memberships survive a shutdown. The stale sweep evicts users that do
	// not reconnect.
	if !s.draining.Load() {
		s.dispatcher.Disconnect(ctx, c)
	}
	s.hub.Unregister(c)

	s.l.Debugf(ctx, "Websocket disconnected conn_id=%s user_id=%s", c.id, userID)
	return nil
}

// Shutdown closes every connection without running the leave path.
func (s *Server) Shutdown() {
	s.draining.Store(true)
	s.hub.CloseAll()
}
