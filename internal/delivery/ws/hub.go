package ws

import (
	"context"
	"sync"

	"github.com/vogiaan1904/listenroom/internal/models"
	"github.com/vogiaan1904/listenroom/pkg/logger"
)

// Hub tracks live connections and the room channels they are subscribed to.
// Messages are queued onto each client's send buffer in call order, so a room
// sees broadcasts in the order its actor produced them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]map[string]*Client // room -> user -> conn

	l logger.Logger
}

func NewHub(l logger.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]map[string]*Client),
		l:       l,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
}

// Unregister forgets c and detaches it from every room channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.clients, c.id)
	for roomID, users := range h.rooms {
		if conns, ok := users[c.userID]; ok {
			delete(conns, c.id)
			if len(conns) == 0 {
				delete(users, c.userID)
			}
		}
		if len(users) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

func (h *Hub) Subscribe(roomID, userID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return
	}

	users, ok := h.rooms[roomID]
	if !ok {
		users = make(map[string]map[string]*Client)
		h.rooms[roomID] = users
	}
	if users[userID] == nil {
		users[userID] = make(map[string]*Client)
	}
	users[userID][connID] = c
}

func (h *Hub) Unsubscribe(roomID, userID, connID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	users, ok := h.rooms[roomID]
	if !ok {
		return 0
	}

	conns := users[userID]
	if connID == "" {
		for _, c := range conns {
			c.clearRoom(roomID)
		}
		conns = nil
	} else {
		delete(conns, connID)
	}

	remaining := len(conns)
	if remaining == 0 {
		delete(users, userID)
	}
	if len(users) == 0 {
		delete(h.rooms, roomID)
	}
	return remaining
}

func (h *Hub) Broadcast(roomID string, msg models.Message) {
	h.BroadcastExcept(roomID, "", msg)
}

func (h *Hub) BroadcastExcept(roomID, userID string, msg models.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for uid, conns := range h.rooms[roomID] {
		if uid == userID {
			continue
		}
		for _, c := range conns {
			h.deliver(c, msg)
		}
	}
}

func (h *Hub) Send(connID string, msg models.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if c, ok := h.clients[connID]; ok {
		h.deliver(c, msg)
	}
}

func (h *Hub) CloseRoom(roomID string, msg models.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, conns := range h.rooms[roomID] {
		for _, c := range conns {
			h.deliver(c, msg)
			c.clearRoom(roomID)
		}
	}
	delete(h.rooms, roomID)
}

// CloseAll closes every live connection.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		c.close()
	}
}

// Members reports how many connections are subscribed to roomID.
func (h *Hub) Members(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, conns := range h.rooms[roomID] {
		n += len(conns)
	}
	return n
}

func (h *Hub) deliver(c *Client, msg models.Message) {
	if !c.enqueue(msg) {
		h.l.Warnf(context.Background(), "delivery.ws.Hub: dropping slow connection conn_id=%s user_id=%s", c.id, c.userID)
		c.close()
	}
}
