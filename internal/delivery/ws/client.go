package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vogiaan1904/listenroom/internal/models"
	"github.com/vogiaan1904/listenroom/pkg/logger"
)

// Client is one websocket connection. A connection is in at most one room and
// only remembers that room's id; membership lives in the room service.
type Client struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan models.Message
	done   chan struct{}
	once   sync.Once

	mu     sync.Mutex
	roomID string

	l logger.Logger
}

func newClient(id, userID string, conn *websocket.Conn, l logger.Logger) *Client {
	return &Client{
		id:     id,
		userID: userID,
		conn:   conn,
		send:   make(chan models.Message, sendBufferSize),
		done:   make(chan struct{}),
		l:      l,
	}
}

func (c *Client) ID() string     { return c.id }
func (c *Client) UserID() string { return c.userID }

func (c *Client) RoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

func (c *Client) setRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = roomID
}

// clearRoom forgets roomID if it is still the client's current room.
func (c *Client) clearRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.roomID == roomID {
		c.roomID = ""
	}
}

// Emit queues a message for this connection only.
func (c *Client) Emit(event string, data any) {
	if !c.enqueue(models.Message{Event: event, Data: data}) {
		c.close()
	}
}

// enqueue reports false when the send buffer is full.
func (c *Client) enqueue(msg models.Message) bool {
	select {
	case <-c.done:
		return true
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.l.Debugf(context.Background(), "delivery.ws.Client.writePump: %v", err)
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.l.Debugf(context.Background(), "delivery.ws.Client.writePump: ping: %v", err)
				c.close()
				return
			}
		case <-c.done:
			c.drain()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// drain flushes whatever is already buffered before the close frame.
func (c *Client) drain() {
	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

// readPump decodes frames and hands them to the dispatcher in arrival order.
func (c *Client) readPump(ctx context.Context, d *Dispatcher) {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		d.touch(ctx, c)
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.l.Debugf(ctx, "delivery.ws.Client.readPump: %v", err)
			}
			return
		}

		var in inbound
		if err := json.Unmarshal(raw, &in); err != nil {
			c.Emit(models.EventRoomError, models.RoomError{Message: "malformed message"})
			continue
		}

		d.Dispatch(ctx, c, in)

		select {
		case <-c.done:
			return
		default:
		}
	}
}
