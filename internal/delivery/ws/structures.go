package ws

import (
	"encoding/json"
	"time"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	sendBufferSize = 256
)

// inbound is a frame received from a client. Data is decoded per event.
type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type JoinRoomPayload struct {
	Code string `json:"code"`
}

type PlayPayload struct {
	SongID   string   `json:"song_id,omitempty"`
	Position *float64 `json:"position,omitempty"`
}

type SeekPayload struct {
	Position *float64 `json:"position"`
}

type SongChangePayload struct {
	SongID string `json:"song_id"`
}

type AddToQueuePayload struct {
	SongID string `json:"song_id"`
}

type RemoveFromQueuePayload struct {
	QueueItemID string `json:"queue_item_id"`
}

type ChatPayload struct {
	Text string `json:"text"`
}
