package reconciler

import (
	"errors"
	"sync/atomic"

	"github.com/vogiaan1904/listenroom/internal/models"
)

// ErrHostOnly is returned for transport actions a listener cannot request.
var ErrHostOnly = errors.New("only the host can pause or seek")

// Sender writes one control message to the room connection.
type Sender interface {
	Send(event string, data any) error
}

// Controls turns UI transport actions into control messages. Only the host
// commands playback; a listener's play and next become queue requests.
type Controls struct {
	self   string
	sender Sender
	isHost atomic.Bool
}

func NewControls(self string, sender Sender) *Controls {
	return &Controls{self: self, sender: sender}
}

// UpdateRole records whether self currently holds the host role.
func (c *Controls) UpdateRole(participants []models.Participant) {
	for _, p := range participants {
		if p.UserID == c.self {
			c.isHost.Store(p.IsHost())
			return
		}
	}
	c.isHost.Store(false)
}

func (c *Controls) IsHost() bool {
	return c.isHost.Load()
}

type playReq struct {
	SongID   string   `json:"song_id,omitempty"`
	Position *float64 `json:"position,omitempty"`
}

type songReq struct {
	SongID string `json:"song_id"`
}

type seekReq struct {
	Position float64 `json:"position"`
}

// Play asks for songID now. A listener's request jumps the queue instead.
func (c *Controls) Play(songID string, position *float64) error {
	if c.IsHost() {
		return c.sender.Send(models.EventRoomPlay, playReq{SongID: songID, Position: position})
	}
	if songID == "" {
		return ErrHostOnly
	}
	return c.sender.Send(models.EventAddToQueueTop, songReq{SongID: songID})
}

// Next switches to songID for the host, or queues it for a listener.
func (c *Controls) Next(songID string) error {
	if c.IsHost() {
		return c.sender.Send(models.EventRoomSongChange, songReq{SongID: songID})
	}
	return c.sender.Send(models.EventAddToQueue, songReq{SongID: songID})
}

func (c *Controls) Pause() error {
	if !c.IsHost() {
		return ErrHostOnly
	}
	return c.sender.Send(models.EventRoomPause, nil)
}

func (c *Controls) Seek(position float64) error {
	if !c.IsHost() {
		return ErrHostOnly
	}
	return c.sender.Send(models.EventRoomSeek, seekReq{Position: position})
}
