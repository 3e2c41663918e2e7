package ws

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/vogiaan1904/listenroom/internal/models"
	"github.com/vogiaan1904/listenroom/internal/service"
	"github.com/vogiaan1904/listenroom/pkg/logger"
)

type handlerFunc func(ctx context.Context, c *Client, data json.RawMessage) error

// Dispatcher routes inbound control messages to the room services.
type Dispatcher struct {
	roomSvc     service.RoomService
	playbackSvc service.PlaybackService
	queueSvc    service.QueueService
	l           logger.Logger

	handlers map[string]handlerFunc
}

func NewDispatcher(roomSvc service.RoomService, playbackSvc service.PlaybackService, queueSvc service.QueueService, l logger.Logger) *Dispatcher {
	d := &Dispatcher{
		roomSvc:     roomSvc,
		playbackSvc: playbackSvc,
		queueSvc:    queueSvc,
		l:           l,
	}

	d.handlers = map[string]handlerFunc{
		models.EventJoinRoom:        d.joinRoom,
		models.EventLeaveRoom:       d.leaveRoom,
		models.EventRoomPlay:        d.play,
		models.EventRoomPause:       d.pause,
		models.EventRoomSeek:        d.seek,
		models.EventRoomSongChange:  d.songChange,
		models.EventAddToQueue:      d.addToQueue(false),
		models.EventAddToQueueTop:   d.addToQueue(true),
		models.EventRemoveFromQueue: d.removeFromQueue,
		models.EventRoomChat:        d.chat,
		models.EventRequestSync:     d.requestSync,
		models.EventPing:            d.ping,
	}

	return d
}

// Dispatch runs one inbound message. Failures are answered with a room_error
// sent to the originating connection only.
func (d *Dispatcher) Dispatch(ctx context.Context, c *Client, in inbound) {
	h, ok := d.handlers[in.Event]
	if !ok {
		c.Emit(models.EventRoomError, models.RoomError{Message: "unknown event: " + in.Event})
		return
	}

	if in.Event != models.EventJoinRoom && in.Event != models.EventLeaveRoom {
		d.touch(ctx, c)
	}

	if err := h(ctx, c, in.Data); err != nil {
		if service.Kind(err) == service.KindInternal {
			d.l.Errorf(ctx, "delivery.ws.Dispatcher.Dispatch: event=%s user_id=%s: %v", in.Event, c.userID, err)
		}
		c.Emit(models.EventRoomError, models.RoomError{Message: service.PublicMessage(err)})
	}
}

// Disconnect is called once the connection is gone.
func (d *Dispatcher) Disconnect(ctx context.Context, c *Client) {
	roomID := c.RoomID()
	if roomID == "" {
		return
	}
	c.setRoom("")

	err := d.roomSvc.Leave(ctx, service.LeaveInput{RoomID: roomID, UserID: c.userID, ConnID: c.id})
	if err != nil && service.Kind(err) == service.KindInternal {
		d.l.Errorf(ctx, "delivery.ws.Dispatcher.Disconnect: %v", err)
	}
}

func (d *Dispatcher) touch(ctx context.Context, c *Client) {
	roomID := c.RoomID()
	if roomID == "" {
		return
	}
	if err := d.roomSvc.Touch(ctx, roomID, c.userID); err != nil {
		d.l.Debugf(ctx, "delivery.ws.Dispatcher.touch: %v", err)
	}
}

func (d *Dispatcher) joinRoom(ctx context.Context, c *Client, data json.RawMessage) error {
	var p JoinRoomPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if strings.TrimSpace(p.Code) == "" {
		return service.ErrRoomNotFound
	}

	if current := c.RoomID(); current != "" {
		if err := d.roomSvc.Leave(ctx, service.LeaveInput{RoomID: current, UserID: c.userID, ConnID: c.id}); err != nil && service.Kind(err) == service.KindInternal {
			return err
		}
		c.setRoom("")
	}

	snap, err := d.roomSvc.Join(ctx, service.JoinInput{Code: p.Code, UserID: c.userID, ConnID: c.id})
	if err != nil {
		return err
	}
	c.setRoom(snap.Room.ID)
	return nil
}

func (d *Dispatcher) leaveRoom(ctx context.Context, c *Client, _ json.RawMessage) error {
	roomID, err := currentRoom(c)
	if err != nil {
		return err
	}
	c.setRoom("")
	return d.roomSvc.Leave(ctx, service.LeaveInput{RoomID: roomID, UserID: c.userID, ConnID: c.id})
}

func (d *Dispatcher) play(ctx context.Context, c *Client, data json.RawMessage) error {
	roomID, err := currentRoom(c)
	if err != nil {
		return err
	}
	var p PlayPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	_, err = d.playbackSvc.Play(ctx, service.PlayInput{RoomID: roomID, UserID: c.userID, SongID: p.SongID, Position: p.Position})
	return err
}

func (d *Dispatcher) pause(ctx context.Context, c *Client, _ json.RawMessage) error {
	roomID, err := currentRoom(c)
	if err != nil {
		return err
	}
	_, err = d.playbackSvc.Pause(ctx, roomID, c.userID)
	return err
}

func (d *Dispatcher) seek(ctx context.Context, c *Client, data json.RawMessage) error {
	roomID, err := currentRoom(c)
	if err != nil {
		return err
	}
	var p SeekPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if p.Position == nil {
		return service.ErrInvalidPosition
	}
	_, err = d.playbackSvc.Seek(ctx, service.SeekInput{RoomID: roomID, UserID: c.userID, Position: *p.Position})
	return err
}

func (d *Dispatcher) songChange(ctx context.Context, c *Client, data json.RawMessage) error {
	roomID, err := currentRoom(c)
	if err != nil {
		return err
	}
	var p SongChangePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	_, err = d.playbackSvc.SongChange(ctx, service.SongChangeInput{RoomID: roomID, UserID: c.userID, SongID: p.SongID})
	return err
}

func (d *Dispatcher) addToQueue(top bool) handlerFunc {
	return func(ctx context.Context, c *Client, data json.RawMessage) error {
		roomID, err := currentRoom(c)
		if err != nil {
			return err
		}
		var p AddToQueuePayload
		if err := decode(data, &p); err != nil {
			return err
		}
		_, err = d.queueSvc.Add(ctx, service.AddToQueueInput{RoomID: roomID, UserID: c.userID, SongID: p.SongID, Top: top})
		return err
	}
}

func (d *Dispatcher) removeFromQueue(ctx context.Context, c *Client, data json.RawMessage) error {
	roomID, err := currentRoom(c)
	if err != nil {
		return err
	}
	var p RemoveFromQueuePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if p.QueueItemID == "" {
		return service.ErrQueueItemNotFound
	}
	return d.queueSvc.Remove(ctx, service.RemoveFromQueueInput{RoomID: roomID, UserID: c.userID, ItemID: p.QueueItemID})
}

func (d *Dispatcher) chat(ctx context.Context, c *Client, data json.RawMessage) error {
	roomID, err := currentRoom(c)
	if err != nil {
		return err
	}
	var p ChatPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	_, err = d.roomSvc.Chat(ctx, service.ChatInput{RoomID: roomID, UserID: c.userID, Text: p.Text})
	return err
}

func (d *Dispatcher) requestSync(ctx context.Context, c *Client, _ json.RawMessage) error {
	roomID, err := currentRoom(c)
	if err != nil {
		return err
	}
	_, err = d.playbackSvc.RequestSync(ctx, roomID, c.userID, c.id)
	return err
}

func (d *Dispatcher) ping(_ context.Context, c *Client, _ json.RawMessage) error {
	c.Emit(models.EventPong, nil)
	return nil
}

func currentRoom(c *Client) (string, error) {
	roomID := c.RoomID()
	if roomID == "" {
		return "", service.ErrNotMember
	}
	return roomID, nil
}

// decode treats a missing or null payload as an empty object.
func decode(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return service.ErrMalformedPayload
	}
	return nil
}
