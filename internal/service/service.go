package service

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/vogiaan1904/listenroom/config"
	"github.com/vogiaan1904/listenroom/internal/catalog"
	"github.com/vogiaan1904/listenroom/internal/delivery/kafka/producer"
	"github.com/vogiaan1904/listenroom/internal/models"
	"github.com/vogiaan1904/listenroom/internal/playback"
	repository "github.com/vogiaan1904/listenroom/internal/repository/redis"
	"github.com/vogiaan1904/listenroom/pkg/logger"
)

// Publisher fans messages out to the connections subscribed to a room.
type Publisher interface {
	Subscribe(roomID, userID, connID string)
	// Unsubscribe detaches connID, or every connection of userID when connID
	// is empty, and reports how many connections userID still holds in the room.
	Unsubscribe(roomID, userID, connID string) int
	Broadcast(roomID string, msg models.Message)
	BroadcastExcept(roomID, userID string, msg models.Message)
	Send(connID string, msg models.Message)
	CloseRoom(roomID string, msg models.Message)
}

type Deps struct {
	Rooms        repository.RoomRepository
	Participants repository.ParticipantRepository
	Queue        repository.QueueRepository
	Registry     *Registry
	Publisher    Publisher
	Producer     producer.Producer
	// Catalog is optional; without it queue items carry only the song id.
	Catalog catalog.Store
	Clock   clock.Clock
	Logger  logger.Logger
	Config  config.RoomConfig
	// CodeGenerator overrides the random join code source.
	CodeGenerator func(length int) (string, error)
}

// core holds what every room-scoped service shares.
type core struct {
	rooms        repository.RoomRepository
	participants repository.ParticipantRepository
	queue        repository.QueueRepository
	registry     *Registry
	pub          Publisher
	prod         producer.Producer
	catalog      catalog.Store
	clock        clock.Clock
	l            logger.Logger
	cfg          config.RoomConfig
}

func newCore(d Deps) core {
	c := core{
		rooms:        d.Rooms,
		participants: d.Participants,
		queue:        d.Queue,
		registry:     d.Registry,
		pub:          d.Publisher,
		prod:         d.Producer,
		catalog:      d.Catalog,
		clock:        d.Clock,
		l:            d.Logger,
		cfg:          d.Config,
	}
	if c.clock == nil {
		c.clock = clock.New()
	}
	if c.prod == nil {
		c.prod = producer.NewNopProducer()
	}
	return c
}

func (c *core) activeParticipants(ctx context.Context, roomID string) ([]models.Participant, error) {
	ps, err := c.participants.List(ctx, roomID)
	if err != nil {
		return nil, err
	}

	active := make([]models.Participant, 0, len(ps))
	for _, p := range ps {
		if p.IsActive {
			active = append(active, p)
		}
	}
	return active, nil
}

// member returns the caller's active participant record.
func (c *core) member(ctx context.Context, roomID, userID string) (*models.Participant, error) {
	p, err := c.participants.Get(ctx, roomID, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotMember
		}
		return nil, err
	}
	if !p.IsActive {
		return nil, ErrNotMember
	}
	return p, nil
}

func (c *core) snapshot(ctx context.Context, e *roomEntry, now time.Time) (*models.RoomSnapshot, error) {
	ps, err := c.activeParticipants(ctx, e.id)
	if err != nil {
		return nil, err
	}

	q, err := c.queue.List(ctx, e.id)
	if err != nil {
		return nil, err
	}

	room := e.room
	room.Playback = playback.Rebase(e.state, now).ToModel(now)

	return &models.RoomSnapshot{
		Room:         room,
		Participants: ps,
		Queue:        q,
	}, nil
}

func (c *core) broadcastParticipants(ctx context.Context, roomID string) error {
	ps, err := c.activeParticipants(ctx, roomID)
	if err != nil {
		return err
	}

	c.pub.Broadcast(roomID, models.Message{
		Event: models.EventParticipantsUpdated,
		Data:  models.ParticipantsUpdated{Participants: ps},
	})
	return nil
}

func (c *core) broadcastQueue(ctx context.Context, roomID string) error {
	q, err := c.queue.List(ctx, roomID)
	if err != nil {
		return err
	}

	c.pub.Broadcast(roomID, models.Message{
		Event: models.EventQueueUpdated,
		Data:  models.QueueUpdated{Queue: q},
	})
	return nil
}

// closedIfMissing turns a Directory miss inside the room actor into
// ErrRoomClosed: the room was destroyed underneath the request.
func closedIfMissing(err error) error {
	if isNotFound(err) {
		return ErrRoomClosed
	}
	return err
}

func isNotFound(err error) bool {
	return err != nil && errors.Is(err, repository.ErrNotFound)
}
