package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vogiaan1904/listenroom/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrCodeTaken = errors.New("room code already taken")
)

type RoomRepository interface {
	Create(ctx context.Context, room *models.Room) error
	Get(ctx context.Context, roomID string) (*models.Room, error)
	GetByCode(ctx context.Context, code string) (*models.Room, error)
	UpdatePlayback(ctx context.Context, roomID string, ps models.PlaybackState) error
	ListPublic(ctx context.Context, offset, limit int64) ([]models.Room, int64, error)
	// ListIDs returns every stored room, public or not.
	ListIDs(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, room *models.Room) error
}

type ParticipantRepository interface {
	Save(ctx context.Context, ps ...models.Participant) error
	Get(ctx context.Context, roomID, userID string) (*models.Participant, error)
	List(ctx context.Context, roomID string) ([]models.Participant, error)
	Touch(ctx context.Context, roomID, userID string, at time.Time) error
}

type QueueRepository interface {
	Append(ctx context.Context, item *models.QueueItem) (int64, error)
	InsertAtHead(ctx context.Context, item *models.QueueItem) error
	Remove(ctx context.Context, roomID, itemID string) (bool, error)
	Get(ctx context.Context, roomID, itemID string) (*models.QueueItem, error)
	List(ctx context.Context, roomID string) ([]models.QueueItem, error)
}

const keyPrefix = "listenroom"

func roomKey(roomID string) string {
	return fmt.Sprintf("%s:room:%s", keyPrefix, roomID)
}

func codeKey(code string) string {
	return fmt.Sprintf("%s:code:%s", keyPrefix, code)
}

func publicRoomsKey() string {
	return fmt.Sprintf("%s:rooms:public", keyPrefix)
}

func allRoomsKey() string {
	return fmt.Sprintf("%s:rooms:all", keyPrefix)
}

func participantsKey(roomID string) string {
	return fmt.Sprintf("%s:room:%s:participants", keyPrefix, roomID)
}

func queueKey(roomID string) string {
	return fmt.Sprintf("%s:room:%s:queue", keyPrefix, roomID)
}

func queueItemsKey(roomID string) string {
	return fmt.Sprintf("%s:room:%s:queue:items", keyPrefix, roomID)
}
