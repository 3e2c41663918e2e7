package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"

	"github.com/vogiaan1904/listenroom/internal/models"
	"github.com/vogiaan1904/listenroom/pkg/logger"
)

type redisRoomRepository struct {
	cli *redis.Client
	l   logger.Logger
}

func NewRedisRoomRepository(cli *redis.Client, l logger.Logger) RoomRepository {
	return &redisRoomRepository{
		cli: cli,
		l:   l,
	}
}

func (r *redisRoomRepository) Create(ctx context.Context, room *models.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}

	// The code index is claimed first so two rooms can never share a code.
	ok, err := r.cli.SetNX(ctx, codeKey(room.Code), room.ID, 0).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisRoomRepository.Create.SetNX: %v", err)
		return err
	}
	if !ok {
		return ErrCodeTaken
	}

	pipe := r.cli.TxPipeline()
	pipe.Set(ctx, roomKey(room.ID), data, 0)
	pipe.SAdd(ctx, allRoomsKey(), room.ID)
	if room.IsPublic {
		pipe.ZAdd(ctx, publicRoomsKey(), redis.Z{
			Score:  float64(room.CreatedAt.UnixMilli()),
			Member: room.ID,
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		r.l.Errorf(ctx, "redisRoomRepository.Create: %v", err)
		r.cli.Del(ctx, codeKey(room.Code))
		return err
	}

	r.l.Debugf(ctx, "Room created room_id=%s code=%s public=%t", room.ID, room.Code, room.IsPublic)

	return nil
}

func (r *redisRoomRepository) Get(ctx context.Context, roomID string) (*models.Room, error) {
	data, err := r.cli.Get(ctx, roomKey(roomID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		r.l.Errorf(ctx, "redisRoomRepository.Get: %v", err)
		return nil, err
	}

	var room models.Room
	if err := json.Unmarshal(data, &room); err != nil {
		r.l.Errorf(ctx, "redisRoomRepository.Get.Unmarshal: %v", err)
		return nil, err
	}

	return &room, nil
}

func (r *redisRoomRepository) GetByCode(ctx context.Context, code string) (*models.Room, error) {
	roomID, err := r.cli.Get(ctx, codeKey(code)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		r.l.Errorf(ctx, "redisRoomRepository.GetByCode: %v", err)
		return nil, err
	}

	return r.Get(ctx, roomID)
}

func (r *redisRoomRepository) UpdatePlayback(ctx context.Context, roomID string, ps models.PlaybackState) error {
	room, err := r.Get(ctx, roomID)
	if err != nil {
		return err
	}

	room.Playback = ps
	room.UpdatedAt = ps.UpdatedAt

	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}

	// XX keeps a concurrent delete from resurrecting the room.
	if err := r.cli.SetArgs(ctx, roomKey(roomID), data, redis.SetArgs{Mode: "XX"}).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		r.l.Errorf(ctx, "redisRoomRepository.UpdatePlayback: %v", err)
		return err
	}

	return nil
}

func (r *redisRoomRepository) ListPublic(ctx context.Context, offset, limit int64) ([]models.Room, int64, error) {
	total, err := r.cli.ZCard(ctx, publicRoomsKey()).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisRoomRepository.ListPublic.ZCard: %v", err)
		return nil, 0, err
	}

	if total == 0 || offset >= total {
		return []models.Room{}, total, nil
	}

	ids, err := r.cli.ZRevRange(ctx, publicRoomsKey(), offset, offset+limit-1).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisRoomRepository.ListPublic.ZRevRange: %v", err)
		return nil, 0, err
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = roomKey(id)
	}

	vals, err := r.cli.MGet(ctx, keys...).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisRoomRepository.ListPublic.MGet: %v", err)
		return nil, 0, err
	}

	rooms := make([]models.Room, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var room models.Room
		if err := json.Unmarshal([]byte(s), &room); err != nil {
			r.l.Warnf(ctx, "redisRoomRepository.ListPublic.Unmarshal: %v", err)
			continue
		}
		rooms = append(rooms, room)
	}

	return rooms, total, nil
}

func (r *redisRoomRepository) ListIDs(ctx context.Context) ([]string, error) {
	ids, err := r.cli.SMembers(ctx, allRoomsKey()).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisRoomRepository.ListIDs: %v", err)
		return nil, err
	}
	slices.Sort(ids)
	return ids, nil
}

func (r *redisRoomRepository) Delete(ctx context.Context, room *models.Room) error {
	pipe := r.cli.TxPipeline()
	pipe.Del(ctx,
		roomKey(room.ID),
		codeKey(room.Code),
		participantsKey(room.ID),
		queueKey(room.ID),
		queueItemsKey(room.ID),
	)
	pipe.ZRem(ctx, publicRoomsKey(), room.ID)
	pipe.SRem(ctx, allRoomsKey(), room.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		r.l.Errorf(ctx, "redisRoomRepository.Delete: %v", err)
		return err
	}

	r.l.Debugf(ctx, "Room deleted room_id=%s", room.ID)

	return nil
}
