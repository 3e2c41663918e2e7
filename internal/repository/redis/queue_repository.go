package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vogiaan1904/listenroom/internal/models"
	"github.com/vogiaan1904/listenroom/pkg/logger"
)

// Positions live as sorted-set scores; item payloads live in a hash keyed by
// item ID. Every script keeps scores exactly {1..n}.
var (
	appendScript = redis.NewScript(`
		local last = redis.call('ZREVRANGE', KEYS[1], 0, 0, 'WITHSCORES')
		local pos = 1
		if #last > 0 then
			pos = tonumber(last[2]) + 1
		end

		redis.call('ZADD', KEYS[1], pos, ARGV[1])
		redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])

		return pos
	`)

	insertAtHeadScript = redis.NewScript(`
		local members = redis.call('ZRANGE', KEYS[1], 0, -1)
		for i = 1, #members do
			redis.call('ZINCRBY', KEYS[1], 1, members[i])
		end

		redis.call('ZADD', KEYS[1], 1, ARGV[1])
		redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])

		return 1
	`)

	removeScript = redis.NewScript(`
		local score = redis.call('ZSCORE', KEYS[1], ARGV[1])
		if not score then
			return 0
		end

		redis.call('ZREM', KEYS[1], ARGV[1])
		redis.call('HDEL', KEYS[2], ARGV[1])

		local after = redis.call('ZRANGEBYSCORE', KEYS[1], '(' .. score, '+inf')
		for i = 1, #after do
			redis.call('ZINCRBY', KEYS[1], -1, after[i])
		end

		return 1
	`)
)

type redisQueueRepository struct {
	cli *redis.Client
	l   logger.Logger
}

func NewRedisQueueRepository(cli *redis.Client, l logger.Logger) QueueRepository {
	return &redisQueueRepository{
		cli: cli,
		l:   l,
	}
}

func (r *redisQueueRepository) Append(ctx context.Context, item *models.QueueItem) (int64, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal queue item: %w", err)
	}

	pos, err := appendScript.Run(ctx, r.cli,
		[]string{queueKey(item.RoomID), queueItemsKey(item.RoomID)},
		item.ID, data,
	).Int64()
	if err != nil {
		r.l.Errorf(ctx, "redisQueueRepository.Append: %v", err)
		return 0, err
	}

	item.Position = pos

	r.l.Debugf(ctx, "Appended to queue room_id=%s item_id=%s position=%d", item.RoomID, item.ID, pos)

	return pos, nil
}

func (r *redisQueueRepository) InsertAtHead(ctx context.Context, item *models.QueueItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal queue item: %w", err)
	}

	if err := insertAtHeadScript.Run(ctx, r.cli,
		[]string{queueKey(item.RoomID), queueItemsKey(item.RoomID)},
		item.ID, data,
	).Err(); err != nil {
		r.l.Errorf(ctx, "redisQueueRepository.InsertAtHead: %v", err)
		return err
	}

	item.Position = 1

	r.l.Debugf(ctx, "Inserted at queue head room_id=%s item_id=%s", item.RoomID, item.ID)

	return nil
}

// Remove deletes the item and shifts every later item down by one. It
// reports false when the item was not queued.
func (r *redisQueueRepository) Remove(ctx context.Context, roomID, itemID string) (bool, error) {
	removed, err := removeScript.Run(ctx, r.cli,
		[]string{queueKey(roomID), queueItemsKey(roomID)},
		itemID,
	).Int64()
	if err != nil {
		r.l.Errorf(ctx, "redisQueueRepository.Remove: %v", err)
		return false, err
	}

	if removed > 0 {
		r.l.Debugf(ctx, "Removed from queue room_id=%s item_id=%s", roomID, itemID)
	}

	return removed > 0, nil
}

func (r *redisQueueRepository) Get(ctx context.Context, roomID, itemID string) (*models.QueueItem, error) {
	pipe := r.cli.Pipeline()
	scoreCmd := pipe.ZScore(ctx, queueKey(roomID), itemID)
	dataCmd := pipe.HGet(ctx, queueItemsKey(roomID), itemID)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		r.l.Errorf(ctx, "redisQueueRepository.Get: %v", err)
		return nil, err
	}

	score, err := scoreCmd.Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	data, err := dataCmd.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var item models.QueueItem
	if err := json.Unmarshal(data, &item); err != nil {
		r.l.Errorf(ctx, "redisQueueRepository.Get.Unmarshal: %v", err)
		return nil, err
	}
	item.Position = int64(score)

	return &item, nil
}

// List returns the queue ordered by position.
func (r *redisQueueRepository) List(ctx context.Context, roomID string) ([]models.QueueItem, error) {
	zs, err := r.cli.ZRangeWithScores(ctx, queueKey(roomID), 0, -1).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisQueueRepository.List.ZRange: %v", err)
		return nil, err
	}

	if len(zs) == 0 {
		return []models.QueueItem{}, nil
	}

	ids := make([]string, len(zs))
	for i, z := range zs {
		ids[i] = z.Member.(string)
	}

	vals, err := r.cli.HMGet(ctx, queueItemsKey(roomID), ids...).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisQueueRepository.List.HMGet: %v", err)
		return nil, err
	}

	items := make([]models.QueueItem, 0, len(zs))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			r.l.Warnf(ctx, "redisQueueRepository.List: missing payload room_id=%s item_id=%s", roomID, ids[i])
			continue
		}

		var item models.QueueItem
		if err := json.Unmarshal([]byte(s), &item); err != nil {
			r.l.Warnf(ctx, "redisQueueRepository.List.Unmarshal: %v", err)
			continue
		}
		item.Position = int64(zs[i].Score)
		items = append(items, item)
	}

	return items, nil
}
