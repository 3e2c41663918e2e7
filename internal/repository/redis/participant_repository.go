package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vogiaan1904/listenroom/internal/models"
	"github.com/vogiaan1904/listenroom/pkg/logger"
)

type redisParticipantRepository struct {
	cli *redis.Client
	l   logger.Logger
}

func NewRedisParticipantRepository(cli *redis.Client, l logger.Logger) ParticipantRepository {
	return &redisParticipantRepository{
		cli: cli,
		l:   l,
	}
}

// Save writes every participant in one round trip. All of them must belong
// to the same room.
func (r *redisParticipantRepository) Save(ctx context.Context, ps ...models.Participant) error {
	if len(ps) == 0 {
		return nil
	}

	fields := make([]any, 0, len(ps)*2)
	for _, p := range ps {
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		fields = append(fields, p.UserID, data)
	}

	if err := r.cli.HSet(ctx, participantsKey(ps[0].RoomID), fields...).Err(); err != nil {
		r.l.Errorf(ctx, "redisParticipantRepository.Save: %v", err)
		return err
	}

	return nil
}

func (r *redisParticipantRepository) Get(ctx context.Context, roomID, userID string) (*models.Participant, error) {
	data, err := r.cli.HGet(ctx, participantsKey(roomID), userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		r.l.Errorf(ctx, "redisParticipantRepository.Get: %v", err)
		return nil, err
	}

	var p models.Participant
	if err := json.Unmarshal(data, &p); err != nil {
		r.l.Errorf(ctx, "redisParticipantRepository.Get.Unmarshal: %v", err)
		return nil, err
	}

	return &p, nil
}

// List returns active and inactive participants ordered by join time.
func (r *redisParticipantRepository) List(ctx context.Context, roomID string) ([]models.Participant, error) {
	all, err := r.cli.HGetAll(ctx, participantsKey(roomID)).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisParticipantRepository.List: %v", err)
		return nil, err
	}

	ps := make([]models.Participant, 0, len(all))
	for userID, data := range all {
		var p models.Participant
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			r.l.Warnf(ctx, "redisParticipantRepository.List.Unmarshal user_id=%s: %v", userID, err)
			continue
		}
		ps = append(ps, p)
	}

	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].JoinedAt.Equal(ps[j].JoinedAt) {
			return ps[i].UserID < ps[j].UserID
		}
		return ps[i].JoinedAt.Before(ps[j].JoinedAt)
	})

	return ps, nil
}

func (r *redisParticipantRepository) Touch(ctx context.Context, roomID, userID string, at time.Time) error {
	p, err := r.Get(ctx, roomID, userID)
	if err != nil {
		return err
	}

	p.LastSeenAt = at
	return r.Save(ctx, *p)
}
