package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/vogiaan1904/listenroom/internal/catalog"
	"github.com/vogiaan1904/listenroom/internal/models"
)

// QueueService mutates a room's queue and broadcasts the full ordered queue
// after every change.
type QueueService interface {
	Add(ctx context.Context, in AddToQueueInput) (*models.QueueItem, error)
	Remove(ctx context.Context, in RemoveFromQueueInput) error
	List(ctx context.Context, roomID string) ([]models.QueueItem, error)
	// RemoveSongEverywhere drops songID from the queue of every cached room.
	RemoveSongEverywhere(ctx context.Context, songID string) (int, error)
}

type queueService struct {
	core
}

func NewQueueService(d Deps) QueueService {
	return &queueService{core: newCore(d)}
}

func (s *queueService) Add(ctx context.Context, in AddToQueueInput) (*models.QueueItem, error) {
	if in.SongID == "" {
		return nil, ErrNoSongSelected
	}

	song, err := s.lookupSong(ctx, in.SongID)
	if err != nil {
		return nil, err
	}

	var item *models.QueueItem
	err = s.registry.Do(ctx, in.RoomID, func(e *roomEntry) error {
		if _, err := s.member(ctx, e.id, in.UserID); err != nil {
			return err
		}

		item = &models.QueueItem{
			ID:      uuid.NewString(),
			RoomID:  e.id,
			SongID:  in.SongID,
			Song:    song,
			AddedBy: in.UserID,
			AddedAt: s.clock.Now().UTC(),
		}

		if in.Top {
			err = s.queue.InsertAtHead(ctx, item)
		} else {
			_, err = s.queue.Append(ctx, item)
		}
		if err != nil {
			s.l.Errorf(ctx, "service.queueService.Add: %v", err)
			return err
		}

		return s.broadcastQueue(ctx, e.id)
	})
	if err != nil {
		return nil, err
	}

	s.l.Debugf(ctx, "Queued room_id=%s song_id=%s position=%d", in.RoomID, in.SongID, item.Position)

	return item, nil
}

func (s *queueService) lookupSong(ctx context.Context, songID string) (*models.Song, error) {
	if s.catalog == nil {
		return nil, nil
	}

	song, err := s.catalog.GetSong(ctx, songID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, ErrSongNotFound
		}
		s.l.Errorf(ctx, "service.queueService.lookupSong: %v", err)
		return nil, err
	}
	return song, nil
}

func (s *queueService) Remove(ctx context.Context, in RemoveFromQueueInput) error {
	return s.registry.Do(ctx, in.RoomID, func(e *roomEntry) error {
		p, err := s.member(ctx, e.id, in.UserID)
		if err != nil {
			return err
		}

		item, err := s.queue.Get(ctx, e.id, in.ItemID)
		if err != nil {
			if isNotFound(err) {
				return ErrQueueItemNotFound
			}
			return err
		}

		if item.AddedBy != in.UserID && !p.IsHost() {
			return ErrNotQueueItemOwner
		}

		removed, err := s.queue.Remove(ctx, e.id, in.ItemID)
		if err != nil {
			s.l.Errorf(ctx, "service.queueService.Remove: %v", err)
			return err
		}
		if !removed {
			return ErrQueueItemNotFound
		}

		return s.broadcastQueue(ctx, e.id)
	})
}

func (s *queueService) List(ctx context.Context, roomID string) ([]models.QueueItem, error) {
	var items []models.QueueItem
	err := s.registry.View(ctx, roomID, func(e *roomEntry) error {
		var err error
		items, err = s.queue.List(ctx, e.id)
		return err
	})
	return items, err
}

func (s *queueService) RemoveSongEverywhere(ctx context.Context, songID string) (int, error) {
	total := 0
	for _, roomID := range s.registry.Entries() {
		err := s.registry.Do(ctx, roomID, func(e *roomEntry) error {
			items, err := s.queue.List(ctx, e.id)
			if err != nil {
				return err
			}

			n := 0
			for _, it := range items {
				if it.SongID != songID {
					continue
				}
				removed, err := s.queue.Remove(ctx, e.id, it.ID)
				if err != nil {
					return err
				}
				if removed {
					n++
				}
			}
			if n == 0 {
				return nil
			}

			total += n
			return s.broadcastQueue(ctx, e.id)
		})
		if err != nil && Kind(err) != KindConcurrency && Kind(err) != KindNotFound {
			s.l.Errorf(ctx, "service.queueService.RemoveSongEverywhere room_id=%s: %v", roomID, err)
		}
	}

	if total > 0 {
		s.l.Infof(ctx, "Removed song from queues song_id=%s items=%d", songID, total)
	}

	return total, nil
}
