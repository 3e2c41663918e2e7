package service

import (
	"context"
	"time"

	"github.com/vogiaan1904/listenroom/internal/models"
	"github.com/vogiaan1904/listenroom/internal/playback"
)

// PlaybackService is the room's playback authority. Every transition is
// host-only, persisted, then broadcast as a playback_sync event.
type PlaybackService interface {
	Play(ctx context.Context, in PlayInput) (*models.SyncEvent, error)
	Pause(ctx context.Context, roomID, userID string) (*models.SyncEvent, error)
	Seek(ctx context.Context, in SeekInput) (*models.SyncEvent, error)
	SongChange(ctx context.Context, in SongChangeInput) (*models.SyncEvent, error)
	// RequestSync sends the current state to connID only.
	RequestSync(ctx context.Context, roomID, userID, connID string) (*models.SyncEvent, error)
	// Reconcile flushes the extrapolated position of a playing room whose
	// persisted copy is older than the persist interval, and broadcasts it.
	Reconcile(ctx context.Context, roomID string) (bool, error)
}

type playbackService struct {
	core
}

func NewPlaybackService(d Deps) PlaybackService {
	return &playbackService{core: newCore(d)}
}

func (s *playbackService) Play(ctx context.Context, in PlayInput) (*models.SyncEvent, error) {
	return s.transition(ctx, in.RoomID, in.UserID, models.SyncPlay, func(st playback.State, now time.Time) (playback.State, error) {
		return playback.Play(st, in.SongID, in.Position, now)
	})
}

func (s *playbackService) Pause(ctx context.Context, roomID, userID string) (*models.SyncEvent, error) {
	return s.transition(ctx, roomID, userID, models.SyncPause, func(st playback.State, now time.Time) (playback.State, error) {
		return playback.Pause(st, now), nil
	})
}

func (s *playbackService) Seek(ctx context.Context, in SeekInput) (*models.SyncEvent, error) {
	return s.transition(ctx, in.RoomID, in.UserID, models.SyncSeek, func(st playback.State, now time.Time) (playback.State, error) {
		return playback.Seek(st, in.Position, now)
	})
}

func (s *playbackService) SongChange(ctx context.Context, in SongChangeInput) (*models.SyncEvent, error) {
	return s.transition(ctx, in.RoomID, in.UserID, models.SyncSongChange, func(st playback.State, now time.Time) (playback.State, error) {
		return playback.SongChange(st, in.SongID, now)
	})
}

func (s *playbackService) transition(
	ctx context.Context,
	roomID, userID string,
	t models.SyncEventType,
	apply func(playback.State, time.Time) (playback.State, error),
) (*models.SyncEvent, error) {
	var ev models.SyncEvent
	err := s.registry.Do(ctx, roomID, func(e *roomEntry) error {
		p, err := s.member(ctx, e.id, userID)
		if err != nil {
			return err
		}
		if !p.IsHost() {
			return ErrNotHost
		}

		now := s.clock.Now().UTC()
		next, err := apply(e.state, now)
		if err != nil {
			return err
		}

		if err := s.commit(ctx, e, next, now); err != nil {
			return err
		}

		ev = playback.Event(t, next, now, userID)
		s.pub.Broadcast(e.id, models.Message{Event: models.EventPlaybackSync, Data: ev})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.l.Debugf(ctx, "Playback %s room_id=%s by=%s song_id=%s", t, roomID, userID, ev.SongID)

	return &ev, nil
}

// commit persists next and only then installs it in the cache.
func (s *playbackService) commit(ctx context.Context, e *roomEntry, next playback.State, now time.Time) error {
	if err := s.rooms.UpdatePlayback(ctx, e.id, next.ToModel(now)); err != nil {
		s.l.Errorf(ctx, "service.playbackService.commit: %v", err)
		return closedIfMissing(err)
	}

	e.state = next
	e.lastPersist = now
	return nil
}

func (s *playbackService) RequestSync(ctx context.Context, roomID, userID, connID string) (*models.SyncEvent, error) {
	var ev models.SyncEvent
	err := s.registry.View(ctx, roomID, func(e *roomEntry) error {
		if _, err := s.member(ctx, e.id, userID); err != nil {
			return err
		}

		ev = playback.CurrentEvent(e.state, s.clock.Now().UTC(), "")
		if connID != "" {
			s.pub.Send(connID, models.Message{Event: models.EventPlaybackSync, Data: ev})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &ev, nil
}

func (s *playbackService) Reconcile(ctx context.Context, roomID string) (bool, error) {
	flushed := false
	err := s.registry.Do(ctx, roomID, func(e *roomEntry) error {
		now := s.clock.Now().UTC()
		if !e.state.Playing || now.Sub(e.lastPersist) < s.cfg.PersistInterval {
			return nil
		}

		next := playback.Rebase(e.state, now)
		if err := s.commit(ctx, e, next, now); err != nil {
			return err
		}

		s.pub.Broadcast(e.id, models.Message{
			Event: models.EventPlaybackSync,
			Data:  playback.Event(models.SyncPlay, next, now, ""),
		})
		flushed = true
		return nil
	})

	return flushed, err
}
