// Package reconciler applies room SyncEvents to a local player.
//
// Events the client originated itself are re-applied, except seeks, which
// the client already performed locally. A play or song_change naming a song
// that is not in the locally known queue triggers an asynchronous catalog
// fetch; events keep flowing while it runs and are folded into the pending
// state, so a slow lookup never holds up the event path.
package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/singleflight"

	"github.com/vogiaan1904/listenroom/internal/models"
	"github.com/vogiaan1904/listenroom/internal/playback"
	"github.com/vogiaan1904/listenroom/pkg/logger"
)

// Player is the local audio output.
type Player interface {
	// Load switches to song and starts at position, paused unless playing.
	Load(song models.Song, position float64, playing bool)
	Play(position float64)
	Pause()
	Seek(position float64)
}

type Catalog interface {
	GetSong(ctx context.Context, id string) (*models.Song, error)
}

const fetchTimeout = 10 * time.Second

type Reconciler struct {
	self    string
	player  Player
	catalog Catalog
	clock   clock.Clock
	l       logger.Logger

	mu      sync.Mutex
	songs   map[string]models.Song
	current string
	// generation grows on every song switch; a fetch that finishes under an
	// older generation is discarded.
	generation uint64
	pending    *playback.State

	group singleflight.Group
	wg    sync.WaitGroup
}

func New(self string, player Player, catalog Catalog, clk clock.Clock, l logger.Logger) *Reconciler {
	if clk == nil {
		clk = clock.New()
	}
	return &Reconciler{
		self:    self,
		player:  player,
		catalog: catalog,
		clock:   clk,
		l:       l,
		songs:   make(map[string]models.Song),
	}
}

// SetQueue replaces the locally known queue.
func (r *Reconciler) SetQueue(items []models.QueueItem) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.songs = make(map[string]models.Song, len(items))
	for _, it := range items {
		if it.Song != nil {
			r.songs[it.SongID] = *it.Song
		}
	}
}

// ApplySnapshot seeds the queue and playback from a room_joined snapshot.
func (r *Reconciler) ApplySnapshot(snap models.RoomSnapshot) {
	r.SetQueue(snap.Queue)

	ps := snap.Room.Playback
	if ps.SongID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.switchTo(ps.SongID, max(ps.CurrentPosition, 0), ps.IsPlaying, r.clock.Now())
}

// CurrentSong is the song the player was last switched to.
func (r *Reconciler) CurrentSong() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Pending reports the song being fetched, if any.
func (r *Reconciler) Pending() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil {
		return "", false
	}
	return r.pending.SongID, true
}

func (r *Reconciler) Handle(ev models.SyncEvent) {
	if ev.Type == models.SyncSeek && ev.Originator != "" && ev.Originator == r.self {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()

	switch ev.Type {
	case models.SyncPause:
		if r.pending != nil {
			r.pending.Position = r.positionOr(ev, playback.Extrapolate(*r.pending, now))
			r.pending.Playing = false
			return
		}
		r.player.Pause()

	case models.SyncSeek:
		if ev.Position == nil {
			return
		}
		if r.pending != nil {
			r.pending.Position = *ev.Position
			r.pending.StartedAt = now
			return
		}
		r.player.Seek(*ev.Position)

	case models.SyncPlay, models.SyncSongChange:
		pos := r.positionOr(ev, 0)
		if ev.SongID == "" {
			r.player.Play(pos)
			return
		}
		r.switchTo(ev.SongID, pos, true, now)
	}
}

// switchTo moves the player to songID, fetching the song when it is not in
// the local queue. Callers hold r.mu.
func (r *Reconciler) switchTo(songID string, pos float64, playing bool, now time.Time) {
	if songID == r.current {
		if r.pending != nil {
			r.generation++
			r.pending = nil
		}
		if playing {
			r.player.Play(pos)
		} else {
			r.player.Seek(pos)
			r.player.Pause()
		}
		return
	}
	if r.pending != nil && r.pending.SongID == songID {
		r.pending.Position = pos
		r.pending.Playing = playing
		r.pending.StartedAt = now
		return
	}

	r.generation++
	if song, ok := r.songs[songID]; ok {
		r.pending = nil
		r.current = songID
		r.player.Load(song, pos, playing)
		return
	}

	r.pending = &playback.State{SongID: songID, Position: pos, Playing: playing, StartedAt: now}
	r.fetch(songID, r.generation)
}

// Wait blocks until in-flight catalog fetches have been applied or dropped.
func (r *Reconciler) Wait() {
	r.wg.Wait()
}

func (r *Reconciler) fetch(songID string, gen uint64) {
	r.wg.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		v, err, _ := r.group.Do(songID, func() (any, error) {
			return r.catalog.GetSong(ctx, songID)
		})

		r.mu.Lock()
		defer r.mu.Unlock()

		if gen != r.generation || r.pending == nil {
			return
		}
		if err != nil {
			r.l.Warnf(ctx, "reconciler.Reconciler.fetch: song_id=%s: %v", songID, err)
			r.pending = nil
			return
		}

		song := v.(*models.Song)
		state := *r.pending
		r.pending = nil
		r.songs[songID] = *song
		r.current = songID
		r.player.Load(*song, playback.Extrapolate(state, r.clock.Now()), state.Playing)
	})
}

func (r *Reconciler) positionOr(ev models.SyncEvent, fallback float64) float64 {
	if ev.Position != nil {
		return max(*ev.Position, 0)
	}
	return fallback
}
