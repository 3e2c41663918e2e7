package service

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vogiaan1904/listenroom/internal/models"
	"github.com/vogiaan1904/listenroom/internal/playback"
	repository "github.com/vogiaan1904/listenroom/internal/repository/redis"
)

// roomEntry is the in-memory cache of one room. Its playback state is the
// source of truth for "now"; the Directory only mirrors it.
type roomEntry struct {
	mu sync.RWMutex

	id     string
	loaded atomic.Bool
	closed bool
	// detached entries were unregistered after a failed load; holders retry
	// on the fresh entry.
	detached    bool
	room        models.Room
	state       playback.State
	lastPersist time.Time
}

// Registry owns every room entry and runs all mutations of one room strictly
// one at a time. Different rooms proceed in parallel.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*roomEntry
	repo  repository.RoomRepository
}

func NewRegistry(repo repository.RoomRepository) *Registry {
	return &Registry{
		rooms: make(map[string]*roomEntry),
		repo:  repo,
	}
}

func (r *Registry) entry(roomID string) *roomEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.rooms[roomID]
	if !ok {
		e = &roomEntry{id: roomID}
		r.rooms[roomID] = e
	}
	return e
}

// put registers a freshly created room so sweeps see it immediately.
func (r *Registry) put(room models.Room, now time.Time) {
	e := r.entry(room.ID)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.room = room
	e.state = playback.FromModel(room.Playback)
	e.lastPersist = now
	e.loaded.Store(true)
}

// drop discards e. Callers must hold e.mu.
func (r *Registry) drop(e *roomEntry) {
	e.closed = true

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[e.id] == e {
		delete(r.rooms, e.id)
	}
}

// detach unregisters e without closing the room. Callers must hold e.mu.
func (r *Registry) detach(e *roomEntry) {
	e.detached = true

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[e.id] == e {
		delete(r.rooms, e.id)
	}
}

// lock returns the registered entry for roomID with its write lock held.
func (r *Registry) lock(roomID string) *roomEntry {
	for {
		e := r.entry(roomID)
		e.mu.Lock()
		if !e.detached {
			return e
		}
		e.mu.Unlock()
	}
}

// load fills e from the Directory. Callers must hold e.mu for writing.
func (r *Registry) load(ctx context.Context, e *roomEntry) error {
	if e.closed {
		return ErrRoomClosed
	}
	if e.loaded.Load() {
		return nil
	}

	room, err := r.repo.Get(ctx, e.id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.drop(e)
			return ErrRoomNotFound
		}
		r.detach(e)
		return err
	}

	e.room = *room
	e.state = playback.FromModel(room.Playback)
	e.lastPersist = room.Playback.UpdatedAt
	e.loaded.Store(true)
	return nil
}

// Do runs fn as the room's sequential actor.
func (r *Registry) Do(ctx context.Context, roomID string, fn func(e *roomEntry) error) error {
	e := r.lock(roomID)
	defer e.mu.Unlock()

	if err := r.load(ctx, e); err != nil {
		return err
	}

	return fn(e)
}

// View runs fn against a consistent read-only view of the room. It may run
// alongside other views but never alongside Do.
func (r *Registry) View(ctx context.Context, roomID string, fn func(e *roomEntry) error) error {
	e := r.entry(roomID)

	e.mu.RLock()
	if e.detached || (!e.loaded.Load() && !e.closed) {
		e.mu.RUnlock()

		e = r.lock(roomID)
		err := r.load(ctx, e)
		e.mu.Unlock()
		if err != nil {
			return err
		}

		e.mu.RLock()
	}
	defer e.mu.RUnlock()

	if e.closed {
		return ErrRoomClosed
	}

	return fn(e)
}

// Entries lists the ids of rooms with a loaded cache entry.
func (r *Registry) Entries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.rooms))
	for id, e := range r.rooms {
		if e.loaded.Load() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Rooms lists every room the sweep visits: loaded entries plus every room in
// the Directory, so rooms left behind by an earlier process get hydrated.
// On a Directory error it still returns the loaded entries.
func (r *Registry) Rooms(ctx context.Context) ([]string, error) {
	ids := r.Entries()

	stored, err := r.repo.ListIDs(ctx)
	if err != nil {
		return ids, err
	}

	ids = append(ids, stored...)
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

func (r *Registry) Len() int {
	return len(r.Entries())
}
