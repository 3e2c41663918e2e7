package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogiaan1904/listenroom/internal/catalog"
	"github.com/vogiaan1904/listenroom/internal/models"
	"github.com/vogiaan1904/listenroom/pkg/logger"
)

func queueIDs(items []models.QueueItem) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.SongID
	}
	return ids
}

func TestQueueAddAndTop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room := env.createRoom(t, "h1", 5)
	env.join(t, room.Code, "l1", "")

	_, err := env.queueSvc.Add(ctx, AddToQueueInput{RoomID: room.ID, UserID: "l1", SongID: "a"})
	require.NoError(t, err)
	_, err = env.queueSvc.Add(ctx, AddToQueueInput{RoomID: room.ID, UserID: "h1", SongID: "b"})
	require.NoError(t, err)
	x, err := env.queueSvc.Add(ctx, AddToQueueInput{RoomID: room.ID, UserID: "l1", SongID: "x", Top: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), x.Position)

	items, err := env.queueSvc.List(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "a", "b"}, queueIDs(items))

	updates := env.pub.events(models.EventQueueUpdated)
	require.Len(t, updates, 3)
	full := updates[2].Msg.Data.(models.QueueUpdated)
	assert.Equal(t, []string{"x", "a", "b"}, queueIDs(full.Queue))

	_, err = env.queueSvc.Add(ctx, AddToQueueInput{RoomID: room.ID, UserID: "stranger", SongID: "z"})
	assert.ErrorIs(t, err, ErrNotMember)
	_, err = env.queueSvc.Add(ctx, AddToQueueInput{RoomID: room.ID, UserID: "l1"})
	assert.ErrorIs(t, err, ErrNoSongSelected)
}

func TestQueueRemovePermissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room := env.createRoom(t, "h1", 5)
	env.join(t, room.Code, "l1", "")
	env.join(t, room.Code, "l2", "")

	a, err := env.queueSvc.Add(ctx, AddToQueueInput{RoomID: room.ID, UserID: "l1", SongID: "a"})
	require.NoError(t, err)
	b, err := env.queueSvc.Add(ctx, AddToQueueInput{RoomID: room.ID, UserID: "l1", SongID: "b"})
	require.NoError(t, err)
	c, err := env.queueSvc.Add(ctx, AddToQueueInput{RoomID: room.ID, UserID: "l2", SongID: "c"})
	require.NoError(t, err)

	err = env.queueSvc.Remove(ctx, RemoveFromQueueInput{RoomID: room.ID, UserID: "l2", ItemID: a.ID})
	assert.ErrorIs(t, err, ErrNotQueueItemOwner)
	assert.Equal(t, KindAuthorization, Kind(err))

	require.NoError(t, env.queueSvc.Remove(ctx, RemoveFromQueueInput{RoomID: room.ID, UserID: "l1", ItemID: b.ID}))
	items, err := env.queueSvc.List(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, queueIDs(items))
	assert.Equal(t, int64(2), items[1].Position)

	require.NoError(t, env.queueSvc.Remove(ctx, RemoveFromQueueInput{RoomID: room.ID, UserID: "h1", ItemID: c.ID}))

	err = env.queueSvc.Remove(ctx, RemoveFromQueueInput{RoomID: room.ID, UserID: "h1", ItemID: c.ID})
	assert.ErrorIs(t, err, ErrQueueItemNotFound)
	assert.Equal(t, KindNotFound, Kind(err))
}

func TestQueueCatalogEnrichment(t *testing.T) {
	store, err := catalog.Open(":memory:", logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	require.NoError(t, store.SaveSong(context.Background(), models.Song{ID: "7", Title: "Seven", Artist: "Band", Duration: 200}))

	env := newTestEnv(t, withCatalog(store))
	ctx := context.Background()
	room := env.createRoom(t, "h1", 5)

	item, err := env.queueSvc.Add(ctx, AddToQueueInput{RoomID: room.ID, UserID: "h1", SongID: "7"})
	require.NoError(t, err)
	require.NotNil(t, item.Song)
	assert.Equal(t, "Seven", item.Song.Title)

	items, err := env.queueSvc.List(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Song)
	assert.InDelta(t, 200, items[0].Song.Duration, 1e-9)

	_, err = env.queueSvc.Add(ctx, AddToQueueInput{RoomID: room.ID, UserID: "h1", SongID: "404"})
	assert.ErrorIs(t, err, ErrSongNotFound)
}

func TestRemoveSongEverywhere(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := env.createRoom(t, "h1", 5)
	second := env.createRoom(t, "h2", 5)

	for _, song := range []string{"gone", "keep", "gone"} {
		_, err := env.queueSvc.Add(ctx, AddToQueueInput{RoomID: first.ID, UserID: "h1", SongID: song})
		require.NoError(t, err)
	}
	_, err := env.queueSvc.Add(ctx, AddToQueueInput{RoomID: second.ID, UserID: "h2", SongID: "gone"})
	require.NoError(t, err)

	n, err := env.queueSvc.RemoveSongEverywhere(ctx, "gone")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	items, err := env.queueSvc.List(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, queueIDs(items))
	assert.Equal(t, int64(1), items[0].Position)

	items, err = env.queueSvc.List(ctx, second.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func assertDense(t *testing.T, items []models.QueueItem) bool {
	for i, it := range items {
		if !assert.Equal(t, int64(i+1), it.Position, "item %s", it.SongID) {
			return false
		}
	}
	return true
}

func TestConcurrentRoomOperationsKeepQueueDense(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room := env.createRoom(t, "h1", 5)
	env.join(t, room.Code, "l1", "")

	const rounds = 10
	var wg sync.WaitGroup
	wg.Go(func() {
		for i := range rounds {
			_, err := env.queueSvc.Add(ctx, AddToQueueInput{RoomID: room.ID, UserID: "l1", SongID: fmt.Sprintf("top-%d", i), Top: true})
			assert.NoError(t, err)
		}
	})
	wg.Go(func() {
		for i := range rounds {
			_, err := env.queueSvc.Add(ctx, AddToQueueInput{RoomID: room.ID, UserID: "h1", SongID: fmt.Sprintf("tail-%d", i)})
			assert.NoError(t, err)
		}
	})
	wg.Go(func() {
		for i := range rounds {
			_, err := env.playbackSvc.Play(ctx, PlayInput{RoomID: room.ID, UserID: "h1", SongID: fmt.Sprintf("song-%d", i)})
			assert.NoError(t, err)
		}
	})
	wg.Go(func() {
		for range rounds {
			snap, err := env.roomSvc.GetSnapshot(ctx, room.ID)
			if assert.NoError(t, err) {
				assertDense(t, snap.Queue)
			}
		}
	})
	wg.Wait()

	items, err := env.queueSvc.List(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, items, 2*rounds)
	assertDense(t, items)

	// Top inserts stack in reverse order ahead of every tail append.
	ids := queueIDs(items)
	for i := range rounds {
		assert.Equal(t, fmt.Sprintf("top-%d", rounds-1-i), ids[i])
		assert.Equal(t, fmt.Sprintf("tail-%d", i), ids[rounds+i])
	}

	snap, err := env.roomSvc.GetSnapshot(ctx, room.ID)
	require.NoError(t, err)
	assert.True(t, snap.Room.Playback.IsPlaying)
	assert.Equal(t, fmt.Sprintf("song-%d", rounds-1), snap.Room.Playback.SongID)
}
