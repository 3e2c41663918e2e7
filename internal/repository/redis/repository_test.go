package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogiaan1904/listenroom/internal/models"
	"github.com/vogiaan1904/listenroom/pkg/logger"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = cli.Close()
	})

	return cli
}

func newItem(roomID, id string) *models.QueueItem {
	return &models.QueueItem{
		ID:      id,
		RoomID:  roomID,
		SongID:  "song-" + id,
		AddedBy: "u1",
		AddedAt: time.Unix(1700000000, 0).UTC(),
	}
}

func queueIDs(t *testing.T, repo QueueRepository, roomID string) []string {
	t.Helper()

	items, err := repo.List(context.Background(), roomID)
	require.NoError(t, err)

	ids := make([]string, len(items))
	for i, it := range items {
		require.Equal(t, int64(i+1), it.Position, "positions must be dense starting at 1")
		ids[i] = it.ID
	}
	return ids
}

func TestQueueAppend(t *testing.T) {
	ctx := context.Background()
	repo := NewRedisQueueRepository(newTestClient(t), logger.NewNop())

	for i, id := range []string{"A", "B", "C"} {
		pos, err := repo.Append(ctx, newItem("r1", id))
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), pos)
	}

	assert.Equal(t, []string{"A", "B", "C"}, queueIDs(t, repo, "r1"))
	assert.Empty(t, queueIDs(t, repo, "other-room"))
}

func TestQueueInsertAtHead(t *testing.T) {
	ctx := context.Background()
	repo := NewRedisQueueRepository(newTestClient(t), logger.NewNop())

	_, err := repo.Append(ctx, newItem("r1", "A"))
	require.NoError(t, err)
	_, err = repo.Append(ctx, newItem("r1", "B"))
	require.NoError(t, err)

	x := newItem("r1", "X")
	require.NoError(t, repo.InsertAtHead(ctx, x))
	assert.Equal(t, int64(1), x.Position)

	assert.Equal(t, []string{"X", "A", "B"}, queueIDs(t, repo, "r1"))

	got, err := repo.Get(ctx, "r1", "A")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Position)
	assert.Equal(t, "song-A", got.SongID)
}

func TestQueueInsertAtHeadEmpty(t *testing.T) {
	ctx := context.Background()
	repo := NewRedisQueueRepository(newTestClient(t), logger.NewNop())

	require.NoError(t, repo.InsertAtHead(ctx, newItem("r1", "X")))
	pos, err := repo.Append(ctx, newItem("r1", "Y"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), pos)
}

func TestQueueRemoveRepacks(t *testing.T) {
	ctx := context.Background()
	repo := NewRedisQueueRepository(newTestClient(t), logger.NewNop())

	for _, id := range []string{"A", "B", "C"} {
		_, err := repo.Append(ctx, newItem("r1", id))
		require.NoError(t, err)
	}

	removed, err := repo.Remove(ctx, "r1", "B")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, []string{"A", "C"}, queueIDs(t, repo, "r1"))

	removed, err = repo.Remove(ctx, "r1", "B")
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = repo.Get(ctx, "r1", "B")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueueDensityUnderMixedOperations(t *testing.T) {
	ctx := context.Background()
	repo := NewRedisQueueRepository(newTestClient(t), logger.NewNop())

	var live []string
	for i := 0; i < 30; i++ {
		id := fmt.Sprintf("i%02d", i)
		switch i % 3 {
		case 0:
			_, err := repo.Append(ctx, newItem("r1", id))
			require.NoError(t, err)
			live = append(live, id)
		case 1:
			require.NoError(t, repo.InsertAtHead(ctx, newItem("r1", id)))
			live = append([]string{id}, live...)
		case 2:
			victim := live[len(live)/2]
			removed, err := repo.Remove(ctx, "r1", victim)
			require.NoError(t, err)
			require.True(t, removed)
			live = append(live[:len(live)/2], live[len(live)/2+1:]...)
		}

		require.Equal(t, live, queueIDs(t, repo, "r1"))
	}
}

func TestRoomRepository(t *testing.T) {
	ctx := context.Background()
	cli := newTestClient(t)
	rooms := NewRedisRoomRepository(cli, logger.NewNop())
	queue := NewRedisQueueRepository(cli, logger.NewNop())
	parts := NewRedisParticipantRepository(cli, logger.NewNop())

	created := time.Unix(1700000000, 0).UTC()
	room := &models.Room{ID: "r1", Name: "Lounge", Code: "AB12CD", CreatedBy: "h1", IsPublic: true, Capacity: 5, CreatedAt: created}
	require.NoError(t, rooms.Create(ctx, room))

	dup := &models.Room{ID: "r2", Name: "Dup", Code: "AB12CD", CreatedBy: "h2"}
	assert.ErrorIs(t, rooms.Create(ctx, dup), ErrCodeTaken)

	got, err := rooms.GetByCode(ctx, "AB12CD")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID)
	assert.Equal(t, "Lounge", got.Name)

	started := created.Add(time.Minute)
	require.NoError(t, rooms.UpdatePlayback(ctx, "r1", models.PlaybackState{
		SongID: "7", CurrentPosition: 3, IsPlaying: true, PlayStartedAt: &started, UpdatedAt: started,
	}))
	got, err = rooms.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "7", got.Playback.SongID)
	require.NotNil(t, got.Playback.PlayStartedAt)
	assert.True(t, got.Playback.PlayStartedAt.Equal(started))

	list, total, err := rooms.ListPublic(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)

	_, err = queue.Append(ctx, newItem("r1", "A"))
	require.NoError(t, err)
	require.NoError(t, parts.Save(ctx, models.Participant{RoomID: "r1", UserID: "h1", Role: models.RoleHost, IsActive: true}))

	require.NoError(t, rooms.Delete(ctx, got))

	_, err = rooms.Get(ctx, "r1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = rooms.GetByCode(ctx, "AB12CD")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, queueIDs(t, queue, "r1"))
	ps, err := parts.List(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, ps)

	assert.ErrorIs(t, rooms.UpdatePlayback(ctx, "r1", models.PlaybackState{}), ErrNotFound)

	_, total, err = rooms.ListPublic(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestListIDsIncludesPrivateRooms(t *testing.T) {
	ctx := context.Background()
	rooms := NewRedisRoomRepository(newTestClient(t), logger.NewNop())

	public := &models.Room{ID: "r1", Code: "AB12CD", IsPublic: true}
	private := &models.Room{ID: "r2", Code: "EF34GH"}
	require.NoError(t, rooms.Create(ctx, public))
	require.NoError(t, rooms.Create(ctx, private))

	ids, err := rooms.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, ids)

	require.NoError(t, rooms.Delete(ctx, public))
	ids, err = rooms.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"r2"}, ids)
}

func TestListPublicPagination(t *testing.T) {
	ctx := context.Background()
	rooms := NewRedisRoomRepository(newTestClient(t), logger.NewNop())

	base := time.Unix(1700000000, 0).UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, rooms.Create(ctx, &models.Room{
			ID:        fmt.Sprintf("r%d", i),
			Code:      fmt.Sprintf("CODE%02d", i),
			IsPublic:  true,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, rooms.Create(ctx, &models.Room{ID: "hidden", Code: "HIDDEN", CreatedAt: base}))

	page, total, err := rooms.ListPublic(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	assert.Equal(t, "r4", page[0].ID, "newest first")
	assert.Equal(t, "r3", page[1].ID)

	page, _, err = rooms.ListPublic(ctx, 4, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "r0", page[0].ID)

	page, _, err = rooms.ListPublic(ctx, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestParticipantRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewRedisParticipantRepository(newTestClient(t), logger.NewNop())

	base := time.Unix(1700000000, 0).UTC()
	require.NoError(t, repo.Save(ctx,
		models.Participant{RoomID: "r1", UserID: "l2", Role: models.RoleListener, JoinedAt: base.Add(2 * time.Second), IsActive: true},
		models.Participant{RoomID: "r1", UserID: "h1", Role: models.RoleHost, JoinedAt: base, IsActive: true},
		models.Participant{RoomID: "r1", UserID: "l1", Role: models.RoleListener, JoinedAt: base.Add(time.Second), IsActive: true},
	))

	ps, err := repo.List(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, ps, 3)
	assert.Equal(t, "h1", ps[0].UserID)
	assert.Equal(t, "l1", ps[1].UserID)
	assert.Equal(t, "l2", ps[2].UserID)
	assert.Equal(t, models.RoleHost, ps[0].Role)

	seen := base.Add(time.Hour)
	require.NoError(t, repo.Touch(ctx, "r1", "l1", seen))
	p, err := repo.Get(ctx, "r1", "l1")
	require.NoError(t, err)
	assert.True(t, p.LastSeenAt.Equal(seen))

	_, err = repo.Get(ctx, "r1", "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Touch(ctx, "r1", "nobody", seen), ErrNotFound)
}
