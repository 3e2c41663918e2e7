package playback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogiaan1904/listenroom/internal/models"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func playing(song string, pos float64, at time.Time) State {
	return State{SongID: song, Position: pos, Playing: true, StartedAt: at}
}

func TestExtrapolate(t *testing.T) {
	s := playing("S", 10, t0)

	assert.InDelta(t, 15, Extrapolate(s, t0.Add(5*time.Second)), 0.001)
	assert.InDelta(t, 10, Extrapolate(s, t0.Add(-2*time.Second)), 0.001, "clock skew must not rewind")

	paused := State{SongID: "S", Position: 42}
	assert.Equal(t, 42.0, Extrapolate(paused, t0.Add(time.Hour)))

	negative := State{SongID: "S", Position: -3}
	assert.Equal(t, 0.0, Extrapolate(negative, t0))
}

func TestPlay(t *testing.T) {
	t.Run("new song rewinds to zero", func(t *testing.T) {
		s := playing("A", 30, t0)
		next, err := Play(s, "B", nil, t0.Add(time.Second))
		require.NoError(t, err)
		assert.Equal(t, "B", next.SongID)
		assert.Equal(t, 0.0, next.Position)
		assert.True(t, next.Playing)
		assert.Equal(t, t0.Add(time.Second), next.StartedAt)
	})

	t.Run("new song with explicit position", func(t *testing.T) {
		pos := 12.5
		next, err := Play(State{}, "B", &pos, t0)
		require.NoError(t, err)
		assert.Equal(t, 12.5, next.Position)
	})

	t.Run("resume keeps paused position", func(t *testing.T) {
		next, err := Play(State{SongID: "A", Position: 7}, "", nil, t0)
		require.NoError(t, err)
		assert.Equal(t, 7.0, next.Position)
		assert.True(t, next.Playing)
	})

	t.Run("replaying current song keeps continuity", func(t *testing.T) {
		next, err := Play(playing("A", 10, t0), "A", nil, t0.Add(4*time.Second))
		require.NoError(t, err)
		assert.InDelta(t, 14, next.Position, 0.001)
	})

	t.Run("no song", func(t *testing.T) {
		_, err := Play(State{}, "", nil, t0)
		assert.ErrorIs(t, err, ErrNoSong)
	})

	t.Run("negative position", func(t *testing.T) {
		pos := -1.0
		_, err := Play(State{SongID: "A"}, "", &pos, t0)
		assert.ErrorIs(t, err, ErrInvalidPosition)
	})
}

func TestPauseSnapshotsPosition(t *testing.T) {
	next := Pause(playing("A", 10, t0), t0.Add(3*time.Second))

	assert.False(t, next.Playing)
	assert.True(t, next.StartedAt.IsZero())
	assert.InDelta(t, 13, next.Position, 0.001)

	m := next.ToModel(t0)
	assert.Nil(t, m.PlayStartedAt)
	assert.False(t, m.IsPlaying)
}

func TestSeek(t *testing.T) {
	next, err := Seek(playing("A", 10, t0), 42, t0.Add(5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 42.0, next.Position)
	assert.Equal(t, t0.Add(5*time.Second), next.StartedAt)
	assert.InDelta(t, 44, Extrapolate(next, t0.Add(7*time.Second)), 0.001)

	paused, err := Seek(State{SongID: "A", Position: 1}, 50, t0)
	require.NoError(t, err)
	assert.False(t, paused.Playing)
	assert.Equal(t, 50.0, Extrapolate(paused, t0.Add(time.Minute)))

	_, err = Seek(paused, -5, t0)
	assert.ErrorIs(t, err, ErrInvalidPosition)
}

func TestSongChange(t *testing.T) {
	next, err := SongChange(State{SongID: "A", Position: 99}, "7", t0)
	require.NoError(t, err)
	assert.Equal(t, playing("7", 0, t0), next)

	_, err = SongChange(next, "", t0)
	assert.ErrorIs(t, err, ErrNoSong)
}

func TestRebaseDoesNotDrift(t *testing.T) {
	s := playing("A", 0, t0)
	for i := 1; i <= 6; i++ {
		s = Rebase(s, t0.Add(time.Duration(i)*10*time.Second))
	}
	assert.InDelta(t, 60, s.Position, 0.001)
	assert.Equal(t, t0.Add(60*time.Second), s.StartedAt)
	assert.InDelta(t, 65, Extrapolate(s, t0.Add(65*time.Second)), 0.001)
}

func TestModelRoundTrip(t *testing.T) {
	s := playing("A", 3, t0)
	back := FromModel(s.ToModel(t0))
	assert.True(t, back.StartedAt.Equal(s.StartedAt))
	assert.Equal(t, s.Position, back.Position)

	// playing without a start timestamp is not a valid playing state
	broken := FromModel(models.PlaybackState{SongID: "A", CurrentPosition: 4, IsPlaying: true})
	assert.False(t, broken.Playing)
}

func TestEventCarriesExtrapolatedPosition(t *testing.T) {
	ev := CurrentEvent(playing("A", 10, t0), t0.Add(2*time.Second), "u1")
	assert.Equal(t, models.SyncPlay, ev.Type)
	require.NotNil(t, ev.Position)
	assert.InDelta(t, 12, *ev.Position, 0.001)
	assert.Equal(t, "u1", ev.Originator)
	assert.Equal(t, t0.Add(2*time.Second).UnixMilli(), ev.Timestamp)

	ev = CurrentEvent(State{SongID: "A", Position: 5}, t0, "")
	assert.Equal(t, models.SyncPause, ev.Type)
}
