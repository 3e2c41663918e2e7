// Package playback holds the room playback state machine and the position
// extrapolator. Everything here is pure: callers pass the current time in.
package playback

import (
	"errors"
	"math"
	"time"

	"github.com/vogiaan1904/listenroom/internal/models"
)

var (
	ErrNoSong          = errors.New("no song selected")
	ErrInvalidPosition = errors.New("position must be a non-negative number of seconds")
)

// State is either Paused(SongID, Position) or Playing(SongID, Position, StartedAt)
// where Position is the offset at StartedAt.
type State struct {
	SongID    string
	Position  float64
	Playing   bool
	StartedAt time.Time
}

func FromModel(ps models.PlaybackState) State {
	s := State{
		SongID:   ps.SongID,
		Position: max(ps.CurrentPosition, 0),
		Playing:  ps.IsPlaying,
	}
	if ps.IsPlaying && ps.PlayStartedAt != nil {
		s.StartedAt = *ps.PlayStartedAt
	} else {
		s.Playing = false
	}
	return s
}

func (s State) ToModel(now time.Time) models.PlaybackState {
	ps := models.PlaybackState{
		SongID:          s.SongID,
		CurrentPosition: max(s.Position, 0),
		IsPlaying:       s.Playing,
		UpdatedAt:       now,
	}
	if s.Playing {
		started := s.StartedAt
		ps.PlayStartedAt = &started
	}
	return ps
}

// Extrapolate returns the position at now. Elapsed time never counts
// negative, so a clock behind StartedAt yields Position.
func Extrapolate(s State, now time.Time) float64 {
	if !s.Playing {
		return max(s.Position, 0)
	}
	elapsed := now.Sub(s.StartedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return max(s.Position+elapsed, 0)
}

// Play resumes or starts playback. A different songID switches the song and
// rewinds to 0 unless position is given.
func Play(s State, songID string, position *float64, now time.Time) (State, error) {
	if position != nil && !validPosition(*position) {
		return s, ErrInvalidPosition
	}

	switched := songID != "" && songID != s.SongID
	next := s
	switch {
	case switched:
		next.SongID = songID
		next.Position = 0
	case s.SongID == "":
		return s, ErrNoSong
	default:
		next.Position = Extrapolate(s, now)
	}

	if position != nil {
		next.Position = *position
	}
	next.Playing = true
	next.StartedAt = now
	return next, nil
}

func Pause(s State, now time.Time) State {
	return State{
		SongID:   s.SongID,
		Position: Extrapolate(s, now),
		Playing:  false,
	}
}

func Seek(s State, position float64, now time.Time) (State, error) {
	if !validPosition(position) {
		return s, ErrInvalidPosition
	}
	next := s
	next.Position = position
	if next.Playing {
		next.StartedAt = now
	}
	return next, nil
}

func SongChange(s State, songID string, now time.Time) (State, error) {
	if songID == "" {
		return s, ErrNoSong
	}
	return State{
		SongID:    songID,
		Position:  0,
		Playing:   true,
		StartedAt: now,
	}, nil
}

// Rebase folds elapsed time into Position so error does not accumulate
// across reconciliation sweeps.
func Rebase(s State, now time.Time) State {
	if !s.Playing {
		return s
	}
	s.Position = Extrapolate(s, now)
	s.StartedAt = now
	return s
}

// Event builds the SyncEvent for s as observed at now.
func Event(t models.SyncEventType, s State, now time.Time, originator string) models.SyncEvent {
	pos := Extrapolate(s, now)
	return models.SyncEvent{
		Type:       t,
		SongID:     s.SongID,
		Position:   &pos,
		Timestamp:  now.UnixMilli(),
		Originator: originator,
	}
}

// CurrentEvent describes s as a play or pause event, used for request_sync
// and sweep broadcasts.
func CurrentEvent(s State, now time.Time, originator string) models.SyncEvent {
	if s.Playing {
		return Event(models.SyncPlay, s, now, originator)
	}
	return Event(models.SyncPause, s, now, originator)
}

func validPosition(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p >= 0
}
