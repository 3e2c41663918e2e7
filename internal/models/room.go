package models

import "time"

type Room struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Code      string        `json:"code"`
	CreatedBy string        `json:"created_by"`
	IsPublic  bool          `json:"is_public"`
	Capacity  int           `json:"capacity"`
	Playback  PlaybackState `json:"playback"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// PlaybackState is the durable mirror of a room's playback. PlayStartedAt is
// only set while IsPlaying is true.
type PlaybackState struct {
	SongID          string     `json:"song_id,omitempty"`
	CurrentPosition float64    `json:"current_position"`
	IsPlaying       bool       `json:"is_playing"`
	PlayStartedAt   *time.Time `json:"play_started_at,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (r *Room) IsCreator(userID string) bool {
	return r.CreatedBy == userID
}

// RoomSummary is a public room listing entry.
type RoomSummary struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Code             string    `json:"code"`
	Capacity         int       `json:"capacity"`
	ParticipantCount int       `json:"participant_count"`
	SongID           string    `json:"song_id,omitempty"`
	IsPlaying        bool      `json:"is_playing"`
	CreatedAt        time.Time `json:"created_at"`
}

// RoomSnapshot is everything a joining connection needs to render a room.
type RoomSnapshot struct {
	Room         Room          `json:"room"`
	Participants []Participant `json:"participants"`
	Queue        []QueueItem   `json:"queue"`
}
