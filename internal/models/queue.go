package models

import "time"

// QueueItem positions within a room are dense and start at 1.
type QueueItem struct {
	ID       string    `json:"id"`
	RoomID   string    `json:"room_id"`
	SongID   string    `json:"song_id"`
	Song     *Song     `json:"song,omitempty"`
	AddedBy  string    `json:"added_by"`
	Position int64     `json:"position"`
	AddedAt  time.Time `json:"added_at"`
}

type Song struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist,omitempty"`
	Album    string  `json:"album,omitempty"`
	Duration float64 `json:"duration"`
}
