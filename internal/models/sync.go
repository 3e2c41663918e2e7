package models

type SyncEventType string

const (
	SyncPlay       SyncEventType = "play"
	SyncPause      SyncEventType = "pause"
	SyncSeek       SyncEventType = "seek"
	SyncSongChange SyncEventType = "song_change"
)

// SyncEvent is broadcast on every accepted playback transition and on
// reconciliation sweeps. Originator is empty when the server produced it.
type SyncEvent struct {
	Type       SyncEventType `json:"type"`
	SongID     string        `json:"song_id,omitempty"`
	Position   *float64      `json:"position,omitempty"`
	Timestamp  int64         `json:"timestamp"`
	Originator string        `json:"originator,omitempty"`
}

type ChatKind string

const (
	ChatKindUser   ChatKind = "user"
	ChatKindSystem ChatKind = "system"
)

type ChatMessage struct {
	ID        string   `json:"id"`
	User      string   `json:"user"`
	Text      string   `json:"text"`
	Timestamp int64    `json:"timestamp"`
	Kind      ChatKind `json:"kind"`
}
