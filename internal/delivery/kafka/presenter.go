package kafka

import "time"

// Events published BY Listenroom Service

type RoomCreatedEvent struct {
	RoomID    string    `json:"room_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	IsPublic  bool      `json:"is_public"`
	Capacity  int       `json:"capacity"`
	CreatedAt time.Time `json:"created_at"`
	Timestamp time.Time `json:"timestamp"`
}

type RoomClosedEvent struct {
	RoomID    string    `json:"room_id"`
	Reason    string    `json:"reason"` // empty, deleted
	ClosedBy  string    `json:"closed_by,omitempty"`
	ClosedAt  time.Time `json:"closed_at"`
	Timestamp time.Time `json:"timestamp"`
}

type ParticipantJoinedEvent struct {
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	JoinedAt  time.Time `json:"joined_at"`
	Timestamp time.Time `json:"timestamp"`
}

type ParticipantLeftEvent struct {
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	Reason    string    `json:"reason"` // left, stale
	LeftAt    time.Time `json:"left_at"`
	Timestamp time.Time `json:"timestamp"`
}

type HostChangedEvent struct {
	RoomID       string    `json:"room_id"`
	PreviousHost string    `json:"previous_host,omitempty"`
	NewHost      string    `json:"new_host"`
	Reason       string    `json:"reason"` // failover, transfer, creator_rejoin
	Timestamp    time.Time `json:"timestamp"`
}

// Events consumed BY Listenroom Service (from Catalog Service)

type SongRemovedEvent struct {
	SongID    string    `json:"song_id"`
	Timestamp time.Time `json:"timestamp"`
}
