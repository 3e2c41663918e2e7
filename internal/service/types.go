package service

import "github.com/vogiaan1904/listenroom/internal/models"

type CreateRoomInput struct {
	UserID   string
	Name     string
	IsPublic bool
	Capacity int
}

type ListRoomsInput struct {
	Page     int
	PageSize int
}

type ListRoomsOutput struct {
	Rooms    []models.RoomSummary `json:"rooms"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
	Total    int64                `json:"total"`
}

// JoinInput.ConnID is empty for joins made over plain HTTP.
type JoinInput struct {
	Code   string
	UserID string
	ConnID string
}

type LeaveInput struct {
	RoomID string
	UserID string
	ConnID string
}

type ChangeRoleInput struct {
	RoomID   string
	ActorID  string
	TargetID string
	Role     models.Role
}

type DeleteRoomInput struct {
	RoomID  string
	ActorID string
	IsAdmin bool
}

type ChatInput struct {
	RoomID string
	UserID string
	Text   string
}

type PlayInput struct {
	RoomID   string
	UserID   string
	SongID   string
	Position *float64
}

type SeekInput struct {
	RoomID   string
	UserID   string
	Position float64
}

type SongChangeInput struct {
	RoomID string
	UserID string
	SongID string
}

type AddToQueueInput struct {
	RoomID string
	UserID string
	SongID string
	Top    bool
}

type RemoveFromQueueInput struct {
	RoomID string
	UserID string
	ItemID string
}
