package models

// Message is the envelope of every websocket frame.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Inbound control events.
const (
	EventJoinRoom        = "join_room"
	EventLeaveRoom       = "leave_room"
	EventRoomPlay        = "room_play"
	EventRoomPause       = "room_pause"
	EventRoomSeek        = "room_seek"
	EventRoomSongChange  = "room_song_change"
	EventAddToQueue      = "add_to_queue"
	EventAddToQueueTop   = "add_to_queue_top"
	EventRemoveFromQueue = "remove_from_queue"
	EventRoomChat        = "room_chat"
	EventRequestSync     = "request_sync"
	EventPing            = "ping"
)

// Outbound events.
const (
	EventRoomJoined          = "room_joined"
	EventParticipantsUpdated = "participants_updated"
	EventQueueUpdated        = "queue_updated"
	EventPlaybackSync        = "playback_sync"
	EventUserJoined          = "user_joined"
	EventUserLeft            = "user_left"
	EventRoomError           = "room_error"
	EventRoomClosed          = "room_closed"
	EventPong                = "pong"
)

type ParticipantsUpdated struct {
	Participants []Participant `json:"participants"`
}

type QueueUpdated struct {
	Queue []QueueItem `json:"queue"`
}

type UserNotice struct {
	User string `json:"user"`
}

type RoomError struct {
	Message string `json:"message"`
}

type RoomClosed struct {
	RoomID string `json:"room_id"`
}
