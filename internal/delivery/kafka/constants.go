package kafka

const (
	TopicRoomCreated       = "room.created"
	TopicRoomClosed        = "room.closed"
	TopicParticipantJoined = "participant.joined"
	TopicParticipantLeft   = "participant.left"
	TopicHostChanged       = "host.changed"

	TopicCatalogSongRemoved = "catalog.song_removed"
)

const (
	ReasonRoomEmpty   = "empty"
	ReasonRoomDeleted = "deleted"

	ReasonLeft  = "left"
	ReasonStale = "stale"

	ReasonFailover      = "failover"
	ReasonTransfer      = "transfer"
	ReasonCreatorRejoin = "creator_rejoin"
)
