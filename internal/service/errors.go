package service

import (
	"errors"

	"github.com/vogiaan1904/listenroom/internal/playback"
)

var (
	ErrNotHost           = errors.New("only the host can control playback")
	ErrNotQueueItemOwner = errors.New("only the host or the user who added the song can remove it")
	ErrCreatorProtected  = errors.New("the room creator cannot be demoted")
	ErrNotAdmin          = errors.New("only the host or an admin can delete the room")

	ErrRoomNotFound        = errors.New("room not found")
	ErrQueueItemNotFound   = errors.New("queue item not found")
	ErrSongNotFound        = errors.New("song not found")
	ErrParticipantNotFound = errors.New("participant not found")

	ErrRoomFull = errors.New("room is full")

	ErrRoomClosed = errors.New("room closed")

	ErrInvalidPosition  = playback.ErrInvalidPosition
	ErrNoSongSelected   = playback.ErrNoSong
	ErrInvalidRole      = errors.New("invalid role")
	ErrNoSuccessor      = errors.New("no other participant can take over as host")
	ErrNotMember        = errors.New("you are not in this room")
	ErrInvalidMessage   = errors.New("message must be between 1 and 500 characters")
	ErrInvalidRoomName  = errors.New("room name must be between 1 and 100 characters")
	ErrMalformedPayload = errors.New("malformed payload")
)

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindAuthorization
	KindNotFound
	KindCapacity
	KindConcurrency
	KindValidation
)

var errorKinds = map[error]ErrorKind{
	ErrNotHost:             KindAuthorization,
	ErrNotQueueItemOwner:   KindAuthorization,
	ErrCreatorProtected:    KindAuthorization,
	ErrNotAdmin:            KindAuthorization,
	ErrRoomNotFound:        KindNotFound,
	ErrQueueItemNotFound:   KindNotFound,
	ErrSongNotFound:        KindNotFound,
	ErrParticipantNotFound: KindNotFound,
	ErrRoomFull:            KindCapacity,
	ErrRoomClosed:          KindConcurrency,
	ErrInvalidPosition:     KindValidation,
	ErrNoSongSelected:      KindValidation,
	ErrInvalidRole:         KindValidation,
	ErrNoSuccessor:         KindValidation,
	ErrNotMember:           KindValidation,
	ErrInvalidMessage:      KindValidation,
	ErrInvalidRoomName:     KindValidation,
	ErrMalformedPayload:    KindValidation,
}

// Kind classifies err by the first sentinel it wraps.
func Kind(err error) ErrorKind {
	for sentinel, kind := range errorKinds {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindInternal
}

// PublicMessage is the text shown to the caller. A room destroyed while the
// request waited reads the same as a room that never existed.
func PublicMessage(err error) string {
	switch Kind(err) {
	case KindConcurrency:
		return ErrRoomNotFound.Error()
	case KindInternal:
		return "internal error"
	}
	for sentinel := range errorKinds {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}
