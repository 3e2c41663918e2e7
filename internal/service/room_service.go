package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/vogiaan1904/listenroom/internal/delivery/kafka"
	"github.com/vogiaan1904/listenroom/internal/models"
	repository "github.com/vogiaan1904/listenroom/internal/repository/redis"
)

const (
	codeAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	maxCodeAttempts = 5
	maxChatLength   = 500
	maxRoomName     = 100
)

type RoomService interface {
	CreateRoom(ctx context.Context, in CreateRoomInput) (*models.Room, error)
	ListPublic(ctx context.Context, in ListRoomsInput) (*ListRoomsOutput, error)
	GetSnapshot(ctx context.Context, roomID string) (*models.RoomSnapshot, error)
	Join(ctx context.Context, in JoinInput) (*models.RoomSnapshot, error)
	Leave(ctx context.Context, in LeaveInput) error
	ChangeRole(ctx context.Context, in ChangeRoleInput) error
	DeleteRoom(ctx context.Context, in DeleteRoomInput) error
	Chat(ctx context.Context, in ChatInput) (*models.ChatMessage, error)
	Touch(ctx context.Context, roomID, userID string) error
	// SweepStale runs the leave path for participants whose liveness is older
	// than the stale window. It reports how many were removed.
	SweepStale(ctx context.Context, roomID string) (int, error)
}

type roomService struct {
	core
	genCode func(length int) (string, error)
}

func NewRoomService(d Deps) RoomService {
	s := &roomService{
		core:    newCore(d),
		genCode: d.CodeGenerator,
	}
	if s.genCode == nil {
		s.genCode = generateCode
	}
	return s
}

func (s *roomService) CreateRoom(ctx context.Context, in CreateRoomInput) (*models.Room, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || utf8.RuneCountInString(name) > maxRoomName {
		return nil, ErrInvalidRoomName
	}

	capacity := in.Capacity
	if capacity <= 0 {
		capacity = s.cfg.DefaultCapacity
	}
	capacity = min(capacity, s.cfg.MaxCapacity)

	now := s.clock.Now().UTC()
	room := &models.Room{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedBy: in.UserID,
		IsPublic:  in.IsPublic,
		Capacity:  capacity,
		Playback:  models.PlaybackState{UpdatedAt: now},
		CreatedAt: now,
		UpdatedAt: now,
	}

	var err error
	for range maxCodeAttempts {
		room.Code, err = s.genCode(s.cfg.CodeLength)
		if err != nil {
			return nil, err
		}

		err = s.rooms.Create(ctx, room)
		if !errors.Is(err, repository.ErrCodeTaken) {
			break
		}
		s.l.Warnf(ctx, "service.roomService.CreateRoom: code %s taken, retrying", room.Code)
	}
	if err != nil {
		s.l.Errorf(ctx, "service.roomService.CreateRoom: %v", err)
		return nil, err
	}

	if err := s.participants.Save(ctx, models.Participant{
		RoomID:     room.ID,
		UserID:     in.UserID,
		Role:       models.RoleHost,
		JoinedAt:   now,
		LastSeenAt: now,
		IsActive:   true,
	}); err != nil {
		s.l.Errorf(ctx, "service.roomService.CreateRoom.Save: %v", err)
		return nil, err
	}

	s.registry.put(*room, now)

	if err := s.prod.PublishRoomCreated(ctx, kafka.RoomCreatedEvent{
		RoomID:    room.ID,
		Code:      room.Code,
		Name:      room.Name,
		CreatedBy: room.CreatedBy,
		IsPublic:  room.IsPublic,
		Capacity:  room.Capacity,
		CreatedAt: room.CreatedAt,
	}); err != nil {
		s.l.Warnf(ctx, "service.roomService.CreateRoom.PublishRoomCreated: %v", err)
	}

	s.l.Infof(ctx, "Room created room_id=%s code=%s created_by=%s", room.ID, room.Code, room.CreatedBy)

	return room, nil
}

func (s *roomService) ListPublic(ctx context.Context, in ListRoomsInput) (*ListRoomsOutput, error) {
	page := max(in.Page, 1)
	size := in.PageSize
	if size <= 0 || size > s.cfg.PageSize {
		size = s.cfg.PageSize
	}

	rooms, total, err := s.rooms.ListPublic(ctx, int64((page-1)*size), int64(size))
	if err != nil {
		s.l.Errorf(ctx, "service.roomService.ListPublic: %v", err)
		return nil, err
	}

	out := &ListRoomsOutput{
		Rooms:    make([]models.RoomSummary, 0, len(rooms)),
		Page:     page,
		PageSize: size,
		Total:    total,
	}
	for _, r := range rooms {
		active, err := s.activeParticipants(ctx, r.ID)
		if err != nil {
			s.l.Warnf(ctx, "service.roomService.ListPublic.activeParticipants: %v", err)
			continue
		}

		out.Rooms = append(out.Rooms, models.RoomSummary{
			ID:               r.ID,
			Name:             r.Name,
			Code:             r.Code,
			Capacity:         r.Capacity,
			ParticipantCount: len(active),
			SongID:           r.Playback.SongID,
			IsPlaying:        r.Playback.IsPlaying,
			CreatedAt:        r.CreatedAt,
		})
	}

	return out, nil
}

func (s *roomService) GetSnapshot(ctx context.Context, roomID string) (*models.RoomSnapshot, error) {
	var snap *models.RoomSnapshot
	err := s.registry.View(ctx, roomID, func(e *roomEntry) error {
		var err error
		snap, err = s.snapshot(ctx, e, s.clock.Now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *roomService) Join(ctx context.Context, in JoinInput) (*models.RoomSnapshot, error) {
	room, err := s.rooms.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(in.Code)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		s.l.Errorf(ctx, "service.roomService.Join.GetByCode: %v", err)
		return nil, err
	}

	ctx = s.l.WithFields(ctx, "room_id", room.ID, "user_id", in.UserID)

	var snap *models.RoomSnapshot
	err = s.registry.Do(ctx, room.ID, func(e *roomEntry) error {
		var err error
		snap, err = s.join(ctx, e, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	return snap, nil
}

func (s *roomService) join(ctx context.Context, e *roomEntry, in JoinInput) (*models.RoomSnapshot, error) {
	now := s.clock.Now().UTC()

	active, err := s.activeParticipants(ctx, e.id)
	if err != nil {
		return nil, err
	}

	var current *models.Participant
	for i := range active {
		if active[i].UserID == in.UserID {
			current = &active[i]
			break
		}
	}
	alreadyActive := current != nil

	if !alreadyActive && len(active) >= e.room.Capacity {
		return nil, ErrRoomFull
	}

	var (
		toSave       []models.Participant
		demotedHost  string
		creatorEntry = e.room.IsCreator(in.UserID)
	)
	if alreadyActive {
		p := *current
		p.LastSeenAt = now
		toSave = append(toSave, p)
	} else {
		p := models.Participant{
			RoomID:     e.id,
			UserID:     in.UserID,
			Role:       models.RoleListener,
			JoinedAt:   now,
			LastSeenAt: now,
			IsActive:   true,
		}
		if creatorEntry {
			p.Role = models.RoleHost
			for _, other := range active {
				if other.IsHost() {
					other.Role = models.RoleListener
					toSave = append(toSave, other)
					demotedHost = other.UserID
				}
			}
		}
		toSave = append(toSave, p)
	}

	if err := s.participants.Save(ctx, toSave...); err != nil {
		s.l.Errorf(ctx, "service.roomService.join.Save: %v", err)
		return nil, err
	}

	if in.ConnID != "" {
		s.pub.Subscribe(e.id, in.UserID, in.ConnID)
	}

	snap, err := s.snapshot(ctx, e, now)
	if err != nil {
		return nil, err
	}

	if in.ConnID != "" {
		s.pub.Send(in.ConnID, models.Message{Event: models.EventRoomJoined, Data: snap})
	}

	if alreadyActive {
		return snap, nil
	}

	s.pub.Broadcast(e.id, models.Message{
		Event: models.EventParticipantsUpdated,
		Data:  models.ParticipantsUpdated{Participants: snap.Participants},
	})
	s.notify(e.id, in.UserID, models.EventUserJoined, fmt.Sprintf("%s joined the room", in.UserID), now)

	if err := s.prod.PublishParticipantJoined(ctx, kafka.ParticipantJoinedEvent{
		RoomID:   e.id,
		UserID:   in.UserID,
		Role:     roleOf(creatorEntry).String(),
		JoinedAt: now,
	}); err != nil {
		s.l.Warnf(ctx, "service.roomService.join.PublishParticipantJoined: %v", err)
	}

	if demotedHost != "" {
		s.publishHostChanged(ctx, e.id, demotedHost, in.UserID, kafka.ReasonCreatorRejoin)
	}

	s.l.Infof(ctx, "Participant joined room_id=%s user_id=%s role=%s", e.id, in.UserID, roleOf(creatorEntry))

	return snap, nil
}

func (s *roomService) Leave(ctx context.Context, in LeaveInput) error {
	ctx = s.l.WithFields(ctx, "room_id", in.RoomID, "user_id", in.UserID)

	return s.registry.Do(ctx, in.RoomID, func(e *roomEntry) error {
		if s.pub.Unsubscribe(e.id, in.UserID, in.ConnID) > 0 {
			return nil
		}
		_, err := s.leave(ctx, e, in.UserID, kafka.ReasonLeft)
		return err
	})
}

// leave deactivates userID, then destroys the room or fails the host over.
// It reports whether the room was destroyed. Callers must run inside the
// room actor.
func (s *roomService) leave(ctx context.Context, e *roomEntry, userID, reason string) (bool, error) {
	now := s.clock.Now().UTC()

	p, err := s.participants.Get(ctx, e.id, userID)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if !p.IsActive {
		return false, nil
	}

	wasHost := p.IsHost()
	p.IsActive = false
	p.Role = models.RoleListener
	if err := s.participants.Save(ctx, *p); err != nil {
		s.l.Errorf(ctx, "service.roomService.leave.Save: %v", err)
		return false, err
	}

	if err := s.prod.PublishParticipantLeft(ctx, kafka.ParticipantLeftEvent{
		RoomID: e.id,
		UserID: userID,
		Reason: reason,
		LeftAt: now,
	}); err != nil {
		s.l.Warnf(ctx, "service.roomService.leave.PublishParticipantLeft: %v", err)
	}

	active, err := s.activeParticipants(ctx, e.id)
	if err != nil {
		return false, err
	}

	if len(active) == 0 {
		return true, s.destroy(ctx, e, "", kafka.ReasonRoomEmpty)
	}

	if wasHost {
		next := active[0]
		next.Role = models.RoleHost
		if err := s.participants.Save(ctx, next); err != nil {
			s.l.Errorf(ctx, "service.roomService.leave.Failover: %v", err)
			return false, err
		}
		s.publishHostChanged(ctx, e.id, userID, next.UserID, kafka.ReasonFailover)
		s.l.Infof(ctx, "Host failover room_id=%s from=%s to=%s", e.id, userID, next.UserID)
	}

	if err := s.broadcastParticipants(ctx, e.id); err != nil {
		return false, err
	}
	s.notify(e.id, userID, models.EventUserLeft, fmt.Sprintf("%s left the room", userID), now)

	return false, nil
}

// destroy purges the room everywhere. Callers must run inside the room actor.
func (s *roomService) destroy(ctx context.Context, e *roomEntry, actor, reason string) error {
	if err := s.rooms.Delete(ctx, &e.room); err != nil {
		s.l.Errorf(ctx, "service.roomService.destroy: %v", err)
		return err
	}

	s.registry.drop(e)
	s.pub.CloseRoom(e.id, models.Message{
		Event: models.EventRoomClosed,
		Data:  models.RoomClosed{RoomID: e.id},
	})

	if err := s.prod.PublishRoomClosed(ctx, kafka.RoomClosedEvent{
		RoomID:   e.id,
		Reason:   reason,
		ClosedBy: actor,
		ClosedAt: s.clock.Now().UTC(),
	}); err != nil {
		s.l.Warnf(ctx, "service.roomService.destroy.PublishRoomClosed: %v", err)
	}

	s.l.Infof(ctx, "Room closed room_id=%s reason=%s", e.id, reason)

	return nil
}

func (s *roomService) ChangeRole(ctx context.Context, in ChangeRoleInput) error {
	if in.Role != models.RoleHost && in.Role != models.RoleListener {
		return ErrInvalidRole
	}

	return s.registry.Do(ctx, in.RoomID, func(e *roomEntry) error {
		actor, err := s.member(ctx, e.id, in.ActorID)
		if err != nil {
			return err
		}
		if !actor.IsHost() {
			return ErrNotHost
		}

		target, err := s.participants.Get(ctx, e.id, in.TargetID)
		if err != nil {
			if isNotFound(err) {
				return ErrParticipantNotFound
			}
			return err
		}
		if !target.IsActive {
			return ErrParticipantNotFound
		}

		var from, to *models.Participant
		switch in.Role {
		case models.RoleListener:
			if e.room.IsCreator(target.UserID) {
				return ErrCreatorProtected
			}
			if target.UserID != actor.UserID {
				// Only one host exists, so target already listens.
				return nil
			}

			active, err := s.activeParticipants(ctx, e.id)
			if err != nil {
				return err
			}
			for i := range active {
				if active[i].UserID != actor.UserID {
					to = &active[i]
					break
				}
			}
			if to == nil {
				return ErrNoSuccessor
			}
			from = actor
		case models.RoleHost:
			if target.UserID == actor.UserID {
				return nil
			}
			if e.room.IsCreator(actor.UserID) {
				return ErrCreatorProtected
			}
			from, to = actor, target
		}

		from.Role = models.RoleListener
		to.Role = models.RoleHost
		if err := s.participants.Save(ctx, *from, *to); err != nil {
			s.l.Errorf(ctx, "service.roomService.ChangeRole.Save: %v", err)
			return err
		}

		s.publishHostChanged(ctx, e.id, from.UserID, to.UserID, kafka.ReasonTransfer)

		return s.broadcastParticipants(ctx, e.id)
	})
}

func (s *roomService) DeleteRoom(ctx context.Context, in DeleteRoomInput) error {
	return s.registry.Do(ctx, in.RoomID, func(e *roomEntry) error {
		if !in.IsAdmin {
			p, err := s.member(ctx, e.id, in.ActorID)
			if err != nil && !errors.Is(err, ErrNotMember) {
				return err
			}
			if p == nil || !p.IsHost() {
				return ErrNotAdmin
			}
		}

		return s.destroy(ctx, e, in.ActorID, kafka.ReasonRoomDeleted)
	})
}

func (s *roomService) Chat(ctx context.Context, in ChatInput) (*models.ChatMessage, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" || utf8.RuneCountInString(text) > maxChatLength {
		return nil, ErrInvalidMessage
	}

	var msg *models.ChatMessage
	err := s.registry.Do(ctx, in.RoomID, func(e *roomEntry) error {
		if _, err := s.member(ctx, e.id, in.UserID); err != nil {
			return err
		}

		msg = &models.ChatMessage{
			ID:        uuid.NewString(),
			User:      in.UserID,
			Text:      text,
			Timestamp: s.clock.Now().UnixMilli(),
			Kind:      models.ChatKindUser,
		}
		s.pub.Broadcast(e.id, models.Message{Event: models.EventRoomChat, Data: msg})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return msg, nil
}

func (s *roomService) Touch(ctx context.Context, roomID, userID string) error {
	return s.registry.Do(ctx, roomID, func(e *roomEntry) error {
		err := s.participants.Touch(ctx, e.id, userID, s.clock.Now().UTC())
		if isNotFound(err) {
			return ErrParticipantNotFound
		}
		return err
	})
}

func (s *roomService) SweepStale(ctx context.Context, roomID string) (int, error) {
	removed := 0
	err := s.registry.Do(ctx, roomID, func(e *roomEntry) error {
		now := s.clock.Now().UTC()

		active, err := s.activeParticipants(ctx, e.id)
		if err != nil {
			return err
		}

		for _, p := range active {
			if !p.IsStale(now, s.cfg.StaleAfter) {
				continue
			}

			s.pub.Unsubscribe(e.id, p.UserID, "")
			destroyed, err := s.leave(ctx, e, p.UserID, kafka.ReasonStale)
			if err != nil {
				return err
			}
			removed++
			s.l.Infof(ctx, "Stale participant removed room_id=%s user_id=%s", e.id, p.UserID)

			if destroyed {
				return nil
			}
		}
		return nil
	})

	return removed, err
}

// notify sends the courtesy notice to everyone but userID and a system chat
// line to the whole room.
func (s *roomService) notify(roomID, userID, event, text string, now time.Time) {
	s.pub.BroadcastExcept(roomID, userID, models.Message{
		Event: event,
		Data:  models.UserNotice{User: userID},
	})
	s.pub.Broadcast(roomID, models.Message{
		Event: models.EventRoomChat,
		Data: models.ChatMessage{
			ID:        uuid.NewString(),
			User:      userID,
			Text:      text,
			Timestamp: now.UnixMilli(),
			Kind:      models.ChatKindSystem,
		},
	})
}

func (s *roomService) publishHostChanged(ctx context.Context, roomID, from, to, reason string) {
	if err := s.prod.PublishHostChanged(ctx, kafka.HostChangedEvent{
		RoomID:       roomID,
		PreviousHost: from,
		NewHost:      to,
		Reason:       reason,
	}); err != nil {
		s.l.Warnf(ctx, "service.roomService.PublishHostChanged: %v", err)
	}
}

func roleOf(creator bool) models.Role {
	if creator {
		return models.RoleHost
	}
	return models.RoleListener
}

func generateCode(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate room code: %w", err)
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b), nil
}
