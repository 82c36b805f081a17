package services

import (
	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/errors"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// RoomService decides who may enter a room and keeps the room groups of the
// registry in line with that decision. Rooms are always re-read from the
// store, access is never cached.
type RoomService struct {
	rooms       contract.IRoomRepository
	users       contract.IUserRepository
	registry    contract.IRegistry
	broadcaster contract.IBroadcaster
	locks       *keyedMutex
	log         *slog.Logger
	now         func() time.Time
	newID       func() string
}

func NewRoomService(
	rooms contract.IRoomRepository,
	users contract.IUserRepository,
	registry contract.IRegistry,
	broadcaster contract.IBroadcaster,
	log *slog.Logger,
) *RoomService {
	return &RoomService{
		rooms:       rooms,
		users:       users,
		registry:    registry,
		broadcaster: broadcaster,
		locks:       newKeyedMutex(),
		log:         log,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

func (s *RoomService) CanAccess(room domain.Room, userID string) bool {
	return room.CanAccess(userID)
}

// Authorize loads the room and checks the user may enter it.
func (s *RoomService) Authorize(ctx context.Context, roomID, userID string) (domain.Room, error) {
	if userID == "" {
		return domain.Room{}, errors.ErrUnauthenticated
	}
	room, err := s.rooms.Find(ctx, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if !s.CanAccess(room, userID) {
		return domain.Room{}, fmt.Errorf("room %s: %w", roomID, errors.ErrPermissionDenied)
	}
	return room, nil
}

// Join subscribes a connection to a room group. A denied join changes
// nothing and broadcasts nothing, a repeated join is a silent no-op.
func (s *RoomService) Join(ctx context.Context, connID, roomID string) error {
	userID, ok := s.registry.UserOf(connID)
	if !ok {
		return errors.ErrUnauthenticated
	}
	room, err := s.Authorize(ctx, roomID, userID)
	if err != nil {
		s.log.Debug("Join refused", "user_id", userID, "room_id", roomID, "error", err)
		return err
	}

	group := domain.RoomGroup(room.ID)
	if !s.registry.Join(connID, group) {
		return nil
	}
	s.broadcaster.Broadcast(ctx, group, event.UserJoinedRoom, event.Membership{
		RoomID:   room.ID,
		UserID:   userID,
		UserName: s.displayName(ctx, userID),
	})
	return nil
}

// Leave is always permitted. UserLeftRoom is only sent when the connection
// actually was in the room.
func (s *RoomService) Leave(ctx context.Context, connID, roomID string) error {
	userID, ok := s.registry.UserOf(connID)
	if !ok {
		return nil
	}
	group := domain.RoomGroup(roomID)
	if !s.registry.Leave(connID, group) {
		return nil
	}
	s.broadcaster.Broadcast(ctx, group, event.UserLeftRoom, event.Membership{
		RoomID:   roomID,
		UserID:   userID,
		UserName: s.displayName(ctx, userID),
	})
	return nil
}

// CreateRoom stores a new room with its creator as first participant.
func (s *RoomService) CreateRoom(ctx context.Context, creatorID string, spec RoomSpec) (domain.Room, error) {
	if creatorID == "" {
		return domain.Room{}, errors.ErrUnauthenticated
	}
	if err := validateStruct(spec); err != nil {
		return domain.Room{}, err
	}
	kind := domain.RoomKind(spec.Kind)
	if kind == "" {
		kind = domain.RoomGeneral
	}

	now := s.now().UTC()
	participants := lo.Uniq(append([]string{creatorID}, spec.Participants...))
	if spec.MaxParticipants > 0 && len(participants) > spec.MaxParticipants {
		return domain.Room{}, errors.ErrRoomFull
	}
	room := domain.Room{
		ID:              s.newID(),
		Name:            spec.Name,
		Kind:            kind,
		ProjectID:       spec.ProjectID,
		IsPrivate:       spec.IsPrivate,
		MaxParticipants: spec.MaxParticipants,
		Participants:    participants,
		CreatedBy:       creatorID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.rooms.Save(ctx, room); err != nil {
		return domain.Room{}, storeFailure(err)
	}
	s.log.Info("Room created", "room_id", room.ID, "user_id", creatorID, "private", room.IsPrivate)
	return room, nil
}

// AddParticipant grants durable access to a room. Only a participant, or
// anyone for a public room, may add someone.
func (s *RoomService) AddParticipant(ctx context.Context, roomID, requestorID, userID string) (domain.Room, error) {
	if requestorID == "" {
		return domain.Room{}, errors.ErrUnauthenticated
	}
	return s.mutate(ctx, roomID, func(room *domain.Room) (bool, error) {
		if !s.CanAccess(*room, requestorID) {
			return false, fmt.Errorf("room %s: %w", roomID, errors.ErrPermissionDenied)
		}
		if room.IsArchived {
			return false, errors.ErrRoomArchived
		}
		return room.AddParticipant(userID, s.now().UTC())
	})
}

// RemoveParticipant revokes durable access. Users may remove themselves,
// the creator may remove anyone. Live connections keep their group until
// they leave, but can no longer send into a private room.
func (s *RoomService) RemoveParticipant(ctx context.Context, roomID, requestorID, userID string) (domain.Room, error) {
	return s.mutate(ctx, roomID, func(room *domain.Room) (bool, error) {
		if requestorID != userID && requestorID != room.CreatedBy {
			return false, fmt.Errorf("room %s: %w", roomID, errors.ErrPermissionDenied)
		}
		return room.RemoveParticipant(userID, s.now().UTC()), nil
	})
}

// Archive flips the archived flag. Only the creator may archive a room.
func (s *RoomService) Archive(ctx context.Context, roomID, requestorID string) (domain.Room, error) {
	return s.mutate(ctx, roomID, func(room *domain.Room) (bool, error) {
		if room.CreatedBy != requestorID {
			return false, fmt.Errorf("room %s: %w", roomID, errors.ErrPermissionDenied)
		}
		if room.IsArchived {
			return false, nil
		}
		room.IsArchived = true
		room.UpdatedAt = s.now().UTC()
		return true, nil
	})
}

// mutate runs a room change as one store transaction. Changes to the same
// room are also queued in process so they do not keep conflicting.
func (s *RoomService) mutate(ctx context.Context, roomID string, fn func(room *domain.Room) (bool, error)) (domain.Room, error) {
	unlock := s.locks.Lock(roomID)
	defer unlock()

	return s.rooms.Mutate(ctx, roomID, fn)
}

// RoomsFor lists the rooms a user can see: public rooms and the private
// rooms they participate in.
func (s *RoomService) RoomsFor(ctx context.Context, userID string) ([]domain.Room, error) {
	rooms, err := s.rooms.List(ctx)
	if err != nil {
		return nil, storeFailure(err)
	}
	return lo.Filter(rooms, func(room domain.Room, _ int) bool { return s.CanAccess(room, userID) }), nil
}

func (s *RoomService) displayName(ctx context.Context, userID string) string {
	user, err := s.users.Find(ctx, userID)
	if err != nil || user.Name == "" {
		return userID
	}
	return user.Name
}
