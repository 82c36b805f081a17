package services

import (
	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/domain/event"
	"context"
	"log/slog"
	"sync"

	"github.com/samber/lo"
)

// PresenceService signals connects, disconnects and typing to the rooms a
// user belongs to. Nothing is persisted, the typing set only exists so that
// a vanishing user does not stay "typing" for their peers.
type PresenceService struct {
	rooms       contract.IRoomRepository
	broadcaster contract.IBroadcaster
	log         *slog.Logger

	mu     sync.Mutex
	typing map[string]map[string]struct{} // map user -> rooms
}

func NewPresenceService(rooms contract.IRoomRepository, broadcaster contract.IBroadcaster, log *slog.Logger) *PresenceService {
	return &PresenceService{
		rooms:       rooms,
		broadcaster: broadcaster,
		log:         log,
		typing:      make(map[string]map[string]struct{}),
	}
}

// Online announces the user to every room they take part in, one broadcast per room.
func (s *PresenceService) Online(ctx context.Context, user domain.User, joined []string) {
	for _, roomID := range s.presenceRooms(ctx, user.ID, joined) {
		s.broadcaster.Broadcast(ctx, domain.RoomGroup(roomID), event.UserConnected, event.Presence{
			UserID:   user.ID,
			UserName: user.Name,
			RoomID:   lo.ToPtr(roomID),
		})
	}
}

// Offline clears pending typing indicators then announces the departure.
func (s *PresenceService) Offline(ctx context.Context, user domain.User, joined []string) {
	for _, roomID := range s.clearTyping(user.ID) {
		s.broadcastTyping(ctx, user, roomID, false)
	}
	for _, roomID := range s.presenceRooms(ctx, user.ID, joined) {
		s.broadcaster.Broadcast(ctx, domain.RoomGroup(roomID), event.UserDisconnected, event.Presence{
			UserID:   user.ID,
			UserName: user.Name,
			RoomID:   lo.ToPtr(roomID),
		})
	}
}

// StartTyping re-broadcasts on every call, debouncing is left to clients.
func (s *PresenceService) StartTyping(ctx context.Context, user domain.User, roomID string) {
	s.mu.Lock()
	if _, ok := s.typing[user.ID]; !ok {
		s.typing[user.ID] = make(map[string]struct{})
	}
	s.typing[user.ID][roomID] = struct{}{}
	s.mu.Unlock()

	s.broadcastTyping(ctx, user, roomID, true)
}

func (s *PresenceService) StopTyping(ctx context.Context, user domain.User, roomID string) {
	s.mu.Lock()
	if rooms, ok := s.typing[user.ID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(s.typing, user.ID)
		}
	}
	s.mu.Unlock()

	s.broadcastTyping(ctx, user, roomID, false)
}

func (s *PresenceService) broadcastTyping(ctx context.Context, user domain.User, roomID string, isTyping bool) {
	name := event.TypingStopped
	if isTyping {
		name = event.TypingStarted
	}
	s.broadcaster.Broadcast(ctx, domain.RoomGroup(roomID), name, event.Typing{
		RoomID:   roomID,
		UserID:   user.ID,
		UserName: user.Name,
		IsTyping: isTyping,
	})
}

func (s *PresenceService) clearTyping(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := lo.Keys(s.typing[userID])
	delete(s.typing, userID)
	return rooms
}

// presenceRooms merges the durable participations of the user with the rooms
// their connections had joined.
func (s *PresenceService) presenceRooms(ctx context.Context, userID string, joined []string) []string {
	rooms, err := s.rooms.ListForUser(ctx, userID)
	if err != nil {
		s.log.Warn("Participant rooms unavailable, presence limited to joined rooms", "user_id", userID, "error", err)
	}
	participantRooms := lo.FilterMap(rooms, func(room domain.Room, _ int) (string, bool) {
		return room.ID, !room.IsArchived
	})
	return lo.Uniq(append(participantRooms, joined...))
}
