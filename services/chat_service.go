package services

import (
	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/errors"
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Connection is the handle a transport session receives on connect.
type Connection struct {
	ID   string
	User domain.User
}

// ChatService is the boundary used by client transports. Every operation is
// scoped to a registered connection and returns an error the transport may
// turn into an ack for that connection only.
type ChatService struct {
	registry    contract.IRegistry
	broadcaster contract.IBroadcaster
	identity    contract.IdentityResolver
	users       contract.IUserRepository
	rooms       *RoomService
	messages    *MessageService
	presence    *PresenceService
	mentions    *MentionResolver
	readState   contract.ReadStateRecorder
	locks       *keyedMutex
	log         *slog.Logger
	newID       func() string
}

func NewChatService(
	registry contract.IRegistry,
	broadcaster contract.IBroadcaster,
	identity contract.IdentityResolver,
	users contract.IUserRepository,
	rooms *RoomService,
	messages *MessageService,
	presence *PresenceService,
	mentions *MentionResolver,
	log *slog.Logger,
) *ChatService {
	return &ChatService{
		registry:    registry,
		broadcaster: broadcaster,
		identity:    identity,
		users:       users,
		rooms:       rooms,
		messages:    messages,
		presence:    presence,
		mentions:    mentions,
		locks:       newKeyedMutex(),
		log:         log,
		newID:       uuid.NewString,
	}
}

// WithReadStateRecorder plugs a persistence hook behind MarkAsRead.
func (s *ChatService) WithReadStateRecorder(recorder contract.ReadStateRecorder) *ChatService {
	s.readState = recorder
	return s
}

// Connect resolves the credential and attaches the sink.
func (s *ChatService) Connect(ctx context.Context, credential string, sink contract.EventSink) (Connection, error) {
	user, err := s.Authenticate(ctx, credential)
	if err != nil {
		return Connection{}, err
	}
	return s.Attach(ctx, user, sink), nil
}

// Authenticate resolves a credential without registering anything, so a
// transport can refuse or fail a handshake without peers noticing.
func (s *ChatService) Authenticate(ctx context.Context, credential string) (domain.User, error) {
	user, err := s.identity.Resolve(ctx, credential)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", errors.ErrUnauthenticated, err)
	}
	return user, nil
}

// Attach registers a connection under the personal group of an
// authenticated user. Presence is announced on the first connection only.
func (s *ChatService) Attach(ctx context.Context, user domain.User, sink contract.EventSink) Connection {
	conn := Connection{ID: s.newID(), User: user}
	if first := s.registry.Register(conn.ID, user.ID, sink); first {
		s.presence.Online(ctx, user, nil)
	}
	s.log.Debug("Connection registered", "connection_id", conn.ID, "user_id", user.ID)
	return conn
}

// Disconnect removes the connection from every group at once. The user goes
// offline when it was their last connection.
func (s *ChatService) Disconnect(ctx context.Context, connID string) {
	departure, ok := s.registry.Unregister(connID)
	if !ok {
		return
	}
	s.log.Debug("Connection unregistered", "connection_id", connID, "user_id", departure.UserID, "last", departure.LastConnection)
	if departure.LastConnection {
		s.presence.Offline(ctx, s.user(ctx, departure.UserID), departure.Rooms)
	}
}

func (s *ChatService) JoinRoom(ctx context.Context, connID, roomID string) error {
	return s.rooms.Join(ctx, connID, roomID)
}

func (s *ChatService) LeaveRoom(ctx context.Context, connID, roomID string) error {
	return s.rooms.Leave(ctx, connID, roomID)
}

// SendMessage checks room access on every call, persists the message and only
// then delivers it. Sends into one room are serialised so that peers receive
// them in commit order.
func (s *ChatService) SendMessage(ctx context.Context, connID string, draft domain.Draft) (domain.Message, error) {
	user, err := s.connectionUser(ctx, connID)
	if err != nil {
		return domain.Message{}, err
	}
	if draft.RoomID != nil {
		room, err := s.rooms.Authorize(ctx, *draft.RoomID, user.ID)
		if err != nil {
			s.log.Debug("Send refused", "user_id", user.ID, "room_id", *draft.RoomID, "error", err)
			return domain.Message{}, err
		}
		if room.IsArchived {
			return domain.Message{}, fmt.Errorf("room %s: %w", room.ID, errors.ErrRoomArchived)
		}
	}
	draft.Mentions = s.mentions.Resolve(ctx, draft.Mentions, draft.Content)

	unlock := s.locks.Lock(scopeKey(draft.RoomID, user.ID))
	defer unlock()

	message, err := s.messages.Create(ctx, user, draft)
	if err != nil {
		s.log.Debug("Message rejected", "user_id", user.ID, "error", err)
		return domain.Message{}, err
	}
	s.broadcaster.Broadcast(ctx, deliveryGroup(message), event.MessageReceived, message)
	for _, mentioned := range message.Mentions {
		s.broadcaster.Broadcast(ctx, domain.UserGroup(mentioned), event.MentionReceived, message)
	}
	return message, nil
}

func (s *ChatService) UpdateMessage(ctx context.Context, connID, messageID, content string) (domain.Message, error) {
	user, err := s.connectionUser(ctx, connID)
	if err != nil {
		return domain.Message{}, err
	}
	existing, err := s.messages.Find(ctx, messageID)
	if err != nil {
		return domain.Message{}, err
	}

	unlock := s.locks.Lock(scopeKey(existing.RoomID, existing.SenderID))
	defer unlock()

	message, err := s.messages.Update(ctx, messageID, content, user.ID)
	if err != nil {
		s.log.Debug("Update rejected", "user_id", user.ID, "message_id", messageID, "error", err)
		return domain.Message{}, err
	}
	s.broadcaster.Broadcast(ctx, deliveryGroup(message), event.MessageUpdated, message)
	return message, nil
}

func (s *ChatService) DeleteMessage(ctx context.Context, connID, messageID string) (domain.Message, error) {
	user, err := s.connectionUser(ctx, connID)
	if err != nil {
		return domain.Message{}, err
	}
	existing, err := s.messages.Find(ctx, messageID)
	if err != nil {
		return domain.Message{}, err
	}

	unlock := s.locks.Lock(scopeKey(existing.RoomID, existing.SenderID))
	defer unlock()

	message, err := s.messages.SoftDelete(ctx, messageID, user.ID)
	if err != nil {
		s.log.Debug("Delete rejected", "user_id", user.ID, "message_id", messageID, "error", err)
		return domain.Message{}, err
	}
	s.broadcaster.Broadcast(ctx, deliveryGroup(message), event.MessageDeleted, event.Deleted{
		MessageID: message.ID,
		RoomID:    message.RoomID,
		DeletedAt: *message.DeletedAt,
	})
	return message, nil
}

func (s *ChatService) StartTyping(ctx context.Context, connID, roomID string) error {
	user, err := s.roomUser(ctx, connID, roomID)
	if err != nil {
		return err
	}
	s.presence.StartTyping(ctx, user, roomID)
	return nil
}

func (s *ChatService) StopTyping(ctx context.Context, connID, roomID string) error {
	user, err := s.roomUser(ctx, connID, roomID)
	if err != nil {
		return err
	}
	s.presence.StopTyping(ctx, user, roomID)
	return nil
}

// MarkAsRead tells the room a user caught up. Read state is only persisted
// when a recorder is configured.
func (s *ChatService) MarkAsRead(ctx context.Context, connID, roomID string, messageID *string) error {
	user, err := s.roomUser(ctx, connID, roomID)
	if err != nil {
		return err
	}
	if s.readState != nil {
		if err = s.readState.RecordRead(ctx, user.ID, roomID, messageID); err != nil {
			return storeFailure(err)
		}
	}
	s.broadcaster.Broadcast(ctx, domain.RoomGroup(roomID), event.MessageRead, event.Read{
		RoomID:    roomID,
		UserID:    user.ID,
		MessageID: messageID,
	})
	return nil
}

// Acknowledge answers a client request on the requesting connection only.
// Requests without an id are not acknowledged.
func (s *ChatService) Acknowledge(ctx context.Context, connID, requestID, op string, result any, err error) {
	if requestID == "" {
		return
	}
	ack := event.AckPayload{
		RequestID: requestID,
		Op:        op,
		OK:        err == nil,
		Code:      errors.Code(err).String(),
	}
	if err != nil {
		ack.Error = errors.Message(err)
		s.log.Debug("Request failed", "connection_id", connID, "op", op, "error", err)
	} else {
		ack.Data = result
	}
	s.broadcaster.SendTo(ctx, connID, event.Ack, ack)
}

// OnlineOf keeps the users holding at least one live connection.
func (s *ChatService) OnlineOf(userIDs []string) []string {
	return lo.Filter(userIDs, func(userID string, _ int) bool { return s.registry.Online(userID) })
}

func (s *ChatService) Stats() contract.RegistryStats {
	return s.registry.Stats()
}

func (s *ChatService) connectionUser(ctx context.Context, connID string) (domain.User, error) {
	userID, ok := s.registry.UserOf(connID)
	if !ok {
		return domain.User{}, errors.ErrUnauthenticated
	}
	return s.user(ctx, userID), nil
}

func (s *ChatService) roomUser(ctx context.Context, connID, roomID string) (domain.User, error) {
	user, err := s.connectionUser(ctx, connID)
	if err != nil {
		return domain.User{}, err
	}
	if _, err = s.rooms.Authorize(ctx, roomID, user.ID); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// user falls back to the bare id when the profile is unavailable.
func (s *ChatService) user(ctx context.Context, userID string) domain.User {
	user, err := s.users.Find(ctx, userID)
	if err != nil {
		return domain.User{ID: userID, Name: userID}
	}
	return user
}

func scopeKey(roomID *string, userID string) string {
	if roomID != nil {
		return "room:" + *roomID
	}
	return "user:" + userID
}

// deliveryGroup is the room of the message, or the sender's own channel for
// messages scoped to a project or task only.
func deliveryGroup(message domain.Message) domain.GroupKey {
	if message.RoomID != nil {
		return domain.RoomGroup(*message.RoomID)
	}
	return domain.UserGroup(message.SenderID)
}
