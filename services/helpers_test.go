package services

import (
	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/errors"
	"chat-hub/repositories"
	"chat-hub/runtime"
	"chat-hub/sink"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// staticIdentity resolves credentials equal to a user id.
type staticIdentity map[string]domain.User

func (s staticIdentity) Resolve(_ context.Context, credential string) (domain.User, error) {
	user, ok := s[credential]
	if !ok {
		return domain.User{}, errors.ErrUnauthenticated
	}
	return user, nil
}

// stepClock moves forward by one second on every call.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

var (
	alice = domain.User{ID: "1", Name: "Alice", Handle: "alice"}
	bob   = domain.User{ID: "2", Name: "Bob", Handle: "bob"}
	carol = domain.User{ID: "3", Name: "Carol", Handle: "carol"}
)

type hub struct {
	t        *testing.T
	chat     *ChatService
	rooms    *RoomService
	messages *MessageService
	presence *PresenceService
	registry *runtime.Registry
	roomRepo *repositories.RoomRepository
	msgRepo  *repositories.MessageRepository
	userRepo *repositories.UserRepository
}

func newHub(t *testing.T) *hub {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := discardLogger()
	ctx := context.Background()
	userRepo := repositories.NewUserRepository(db)
	roomRepo := repositories.NewRoomRepository(db)
	msgRepo := repositories.NewMessageRepository(db, log)
	for _, u := range []domain.User{alice, bob, carol} {
		require.NoError(t, userRepo.Save(ctx, u))
	}

	registry := runtime.NewRegistry()
	broadcaster := runtime.NewBroadcaster(registry, log)
	clock := newStepClock()

	rooms := NewRoomService(roomRepo, userRepo, registry, broadcaster, log)
	rooms.now = clock.Now
	messages := NewMessageService(msgRepo, nil, nil, nil, MessageSettings{MaxContentLength: 5000, DefaultPageSize: 50, MaxPageSize: 100}, log)
	messages.now = clock.Now
	presence := NewPresenceService(roomRepo, broadcaster, log)
	mentions := NewMentionResolver(userRepo, log)
	identity := staticIdentity{alice.ID: alice, bob.ID: bob, carol.ID: carol}
	chat := NewChatService(registry, broadcaster, identity, userRepo, rooms, messages, presence, mentions, log)

	return &hub{
		t:        t,
		chat:     chat,
		rooms:    rooms,
		messages: messages,
		presence: presence,
		registry: registry,
		roomRepo: roomRepo,
		msgRepo:  msgRepo,
		userRepo: userRepo,
	}
}

func (h *hub) connect(user domain.User) (Connection, *sink.ConnectionSink) {
	h.t.Helper()
	s := sink.NewConnectionSink(64)
	conn, err := h.chat.Connect(context.Background(), user.ID, s)
	require.NoError(h.t, err)
	return conn, s
}

func (h *hub) room(room domain.Room) {
	h.t.Helper()
	require.NoError(h.t, h.roomRepo.Save(context.Background(), room))
}

// drain empties a sink without blocking.
func drain(s *sink.ConnectionSink) []event.Event {
	var events []event.Event
	for {
		select {
		case e := <-s.Events():
			events = append(events, e)
		default:
			return events
		}
	}
}

func named(events []event.Event, name event.Name) []event.Event {
	var found []event.Event
	for _, e := range events {
		if e.Name == name {
			found = append(found, e)
		}
	}
	return found
}

var _ contract.IdentityResolver = staticIdentity{}
