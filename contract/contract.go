//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/domain/search"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging during supervision, so workers don't carry a name.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the outbound side of one connection.
// Consume must never block the caller.
type EventSink interface {
	Consume(ctx context.Context, e event.Event) error
	Close()
}

// Departure describes what an unregistered connection left behind.
type Departure struct {
	ConnectionID   string
	UserID         string
	Rooms          []string
	LastConnection bool
}

type RegistryStats struct {
	Connections int `json:"connections"`
	Users       int `json:"users"`
	Groups      int `json:"groups"`
}

type IRegistry interface {
	Register(connID, userID string, sink EventSink) bool
	Unregister(connID string) (Departure, bool)
	Join(connID string, group domain.GroupKey) bool
	Leave(connID string, group domain.GroupKey) bool
	Sinks(group domain.GroupKey) []EventSink
	Sink(connID string) (EventSink, bool)
	UserOf(connID string) (string, bool)
	IsMember(connID string, group domain.GroupKey) bool
	Online(userID string) bool
	Stats() RegistryStats
}

type IBroadcaster interface {
	Broadcast(ctx context.Context, group domain.GroupKey, name event.Name, payload any) int
	SendTo(ctx context.Context, connID string, name event.Name, payload any) bool
}

type IUserRepository interface {
	Find(ctx context.Context, id string) (domain.User, error)
	FindByHandle(ctx context.Context, handle string) (domain.User, error)
	Save(ctx context.Context, user domain.User) error
}

type IRoomRepository interface {
	Find(ctx context.Context, id string) (domain.Room, error)
	Save(ctx context.Context, room domain.Room) error
	// Mutate applies fn to the stored room atomically. fn reports whether it
	// changed the room; its error is returned unwrapped.
	Mutate(ctx context.Context, id string, fn func(room *domain.Room) (bool, error)) (domain.Room, error)
	List(ctx context.Context) ([]domain.Room, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Room, error)
}

type IMessageRepository interface {
	Save(ctx context.Context, message domain.Message) error
	Update(ctx context.Context, message domain.Message) error
	Find(ctx context.Context, id string) (domain.Message, error)
	ListByRoom(ctx context.Context, roomID string, offset, limit int) ([]domain.Message, error)
	Query(ctx context.Context, predicate func(domain.Message) bool) ([]domain.Message, error)
}

// IdentityResolver turns a connection credential into a user.
// Authentication itself lives outside of this service.
type IdentityResolver interface {
	Resolve(ctx context.Context, credential string) (domain.User, error)
}

type IMessageIndex interface {
	Index(message domain.Message) error
	Remove(messageID string) error
	Search(ctx context.Context, roomID string, query search.Query) ([]string, error)
	Close() error
}

type IndexJob struct {
	Message domain.Message
	Remove  bool
}

// IIndexQueue hands index work to the background indexer.
// Submit returns false when the job was dropped.
type IIndexQueue interface {
	Submit(job IndexJob) bool
}

// ReadStateRecorder is an optional hook for read receipts.
// Nothing is persisted when no recorder is configured.
type ReadStateRecorder interface {
	RecordRead(ctx context.Context, userID, roomID string, messageID *string) error
}
