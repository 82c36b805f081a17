// Package hub assembles the chat core: stores, search index, services and
// the background workers serving them. Transports are built on top of it.
package hub

import (
	"chat-hub/auth"
	"chat-hub/contract"
	"chat-hub/index"
	"chat-hub/moderation"
	"chat-hub/repositories"
	"chat-hub/runtime"
	"chat-hub/runtime/workers"
	"chat-hub/services"
	"log/slog"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
)

type Options struct {
	DB                *badger.DB
	IndexConfig       bluge.Config
	Tokens            *auth.TokenManager
	Moderator         *moderation.Moderator // optional
	Messages          services.MessageSettings
	IndexBufferSize   int
	TelemetryInterval time.Duration
}

type Hub struct {
	Registry  *runtime.Registry
	Users     *repositories.UserRepository
	Identity  *auth.TokenResolver
	Index     *index.MessageIndex
	Indexer   *workers.IndexerWorker
	Telemetry *workers.TelemetryWorker
	Chat      *services.ChatService
	Rooms     *services.RoomService
	Messages  *services.MessageService
}

func New(opts Options, log *slog.Logger) (*Hub, error) {
	messageIndex, err := index.NewMessageIndex(opts.IndexConfig, log)
	if err != nil {
		return nil, err
	}

	users := repositories.NewUserRepository(opts.DB)
	rooms := repositories.NewRoomRepository(opts.DB)
	messages := repositories.NewMessageRepository(opts.DB, log)

	registry := runtime.NewRegistry()
	broadcaster := runtime.NewBroadcaster(registry, log)
	identity := auth.NewTokenResolver(opts.Tokens, users, log)
	indexer := workers.NewIndexerWorker(log, messageIndex, messages, opts.IndexBufferSize)

	roomService := services.NewRoomService(rooms, users, registry, broadcaster, log)
	messageService := services.NewMessageService(messages, messageIndex, indexer, opts.Moderator, opts.Messages, log)
	presence := services.NewPresenceService(rooms, broadcaster, log)
	mentions := services.NewMentionResolver(users, log)
	chat := services.NewChatService(registry, broadcaster, identity, users, roomService, messageService, presence, mentions, log)

	return &Hub{
		Registry:  registry,
		Users:     users,
		Identity:  identity,
		Index:     messageIndex,
		Indexer:   indexer,
		Telemetry: workers.NewTelemetryWorker(log, registry, opts.TelemetryInterval).
			WithQueues(workers.NamedQueue{Name: "index", Queue: indexer}),
		Chat:      chat,
		Rooms:     roomService,
		Messages:  messageService,
	}, nil
}

// Workers returns the background workers to hand to a supervisor.
func (h *Hub) Workers() []contract.Worker {
	return []contract.Worker{h.Indexer, h.Telemetry}
}

func (h *Hub) Close() error {
	return h.Index.Close()
}
