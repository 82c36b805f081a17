package runtime

import (
	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/domain/event"
	"context"
	"log/slog"
	"time"
)

// Broadcaster fans one event out to every connection of a group.
// Delivery is fire-and-forget: a slow connection loses the event,
// the others are not held back.
type Broadcaster struct {
	registry contract.IRegistry
	log      *slog.Logger
	now      func() time.Time
}

func NewBroadcaster(registry contract.IRegistry, log *slog.Logger) *Broadcaster {
	return &Broadcaster{registry: registry, log: log, now: time.Now}
}

// Broadcast returns the number of connections that accepted the event.
func (b *Broadcaster) Broadcast(ctx context.Context, group domain.GroupKey, name event.Name, payload any) int {
	sinks := b.registry.Sinks(group)
	if len(sinks) == 0 {
		return 0
	}
	evt := event.New(name, group, payload, b.now().UTC())
	delivered := 0
	for _, sink := range sinks {
		if err := sink.Consume(ctx, evt); err != nil {
			b.log.Debug("Event dropped", "group", group, "event", name, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

// SendTo delivers an event to one connection only.
func (b *Broadcaster) SendTo(ctx context.Context, connID string, name event.Name, payload any) bool {
	sink, ok := b.registry.Sink(connID)
	if !ok {
		return false
	}
	if err := sink.Consume(ctx, event.New(name, "", payload, b.now().UTC())); err != nil {
		b.log.Debug("Direct event dropped", "connection_id", connID, "event", name, "error", err)
		return false
	}
	return true
}
