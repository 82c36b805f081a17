package runtime

import (
	"chat-hub/domain"
	"chat-hub/domain/event"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type Sink struct {
	id string
}

func (s *Sink) Consume(ctx context.Context, e event.Event) error {
	return nil
}

func (s *Sink) Close() {}

func TestRegistry_Register_JoinsPersonalGroup(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connID := uuid.NewString()
	sink := &Sink{id: connID}

	// When a user connects for the first time
	first := registry.Register(connID, "1", sink)

	// Then the connection is reachable through the user group
	req.True(first)
	req.True(registry.Online("1"))
	req.True(registry.IsMember(connID, domain.UserGroup("1")))
	req.Equal([]*Sink{sink}, toSinks(registry, domain.UserGroup("1")))

	userID, ok := registry.UserOf(connID)
	req.True(ok)
	req.Equal("1", userID)
}

func TestRegistry_Register_SecondConnectionIsNotFirst(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	req.True(registry.Register("c1", "1", &Sink{}))
	req.False(registry.Register("c2", "1", &Sink{}))
	req.Len(registry.Sinks(domain.UserGroup("1")), 2)
	req.Equal(1, registry.Stats().Users)
	req.Equal(2, registry.Stats().Connections)
}

func TestRegistry_Join_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Register("c1", "1", &Sink{})
	group := domain.RoomGroup("general")

	req.True(registry.Join("c1", group))
	req.False(registry.Join("c1", group))
	req.Len(registry.Sinks(group), 1)

	// Unknown connections never join
	req.False(registry.Join("unknown", group))
}

func TestRegistry_Leave_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Register("c1", "1", &Sink{})
	group := domain.RoomGroup("general")
	registry.Join("c1", group)

	req.True(registry.Leave("c1", group))
	req.False(registry.Leave("c1", group))
	req.Empty(registry.Sinks(group))

	// Empty groups are dropped, only the personal group remains
	req.Equal(1, registry.Stats().Groups)
}

func TestRegistry_Unregister_RemovesFromEveryGroup(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Register("c1", "1", &Sink{})
	registry.Register("c2", "1", &Sink{})
	registry.Join("c1", domain.RoomGroup("general"))
	registry.Join("c1", domain.RoomGroup("random"))

	// When the first connection drops
	departure, ok := registry.Unregister("c1")

	// Then the user is still online through the second one
	req.True(ok)
	req.Equal("1", departure.UserID)
	req.ElementsMatch([]string{"general", "random"}, departure.Rooms)
	req.False(departure.LastConnection)
	req.True(registry.Online("1"))
	req.Empty(registry.Sinks(domain.RoomGroup("general")))
	req.Empty(registry.Sinks(domain.RoomGroup("random")))

	// When the last connection drops
	departure, ok = registry.Unregister("c2")
	req.True(ok)
	req.True(departure.LastConnection)
	req.False(registry.Online("1"))
	req.Equal(0, registry.Stats().Groups)

	// Unregistering twice is harmless
	_, ok = registry.Unregister("c2")
	req.False(ok)
}

func TestRegistry_ConcurrentJoinLeave(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	group := domain.RoomGroup("general")
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			connID := fmt.Sprintf("c%d", i)
			registry.Register(connID, fmt.Sprintf("%d", i%5), &Sink{})
			registry.Join(connID, group)
			_ = registry.Sinks(group)
			if i%2 == 0 {
				registry.Unregister(connID)
			}
		}(i)
	}
	wg.Wait()

	req.Len(registry.Sinks(group), 25)
	req.Equal(25, registry.Stats().Connections)
}

func toSinks(registry *Registry, group domain.GroupKey) []*Sink {
	var sinks []*Sink
	for _, s := range registry.Sinks(group) {
		sinks = append(sinks, s.(*Sink))
	}
	return sinks
}
