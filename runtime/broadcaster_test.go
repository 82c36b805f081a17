package runtime

import (
	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/errors"
	"chat-hub/mocks"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestBroadcaster_Broadcast_SkipsFullSinks(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	registry := NewRegistry()
	healthy := mocks.NewMockEventSink(ctrl)
	slow := mocks.NewMockEventSink(ctrl)
	registry.Register("c1", "1", healthy)
	registry.Register("c2", "2", slow)
	group := domain.RoomGroup("general")
	registry.Join("c1", group)
	registry.Join("c2", group)

	// Given one connection with a full buffer
	healthy.EXPECT().Consume(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e event.Event) error {
			req.Equal(event.TypingStarted, e.Name)
			req.Equal(group, e.Group)
			return nil
		}).Times(1)
	slow.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(errors.ErrSinkFull).Times(1)

	// When broadcasting to the room
	delivered := NewBroadcaster(registry, log).Broadcast(ctx, group, event.TypingStarted, event.Typing{RoomID: "general"})

	// Then only the healthy connection counts as delivered
	req.Equal(1, delivered)
}

func TestBroadcaster_Broadcast_EmptyGroup(t *testing.T) {
	req := require.New(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	delivered := NewBroadcaster(NewRegistry(), log).Broadcast(context.Background(), domain.RoomGroup("nobody"), event.MessageReceived, nil)

	req.Equal(0, delivered)
}

func TestBroadcaster_SendTo_OnlyTargetsOneConnection(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	registry := NewRegistry()
	target := mocks.NewMockEventSink(ctrl)
	other := mocks.NewMockEventSink(ctrl)
	registry.Register("c1", "1", target)
	registry.Register("c2", "1", other)

	target.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(nil).Times(1)
	other.EXPECT().Consume(gomock.Any(), gomock.Any()).Times(0)

	broadcaster := NewBroadcaster(registry, log)
	req.True(broadcaster.SendTo(context.Background(), "c1", event.Ack, event.AckPayload{RequestID: "r1"}))
	req.False(broadcaster.SendTo(context.Background(), "unknown", event.Ack, nil))
}
