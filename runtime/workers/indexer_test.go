package workers

import (
	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/mocks"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestIndexerWorker_AppliesJobs(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	index := mocks.NewMockIMessageIndex(ctrl)

	message := domain.Message{ID: "m1", Content: "release notes", RoomID: lo.ToPtr("general")}
	done := make(chan struct{})
	gomock.InOrder(
		index.EXPECT().Index(message).Return(nil).Times(1),
		index.EXPECT().Remove("m1").DoAndReturn(func(string) error {
			close(done)
			return nil
		}).Times(1),
	)

	worker := NewIndexerWorker(log, index, nil, 4)
	req.True(worker.Submit(contract.IndexJob{Message: message}))
	req.True(worker.Submit(contract.IndexJob{Message: message, Remove: true}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("Jobs were not applied")
	}
}

func TestIndexerWorker_Submit_DropsWhenFull(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	worker := NewIndexerWorker(log, mocks.NewMockIMessageIndex(ctrl), nil, 1)

	req.True(worker.Submit(contract.IndexJob{Message: domain.Message{ID: "m1"}}))
	req.False(worker.Submit(contract.IndexJob{Message: domain.Message{ID: "m2"}}))
	req.Equal(int64(1), worker.Dropped())
}

func TestIndexerWorker_ReindexesOnStart(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	index := mocks.NewMockIMessageIndex(ctrl)
	messages := mocks.NewMockIMessageRepository(ctrl)

	live := domain.Message{ID: "m1", RoomID: lo.ToPtr("general")}
	messages.EXPECT().Query(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, predicate func(domain.Message) bool) ([]domain.Message, error) {
			req.False(predicate(domain.Message{ID: "no-room"}))
			req.False(predicate(domain.Message{ID: "gone", RoomID: lo.ToPtr("general"), DeletedAt: lo.ToPtr(time.Now())}))
			req.True(predicate(live))
			return []domain.Message{live}, nil
		}).Times(1)
	index.EXPECT().Index(live).Return(fmt.Errorf("transient")).Times(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Then a failing document does not stop the worker
	req.NoError(NewIndexerWorker(log, index, messages, 1).Run(ctx))
}

func TestIndexerWorker_ReindexFailure_IsReported(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	messages := mocks.NewMockIMessageRepository(ctrl)
	messages.EXPECT().Query(gomock.Any(), gomock.Any()).Return(nil, fmt.Errorf("badger closed")).Times(1)

	err := NewIndexerWorker(log, mocks.NewMockIMessageIndex(ctrl), messages, 1).Run(context.Background())

	req.Error(err)
}
