package workers

import (
	"chat-hub/contract"
	"chat-hub/mocks"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestTelemetryWorker_ReportsRegistryStats(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	registry := mocks.NewMockIRegistry(ctrl)
	registry.EXPECT().Stats().Return(contract.RegistryStats{Connections: 2, Users: 1, Groups: 3}).MinTimes(1)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req.NoError(NewTelemetryWorker(log, registry, 10*time.Millisecond).Run(ctx))
}

type fakeQueue struct{ length, capacity int }

func (q fakeQueue) Len() int       { return q.length }
func (q fakeQueue) Cap() int       { return q.capacity }
func (q fakeQueue) Dropped() int64 { return 0 }

func TestTelemetryWorker_ReadsQueues(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	registry := mocks.NewMockIRegistry(ctrl)
	registry.EXPECT().Stats().Return(contract.RegistryStats{}).AnyTimes()

	indexer := NewIndexerWorker(log, nil, nil, 4)
	req.True(indexer.Submit(contract.IndexJob{}))
	req.Equal(1, indexer.Len())
	req.Equal(4, indexer.Cap())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// Then sampling full and empty queues does not block
	w := NewTelemetryWorker(log, registry, 5*time.Millisecond).
		WithQueues(NamedQueue{Name: "index", Queue: indexer}, NamedQueue{Name: "full", Queue: fakeQueue{length: 9, capacity: 10}})
	req.NoError(w.Run(ctx))
}
