package workers

import (
	"chat-hub/contract"
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Queue is a bounded buffer whose fill level is worth watching.
type Queue interface {
	Len() int
	Cap() int
	Dropped() int64
}

// NamedQueue labels a Queue in telemetry output.
type NamedQueue struct {
	Name  string
	Queue Queue
}

// TelemetryWorker periodically logs the registry counters together with the
// resource usage of the process and the fill level of internal queues.
// Reading the queues never blocks their producers.
type TelemetryWorker struct {
	log      *slog.Logger
	registry contract.IRegistry
	queues   []NamedQueue
	interval time.Duration
}

const defaultTelemetryInterval = 30 * time.Second

func NewTelemetryWorker(log *slog.Logger, registry contract.IRegistry, interval time.Duration) *TelemetryWorker {
	if interval <= 0 {
		interval = defaultTelemetryInterval
	}
	return &TelemetryWorker{log: log, registry: registry, interval: interval}
}

func (w *TelemetryWorker) WithQueues(queues ...NamedQueue) *TelemetryWorker {
	w.queues = append(w.queues, queues...)
	return w
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.report(p)
		}
	}
}

func (w *TelemetryWorker) report(p *process.Process) {
	stats := w.registry.Stats()
	attrs := []any{
		"connections", stats.Connections,
		"users", stats.Users,
		"groups", stats.Groups,
		"goroutines", runtime.NumGoroutine(),
	}
	rss, cpu, err := selfStats(p)
	if err != nil {
		w.log.Debug("Failed to collect self stats", "error", err)
	} else {
		attrs = append(attrs, "rss_bytes", rss, "cpu_percent", cpu)
	}
	w.log.Info("Hub telemetry", attrs...)

	for _, q := range w.queues {
		length, capacity := q.Queue.Len(), q.Queue.Cap()
		level := slog.LevelDebug
		if capacity > 0 && length*10 >= capacity*8 {
			level = slog.LevelWarn
		}
		w.log.Log(context.Background(), level, "Queue usage",
			"queue", q.Name, "length", length, "capacity", capacity, "dropped", q.Queue.Dropped())
	}
}

func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
