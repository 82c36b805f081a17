package workers

import (
	"chat-hub/contract"
	"chat-hub/domain"
	"context"
	"log/slog"
	"sync/atomic"
)

// IndexerWorker applies index jobs to the search index off the request path.
// Producers never wait: a full queue drops the job and the message simply
// stays unsearchable until its next edit or the next reindex.
type IndexerWorker struct {
	log       *slog.Logger
	index     contract.IMessageIndex
	messages  contract.IMessageRepository
	jobs      chan contract.IndexJob
	reindexed atomic.Bool
	dropped   atomic.Int64
}

func NewIndexerWorker(log *slog.Logger, index contract.IMessageIndex, messages contract.IMessageRepository, bufferSize int) *IndexerWorker {
	return &IndexerWorker{
		log:      log,
		index:    index,
		messages: messages,
		jobs:     make(chan contract.IndexJob, bufferSize),
	}
}

func (w *IndexerWorker) Submit(job contract.IndexJob) bool {
	select {
	case w.jobs <- job:
		return true
	default:
		w.dropped.Add(1)
		return false
	}
}

func (w *IndexerWorker) Dropped() int64 {
	return w.dropped.Load()
}

func (w *IndexerWorker) Len() int { return len(w.jobs) }

func (w *IndexerWorker) Cap() int { return cap(w.jobs) }

// Run rebuilds the index from the store on its first start, then consumes jobs
// until the context is canceled.
func (w *IndexerWorker) Run(ctx context.Context) error {
	if w.messages != nil && w.reindexed.CompareAndSwap(false, true) {
		if err := w.Reindex(ctx); err != nil {
			w.reindexed.Store(false)
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping indexer")
			return nil
		case job := <-w.jobs:
			w.apply(job)
		}
	}
}

// Reindex indexes every live room message of the store.
func (w *IndexerWorker) Reindex(ctx context.Context) error {
	messages, err := w.messages.Query(ctx, func(m domain.Message) bool {
		return m.RoomID != nil && !m.IsDeleted()
	})
	if err != nil {
		return err
	}
	for _, message := range messages {
		if err = w.index.Index(message); err != nil {
			w.log.Warn("Message not reindexed", "message_id", message.ID, "error", err)
		}
	}
	w.log.Info("Search index rebuilt", "messages", len(messages))
	return nil
}

func (w *IndexerWorker) apply(job contract.IndexJob) {
	var err error
	if job.Remove {
		err = w.index.Remove(job.Message.ID)
	} else {
		err = w.index.Index(job.Message)
	}
	if err != nil {
		w.log.Warn("Index job failed", "message_id", job.Message.ID, "remove", job.Remove, "error", err)
	}
}
