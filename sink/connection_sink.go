package sink

import (
	"chat-hub/domain/event"
	"chat-hub/errors"
	"context"
	"sync"
	"sync/atomic"
)

// ConnectionSink is the outbound queue of one client connection.
// The transport drains Events() while producers push through Consume.
type ConnectionSink struct {
	mu      sync.RWMutex
	closed  bool
	events  chan event.Event
	dropped atomic.Uint64
}

func NewConnectionSink(bufferSize int) *ConnectionSink {
	return &ConnectionSink{events: make(chan event.Event, bufferSize)}
}

// Consume never blocks: when the buffer is full the event is dropped
// for this connection only.
func (s *ConnectionSink) Consume(_ context.Context, e event.Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return errors.ErrSinkClosed
	}
	select {
	case s.events <- e:
		return nil
	default:
		s.dropped.Add(1)
		return errors.ErrSinkFull
	}
}

func (s *ConnectionSink) Events() <-chan event.Event {
	return s.events
}

func (s *ConnectionSink) Dropped() uint64 {
	return s.dropped.Load()
}

// Close can be called more than once.
func (s *ConnectionSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}
