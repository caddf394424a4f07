package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrConsumerActive is returned when a second consumer tries to drain a Stream.
var ErrConsumerActive = errors.New("event stream already has a consumer")

// Handler receives events from a Stream consumer.
type Handler func(TaskEvent)

// Stream is an unbounded, ordered event queue.
// Any number of goroutines may Emit; exactly one consumer drains it, so
// rendering never interleaves. Emit never blocks and never drops events
// before Close.
type Stream struct {
	mu     sync.Mutex
	queue  []TaskEvent
	closed bool

	ready     chan struct{} // signaled when an event is queued
	done      chan struct{} // closed by Close
	consuming atomic.Bool
}

// NewStream creates an empty stream.
func NewStream() *Stream {
	return &Stream{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Emit appends an event. Events emitted after Close are discarded.
func (s *Stream) Emit(ev TaskEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Close stops accepting events. Queued events remain readable.
// Safe to call multiple times.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

// Len returns the number of queued, unread events.
func (s *Stream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Next blocks until an event is available. It returns false once the stream
// is closed and drained, or when ctx is done.
func (s *Stream) Next(ctx context.Context) (TaskEvent, bool) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue[0] = TaskEvent{}
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return ev, true
		}
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return TaskEvent{}, false
		}

		select {
		case <-s.ready:
		case <-s.done:
		case <-ctx.Done():
			return TaskEvent{}, false
		}
	}
}

// Consume drains the stream on the calling goroutine, passing every event to
// handler in order, until the stream is closed and empty or ctx is done.
// Only one Consume may run at a time.
func (s *Stream) Consume(ctx context.Context, handler Handler) error {
	if !s.consuming.CompareAndSwap(false, true) {
		return ErrConsumerActive
	}
	defer s.consuming.Store(false)

	for {
		ev, ok := s.Next(ctx)
		if !ok {
			return ctx.Err()
		}
		handler(ev)
	}
}

// Fanout returns a Handler that passes each event to every handler in order.
// Nil handlers are skipped.
func Fanout(handlers ...Handler) Handler {
	return func(ev TaskEvent) {
		for _, h := range handlers {
			if h != nil {
				h(ev)
			}
		}
	}
}
