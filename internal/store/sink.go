package store

import (
	"log/slog"
	"sync"

	"figgie-server/internal/game"
)

// AsyncSink decouples event producers from a slow destination. Emit
// appends to an unbounded in-memory queue and returns immediately; a
// single goroutine drains the queue in order, so the destination sees
// events exactly as the engine emitted them. Close stops intake and
// flushes everything that was queued.
type AsyncSink struct {
	dst    game.Sink
	logger *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []game.Event
	closed bool
	done   chan struct{}
}

// NewAsyncSink starts the writer goroutine.
func NewAsyncSink(dst game.Sink, logger *slog.Logger) *AsyncSink {
	s := &AsyncSink{
		dst:    dst,
		logger: logger.With("component", "event-sink"),
		done:   make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

// Emit queues the event. It never blocks on the destination, so it is
// safe to call from inside the engine's critical section.
func (s *AsyncSink) Emit(ev game.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.logger.Warn("event after close dropped", "kind", ev.Kind)
		return
	}
	s.queue = append(s.queue, ev)
	s.cond.Signal()
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		batch := s.queue
		s.queue = nil
		closed := s.closed
		s.mu.Unlock()

		for _, ev := range batch {
			s.dst.Emit(ev)
		}
		if closed && len(batch) == 0 {
			return
		}
	}
}

// Close stops intake and blocks until every queued event has been
// delivered.
func (s *AsyncSink) Close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Signal()
	s.mu.Unlock()
	<-s.done
}
