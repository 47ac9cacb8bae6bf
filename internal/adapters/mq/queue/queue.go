// Package queue buffers light events between the HTTP handlers and the
// ingest worker.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/huecast/internal/domain/model"
	"github.com/okian/huecast/pkg/metrics"
)

const defaultQueueCapacity = 10000

// Event is the payload type flowing through the queue.
type Event = model.Event

// Queue provides non-blocking enqueue and channel-based dequeue.
type Queue interface {
	// Enqueue adds an event. It returns ErrFull or ErrClosed when the
	// event was not accepted.
	Enqueue(ctx context.Context, e Event) error

	// Dequeue returns the channel events are delivered on. The channel is
	// closed by Close once drained.
	Dequeue() <-chan Event

	Len() int
	Capacity() int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue with a buffered channel. Events are
// delivered in enqueue order.
type InMemoryQueue struct {
	events   chan Event
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.events = make(chan Event, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	q.observe()
	return q
}

// Enqueue adds an event without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, e Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		return fmt.Errorf("enqueue: %w", err)
	}

	select {
	case q.events <- e:
		metrics.RecordQueueEnqueue()
		q.observe()
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "full")
		return ErrFull
	}
}

// Dequeue returns the delivery channel.
func (q *InMemoryQueue) Dequeue() <-chan Event {
	return q.events
}

// Len returns the number of buffered events.
func (q *InMemoryQueue) Len() int {
	n := len(q.events)
	q.observe()
	return n
}

// Capacity returns the buffer size.
func (q *InMemoryQueue) Capacity() int {
	return q.capacity
}

// Close stops accepting events. Buffered events stay readable.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.events)
	q.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *InMemoryQueue) observe() {
	n := len(q.events)
	metrics.UpdateQueueSize(n)
	metrics.UpdateQueueUtilization(float64(n) / float64(q.capacity))
}
