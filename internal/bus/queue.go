package bus

import (
	"context"
	"sync"
)

// Queue is an unbounded FIFO delivery queue for one topic. Handles returned
// by [Bus.Subscribe] for the same topic are the same Queue, which gives
// competing-consumer semantics when more than one goroutine drains it.
type Queue struct {
	mu    sync.Mutex
	items []Event
	wake  chan struct{} // 1-slot wakeup signal for blocked receivers
}

func newQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

func (q *Queue) put(ev Event) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Receive blocks until an event is available or ctx is cancelled. Each event
// is delivered to exactly one receiver.
func (q *Queue) Receive(ctx context.Context) (Event, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			ev := q.items[0]
			q.items = q.items[1:]
			if len(q.items) == 0 {
				q.items = nil // let delivered payloads be collected
			}
			remaining := len(q.items)
			q.mu.Unlock()

			// Re-signal so a competing receiver is not left parked while
			// events remain queued.
			if remaining > 0 {
				select {
				case q.wake <- struct{}{}:
				default:
				}
			}
			return ev, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-q.wake:
		}
	}
}

// Len reports the number of events currently queued. Intended for tests and
// status reporting; the value is stale as soon as it is returned.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
