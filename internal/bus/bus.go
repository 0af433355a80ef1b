// Package bus provides the topic-keyed asynchronous event bus that all
// pipeline stages publish to and consume from.
//
// Topics are not declared up front: the first Publish or Subscribe for a
// topic lazily creates its delivery queue. Repeated Subscribe calls for the
// same topic return a handle to the same queue, so multiple consumers of one
// topic compete for events rather than each receiving a copy. Within a topic
// events are delivered FIFO; across topics there is no ordering guarantee.
//
// Publish never blocks. Receive blocks until an event is available or the
// supplied context is cancelled. Nothing survives a process restart.
package bus

import "sync"

// Event is a single bus message. Payload is owned by the publisher until
// dequeued, after which ownership transfers to the receiving consumer.
type Event struct {
	Topic   string
	Payload any
}

// Bus is the process-wide publish/subscribe hub. The zero value is not
// usable; create one with [New]. All methods are safe for concurrent use.
type Bus struct {
	mu     sync.Mutex
	queues map[string]*Queue
}

// New returns an empty Bus with no topics.
func New() *Bus {
	return &Bus{queues: make(map[string]*Queue)}
}

// Publish enqueues payload onto the topic's queue, creating the queue if
// this is the first touch of the topic. It never blocks.
func (b *Bus) Publish(topic string, payload any) {
	b.queue(topic).put(Event{Topic: topic, Payload: payload})
}

// Subscribe returns the queue handle for topic, creating it if absent.
// All subscribers of one topic share the same queue.
func (b *Bus) Subscribe(topic string) *Queue {
	return b.queue(topic)
}

func (b *Bus) queue(topic string) *Queue {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[topic]
	if !ok {
		q = newQueue()
		b.queues[topic] = q
	}
	return q
}
