package queue

import (
	"fmt"
	"sync"
)

// Policy - decides what Enqueue does when the queue is at capacity.
type Policy int

const (
	// PolicyBlock - the producer waits until a slot becomes free.
	PolicyBlock Policy = iota
	// PolicyDropOldest - the oldest queued message is evicted to make room.
	PolicyDropOldest
	// PolicyReject - Enqueue fails immediately with ErrQueueFull.
	PolicyReject
)

func (p Policy) String() string {
	switch p {
	case PolicyBlock:
		return "block"
	case PolicyDropOldest:
		return "drop-oldest"
	case PolicyReject:
		return "reject"
	default:
		return "unknown policy"
	}
}

// ParsePolicy - resolves policy from its string representation.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "block":
		return PolicyBlock, nil
	case "drop-oldest":
		return PolicyDropOldest, nil
	case "reject":
		return PolicyReject, nil
	default:
		return 0, fmt.Errorf("queue.ParsePolicy: unknown policy %q", s)
	}
}

// Message - a single chunk of bytes received from a client connection.
// Immutable once enqueued, the payload must not be shared with any buffer
// which is reused after Enqueue.
type Message struct {
	ClientID uint64
	Payload  []byte
}

// Queue - bounded FIFO of messages, safe for any number of concurrent
// producers and a single consumer. Contents are only ever observed or
// mutated while holding the internal lock.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    []Message
	capacity int
	policy   Policy
	closed   bool
}

// New - builds queue with given capacity and overflow policy.
func New(capacity int, policy Policy) (*Queue, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("queue.New: capacity (%d) must be greater than 0", capacity)
	}
	q := &Queue{
		capacity: capacity,
		policy:   policy,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q, nil
}

// Enqueue - appends message to the tail of the queue and wakes the
// consumer if it is waiting. Behaviour on a full queue depends on the
// configured Policy. Returns ErrQueueClosed after Close.
func (q *Queue) Enqueue(m Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	for len(q.items) >= q.capacity {
		switch q.policy {
		case PolicyDropOldest:
			// shift instead of re-slicing, sustained overflow must not
			// let the backing array creep forward
			copy(q.items, q.items[1:])
			q.items = q.items[:len(q.items)-1]
		case PolicyReject:
			return ErrQueueFull
		default:
			q.notFull.Wait()
			if q.closed {
				return ErrQueueClosed
			}
		}
	}
	q.items = append(q.items, m)
	q.notEmpty.Signal()
	return nil
}

// Dequeue - removes and returns the oldest message, suspending while the
// queue is empty. After Close it keeps returning the remaining messages
// and finally reports ErrQueueClosed when the queue is drained.
func (q *Queue) Dequeue() (Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		if q.closed {
			return Message{}, ErrQueueClosed
		}
		q.notEmpty.Wait()
	}
	m := q.items[0]
	q.items = q.items[1:]
	q.notFull.Signal()
	return m, nil
}

// Len - returns current number of queued messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Reset - discards all queued messages without reporting them.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	q.notFull.Broadcast()
}

// Close - marks the queue closed and wakes every waiting producer and
// the consumer. Safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}
