package queue

import "errors"

var (
	// ErrQueueFull - returns when the queue is at capacity and the
	// configured policy is PolicyReject. The rejected message was not
	// appended, the producer decides whether to drop or retry it.
	ErrQueueFull = errors.New("queue.Queue: queue is full")

	// ErrQueueClosed - returns when the queue was closed: immediately
	// for producers, after the remaining messages were drained for the
	// consumer.
	ErrQueueClosed = errors.New("queue.Queue: queue is closed")
)
