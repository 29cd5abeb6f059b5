// Package queue provides the unbounded job queue shared by pool workers.
//
// A Queue has one logical sending side and any number of receivers. Every
// message sent is handed to exactly one receiver, in the order it was sent.
// Receivers block on a condition variable, never spinning, until a message
// arrives or the sending side is closed and the backlog is drained.
package queue

import (
	"sync"

	"github.com/jzx17/gopool/pkg/types"
)

// Queue is an unbounded multi-producer multi-consumer FIFO of Messages
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	items    []Message
	closed   bool
}

// New creates an empty queue
func New() *Queue {
	q := &Queue{}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Send appends msg. It returns types.ErrChannelClosed once Close was called.
func (q *Queue) Send(msg Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return types.ErrChannelClosed
	}

	q.items = append(q.items, msg)
	q.notEmpty.Signal()
	return nil
}

// Receive blocks until a message is available and removes it from the queue.
// After Close, queued messages are still delivered; once none remain Receive
// returns types.ErrChannelClosed.
func (q *Queue) Receive() (Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 {
		if q.closed {
			return Message{}, types.ErrChannelClosed
		}
		q.notEmpty.Wait()
	}

	msg := q.items[0]
	q.items[0] = Message{} // release the task for GC
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return msg, nil
}

// Close closes the sending side and wakes every blocked receiver
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
}

// Len returns the number of queued messages
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// IsClosed reports whether the sending side has been closed
func (q *Queue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
