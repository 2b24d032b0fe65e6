package notify

import "sync"

// queue is a thread-safe unbounded FIFO of messages.
//
// The queue uses a channel for signaling so readers can wait on it in a
// select alongside ctx.Done().
type queue struct {
	mu       sync.Mutex
	messages []Message
	closed   bool
	signal   chan struct{} // buffered, size 1
}

func newQueue() *queue {
	return &queue{
		messages: make([]Message, 0, 16),
		signal:   make(chan struct{}, 1),
	}
}

// enqueue adds m to the back of the queue. Returns false if the queue is
// closed.
func (q *queue) enqueue(m Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.messages = append(q.messages, m)

	// Non-blocking; the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// tryDequeue removes and returns the front message without blocking.
func (q *queue) tryDequeue() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.messages) == 0 {
		return Message{}, false
	}

	m := q.messages[0]

	// Clear the slot so the backing array does not pin the event.
	q.messages[0] = Message{}
	if len(q.messages) == 1 {
		q.messages = q.messages[:0]
	} else {
		q.messages = q.messages[1:]
	}

	return m, true
}

// wait returns a channel that signals when messages may be available. It is
// closed once the queue is closed.
func (q *queue) wait() <-chan struct{} {
	return q.signal
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// close stops further enqueues and wakes every waiter. Messages already
// queued can still be drained.
func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

func (q *queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
