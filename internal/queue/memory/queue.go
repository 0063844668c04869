package memory

import (
	"context"
	"sync"
	"time"

	"claimease/internal/domain"
	"claimease/internal/port"
)

// Queue is an in-process JobQueue with the same ordering as the Redis queue.
type Queue struct {
	mu     sync.Mutex
	items  []string
	signal chan struct{}
}

// New creates an empty Queue.
func New() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

func (q *Queue) Enqueue(_ context.Context, jobID string, priority domain.Priority) error {
	q.mu.Lock()
	if priority == domain.PriorityHigh {
		q.items = append([]string{jobID}, q.items...)
	} else {
		q.items = append(q.items, jobID)
	}
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return nil
}

func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*port.QueueMessage, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		if id, ok := q.pop(); ok {
			return &port.QueueMessage{JobID: id}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, nil
		case <-q.signal:
		}
	}
}

func (q *Queue) pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	id := q.items[0]
	q.items = q.items[1:]
	if len(q.items) > 0 {
		select {
		case q.signal <- struct{}{}:
		default:
		}
	}
	return id, true
}

func (q *Queue) Ack(context.Context, *port.QueueMessage) error {
	return nil
}

// Len returns the number of waiting jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
