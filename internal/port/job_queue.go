package port

import (
	"context"
	"time"

	"claimease/internal/domain"
)

// QueueMessage is one dequeued job reference.
type QueueMessage struct {
	JobID  string
	Handle string
}

// JobQueue is the shared queue worker processes pull job ids from.
type JobQueue interface {
	Enqueue(ctx context.Context, jobID string, priority domain.Priority) error
	// Dequeue blocks up to timeout and returns nil when no message arrived.
	Dequeue(ctx context.Context, timeout time.Duration) (*QueueMessage, error)
	Ack(ctx context.Context, msg *QueueMessage) error
}
