package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"claimease/internal/domain"
	"claimease/internal/port"
)

// Queue is a Redis list used as a FIFO job queue. Normal jobs are LPUSHed and
// consumed with BRPOP; high-priority jobs are RPUSHed so they are popped next.
type Queue struct {
	client goredis.UniversalClient
	name   string
}

// NewQueue creates a Redis-backed JobQueue on the named list.
func NewQueue(client goredis.UniversalClient, name string) *Queue {
	return &Queue{client: client, name: name}
}

func (q *Queue) Enqueue(ctx context.Context, jobID string, priority domain.Priority) error {
	var err error
	if priority == domain.PriorityHigh {
		err = q.client.RPush(ctx, q.name, jobID).Err()
	} else {
		err = q.client.LPush(ctx, q.name, jobID).Err()
	}
	if err != nil {
		return fmt.Errorf("redisQueue.Enqueue: %w", err)
	}
	return nil
}

func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*port.QueueMessage, error) {
	res, err := q.client.BRPop(ctx, timeout, q.name).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redisQueue.Dequeue: %w", err)
	}
	// BRPOP replies with [list, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("redisQueue.Dequeue: unexpected reply %v", res)
	}
	return &port.QueueMessage{JobID: res[1]}, nil
}

// Ack is a no-op; BRPOP already removed the message.
func (q *Queue) Ack(context.Context, *port.QueueMessage) error {
	return nil
}

// Len returns the number of waiting jobs.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.name).Result()
}
