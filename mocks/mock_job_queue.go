package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"claimease/internal/domain"
	"claimease/internal/port"
)

// MockJobQueue is a mock implementation of port.JobQueue.
type MockJobQueue struct {
	mock.Mock
}

func (m *MockJobQueue) Enqueue(ctx context.Context, jobID string, priority domain.Priority) error {
	args := m.Called(ctx, jobID, priority)
	return args.Error(0)
}

func (m *MockJobQueue) Dequeue(ctx context.Context, timeout time.Duration) (*port.QueueMessage, error) {
	args := m.Called(ctx, timeout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.QueueMessage), args.Error(1)
}

func (m *MockJobQueue) Ack(ctx context.Context, msg *port.QueueMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
