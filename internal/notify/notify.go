// Package notify fans job lifecycle events out to the configured channels.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"claimease/internal/domain"
	"claimease/internal/port"
)

// Multi delivers every event to each notifier in turn. A failing channel does
// not stop delivery to the others.
type Multi struct {
	notifiers []port.Notifier
	logger    *slog.Logger
}

// NewMulti creates a Multi over the non-nil notifiers.
func NewMulti(logger *slog.Logger, notifiers ...port.Notifier) *Multi {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Multi{logger: logger}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Len returns the number of wrapped notifiers.
func (m *Multi) Len() int { return len(m.notifiers) }

func (m *Multi) Notify(ctx context.Context, event domain.JobEvent) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, event); err != nil {
			m.logger.Warn("notify.Multi: delivery failed",
				"job_id", event.Job.ID,
				"event", event.Type,
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log records events in the process log. It is the notifier used when no
// external channel is configured.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a Log notifier.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Notify(_ context.Context, event domain.JobEvent) error {
	l.logger.Info("notify.Log: job event",
		"job_id", event.Job.ID,
		"patient", event.Job.Subject,
		"event", event.Type,
		"status", event.Job.Status,
		"progress", event.Job.Progress,
	)
	return nil
}
