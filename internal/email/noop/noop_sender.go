package noop

import (
	"context"
	"log/slog"

	"claimease/internal/port"
)

type noopSender struct {
	logger *slog.Logger
}

// NewNoopSender creates a no-op EmailSender that logs each message instead of
// sending it.
func NewNoopSender(logger *slog.Logger) port.EmailSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &noopSender{logger: logger}
}

func (s *noopSender) Send(_ context.Context, to, subject, _, textBody string) error {
	s.logger.Info("[NOOP EMAIL]", "to", to, "subject", subject, "body_length", len(textBody))
	return nil
}
