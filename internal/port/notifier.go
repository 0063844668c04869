package port

import (
	"context"

	"claimease/internal/domain"
)

// Notifier delivers job lifecycle events.
type Notifier interface {
	Notify(ctx context.Context, event domain.JobEvent) error
}

// EmailSender defines the contract for sending emails.
type EmailSender interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}
