// Package email mails a short job report to the address given at submission
// once the job finishes.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/samber/lo"

	"claimease/internal/domain"
	"claimease/internal/port"
	"claimease/internal/report"
)

// Notifier renders terminal job events as markdown and sends them through an
// EmailSender with an HTML alternative.
type Notifier struct {
	sender port.EmailSender
	logger *slog.Logger
}

// New creates an email Notifier.
func New(sender port.EmailSender, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{sender: sender, logger: logger}
}

func (n *Notifier) Notify(ctx context.Context, event domain.JobEvent) error {
	to := event.Job.Options.NotifyEmail
	if to == "" || !event.Type.IsTerminal() {
		return nil
	}

	subject := Subject(event)
	text := Body(event)
	html, err := report.HTML(text)
	if err != nil {
		return fmt.Errorf("rendering email body: %w", err)
	}
	if err := n.sender.Send(ctx, to, subject, html, text); err != nil {
		return fmt.Errorf("sending job email: %w", err)
	}

	n.logger.Info("email.Notify: job email sent",
		"job_id", event.Job.ID,
		"event", event.Type,
		"to", to,
	)
	return nil
}

// Subject returns the mail subject line for event.
func Subject(event domain.JobEvent) string {
	if event.Type == domain.JobEventCompleted {
		return fmt.Sprintf("PA form ready for %s", event.Job.Subject)
	}
	return fmt.Sprintf("PA processing failed for %s", event.Job.Subject)
}

// Body returns the markdown mail body for event.
func Body(event domain.JobEvent) string {
	job := event.Job
	var b strings.Builder
	fmt.Fprintf(&b, "# Job %s\n\n", job.ID)
	fmt.Fprintf(&b, "- Patient: %s\n", job.Subject)
	fmt.Fprintf(&b, "- Status: %s\n", job.Status)
	fmt.Fprintf(&b, "- Finished: %s\n", event.OccurredAt.UTC().Format("2006-01-02 15:04:05 UTC"))

	if job.Error != "" {
		fmt.Fprintf(&b, "\nError: %s\n", job.Error)
		return b.String()
	}
	if job.Result == nil {
		return b.String()
	}

	r := job.Result
	fmt.Fprintf(&b, "- Filled fields: %d of %d\n", r.FilledFields, r.TotalFields)
	fmt.Fprintf(&b, "- Overall score: %.2f\n", r.OverallScore)

	if len(r.DownloadURLs) > 0 {
		b.WriteString("\n## Downloads\n\n")
		names := lo.Keys(r.DownloadURLs)
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "- [%s](%s)\n", name, r.DownloadURLs[name])
		}
	}

	b.WriteString("\n## Missing fields\n\n")
	if len(r.MissingFields) == 0 {
		b.WriteString("All fields were filled.\n")
		return b.String()
	}
	for _, m := range r.MissingFields {
		fmt.Fprintf(&b, "- %s: %s\n", m.FieldName, m.Reason)
	}
	return b.String()
}
