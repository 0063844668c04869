// Package webhook posts terminal job events to the callback URL given at
// submission.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"claimease/internal/domain"
)

const defaultTimeout = 10 * time.Second

// Notifier posts the event JSON to Job.Options.CallbackURL.
type Notifier struct {
	client *http.Client
	logger *slog.Logger
}

// New creates a webhook Notifier. A zero timeout uses ten seconds.
func New(timeout time.Duration, logger *slog.Logger) *Notifier {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{client: &http.Client{Timeout: timeout}, logger: logger}
}

// Notify delivers terminal events only. Jobs without a callback URL are
// skipped.
func (n *Notifier) Notify(ctx context.Context, event domain.JobEvent) error {
	url := event.Job.Options.CallbackURL
	if url == "" || !event.Type.IsTerminal() {
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling job event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-ClaimEase-Event", string(event.Type))

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	n.logger.Info("webhook.Notify: delivered",
		"job_id", event.Job.ID,
		"event", event.Type,
		"status_code", resp.StatusCode,
	)
	return nil
}
