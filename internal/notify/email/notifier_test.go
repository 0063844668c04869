package email_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"claimease/internal/domain"
	"claimease/internal/notify/email"
	"claimease/mocks"
)

func completedEvent(notifyEmail string) domain.JobEvent {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	job := domain.NewJob("job-9", "Akshay_Chaudhari", domain.JobOptions{NotifyEmail: notifyEmail}, at)
	job.Status = domain.JobStatusCompleted
	job.Result = &domain.JobSummary{
		FilledFields: 18,
		TotalFields:  27,
		OverallScore: 0.8,
		MissingFields: []domain.MissingField{
			{FieldName: "Patient Address", Reason: domain.ReasonNotFoundInSource},
		},
	}
	return domain.NewJobEvent(domain.JobEventCompleted, job, at)
}

func TestNotify_SendsCompletedReport(t *testing.T) {
	sender := new(mocks.MockEmailSender)
	sender.On("Send", mock.Anything, "ops@example.com", "PA form ready for Akshay_Chaudhari",
		mock.MatchedBy(func(html string) bool { return assert.Contains(t, html, "<h2>Missing fields</h2>") }),
		mock.MatchedBy(func(text string) bool { return assert.Contains(t, text, "- Patient Address: not_found_in_source") }),
	).Return(nil)

	require.NoError(t, email.New(sender, nil).Notify(context.Background(), completedEvent("ops@example.com")))
	sender.AssertExpectations(t)
}

func TestNotify_SkipsWithoutAddressOrNonTerminal(t *testing.T) {
	sender := new(mocks.MockEmailSender)
	n := email.New(sender, nil)

	require.NoError(t, n.Notify(context.Background(), completedEvent("")))

	started := completedEvent("ops@example.com")
	started.Type = domain.JobEventStarted
	require.NoError(t, n.Notify(context.Background(), started))

	sender.AssertNotCalled(t, "Send")
}

func TestNotify_SendError(t *testing.T) {
	sender := new(mocks.MockEmailSender)
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("quota exceeded"))

	err := email.New(sender, nil).Notify(context.Background(), completedEvent("ops@example.com"))
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestBody_Failed(t *testing.T) {
	ev := completedEvent("ops@example.com")
	ev.Type = domain.JobEventFailed
	ev.Job.Status = domain.JobStatusFailed
	ev.Job.Error = "OCR stage failed: tesseract unavailable"
	ev.Job.Result = nil

	assert.Equal(t, "PA processing failed for Akshay_Chaudhari", email.Subject(ev))
	body := email.Body(ev)
	assert.Contains(t, body, "Error: OCR stage failed")
	assert.NotContains(t, body, "Missing fields")
}

func TestBody_NoMissingFields(t *testing.T) {
	ev := completedEvent("ops@example.com")
	ev.Job.Result.MissingFields = []domain.MissingField{}
	assert.Contains(t, email.Body(ev), "All fields were filled.")
}

func TestBody_DownloadLinks(t *testing.T) {
	ev := completedEvent("ops@example.com")
	ev.Job.Result.DownloadURLs = map[string]string{
		"summary.md":  "https://signed/summary.md",
		"report.xlsx": "https://signed/report.xlsx",
	}
	body := email.Body(ev)

	assert.Contains(t, body, "## Downloads")
	assert.Contains(t, body, "- [report.xlsx](https://signed/report.xlsx)")
	assert.Less(t, strings.Index(body, "report.xlsx"), strings.Index(body, "summary.md"))
	assert.NotContains(t, email.Body(completedEvent("ops@example.com")), "## Downloads")
}
