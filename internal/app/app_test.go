package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimease/internal/app"
	"claimease/internal/config"
	"claimease/internal/domain"
	"claimease/internal/service"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store: config.StoreConfig{Backend: "memory"},
		Queue: config.QueueConfig{Backend: "memory", Concurrency: 1, PollTimeout: 10 * time.Millisecond},
		Pipeline: config.PipelineConfig{
			ArtifactTTL:    time.Hour,
			JobTTL:         time.Hour,
			MaxJobDuration: time.Minute,
			Retry:          config.RetryConfig{MaxAttempts: 1},
		},
		Paths: config.PathsConfig{InputDir: t.TempDir(), OutputDir: t.TempDir()},
		OCR:   config.OCRConfig{DPI: 150, Language: "eng", PdftoppmPath: "pdftoppm"},
		NLP:   config.NLPConfig{ConfidenceThreshold: 0.6},
		Email: config.EmailConfig{Provider: "noop"},
	}
}

func TestNew_MemoryBackends(t *testing.T) {
	a, err := app.New(context.Background(), memoryConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Orchestrator)
	assert.Equal(t, 3, a.Notifier.Len(), "log, webhook and email")
	assert.NoError(t, a.Store.Ping(context.Background()))
	assert.NotNil(t, a.WorkerPool())
	assert.NotNil(t, a.Reaper())
}

func TestNew_SubmitMissingFolder(t *testing.T) {
	a, err := app.New(context.Background(), memoryConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	svc := a.JobService()
	_, err = svc.Submit(context.Background(), service.SubmitInput{Subject: "nobody"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestNew_UnsupportedBackends(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Store.Backend = "etcd"
	_, err := app.New(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, `unsupported store backend "etcd"`)

	cfg = memoryConfig(t)
	cfg.Queue.Backend = "nats"
	_, err = app.New(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, `unsupported queue backend "nats"`)
}

func TestNew_BadGenericPattern(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Form.GenericFieldPattern = "(["
	_, err := app.New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestNewEmailSender(t *testing.T) {
	sender, err := app.NewEmailSender(config.EmailConfig{}, nil)
	require.NoError(t, err)
	assert.NotNil(t, sender)

	_, err = app.NewEmailSender(config.EmailConfig{Provider: "smtp"}, nil)
	assert.ErrorContains(t, err, "unsupported email provider")
}
