// Package app assembles the pipeline from configuration. The server and
// worker commands share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"claimease/internal/config"
	emailnoop "claimease/internal/email/noop"
	emailses "claimease/internal/email/ses"
	"claimease/internal/extract"
	"claimease/internal/notify"
	notifyemail "claimease/internal/notify/email"
	notifykafka "claimease/internal/notify/kafka"
	"claimease/internal/notify/webhook"
	"claimease/internal/ocr"
	"claimease/internal/ocr/tesseract"
	"claimease/internal/pdfdoc"
	"claimease/internal/pipeline"
	"claimease/internal/port"
	memqueue "claimease/internal/queue/memory"
	redisqueue "claimease/internal/queue/redis"
	sqsqueue "claimease/internal/queue/sqs"
	"claimease/internal/repository/kvstore"
	"claimease/internal/service"
	"claimease/internal/stage/analysis"
	"claimease/internal/stage/consolidate"
	"claimease/internal/stage/formfill"
	"claimease/internal/stage/nlp"
	ocrstage "claimease/internal/stage/ocr"
	s3storage "claimease/internal/storage/s3"
	memstore "claimease/internal/store/memory"
	pgstore "claimease/internal/store/postgres"
	redisstore "claimease/internal/store/redis"
)

// App holds the long-lived components built from one Config.
type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	Store        port.KVStore
	Jobs         port.JobRepository
	Queue        port.JobQueue
	Artifacts    *pipeline.ArtifactStore
	Notifier     *notify.Multi
	Orchestrator *pipeline.Orchestrator

	purger  port.Purger
	redis   *goredis.Client
	closers []func() error
}

// New connects the configured backends and builds the pipeline. Close
// releases whatever New opened, also after a partial failure.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (a *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	a = &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
			a = nil
		}
	}()

	if err = a.openStore(ctx); err != nil {
		return nil, err
	}
	if err = a.openQueue(ctx); err != nil {
		return nil, err
	}

	a.Jobs = kvstore.NewJobRepo(a.Store, cfg.Pipeline.JobTTL)
	a.Artifacts, err = pipeline.NewArtifactStore(a.Store, cfg.Pipeline.ArtifactTTL)
	if err != nil {
		return nil, fmt.Errorf("creating artifact store: %w", err)
	}

	if err = a.buildNotifier(); err != nil {
		return nil, err
	}

	stages, err := a.buildStages()
	if err != nil {
		return nil, err
	}

	a.Orchestrator = pipeline.NewOrchestrator(a.Jobs, a.Artifacts, stages, a.Notifier, pipeline.Config{
		Retry: pipeline.RetryPolicy{
			MaxAttempts:    cfg.Pipeline.Retry.MaxAttempts,
			InitialBackoff: cfg.Pipeline.Retry.InitialBackoff,
			MaxBackoff:     cfg.Pipeline.Retry.MaxBackoff,
			Multiplier:     cfg.Pipeline.Retry.Multiplier,
			JitterFraction: cfg.Pipeline.Retry.JitterFraction,
		},
		StageTimeout: cfg.Pipeline.StageTimeout,
	}, logger)

	logger.Info("app.New: pipeline ready",
		"store", cfg.Store.Backend,
		"queue", cfg.Queue.Backend,
		"notifiers", a.Notifier.Len(),
	)
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Store.Backend {
	case "memory":
		s := memstore.New()
		a.Store, a.purger = s, s
	case "redis":
		client, err := a.redisClient(ctx)
		if err != nil {
			return err
		}
		a.Store = redisstore.NewStore(client)
	case "postgres":
		db, err := pgstore.NewDB(&cfg.Store.DB)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		s := pgstore.NewStore(db)
		a.Store, a.purger = s, s
	default:
		return fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
	return nil
}

func (a *App) openQueue(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Queue.Backend {
	case "memory":
		a.Queue = memqueue.New()
	case "redis":
		client, err := a.redisClient(ctx)
		if err != nil {
			return err
		}
		a.Queue = redisqueue.NewQueue(client, cfg.Queue.Name)
	case "sqs":
		client, err := sqsqueue.NewClient(ctx, &cfg.Queue.SQS)
		if err != nil {
			return fmt.Errorf("creating sqs client: %w", err)
		}
		q, err := sqsqueue.NewQueue(ctx, client, &cfg.Queue.SQS)
		if err != nil {
			return fmt.Errorf("resolving sqs queue: %w", err)
		}
		a.Queue = q
	default:
		return fmt.Errorf("unsupported queue backend %q", cfg.Queue.Backend)
	}
	return nil
}

// redisClient connects once and is shared by the store and the queue.
func (a *App) redisClient(ctx context.Context) (*goredis.Client, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	client, err := redisstore.NewClient(ctx, &a.Config.Store.Redis)
	if err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	a.redis = client
	a.closers = append(a.closers, client.Close)
	return client, nil
}

func (a *App) buildNotifier() error {
	cfg := a.Config
	notifiers := []port.Notifier{
		notify.NewLog(a.Logger),
		webhook.New(cfg.Webhook.Timeout, a.Logger),
	}

	if cfg.Kafka.Enabled {
		pub, err := notifykafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, a.Logger)
		if err != nil {
			return fmt.Errorf("creating kafka publisher: %w", err)
		}
		a.closers = append(a.closers, pub.Close)
		notifiers = append(notifiers, pub)
	}

	sender, err := NewEmailSender(cfg.Email, a.Logger)
	if err != nil {
		return err
	}
	notifiers = append(notifiers, notifyemail.New(sender, a.Logger))

	a.Notifier = notify.NewMulti(a.Logger, notifiers...)
	return nil
}

// NewEmailSender returns the sender selected by cfg.Provider.
func NewEmailSender(cfg config.EmailConfig, logger *slog.Logger) (port.EmailSender, error) {
	switch cfg.Provider {
	case "ses":
		sender, err := emailses.NewSESSender(cfg.Region, cfg.FromAddress, cfg.FromName)
		if err != nil {
			return nil, fmt.Errorf("creating ses sender: %w", err)
		}
		return sender, nil
	case "noop", "":
		return emailnoop.NewNoopSender(logger), nil
	default:
		return nil, fmt.Errorf("unsupported email provider %q", cfg.Provider)
	}
}

func (a *App) buildStages() (pipeline.Stages, error) {
	cfg := a.Config
	logger := a.Logger

	overlays := formfill.NewOverlayStore(cfg.Form.OverlayDir)
	rules, err := formfill.LoadRules(cfg.Form.RulesFile)
	if err != nil {
		return pipeline.Stages{}, err
	}
	mapper, err := formfill.NewMapper(rules, cfg.Form.GenericFieldPattern)
	if err != nil {
		return pipeline.Stages{}, err
	}

	var storage port.ObjectStorage
	if cfg.S3.Enabled {
		storage, err = s3storage.NewS3Client(&cfg.S3)
		if err != nil {
			return pipeline.Stages{}, fmt.Errorf("creating s3 client: %w", err)
		}
	}

	raster := ocr.NewRasterizer(cfg.OCR.PdftoppmPath, ocr.ExecRunner{Logger: logger})

	return pipeline.Stages{
		Analysis: analysis.NewStage(cfg.Paths.InputDir, pdfdoc.NewInspector(), pdfdoc.NewTextProbe(logger), overlays, logger),
		OCR: ocrstage.NewStage(raster, tesseract.NewRecognizer(cfg.OCR.Language, cfg.OCR.DPI), ocrstage.Config{
			DPI:           cfg.OCR.DPI,
			LowConfidence: cfg.OCR.LowConfidence,
		}, logger),
		NLP: nlp.NewStage(extract.NewRecognizer(logger), cfg.NLP.ConfidenceThreshold, logger),
		Form: formfill.NewStage(mapper, pdfdoc.NewRenderer(logger), overlays, formfill.Config{
			OutputDir:      cfg.Paths.OutputDir,
			OutputFileName: cfg.Form.OutputFileName,
		}, logger),
		Consolidation: consolidate.NewStage(storage, consolidate.Config{
			OutputDir: cfg.Paths.OutputDir,
			Weights: consolidate.Weights{
				OCR:          cfg.Score.OCRWeight,
				Entity:       cfg.Score.EntityWeight,
				Completeness: cfg.Score.CompletenessWeight,
			},
			UploadPrefix:  cfg.S3.Prefix,
			PresignExpiry: cfg.S3.PresignExpiry,
		}, logger),
	}, nil
}

// JobService returns the API-facing job service.
func (a *App) JobService() service.JobService {
	return service.NewJobService(a.Jobs, a.Queue, a.Artifacts, a.Notifier, a.Config.Paths.InputDir, a.Logger)
}

// WorkerPool returns a pool draining the queue into the orchestrator.
func (a *App) WorkerPool() *service.WorkerPool {
	return service.NewWorkerPool(a.Queue, a.Orchestrator, service.WorkerPoolConfig{
		Concurrency: a.Config.Queue.Concurrency,
		PollTimeout: a.Config.Queue.PollTimeout,
		JobTimeout:  a.Config.Pipeline.MaxJobDuration,
	}, a.Logger)
}

// Reaper returns the stale-job and expiry sweeper.
func (a *App) Reaper() *service.Reaper {
	return service.NewReaper(a.Jobs, a.purger, a.Notifier, a.Config.Pipeline.MaxJobDuration, a.Config.Pipeline.ReaperSchedule, a.Logger)
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
