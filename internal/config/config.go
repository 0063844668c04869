package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "CLAIMEASE"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Store    StoreConfig
	Queue    QueueConfig
	Pipeline PipelineConfig
	Paths    PathsConfig
	OCR      OCRConfig
	NLP      NLPConfig
	Form     FormConfig
	Score    ScoreConfig
	S3       S3Config
	Kafka    KafkaConfig
	Email    EmailConfig
	Webhook  WebhookConfig
	Auth     AuthConfig
	CORS     CORSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StoreConfig selects and configures the key-value store backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	Redis   RedisConfig
	DB      DBConfig
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// QueueConfig holds job queue and worker pool settings.
type QueueConfig struct {
	Backend         string        `mapstructure:"backend"`
	Name            string        `mapstructure:"name"`
	Concurrency     int           `mapstructure:"concurrency"`
	PollTimeout     time.Duration `mapstructure:"poll_timeout"`
	EmbeddedWorkers bool          `mapstructure:"embedded_workers"`
	SQS             SQSConfig
}

// SQSConfig holds settings for the SQS queue backend.
type SQSConfig struct {
	Region            string `mapstructure:"region"`
	QueueName         string `mapstructure:"queue_name"`
	Endpoint          string `mapstructure:"endpoint"`
	VisibilityTimeout int32  `mapstructure:"visibility_timeout"`
}

// RetryConfig is the bounded retry policy applied to transient stage failures.
type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	Multiplier     float64       `mapstructure:"multiplier"`
	JitterFraction float64       `mapstructure:"jitter_fraction"`
}

// PipelineConfig holds orchestrator settings.
type PipelineConfig struct {
	ArtifactTTL    time.Duration `mapstructure:"artifact_ttl"`
	JobTTL         time.Duration `mapstructure:"job_ttl"`
	StageTimeout   time.Duration `mapstructure:"stage_timeout"`
	MaxJobDuration time.Duration `mapstructure:"max_job_duration"`
	ReaperSchedule string        `mapstructure:"reaper_schedule"`
	Retry          RetryConfig
}

// PathsConfig locates the per-subject input and output folders.
type PathsConfig struct {
	InputDir  string `mapstructure:"input_dir"`
	OutputDir string `mapstructure:"output_dir"`
}

// OCRConfig holds rasterization and recognition settings.
type OCRConfig struct {
	DPI           int     `mapstructure:"dpi"`
	Language      string  `mapstructure:"language"`
	PdftoppmPath  string  `mapstructure:"pdftoppm_path"`
	LowConfidence float64 `mapstructure:"low_confidence"`
}

// NLPConfig holds entity extraction settings.
type NLPConfig struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
}

// FormConfig holds field mapping and rendering settings.
type FormConfig struct {
	RulesFile           string `mapstructure:"rules_file"`
	OverlayDir          string `mapstructure:"overlay_dir"`
	GenericFieldPattern string `mapstructure:"generic_field_pattern"`
	OutputFileName      string `mapstructure:"output_file_name"`
}

// ScoreConfig holds the consolidation quality score weights.
type ScoreConfig struct {
	OCRWeight          float64 `mapstructure:"ocr_weight"`
	EntityWeight       float64 `mapstructure:"entity_weight"`
	CompletenessWeight float64 `mapstructure:"completeness_weight"`
}

// S3Config holds settings for the optional output upload.
type S3Config struct {
	Enabled       bool   `mapstructure:"enabled"`
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Prefix        string `mapstructure:"prefix"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// KafkaConfig holds settings for the job event publisher.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// EmailConfig holds email delivery settings.
type EmailConfig struct {
	Provider    string `mapstructure:"provider"`
	Region      string `mapstructure:"region"`
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
}

// WebhookConfig holds callback delivery settings.
type WebhookConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// AuthConfig holds API bearer token settings.
type AuthConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Secret      string        `mapstructure:"secret"`
	Issuer      string        `mapstructure:"issuer"`
	TokenExpiry time.Duration `mapstructure:"token_expiry"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.environment", "development")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("store.backend", "redis")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.db.host", "localhost")
	v.SetDefault("store.db.port", 5432)
	v.SetDefault("store.db.user", "claimease")
	v.SetDefault("store.db.password", "claimease_secret")
	v.SetDefault("store.db.name", "claimease")
	v.SetDefault("store.db.sslmode", "disable")
	v.SetDefault("store.db.max_open", 25)
	v.SetDefault("store.db.max_idle", 10)

	v.SetDefault("queue.backend", "redis")
	v.SetDefault("queue.name", "processing_queue")
	v.SetDefault("queue.concurrency", 2)
	v.SetDefault("queue.poll_timeout", "5s")
	v.SetDefault("queue.embedded_workers", false)
	v.SetDefault("queue.sqs.region", "us-east-1")
	v.SetDefault("queue.sqs.queue_name", "claimease-jobs")
	v.SetDefault("queue.sqs.endpoint", "")
	v.SetDefault("queue.sqs.visibility_timeout", 900)

	v.SetDefault("pipeline.artifact_ttl", "1h")
	v.SetDefault("pipeline.job_ttl", "168h")
	v.SetDefault("pipeline.stage_timeout", "5m")
	v.SetDefault("pipeline.max_job_duration", "30m")
	v.SetDefault("pipeline.reaper_schedule", "@every 1m")
	v.SetDefault("pipeline.retry.max_attempts", 3)
	v.SetDefault("pipeline.retry.initial_backoff", "2s")
	v.SetDefault("pipeline.retry.max_backoff", "30s")
	v.SetDefault("pipeline.retry.multiplier", 2.0)
	v.SetDefault("pipeline.retry.jitter_fraction", 0.1)

	v.SetDefault("paths.input_dir", "data/input")
	v.SetDefault("paths.output_dir", "data/output")

	v.SetDefault("ocr.dpi", 300)
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.pdftoppm_path", "pdftoppm")
	v.SetDefault("ocr.low_confidence", 0.5)

	v.SetDefault("nlp.confidence_threshold", 0.6)

	v.SetDefault("form.rules_file", "")
	v.SetDefault("form.overlay_dir", "config/overlays")
	v.SetDefault("form.generic_field_pattern", `^(field|text|txt|textfield|t)[\s_.\-]*\d+$`)
	v.SetDefault("form.output_file_name", "filled_pa_form.pdf")

	v.SetDefault("score.ocr_weight", 0.3)
	v.SetDefault("score.entity_weight", 0.3)
	v.SetDefault("score.completeness_weight", 0.4)

	v.SetDefault("s3.enabled", false)
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "claimease-results")
	v.SetDefault("s3.prefix", "results")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.presign_expiry", 3600)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "claimease.jobs")

	v.SetDefault("email.provider", "noop")
	v.SetDefault("email.region", "us-east-1")
	v.SetDefault("email.from_address", "noreply@claimease.local")
	v.SetDefault("email.from_name", "ClaimEase")

	v.SetDefault("webhook.timeout", "10s")

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.secret", "change-me-in-production")
	v.SetDefault("auth.issuer", "claimease")
	v.SetDefault("auth.token_expiry", "720h")

	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")
}

// envName maps a config key to its environment variable, e.g.
// "pipeline.retry.max_attempts" -> "CLAIMEASE_PIPELINE_RETRY_MAX_ATTEMPTS".
func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// splitList parses a comma-separated setting.
func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Load reads configuration from environment variables with the CLAIMEASE_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Bind every known key explicitly so nested keys resolve from the environment.
	for _, key := range v.AllKeys() {
		if err := v.BindEnv(key, envName(key)); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	cfg := &Config{}

	// Container platforms set PORT. Use it unless the server port is explicit.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv(envName("server.port")) == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.Store = StoreConfig{
		Backend: v.GetString("store.backend"),
		Redis: RedisConfig{
			Addr:     v.GetString("store.redis.addr"),
			Password: v.GetString("store.redis.password"),
			DB:       v.GetInt("store.redis.db"),
		},
		DB: DBConfig{
			Host:     v.GetString("store.db.host"),
			Port:     v.GetInt("store.db.port"),
			User:     v.GetString("store.db.user"),
			Password: v.GetString("store.db.password"),
			Name:     v.GetString("store.db.name"),
			SSLMode:  v.GetString("store.db.sslmode"),
			MaxOpen:  v.GetInt("store.db.max_open"),
			MaxIdle:  v.GetInt("store.db.max_idle"),
		},
	}
	cfg.Queue = QueueConfig{
		Backend:         v.GetString("queue.backend"),
		Name:            v.GetString("queue.name"),
		Concurrency:     v.GetInt("queue.concurrency"),
		PollTimeout:     v.GetDuration("queue.poll_timeout"),
		EmbeddedWorkers: v.GetBool("queue.embedded_workers"),
		SQS: SQSConfig{
			Region:            v.GetString("queue.sqs.region"),
			QueueName:         v.GetString("queue.sqs.queue_name"),
			Endpoint:          v.GetString("queue.sqs.endpoint"),
			VisibilityTimeout: v.GetInt32("queue.sqs.visibility_timeout"),
		},
	}
	cfg.Pipeline = PipelineConfig{
		ArtifactTTL:    v.GetDuration("pipeline.artifact_ttl"),
		JobTTL:         v.GetDuration("pipeline.job_ttl"),
		StageTimeout:   v.GetDuration("pipeline.stage_timeout"),
		MaxJobDuration: v.GetDuration("pipeline.max_job_duration"),
		ReaperSchedule: v.GetString("pipeline.reaper_schedule"),
		Retry: RetryConfig{
			MaxAttempts:    v.GetInt("pipeline.retry.max_attempts"),
			InitialBackoff: v.GetDuration("pipeline.retry.initial_backoff"),
			MaxBackoff:     v.GetDuration("pipeline.retry.max_backoff"),
			Multiplier:     v.GetFloat64("pipeline.retry.multiplier"),
			JitterFraction: v.GetFloat64("pipeline.retry.jitter_fraction"),
		},
	}
	cfg.Paths = PathsConfig{
		InputDir:  v.GetString("paths.input_dir"),
		OutputDir: v.GetString("paths.output_dir"),
	}
	cfg.OCR = OCRConfig{
		DPI:           v.GetInt("ocr.dpi"),
		Language:      v.GetString("ocr.language"),
		PdftoppmPath:  v.GetString("ocr.pdftoppm_path"),
		LowConfidence: v.GetFloat64("ocr.low_confidence"),
	}
	cfg.NLP = NLPConfig{
		ConfidenceThreshold: v.GetFloat64("nlp.confidence_threshold"),
	}
	cfg.Form = FormConfig{
		RulesFile:           v.GetString("form.rules_file"),
		OverlayDir:          v.GetString("form.overlay_dir"),
		GenericFieldPattern: v.GetString("form.generic_field_pattern"),
		OutputFileName:      v.GetString("form.output_file_name"),
	}
	cfg.Score = ScoreConfig{
		OCRWeight:          v.GetFloat64("score.ocr_weight"),
		EntityWeight:       v.GetFloat64("score.entity_weight"),
		CompletenessWeight: v.GetFloat64("score.completeness_weight"),
	}
	cfg.S3 = S3Config{
		Enabled:       v.GetBool("s3.enabled"),
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Prefix:        v.GetString("s3.prefix"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}
	cfg.Kafka = KafkaConfig{
		Enabled: v.GetBool("kafka.enabled"),
		Brokers: splitList(v.GetString("kafka.brokers")),
		Topic:   v.GetString("kafka.topic"),
	}
	cfg.Email = EmailConfig{
		Provider:    v.GetString("email.provider"),
		Region:      v.GetString("email.region"),
		FromAddress: v.GetString("email.from_address"),
		FromName:    v.GetString("email.from_name"),
	}
	cfg.Webhook = WebhookConfig{
		Timeout: v.GetDuration("webhook.timeout"),
	}
	cfg.Auth = AuthConfig{
		Enabled:     v.GetBool("auth.enabled"),
		Secret:      v.GetString("auth.secret"),
		Issuer:      v.GetString("auth.issuer"),
		TokenExpiry: v.GetDuration("auth.token_expiry"),
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: splitList(v.GetString("cors.allowed_origins")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "redis", "postgres", "memory":
	default:
		return fmt.Errorf("unsupported store backend %q", c.Store.Backend)
	}
	switch c.Queue.Backend {
	case "redis", "sqs", "memory":
	default:
		return fmt.Errorf("unsupported queue backend %q", c.Queue.Backend)
	}
	if c.Queue.Concurrency < 1 {
		return fmt.Errorf("queue concurrency must be at least 1, got %d", c.Queue.Concurrency)
	}
	if c.Pipeline.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1, got %d", c.Pipeline.Retry.MaxAttempts)
	}
	if c.NLP.ConfidenceThreshold < 0 || c.NLP.ConfidenceThreshold > 1 {
		return fmt.Errorf("nlp confidence threshold must be within [0,1], got %v", c.NLP.ConfidenceThreshold)
	}
	if c.OCR.DPI <= 0 {
		return fmt.Errorf("ocr dpi must be positive, got %d", c.OCR.DPI)
	}
	return nil
}
