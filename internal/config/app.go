package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Policy holds the claim and retry values applied by every tick.
type Policy struct {
	Lease           time.Duration `env:"JOB_LEASE,default=5m"`
	MaxAttempts     int           `env:"JOB_MAX_ATTEMPTS,default=3"`
	ParseCeiling    int           `env:"JOB_PARSE_CEILING,default=2"`
	BackoffBase     time.Duration `env:"JOB_BACKOFF_BASE,default=30s"`
	BackoffMax      time.Duration `env:"JOB_BACKOFF_MAX,default=10m"`
	ClaimCandidates int           `env:"JOB_CLAIM_CANDIDATES,default=5"`
}

type Trigger struct {
	Secret      string        `env:"CRON_SECRET"`
	Schedule    string        `env:"CRON_SCHEDULE,default=* * * * *"`
	MaxFailures int           `env:"TRIGGER_MAX_FAILURES,default=10"`
	Lockout     time.Duration `env:"TRIGGER_LOCKOUT,default=15m"`
	RedisURL    string        `env:"REDIS_URL"`
}

type Extraction struct {
	URL     string        `env:"EXTRACT_URL,default=http://localhost:8000/extract"`
	Timeout time.Duration `env:"EXTRACT_TIMEOUT,default=120s"`
}

type LLM struct {
	APIKey    string        `env:"ANTHROPIC_API_KEY"`
	BaseURL   string        `env:"ANTHROPIC_BASE_URL,default=https://api.anthropic.com"`
	Model     string        `env:"ANTHROPIC_MODEL,default=claude-sonnet-4-20250514"`
	MaxTokens int           `env:"ANTHROPIC_MAX_TOKENS,default=16000"`
	Timeout   time.Duration `env:"ANTHROPIC_TIMEOUT,default=240s"`
}

type Mail struct {
	APIKey  string        `env:"RESEND_API_KEY"`
	BaseURL string        `env:"RESEND_BASE_URL,default=https://api.resend.com"`
	From    string        `env:"MAIL_FROM,default=XL Benefits Portal <reports@xlbenefits.com>"`
	Spacing time.Duration `env:"MAIL_SEND_SPACING,default=1s"`
	Timeout time.Duration `env:"MAIL_TIMEOUT,default=30s"`
}

type Storage struct {
	Endpoint     string        `env:"WASABI_ENDPOINT,default=https://s3.us-west-1.wasabisys.com"`
	Region       string        `env:"WASABI_REGION,default=us-west-1"`
	Bucket       string        `env:"WASABI_BUCKET,default=xl-benefits"`
	AccessKey    string        `env:"WASABI_ACCESS_KEY"`
	SecretKey    string        `env:"WASABI_SECRET_KEY"`
	PresignTTL   time.Duration `env:"WASABI_PRESIGN_TTL,default=15m"`
	UploadPrefix string        `env:"WASABI_UPLOAD_PREFIX,default=pdf-uploads/"`
}

type App struct {
	HTTPAddr       string        `env:"HTTP_ADDR,default=:8080"`
	RequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT,default=30s"`
	TickTimeout    time.Duration `env:"TICK_TIMEOUT,default=280s"`
	SectionBudget  int           `env:"SECTION_CHAR_BUDGET,default=60000"`
	LogLevel       string        `env:"LOG_LEVEL,default=info"`

	Policy     Policy
	Trigger    Trigger
	Extraction Extraction
	LLM        LLM
	Mail       Mail
	Storage    Storage
}

// to help with testing
var envProcess = envconfig.Process

func LoadAppFromEnv(ctx context.Context) (*App, error) {
	var cfg App
	if err := envProcess(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := validateApp(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func validateApp(cfg *App) error {
	var errors []string

	if cfg.Policy.Lease <= 0 {
		errors = append(errors, "JOB_LEASE must be positive")
	}
	if cfg.Policy.MaxAttempts < 1 {
		errors = append(errors, "JOB_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.Policy.ParseCeiling < 1 {
		errors = append(errors, "JOB_PARSE_CEILING must be at least 1")
	}
	if cfg.Policy.BackoffBase < 0 || cfg.Policy.BackoffMax < cfg.Policy.BackoffBase {
		errors = append(errors, "JOB_BACKOFF_MAX must not be below JOB_BACKOFF_BASE")
	}
	if cfg.TickTimeout <= 0 {
		errors = append(errors, "TICK_TIMEOUT must be positive")
	} else if cfg.TickTimeout >= cfg.Policy.Lease {
		// a step outliving its lease could be claimed a second time
		errors = append(errors, "TICK_TIMEOUT must be shorter than JOB_LEASE")
	}
	if cfg.Policy.ClaimCandidates < 1 {
		errors = append(errors, "JOB_CLAIM_CANDIDATES must be at least 1")
	}

	if strings.TrimSpace(cfg.Trigger.Secret) == "" {
		errors = append(errors, "CRON_SECRET is required")
	}
	if cfg.Trigger.MaxFailures < 1 {
		errors = append(errors, "TRIGGER_MAX_FAILURES must be at least 1")
	}

	if cfg.Mail.Spacing < 0 {
		errors = append(errors, "MAIL_SEND_SPACING must not be negative")
	}
	if cfg.SectionBudget <= 0 {
		errors = append(errors, "SECTION_CHAR_BUDGET must be positive")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}

	return nil
}
