// Package app wires configuration, storage, collaborators and pipelines
// into the processes under cmd/.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joshu-sajeev/brokerjobs/internal/config"
	"github.com/joshu-sajeev/brokerjobs/internal/extract"
	"github.com/joshu-sajeev/brokerjobs/internal/llm"
	"github.com/joshu-sajeev/brokerjobs/internal/mailer"
	"github.com/joshu-sajeev/brokerjobs/internal/objectstore"
	"github.com/joshu-sajeev/brokerjobs/internal/orchestrator"
	"github.com/joshu-sajeev/brokerjobs/internal/pipeline"
	"github.com/joshu-sajeev/brokerjobs/internal/pipeline/conflict"
	"github.com/joshu-sajeev/brokerjobs/internal/pipeline/roster"
	"github.com/joshu-sajeev/brokerjobs/internal/policy"
	"github.com/joshu-sajeev/brokerjobs/internal/ratelimit"
	"github.com/joshu-sajeev/brokerjobs/internal/storage/postgres"
	"gorm.io/gorm"
)

type App struct {
	Config *config.App
	Logger *slog.Logger

	DB         *gorm.DB
	Jobs       *postgres.JobRepository
	Matches    *postgres.MatchRepository
	Members    *postgres.MemberRepository
	Deliveries *postgres.DeliveryRepository
	Files      *objectstore.Store

	Orchestrator *orchestrator.Orchestrator
}

// NewLogger returns a JSON slog logger at the named level and makes it the
// default.
func NewLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
	slog.SetDefault(logger)
	return logger
}

// Build loads configuration from the environment, connects to Postgres and
// object storage, and assembles the orchestrator with both pipelines.
func Build(ctx context.Context) (*App, error) {
	cfg, err := config.LoadAppFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	logger := NewLogger(cfg.LogLevel)

	dbCfg, err := postgres.LoadConfigFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	db, err := postgres.ConnectDB(ctx, dbCfg)
	if err != nil {
		return nil, err
	}

	files, err := objectstore.New(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}

	return assemble(cfg, logger, db, files), nil
}

func assemble(cfg *config.App, logger *slog.Logger, db *gorm.DB, files *objectstore.Store) *App {
	a := &App{
		Config:     cfg,
		Logger:     logger,
		DB:         db,
		Jobs:       postgres.NewJobRepository(db).WithCandidateLimit(cfg.Policy.ClaimCandidates),
		Matches:    postgres.NewMatchRepository(db),
		Members:    postgres.NewMemberRepository(db),
		Deliveries: postgres.NewDeliveryRepository(db),
		Files:      files,
	}

	extractor := extract.NewClient(cfg.Extraction, logger)
	completer := llm.NewClient(cfg.LLM, logger)

	pipelines := []pipeline.Pipeline{
		conflict.New(conflict.Deps{
			Storage:       files,
			Extractor:     extractor,
			LLM:           completer,
			Mailer:        mailer.NewClient(cfg.Mail, logger),
			Ledger:        a.Deliveries,
			SectionBudget: cfg.SectionBudget,
			SendSpacing:   cfg.Mail.Spacing,
			Logger:        logger,
		}),
		roster.New(roster.Deps{
			Files:     files,
			Extractor: extractor,
			LLM:       completer,
			Matches:   a.Matches,
			Members:   a.Members,
			Logger:    logger,
		}),
	}

	a.Orchestrator = orchestrator.New(a.Jobs, pipelines, orchestrator.Options{
		Policy: policy.FromConfig(cfg.Policy),
		Lease:  cfg.Policy.Lease,
		Logger: logger,
	})
	return a
}

// Limiter returns the Redis-backed trigger lockout when REDIS_URL is set and
// an in-process one otherwise.
func (a *App) Limiter(ctx context.Context) (ratelimit.Limiter, error) {
	t := a.Config.Trigger
	if t.RedisURL == "" {
		a.Logger.Warn("app.limiter.memory", "reason", "REDIS_URL not set")
		return ratelimit.NewMemoryLimiter(t.MaxFailures, t.Lockout), nil
	}
	client, err := ratelimit.NewRedisClient(ctx, t.RedisURL)
	if err != nil {
		return nil, err
	}
	return ratelimit.NewRedisLimiter(client, t.MaxFailures, t.Lockout), nil
}

// Ping reports whether the database answers.
func (a *App) Ping(ctx context.Context) error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (a *App) Close() error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
