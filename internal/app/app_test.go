package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/joshu-sajeev/brokerjobs/internal/config"
	"github.com/joshu-sajeev/brokerjobs/internal/models"
	"github.com/joshu-sajeev/brokerjobs/internal/orchestrator"
	"github.com/joshu-sajeev/brokerjobs/internal/ratelimit"
	"github.com/joshu-sajeev/brokerjobs/internal/storage/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testApp(t *testing.T) *App {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, postgres.MigrateModels(db))

	cfg := &config.App{
		TickTimeout:   time.Minute,
		SectionBudget: 60000,
		Policy: config.Policy{
			Lease:           5 * time.Minute,
			MaxAttempts:     3,
			ParseCeiling:    2,
			BackoffBase:     30 * time.Second,
			BackoffMax:      10 * time.Minute,
			ClaimCandidates: 5,
		},
		Trigger: config.Trigger{Secret: "s3cret", MaxFailures: 3, Lockout: time.Minute},
	}

	a := assemble(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), db, nil)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestAssemble_RegistersBothPipelines(t *testing.T) {
	a := testApp(t)

	report := a.Orchestrator.Tick(context.Background())

	require.Len(t, report.Kinds, 2)
	assert.Equal(t, config.KindConflictAnalysis, report.Kinds[0].Kind)
	assert.Equal(t, config.KindRosterImport, report.Kinds[1].Kind)
	for _, k := range report.Kinds {
		assert.Equal(t, orchestrator.ResultIdle, k.Result)
	}
	assert.NoError(t, a.Ping(context.Background()))
}

func TestAssemble_UndecodablePayloadFailsTheJob(t *testing.T) {
	a := testApp(t)
	ctx := context.Background()

	j := &models.Job{Kind: config.KindRosterImport, Payload: datatypes.JSON(`{"team_id":`)}
	require.NoError(t, a.Jobs.Create(ctx, j))

	report := a.Orchestrator.Tick(ctx)

	assert.Equal(t, orchestrator.ResultFailed, report.Kinds[1].Result)
	got, err := a.Jobs.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, config.JobStatusError, got.Status)
	assert.Equal(t, config.ErrorKindTerminal, got.ErrorKind)
	assert.NotEmpty(t, got.FailureSummary)
}

func TestLimiter_FallsBackToMemory(t *testing.T) {
	a := testApp(t)

	l, err := a.Limiter(context.Background())

	require.NoError(t, err)
	assert.IsType(t, &ratelimit.MemoryLimiter{}, l)
}

func TestNewLogger_Levels(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	ctx := context.Background()

	assert.True(t, NewLogger("debug").Enabled(ctx, slog.LevelDebug))
	assert.False(t, NewLogger("warn").Enabled(ctx, slog.LevelInfo))
	assert.False(t, NewLogger("").Enabled(ctx, slog.LevelDebug))
	assert.True(t, NewLogger("").Enabled(ctx, slog.LevelInfo))
}
