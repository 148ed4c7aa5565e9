package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppFromEnv_Defaults(t *testing.T) {
	lookuper := envconfig.MapLookuper(map[string]string{
		"CRON_SECRET": "s3cret",
	})

	original := envProcess
	t.Cleanup(func() { envProcess = original })
	envProcess = func(ctx context.Context, v any, mus ...envconfig.Mutator) error {
		return envconfig.ProcessWith(ctx, &envconfig.Config{Target: v, Lookuper: lookuper})
	}

	cfg, err := LoadAppFromEnv(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Policy.MaxAttempts)
	assert.Equal(t, 2, cfg.Policy.ParseCeiling)
	assert.Equal(t, 5*time.Minute, cfg.Policy.Lease)
	assert.Equal(t, 30*time.Second, cfg.Policy.BackoffBase)
	assert.Equal(t, 10*time.Minute, cfg.Policy.BackoffMax)
	assert.Equal(t, "* * * * *", cfg.Trigger.Schedule)
	assert.Equal(t, 60000, cfg.SectionBudget)
	assert.Equal(t, "pdf-uploads/", cfg.Storage.UploadPrefix)
	assert.Equal(t, time.Second, cfg.Mail.Spacing)
}

func TestLoadAppFromEnv_RequiresSecret(t *testing.T) {
	original := envProcess
	t.Cleanup(func() { envProcess = original })
	envProcess = func(ctx context.Context, v any, mus ...envconfig.Mutator) error {
		return envconfig.ProcessWith(ctx, &envconfig.Config{
			Target:   v,
			Lookuper: envconfig.MapLookuper(map[string]string{}),
		})
	}

	_, err := LoadAppFromEnv(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "CRON_SECRET is required")
}

func TestValidateApp(t *testing.T) {
	valid := func() App {
		return App{
			TickTimeout:   280 * time.Second,
			SectionBudget: 60000,
			Policy: Policy{
				Lease:           5 * time.Minute,
				MaxAttempts:     3,
				ParseCeiling:    2,
				BackoffBase:     30 * time.Second,
				BackoffMax:      10 * time.Minute,
				ClaimCandidates: 5,
			},
			Trigger: Trigger{Secret: "s3cret", MaxFailures: 10},
		}
	}

	tests := []struct {
		name     string
		mutate   func(*App)
		contains []string
	}{
		{name: "valid", mutate: func(*App) {}},
		{
			name: "policy bounds",
			mutate: func(a *App) {
				a.Policy.Lease = 0
				a.Policy.MaxAttempts = 0
				a.Policy.ParseCeiling = 0
				a.Policy.BackoffMax = 1
			},
			contains: []string{
				"JOB_LEASE must be positive",
				"JOB_MAX_ATTEMPTS must be at least 1",
				"JOB_PARSE_CEILING must be at least 1",
				"JOB_BACKOFF_MAX must not be below JOB_BACKOFF_BASE",
			},
		},
		{
			name:     "tick outlives lease",
			mutate:   func(a *App) { a.Policy.Lease = time.Minute },
			contains: []string{"TICK_TIMEOUT must be shorter than JOB_LEASE"},
		},
		{
			name:     "tick equal to lease",
			mutate:   func(a *App) { a.TickTimeout = a.Policy.Lease },
			contains: []string{"TICK_TIMEOUT must be shorter than JOB_LEASE"},
		},
		{
			name:     "no tick timeout",
			mutate:   func(a *App) { a.TickTimeout = 0 },
			contains: []string{"TICK_TIMEOUT must be positive"},
		},
		{
			name:     "blank secret",
			mutate:   func(a *App) { a.Trigger.Secret = "   " },
			contains: []string{"CRON_SECRET is required"},
		},
		{
			name: "negative spacing and empty budget",
			mutate: func(a *App) {
				a.Mail.Spacing = -1
				a.SectionBudget = 0
			},
			contains: []string{"MAIL_SEND_SPACING must not be negative", "SECTION_CHAR_BUDGET must be positive"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := validateApp(&cfg)

			if len(tt.contains) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, err.Error(), s)
			}
		})
	}
}
