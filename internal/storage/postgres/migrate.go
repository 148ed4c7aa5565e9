package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/joshu-sajeev/brokerjobs/internal/models"
	"github.com/joshu-sajeev/brokerjobs/migrations"
	"github.com/pressly/goose/v3"
	"gorm.io/gorm"
)

// Models lists every table the processor owns, in dependency order.
func Models() []any {
	return []any{
		&models.Job{},
		&models.PendingMatch{},
		&models.RosterMember{},
		&models.Delivery{},
	}
}

func newGooseProvider(db *sql.DB) (*goose.Provider, error) {
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return nil, fmt.Errorf("create migration provider: %w", err)
	}
	return provider, nil
}

// Migrate applies every pending SQL migration embedded in the binary.
func Migrate(ctx context.Context, db *sql.DB) error {
	provider, err := newGooseProvider(db)
	if err != nil {
		return err
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, r := range results {
		slog.Info("db.migrate.applied", "version", r.Source.Version, "file", r.Source.Path, "duration", r.Duration)
	}
	return nil
}

// MigrationStatus reports, per migration, whether it has been applied.
func MigrationStatus(ctx context.Context, db *sql.DB) ([]*goose.MigrationStatus, error) {
	provider, err := newGooseProvider(db)
	if err != nil {
		return nil, err
	}

	statuses, err := provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("migration status: %w", err)
	}
	return statuses, nil
}

// MigrateModels creates the tables from the gorm models. Only used against
// sqlite, which cannot run the Postgres migrations.
func MigrateModels(db *gorm.DB, models ...any) error {
	if len(models) == 0 {
		models = Models()
	}
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}
	return nil
}
