package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// MigrationState is one migration file and whether it has been applied.
type MigrationState struct {
	Version   int64
	File      string
	Applied   bool
	AppliedAt time.Time
}

func newProvider(db *sql.DB, dir string) (*goose.Provider, error) {
	p, err := goose.NewProvider(goose.DialectPostgres, db, os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations from %s: %w", dir, err)
	}
	return p, nil
}

// RunMigrations applies every pending migration in dir.
func RunMigrations(ctx context.Context, db *sql.DB, dir string, logger *zap.Logger) error {
	p, err := newProvider(db, dir)
	if err != nil {
		return err
	}

	results, err := p.Up(ctx)
	for _, r := range results {
		logger.Info("Applied migration",
			zap.String("file", r.Source.Path),
			zap.Duration("took", r.Duration),
		)
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := p.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	logger.Info("Schema up to date", zap.Int64("version", version), zap.Int("applied", len(results)))
	return nil
}

// RollbackMigration reverts the most recently applied migration.
func RollbackMigration(ctx context.Context, db *sql.DB, dir string, logger *zap.Logger) error {
	p, err := newProvider(db, dir)
	if err != nil {
		return err
	}

	result, err := p.Down(ctx)
	if err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	logger.Info("Rolled back migration", zap.String("file", result.Source.Path))
	return nil
}

// MigrationStatus lists every migration in dir, oldest first.
func MigrationStatus(ctx context.Context, db *sql.DB, dir string) ([]MigrationState, error) {
	p, err := newProvider(db, dir)
	if err != nil {
		return nil, err
	}

	statuses, err := p.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration status: %w", err)
	}

	out := make([]MigrationState, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, MigrationState{
			Version:   s.Source.Version,
			File:      s.Source.Path,
			Applied:   s.State == goose.StateApplied,
			AppliedAt: s.AppliedAt,
		})
	}
	return out, nil
}
