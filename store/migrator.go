package store

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
)

// The migration system applies the full schema (LATEST.sql for the active
// driver) to uninitialized databases, then seeds the cluster taxonomy when it
// is empty. The taxonomy is static at runtime; re-running Migrate against an
// initialized database is a no-op.

//go:embed migration
var migrationFS embed.FS

//go:embed seed
var seedFS embed.FS

const (
	// LatestSchemaFileName is the name of the latest schema file.
	LatestSchemaFileName = "LATEST.sql"
)

// Migrate initializes the database schema and seed data if needed.
func (s *Store) Migrate(ctx context.Context) error {
	initialized, err := s.driver.IsInitialized(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to check database initialization status")
	}

	if !initialized {
		filePath := fmt.Sprintf("migration/%s/%s", s.profile.Driver, LatestSchemaFileName)
		buf, err := migrationFS.ReadFile(filePath)
		if err != nil {
			return errors.Wrapf(err, "failed to read latest schema file %q", filePath)
		}

		if _, err := s.driver.GetDB().ExecContext(ctx, string(buf)); err != nil {
			return errors.Wrap(err, "failed to apply latest schema")
		}
		slog.Info("database initialized", slog.String("driver", s.profile.Driver))
	}

	if err := s.seedTaxonomy(ctx); err != nil {
		return errors.Wrap(err, "failed to seed cluster taxonomy")
	}
	return nil
}

func (s *Store) seedTaxonomy(ctx context.Context) error {
	var count int
	if err := s.driver.GetDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM cluster_taxonomy").Scan(&count); err != nil {
		return errors.Wrap(err, "failed to count taxonomy entries")
	}
	if count > 0 {
		return nil
	}

	buf, err := seedFS.ReadFile(fmt.Sprintf("seed/%s", LatestSchemaFileName))
	if err != nil {
		return errors.Wrap(err, "failed to read taxonomy seed file")
	}
	if _, err := s.driver.GetDB().ExecContext(ctx, string(buf)); err != nil {
		return errors.Wrap(err, "failed to apply taxonomy seed")
	}
	slog.Info("cluster taxonomy seeded")
	return nil
}
