package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Dialect selects the schema flavour.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

type migrationStep struct {
	Name string
	SQL  string
}

// seq gives the registry its insertion order; id stays the public identity.
var postgresSteps = []migrationStep{
	{
		Name: "create_table_documents",
		SQL: `CREATE TABLE IF NOT EXISTS documents (
  seq           BIGSERIAL   PRIMARY KEY,
  id            UUID        NOT NULL UNIQUE,
  owner_id      TEXT        NOT NULL,
  owner_key     TEXT        NOT NULL,
  original_name TEXT        NOT NULL,
  blob_ref      TEXT        NOT NULL UNIQUE,
  size_bytes    BIGINT      NOT NULL CHECK (size_bytes >= 0),
  extension     TEXT        NOT NULL,
  content_type  TEXT        NOT NULL,
  created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_documents_owner_key",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_owner_key ON documents (owner_key, seq);`,
	},
	{
		Name: "create_index_documents_owner_name",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_owner_name ON documents (owner_key, original_name, seq);`,
	},
}

var sqliteSteps = []migrationStep{
	{
		Name: "create_table_documents",
		SQL: `CREATE TABLE IF NOT EXISTS documents (
  seq           INTEGER PRIMARY KEY AUTOINCREMENT,
  id            TEXT    NOT NULL UNIQUE,
  owner_id      TEXT    NOT NULL,
  owner_key     TEXT    NOT NULL,
  original_name TEXT    NOT NULL,
  blob_ref      TEXT    NOT NULL UNIQUE,
  size_bytes    INTEGER NOT NULL CHECK (size_bytes >= 0),
  extension     TEXT    NOT NULL,
  content_type  TEXT    NOT NULL,
  created_at    INTEGER NOT NULL
);`,
	},
	{
		Name: "create_index_documents_owner_key",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_owner_key ON documents (owner_key, seq);`,
	},
	{
		Name: "create_index_documents_owner_name",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_owner_name ON documents (owner_key, original_name, seq);`,
	},
}

func stepsFor(d Dialect) ([]migrationStep, string, error) {
	switch d {
	case Postgres:
		return postgresSteps, "SELECT to_regclass('public.documents') IS NOT NULL", nil
	case SQLite:
		return sqliteSteps, "SELECT COUNT(*) > 0 FROM sqlite_master WHERE type = 'table' AND name = 'documents'", nil
	default:
		return nil, "", fmt.Errorf("unsupported dialect %q", d)
	}
}

// EnsureMigrated checks if the 'documents' table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, dialect Dialect, log zerolog.Logger) error {
	start := time.Now()
	log = log.With().Str("component", "database").Str("dialect", string(dialect)).Logger()

	steps, sentinel, err := stepsFor(dialect)
	if err != nil {
		return err
	}

	log.Info().Str("event", "db_migration_check").Str("status", "starting").Msg("checking schema")

	var exists bool
	if err := db.QueryRowContext(ctx, sentinel).Scan(&exists); err != nil {
		log.Error().
			Str("event", "db_migration_failed").
			Str("status", "error").
			Err(err).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("failed to check sentinel table")
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info().
			Str("event", "db_migration_skip").
			Str("status", "success").
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("schema already exists, skipping migration")
		return nil
	}

	log.Info().Str("event", "db_migration_start").Str("status", "in_progress").Msg("applying schema")

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error().
				Str("event", "db_migration_failed").
				Str("status", "error").
				Str("migration_step", step.Name).
				Err(err).
				Int64("duration_ms", time.Since(start).Milliseconds()).
				Int64("step_duration_ms", time.Since(stepStart).Milliseconds()).
				Msg("migration step failed")
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Info().
			Str("event", "db_migration_step").
			Str("status", "success").
			Str("migration_step", step.Name).
			Int64("step_duration_ms", time.Since(stepStart).Milliseconds()).
			Msg("migration step applied")
	}

	log.Info().
		Str("event", "db_migration_success").
		Str("status", "success").
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("schema ready")

	return nil
}
