package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_documents",
		SQL: `CREATE TABLE IF NOT EXISTS documents (
  id     BIGSERIAL     PRIMARY KEY,
  number VARCHAR(50)   NOT NULL CONSTRAINT uq_documents_number UNIQUE,
  date   DATE          NOT NULL,
  amount NUMERIC(19,2) NOT NULL DEFAULT 0,
  note   TEXT
);`,
	},
	{
		Name: "create_table_specifications",
		SQL: `CREATE TABLE IF NOT EXISTS specifications (
  id          BIGSERIAL     PRIMARY KEY,
  document_id BIGINT        NOT NULL REFERENCES documents (id) ON DELETE CASCADE,
  name        VARCHAR(255)  NOT NULL,
  amount      NUMERIC(19,2) NOT NULL CHECK (amount > 0)
);`,
	},
	{
		Name: "create_index_specifications_document_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_specifications_document_id ON specifications (document_id, id);`,
	},
	{
		Name: "create_table_duplicate_log",
		SQL: `CREATE TABLE IF NOT EXISTS duplicate_log (
  id              BIGSERIAL   PRIMARY KEY,
  entity_type     TEXT        NOT NULL,
  duplicate_value TEXT        NOT NULL,
  context         TEXT,
  timestamp       TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_duplicate_log_value",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_duplicate_log_value ON duplicate_log (entity_type, duplicate_value);`,
	},
}

// schemaQuery reports whether every table the steps create is present. A
// partial schema fails the check and the steps rerun; each one is IF NOT EXISTS.
const schemaQuery = `SELECT to_regclass('public.documents') IS NOT NULL
	AND to_regclass('public.specifications') IS NOT NULL
	AND to_regclass('public.duplicate_log') IS NOT NULL`

// EnsureMigrated runs the migration steps unless the full schema already exists.
func EnsureMigrated(ctx context.Context, db *sql.DB, log *logrus.Logger, dbHost string) error {
	start := time.Now()
	entry := log.WithFields(logrus.Fields{
		"component": "database",
		"db_host":   dbHost,
	})

	entry.WithField("event", "db_migration_check").Info("checking schema")

	var exists bool
	err := db.QueryRowContext(ctx, schemaQuery).Scan(&exists)
	if err != nil {
		entry.WithFields(logrus.Fields{
			"event":       "db_migration_failed",
			"duration_ms": time.Since(start).Milliseconds(),
		}).WithError(err).Error("failed to check schema tables")
		return fmt.Errorf("failed to check schema tables: %w", err)
	}

	if exists {
		entry.WithFields(logrus.Fields{
			"event":       "db_migration_skip",
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("schema already exists, skipping migration")
		return nil
	}

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			entry.WithFields(logrus.Fields{
				"event":            "db_migration_failed",
				"migration_step":   step.Name,
				"duration_ms":      time.Since(start).Milliseconds(),
				"step_duration_ms": time.Since(stepStart).Milliseconds(),
			}).WithError(err).Error("migration step failed")
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		entry.WithFields(logrus.Fields{
			"event":            "db_migration_step",
			"migration_step":   step.Name,
			"step_duration_ms": time.Since(stepStart).Milliseconds(),
		}).Info("migration step applied")
	}

	entry.WithFields(logrus.Fields{
		"event":       "db_migration_success",
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("schema migrated")

	return nil
}
