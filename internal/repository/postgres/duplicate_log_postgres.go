package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"docapp/internal/model"
	"docapp/internal/repository"
)

// DuplicateLogPostgres writes duplicate_log rows on a transaction of its own.
type DuplicateLogPostgres struct {
	db *sql.DB
}

// NewDuplicateLogPostgres creates a DuplicateLogPostgres repository.
func NewDuplicateLogPostgres(db *sql.DB) *DuplicateLogPostgres {
	return &DuplicateLogPostgres{db: db}
}

var _ repository.DuplicateLogRepository = (*DuplicateLogPostgres)(nil)

// Insert commits the entry independently of any transaction the caller holds.
func (r *DuplicateLogPostgres) Insert(ctx context.Context, entry model.DuplicateLogEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin duplicate log tx: %w", err)
	}

	const q = `
		INSERT INTO duplicate_log (entity_type, duplicate_value, context, timestamp)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := tx.ExecContext(ctx, q, entry.EntityType, entry.DuplicateValue, entry.Context, entry.Timestamp); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert duplicate log: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit duplicate log: %w", err)
	}
	return nil
}
