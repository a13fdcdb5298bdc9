package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"docapp/internal/repository"
)

// TxManager implements repository.TxRunner on a *sql.DB pool.
type TxManager struct {
	db *sql.DB
}

// NewTxManager creates a TxManager.
func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

var _ repository.TxRunner = (*TxManager)(nil)

// InTx begins a transaction, runs fn against a tx-bound repository and commits.
// Any error from fn, including a panic, rolls the transaction back.
func (m *TxManager) InTx(ctx context.Context, level sql.IsolationLevel, fn func(repo repository.DocumentRepository) error) (err error) {
	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{Isolation: level})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(NewDocumentPostgres(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
