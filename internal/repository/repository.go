package repository

import (
	"context"
	"database/sql"

	"docapp/internal/model"
)

// TxRunner runs fn inside a single database transaction at the given isolation level.
// The repository passed to fn is bound to that transaction. A non-nil error from fn
// rolls the transaction back and is returned unchanged.
type TxRunner interface {
	InTx(ctx context.Context, level sql.IsolationLevel, fn func(repo DocumentRepository) error) error
}

// DuplicateLogRepository persists duplicate-key rejections.
// Insert commits on its own transaction, never the caller's.
type DuplicateLogRepository interface {
	Insert(ctx context.Context, entry model.DuplicateLogEntry) error
}
