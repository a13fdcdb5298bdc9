package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"docapp/internal/model"
	"docapp/internal/repository"
)

const (
	pgUniqueViolation   = "23505"
	numberConstraintKey = "uq_documents_number"
)

// DuplicateGuard keeps Document.Number unique. Check is a cheap pre-check inside the
// caller's transaction; the unique constraint, surfaced through Translate, is final.
type DuplicateGuard struct {
	audit AuditLogger
}

// NewDuplicateGuard creates a DuplicateGuard reporting rejections to audit.
func NewDuplicateGuard(audit AuditLogger) *DuplicateGuard {
	return &DuplicateGuard{audit: audit}
}

// Check returns ErrDuplicateNumber when another document already holds number.
// excludingID is the document being updated, or 0 on create.
func (g *DuplicateGuard) Check(ctx context.Context, repo repository.DocumentRepository, number string, excludingID int64) error {
	existing, err := repo.FindByNumber(ctx, number)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check document number: %w", err)
	}
	if existing.ID != excludingID {
		return ErrDuplicateNumber
	}
	return nil
}

// Translate maps a unique violation on the document number to ErrDuplicateNumber
// and returns any other error unchanged.
func (g *DuplicateGuard) Translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation &&
		(pgErr.ConstraintName == numberConstraintKey || pgErr.ConstraintName == "") {
		return ErrDuplicateNumber
	}
	return err
}

// Reject records the rejected number and returns ErrDuplicateNumber.
// The audit outcome never changes the returned error.
func (g *DuplicateGuard) Reject(ctx context.Context, number, detail string) error {
	g.audit.LogDuplicate(ctx, model.EntityDocument, number, detail)
	return ErrDuplicateNumber
}
