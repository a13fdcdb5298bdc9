package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"docapp/internal/model"
	"docapp/internal/repository"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrDuplicateNumber = errors.New("document number already exists")
)

var tracer = otel.Tracer("docapp/internal/service")

// DocumentInput carries the caller-settable fields of a Document.
// Amount is always derived from Specifications.
type DocumentInput struct {
	Number         string
	Date           time.Time
	Note           *string
	Specifications []SpecificationInput
}

// DocumentService defines the use cases for the Document aggregate.
type DocumentService interface {
	// List returns every document with its specifications, ordered by ID.
	List(ctx context.Context) ([]model.Document, error)

	// Get returns a single document with its specifications.
	Get(ctx context.Context, id int64) (*model.Document, error)

	// Create stores a new document and its specifications with the computed amount.
	Create(ctx context.Context, in DocumentInput) (*model.Document, error)

	// Update replaces the header fields and reconciles the specification set.
	Update(ctx context.Context, id int64, in DocumentInput) (*model.Document, error)

	// Delete removes a document together with all of its specifications.
	Delete(ctx context.Context, id int64) error
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	repo  repository.DocumentRepository
	tx    repository.TxRunner
	guard *DuplicateGuard
}

// NewDocumentService constructs a new DocumentService.
// repo serves reads; writes go through tx.
func NewDocumentService(repo repository.DocumentRepository, tx repository.TxRunner, audit AuditLogger) DocumentService {
	return &documentService{repo: repo, tx: tx, guard: NewDuplicateGuard(audit)}
}

// List returns all documents. Stored amounts are already consistent.
func (s *documentService) List(ctx context.Context) ([]model.Document, error) {
	return s.repo.List(ctx)
}

// Get returns a document by ID. Identifiers are serial, so non-positive ones never exist.
func (s *documentService) Get(ctx context.Context, id int64) (*model.Document, error) {
	if id <= 0 {
		return nil, ErrNotFound
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (s *documentService) Create(ctx context.Context, in DocumentInput) (*model.Document, error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Create",
		trace.WithAttributes(attribute.String("document.number", in.Number)))
	defer span.End()

	doc := &model.Document{
		Number:         in.Number,
		Date:           in.Date,
		Note:           in.Note,
		Specifications: make([]model.Specification, 0, len(in.Specifications)),
	}
	for _, item := range normalizeItems(in.Specifications) {
		doc.Specifications = append(doc.Specifications, model.Specification{
			Name:   item.Name,
			Amount: item.Amount,
		})
	}
	doc.Amount = RecalculateAmount(doc)

	var created *model.Document
	err := s.tx.InTx(ctx, sql.LevelRepeatableRead, func(repo repository.DocumentRepository) error {
		if err := s.guard.Check(ctx, repo, in.Number, 0); err != nil {
			return err
		}
		var err error
		created, err = repo.Create(ctx, doc)
		return err
	})
	if err = s.guard.Translate(err); err != nil {
		return nil, s.fail(ctx, span, in.Number, "Create failed - duplicate key", err)
	}
	return created, nil
}

func (s *documentService) Update(ctx context.Context, id int64, in DocumentInput) (*model.Document, error) {
	if id <= 0 {
		return nil, ErrNotFound
	}
	ctx, span := tracer.Start(ctx, "DocumentService.Update",
		trace.WithAttributes(attribute.Int64("document.id", id), attribute.String("document.number", in.Number)))
	defer span.End()

	var updated *model.Document
	err := s.tx.InTx(ctx, sql.LevelRepeatableRead, func(repo repository.DocumentRepository) error {
		doc, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		if doc.Number != in.Number {
			if err := s.guard.Check(ctx, repo, in.Number, id); err != nil {
				return err
			}
		}

		doc.Number = in.Number
		doc.Date = in.Date
		doc.Note = in.Note

		rec := ReconcileSpecifications(doc.Specifications, normalizeItems(in.Specifications))
		doc.Specifications = rec.Children
		doc.Amount = RecalculateAmount(doc)

		updated, err = repo.Update(ctx, doc, rec.Removed)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	})
	if err = s.guard.Translate(err); err != nil {
		return nil, s.fail(ctx, span, in.Number, fmt.Sprintf("Update failed - duplicate key (id=%d)", id), err)
	}
	return updated, nil
}

// Delete removes the document; children go in the same transaction.
func (s *documentService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrNotFound
	}
	ctx, span := tracer.Start(ctx, "DocumentService.Delete",
		trace.WithAttributes(attribute.Int64("document.id", id)))
	defer span.End()

	err := s.tx.InTx(ctx, sql.LevelReadCommitted, func(repo repository.DocumentRepository) error {
		deleted, err := repo.Delete(ctx, id)
		if err != nil {
			return err
		}
		if !deleted {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// fail runs after the write transaction has ended, so the audit entry is
// committed on its own unit of work whatever happened to the main one.
func (s *documentService) fail(ctx context.Context, span trace.Span, number, detail string, err error) error {
	if errors.Is(err, ErrDuplicateNumber) {
		span.SetAttributes(attribute.Bool("document.duplicate", true))
		return s.guard.Reject(ctx, number, detail)
	}
	span.SetStatus(codes.Error, err.Error())
	return err
}
