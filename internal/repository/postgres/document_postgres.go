package postgres

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"slices"

	"docapp/internal/model"
	"docapp/internal/repository"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db DBTX
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
// Pass a *sql.Tx to bind every statement to that transaction.
func NewDocumentPostgres(db DBTX) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const selectDocument = `SELECT id, number, date, amount, note FROM documents`

// Create inserts the header, then every specification, returning the stored aggregate.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	const q = `
		INSERT INTO documents (number, date, amount, note)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	out := *doc
	if err := r.db.QueryRowContext(ctx, q, doc.Number, doc.Date, doc.Amount, doc.Note).Scan(&out.ID); err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}

	out.Specifications = make([]model.Specification, 0, len(doc.Specifications))
	for _, spec := range doc.Specifications {
		stored, err := r.insertSpecification(ctx, out.ID, spec)
		if err != nil {
			return nil, err
		}
		out.Specifications = append(out.Specifications, stored)
	}
	return &out, nil
}

// Update writes the header and reconciles child rows in one pass.
func (r *DocumentPostgres) Update(ctx context.Context, doc *model.Document, removedIDs []int64) (*model.Document, error) {
	const qHeader = `
		UPDATE documents
		SET number = $2, date = $3, amount = $4, note = $5
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, qHeader, doc.ID, doc.Number, doc.Date, doc.Amount, doc.Note)
	if err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, sql.ErrNoRows
	}

	const qDelete = `DELETE FROM specifications WHERE id = $1 AND document_id = $2`
	for _, id := range removedIDs {
		if _, err := r.db.ExecContext(ctx, qDelete, id, doc.ID); err != nil {
			return nil, fmt.Errorf("delete specification %d: %w", id, err)
		}
	}

	const qUpdate = `
		UPDATE specifications
		SET name = $2, amount = $3
		WHERE id = $1 AND document_id = $4
	`
	out := *doc
	out.Specifications = make([]model.Specification, 0, len(doc.Specifications))
	for _, spec := range doc.Specifications {
		if spec.ID == 0 {
			stored, err := r.insertSpecification(ctx, doc.ID, spec)
			if err != nil {
				return nil, err
			}
			out.Specifications = append(out.Specifications, stored)
			continue
		}
		if _, err := r.db.ExecContext(ctx, qUpdate, spec.ID, spec.Name, spec.Amount, doc.ID); err != nil {
			return nil, fmt.Errorf("update specification %d: %w", spec.ID, err)
		}
		spec.DocumentID = doc.ID
		out.Specifications = append(out.Specifications, spec)
	}

	slices.SortFunc(out.Specifications, func(a, b model.Specification) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return &out, nil
}

// FindByID fetches a single document together with its specifications.
func (r *DocumentPostgres) FindByID(ctx context.Context, id int64) (*model.Document, error) {
	d, err := r.scanDocument(r.db.QueryRowContext(ctx, selectDocument+` WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	const q = `
		SELECT id, document_id, name, amount
		FROM specifications
		WHERE document_id = $1
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("query specifications: %w", err)
	}
	defer rows.Close()

	d.Specifications, err = scanSpecifications(rows)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// FindByNumber fetches a document header by its business number.
func (r *DocumentPostgres) FindByNumber(ctx context.Context, number string) (*model.Document, error) {
	return r.scanDocument(r.db.QueryRowContext(ctx, selectDocument+` WHERE number = $1`, number))
}

// List returns all documents ordered by ID with two queries, grouping children in memory.
func (r *DocumentPostgres) List(ctx context.Context) ([]model.Document, error) {
	rows, err := r.db.QueryContext(ctx, selectDocument+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	index := make(map[int64]int)
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.ID, &d.Number, &d.Date, &d.Amount, &d.Note); err != nil {
			return nil, err
		}
		d.Specifications = make([]model.Specification, 0)
		index[d.ID] = len(items)
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}

	const q = `
		SELECT id, document_id, name, amount
		FROM specifications
		ORDER BY document_id, id
	`
	specRows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query specifications: %w", err)
	}
	defer specRows.Close()

	specs, err := scanSpecifications(specRows)
	if err != nil {
		return nil, err
	}
	for _, s := range specs {
		// Rows committed after the header query are skipped.
		if i, ok := index[s.DocumentID]; ok {
			items[i].Specifications = append(items[i].Specifications, s)
		}
	}
	return items, nil
}

// Delete removes the children explicitly, then the header.
func (r *DocumentPostgres) Delete(ctx context.Context, id int64) (bool, error) {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM specifications WHERE document_id = $1`, id); err != nil {
		return false, fmt.Errorf("delete specifications: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *DocumentPostgres) insertSpecification(ctx context.Context, documentID int64, spec model.Specification) (model.Specification, error) {
	const q = `
		INSERT INTO specifications (document_id, name, amount)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	spec.DocumentID = documentID
	if err := r.db.QueryRowContext(ctx, q, documentID, spec.Name, spec.Amount).Scan(&spec.ID); err != nil {
		return model.Specification{}, fmt.Errorf("insert specification: %w", err)
	}
	return spec, nil
}

func (r *DocumentPostgres) scanDocument(row *sql.Row) (*model.Document, error) {
	var d model.Document
	if err := row.Scan(&d.ID, &d.Number, &d.Date, &d.Amount, &d.Note); err != nil {
		return nil, err
	}
	d.Specifications = make([]model.Specification, 0)
	return &d, nil
}

func scanSpecifications(rows *sql.Rows) ([]model.Specification, error) {
	specs := make([]model.Specification, 0)
	for rows.Next() {
		var s model.Specification
		if err := rows.Scan(&s.ID, &s.DocumentID, &s.Name, &s.Amount); err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return specs, nil
}
