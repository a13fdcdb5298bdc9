package repository

import (
	"context"

	"docapp/internal/model"
)

// DocumentRepository defines data access for the Document aggregate using SQL queries only.
// No business logic here: amounts, reconciliation and duplicate policy belong to the service.
type DocumentRepository interface {
	// Create inserts the document header and all of its specifications.
	// Returns the stored aggregate with identifiers assigned by the database.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// Update writes the header fields and applies the child changes:
	// specifications with ID 0 are inserted, the rest are updated in place,
	// and removedIDs are deleted. Children are returned in ascending ID order.
	Update(ctx context.Context, doc *model.Document, removedIDs []int64) (*model.Document, error)

	// FindByID returns a document with its specifications ordered by ID.
	// Returns sql.ErrNoRows when it does not exist.
	FindByID(ctx context.Context, id int64) (*model.Document, error)

	// FindByNumber returns the header of the document holding number, or sql.ErrNoRows.
	FindByNumber(ctx context.Context, number string) (*model.Document, error)

	// List returns every document with its specifications, ordered by ID.
	List(ctx context.Context) ([]model.Document, error)

	// Delete removes a document and all of its specifications.
	// It reports whether a document row was deleted.
	Delete(ctx context.Context, id int64) (bool, error)
}
