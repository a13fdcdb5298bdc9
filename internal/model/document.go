package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Document is the header of a business transaction identified by a unique Number.
// Amount is always the exact sum of its Specifications and is never set by callers.
type Document struct {
	ID             int64           `json:"id"`
	Number         string          `json:"number"`
	Date           time.Time       `json:"date"`
	Amount         decimal.Decimal `json:"amount"`
	Note           *string         `json:"note,omitempty"`
	Specifications []Specification `json:"specifications"`
}

// Specification is a line item owned by exactly one Document.
// DocumentID is a lookup key only; ownership flows from Document.Specifications.
type Specification struct {
	ID         int64           `json:"id"`
	DocumentID int64           `json:"document_id"`
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
}
