package service

import (
	"github.com/shopspring/decimal"

	"docapp/internal/model"
)

// SpecificationInput is a submitted line item. A nil ID asks for a new child.
type SpecificationInput struct {
	ID     *int64
	Name   string
	Amount decimal.Decimal
}

// Reconciliation is the structural outcome of merging submitted items into a document.
type Reconciliation struct {
	// Children holds retained children (ascending ID, updated in place) followed by
	// new children with ID 0 in submission order.
	Children []model.Specification
	// Removed lists IDs of existing children that were not submitted.
	Removed []int64
}

// ReconcileSpecifications diffs submitted items against the persisted children.
// existing must be in ascending ID order. Amounts of the owner are not touched.
func ReconcileSpecifications(existing []model.Specification, submitted []SpecificationInput) Reconciliation {
	wanted := make(map[int64]struct{}, len(submitted))
	for _, in := range submitted {
		if in.ID != nil {
			wanted[*in.ID] = struct{}{}
		}
	}

	rec := Reconciliation{Children: make([]model.Specification, 0, len(submitted))}
	position := make(map[int64]int, len(existing))
	for _, s := range existing {
		if _, ok := wanted[s.ID]; !ok {
			rec.Removed = append(rec.Removed, s.ID)
			continue
		}
		position[s.ID] = len(rec.Children)
		rec.Children = append(rec.Children, s)
	}

	for _, in := range submitted {
		if in.ID != nil {
			if i, ok := position[*in.ID]; ok {
				rec.Children[i].Name = in.Name
				rec.Children[i].Amount = in.Amount
				continue
			}
		}
		// Unknown IDs are treated as new items; the database assigns the identifier.
		rec.Children = append(rec.Children, model.Specification{
			Name:   in.Name,
			Amount: in.Amount,
		})
	}
	return rec
}
