package service

import (
	"github.com/shopspring/decimal"

	"docapp/internal/model"
)

// AmountScale is the number of fractional digits stored for every amount.
const AmountScale = 2

// RecalculateAmount returns the exact sum of the document's specification amounts.
// An empty set sums to zero. Positivity of items is checked at the input boundary.
func RecalculateAmount(doc *model.Document) decimal.Decimal {
	total := decimal.Zero
	for _, s := range doc.Specifications {
		total = total.Add(s.Amount)
	}
	return total
}

// normalizeItems rounds submitted amounts to the stored scale so the total is
// summed over exactly the values the database will keep.
func normalizeItems(items []SpecificationInput) []SpecificationInput {
	out := make([]SpecificationInput, len(items))
	for i, item := range items {
		item.Amount = item.Amount.Round(AmountScale)
		out[i] = item
	}
	return out
}
