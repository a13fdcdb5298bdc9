package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"docapp/internal/model"
	"docapp/internal/service"
)

const dateLayout = "2006-01-02"

// DocumentRequest is the body accepted by create and update.
// The document amount is derived server-side and cannot be submitted.
type DocumentRequest struct {
	Number         string                 `json:"number" validate:"notblank,max=50" example:"INV-2024-001"`
	Date           string                 `json:"date" validate:"required,datetime=2006-01-02" example:"2024-03-01"`
	Note           *string                `json:"note,omitempty"`
	Specifications []SpecificationRequest `json:"specifications" validate:"dive"`
}

// SpecificationRequest is one child line. Omit id to add a new line.
type SpecificationRequest struct {
	ID     *int64          `json:"id,omitempty" validate:"omitempty,gt=0"`
	Name   string          `json:"name" validate:"notblank,max=255" example:"Consulting"`
	// Checked by validateAmount: at least 0.01 with no more than two decimals.
	Amount decimal.Decimal `json:"amount" validate:"-" swaggertype:"string" example:"100.50"`
}

// DocumentResponse is the presentation of a stored document.
type DocumentResponse struct {
	ID             int64                   `json:"id"`
	Number         string                  `json:"number"`
	Date           string                  `json:"date"`
	Amount         string                  `json:"amount"`
	Note           *string                 `json:"note"`
	Specifications []SpecificationResponse `json:"specifications"`
}

type SpecificationResponse struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Amount string `json:"amount"`
}

// toInput assumes the request already passed validation.
func (r DocumentRequest) toInput() (service.DocumentInput, error) {
	date, err := time.Parse(dateLayout, r.Date)
	if err != nil {
		return service.DocumentInput{}, err
	}
	in := service.DocumentInput{
		Number:         r.Number,
		Date:           date,
		Note:           r.Note,
		Specifications: make([]service.SpecificationInput, 0, len(r.Specifications)),
	}
	for _, s := range r.Specifications {
		in.Specifications = append(in.Specifications, service.SpecificationInput{
			ID:     s.ID,
			Name:   s.Name,
			Amount: s.Amount,
		})
	}
	return in, nil
}

func newDocumentResponse(d *model.Document) DocumentResponse {
	res := DocumentResponse{
		ID:             d.ID,
		Number:         d.Number,
		Date:           d.Date.Format(dateLayout),
		Amount:         d.Amount.StringFixed(2),
		Note:           d.Note,
		Specifications: make([]SpecificationResponse, 0, len(d.Specifications)),
	}
	for _, s := range d.Specifications {
		res.Specifications = append(res.Specifications, SpecificationResponse{
			ID:     s.ID,
			Name:   s.Name,
			Amount: s.Amount.StringFixed(2),
		})
	}
	return res
}
