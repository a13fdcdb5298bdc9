package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"docapp/internal/service"
)

var errInvalidID = errors.New("invalid document id")

// parseID reads the :id path parameter. Only non-numeric input is rejected;
// numeric ids that match nothing are the service's NotFound.
func parseID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, errInvalidID
	}
	return id, nil
}

// bindDocument parses and validates the JSON body.
func bindDocument(c *fiber.Ctx, requireSpecifications bool) (service.DocumentInput, error) {
	var req DocumentRequest
	if err := c.BodyParser(&req); err != nil {
		return service.DocumentInput{}, fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validateDocument(&req, requireSpecifications); err != nil {
		return service.DocumentInput{}, err
	}
	return req.toInput()
}

// ListDocuments returns every document with its specifications.
//
//	@Summary	List documents
//	@Tags		documents
//	@Produce	json
//	@Success	200	{array}		DocumentResponse
//	@Failure	500	{object}	errorPayload
//	@Router		/documents [get]
func ListDocuments(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		docs, err := svc.List(c.UserContext())
		if err != nil {
			return writeServiceError(c, err)
		}
		res := make([]DocumentResponse, 0, len(docs))
		for i := range docs {
			res = append(res, newDocumentResponse(&docs[i]))
		}
		return c.JSON(res)
	}
}

// GetDocument returns one document.
//
//	@Summary	Get document
//	@Tags		documents
//	@Produce	json
//	@Param		id	path		int	true	"Document ID"
//	@Success	200	{object}	DocumentResponse
//	@Failure	400	{object}	errorPayload
//	@Failure	404	{object}	errorPayload
//	@Router		/documents/{id} [get]
func GetDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return writeServiceError(c, err)
		}
		doc, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(newDocumentResponse(doc))
	}
}

// CreateDocument stores a new document. At least one specification is required.
//
//	@Summary	Create document
//	@Tags		documents
//	@Accept		json
//	@Produce	json
//	@Param		body	body		DocumentRequest	true	"Document"
//	@Success	201		{object}	DocumentResponse
//	@Failure	400		{object}	errorPayload
//	@Failure	409		{object}	errorPayload
//	@Router		/documents [post]
func CreateDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		in, err := bindDocument(c, true)
		if err != nil {
			return writeServiceError(c, err)
		}
		doc, err := svc.Create(c.UserContext(), in)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(newDocumentResponse(doc))
	}
}

// UpdateDocument replaces header fields and reconciles specifications.
//
//	@Summary	Update document
//	@Tags		documents
//	@Accept		json
//	@Produce	json
//	@Param		id		path		int				true	"Document ID"
//	@Param		body	body		DocumentRequest	true	"Document"
//	@Success	200		{object}	DocumentResponse
//	@Failure	400		{object}	errorPayload
//	@Failure	404		{object}	errorPayload
//	@Failure	409		{object}	errorPayload
//	@Router		/documents/{id} [put]
func UpdateDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return writeServiceError(c, err)
		}
		in, err := bindDocument(c, false)
		if err != nil {
			return writeServiceError(c, err)
		}
		doc, err := svc.Update(c.UserContext(), id, in)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(newDocumentResponse(doc))
	}
}

// DeleteDocument removes a document and its specifications.
//
//	@Summary	Delete document
//	@Tags		documents
//	@Param		id	path	int	true	"Document ID"
//	@Success	204
//	@Failure	400	{object}	errorPayload
//	@Failure	404	{object}	errorPayload
//	@Router		/documents/{id} [delete]
func DeleteDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return writeServiceError(c, err)
		}
		if err := svc.Delete(c.UserContext(), id); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
