package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/shopspring/decimal"

	"docapp/internal/service"
)

// ValidationError lists rule violations as "field: rule".
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Violations, "; ")
}

var (
	validate = newValidator()

	minAmount = decimal.New(1, -service.AmountScale)
)

func newValidator() *validator.Validate {
	v := validator.New()

	// Report JSON names so messages match the request body.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// validateDocument runs the tag rules; creation additionally requires at
// least one specification.
func validateDocument(req *DocumentRequest, requireSpecifications bool) error {
	var violations []string

	if err := validate.Struct(req); err != nil {
		var ves validator.ValidationErrors
		if !errors.As(err, &ves) {
			return err
		}
		for _, fe := range ves {
			violations = append(violations, fieldPath(fe)+": "+fe.Tag())
		}
	}
	for i, spec := range req.Specifications {
		if rule := validateAmount(spec.Amount); rule != "" {
			violations = append(violations, fmt.Sprintf("specifications[%d].amount: %s", i, rule))
		}
	}
	if requireSpecifications && len(req.Specifications) == 0 {
		violations = append(violations, "specifications: min")
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// validateAmount reports the violated rule, or "" for an acceptable amount.
// Amounts must fit the stored scale exactly.
func validateAmount(d decimal.Decimal) string {
	switch {
	case d.LessThan(minAmount):
		return "min"
	case !d.Equal(d.Truncate(service.AmountScale)):
		return "scale"
	default:
		return ""
	}
}

// fieldPath drops the root struct name: "DocumentRequest.specifications[0].name"
// becomes "specifications[0].name".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
