// Package model defines data structures used throughout the application.
package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Product represents a single catalog record.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	InStock     bool    `json:"inStock"`
}

// ProductInput is the payload accepted when creating a product.
// Pointer fields record whether the caller supplied a value at all, so an
// explicit false for InStock is distinguishable from an omitted one.
type ProductInput struct {
	Name        *string  `json:"name" validate:"required,min=1"`
	Description *string  `json:"description" validate:"required,min=1"`
	Price       *float64 `json:"price" validate:"required,gt=0"`
	Category    *string  `json:"category" validate:"required,min=1"`
	InStock     *bool    `json:"inStock" validate:"required"`
}

// ProductPatch is the payload accepted when updating a product.
// Only non-nil fields are applied.
type ProductPatch struct {
	Name        *string  `json:"name" validate:"omitnil,min=1"`
	Description *string  `json:"description" validate:"omitnil,min=1"`
	Price       *float64 `json:"price" validate:"omitnil,gt=0"`
	Category    *string  `json:"category" validate:"omitnil,min=1"`
	InStock     *bool    `json:"inStock"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	// Report JSON field names rather than Go field names.
	validate.RegisterTagNameFunc(jsonFieldName)
}

// Validate checks that every required field is present and well formed.
func (in *ProductInput) Validate() error {
	if in == nil {
		return ErrNilProduct
	}
	return validationError("missing or invalid required fields", validate.Struct(in))
}

// Product builds a Product from a validated input. The ID is left empty.
func (in *ProductInput) Product() Product {
	return Product{
		Name:        *in.Name,
		Description: *in.Description,
		Price:       *in.Price,
		Category:    *in.Category,
		InStock:     *in.InStock,
	}
}

// Validate checks the supplied fields of the patch.
func (p *ProductPatch) Validate() error {
	if p == nil {
		return ErrNilProduct
	}
	return validationError("invalid fields", validate.Struct(p))
}

// Apply overwrites the fields of dst that the patch supplies.
func (p *ProductPatch) Apply(dst *Product) {
	if p.Name != nil {
		dst.Name = *p.Name
	}
	if p.Description != nil {
		dst.Description = *p.Description
	}
	if p.Price != nil {
		dst.Price = *p.Price
	}
	if p.Category != nil {
		dst.Category = *p.Category
	}
	if p.InStock != nil {
		dst.InStock = *p.InStock
	}
}

// ErrNilProduct is returned when a nil payload is validated.
var ErrNilProduct = errors.New("product cannot be nil")

// ValidationError lists the payload fields that failed validation.
type ValidationError struct {
	Message string
	Fields  []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Fields, ", "))
}

// validationError converts validator output into a *ValidationError.
func validationError(msg string, err error) error {
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validating product: %w", err)
	}

	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Field())
	}

	return &ValidationError{Message: msg, Fields: fields}
}

// jsonFieldName returns the JSON name of a struct field.
func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}
