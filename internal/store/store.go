// Package store provides data storage interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/vyrodovalexey/productapi/internal/model"
)

// Store errors.
var (
	ErrNotFound  = errors.New("product not found")
	ErrInvalidID = errors.New("invalid product ID")
)

// Store defines the interface for product storage operations.
type Store interface {
	// List returns a snapshot of all products in insertion order.
	List(ctx context.Context) ([]model.Product, error)

	// Get retrieves a product by its ID.
	Get(ctx context.Context, id string) (*model.Product, error)

	// Create validates the input, assigns a new ID and appends the product.
	Create(ctx context.Context, input *model.ProductInput) (*model.Product, error)

	// Update applies the supplied fields of the patch to an existing product.
	Update(ctx context.Context, id string, patch *model.ProductPatch) (*model.Product, error)

	// Delete removes a product by its ID and returns its last state.
	Delete(ctx context.Context, id string) (*model.Product, error)
}
