package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/productapi/internal/model"
)

// MemoryStore implements Store interface with in-memory storage.
// Products are kept in insertion order; index maps an ID to its position.
type MemoryStore struct {
	mu       sync.RWMutex
	products []model.Product
	index    map[string]int
	newID    func() string
}

// NewMemoryStore creates a new MemoryStore holding the given products in order.
// Seed products keep the IDs they carry.
func NewMemoryStore(seed ...model.Product) *MemoryStore {
	s := &MemoryStore{
		products: make([]model.Product, 0, len(seed)),
		index:    make(map[string]int, len(seed)),
		newID:    uuid.NewString,
	}

	for _, p := range seed {
		if _, exists := s.index[p.ID]; exists || p.ID == "" {
			continue
		}
		s.index[p.ID] = len(s.products)
		s.products = append(s.products, p)
	}

	return s
}

// List returns all products from the store.
func (s *MemoryStore) List(ctx context.Context) ([]model.Product, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("list products: %w", ctx.Err())
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]model.Product, len(s.products))
	copy(products, s.products)

	return products, nil
}

// Get retrieves a product by its ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*model.Product, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("get product: %w", ctx.Err())
	default:
	}

	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	i, exists := s.index[id]
	if !exists {
		return nil, ErrNotFound
	}

	product := s.products[i]
	return &product, nil
}

// Create adds a new product to the store and returns it with a generated ID.
func (s *MemoryStore) Create(ctx context.Context, input *model.ProductInput) (*model.Product, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("create product: %w", ctx.Err())
	default:
	}

	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	product := input.Product()

	s.mu.Lock()
	defer s.mu.Unlock()

	product.ID = s.uniqueID()
	s.index[product.ID] = len(s.products)
	s.products = append(s.products, product)

	return &product, nil
}

// Update modifies an existing product in the store.
func (s *MemoryStore) Update(ctx context.Context, id string, patch *model.ProductPatch) (*model.Product, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("update product: %w", ctx.Err())
	default:
	}

	if id == "" {
		return nil, ErrInvalidID
	}

	if err := patch.Validate(); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, exists := s.index[id]
	if !exists {
		return nil, ErrNotFound
	}

	patch.Apply(&s.products[i])

	product := s.products[i]
	return &product, nil
}

// Delete removes a product from the store by its ID.
func (s *MemoryStore) Delete(ctx context.Context, id string) (*model.Product, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("delete product: %w", ctx.Err())
	default:
	}

	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, exists := s.index[id]
	if !exists {
		return nil, ErrNotFound
	}

	removed := s.products[i]
	s.products = append(s.products[:i], s.products[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.products); j++ {
		s.index[s.products[j].ID] = j
	}

	return &removed, nil
}

// uniqueID returns an ID not currently held by any product.
// Must be called with mu held.
func (s *MemoryStore) uniqueID() string {
	for {
		id := s.newID()
		if _, taken := s.index[id]; !taken {
			return id
		}
	}
}
