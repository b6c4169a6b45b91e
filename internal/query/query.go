// Package query implements the read-side operations over catalog snapshots:
// category filtering, pagination windows, name search and category counts.
package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/vyrodovalexey/productapi/internal/model"
)

// Pagination defaults.
const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// Query errors.
var (
	ErrInvalidPage  = errors.New("page must be a positive integer")
	ErrInvalidLimit = errors.New("limit must be a positive integer")
)

// fold is safe for concurrent use; cases.Caser itself is not.
func fold(s string) string {
	return cases.Fold().String(s)
}

// Filter returns the products whose category equals category, ignoring case.
// An empty category matches every product.
func Filter(products []model.Product, category string) []model.Product {
	if category == "" {
		return products
	}

	want := fold(category)
	out := make([]model.Product, 0, len(products))
	for _, p := range products {
		if fold(p.Category) == want {
			out = append(out, p)
		}
	}

	return out
}

// Paginate returns the 1-based page window of size limit.
// Windows past the end of the collection are empty, never an error.
func Paginate(products []model.Product, page, limit int) []model.Product {
	if page < 1 || limit < 1 {
		return []model.Product{}
	}

	// Compare before multiplying so huge inputs cannot overflow.
	if page-1 > len(products)/limit {
		return []model.Product{}
	}

	start := (page - 1) * limit
	if start >= len(products) {
		return []model.Product{}
	}

	end := len(products)
	if limit < end-start {
		end = start + limit
	}

	return products[start:end]
}

// Search returns the products whose name contains namePart, ignoring case.
func Search(products []model.Product, namePart string) []model.Product {
	want := fold(namePart)
	out := make([]model.Product, 0)
	for _, p := range products {
		if strings.Contains(fold(p.Name), want) {
			out = append(out, p)
		}
	}

	return out
}

// CategoryStats counts products per exact category value.
func CategoryStats(products []model.Product) model.CategoryStats {
	stats := make(model.CategoryStats)
	for _, p := range products {
		stats[p.Category]++
	}

	return stats
}

// ParsePagination converts raw page and limit query values to integers.
// Empty values fall back to the defaults; anything that is not a positive
// integer is rejected.
func ParsePagination(rawPage, rawLimit string) (page, limit int, err error) {
	page, err = parsePositive(rawPage, DefaultPage, ErrInvalidPage)
	if err != nil {
		return 0, 0, err
	}

	limit, err = parsePositive(rawLimit, DefaultLimit, ErrInvalidLimit)
	if err != nil {
		return 0, 0, err
	}

	return page, limit, nil
}

func parsePositive(raw string, def int, invalid error) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %q", invalid, raw)
	}

	return n, nil
}

// ListResult filters then paginates a snapshot, reporting the filtered total.
func ListResult(products []model.Product, category string, page, limit int) model.ListPage {
	filtered := Filter(products, category)

	return model.ListPage{
		Page:  page,
		Total: len(filtered),
		Data:  Paginate(filtered, page, limit),
	}
}
