// Package directory defines the remote Business Directory Service: an object
// store reached by search, read, create, write and unlink per object kind.
package directory

import (
	"context"

	"erpsync/internal/domain/filter"
)

// Kind is a remote object model name, e.g. "product.template".
type Kind string

// Object kinds written by the sync jobs.
const (
	ProductTemplate Kind = "product.template"
	ProductVariant  Kind = "product.product"
	Pricelist       Kind = "product.pricelist"
	PricelistItem   Kind = "product.pricelist.item"
	Partner         Kind = "res.partner"
	User            Kind = "res.users"
	StockLocation   Kind = "stock.location"
	StockQuant      Kind = "stock.quant"
)

// FieldMap is a set of field values sent to or read from the directory.
type FieldMap map[string]any

// Record is one object read from the directory.
type Record struct {
	ID     int64
	Fields FieldMap
}

// Service is the remote object interface.
type Service interface {
	// Search returns ids of records matching domain, ordered as requested.
	Search(ctx context.Context, kind Kind, domain filter.Domain, opts ...SearchOption) ([]int64, error)

	// Read returns the requested fields of ids. Missing ids are omitted.
	Read(ctx context.Context, kind Kind, ids []int64, fields []string) ([]Record, error)

	// Create inserts a record and returns its id.
	Create(ctx context.Context, kind Kind, fields FieldMap) (int64, error)

	// Write updates all ids with fields.
	Write(ctx context.Context, kind Kind, ids []int64, fields FieldMap) (bool, error)

	// Unlink deletes ids.
	Unlink(ctx context.Context, kind Kind, ids []int64) (bool, error)
}

// SearchOptions controls a Search call.
type SearchOptions struct {
	Limit           int
	Order           string
	IncludeArchived bool
}

// SearchOption configures SearchOptions.
type SearchOption func(*SearchOptions)

// Limit caps the number of ids returned. Zero means no limit.
func Limit(n int) SearchOption {
	return func(o *SearchOptions) { o.Limit = n }
}

// Order sets the sort expression, e.g. "id" or "write_date desc".
func Order(order string) SearchOption {
	return func(o *SearchOptions) { o.Order = order }
}

// IncludeArchived also returns records with active = false.
func IncludeArchived() SearchOption {
	return func(o *SearchOptions) { o.IncludeArchived = true }
}

// ApplySearchOptions folds opts into SearchOptions.
func ApplySearchOptions(opts ...SearchOption) SearchOptions {
	var o SearchOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
