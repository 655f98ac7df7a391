package product

import (
	"context"

	"erpsync/internal/domain"
)

// Repository reads articles from the catalog store.
type Repository interface {
	// ListForSale returns articles that have at least one sale price rule.
	ListForSale(ctx context.Context, f domain.SourceFilter) ([]Article, error)

	// ListRetired returns articles without a sale price rule or suspended.
	ListRetired(ctx context.Context, f domain.SourceFilter) ([]Article, error)

	// ListImageChanges returns articles whose picture changed, or that were
	// created at or after f.Since.
	ListImageChanges(ctx context.Context, f domain.SourceFilter) ([]Article, error)

	// MarkImageSynced clears the picture-changed flag of one article.
	// Must run inside a transaction from the context.
	MarkImageSynced(ctx context.Context, code string) error
}
