// Package stock synchronizes on-hand quantities per article and deposit into
// directory stock quants.
package stock

import (
	"context"

	"github.com/shopspring/decimal"

	"erpsync/internal/domain"
)

// Level is the stock of one article in one deposit.
type Level struct {
	Article string `db:"idarticulo"`
	Deposit string `db:"iddeposito"`

	Quantity     decimal.Decimal `db:"stock"`
	ReorderPoint decimal.Decimal `db:"puntopedido"`
}

// KeyParts implements entity.Keyed.
func (l *Level) KeyParts() []string {
	return []string{l.Article, l.Deposit}
}

// Repository reads stock levels from the catalog store.
type Repository interface {
	// ListLevels returns levels of articles with stock movements at or after
	// f.Since (all movements when zero).
	ListLevels(ctx context.Context, f domain.SourceFilter) ([]Level, error)
}
