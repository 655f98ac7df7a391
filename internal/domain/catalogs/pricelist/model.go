// Package pricelist synchronizes the catalog's sale price rules into directory
// price lists and diagnoses duplicated directory rules.
package pricelist

import (
	"context"

	"erpsync/internal/core/types"
	"erpsync/internal/domain"
)

// BaseCurrency is the catalog code of the local currency.
const BaseCurrency = types.BaseCurrency

// Rule is one sale price of an article in a catalog price list.
type Rule struct {
	ListID  string `db:"idlista"`
	Article string `db:"idarticulo"`

	// Currency is the article's currency; Price is expressed in it
	Currency string      `db:"moneda"`
	Price    types.Money `db:"precio4"`
}

// KeyParts implements entity.Keyed. Rules are always for minimum quantity 1.
func (r *Rule) KeyParts() []string {
	return []string{r.ListID, r.Article, "1"}
}

// Repository reads price rules from the catalog store.
type Repository interface {
	// ListChanged returns sale rules of articles whose price changed at or
	// after f.Since. With foreignOnly, only articles priced in a foreign
	// currency are returned.
	ListChanged(ctx context.Context, f domain.SourceFilter, foreignOnly bool) ([]Rule, error)

	// LatestRates returns the most recent exchange rates by currency code.
	LatestRates(ctx context.Context) (types.Rates, error)
}
