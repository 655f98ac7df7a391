// Package product synchronizes catalog articles into directory product
// templates: the master data, the archive flag and the pictures.
package product

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"erpsync/internal/core/apperror"
	"erpsync/internal/core/entity"
	"erpsync/internal/core/types"
)

// Article is one row of the article view (Артикул каталога).
type Article struct {
	// Code is the article code, the natural key (default_code)
	Code string `db:"idarticulo"`

	Name string `db:"descripcion"`

	// Unit is the catalog unit code, translated through the uom table
	Unit string `db:"idunidad"`

	FamilyID string `db:"idfamilia"`
	Family   string `db:"familia"`

	VATRate decimal.Decimal `db:"tasaiva"`

	// Currency is the catalog currency code, "1" is the base currency
	Currency string `db:"moneda"`

	Origin       string `db:"procedencia"`
	Presentation string `db:"presentacion"`

	Price types.Money `db:"precio1"`
	Cost  types.Money `db:"costo"`

	Suspended bool `db:"suspendido"`

	// ImagePath is the picture path relative to the fallback image folder
	ImagePath    string `db:"rutaimagen"`
	ImageChanged bool   `db:"modificoimagen"`

	CreatedAt *time.Time `db:"fhalta"`
}

var (
	_ entity.Validatable = (*Article)(nil)
	_ entity.Keyed       = (*Article)(nil)
)

// KeyParts implements entity.Keyed.
func (a *Article) KeyParts() []string {
	return []string{a.Code}
}

// Validate implements entity.Validatable.
func (a *Article) Validate(ctx context.Context) error {
	if a.Price.IsNegative() {
		return apperror.NewValidation("price is negative").
			WithDetail("code", a.Code).
			WithDetail("price", a.Price.String())
	}
	if a.Cost.IsNegative() {
		return apperror.NewValidation("cost is negative").
			WithDetail("code", a.Code).
			WithDetail("cost", a.Cost.String())
	}
	return nil
}
