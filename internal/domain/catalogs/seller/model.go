// Package seller turns catalog sellers into directory users and links each
// user to the partner that represents the seller.
package seller

import (
	"context"

	"erpsync/internal/domain"
)

// Seller is a row of the sellers view.
type Seller struct {
	ID     string `db:"idvendedor"`
	Name   string `db:"nombre"`
	Email  string `db:"e_mail"`
	Street string `db:"domicilio"`
	City   string `db:"localidad"`
	Zip    string `db:"codigopostal"`
	Phone  string `db:"telefono"`
}

// KeyParts implements entity.Keyed. Users are matched by login, which is the
// seller's email.
func (s *Seller) KeyParts() []string {
	return []string{s.Email}
}

// Repository reads sellers. SourceFilter.Codes holds emails.
type Repository interface {
	ListSellers(ctx context.Context, f domain.SourceFilter) ([]Seller, error)
}
