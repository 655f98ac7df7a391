// Package partner synchronizes customer and supplier accounts into directory
// partners, and assigns salespeople to customers.
package partner

import (
	"context"
	"strings"

	"erpsync/internal/domain"
)

// Account kinds (tipo de vista).
const (
	KindCustomer = "CL"
	KindSupplier = "PR"
)

// DocTypeCUIT is the document type whose number is the tax id.
const DocTypeCUIT = "1"

// Account is a customer or supplier account with its additional data.
type Account struct {
	Code    string `db:"codigo"`
	Name    string `db:"razon_social"`
	Kind    string `db:"tipovista"`
	Retired string `db:"dada_de_baja"`

	Email   string `db:"mail"`
	Phone   string `db:"telefono"`
	Street  string `db:"calle"`
	City    string `db:"localidad"`
	State   string `db:"provincia"`
	Country string `db:"pais"`

	DocType      string `db:"documento_tipo"`
	DocNumber    string `db:"numero_documento"`
	TaxCondition string `db:"iva"`

	// PriceList is the catalog price list id, matched on x_idlista
	PriceList string `db:"idlista"`
}

// KeyParts implements entity.Keyed.
func (a *Account) KeyParts() []string {
	return []string{a.Code}
}

// IsCustomer reports a customer account.
func (a *Account) IsCustomer() bool {
	return strings.EqualFold(strings.TrimSpace(a.Kind), KindCustomer)
}

// IsSupplier reports a supplier account.
func (a *Account) IsSupplier() bool {
	return strings.EqualFold(strings.TrimSpace(a.Kind), KindSupplier)
}

// CustomerLink ties a customer account to its seller.
type CustomerLink struct {
	Code        string `db:"codigo"`
	SellerID    string `db:"idvendedor"`
	SellerEmail string `db:"e_mail"`
}

// Repository reads accounts from the catalog store.
type Repository interface {
	// ListAccounts returns customer and supplier accounts.
	ListAccounts(ctx context.Context, f domain.SourceFilter) ([]Account, error)

	// ListSellerCustomers returns the customers assigned to one seller.
	ListSellerCustomers(ctx context.Context, sellerID string) ([]CustomerLink, error)
}
