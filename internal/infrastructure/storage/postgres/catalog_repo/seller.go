package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"erpsync/internal/domain"
	"erpsync/internal/domain/catalogs/seller"
	"erpsync/internal/infrastructure/storage/postgres"
)

// SellerRepo reads sellers from v_ta_vendedores. Codes filter by email.
type SellerRepo struct {
	*BaseViewRepo[seller.Seller]
}

var _ seller.Repository = (*SellerRepo)(nil)

// NewSellerRepo creates a new seller repository.
func NewSellerRepo(txm *postgres.TxManager) *SellerRepo {
	r := &SellerRepo{
		BaseViewRepo: NewBaseViewRepo[seller.Seller](txm, "v_ta_vendedores", "e_mail"),
	}
	r.orderBy = "nombre"
	return r
}

func (r *SellerRepo) sellersQuery(f domain.SourceFilter) (squirrel.SelectBuilder, error) {
	inner := r.Builder().
		Select(
			text("idvendedor", "idvendedor"),
			text("nombre", "nombre"),
			text("e_mail", "e_mail"),
			text("domicilio", "domicilio"),
			text("localidad", "localidad"),
			text("codigopostal", "codigopostal"),
			text("telefono", "telefono"),
		).
		From("v_ta_vendedores")
	return r.applySourceFilter(r.fromSelect(inner), f)
}

// ListSellers implements seller.Repository.
func (r *SellerRepo) ListSellers(ctx context.Context, f domain.SourceFilter) ([]seller.Seller, error) {
	q, err := r.sellersQuery(f)
	if err != nil {
		return nil, err
	}
	return r.selectAll(ctx, "list sellers", q)
}
