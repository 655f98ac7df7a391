package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"erpsync/internal/domain"
	"erpsync/internal/domain/catalogs/partner"
	"erpsync/internal/infrastructure/storage/postgres"
)

// AccountRepo reads customer and supplier accounts (ma_cuentas) and the
// customers of each seller.
type AccountRepo struct {
	accounts *BaseViewRepo[partner.Account]
	links    *BaseViewRepo[partner.CustomerLink]
}

var _ partner.Repository = (*AccountRepo)(nil)

// NewAccountRepo creates a new account repository.
func NewAccountRepo(txm *postgres.TxManager) *AccountRepo {
	return &AccountRepo{
		accounts: NewBaseViewRepo[partner.Account](txm, "ma_cuentas", "codigo"),
		links:    NewBaseViewRepo[partner.CustomerLink](txm, "vt_clientes", "codigo"),
	}
}

func (r *AccountRepo) accountsQuery(f domain.SourceFilter) (squirrel.SelectBuilder, error) {
	inner := r.accounts.Builder().
		Select(
			text("mc.codigo", "codigo"),
			text("mc.descripcion", "razon_social"),
			text("mc.tipovista", "tipovista"),
			text("mc.dada_de_baja", "dada_de_baja"),
			text("ma.mail", "mail"),
			text("ma.telefono", "telefono"),
			text("ma.calle", "calle"),
			text("ma.localidad", "localidad"),
			text("ma.provincia", "provincia"),
			text("ma.pais", "pais"),
			text("ma.documento_tipo", "documento_tipo"),
			text("ma.numero_documento", "numero_documento"),
			text("ma.iva", "iva"),
			text("ma.idlista", "idlista"),
		).
		From("ma_cuentas mc").
		LeftJoin("ma_cuentasadic ma ON ma.codigo = mc.codigo").
		Where(squirrel.Eq{"mc.tipovista": []string{partner.KindCustomer, partner.KindSupplier}})
	return r.accounts.applySourceFilter(r.accounts.fromSelect(inner), f)
}

// ListAccounts implements partner.Repository.
func (r *AccountRepo) ListAccounts(ctx context.Context, f domain.SourceFilter) ([]partner.Account, error) {
	q, err := r.accountsQuery(f)
	if err != nil {
		return nil, err
	}
	return r.accounts.selectAll(ctx, "list accounts", q)
}

func (r *AccountRepo) sellerCustomersQuery(sellerID string) (squirrel.SelectBuilder, error) {
	inner := r.links.Builder().
		Select(
			text("vc.codigo", "codigo"),
			text("v.idvendedor", "idvendedor"),
			text("v.e_mail", "e_mail"),
		).
		From("vt_clientes vc").
		Join("v_ta_vendedores v ON v.idvendedor = vc.idvendedor").
		Where(squirrel.Eq{"vc.tipovista": partner.KindCustomer}).
		Where(squirrel.Expr("btrim(v.idvendedor::text) = ?", sellerID))
	return r.links.applySourceFilter(r.links.fromSelect(inner), domain.SourceFilter{})
}

// ListSellerCustomers implements partner.Repository.
func (r *AccountRepo) ListSellerCustomers(ctx context.Context, sellerID string) ([]partner.CustomerLink, error) {
	q, err := r.sellerCustomersQuery(sellerID)
	if err != nil {
		return nil, err
	}
	return r.links.selectAll(ctx, "list seller customers", q)
}
