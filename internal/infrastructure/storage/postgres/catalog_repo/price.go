package catalog_repo

import (
	"context"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"erpsync/internal/core/apperror"
	"erpsync/internal/core/types"
	"erpsync/internal/domain"
	"erpsync/internal/domain/catalogs/pricelist"
	"erpsync/internal/infrastructure/storage/postgres"
)

// foreignCurrencies are the currency codes with a rate column in ta_cotizacion.
var foreignCurrencies = []string{"2", "3", "4", "5"}

// PriceRepo reads sale price rules and exchange rates.
type PriceRepo struct {
	*BaseViewRepo[pricelist.Rule]
}

var _ pricelist.Repository = (*PriceRepo)(nil)

// NewPriceRepo creates a new price repository.
func NewPriceRepo(txm *postgres.TxManager) *PriceRepo {
	r := &PriceRepo{
		BaseViewRepo: NewBaseViewRepo[pricelist.Rule](txm, "v_ma_precios", "idarticulo"),
	}
	r.orderBy = "idlista, idarticulo"
	return r
}

func (r *PriceRepo) changedQuery(f domain.SourceFilter, foreignOnly bool) (squirrel.SelectBuilder, error) {
	inner := r.Builder().
		Select(
			text("p.idlista", "idlista"),
			text("p.idarticulo", "idarticulo"),
			"COALESCE(NULLIF(btrim(a.moneda::text), ''), '"+pricelist.BaseCurrency+"') AS moneda",
			number("p.precio4", "precio4"),
		).
		From("v_ma_precios p").
		LeftJoin("v_ma_articulos a ON a.idarticulo = p.idarticulo").
		Where(squirrel.Eq{"p.tipolista": "V"})

	if !f.Since.IsZero() {
		inner = inner.Where(squirrel.Expr(
			"EXISTS (SELECT 1 FROM v_mv_precios_his h WHERE h.idarticulo = p.idarticulo AND h.fechahora >= ?)", f.Since))
	}
	if foreignOnly {
		inner = inner.Where(squirrel.Eq{"btrim(a.moneda::text)": foreignCurrencies})
	}
	return r.applySourceFilter(r.fromSelect(inner), f)
}

// ListChanged implements pricelist.Repository.
func (r *PriceRepo) ListChanged(ctx context.Context, f domain.SourceFilter, foreignOnly bool) ([]pricelist.Rule, error) {
	q, err := r.changedQuery(f, foreignOnly)
	if err != nil {
		return nil, err
	}
	return r.selectAll(ctx, "list changed prices", q)
}

type rateRow struct {
	Currency2 types.Money `db:"moneda2"`
	Currency3 types.Money `db:"moneda3"`
	Currency4 types.Money `db:"moneda4"`
	Currency5 types.Money `db:"moneda5"`
}

func (r *PriceRepo) ratesQuery() squirrel.SelectBuilder {
	cols := make([]string, 0, len(foreignCurrencies))
	for _, c := range foreignCurrencies {
		cols = append(cols, number("moneda"+c, "moneda"+c))
	}
	return r.Builder().
		Select(cols...).
		From("ta_cotizacion").
		OrderBy("id DESC").
		Limit(1)
}

// LatestRates implements pricelist.Repository. A missing quotation is an
// error: prices in foreign currency would go out unconverted.
func (r *PriceRepo) LatestRates(ctx context.Context) (types.Rates, error) {
	sql, args, err := r.ratesQuery().ToSql()
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	var row rateRow
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &row, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("exchange rates", "ta_cotizacion")
		}
		return nil, apperror.NewDatabase("latest exchange rates", err)
	}
	return types.Rates{
		"2": row.Currency2,
		"3": row.Currency3,
		"4": row.Currency4,
		"5": row.Currency5,
	}, nil
}
