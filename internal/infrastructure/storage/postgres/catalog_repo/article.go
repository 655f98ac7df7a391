package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"erpsync/internal/core/apperror"
	"erpsync/internal/domain"
	"erpsync/internal/domain/catalogs/product"
	"erpsync/internal/infrastructure/storage/postgres"
)

// saleRuleExists holds for articles listed in at least one sale price list.
const saleRuleExists = "EXISTS (SELECT 1 FROM v_ma_precios p WHERE p.idarticulo = a.idarticulo AND p.tipolista = 'V')"

// ArticleRepo reads articles from v_ma_articulos.
type ArticleRepo struct {
	*BaseViewRepo[product.Article]
}

var _ product.Repository = (*ArticleRepo)(nil)

// NewArticleRepo creates a new article repository.
func NewArticleRepo(txm *postgres.TxManager) *ArticleRepo {
	return &ArticleRepo{
		BaseViewRepo: NewBaseViewRepo[product.Article](txm, "v_ma_articulos", "idarticulo"),
	}
}

// articles selects article rows with their family name.
func (r *ArticleRepo) articles() squirrel.SelectBuilder {
	return r.Builder().
		Select(
			text("a.idarticulo", "idarticulo"),
			text("a.descripcion", "descripcion"),
			text("a.idunidad", "idunidad"),
			text("a.idfamilia", "idfamilia"),
			text("f.descripcion", "familia"),
			number("a.tasaiva", "tasaiva"),
			text("a.moneda", "moneda"),
			text("a.procedencia", "procedencia"),
			text("a.presentacion", "presentacion"),
			number("a.precio1", "precio1"),
			number("a.costo", "costo"),
			flag("a.suspendido", "suspendido"),
			text("a.rutaimagen", "rutaimagen"),
			flag("a.modificoimagen", "modificoimagen"),
			"a.fhalta AS fhalta",
		).
		From("v_ma_articulos a").
		LeftJoin("v_ta_familias f ON f.idfamilia = a.idfamilia")
}

func (r *ArticleRepo) forSaleQuery(f domain.SourceFilter) (squirrel.SelectBuilder, error) {
	return r.applySourceFilter(r.fromSelect(r.articles().Where(saleRuleExists)), f)
}

func (r *ArticleRepo) retiredQuery(f domain.SourceFilter) (squirrel.SelectBuilder, error) {
	inner := r.articles().Where(squirrel.Or{
		squirrel.Expr("NOT " + saleRuleExists),
		squirrel.Expr("COALESCE(a.suspendido, 0) = 1"),
	})
	return r.applySourceFilter(r.fromSelect(inner), f)
}

func (r *ArticleRepo) imageChangesQuery(f domain.SourceFilter) (squirrel.SelectBuilder, error) {
	changed := squirrel.Or{squirrel.Expr("COALESCE(a.modificoimagen, 0) = 1")}
	if !f.Since.IsZero() {
		changed = append(changed, squirrel.GtOrEq{"a.fhalta": f.Since})
	}
	return r.applySourceFilter(r.fromSelect(r.articles().Where(changed)), f)
}

// ListForSale implements product.Repository.
func (r *ArticleRepo) ListForSale(ctx context.Context, f domain.SourceFilter) ([]product.Article, error) {
	q, err := r.forSaleQuery(f)
	if err != nil {
		return nil, err
	}
	return r.selectAll(ctx, "list articles for sale", q)
}

// ListRetired implements product.Repository.
func (r *ArticleRepo) ListRetired(ctx context.Context, f domain.SourceFilter) ([]product.Article, error) {
	q, err := r.retiredQuery(f)
	if err != nil {
		return nil, err
	}
	return r.selectAll(ctx, "list retired articles", q)
}

// ListImageChanges implements product.Repository.
func (r *ArticleRepo) ListImageChanges(ctx context.Context, f domain.SourceFilter) ([]product.Article, error) {
	q, err := r.imageChangesQuery(f)
	if err != nil {
		return nil, err
	}
	return r.selectAll(ctx, "list image changes", q)
}

func (r *ArticleRepo) markImageSyncedQuery(code string) squirrel.UpdateBuilder {
	return r.Builder().
		Update("v_ma_articulos").
		Set("modificoimagen", 0).
		Where(squirrel.Expr("btrim(idarticulo::text) = ?", code))
}

// MarkImageSynced implements product.Repository.
func (r *ArticleRepo) MarkImageSynced(ctx context.Context, code string) error {
	sql, args, err := r.markImageSyncedQuery(code).ToSql()
	if err != nil {
		return apperror.NewInternal(err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return apperror.NewDatabase("mark image synced", err).WithDetail("code", code)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("article", code)
	}
	return nil
}
