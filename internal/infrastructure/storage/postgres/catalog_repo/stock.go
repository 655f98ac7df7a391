package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"erpsync/internal/domain"
	"erpsync/internal/domain/registers/stock"
	"erpsync/internal/infrastructure/storage/postgres"
)

// StockRepo reads per-deposit stock of articles with movements.
type StockRepo struct {
	*BaseViewRepo[stock.Level]
}

var _ stock.Repository = (*StockRepo)(nil)

// NewStockRepo creates a new stock repository.
func NewStockRepo(txm *postgres.TxManager) *StockRepo {
	r := &StockRepo{
		BaseViewRepo: NewBaseViewRepo[stock.Level](txm, "stk_ma_articulos", "idarticulo"),
	}
	r.orderBy = "idarticulo, iddeposito"
	return r
}

func (r *StockRepo) levelsQuery(f domain.SourceFilter) (squirrel.SelectBuilder, error) {
	moved := "EXISTS (SELECT 1 FROM v_mv_stock m WHERE m.idarticulo = b.idarticulo AND m.iddeposito = b.deposito"
	var args []any
	if !f.Since.IsZero() {
		moved += " AND m.fecha >= ?"
		args = append(args, f.Since)
	}
	moved += ")"

	inner := r.Builder().
		Select(
			text("b.idarticulo", "idarticulo"),
			text("b.deposito", "iddeposito"),
			number("b.stock", "stock"),
			number("b.puntopedido", "puntopedido"),
		).
		From("stk_ma_articulos b").
		Where(squirrel.Expr(moved, args...))
	return r.applySourceFilter(r.fromSelect(inner), f)
}

// ListLevels implements stock.Repository.
func (r *StockRepo) ListLevels(ctx context.Context, f domain.SourceFilter) ([]stock.Level, error) {
	q, err := r.levelsQuery(f)
	if err != nil {
		return nil, err
	}
	return r.selectAll(ctx, "list stock levels", q)
}
