// Package catalog_repo reads source rows from the ERP views of the Catalog
// Store. Every repository is read-only except for the image flag reset.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"erpsync/internal/core/apperror"
	"erpsync/internal/domain"
	"erpsync/internal/domain/filter"
	"erpsync/internal/infrastructure/storage/postgres"
)

// BaseViewRepo provides the common select/filter/scan path for one row type.
// Rows come either straight from a table or from an inner query wrapped as a
// subquery, so filters always address the row's own column names.
type BaseViewRepo[T any] struct {
	txm     *postgres.TxManager
	table   string
	keyCol  string
	cols    []string
	orderBy string
}

// NewBaseViewRepo creates a base repository. keyCol is the column matched by
// SourceFilter.Codes.
func NewBaseViewRepo[T any](txm *postgres.TxManager, table, keyCol string) *BaseViewRepo[T] {
	return &BaseViewRepo[T]{
		txm:     txm,
		table:   table,
		keyCol:  keyCol,
		cols:    postgres.ExtractDBColumns[T](),
		orderBy: keyCol,
	}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r *BaseViewRepo[T]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// baseSelect selects the row columns from the table itself.
func (r *BaseViewRepo[T]) baseSelect() squirrel.SelectBuilder {
	return r.Builder().
		Select(r.cols...).
		From(r.table)
}

// fromSelect selects the row columns from an inner query.
func (r *BaseViewRepo[T]) fromSelect(inner squirrel.SelectBuilder) squirrel.SelectBuilder {
	return r.Builder().
		Select(r.cols...).
		FromSelect(inner, "src")
}

// applySourceFilter restricts q by codes and advanced filters, then orders it.
// Since is specific to each view and handled by the callers.
func (r *BaseViewRepo[T]) applySourceFilter(q squirrel.SelectBuilder, f domain.SourceFilter) (squirrel.SelectBuilder, error) {
	if codes := f.CleanCodes(); len(codes) > 0 {
		q = q.Where(squirrel.Eq{r.keyCol: codes})
	}

	q, err := r.applyAdvancedFilters(q, f.Advanced)
	if err != nil {
		return q, err
	}
	if r.orderBy != "" {
		q = q.OrderBy(r.orderBy)
	}
	return q, nil
}

// applyAdvancedFilters applies the --where conditions of a run.
func (r *BaseViewRepo[T]) applyAdvancedFilters(q squirrel.SelectBuilder, filters []filter.Item) (squirrel.SelectBuilder, error) {
	// Whitelist columns for SQL injection protection
	validCols := make(map[string]bool, len(r.cols))
	for _, col := range r.cols {
		validCols[col] = true
	}

	for _, item := range filters {
		if !validCols[item.Field] {
			return q, apperror.NewValidation(fmt.Sprintf("invalid filter column: %s", item.Field)).
				WithDetail("table", r.table)
		}

		switch item.Operator {
		case filter.Equal:
			q = q.Where(squirrel.Eq{item.Field: item.Value})
		case filter.NotEqual:
			q = q.Where(squirrel.NotEq{item.Field: item.Value})
		case filter.LessOrEqual:
			q = q.Where(squirrel.LtOrEq{item.Field: item.Value})
		case filter.GreaterOrEqual:
			q = q.Where(squirrel.GtOrEq{item.Field: item.Value})
		case filter.Less:
			q = q.Where(squirrel.Lt{item.Field: item.Value})
		case filter.Greater:
			q = q.Where(squirrel.Gt{item.Field: item.Value})
		case filter.InList:
			q = q.Where(squirrel.Eq{item.Field: item.Value})
		case filter.NotInList:
			q = q.Where(squirrel.NotEq{item.Field: item.Value})
		case filter.IsNull:
			q = q.Where(squirrel.Eq{item.Field: nil})
		case filter.IsNotNull:
			q = q.Where(squirrel.NotEq{item.Field: nil})
		case filter.Contains:
			q = q.Where(squirrel.ILike{item.Field: fmt.Sprintf("%%%v%%", item.Value)})
		case filter.NotContains:
			q = q.Where(squirrel.NotILike{item.Field: fmt.Sprintf("%%%v%%", item.Value)})
		default:
			// Source views are flat, hierarchy operators have no meaning here.
			return q, apperror.NewValidation(fmt.Sprintf("operator %s is not supported on %s", item.Operator, r.table))
		}
	}

	return q, nil
}

// selectAll runs q and scans every row.
func (r *BaseViewRepo[T]) selectAll(ctx context.Context, op string, q squirrel.SelectBuilder) ([]T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s query: %w", op, err)
	}

	var rows []T
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, apperror.NewDatabase(op, err).WithDetail("table", r.table)
	}
	return rows, nil
}

// text renders a trimmed, null-safe text column.
func text(expr, alias string) string {
	return fmt.Sprintf("COALESCE(btrim(%s::text), '') AS %s", expr, alias)
}

// number renders a null-safe numeric column.
func number(expr, alias string) string {
	return fmt.Sprintf("COALESCE(%s, 0) AS %s", expr, alias)
}

// flag renders a 0/1 column as boolean.
func flag(expr, alias string) string {
	return fmt.Sprintf("COALESCE(%s, 0) = 1 AS %s", expr, alias)
}
