package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"erpsync/internal/core/apperror"
	"erpsync/internal/directory"
	"erpsync/internal/domain/filter"
)

func TestStore_CreateSearchWrite(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.Create(ctx, directory.ProductTemplate, directory.FieldMap{"default_code": "A1", "list_price": 100.0})
	require.NoError(t, err)

	ids, err := s.Search(ctx, directory.ProductTemplate, filter.NewDomain(filter.Eq("default_code", "A1")))
	require.NoError(t, err)
	assert.Equal(t, []int64{id}, ids)

	ok, err := s.Write(ctx, directory.ProductTemplate, ids, directory.FieldMap{"list_price": 120.0})
	require.NoError(t, err)
	assert.True(t, ok)

	recs, err := s.Read(ctx, directory.ProductTemplate, ids, []string{"list_price", "name"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 120.0, recs[0].Fields["list_price"])
	assert.Equal(t, false, recs[0].Fields["name"], "unset fields read as false")
}

func TestStore_ArchivedHiddenByDefault(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Seed(directory.ProductTemplate, directory.FieldMap{"default_code": "A1", "active": false})

	domain := filter.NewDomain(filter.Eq("default_code", "A1"))

	ids, err := s.Search(ctx, directory.ProductTemplate, domain)
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = s.Search(ctx, directory.ProductTemplate, domain, directory.IncludeArchived())
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	ids, err = s.Search(ctx, directory.ProductTemplate, domain.And(filter.NewDomain(filter.Eq("active", false))))
	require.NoError(t, err)
	assert.Len(t, ids, 1, "explicit active filter disables the default")
}

func TestStore_FalseMatchesUnset(t *testing.T) {
	ctx := context.Background()
	s := New()
	zero := s.Seed(directory.PricelistItem, directory.FieldMap{"pricelist_id": int64(7), "min_quantity": 0, "fixed_price": 0.0})
	s.Seed(directory.PricelistItem, directory.FieldMap{"pricelist_id": int64(7), "product_id": int64(3), "min_quantity": 1, "fixed_price": 10.0})

	ids, err := s.Search(ctx, directory.PricelistItem, filter.NewDomain(
		filter.Eq("pricelist_id", 7),
		filter.Eq("product_id", false),
		filter.Eq("min_quantity", 0),
	))
	require.NoError(t, err)
	assert.Equal(t, []int64{zero}, ids)
}

func TestStore_OrderAndLimit(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := s.Seed(directory.PricelistItem, directory.FieldMap{"fixed_price": 5.0})
	b := s.Seed(directory.PricelistItem, directory.FieldMap{"fixed_price": 9.0})
	s.Seed(directory.PricelistItem, directory.FieldMap{"fixed_price": 1.0})

	ids, err := s.Search(ctx, directory.PricelistItem, nil, directory.Order("fixed_price desc"), directory.Limit(2))
	require.NoError(t, err)
	assert.Equal(t, []int64{b, a}, ids)

	ids, err = s.Search(ctx, directory.PricelistItem, filter.NewDomain(filter.Where("fixed_price", filter.InList, []float64{1, 9})))
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestStore_FaultAndMissing(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Write(ctx, directory.Partner, []int64{42}, directory.FieldMap{"name": "x"})
	assert.True(t, apperror.IsNotFound(err))

	boom := errors.New("boom")
	s.FailWith(func(op Op, kind directory.Kind, _ directory.FieldMap) error {
		if op == OpCreate {
			return boom
		}
		return nil
	})
	_, err = s.Create(ctx, directory.Partner, directory.FieldMap{"name": "x"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, s.Calls(OpCreate))
	assert.Empty(t, s.All(directory.Partner))
}
