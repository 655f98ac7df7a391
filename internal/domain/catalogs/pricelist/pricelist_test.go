package pricelist

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"erpsync/internal/core/apperror"
	"erpsync/internal/core/types"
	"erpsync/internal/directory"
	"erpsync/internal/directory/memory"
	"erpsync/internal/domain"
	"erpsync/internal/mapping"
	"erpsync/internal/reconcile"
)

type fakeRepo struct {
	rules       []Rule
	rates       types.Rates
	filters     []domain.SourceFilter
	foreignOnly []bool
}

func (r *fakeRepo) ListChanged(_ context.Context, f domain.SourceFilter, foreignOnly bool) ([]Rule, error) {
	r.filters = append(r.filters, f)
	r.foreignOnly = append(r.foreignOnly, foreignOnly)
	return r.rules, nil
}

func (r *fakeRepo) LatestRates(context.Context) (types.Rates, error) {
	return r.rates, nil
}

func codes() *mapping.Registry {
	return mapping.New(map[string]map[string]*int64{
		mapping.TableCurrency: {"1": mapping.ID(19)},
	}, nil)
}

func rule(list, article, currency, price string) Rule {
	return Rule{ListID: list, Article: article, Currency: currency, Price: types.MustMoney(price)}
}

func statuses(r *reconcile.BatchReport) []reconcile.Status {
	out := make([]reconcile.Status, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		out = append(out, o.Status)
	}
	return out
}

func itemsOf(store *memory.Store, list int64) []directory.FieldMap {
	var out []directory.FieldMap
	for _, r := range store.All(directory.PricelistItem) {
		if r.Fields["pricelist_id"] == list {
			out = append(out, r.Fields)
		}
	}
	return out
}

func TestSyncJob(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	a1 := store.Seed(directory.ProductVariant, directory.FieldMap{"default_code": "A1"})
	b2 := store.Seed(directory.ProductVariant, directory.FieldMap{"default_code": "B2"})

	// List 4 already exists with a stale rule for A1 and its zero rule.
	list4 := store.Seed(directory.Pricelist, directory.FieldMap{"x_idlista": "4", "name": "Lista 4"})
	stale := store.Seed(directory.PricelistItem, directory.FieldMap{
		"pricelist_id": list4, "product_id": a1, "min_quantity": 1, "fixed_price": 10.0,
	})
	store.Seed(directory.PricelistItem, directory.FieldMap{
		"pricelist_id": list4, "product_id": false, "min_quantity": 0, "fixed_price": 0,
	})

	repo := &fakeRepo{
		rules: []Rule{
			rule("4", "A1", "2", "10"),
			rule("4", "ZZ", "1", "5"),
			rule("2", "B2", "1", "12.345"),
			rule("2", "A1", "1", "0"),
		},
		rates: types.Rates{"2": types.MustMoney("1000")},
	}
	job := NewSyncJob(repo, store, codes(), SyncConfig{Days: 1})

	report, err := job.Run(ctx)
	require.NoError(t, err)

	// Lists are processed in order: "2" then "4".
	require.Len(t, report.Outcomes, 4)
	assert.Equal(t, reconcile.Key("2", "B2", "1"), report.Outcomes[0].Key)
	assert.Equal(t, []reconcile.Status{reconcile.Created, reconcile.Skipped, reconcile.Updated, reconcile.Skipped}, statuses(report))
	assert.Equal(t, "price is not positive", report.Outcomes[1].Reason)
	assert.Equal(t, "product not in directory", report.Outcomes[3].Reason)
	assert.Equal(t, stale, report.Outcomes[2].TargetID)

	assert.Equal(t, 10000.0, store.Get(directory.PricelistItem, stale)["fixed_price"])

	lists := store.All(directory.Pricelist)
	require.Len(t, lists, 2)
	list2 := lists[1]
	assert.Equal(t, "Lista 2", list2.Fields["name"])
	assert.Equal(t, int64(19), list2.Fields["currency_id"])

	items := itemsOf(store, list2.ID)
	require.Len(t, items, 2)
	assert.Equal(t, b2, items[0]["product_id"])
	assert.Equal(t, 12.35, items[0]["fixed_price"])
	assert.Equal(t, false, items[1]["product_id"])

	// Exactly one zero rule per list survives the run.
	assert.Len(t, itemsOf(store, list4), 2)

	require.Len(t, repo.filters, 1)
	assert.False(t, repo.filters[0].Since.IsZero())
}

func TestSyncJob_ForeignOnlyIgnoresDays(t *testing.T) {
	repo := &fakeRepo{}
	_, err := NewSyncJob(repo, memory.New(), codes(), SyncConfig{Days: 3, ForeignOnly: true}).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, repo.filters, 1)
	assert.True(t, repo.filters[0].Since.IsZero())
	assert.True(t, repo.foreignOnly[0])
}

func TestSyncJob_UnmappedCurrencyFailsList(t *testing.T) {
	store := memory.New()
	store.Seed(directory.ProductVariant, directory.FieldMap{"default_code": "A1"})
	repo := &fakeRepo{rules: []Rule{rule("7", "A1", "1", "3"), rule("7", "B2", "1", "4")}}
	noCurrency := mapping.New(map[string]map[string]*int64{mapping.TableCurrency: {}}, nil)

	report, err := NewSyncJob(repo, store, noCurrency, SyncConfig{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []reconcile.Status{reconcile.Failed, reconcile.Failed}, statuses(report))
	assert.Equal(t, apperror.CodeUnmappedCode, report.Outcomes[0].Code)
	assert.Empty(t, store.All(directory.Pricelist))
}

func TestSyncJob_ConnectivityAborts(t *testing.T) {
	store := memory.New()
	store.FailWith(func(op memory.Op, kind directory.Kind, _ directory.FieldMap) error {
		if kind == directory.Pricelist {
			return apperror.NewConnectivity("directory", context.DeadlineExceeded)
		}
		return nil
	})
	repo := &fakeRepo{rules: []Rule{rule("1", "A1", "1", "3")}}

	report, err := NewSyncJob(repo, store, codes(), SyncConfig{}).Run(context.Background())
	require.Error(t, err)
	assert.True(t, apperror.IsConnectivity(err))
	assert.Empty(t, report.Outcomes)
}

func seedDuplicates(store *memory.Store) (list, keepLatest, keepPrice, other int64) {
	list = store.Seed(directory.Pricelist, directory.FieldMap{"name": "Mayorista"})
	tmpl := store.Seed(directory.ProductTemplate, directory.FieldMap{"default_code": "A1", "name": "Cable"})
	variant := store.Seed(directory.ProductVariant, directory.FieldMap{"default_code": "A1", "name": "Cable", "product_tmpl_id": tmpl})

	rule := func(price float64, written string) int64 {
		return store.Seed(directory.PricelistItem, directory.FieldMap{
			"pricelist_id": list, "product_id": variant, "product_tmpl_id": false,
			"min_quantity": 1.0, "fixed_price": price, "write_date": written,
		})
	}
	keepPrice = rule(50, "2025-01-01 10:00:00")
	keepLatest = rule(40, "2025-03-01 10:00:00")
	rule(45, "2025-02-01 10:00:00")

	// A single template rule is not a duplicate.
	other = store.Seed(directory.PricelistItem, directory.FieldMap{
		"pricelist_id": list, "product_id": false, "product_tmpl_id": tmpl,
		"min_quantity": 1.0, "fixed_price": 41.0,
	})
	return list, keepLatest, keepPrice, other
}

func TestDuplicatesJob_ReportOnly(t *testing.T) {
	store := memory.New()
	seedDuplicates(store)

	job, err := NewDuplicatesJob(store, DuplicatesConfig{})
	require.NoError(t, err)
	report, err := job.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, reconcile.Skipped, report.Outcomes[0].Status)
	assert.Contains(t, report.Outcomes[0].Reason, "2 duplicate rules")
	assert.Equal(t, 0, store.Calls(memory.OpUnlink))

	header, rows := job.Table()
	assert.Equal(t, duplicateHeader, header)
	require.Len(t, rows, 3)
	assert.Equal(t, "Mayorista", rows[0][1])
	assert.Equal(t, "A1", rows[0][4])
	kept := 0
	for _, row := range rows {
		if row[11] == "yes" {
			kept++
			assert.Equal(t, "40", row[8])
		}
	}
	assert.Equal(t, 1, kept)
}

func TestDuplicatesJob_FixHighestPrice(t *testing.T) {
	store := memory.New()
	_, _, keep, other := seedDuplicates(store)

	job, err := NewDuplicatesJob(store, DuplicatesConfig{Keep: KeepHighestPrice, Fix: true, Product: "A1"})
	require.NoError(t, err)
	report, err := job.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, reconcile.Updated, report.Outcomes[0].Status)

	var left []int64
	for _, r := range store.All(directory.PricelistItem) {
		left = append(left, r.ID)
	}
	assert.ElementsMatch(t, []int64{keep, other}, left)
}

func TestDuplicatesJob_Filters(t *testing.T) {
	store := memory.New()
	seedDuplicates(store)

	job, err := NewDuplicatesJob(store, DuplicatesConfig{Pricelists: []string{"Minorista"}})
	require.NoError(t, err)
	report, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Outcomes)

	job, err = NewDuplicatesJob(store, DuplicatesConfig{Product: "NOPE"})
	require.NoError(t, err)
	report, err = job.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Outcomes)
}

func TestDuplicatesJob_BestRule(t *testing.T) {
	now := time.Now()
	rules := []priceRule{
		{ID: 1, Price: 10, Written: now},
		{ID: 2, Price: 10, Written: now},
		{ID: 3, Price: 5, Written: now.Add(-time.Hour)},
	}
	latest := &DuplicatesJob{cfg: DuplicatesConfig{Keep: KeepLatest}}
	assert.Equal(t, int64(2), latest.best(rules).ID)

	highest := &DuplicatesJob{cfg: DuplicatesConfig{Keep: KeepHighestPrice}}
	assert.Equal(t, int64(2), highest.best(rules).ID)

	_, err := NewDuplicatesJob(nil, DuplicatesConfig{Keep: "oldest"})
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))
}

func TestSyncJob_MissingRateFailsForeignRules(t *testing.T) {
	store := memory.New()
	store.Seed(directory.ProductVariant, directory.FieldMap{"default_code": "USD1"})
	store.Seed(directory.ProductVariant, directory.FieldMap{"default_code": "EUR1"})
	store.Seed(directory.ProductVariant, directory.FieldMap{"default_code": "ARS1"})

	repo := &fakeRepo{
		rules: []Rule{
			rule("1", "USD1", "2", "10"),
			rule("1", "EUR1", "7", "10"),
			rule("1", "ARS1", "1", "10"),
		},
		// A NULL quotation is read as zero.
		rates: types.Rates{"2": types.Zero()},
	}

	report, err := NewSyncJob(repo, store, codes(), SyncConfig{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []reconcile.Status{reconcile.Failed, reconcile.Failed, reconcile.Created}, statuses(report))
	assert.Equal(t, apperror.CodeNotFound, report.Outcomes[0].Code)
	assert.Equal(t, apperror.CodeNotFound, report.Outcomes[1].Code)

	lists := store.All(directory.Pricelist)
	require.Len(t, lists, 1)
	var prices []any
	for _, item := range itemsOf(store, lists[0].ID) {
		if item["product_id"] != false {
			prices = append(prices, item["fixed_price"])
		}
	}
	assert.Equal(t, []any{10.0}, prices, "only the base currency rule is written")
}
