package pricelist

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"erpsync/internal/core/apperror"
	appctx "erpsync/internal/core/context"
	"erpsync/internal/directory"
	"erpsync/internal/domain/filter"
	"erpsync/internal/reconcile"
	"erpsync/pkg/logger"
)

// Keep strategies of DuplicatesJob.
const (
	KeepLatest       = "latest"
	KeepHighestPrice = "highest_price"
)

// unlinkChunk bounds the ids sent in one unlink call.
const unlinkChunk = 80

const writeDateLayout = "2006-01-02 15:04:05"

var duplicateHeader = []string{
	"list_id", "list_name", "scope", "object_id", "code", "product",
	"min_qty", "rule_id", "price", "date_start", "date_end", "kept", "strategy",
}

// DuplicatesConfig configures DuplicatesJob.
type DuplicatesConfig struct {
	// Pricelists restricts the analysis to lists with these names.
	Pricelists []string

	// Product restricts the analysis to one product code.
	Product string

	// Keep selects the surviving rule of a group: KeepLatest (default) or
	// KeepHighestPrice.
	Keep string

	// Fix unlinks every rule but the kept one.
	Fix bool
}

type priceRule struct {
	ID        int64
	List      int64
	Scope     string
	Object    int64
	MinQty    float64
	Price     float64
	DateStart string
	DateEnd   string
	Written   time.Time
}

type ruleGroup struct {
	Scope  string
	List   int64
	Object int64
	MinQty float64
	Rules  []priceRule
	Keep   priceRule
}

func (g ruleGroup) key() reconcile.NaturalKey {
	return reconcile.Key(g.Scope, strconv.FormatInt(g.List, 10), strconv.FormatInt(g.Object, 10), formatFloat(g.MinQty))
}

func (g ruleGroup) extra() []int64 {
	ids := make([]int64, 0, len(g.Rules)-1)
	for _, r := range g.Rules {
		if r.ID != g.Keep.ID {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// DuplicatesJob finds directory price rules that target the same product or
// template in the same list for the same minimum quantity, and optionally
// removes all but one of them.
type DuplicatesJob struct {
	svc  directory.Service
	cfg  DuplicatesConfig
	rows [][]string
}

// NewDuplicatesJob creates the "pricelist-duplicates" job.
func NewDuplicatesJob(svc directory.Service, cfg DuplicatesConfig) (*DuplicatesJob, error) {
	switch cfg.Keep {
	case "":
		cfg.Keep = KeepLatest
	case KeepLatest, KeepHighestPrice:
	default:
		return nil, apperror.NewValidation(fmt.Sprintf("unknown keep strategy %q", cfg.Keep)).
			WithDetail("allowed", []string{KeepLatest, KeepHighestPrice})
	}
	return &DuplicatesJob{svc: svc, cfg: cfg}, nil
}

// Name implements domain.Job.
func (j *DuplicatesJob) Name() string { return "pricelist-duplicates" }

// Table implements domain.TableJob. One row per rule of every duplicated group.
func (j *DuplicatesJob) Table() ([]string, [][]string) {
	return duplicateHeader, j.rows
}

// Run implements domain.Job.
func (j *DuplicatesJob) Run(ctx context.Context) (*reconcile.BatchReport, error) {
	kind := string(directory.PricelistItem) + ".duplicates"
	j.rows = nil

	lists, err := j.pricelists(ctx)
	if err != nil {
		return nil, err
	}
	if len(lists) == 0 {
		logger.Warn(ctx, "no price lists to analyze", "names", j.cfg.Pricelists)
		return emptyReport(ctx, kind), nil
	}

	scope, found, err := j.productScope(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		logger.Warn(ctx, "product not in directory", "code", j.cfg.Product)
		return emptyReport(ctx, kind), nil
	}

	rules, err := j.readRules(ctx, lists, scope)
	if err != nil {
		return nil, err
	}
	groups := j.duplicated(rules)
	logger.Info(ctx, "price rules analyzed", "rules", len(rules), "duplicated_groups", len(groups), "fix", j.cfg.Fix)

	if err := j.buildRows(ctx, lists, groups); err != nil {
		return nil, err
	}

	spec := reconcile.Spec[ruleGroup]{
		Kind: kind,
		Key: func(g ruleGroup) (reconcile.NaturalKey, error) {
			return g.key(), nil
		},
		Find: func(_ context.Context, _ reconcile.NaturalKey, g ruleGroup) (*reconcile.Target, error) {
			return &reconcile.Target{ID: g.Keep.ID}, nil
		},
		Fields: func(context.Context, ruleGroup) (directory.FieldMap, error) {
			return directory.FieldMap{}, nil
		},
		Apply: j.removeExtra,
	}
	return reconcile.Run(ctx, groups, spec)
}

func (j *DuplicatesJob) removeExtra(ctx context.Context, g ruleGroup, target *reconcile.Target, _ directory.FieldMap) (reconcile.WriteResult, error) {
	extra := g.extra()
	if !j.cfg.Fix {
		return reconcile.WriteResult{}, apperror.NewSkip(
			fmt.Sprintf("%d duplicate rules besides %d, not removed", len(extra), g.Keep.ID))
	}
	for start := 0; start < len(extra); start += unlinkChunk {
		end := min(start+unlinkChunk, len(extra))
		if _, err := j.svc.Unlink(ctx, directory.PricelistItem, extra[start:end]); err != nil {
			return reconcile.WriteResult{}, err
		}
	}
	logger.Debug(ctx, "duplicate rules removed", "kept", g.Keep.ID, "removed", extra)
	return reconcile.WriteResult{ID: target.ID}, nil
}

// pricelists returns list names by id.
func (j *DuplicatesJob) pricelists(ctx context.Context) (map[int64]string, error) {
	var domain filter.Domain
	if len(j.cfg.Pricelists) > 0 {
		domain = filter.NewDomain(filter.Where("name", filter.InList, j.cfg.Pricelists))
	}
	ids, err := j.svc.Search(ctx, directory.Pricelist, domain)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	recs, err := j.svc.Read(ctx, directory.Pricelist, ids, []string{"name"})
	if err != nil {
		return nil, err
	}
	out := make(map[int64]string, len(recs))
	for _, r := range recs {
		out[r.ID] = directory.Text(r.Fields["name"])
	}
	return out, nil
}

// productScope builds the product restriction. found is false when a product
// code was given but matches nothing.
func (j *DuplicatesJob) productScope(ctx context.Context) (filter.Domain, bool, error) {
	code := strings.TrimSpace(j.cfg.Product)
	if code == "" {
		return nil, true, nil
	}
	ids, err := j.svc.Search(ctx, directory.ProductVariant, filter.NewDomain(filter.Eq("default_code", code)))
	if err != nil || len(ids) == 0 {
		return nil, false, err
	}
	recs, err := j.svc.Read(ctx, directory.ProductVariant, ids, []string{"product_tmpl_id"})
	if err != nil {
		return nil, false, err
	}

	var tmpls []int64
	seen := make(map[int64]bool)
	for _, r := range recs {
		if id, ok := directory.RefID(r.Fields["product_tmpl_id"]); ok && !seen[id] {
			seen[id] = true
			tmpls = append(tmpls, id)
		}
	}

	variants := filter.Where("product_id", filter.InList, ids)
	if len(tmpls) == 0 {
		return filter.NewDomain(variants), true, nil
	}
	return filter.AnyOf(variants, filter.Where("product_tmpl_id", filter.InList, tmpls)), true, nil
}

func (j *DuplicatesJob) readRules(ctx context.Context, lists map[int64]string, scope filter.Domain) ([]priceRule, error) {
	listIDs := make([]int64, 0, len(lists))
	for id := range lists {
		listIDs = append(listIDs, id)
	}
	sort.Slice(listIDs, func(a, b int) bool { return listIDs[a] < listIDs[b] })

	domain := filter.NewDomain(filter.Where("pricelist_id", filter.InList, listIDs)).
		And(filter.AnyOf(
			filter.Where("product_id", filter.NotEqual, false),
			filter.Where("product_tmpl_id", filter.NotEqual, false),
		)).
		And(scope)

	ids, err := j.svc.Search(ctx, directory.PricelistItem, domain, directory.Order("id"))
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	recs, err := j.svc.Read(ctx, directory.PricelistItem, ids, []string{
		"pricelist_id", "product_id", "product_tmpl_id",
		"min_quantity", "fixed_price", "date_start", "date_end", "write_date",
	})
	if err != nil {
		return nil, err
	}

	rules := make([]priceRule, 0, len(recs))
	for _, rec := range recs {
		r := priceRule{
			ID:        rec.ID,
			MinQty:    number(rec.Fields["min_quantity"]),
			Price:     number(rec.Fields["fixed_price"]),
			DateStart: directory.Text(rec.Fields["date_start"]),
			DateEnd:   directory.Text(rec.Fields["date_end"]),
		}
		r.List, _ = directory.RefID(rec.Fields["pricelist_id"])
		if id, ok := directory.RefID(rec.Fields["product_id"]); ok {
			r.Scope, r.Object = "variant", id
		} else {
			r.Scope = "template"
			r.Object, _ = directory.RefID(rec.Fields["product_tmpl_id"])
		}
		if ts, err := time.Parse(writeDateLayout, directory.Text(rec.Fields["write_date"])); err == nil {
			r.Written = ts
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// duplicated groups rules and keeps the groups with more than one rule,
// ordered by list, object and minimum quantity.
func (j *DuplicatesJob) duplicated(rules []priceRule) []ruleGroup {
	type groupKey struct {
		scope  string
		list   int64
		object int64
		minQty float64
	}
	index := make(map[groupKey]*ruleGroup)
	var order []groupKey
	for _, r := range rules {
		k := groupKey{r.Scope, r.List, r.Object, r.MinQty}
		g, ok := index[k]
		if !ok {
			g = &ruleGroup{Scope: r.Scope, List: r.List, Object: r.Object, MinQty: r.MinQty}
			index[k] = g
			order = append(order, k)
		}
		g.Rules = append(g.Rules, r)
	}

	var out []ruleGroup
	for _, k := range order {
		g := index[k]
		if len(g.Rules) < 2 {
			continue
		}
		g.Keep = j.best(g.Rules)
		out = append(out, *g)
	}
	sort.SliceStable(out, func(a, b int) bool {
		x, y := out[a], out[b]
		if x.List != y.List {
			return x.List < y.List
		}
		if x.Object != y.Object {
			return x.Object < y.Object
		}
		if x.MinQty != y.MinQty {
			return x.MinQty < y.MinQty
		}
		return x.Scope > y.Scope
	})
	return out
}

// best picks the surviving rule; ties go to the highest id.
func (j *DuplicatesJob) best(rules []priceRule) priceRule {
	better := func(a, b priceRule) bool {
		if j.cfg.Keep == KeepHighestPrice {
			if a.Price != b.Price {
				return a.Price > b.Price
			}
		} else if !a.Written.Equal(b.Written) {
			return a.Written.After(b.Written)
		}
		return a.ID > b.ID
	}
	keep := rules[0]
	for _, r := range rules[1:] {
		if better(r, keep) {
			keep = r
		}
	}
	return keep
}

func (j *DuplicatesJob) buildRows(ctx context.Context, lists map[int64]string, groups []ruleGroup) error {
	variants := make(map[int64]bool)
	tmpls := make(map[int64]bool)
	for _, g := range groups {
		if g.Scope == "variant" {
			variants[g.Object] = true
		} else {
			tmpls[g.Object] = true
		}
	}
	vnames, err := j.describe(ctx, directory.ProductVariant, variants)
	if err != nil {
		return err
	}
	tnames, err := j.describe(ctx, directory.ProductTemplate, tmpls)
	if err != nil {
		return err
	}

	for _, g := range groups {
		names := tnames
		if g.Scope == "variant" {
			names = vnames
		}
		product := names[g.Object]
		for _, r := range g.Rules {
			kept := "no"
			if r.ID == g.Keep.ID {
				kept = "yes"
			}
			j.rows = append(j.rows, []string{
				strconv.FormatInt(g.List, 10),
				lists[g.List],
				g.Scope,
				strconv.FormatInt(g.Object, 10),
				product[0],
				product[1],
				formatFloat(g.MinQty),
				strconv.FormatInt(r.ID, 10),
				formatFloat(r.Price),
				r.DateStart,
				r.DateEnd,
				kept,
				j.cfg.Keep,
			})
		}
	}
	return nil
}

// describe reads code and name of the given records.
func (j *DuplicatesJob) describe(ctx context.Context, kind directory.Kind, set map[int64]bool) (map[int64][2]string, error) {
	out := make(map[int64][2]string, len(set))
	if len(set) == 0 {
		return out, nil
	}
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })

	recs, err := j.svc.Read(ctx, kind, ids, []string{"default_code", "name"})
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		out[r.ID] = [2]string{directory.Text(r.Fields["default_code"]), directory.Text(r.Fields["name"])}
	}
	return out, nil
}

func emptyReport(ctx context.Context, kind string) *reconcile.BatchReport {
	r := reconcile.NewBatchReport(kind, appctx.GetRunID(ctx))
	r.Finish()
	return r
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
