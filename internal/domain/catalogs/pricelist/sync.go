package pricelist

import (
	"context"
	"fmt"
	"sort"
	"time"

	"erpsync/internal/core/apperror"
	appctx "erpsync/internal/core/context"
	"erpsync/internal/core/types"
	"erpsync/internal/directory"
	"erpsync/internal/domain"
	"erpsync/internal/domain/filter"
	"erpsync/internal/mapping"
	"erpsync/internal/reconcile"
	"erpsync/pkg/logger"
)

var itemFields = []string{"pricelist_id", "product_id", "min_quantity", "fixed_price"}

// SyncConfig configures SyncJob.
type SyncConfig struct {
	Filter domain.SourceFilter

	// Days limits rules to articles whose price changed in the last Days
	// days. Ignored when Filter.Since is set or ForeignOnly is on.
	Days int

	// ForeignOnly refreshes every rule of foreign-currency articles, e.g.
	// after the exchange rates moved.
	ForeignOnly bool

	Options []reconcile.Option
}

// SyncJob writes price rules list by list. Each directory list gets its
// catch-all zero rule removed while the item rules are written, and put back
// afterwards.
type SyncJob struct {
	repo     Repository
	svc      directory.Service
	codes    *mapping.Registry
	cfg      SyncConfig
	resolver *directory.Resolver
}

// NewSyncJob creates the "prices" job.
func NewSyncJob(repo Repository, svc directory.Service, codes *mapping.Registry, cfg SyncConfig) *SyncJob {
	return &SyncJob{
		repo:     repo,
		svc:      svc,
		codes:    codes,
		cfg:      cfg,
		resolver: directory.NewResolver(svc),
	}
}

// Name implements domain.Job.
func (j *SyncJob) Name() string { return "prices" }

// Run implements domain.Job.
func (j *SyncJob) Run(ctx context.Context) (*reconcile.BatchReport, error) {
	f := j.cfg.Filter
	if f.Since.IsZero() && !j.cfg.ForeignOnly && j.cfg.Days > 0 {
		f.Since = domain.SinceDays(runStart(ctx), j.cfg.Days)
	}

	rules, err := j.repo.ListChanged(ctx, f, j.cfg.ForeignOnly)
	if err != nil {
		return nil, apperror.NewDatabase("list price rules", err)
	}
	rates, err := j.repo.LatestRates(ctx)
	if err != nil {
		return nil, apperror.NewDatabase("latest exchange rates", err)
	}

	groups := make(map[string][]Rule)
	for _, r := range rules {
		groups[r.ListID] = append(groups[r.ListID], r)
	}
	lists := make([]string, 0, len(groups))
	for id := range groups {
		lists = append(lists, id)
	}
	sort.Strings(lists)

	logger.Info(ctx, "price rules to sync", "rules", len(rules), "lists", len(lists), "since", f.Since, "foreign_only", j.cfg.ForeignOnly)

	report := reconcile.NewBatchReport(string(directory.PricelistItem), appctx.GetRunID(ctx))
	for _, list := range lists {
		part, err := j.syncList(ctx, list, groups[list], rates)
		report.Merge(part)
		if err != nil {
			report.Finish()
			return report, err
		}
	}
	report.Finish()
	return report, nil
}

// syncList reconciles the rules of one catalog list. A returned error aborts
// the whole run; the report is never nil.
func (j *SyncJob) syncList(ctx context.Context, list string, rules []Rule, rates types.Rates) (*reconcile.BatchReport, error) {
	log := logger.FromContext(ctx).With("list", list)

	listID, err := j.ensureList(ctx, list)
	if err != nil {
		if apperror.IsConnectivity(err) {
			return reconcile.NewBatchReport(string(directory.PricelistItem), appctx.GetRunID(ctx)), err
		}
		log.Errorw("price list unavailable", "error", err)
		return failAll(ctx, rules, err), nil
	}

	if err := j.removeZeroRule(ctx, listID); err != nil {
		if apperror.IsConnectivity(err) {
			return reconcile.NewBatchReport(string(directory.PricelistItem), appctx.GetRunID(ctx)), err
		}
		log.Warnw("zero rule not removed", "pricelist_id", listID, "error", err)
	}

	report, runErr := reconcile.Run(ctx, rules, j.itemSpec(listID, rates), j.cfg.Options...)
	if runErr != nil {
		return report, runErr
	}

	if err := j.restoreZeroRule(ctx, listID); err != nil {
		if apperror.IsConnectivity(err) {
			return report, err
		}
		log.Warnw("zero rule not restored", "pricelist_id", listID, "error", err)
	}

	log.Infow("price list synced", report.Summary()...)
	return report, nil
}

func (j *SyncJob) ensureList(ctx context.Context, list string) (int64, error) {
	fields := directory.FieldMap{
		"name":      "Lista " + list,
		"x_idlista": list,
	}
	currency, ok, err := j.codes.Lookup(mapping.TableCurrency, BaseCurrency)
	if err != nil {
		return 0, err
	}
	if ok {
		fields["currency_id"] = currency
	}

	id, created, err := reconcile.Ensure(ctx, j.svc, directory.Pricelist,
		filter.NewDomain(filter.Eq("x_idlista", list)), fields, directory.IncludeArchived())
	if err != nil {
		return 0, err
	}
	if created {
		logger.Info(ctx, "price list created", "list", list, "pricelist_id", id)
	}
	return id, nil
}

func zeroRule(listID int64) filter.Domain {
	return filter.NewDomain(
		filter.Eq("pricelist_id", listID),
		filter.Eq("product_id", false),
		filter.Eq("min_quantity", 0),
		filter.Eq("fixed_price", 0),
	)
}

func (j *SyncJob) removeZeroRule(ctx context.Context, listID int64) error {
	ids, err := j.svc.Search(ctx, directory.PricelistItem, zeroRule(listID))
	if err != nil || len(ids) == 0 {
		return err
	}
	_, err = j.svc.Unlink(ctx, directory.PricelistItem, ids)
	return err
}

func (j *SyncJob) restoreZeroRule(ctx context.Context, listID int64) error {
	_, err := j.svc.Create(ctx, directory.PricelistItem, directory.FieldMap{
		"pricelist_id": listID,
		"product_id":   false,
		"min_quantity": 0,
		"fixed_price":  0,
	})
	return err
}

func (j *SyncJob) itemSpec(listID int64, rates types.Rates) reconcile.Spec[Rule] {
	return reconcile.Spec[Rule]{
		Kind: string(directory.PricelistItem),
		Key: func(r Rule) (reconcile.NaturalKey, error) {
			return reconcile.Key(r.KeyParts()...), nil
		},
		Find: reconcile.FinderBy(j.svc, directory.PricelistItem,
			func(ctx context.Context, _ reconcile.NaturalKey, r Rule) (filter.Domain, error) {
				variant, err := j.variant(ctx, r.Article)
				if err != nil {
					return nil, err
				}
				return filter.NewDomain(
					filter.Eq("pricelist_id", listID),
					filter.Eq("product_id", variant),
					filter.Eq("min_quantity", 1),
				), nil
			}, itemFields),
		Fields: func(ctx context.Context, r Rule) (directory.FieldMap, error) {
			price, err := rates.Convert(r.Price, r.Currency)
			if err != nil {
				return nil, err
			}
			if !price.IsPositive() {
				return nil, apperror.NewSkip("price is not positive")
			}
			variant, err := j.variant(ctx, r.Article)
			if err != nil {
				return nil, err
			}
			return directory.FieldMap{
				"pricelist_id": listID,
				"product_id":   variant,
				"min_quantity": 1,
				"fixed_price":  types.PriceValue(price),
			}, nil
		},
		Apply: func(ctx context.Context, r Rule, target *reconcile.Target, fields directory.FieldMap) (reconcile.WriteResult, error) {
			if target == nil {
				id, err := j.svc.Create(ctx, directory.PricelistItem, fields)
				return reconcile.WriteResult{ID: id}, err
			}
			price, ok := fields["fixed_price"]
			if !ok {
				return reconcile.WriteResult{ID: target.ID}, nil
			}
			_, err := j.svc.Write(ctx, directory.PricelistItem, []int64{target.ID}, directory.FieldMap{"fixed_price": price})
			return reconcile.WriteResult{ID: target.ID}, err
		},
	}
}

// variant resolves the product variant of an article code.
func (j *SyncJob) variant(ctx context.Context, article string) (int64, error) {
	id, err := j.resolver.Resolve(ctx, directory.ProductVariant, "default_code", article)
	if apperror.IsNotFound(err) {
		return 0, apperror.NewSkip("product not in directory")
	}
	return id, err
}

// failAll reports every rule of a list as failed with err.
func failAll(ctx context.Context, rules []Rule, err error) *reconcile.BatchReport {
	report := reconcile.NewBatchReport(string(directory.PricelistItem), appctx.GetRunID(ctx))
	for _, r := range rules {
		report.Add(reconcile.Outcome{
			Key:    reconcile.Key(r.KeyParts()...),
			Status: reconcile.Failed,
			Code:   apperror.CodeOf(err),
			Err:    fmt.Errorf("price list %s: %w", r.ListID, err),
		})
	}
	report.Finish()
	return report
}

func runStart(ctx context.Context) time.Time {
	if run := appctx.GetRun(ctx); run != nil && !run.StartedAt.IsZero() {
		return run.StartedAt
	}
	return time.Now()
}
