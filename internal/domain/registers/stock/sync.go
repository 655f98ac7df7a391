package stock

import (
	"context"
	"fmt"
	"strings"

	"erpsync/internal/core/apperror"
	"erpsync/internal/directory"
	"erpsync/internal/domain"
	"erpsync/internal/domain/filter"
	"erpsync/internal/mapping"
	"erpsync/internal/reconcile"
	"erpsync/pkg/logger"
)

// SyncConfig configures SyncJob.
type SyncConfig struct {
	Filter domain.SourceFilter

	// Location is the complete name of the stock location used for deposits
	// that the location code table does not list.
	Location string

	Options []reconcile.Option
}

// located is a level with its location resolved. Levels of one article whose
// deposits share a location are summed into the first of them.
type located struct {
	Level

	location int64
	err      error
	merged   []string
}

type variant struct {
	id       int64
	template int64
}

// SyncJob writes on-hand quantities. The product must exist and be active;
// its template is made storable before the quantity is written.
type SyncJob struct {
	repo  Repository
	svc   directory.Service
	codes *mapping.Registry
	cfg   SyncConfig

	fallback int64
	variants map[string]variant
}

// NewSyncJob creates the "stock" job.
func NewSyncJob(repo Repository, svc directory.Service, codes *mapping.Registry, cfg SyncConfig) *SyncJob {
	return &SyncJob{repo: repo, svc: svc, codes: codes, cfg: cfg}
}

// Name implements domain.Job.
func (j *SyncJob) Name() string { return "stock" }

// Run implements domain.Job.
func (j *SyncJob) Run(ctx context.Context) (*reconcile.BatchReport, error) {
	levels, err := j.repo.ListLevels(ctx, j.cfg.Filter)
	if err != nil {
		return nil, apperror.NewDatabase("list stock levels", err)
	}

	// The default location must exist before anything is written.
	loc, err := reconcile.Lookup(ctx, j.svc, directory.StockLocation,
		filter.NewDomain(filter.Eq("complete_name", j.cfg.Location)), nil)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, apperror.NewNotFound(string(directory.StockLocation), j.cfg.Location)
	}
	j.fallback = loc.ID
	j.variants = make(map[string]variant)

	records := j.locate(levels)
	logger.Info(ctx, "stock levels to sync", "count", len(levels), "quants", len(records),
		"location", j.cfg.Location, "location_id", loc.ID)

	spec := reconcile.Spec[located]{
		Kind: string(directory.StockQuant),
		Key: func(l located) (reconcile.NaturalKey, error) {
			return reconcile.Key(l.KeyParts()...), nil
		},
		Find: reconcile.FinderBy(j.svc, directory.StockQuant,
			func(ctx context.Context, _ reconcile.NaturalKey, l located) (filter.Domain, error) {
				if l.err != nil {
					return nil, l.err
				}
				v, err := j.variant(ctx, l.Article)
				if err != nil {
					return nil, err
				}
				return filter.NewDomain(filter.Eq("product_id", v.id), filter.Eq("location_id", l.location)), nil
			}, []string{"product_id", "location_id", "quantity"}),
		Fields: func(ctx context.Context, l located) (directory.FieldMap, error) {
			if l.err != nil {
				return nil, l.err
			}
			v, err := j.variant(ctx, l.Article)
			if err != nil {
				return nil, err
			}
			if len(l.merged) > 0 {
				reconcile.Warn(ctx, "deposits %s added into location %d", strings.Join(l.merged, ", "), l.location)
			}
			return directory.FieldMap{
				"product_id":  v.id,
				"location_id": l.location,
				"quantity":    l.Quantity.InexactFloat64(),
			}, nil
		},
		Apply: j.apply,
	}
	return reconcile.Run(ctx, records, spec, j.cfg.Options...)
}

// locate resolves the location of every level and sums the quantities of an
// article over the deposits that end up in the same location. A quant exists
// once per product and location, so writing them one by one would keep only
// the last. Levels whose deposit cannot be mapped stay alone and fail later.
func (j *SyncJob) locate(levels []Level) []located {
	type quant struct {
		article  string
		location int64
	}
	out := make([]located, 0, len(levels))
	seen := make(map[quant]int, len(levels))
	for _, l := range levels {
		rec := located{Level: l}
		rec.location, rec.err = j.location(l.Deposit)
		article := strings.TrimSpace(l.Article)
		if rec.err != nil || article == "" {
			out = append(out, rec)
			continue
		}
		k := quant{article: article, location: rec.location}
		if i, ok := seen[k]; ok {
			out[i].Quantity = out[i].Quantity.Add(l.Quantity)
			out[i].merged = append(out[i].merged, l.Deposit)
			continue
		}
		seen[k] = len(out)
		out = append(out, rec)
	}
	return out
}

func (j *SyncJob) apply(ctx context.Context, l located, target *reconcile.Target, fields directory.FieldMap) (reconcile.WriteResult, error) {
	v, err := j.variant(ctx, l.Article)
	if err != nil {
		return reconcile.WriteResult{}, err
	}
	if _, err := j.svc.Write(ctx, directory.ProductTemplate, []int64{v.template}, directory.FieldMap{
		"is_storable":              true,
		"allow_out_of_stock_order": true,
	}); err != nil {
		return reconcile.WriteResult{}, fmt.Errorf("mark template %d storable: %w", v.template, err)
	}

	if target == nil {
		id, err := j.svc.Create(ctx, directory.StockQuant, fields)
		return reconcile.WriteResult{ID: id}, err
	}
	qty, ok := fields["quantity"]
	if !ok {
		return reconcile.WriteResult{ID: target.ID}, nil
	}
	// A quant's product and location cannot change.
	_, err = j.svc.Write(ctx, directory.StockQuant, []int64{target.ID}, directory.FieldMap{"quantity": qty})
	return reconcile.WriteResult{ID: target.ID}, err
}

// variant finds the active product of an article and its template.
func (j *SyncJob) variant(ctx context.Context, article string) (variant, error) {
	if v, ok := j.variants[article]; ok {
		return v, nil
	}
	t, err := reconcile.Lookup(ctx, j.svc, directory.ProductVariant,
		filter.NewDomain(filter.Eq("default_code", article), filter.Eq("active", true)),
		[]string{"product_tmpl_id"})
	if err != nil {
		return variant{}, err
	}
	if t == nil {
		return variant{}, apperror.NewNotFound(string(directory.ProductVariant), article)
	}
	tmpl, ok := directory.RefID(t.Fields["product_tmpl_id"])
	if !ok {
		return variant{}, apperror.NewNotFound(string(directory.ProductTemplate), article).
			WithDetail("product_id", t.ID)
	}
	v := variant{id: t.ID, template: tmpl}
	j.variants[article] = v
	return v, nil
}

// location maps a deposit through the location table, falling back to the
// configured location when the table is not loaded or lists no id.
func (j *SyncJob) location(deposit string) (int64, error) {
	if j.codes == nil || !j.codes.Has(mapping.TableLocation) {
		return j.fallback, nil
	}
	id, ok, err := j.codes.Lookup(mapping.TableLocation, deposit)
	if err != nil {
		return 0, err
	}
	if !ok {
		return j.fallback, nil
	}
	return id, nil
}
