package product

import (
	"context"
	"time"

	"erpsync/internal/core/apperror"
	appctx "erpsync/internal/core/context"
	"erpsync/internal/core/types"
	"erpsync/internal/directory"
	"erpsync/internal/domain"
	"erpsync/internal/mapping"
	"erpsync/internal/reconcile"
	"erpsync/pkg/logger"
)

// templateFields are read back for change detection. The picture is left out.
var templateFields = []string{
	"name", "default_code", "uom_id", "uom_po_id",
	"standard_price", "list_price",
	"x_idfamilia_familia", "x_tasa_iva", "x_presentacion_producto", "x_procedencia",
	"active",
}

// SyncConfig configures SyncJob.
type SyncConfig struct {
	Filter domain.SourceFilter

	// UpdateOnly skips articles that are not in the directory yet.
	UpdateOnly bool

	Images  ImageStore
	Options []reconcile.Option
}

// SyncJob pushes the article master data into product templates.
type SyncJob struct {
	repo  Repository
	svc   directory.Service
	codes *mapping.Registry
	cfg   SyncConfig
}

// NewSyncJob creates the "products" job.
func NewSyncJob(repo Repository, svc directory.Service, codes *mapping.Registry, cfg SyncConfig) *SyncJob {
	return &SyncJob{repo: repo, svc: svc, codes: codes, cfg: cfg}
}

// Name implements domain.Job.
func (j *SyncJob) Name() string { return "products" }

// Run implements domain.Job.
func (j *SyncJob) Run(ctx context.Context) (*reconcile.BatchReport, error) {
	articles, err := j.repo.ListForSale(ctx, j.cfg.Filter)
	if err != nil {
		return nil, apperror.NewDatabase("list articles for sale", err)
	}
	logger.Info(ctx, "articles for sale", "count", len(articles), "update_only", j.cfg.UpdateOnly)

	apply := reconcile.Upsert[Article](j.svc, directory.ProductTemplate)
	if j.cfg.UpdateOnly {
		apply = reconcile.UpdateExisting[Article](j.svc, directory.ProductTemplate, "not in directory")
	}

	spec := reconcile.Spec[Article]{
		Kind:   string(directory.ProductTemplate),
		Key:    articleKey,
		Find:   reconcile.Finder[Article](j.svc, directory.ProductTemplate, "default_code", templateFields, directory.IncludeArchived()),
		Fields: j.fields,
		Apply:  apply,
	}
	return reconcile.Run(ctx, articles, spec, j.cfg.Options...)
}

func (j *SyncJob) fields(ctx context.Context, a Article) (directory.FieldMap, error) {
	if err := a.Validate(ctx); err != nil {
		return nil, err
	}

	uom, ok, err := j.codes.Lookup(mapping.TableUOM, a.Unit)
	if err != nil {
		return nil, err
	}

	fields := directory.FieldMap{
		"name":                    a.Name,
		"default_code":            a.Code,
		"standard_price":          types.PriceValue(a.Cost),
		"list_price":              types.PriceValue(a.Price),
		"x_idfamilia_familia":     a.FamilyID,
		"x_tasa_iva":              a.VATRate.InexactFloat64(),
		"x_presentacion_producto": a.Presentation,
		"x_procedencia":           a.Origin,
		"active":                  !a.Suspended,
	}
	if ok {
		fields["uom_id"] = uom
		fields["uom_po_id"] = uom
	}

	img, found, err := j.cfg.Images.Find(a)
	if err != nil {
		return nil, err
	}
	if found {
		fields["image_1920"] = img
	}
	return fields, nil
}

func articleKey(a Article) (reconcile.NaturalKey, error) {
	return reconcile.Key(a.KeyParts()...), nil
}

// runStart is the start of the current run, or now outside a run.
func runStart(ctx context.Context) time.Time {
	if run := appctx.GetRun(ctx); run != nil && !run.StartedAt.IsZero() {
		return run.StartedAt
	}
	return time.Now()
}
