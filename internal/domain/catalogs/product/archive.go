package product

import (
	"context"

	"erpsync/internal/core/apperror"
	"erpsync/internal/directory"
	"erpsync/internal/domain"
	"erpsync/internal/reconcile"
	"erpsync/pkg/logger"
)

// ArchiveConfig configures ArchiveJob.
type ArchiveConfig struct {
	Filter  domain.SourceFilter
	Options []reconcile.Option
}

// ArchiveJob archives the templates of articles that left the sale catalog.
type ArchiveJob struct {
	repo Repository
	svc  directory.Service
	cfg  ArchiveConfig
}

// NewArchiveJob creates the "archive" job.
func NewArchiveJob(repo Repository, svc directory.Service, cfg ArchiveConfig) *ArchiveJob {
	return &ArchiveJob{repo: repo, svc: svc, cfg: cfg}
}

// Name implements domain.Job.
func (j *ArchiveJob) Name() string { return "archive" }

// Run implements domain.Job.
func (j *ArchiveJob) Run(ctx context.Context) (*reconcile.BatchReport, error) {
	articles, err := j.repo.ListRetired(ctx, j.cfg.Filter)
	if err != nil {
		return nil, apperror.NewDatabase("list retired articles", err)
	}
	logger.Info(ctx, "retired articles", "count", len(articles))

	spec := reconcile.Spec[Article]{
		Kind: string(directory.ProductTemplate) + ".archive",
		Key:  articleKey,
		Find: reconcile.Finder[Article](j.svc, directory.ProductTemplate, "default_code", []string{"active"}, directory.IncludeArchived()),
		Fields: func(context.Context, Article) (directory.FieldMap, error) {
			return directory.FieldMap{"active": false}, nil
		},
		Apply: reconcile.UpdateOnly[Article](j.svc, directory.ProductTemplate),
	}

	// Templates that are already archived must come out as unchanged.
	opts := append([]reconcile.Option{reconcile.WithSkipUnchanged()}, j.cfg.Options...)
	return reconcile.Run(ctx, articles, spec, opts...)
}
