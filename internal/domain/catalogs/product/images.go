package product

import (
	"context"
	"encoding/base64"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"erpsync/internal/core/apperror"
	appctx "erpsync/internal/core/context"
	"erpsync/internal/core/tx"
	"erpsync/internal/directory"
	"erpsync/internal/domain"
	"erpsync/internal/reconcile"
	"erpsync/pkg/logger"
)

// ImageStore finds article pictures on disk: <Dir>/<code>.jpg first, then the
// catalog's own path under FallbackDir.
type ImageStore struct {
	Dir         string
	FallbackDir string
}

func (s ImageStore) candidates(a Article) []string {
	var paths []string
	if s.Dir != "" {
		paths = append(paths, filepath.Join(s.Dir, a.Code+".jpg"))
	}
	if p := strings.TrimSpace(a.ImagePath); p != "" && s.FallbackDir != "" {
		paths = append(paths, filepath.Join(s.FallbackDir, filepath.FromSlash(strings.ReplaceAll(p, `\`, "/"))))
	}
	return paths
}

// Find returns the picture of a as base64. found is false when no candidate
// file exists.
func (s ImageStore) Find(a Article) (encoded string, found bool, err error) {
	for _, path := range s.candidates(a) {
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", false, apperror.NewInternal(err).WithDetail("path", path)
		}
		return base64.StdEncoding.EncodeToString(data), true, nil
	}
	return "", false, nil
}

// ImagesConfig configures ImagesJob.
type ImagesConfig struct {
	Filter  domain.SourceFilter
	Images  ImageStore
	Options []reconcile.Option
}

// ImagesJob uploads changed pictures and clears the catalog's change flag
// once the directory accepted them.
type ImagesJob struct {
	repo Repository
	svc  directory.Service
	txm  tx.Manager
	cfg  ImagesConfig
}

// NewImagesJob creates the "images" job. A zero Since defaults to yesterday.
func NewImagesJob(repo Repository, svc directory.Service, txm tx.Manager, cfg ImagesConfig) *ImagesJob {
	return &ImagesJob{repo: repo, svc: svc, txm: txm, cfg: cfg}
}

// Name implements domain.Job.
func (j *ImagesJob) Name() string { return "images" }

// Run implements domain.Job.
func (j *ImagesJob) Run(ctx context.Context) (*reconcile.BatchReport, error) {
	f := j.cfg.Filter
	if f.Since.IsZero() {
		f.Since = domain.SinceDays(runStart(ctx), 1)
	}

	articles, err := j.repo.ListImageChanges(ctx, f)
	if err != nil {
		return nil, apperror.NewDatabase("list image changes", err)
	}
	logger.Info(ctx, "articles with picture changes", "count", len(articles), "since", f.Since)

	update := reconcile.UpdateOnly[Article](j.svc, directory.ProductTemplate)
	spec := reconcile.Spec[Article]{
		Kind: string(directory.ProductTemplate) + ".image",
		Key:  articleKey,
		// Fields stays empty: comparing stored pictures is not worth the download.
		Find: reconcile.Finder[Article](j.svc, directory.ProductTemplate, "default_code", nil, directory.IncludeArchived()),
		Fields: func(ctx context.Context, a Article) (directory.FieldMap, error) {
			img, found, err := j.cfg.Images.Find(a)
			if err != nil {
				return nil, err
			}
			if !found {
				return nil, apperror.NewNotFound("image", a.Code)
			}
			return directory.FieldMap{"image_1920": img}, nil
		},
		Apply: func(ctx context.Context, a Article, target *reconcile.Target, fields directory.FieldMap) (reconcile.WriteResult, error) {
			res, err := update(ctx, a, target, fields)
			if err != nil {
				return res, err
			}
			j.markSynced(ctx, a.Code)
			return res, nil
		},
	}

	return reconcile.Run(ctx, articles, spec, j.cfg.Options...)
}

// markSynced clears the change flag. The picture is already stored remotely,
// so a failure here only means the next run uploads it again.
func (j *ImagesJob) markSynced(ctx context.Context, code string) {
	if appctx.IsDryRun(ctx) {
		return
	}
	err := j.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return j.repo.MarkImageSynced(ctx, code)
	})
	if err != nil {
		reconcile.Warn(ctx, "picture uploaded but change flag not cleared: %v", err)
	}
}
