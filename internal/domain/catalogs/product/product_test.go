package product

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"erpsync/internal/core/apperror"
	appctx "erpsync/internal/core/context"
	"erpsync/internal/core/tx"
	"erpsync/internal/core/types"
	"erpsync/internal/directory"
	"erpsync/internal/directory/memory"
	"erpsync/internal/domain"
	"erpsync/internal/mapping"
	"erpsync/internal/reconcile"
)

type fakeRepo struct {
	forSale []Article
	retired []Article
	images  []Article
	since   []domain.SourceFilter
	marked  []string
	markErr error
	listErr error
}

func (r *fakeRepo) ListForSale(_ context.Context, _ domain.SourceFilter) ([]Article, error) {
	return r.forSale, r.listErr
}

func (r *fakeRepo) ListRetired(_ context.Context, _ domain.SourceFilter) ([]Article, error) {
	return r.retired, r.listErr
}

func (r *fakeRepo) ListImageChanges(_ context.Context, f domain.SourceFilter) ([]Article, error) {
	r.since = append(r.since, f)
	return r.images, r.listErr
}

func (r *fakeRepo) MarkImageSynced(_ context.Context, code string) error {
	if r.markErr != nil {
		return r.markErr
	}
	r.marked = append(r.marked, code)
	return nil
}

func codes() *mapping.Registry {
	return mapping.New(map[string]map[string]*int64{
		mapping.TableUOM: {"UN": mapping.ID(1), "KG": mapping.ID(15)},
	}, nil)
}

func article(code, unit string) Article {
	return Article{
		Code:     code,
		Name:     "Article " + code,
		Unit:     unit,
		FamilyID: "12",
		Price:    types.MustMoney("199.999"),
		Cost:     types.MustMoney("80.5"),
	}
}

func statuses(r *reconcile.BatchReport) []reconcile.Status {
	out := make([]reconcile.Status, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		out = append(out, o.Status)
	}
	return out
}

func TestSyncJob_CreatesAndUpdates(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	archived := store.Seed(directory.ProductTemplate, directory.FieldMap{"default_code": "B2", "active": false})

	repo := &fakeRepo{forSale: []Article{article("A1", "UN"), article("B2", "KG")}}
	job := NewSyncJob(repo, store, codes(), SyncConfig{})

	report, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []reconcile.Status{reconcile.Created, reconcile.Updated}, statuses(report))
	assert.Equal(t, archived, report.Outcomes[1].TargetID)

	created := store.Get(directory.ProductTemplate, report.Outcomes[0].TargetID)
	assert.Equal(t, "A1", created["default_code"])
	assert.Equal(t, int64(1), created["uom_id"])
	assert.Equal(t, int64(1), created["uom_po_id"])
	assert.Equal(t, 200.0, created["list_price"])
	assert.Equal(t, 80.5, created["standard_price"])
	assert.Equal(t, true, created["active"])

	updated := store.Get(directory.ProductTemplate, archived)
	assert.Equal(t, true, updated["active"])
	assert.Equal(t, int64(15), updated["uom_id"])
}

func TestSyncJob_UnmappedUnitFails(t *testing.T) {
	store := memory.New()
	repo := &fakeRepo{forSale: []Article{article("A1", "LT"), article("B2", "UN")}}

	report, err := NewSyncJob(repo, store, codes(), SyncConfig{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []reconcile.Status{reconcile.Failed, reconcile.Created}, statuses(report))
	assert.Equal(t, apperror.CodeUnmappedCode, report.Outcomes[0].Code)
	assert.Len(t, store.All(directory.ProductTemplate), 1)
}

func TestSyncJob_UpdateOnlySkipsUnknown(t *testing.T) {
	store := memory.New()
	store.Seed(directory.ProductTemplate, directory.FieldMap{"default_code": "A1"})
	repo := &fakeRepo{forSale: []Article{article("A1", "UN"), article("B2", "UN"), article("  ", "UN")}}

	report, err := NewSyncJob(repo, store, codes(), SyncConfig{UpdateOnly: true}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []reconcile.Status{reconcile.Updated, reconcile.Skipped, reconcile.Skipped}, statuses(report))
	assert.Equal(t, "not in directory", report.Outcomes[1].Reason)
	assert.Equal(t, apperror.CodeMissingKey, report.Outcomes[2].Code)
	assert.Equal(t, 0, store.Calls(memory.OpCreate))
}

func TestSyncJob_AttachesPicture(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "A1.jpg"), []byte("jpeg"), 0o600))

	store := memory.New()
	repo := &fakeRepo{forSale: []Article{article("A1", "UN"), article("B2", "UN")}}
	report, err := NewSyncJob(repo, store, codes(), SyncConfig{Images: ImageStore{Dir: dir}}).Run(context.Background())
	require.NoError(t, err)

	withPicture := store.Get(directory.ProductTemplate, report.Outcomes[0].TargetID)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("jpeg")), withPicture["image_1920"])
	assert.NotContains(t, store.Get(directory.ProductTemplate, report.Outcomes[1].TargetID), "image_1920")
}

func TestSyncJob_SourceFailureIsFatal(t *testing.T) {
	repo := &fakeRepo{listErr: errors.New("relation does not exist")}
	report, err := NewSyncJob(repo, memory.New(), codes(), SyncConfig{}).Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, report)
	assert.Equal(t, apperror.CodeDatabase, apperror.CodeOf(err))
}

func TestArchiveJob(t *testing.T) {
	store := memory.New()
	active := store.Seed(directory.ProductTemplate, directory.FieldMap{"default_code": "A1", "active": true})
	store.Seed(directory.ProductTemplate, directory.FieldMap{"default_code": "B2", "active": false})

	repo := &fakeRepo{retired: []Article{{Code: "A1"}, {Code: "B2"}, {Code: "C3"}}}
	report, err := NewArchiveJob(repo, store, ArchiveConfig{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []reconcile.Status{reconcile.Updated, reconcile.Skipped, reconcile.Failed}, statuses(report))
	assert.Equal(t, "unchanged", report.Outcomes[1].Reason)
	assert.Equal(t, apperror.CodeNotFound, report.Outcomes[2].Code)
	assert.Equal(t, false, store.Get(directory.ProductTemplate, active)["active"])
	assert.Equal(t, 1, store.Calls(memory.OpWrite))
}

func TestImagesJob(t *testing.T) {
	primary := t.TempDir()
	fallback := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(primary, "A1.jpg"), []byte("one"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(fallback, "web"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(fallback, "web", "b2.jpg"), []byte("two"), 0o600))

	store := memory.New()
	a1 := store.Seed(directory.ProductTemplate, directory.FieldMap{"default_code": "A1"})
	b2 := store.Seed(directory.ProductTemplate, directory.FieldMap{"default_code": "B2", "active": false})

	repo := &fakeRepo{images: []Article{
		{Code: "A1"},
		{Code: "B2", ImagePath: `web\b2.jpg`},
		{Code: "C3"},
	}}
	cfg := ImagesConfig{Images: ImageStore{Dir: primary, FallbackDir: fallback}}
	report, err := NewImagesJob(repo, store, tx.Inline, cfg).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []reconcile.Status{reconcile.Updated, reconcile.Updated, reconcile.Failed}, statuses(report))
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("one")), store.Get(directory.ProductTemplate, a1)["image_1920"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("two")), store.Get(directory.ProductTemplate, b2)["image_1920"])
	assert.Equal(t, apperror.CodeNotFound, report.Outcomes[2].Code)
	assert.Equal(t, []string{"A1", "B2"}, repo.marked)

	require.Len(t, repo.since, 1)
	assert.False(t, repo.since[0].Since.IsZero())
}

func TestImagesJob_FlagResetFailureWarns(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "A1.jpg"), []byte("one"), 0o600))

	store := memory.New()
	store.Seed(directory.ProductTemplate, directory.FieldMap{"default_code": "A1"})
	repo := &fakeRepo{images: []Article{{Code: "A1"}}, markErr: errors.New("permission denied")}

	report, err := NewImagesJob(repo, store, tx.Inline, ImagesConfig{Images: ImageStore{Dir: dir}}).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, reconcile.Updated, report.Outcomes[0].Status)
	require.Len(t, report.Outcomes[0].Warnings, 1)
	assert.Contains(t, report.Outcomes[0].Warnings[0], "permission denied")
}

func TestImagesJob_DryRunKeepsFlag(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "A1.jpg"), []byte("one"), 0o600))

	store := memory.New()
	store.Seed(directory.ProductTemplate, directory.FieldMap{"default_code": "A1"})
	repo := &fakeRepo{images: []Article{{Code: "A1"}}}

	ctx := appctx.WithRun(context.Background(), &appctx.RunContext{RunID: "r1", Job: "images", DryRun: true})
	report, err := NewImagesJob(repo, directory.DryRun(store), tx.Inline, ImagesConfig{Images: ImageStore{Dir: dir}}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, reconcile.Updated, report.Outcomes[0].Status)
	assert.Empty(t, repo.marked)
	assert.Equal(t, 0, store.Calls(memory.OpWrite))
}
