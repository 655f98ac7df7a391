package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "erpsync/internal/core/context"
	"erpsync/internal/core/id"
	"erpsync/internal/reconcile"
	"erpsync/pkg/logger"
)

type fakeJob struct {
	name   string
	report *reconcile.BatchReport
	err    error
	header []string
	rows   [][]string

	seen *appctx.RunContext
}

func (j *fakeJob) Name() string { return j.name }

func (j *fakeJob) Run(ctx context.Context) (*reconcile.BatchReport, error) {
	j.seen = appctx.GetRun(ctx)
	return j.report, j.err
}

type tableJob struct {
	*fakeJob
}

func (j tableJob) Table() ([]string, [][]string) { return j.header, j.rows }

type fakeWriter struct {
	written []string
	tables  []string
	err     error
}

func (w *fakeWriter) Write(_ context.Context, job string, _ ...*reconcile.BatchReport) (string, error) {
	w.written = append(w.written, job)
	return "reports/" + job + ".csv", w.err
}

func (w *fakeWriter) WriteTable(_ context.Context, name string, _ []string, _ [][]string) (string, error) {
	w.tables = append(w.tables, name)
	return "reports/" + name + ".csv", w.err
}

func finished(kind string, statuses ...reconcile.Status) *reconcile.BatchReport {
	r := reconcile.NewBatchReport(kind, "")
	for i, s := range statuses {
		r.Add(reconcile.Outcome{Key: reconcile.Key(string(rune('A' + i))), Status: s})
	}
	r.Finish()
	return r
}

func TestRunner_Run(t *testing.T) {
	w := &fakeWriter{}
	job := &fakeJob{name: "products", report: finished("product.template", reconcile.Created, reconcile.Failed)}

	res, err := NewRunner(w, logger.NewNop(), true).Run(context.Background(), job)
	require.NoError(t, err)

	require.NotNil(t, job.seen)
	assert.Equal(t, "products", job.seen.Job)
	assert.True(t, job.seen.DryRun)
	assert.True(t, id.Valid(job.seen.RunID))
	assert.Equal(t, job.seen.RunID, res.RunID)

	assert.Same(t, job.report, res.Report)
	assert.Equal(t, []string{"products"}, w.written)
	assert.Equal(t, "reports/products.csv", res.ReportPath)
	assert.Empty(t, w.tables)
}

func TestRunner_AbortedBatchStillWritesReport(t *testing.T) {
	w := &fakeWriter{}
	abort := &reconcile.AbortError{Kind: "stock.quant", Key: "A1/1", Processed: 1, Err: errors.New("connection refused")}
	job := &fakeJob{name: "stock", report: finished("stock.quant", reconcile.Updated), err: abort}

	res, err := NewRunner(w, logger.NewNop(), false).Run(context.Background(), job)
	require.Error(t, err)

	var ae *reconcile.AbortError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, []string{"stock"}, w.written)
	assert.Same(t, job.report, res.Report)
}

func TestRunner_SourceFailureWritesNothing(t *testing.T) {
	w := &fakeWriter{}
	job := &fakeJob{name: "prices", err: errors.New("database is down")}

	res, err := NewRunner(w, nil, false).Run(context.Background(), job)
	require.Error(t, err)
	assert.Nil(t, res.Report)
	assert.Empty(t, w.written)
}

func TestRunner_TableJob(t *testing.T) {
	w := &fakeWriter{}
	job := tableJob{&fakeJob{
		name:   "pricelist-duplicates",
		report: finished("product.pricelist.item", reconcile.Skipped),
		header: []string{"group", "id"},
		rows:   [][]string{{"g1", "10"}},
	}}

	res, err := NewRunner(w, logger.NewNop(), false).Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, []string{"pricelist-duplicates-table"}, w.tables)
	assert.Equal(t, "reports/pricelist-duplicates-table.csv", res.TablePath)
}

func TestRunner_WriterErrorIsNotFatal(t *testing.T) {
	w := &fakeWriter{err: errors.New("disk full")}
	job := &fakeJob{name: "products", report: finished("product.template", reconcile.Failed)}

	_, err := NewRunner(w, logger.NewNop(), false).Run(context.Background(), job)
	assert.NoError(t, err)
}

func TestRunner_NoWriter(t *testing.T) {
	job := &fakeJob{name: "products", report: finished("product.template", reconcile.Created)}

	res, err := NewRunner(nil, logger.NewNop(), false).Run(context.Background(), job)
	require.NoError(t, err)
	assert.Empty(t, res.ReportPath)
}
