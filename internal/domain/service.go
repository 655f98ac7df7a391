package domain

import (
	"context"
	"errors"
	"time"

	appctx "erpsync/internal/core/context"
	"erpsync/internal/core/id"
	"erpsync/internal/reconcile"
	"erpsync/pkg/logger"
)

// Job is one synchronization pass. Run returns the report of the batch even
// when it fails; a non-nil error means the run is unusable (source
// unreachable, batch aborted).
type Job interface {
	Name() string
	Run(ctx context.Context) (*reconcile.BatchReport, error)
}

// TableJob is implemented by diagnostic jobs that produce a table in addition
// to the outcome report.
type TableJob interface {
	Job
	Table() (header []string, rows [][]string)
}

// ReportWriter persists reports. Implemented by report.Sink.
type ReportWriter interface {
	Write(ctx context.Context, job string, reports ...*reconcile.BatchReport) (string, error)
	WriteTable(ctx context.Context, name string, header []string, rows [][]string) (string, error)
}

// Runner executes jobs with a run context, logging and report persistence.
type Runner struct {
	reports ReportWriter
	log     *logger.Logger
	dryRun  bool
}

// NewRunner creates a Runner. reports may be nil to skip persistence.
func NewRunner(reports ReportWriter, log *logger.Logger, dryRun bool) *Runner {
	if log == nil {
		log = logger.Default()
	}
	return &Runner{reports: reports, log: log, dryRun: dryRun}
}

// Result describes a finished run.
type Result struct {
	RunID      string
	Report     *reconcile.BatchReport
	ReportPath string
	TablePath  string
}

// Run executes job. The report is written even when the batch aborted, so the
// outcomes gathered before the failure are kept.
func (r *Runner) Run(ctx context.Context, job Job) (*Result, error) {
	run := &appctx.RunContext{
		RunID:     id.New(),
		Job:       job.Name(),
		DryRun:    r.dryRun,
		StartedAt: time.Now(),
	}
	ctx = appctx.WithRun(ctx, run)
	ctx = logger.WithLogger(ctx, r.log)
	log := logger.FromContext(ctx)

	log.Infow("job started")
	report, runErr := job.Run(ctx)
	res := &Result{RunID: run.RunID, Report: report}

	if r.reports != nil {
		if report != nil {
			path, err := r.reports.Write(ctx, job.Name(), report)
			if err != nil {
				log.Errorw("write report failed", "error", err)
			}
			res.ReportPath = path
		}
		if tj, ok := job.(TableJob); ok {
			header, rows := tj.Table()
			if len(rows) > 0 {
				path, err := r.reports.WriteTable(ctx, job.Name()+"-table", header, rows)
				if err != nil {
					log.Errorw("write table failed", "error", err)
				}
				res.TablePath = path
			}
		}
	}

	if runErr != nil {
		var abort *reconcile.AbortError
		if errors.As(runErr, &abort) {
			log.Errorw("job aborted", "key", abort.Key, "processed", abort.Processed, "error", abort.Err)
		} else {
			log.Errorw("job failed", "error", runErr)
		}
		return res, runErr
	}

	if report != nil {
		log.Infow("job finished", append(report.Summary(), "report", res.ReportPath)...)
	}
	return res, nil
}
