// Package reconcile drives a batch of source records into the directory:
// each record is matched by natural key, then created or updated, and every
// record gets an outcome. Record failures never stop the batch; only a lost
// connection does.
package reconcile

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"erpsync/internal/core/apperror"
	appctx "erpsync/internal/core/context"
	"erpsync/internal/directory"
	"erpsync/pkg/logger"
)

var tracer = otel.Tracer("erpsync/reconcile")

// Target is the directory record matched by a key.
type Target struct {
	ID     int64
	Fields directory.FieldMap
}

// WriteResult is returned by Apply.
type WriteResult struct {
	ID int64
}

// Function types of a Spec.
type (
	KeyFunc[S any]    func(rec S) (NaturalKey, error)
	FindFunc[S any]   func(ctx context.Context, key NaturalKey, rec S) (*Target, error)
	FieldsFunc[S any] func(ctx context.Context, rec S) (directory.FieldMap, error)
	ApplyFunc[S any]  func(ctx context.Context, rec S, target *Target, fields directory.FieldMap) (WriteResult, error)
)

// Spec describes how one entity kind is reconciled.
type Spec[S any] struct {
	// Kind labels the report and the logs.
	Kind string

	// Key extracts the natural key. An empty key skips the record.
	Key KeyFunc[S]

	// Find returns the matching record or nil when none exists.
	Find FindFunc[S]

	// Fields maps the source record to directory fields.
	Fields FieldsFunc[S]

	// Apply writes fields. target is nil in create mode.
	Apply ApplyFunc[S]
}

// AbortError is returned when a batch stops early because a store became
// unreachable or the context ended. The report holds the outcomes so far.
type AbortError struct {
	Kind      string
	Key       NaturalKey
	Processed int
	Err       error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("reconcile %s aborted at %q after %d records: %v", e.Kind, e.Key, e.Processed, e.Err)
}

func (e *AbortError) Unwrap() error {
	return e.Err
}

// Reconciler runs a Spec over a batch.
type Reconciler[S any] struct {
	spec Spec[S]
	opts options
}

// New creates a Reconciler.
func New[S any](spec Spec[S], opts ...Option) *Reconciler[S] {
	r := &Reconciler[S]{spec: spec}
	for _, opt := range opts {
		opt(&r.opts)
	}
	return r
}

// Run reconciles records in order, one at a time.
func Run[S any](ctx context.Context, records []S, spec Spec[S], opts ...Option) (*BatchReport, error) {
	return New(spec, opts...).Run(ctx, records)
}

// Run reconciles records in order, one at a time. The returned report is never
// nil; a non-nil error is an *AbortError.
func (r *Reconciler[S]) Run(ctx context.Context, records []S) (*BatchReport, error) {
	ctx, span := tracer.Start(ctx, "reconcile.batch",
		trace.WithAttributes(
			attribute.String("reconcile.kind", r.spec.Kind),
			attribute.Int("reconcile.records", len(records)),
		))
	defer span.End()

	runID := r.opts.runID
	if runID == "" {
		runID = appctx.GetRunID(ctx)
	}
	report := NewBatchReport(r.spec.Kind, runID)
	log := logger.FromContext(ctx).WithComponent("reconcile").With("kind", r.spec.Kind)

	abort := func(key NaturalKey, err error) (*BatchReport, error) {
		report.Finish()
		ae := &AbortError{Kind: r.spec.Kind, Key: key, Processed: len(report.Outcomes), Err: err}
		span.RecordError(ae)
		span.SetStatus(codes.Error, "batch aborted")
		log.Errorw("batch aborted", "key", key, "processed", ae.Processed, "error", err)
		return report, ae
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return abort("", err)
		}
		out, fatal := r.one(ctx, rec)
		if fatal != nil {
			return abort(out.Key, fatal)
		}

		report.Add(out)
		switch out.Status {
		case Failed:
			log.Warnw("record failed", "key", out.Key, "code", out.Code, "error", out.Err)
		default:
			log.Debugw("record reconciled", "key", out.Key, "status", out.Status, "id", out.TargetID, "reason", out.Reason)
		}
	}

	report.Finish()
	span.SetAttributes(
		attribute.Int("reconcile.created", report.Counts.Created),
		attribute.Int("reconcile.updated", report.Counts.Updated),
		attribute.Int("reconcile.skipped", report.Counts.Skipped),
		attribute.Int("reconcile.failed", report.Counts.Failed),
	)
	return report, nil
}

// one reconciles a single record. fatal is set only for connectivity loss.
func (r *Reconciler[S]) one(ctx context.Context, rec S) (out Outcome, fatal error) {
	st := &recordState{}
	ctx = withRecordState(ctx, st)

	defer func() {
		if p := recover(); p != nil {
			out = failed(out.Key, apperror.NewInternal(fmt.Errorf("panic: %v", p)))
			fatal = nil
		}
		out.Warnings = st.warnings
	}()

	key, err := r.spec.Key(rec)
	if err != nil {
		return classify(key, err)
	}
	if key.IsEmpty() {
		return skipped(key, apperror.NewMissingKey()), nil
	}
	st.key = key
	out.Key = key

	for _, g := range r.opts.guards {
		reason, skip, err := g.Skip(rec)
		if err != nil {
			return classify(key, err)
		}
		if skip {
			return skipped(key, apperror.NewSkip(reason)), nil
		}
	}

	target, err := r.spec.Find(ctx, key, rec)
	if err != nil {
		return classify(key, err)
	}

	fields, err := r.spec.Fields(ctx, rec)
	if err != nil {
		return classify(key, err)
	}

	status := Created
	if target != nil {
		status = Updated
		if r.opts.skipUnchanged {
			fields = Diff(target.Fields, fields)
			if len(fields) == 0 {
				o := skipped(key, apperror.NewSkip("unchanged"))
				o.TargetID = target.ID
				return o, nil
			}
		}
	}

	res, err := r.spec.Apply(ctx, rec, target, fields)
	if err != nil {
		return classify(key, err)
	}
	if res.ID == 0 && target != nil {
		res.ID = target.ID
	}

	return Outcome{Key: key, Status: status, TargetID: res.ID}, nil
}

// classify downgrades a record error to an outcome.
// Connectivity errors are returned as fatal instead.
func classify(key NaturalKey, err error) (Outcome, error) {
	if apperror.IsConnectivity(err) {
		return Outcome{Key: key}, err
	}
	if apperror.IsSkip(err) {
		return skipped(key, err), nil
	}
	return failed(key, err), nil
}

func skipped(key NaturalKey, err error) Outcome {
	o := Outcome{Key: key, Status: Skipped, Code: apperror.CodeOf(err), Reason: err.Error()}
	if appErr, ok := apperror.AsAppError(err); ok {
		o.Reason = appErr.Message
	}
	return o
}

func failed(key NaturalKey, err error) Outcome {
	return Outcome{Key: key, Status: Failed, Code: apperror.CodeOf(err), Err: err}
}
