package directory

import (
	"context"
	"sync/atomic"

	"erpsync/internal/domain/filter"
	"erpsync/pkg/logger"
)

// DryRun wraps a Service so that reads reach the directory and writes are only
// logged. Creates return negative ids, which never collide with real records.
func DryRun(svc Service) Service {
	return &dryRun{next: svc}
}

type dryRun struct {
	next Service
	seq  atomic.Int64
}

func (d *dryRun) Search(ctx context.Context, kind Kind, domain filter.Domain, opts ...SearchOption) ([]int64, error) {
	return d.next.Search(ctx, kind, domain, opts...)
}

func (d *dryRun) Read(ctx context.Context, kind Kind, ids []int64, fields []string) ([]Record, error) {
	var real []int64
	for _, id := range ids {
		if id > 0 {
			real = append(real, id)
		}
	}
	if len(real) == 0 {
		return nil, nil
	}
	return d.next.Read(ctx, kind, real, fields)
}

func (d *dryRun) Create(ctx context.Context, kind Kind, fields FieldMap) (int64, error) {
	id := -d.seq.Add(1)
	logger.Info(ctx, "dry-run create", "kind", kind, "id", id, "fields", redact(fields))
	return id, nil
}

func (d *dryRun) Write(ctx context.Context, kind Kind, ids []int64, fields FieldMap) (bool, error) {
	logger.Info(ctx, "dry-run write", "kind", kind, "ids", ids, "fields", redact(fields))
	return true, nil
}

func (d *dryRun) Unlink(ctx context.Context, kind Kind, ids []int64) (bool, error) {
	logger.Info(ctx, "dry-run unlink", "kind", kind, "ids", ids)
	return true, nil
}

// redact drops binary payloads from logged field maps.
func redact(fields FieldMap) FieldMap {
	out := make(FieldMap, len(fields))
	for k, v := range fields {
		if s, ok := v.(string); ok && len(s) > 256 {
			out[k] = "<" + k + " omitted>"
			continue
		}
		out[k] = v
	}
	return out
}
