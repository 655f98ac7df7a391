package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"erpsync/internal/core/apperror"
	"erpsync/internal/domain/filter"
	"erpsync/pkg/logger"
)

// Resolver looks up ids of referenced records by a code field and remembers
// hits for the rest of the run. Misses are not cached: a later step of the same
// run may create the record.
type Resolver struct {
	svc   Service
	mu    sync.Mutex
	cache map[string]int64
}

// NewResolver creates a resolver over svc.
func NewResolver(svc Service) *Resolver {
	return &Resolver{svc: svc, cache: make(map[string]int64)}
}

// Resolve returns the id of the kind record whose field equals code.
// A missing record is a NotFound AppError.
func (r *Resolver) Resolve(ctx context.Context, kind Kind, field, code string, extra ...filter.Item) (int64, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, apperror.NewNotFound(string(kind), "(empty)")
	}

	cacheKey := fmt.Sprintf("%s|%s|%s|%v", kind, field, code, extra)
	r.mu.Lock()
	id, ok := r.cache[cacheKey]
	r.mu.Unlock()
	if ok {
		return id, nil
	}

	domain := filter.NewDomain(append([]filter.Item{filter.Eq(field, code)}, extra...)...)
	ids, err := r.svc.Search(ctx, kind, domain, Order("id"))
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, apperror.NewNotFound(string(kind), code)
	}
	if len(ids) > 1 {
		logger.Warn(ctx, "ambiguous reference, using lowest id",
			"kind", kind, "field", field, "code", code, "ids", ids)
	}

	r.mu.Lock()
	r.cache[cacheKey] = ids[0]
	r.mu.Unlock()
	return ids[0], nil
}
