package reconcile

import (
	"context"

	"erpsync/internal/core/apperror"
	"erpsync/internal/directory"
	"erpsync/internal/domain/filter"
	"erpsync/pkg/logger"
)

// Diff returns the desired fields whose value differs from current.
// Fields absent from current always count as changed.
func Diff(current, desired directory.FieldMap) directory.FieldMap {
	changed := make(directory.FieldMap)
	for k, v := range desired {
		cur, ok := current[k]
		if !ok || !directory.Equal(cur, v) {
			changed[k] = v
		}
	}
	return changed
}

// Lookup searches kind by domain and reads the first match. Several matches
// resolve to the lowest id with a warning; no match returns nil.
func Lookup(ctx context.Context, svc directory.Service, kind directory.Kind, domain filter.Domain, read []string, opts ...directory.SearchOption) (*Target, error) {
	ids, err := svc.Search(ctx, kind, domain, append([]directory.SearchOption{directory.Order("id")}, opts...)...)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > 1 {
		Warn(ctx, "%d %s records match, using id %d", len(ids), kind, ids[0])
	}

	target := &Target{ID: ids[0]}
	if len(read) == 0 {
		return target, nil
	}
	recs, err := svc.Read(ctx, kind, ids[:1], read)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		// Deleted between search and read.
		return nil, nil
	}
	target.Fields = recs[0].Fields
	return target, nil
}

// Finder matches the key against a single field of kind.
func Finder[S any](svc directory.Service, kind directory.Kind, field string, read []string, opts ...directory.SearchOption) FindFunc[S] {
	return func(ctx context.Context, key NaturalKey, _ S) (*Target, error) {
		return Lookup(ctx, svc, kind, filter.NewDomain(filter.Eq(field, key.String())), read, opts...)
	}
}

// FinderBy matches with a domain built from the record, for composite keys.
func FinderBy[S any](svc directory.Service, kind directory.Kind, build func(ctx context.Context, key NaturalKey, rec S) (filter.Domain, error), read []string, opts ...directory.SearchOption) FindFunc[S] {
	return func(ctx context.Context, key NaturalKey, rec S) (*Target, error) {
		domain, err := build(ctx, key, rec)
		if err != nil {
			return nil, err
		}
		return Lookup(ctx, svc, kind, domain, read, opts...)
	}
}

// Upsert writes matched records and creates the others.
func Upsert[S any](svc directory.Service, kind directory.Kind) ApplyFunc[S] {
	return func(ctx context.Context, _ S, target *Target, fields directory.FieldMap) (WriteResult, error) {
		if target == nil {
			id, err := svc.Create(ctx, kind, fields)
			if err != nil {
				return WriteResult{}, err
			}
			return WriteResult{ID: id}, nil
		}
		if len(fields) == 0 {
			return WriteResult{ID: target.ID}, nil
		}
		if _, err := svc.Write(ctx, kind, []int64{target.ID}, fields); err != nil {
			return WriteResult{}, err
		}
		return WriteResult{ID: target.ID}, nil
	}
}

// UpdateOnly writes matched records. A missing record fails the outcome.
func UpdateOnly[S any](svc directory.Service, kind directory.Kind) ApplyFunc[S] {
	return updateOnly[S](svc, kind, func(key NaturalKey) error {
		return apperror.NewNotFound(string(kind), key.String())
	})
}

// UpdateExisting writes matched records and skips missing ones with reason.
func UpdateExisting[S any](svc directory.Service, kind directory.Kind, reason string) ApplyFunc[S] {
	return updateOnly[S](svc, kind, func(NaturalKey) error {
		return apperror.NewSkip(reason)
	})
}

func updateOnly[S any](svc directory.Service, kind directory.Kind, missing func(NaturalKey) error) ApplyFunc[S] {
	upsert := Upsert[S](svc, kind)
	return func(ctx context.Context, rec S, target *Target, fields directory.FieldMap) (WriteResult, error) {
		if target == nil {
			return WriteResult{}, missing(CurrentKey(ctx))
		}
		return upsert(ctx, rec, target, fields)
	}
}

// Ensure returns the id of the record matching domain, creating it with
// fields when absent. It runs outside a batch, e.g. for a price list header.
func Ensure(ctx context.Context, svc directory.Service, kind directory.Kind, domain filter.Domain, fields directory.FieldMap, opts ...directory.SearchOption) (id int64, created bool, err error) {
	target, err := Lookup(ctx, svc, kind, domain, nil, opts...)
	if err != nil {
		return 0, false, err
	}
	if target != nil {
		return target.ID, false, nil
	}
	id, err = svc.Create(ctx, kind, fields)
	if err != nil {
		return 0, false, err
	}
	logger.Info(ctx, "created directory record", "kind", kind, "id", id)
	return id, true, nil
}
