// Package memory implements directory.Service in process.
// It follows the remote semantics the jobs rely on: archived records are hidden
// from searches unless asked for, domains use prefix notation, ids are sequential.
package memory

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"erpsync/internal/core/apperror"
	"erpsync/internal/directory"
	"erpsync/internal/domain/filter"
)

// Op names a Service primitive, used for call counting and fault injection.
type Op string

const (
	OpSearch Op = "search"
	OpRead   Op = "read"
	OpCreate Op = "create"
	OpWrite  Op = "write"
	OpUnlink Op = "unlink"
)

// Store is an in-memory directory.Service.
type Store struct {
	mu      sync.Mutex
	seq     int64
	records map[directory.Kind]map[int64]directory.FieldMap
	calls   map[Op]int
	fault   func(op Op, kind directory.Kind, fields directory.FieldMap) error
}

var _ directory.Service = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		records: make(map[directory.Kind]map[int64]directory.FieldMap),
		calls:   make(map[Op]int),
	}
}

// FailWith installs a fault hook consulted before every call.
// fields is nil for search, read and unlink.
func (s *Store) FailWith(fn func(op Op, kind directory.Kind, fields directory.FieldMap) error) {
	s.mu.Lock()
	s.fault = fn
	s.mu.Unlock()
}

// Seed inserts a record directly and returns its id.
func (s *Store) Seed(kind directory.Kind, fields directory.FieldMap) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(kind, fields)
}

// All returns every record of kind, archived included, ordered by id.
func (s *Store) All(kind directory.Kind) []directory.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]directory.Record, 0, len(s.records[kind]))
	for _, id := range s.sortedIDs(kind) {
		out = append(out, directory.Record{ID: id, Fields: clone(s.records[kind][id])})
	}
	return out
}

// Get returns one record's fields, or nil.
func (s *Store) Get(kind directory.Kind, id int64) directory.FieldMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.records[kind][id])
}

// Calls returns how many times op was invoked.
func (s *Store) Calls(op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Search implements directory.Service.
func (s *Store) Search(ctx context.Context, kind directory.Kind, domain filter.Domain, opts ...directory.SearchOption) ([]int64, error) {
	if err := s.enter(ctx, OpSearch, kind, nil); err != nil {
		return nil, err
	}
	o := directory.ApplySearchOptions(opts...)

	s.mu.Lock()
	defer s.mu.Unlock()

	activeTest := !o.IncludeArchived && !domain.HasField("active")
	var ids []int64
	for _, id := range s.sortedIDs(kind) {
		rec := s.records[kind][id]
		if activeTest {
			if active, ok := rec["active"].(bool); ok && !active {
				continue
			}
		}
		ok, err := domain.Eval(func(it filter.Item) (bool, error) {
			return matchItem(id, rec, it)
		})
		if err != nil {
			return nil, apperror.NewValidation(err.Error())
		}
		if ok {
			ids = append(ids, id)
		}
	}

	s.order(kind, ids, o.Order)
	if o.Limit > 0 && len(ids) > o.Limit {
		ids = ids[:o.Limit]
	}
	return ids, nil
}

// Read implements directory.Service.
func (s *Store) Read(ctx context.Context, kind directory.Kind, ids []int64, fields []string) ([]directory.Record, error) {
	if err := s.enter(ctx, OpRead, kind, nil); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]directory.Record, 0, len(ids))
	for _, id := range ids {
		rec, ok := s.records[kind][id]
		if !ok {
			continue
		}
		if len(fields) == 0 {
			out = append(out, directory.Record{ID: id, Fields: clone(rec)})
			continue
		}
		sub := make(directory.FieldMap, len(fields))
		for _, f := range fields {
			if v, ok := rec[f]; ok {
				sub[f] = v
			} else {
				sub[f] = false
			}
		}
		out = append(out, directory.Record{ID: id, Fields: sub})
	}
	return out, nil
}

// Create implements directory.Service.
func (s *Store) Create(ctx context.Context, kind directory.Kind, fields directory.FieldMap) (int64, error) {
	if err := s.enter(ctx, OpCreate, kind, fields); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(kind, fields), nil
}

// Write implements directory.Service.
func (s *Store) Write(ctx context.Context, kind directory.Kind, ids []int64, fields directory.FieldMap) (bool, error) {
	if err := s.enter(ctx, OpWrite, kind, fields); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if _, ok := s.records[kind][id]; !ok {
			return false, apperror.NewNotFound(string(kind), id)
		}
	}
	for _, id := range ids {
		for k, v := range fields {
			s.records[kind][id][k] = v
		}
	}
	return true, nil
}

// Unlink implements directory.Service.
func (s *Store) Unlink(ctx context.Context, kind directory.Kind, ids []int64) (bool, error) {
	if err := s.enter(ctx, OpUnlink, kind, nil); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if _, ok := s.records[kind][id]; !ok {
			return false, apperror.NewNotFound(string(kind), id)
		}
	}
	for _, id := range ids {
		delete(s.records[kind], id)
	}
	return true, nil
}

func (s *Store) enter(ctx context.Context, op Op, kind directory.Kind, fields directory.FieldMap) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.calls[op]++
	fault := s.fault
	s.mu.Unlock()
	if fault != nil {
		return fault(op, kind, fields)
	}
	return nil
}

func (s *Store) insert(kind directory.Kind, fields directory.FieldMap) int64 {
	if s.records[kind] == nil {
		s.records[kind] = make(map[int64]directory.FieldMap)
	}
	s.seq++
	s.records[kind][s.seq] = clone(fields)
	return s.seq
}

func (s *Store) sortedIDs(kind directory.Kind) []int64 {
	ids := make([]int64, 0, len(s.records[kind]))
	for id := range s.records[kind] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// order sorts ids by "field [asc|desc]". Ties keep id order.
func (s *Store) order(kind directory.Kind, ids []int64, order string) {
	parts := strings.Fields(order)
	if len(parts) == 0 {
		return
	}
	field := parts[0]
	desc := len(parts) > 1 && strings.EqualFold(parts[1], "desc")
	value := func(id int64) any {
		if field == "id" {
			return id
		}
		return s.records[kind][id][field]
	}
	sort.SliceStable(ids, func(i, j int) bool {
		c := compare(value(ids[i]), value(ids[j]))
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func matchItem(id int64, rec directory.FieldMap, it filter.Item) (bool, error) {
	var v any
	if it.Field == "id" {
		v = id
	} else {
		v = rec[it.Field]
	}

	switch it.Operator {
	case filter.Equal, filter.InHierarchy:
		return equals(v, it.Value), nil
	case filter.NotEqual:
		return !equals(v, it.Value), nil
	case filter.Less:
		return !directory.IsEmpty(v) && compare(v, it.Value) < 0, nil
	case filter.Greater:
		return !directory.IsEmpty(v) && compare(v, it.Value) > 0, nil
	case filter.LessOrEqual:
		return !directory.IsEmpty(v) && compare(v, it.Value) <= 0, nil
	case filter.GreaterOrEqual:
		return !directory.IsEmpty(v) && compare(v, it.Value) >= 0, nil
	case filter.InList:
		return inList(v, it.Value), nil
	case filter.NotInList:
		return !inList(v, it.Value), nil
	case filter.Contains:
		return strings.Contains(strings.ToLower(directory.Text(v)), strings.ToLower(fmt.Sprint(it.Value))), nil
	case filter.NotContains:
		return !strings.Contains(strings.ToLower(directory.Text(v)), strings.ToLower(fmt.Sprint(it.Value))), nil
	case filter.IsNull:
		return directory.IsEmpty(v), nil
	case filter.IsNotNull:
		return !directory.IsEmpty(v), nil
	}
	return false, fmt.Errorf("unsupported operator %q", it.Operator)
}

func equals(v, want any) bool {
	if directory.IsEmpty(want) {
		return directory.IsEmpty(v)
	}
	return directory.Equal(v, want)
}

func inList(v, list any) bool {
	rv := reflect.ValueOf(list)
	if rv.Kind() != reflect.Slice {
		return equals(v, list)
	}
	for i := 0; i < rv.Len(); i++ {
		if equals(v, rv.Index(i).Interface()) {
			return true
		}
	}
	return false
}

func compare(a, b any) int {
	af, aok := number(a)
	bf, bok := number(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return strings.Compare(directory.Text(a), directory.Text(b))
}

func number(v any) (float64, bool) {
	if id, ok := directory.RefID(v); ok {
		if _, isPair := v.([]any); isPair {
			return float64(id), true
		}
	}
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func clone(m directory.FieldMap) directory.FieldMap {
	if m == nil {
		return nil
	}
	out := make(directory.FieldMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
