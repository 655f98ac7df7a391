// Package mapping holds the code tables that translate catalog codes (unit of
// measure, country, province...) into directory ids. The tables are data
// loaded from YAML, validated at startup and injected into jobs.
package mapping

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"

	"erpsync/internal/core/apperror"
	"erpsync/internal/directory"
	"erpsync/internal/domain/filter"
)

// Well-known table names.
const (
	TableUOM      = "uom"
	TableCountry  = "country"
	TableState    = "state"
	TableIDType   = "id_type"
	TableCurrency = "currency"
	TableLocation = "location"

	// TableTaxCondition is optional: partners get a tax responsibility only
	// when it is loaded.
	TableTaxCondition = "tax_condition"
)

type file struct {
	Codes map[string]map[any]any `yaml:"codes"`
	Skip  map[string]string      `yaml:"skip"`
}

// Registry is a loaded set of code tables. It is read-only after Load.
type Registry struct {
	// tables[table][code] is the directory id, or nil for an explicit "no value".
	tables map[string]map[string]*int64
	skip   map[string]string
}

// Load reads a registry from a YAML file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mappings: %w", err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Parse decodes a registry document.
func Parse(data []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse mappings: %w", err)
	}

	r := &Registry{
		tables: make(map[string]map[string]*int64, len(f.Codes)),
		skip:   f.Skip,
	}
	for table, entries := range f.Codes {
		t := make(map[string]*int64, len(entries))
		for k, v := range entries {
			code := Clean(fmt.Sprint(k))
			if v == nil {
				t[code] = nil
				continue
			}
			id, ok := toID(v)
			if !ok {
				return nil, fmt.Errorf("codes.%s.%s: %v is not a directory id", table, code, v)
			}
			t[code] = &id
		}
		r.tables[table] = t
	}
	return r, nil
}

// New builds a registry in code. Tests use it.
func New(tables map[string]map[string]*int64, skip map[string]string) *Registry {
	return &Registry{tables: tables, skip: skip}
}

// ID is a helper for New.
func ID(v int64) *int64 { return &v }

// Lookup translates code through table. An explicit "no value" entry returns
// ok=false without error; a code missing from the table is an UNMAPPED_CODE
// error, never a default.
func (r *Registry) Lookup(table, code string) (id int64, ok bool, err error) {
	t, exists := r.tables[table]
	if !exists {
		return 0, false, apperror.NewUnmappedCode(table, code).WithDetail("reason", "table not loaded")
	}
	entry, exists := t[Clean(code)]
	if !exists {
		return 0, false, apperror.NewUnmappedCode(table, code)
	}
	if entry == nil {
		return 0, false, nil
	}
	return *entry, true, nil
}

// Ref sets fields[field] to the id mapped for code. A blank code or an
// explicit null leaves the field unset; an unmapped code is an error.
func (r *Registry) Ref(fields directory.FieldMap, field, table, code string) error {
	if Clean(code) == "" {
		return nil
	}
	id, ok, err := r.Lookup(table, code)
	if err != nil {
		return err
	}
	if ok {
		fields[field] = id
	}
	return nil
}

// Has reports whether table is loaded.
func (r *Registry) Has(table string) bool {
	_, ok := r.tables[table]
	return ok
}

// SkipRule returns the skip expression configured for job, if any.
func (r *Registry) SkipRule(job string) string {
	return strings.TrimSpace(r.skip[job])
}

// Tables lists the loaded table names, sorted.
func (r *Registry) Tables() []string {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every required table is present and not empty.
func (r *Registry) Validate(required ...string) error {
	var missing []string
	for _, name := range required {
		if len(r.tables[name]) == 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return apperror.NewValidation("required code tables missing or empty").
			WithDetail("tables", missing)
	}
	return nil
}

// ValidateTargets checks that every id of the given tables exists in the
// directory under the paired kind. It returns one error listing the dangling
// ids per table.
func (r *Registry) ValidateTargets(ctx context.Context, svc directory.Service, kinds map[string]directory.Kind) error {
	tables := make([]string, 0, len(kinds))
	for t := range kinds {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	dangling := map[string][]int64{}
	for _, table := range tables {
		want := r.ids(table)
		if len(want) == 0 {
			continue
		}
		found, err := svc.Search(ctx, kinds[table],
			filter.NewDomain(filter.Where("id", filter.InList, want)),
			directory.IncludeArchived())
		if err != nil {
			return err
		}
		have := make(map[int64]bool, len(found))
		for _, id := range found {
			have[id] = true
		}
		for _, id := range want {
			if !have[id] {
				dangling[table] = append(dangling[table], id)
			}
		}
	}

	if len(dangling) > 0 {
		return apperror.NewValidation("mapped ids not found in directory").
			WithDetail("dangling", dangling)
	}
	return nil
}

func (r *Registry) ids(table string) []int64 {
	seen := map[int64]bool{}
	var out []int64
	for _, v := range r.tables[table] {
		if v != nil && !seen[*v] {
			seen[*v] = true
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func toID(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}
