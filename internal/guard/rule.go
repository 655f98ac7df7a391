// Package guard compiles the per-job skip rules: CEL boolean expressions
// evaluated against a source row before any directory call.
package guard

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/shopspring/decimal"

	"erpsync/internal/core/apperror"
	"erpsync/internal/reconcile"
)

// Flattener turns a source row into column/value pairs.
type Flattener func(record any) map[string]any

// Rule is a compiled skip rule. It implements reconcile.Guard.
type Rule struct {
	expr    string
	prg     cel.Program
	flatten Flattener
}

var _ reconcile.Guard = (*Rule)(nil)

// Compile parses expr. The expression sees the row as the map variable `row`
// and must evaluate to bool. An empty expression yields a nil rule, which
// reconcile.WithGuard ignores.
func Compile(expr string, flatten Flattener) (*Rule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	env, err := cel.NewEnv(cel.Variable("row", cel.MapType(cel.StringType, cel.DynType)))
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, apperror.NewValidation(fmt.Sprintf("skip rule %q: %v", expr, iss.Err()))
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, apperror.NewValidation(fmt.Sprintf("skip rule %q must be boolean, got %v", expr, ast.OutputType()))
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program skip rule: %w", err)
	}

	return &Rule{expr: expr, prg: prg, flatten: flatten}, nil
}

// String returns the source expression.
func (r *Rule) String() string {
	return r.expr
}

// Skip implements reconcile.Guard.
func (r *Rule) Skip(record any) (string, bool, error) {
	row, ok := record.(map[string]any)
	if !ok {
		if r.flatten == nil {
			return "", false, apperror.NewInternal(fmt.Errorf("skip rule: no flattener for %T", record))
		}
		row = r.flatten(record)
	}

	out, _, err := r.prg.Eval(map[string]any{"row": normalize(row)})
	if err != nil {
		return "", false, apperror.NewValidation(fmt.Sprintf("skip rule %q", r.expr)).WithCause(err)
	}
	skip, ok := out.Value().(bool)
	if !ok {
		return "", false, apperror.NewValidation(fmt.Sprintf("skip rule %q returned %T", r.expr, out.Value()))
	}
	if !skip {
		return "", false, nil
	}
	return "skip rule: " + r.expr, true, nil
}

// normalize converts row values to types CEL understands.
func normalize(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = celValue(v)
	}
	return out
}

func celValue(v any) any {
	switch t := v.(type) {
	case decimal.Decimal:
		return t.InexactFloat64()
	case *decimal.Decimal:
		if t == nil {
			return nil
		}
		return t.InexactFloat64()
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case float32:
		return float64(t)
	case *string:
		if t == nil {
			return nil
		}
		return *t
	case *time.Time:
		if t == nil {
			return nil
		}
		return *t
	}
	return v
}
