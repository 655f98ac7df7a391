package directory

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RefID extracts the id of a many2one value. The directory returns those as
// [id, "display name"], as a bare id, or false when empty.
func RefID(v any) (int64, bool) {
	switch t := v.(type) {
	case []any:
		if len(t) == 0 {
			return 0, false
		}
		return RefID(t[0])
	case []int64:
		if len(t) == 0 {
			return 0, false
		}
		return t[0], true
	default:
		f, ok := toFloat(v)
		if !ok || f == 0 {
			return 0, false
		}
		return int64(f), true
	}
}

// IsEmpty reports the directory's notion of an unset value.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case []int64:
		return len(t) == 0
	}
	return false
}

// Equal compares a value read from the directory with a desired value.
// Numbers compare by value, many2one pairs by id, and all empty values match.
func Equal(current, desired any) bool {
	if IsEmpty(current) && IsEmpty(desired) {
		return true
	}
	if cb, ok := current.(bool); ok {
		db, ok := desired.(bool)
		return ok && cb == db
	}
	if id, ok := refOf(current); ok {
		if did, ok := RefID(desired); ok {
			return id == did
		}
		return false
	}
	if cf, ok := toFloat(current); ok {
		df, ok := toFloat(desired)
		return ok && cf == df
	}
	if cs, ok := current.(string); ok {
		ds, ok := desired.(string)
		return ok && cs == ds
	}
	return fmt.Sprint(current) == fmt.Sprint(desired)
}

// Text renders a field value for reports and comparisons.
func Text(v any) string {
	if IsEmpty(v) {
		return ""
	}
	if pair, ok := v.([]any); ok && len(pair) == 2 {
		return fmt.Sprint(pair[1])
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func refOf(v any) (int64, bool) {
	switch v.(type) {
	case []any, []int64:
		return RefID(v)
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
