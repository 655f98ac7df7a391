package filter

import (
	"fmt"
	"strings"
)

// ParseItem reads a "field:op:value" condition. List operators take a
// comma-separated value; null and not_null take none.
func ParseItem(s string) (Item, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 3)
	if len(parts) < 2 {
		return Item{}, fmt.Errorf("condition %q: want field:op:value", s)
	}
	field := strings.TrimSpace(parts[0])
	op := ComparisonType(strings.ToLower(strings.TrimSpace(parts[1])))
	if field == "" {
		return Item{}, fmt.Errorf("condition %q: empty field", s)
	}

	switch op {
	case IsNull, IsNotNull:
		if len(parts) == 3 && strings.TrimSpace(parts[2]) != "" {
			return Item{}, fmt.Errorf("condition %q: %s takes no value", s, op)
		}
		return Where(field, op, nil), nil
	case Equal, NotEqual, Less, Greater, LessOrEqual, GreaterOrEqual, Contains, NotContains:
		if len(parts) < 3 {
			return Item{}, fmt.Errorf("condition %q: missing value", s)
		}
		return Where(field, op, strings.TrimSpace(parts[2])), nil
	case InList, NotInList:
		if len(parts) < 3 {
			return Item{}, fmt.Errorf("condition %q: missing value", s)
		}
		var values []string
		for _, v := range strings.Split(parts[2], ",") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			return Item{}, fmt.Errorf("condition %q: empty list", s)
		}
		return Where(field, op, values), nil
	default:
		return Item{}, fmt.Errorf("condition %q: unknown operator %q", s, op)
	}
}

// ParseItems parses every condition, stopping at the first bad one.
func ParseItems(conds []string) ([]Item, error) {
	items := make([]Item, 0, len(conds))
	for _, c := range conds {
		item, err := ParseItem(c)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
