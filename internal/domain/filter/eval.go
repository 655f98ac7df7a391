package filter

import "fmt"

// Eval evaluates the domain against one record.
// match decides a single Item; operators combine results right to left.
func (d Domain) Eval(match func(Item) (bool, error)) (bool, error) {
	stack := make([]bool, 0, len(d))
	pop := func() (bool, error) {
		if len(stack) == 0 {
			return false, fmt.Errorf("malformed domain: missing operand")
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v, nil
	}

	for i := len(d) - 1; i >= 0; i-- {
		switch t := d[i].(type) {
		case Item:
			ok, err := match(t)
			if err != nil {
				return false, err
			}
			stack = append(stack, ok)
		case LogicOp:
			a, err := pop()
			if err != nil {
				return false, err
			}
			if t == Not {
				stack = append(stack, !a)
				continue
			}
			b, err := pop()
			if err != nil {
				return false, err
			}
			switch t {
			case And:
				stack = append(stack, a && b)
			case Or:
				stack = append(stack, a || b)
			default:
				return false, fmt.Errorf("unknown domain operator %q", string(t))
			}
		default:
			return false, fmt.Errorf("unknown domain term %T", t)
		}
	}

	for _, v := range stack {
		if !v {
			return false, nil
		}
	}
	return true, nil
}

// HasField reports whether any item of the domain filters on field.
func (d Domain) HasField(field string) bool {
	for _, it := range d.Items() {
		if it.Field == field {
			return true
		}
	}
	return false
}
