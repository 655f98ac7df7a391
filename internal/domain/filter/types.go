package filter

// ComparisonType определяет виды сравнения.
type ComparisonType string

const (
	Equal          ComparisonType = "eq"        // Равно
	NotEqual       ComparisonType = "neq"       // Не равно
	Less           ComparisonType = "lt"        // Меньше
	Greater        ComparisonType = "gt"        // Больше
	LessOrEqual    ComparisonType = "lte"       // Меньше или равно
	GreaterOrEqual ComparisonType = "gte"       // Больше или равно
	InList         ComparisonType = "in"        // В списке
	NotInList      ComparisonType = "nin"       // Не в списке
	Contains       ComparisonType = "contains"  // Содержит (ILIKE %val%)
	NotContains    ComparisonType = "ncontains" // Не содержит (NOT ILIKE %val%)

	// Иерархические фильтры
	InHierarchy    ComparisonType = "in_hierarchy"  // В иерархии (в группе или подгруппах)
	NotInHierarchy ComparisonType = "nin_hierarchy" // Не в иерархии

	// Дополнительно
	IsNull    ComparisonType = "null"     // Не заполнено
	IsNotNull ComparisonType = "not_null" // Заполнено
)

// Item представляет одну строку отбора.
type Item struct {
	Field    string         `json:"field" yaml:"field"`       // Имя поля (snake_case)
	Operator ComparisonType `json:"operator" yaml:"operator"` // Вид сравнения
	Value    any            `json:"value" yaml:"value"`       // Значение (строка, число, массив ID)
}

func (Item) isTerm() {}

// LogicOp is a prefix operator of a Domain.
type LogicOp string

const (
	And LogicOp = "&"
	Or  LogicOp = "|"
	Not LogicOp = "!"
)

func (LogicOp) isTerm() {}

// Term is either an Item or a LogicOp.
type Term interface {
	isTerm()
}

// Domain is a search filter in prefix (Polish) notation.
// Consecutive items without an operator are joined by And.
type Domain []Term

// Where builds a single-condition item.
func Where(field string, op ComparisonType, value any) Item {
	return Item{Field: field, Operator: op, Value: value}
}

// Eq is shorthand for Where(field, Equal, value).
func Eq(field string, value any) Item {
	return Item{Field: field, Operator: Equal, Value: value}
}

// NewDomain joins items with an implicit And.
func NewDomain(items ...Item) Domain {
	d := make(Domain, 0, len(items))
	for _, it := range items {
		d = append(d, it)
	}
	return d
}

// AnyOf returns a domain matching when at least one item matches.
func AnyOf(items ...Item) Domain {
	d := make(Domain, 0, 2*len(items))
	for i := 1; i < len(items); i++ {
		d = append(d, Or)
	}
	for _, it := range items {
		d = append(d, it)
	}
	return d
}

// And appends the terms of other, keeping both sides required.
func (d Domain) And(other Domain) Domain {
	if len(d) == 0 {
		return other
	}
	if len(other) == 0 {
		return d
	}
	out := make(Domain, 0, len(d)+len(other))
	out = append(out, d...)
	return append(out, other...)
}

// Items returns the conditions of the domain, dropping operators.
func (d Domain) Items() []Item {
	var items []Item
	for _, t := range d {
		if it, ok := t.(Item); ok {
			items = append(items, it)
		}
	}
	return items
}
