package query

import (
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/leapstack-labs/portsql/pkg/adapter"
	"github.com/leapstack-labs/portsql/pkg/dialect"
)

// Comparison operators understood by Condition.
const (
	OpEq        = "="
	OpNotEq     = "<>"
	OpLt        = "<"
	OpLte       = "<="
	OpGt        = ">"
	OpGte       = ">="
	OpLike      = "LIKE"
	OpIn        = "IN"
	OpNotIn     = "NOT IN"
	OpIsNull    = "IS NULL"
	OpIsNotNull = "IS NOT NULL"
)

// Condition is one predicate of a WHERE clause, or a nested group of
// predicates when Group is set.
type Condition struct {
	Field string
	Op    string
	Value any
	Group *Group
}

// Group joins conditions with AND or OR.
type Group struct {
	Conjunction string
	Conditions  []Condition
}

// Eq matches rows where field equals value.
func Eq(field string, value any) Condition {
	return Condition{Field: field, Op: OpEq, Value: value}
}

// Compare matches rows where field op value holds.
func Compare(field, op string, value any) Condition {
	return Condition{Field: field, Op: op, Value: value}
}

// In matches rows where field is one of values. values must be a slice.
func In(field string, values any) Condition {
	return Condition{Field: field, Op: OpIn, Value: values}
}

// NotIn matches rows where field is none of values.
func NotIn(field string, values any) Condition {
	return Condition{Field: field, Op: OpNotIn, Value: values}
}

// IsNull matches rows where field is NULL.
func IsNull(field string) Condition {
	return Condition{Field: field, Op: OpIsNull}
}

// Or groups conditions with OR.
func Or(conds ...Condition) Condition {
	return Condition{Group: &Group{Conjunction: "OR", Conditions: conds}}
}

// And groups conditions with AND.
func And(conds ...Condition) Condition {
	return Condition{Group: &Group{Conjunction: "AND", Conditions: conds}}
}

// InMaxSize returns the largest IN list for d. The PORTSQL_IN_MAX_SIZE
// environment variable wins over the dialect limit. Zero means unlimited.
func InMaxSize(d *dialect.Dialect) int {
	if v := os.Getenv(adapter.InMaxSizeEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return d.InListLimit
}

// SplitIn replaces every IN condition with more than size values, including
// those in nested groups, by an OR group of IN conditions of at most size
// values each. NOT IN conditions become AND groups of NOT IN conditions.
// conds is not modified. A size of zero or less returns conds unchanged.
func SplitIn(conds []Condition, size int) []Condition {
	if size <= 0 {
		return conds
	}

	out := make([]Condition, len(conds))
	for i, c := range conds {
		if c.Group != nil {
			g := *c.Group
			g.Conditions = SplitIn(g.Conditions, size)
			c.Group = &g
			out[i] = c
			continue
		}
		out[i] = splitOne(c, size)
	}
	return out
}

func splitOne(c Condition, size int) Condition {
	op := strings.ToUpper(c.Op)
	if op != OpIn && op != OpNotIn {
		return c
	}
	items, ok := sliceValues(c.Value)
	if !ok || len(items) <= size {
		return c
	}

	conj := "OR"
	if op == OpNotIn {
		conj = "AND"
	}
	g := &Group{Conjunction: conj}
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		g.Conditions = append(g.Conditions, Condition{Field: c.Field, Op: op, Value: items[start:end]})
	}
	return Condition{Group: g}
}

// sliceValues returns the elements of a slice or array value. Byte slices
// are single values.
func sliceValues(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}
