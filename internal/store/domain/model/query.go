package model

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// HighValueSentinel closes a prefix range: [term, term+HighValueSentinel)
const HighValueSentinel = "\uf8ff"

// Operator is a filter comparison
type Operator string

const (
	OperatorEqual              Operator = "=="
	OperatorLessThan           Operator = "<"
	OperatorLessThanOrEqual    Operator = "<="
	OperatorGreaterThan        Operator = ">"
	OperatorGreaterThanOrEqual Operator = ">="
	OperatorArrayContains      Operator = "array-contains"
)

// Direction of an order clause
type Direction string

const (
	DirectionAscending  Direction = "asc"
	DirectionDescending Direction = "desc"
)

// Filter is a single-field predicate
type Filter struct {
	Field    string      `json:"field"`
	Operator Operator    `json:"op"`
	Value    interface{} `json:"value"`
}

// Order is an ordering clause. Documents missing the field are excluded.
type Order struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// Query selects documents from one collection. Results are ordered by Orders,
// then by document id ascending.
type Query struct {
	Collection string   `json:"collection"`
	Filters    []Filter `json:"filters,omitempty"`
	Orders     []Order  `json:"orders,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

// NewQuery starts a query over a collection path
func NewQuery(collection string) Query {
	return Query{Collection: collection}
}

// Where appends a filter
func (q Query) Where(field string, op Operator, value interface{}) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Operator: op, Value: value})
	return q
}

// OrderBy appends an order clause
func (q Query) OrderBy(field string, dir Direction) Query {
	q.Orders = append(append([]Order(nil), q.Orders...), Order{Field: field, Direction: dir})
	return q
}

// WithLimit caps the number of results; zero means unlimited
func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// StartsWith restricts field to the half-open prefix range of term
func (q Query) StartsWith(field, term string) Query {
	return q.Where(field, OperatorGreaterThanOrEqual, term).
		Where(field, OperatorLessThan, term+HighValueSentinel)
}

// Validate rejects unknown operators and directions
func (q Query) Validate() error {
	if q.Collection == "" {
		return fmt.Errorf("query collection is empty")
	}
	for _, f := range q.Filters {
		switch f.Operator {
		case OperatorEqual, OperatorLessThan, OperatorLessThanOrEqual,
			OperatorGreaterThan, OperatorGreaterThanOrEqual, OperatorArrayContains:
		default:
			return fmt.Errorf("unsupported operator %q on field %s", f.Operator, f.Field)
		}
	}
	for _, o := range q.Orders {
		if o.Direction != DirectionAscending && o.Direction != DirectionDescending {
			return fmt.Errorf("unsupported direction %q on field %s", o.Direction, o.Field)
		}
	}
	if q.Limit < 0 {
		return fmt.Errorf("negative limit")
	}
	return nil
}

// Matches reports whether the document satisfies every filter and carries
// every order field.
func (q Query) Matches(doc *Document) bool {
	if doc == nil {
		return false
	}
	for _, o := range q.Orders {
		if _, ok := doc.Data[o.Field]; !ok {
			return false
		}
	}
	for _, f := range q.Filters {
		if !matchFilter(doc.Data[f.Field], f) {
			return false
		}
	}
	return true
}

// Apply filters, sorts and limits docs. The input slice is not modified.
func (q Query) Apply(docs []*Document) []*Document {
	out := make([]*Document, 0, len(docs))
	for _, d := range docs {
		if q.Matches(d) {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return q.less(out[i], out[j])
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func (q Query) less(a, b *Document) bool {
	for _, o := range q.Orders {
		c, ok := CompareValues(a.Data[o.Field], b.Data[o.Field])
		if !ok || c == 0 {
			continue
		}
		if o.Direction == DirectionDescending {
			return c > 0
		}
		return c < 0
	}
	return a.ID < b.ID
}

func matchFilter(value interface{}, f Filter) bool {
	if f.Operator == OperatorArrayContains {
		list, ok := asList(value)
		if !ok {
			return false
		}
		for _, e := range list {
			if c, ok := CompareValues(e, f.Value); ok && c == 0 {
				return true
			}
		}
		return false
	}

	c, ok := CompareValues(value, f.Value)
	if !ok {
		return false
	}
	switch f.Operator {
	case OperatorEqual:
		return c == 0
	case OperatorLessThan:
		return c < 0
	case OperatorLessThanOrEqual:
		return c <= 0
	case OperatorGreaterThan:
		return c > 0
	case OperatorGreaterThanOrEqual:
		return c >= 0
	}
	return false
}

func asList(v interface{}) ([]interface{}, bool) {
	switch l := v.(type) {
	case []interface{}:
		return l, true
	case []string:
		out := make([]interface{}, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

// CompareValues orders two field values of the same kind (string, number,
// time, bool). ok is false when the kinds are not comparable.
func CompareValues(a, b interface{}) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		switch {
		case av.Before(bv):
			return -1, true
		case av.After(bv):
			return 1, true
		}
		return 0, true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	if reflect.DeepEqual(a, b) {
		return 0, true
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
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
	}
	return 0, false
}
