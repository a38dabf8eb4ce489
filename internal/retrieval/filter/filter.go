// Package filter implements the shared filter algebra used at the
// retriever boundary: {field, op, value} triples with dot-notation fields
// and a fixed set of operators (§6.2).
package filter

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"
)

// Op is one of the twelve operators the algebra supports.
type Op string

const (
	Equals      Op = "equals"
	NotEquals   Op = "not_equals"
	Contains    Op = "contains"
	NotContains Op = "not_contains"
	In          Op = "in"
	NotIn       Op = "not_in"
	GT          Op = "gt"
	GTE         Op = "gte"
	LT          Op = "lt"
	LTE         Op = "lte"
	Exists      Op = "exists"
	NotExists   Op = "not_exists"
)

// PushableOps lists the operators every known vector/graph store adapter in
// this module can push down natively (equality and range checks). Anything
// else, including membership and existence checks, is evaluated in-process.
var PushableOps = map[Op]struct{}{
	Equals: {}, NotEquals: {},
	GT: {}, GTE: {}, LT: {}, LTE: {},
}

// Filter is a single {field, op, value} condition. Field uses dot notation
// into the result, e.g. "metadata.user_id".
type Filter struct {
	Field string
	Op    Op
	Value any
}

// PushDown splits filters into the subset a retriever can push down to its
// backing store and the remainder that must be evaluated in-process after
// results come back. A filter is pushable only if its field is one of
// pushableFields (retriever-specific) and its operator is in PushableOps.
func PushDown(filters []Filter, pushableFields map[string]struct{}) (pushed, remainder []Filter) {
	for _, f := range filters {
		_, opOK := PushableOps[f.Op]
		_, fieldOK := pushableFields[f.Field]
		if opOK && fieldOK {
			pushed = append(pushed, f)
		} else {
			remainder = append(remainder, f)
		}
	}
	return pushed, remainder
}

// MatchAll reports whether value satisfies every filter (logical AND).
// value is typically a result.Result; dot-notation fields are resolved via
// reflection over exported struct fields and map keys.
func MatchAll(filters []Filter, value any) bool {
	for _, f := range filters {
		if !Match(f, value) {
			return false
		}
	}
	return true
}

// Match evaluates a single filter against value. Unknown operators are
// logged and evaluate to false, per §6.2.
func Match(f Filter, value any) bool {
	fieldVal, found := resolve(value, f.Field)

	switch f.Op {
	case Exists:
		return found
	case NotExists:
		return !found
	}

	if !found {
		// Every remaining operator requires the field to be present.
		return false
	}

	switch f.Op {
	case Equals:
		return equal(fieldVal, f.Value)
	case NotEquals:
		return !equal(fieldVal, f.Value)
	case Contains:
		return contains(fieldVal, f.Value)
	case NotContains:
		return !contains(fieldVal, f.Value)
	case In:
		return inSlice(fieldVal, f.Value)
	case NotIn:
		return !inSlice(fieldVal, f.Value)
	case GT, GTE, LT, LTE:
		return compare(fieldVal, f.Value, f.Op)
	default:
		slog.Warn("filter: unknown operator, evaluating false", "op", f.Op, "field", f.Field)
		return false
	}
}

// resolve walks dot-notation path p into value, supporting structs (by
// exported field name) and map[string]any (by key).
func resolve(value any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	cur := reflect.ValueOf(value)

	for _, part := range parts {
		for cur.Kind() == reflect.Pointer {
			if cur.IsNil() {
				return nil, false
			}
			cur = cur.Elem()
		}

		switch cur.Kind() {
		case reflect.Struct:
			f := cur.FieldByName(toExportedName(part))
			if !f.IsValid() {
				return nil, false
			}
			cur = f
		case reflect.Map:
			mv := cur.MapIndex(reflect.ValueOf(part))
			if !mv.IsValid() {
				return nil, false
			}
			cur = reflect.ValueOf(mv.Interface())
		default:
			return nil, false
		}
	}

	if !cur.IsValid() {
		return nil, false
	}
	return cur.Interface(), true
}

// toExportedName capitalizes the first rune so "user_id"-free field access
// (e.g. "id", "score") matches exported Go struct field names like "ID",
// "Score". Fields already containing underscores are expected to live in a
// map (e.g. metadata.user_id) rather than as struct fields.
func toExportedName(s string) string {
	if s == "" {
		return s
	}
	if s == "id" {
		return "ID"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func equal(a, b any) bool {
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func contains(a, b any) bool {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Contains(as, bs)
	}
	return false
}

func inSlice(a, list any) bool {
	rv := reflect.ValueOf(list)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if equal(a, rv.Index(i).Interface()) {
			return true
		}
	}
	return false
}

func compare(a, b any, op Op) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return false
	}
	switch op {
	case GT:
		return af > bf
	case GTE:
		return af >= bf
	case LT:
		return af < bf
	case LTE:
		return af <= bf
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
