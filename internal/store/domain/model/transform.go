package model

import (
	"reflect"
	"time"
)

// FieldValue represents special server-side values like ServerTimestamp.
type FieldValue string

const (
	// ServerTimestamp is a sentinel value to set a field to the store's clock.
	ServerTimestamp FieldValue = "ServerTimestamp"
)

// ArrayOp is the kind of atomic set mutation
type ArrayOp string

const (
	ArrayOpUnion  ArrayOp = "union"
	ArrayOpRemove ArrayOp = "remove"
)

// ArrayTransform is an atomic add-to-set or remove-from-set on an array field.
// Stores apply it server side so concurrent writers never overwrite each other.
type ArrayTransform struct {
	Op       ArrayOp
	Elements []interface{}
}

// ArrayUnion adds elements that are not already present
func ArrayUnion(elements ...interface{}) ArrayTransform {
	return ArrayTransform{Op: ArrayOpUnion, Elements: elements}
}

// ArrayRemove removes every occurrence of elements
func ArrayRemove(elements ...interface{}) ArrayTransform {
	return ArrayTransform{Op: ArrayOpRemove, Elements: elements}
}

// ApplyWrite resolves the incoming fields against the current payload.
// base may be nil (document absent or overwrite without merge).
func ApplyWrite(base, incoming map[string]interface{}, now time.Time) map[string]interface{} {
	out := CloneData(base)
	if out == nil {
		out = make(map[string]interface{}, len(incoming))
	}
	for field, value := range incoming {
		switch v := value.(type) {
		case FieldValue:
			if v == ServerTimestamp {
				out[field] = now
			} else {
				out[field] = string(v)
			}
		case ArrayTransform:
			out[field] = applyArray(out[field], v)
		default:
			out[field] = cloneValue(v)
		}
	}
	return out
}

func applyArray(current interface{}, t ArrayTransform) []interface{} {
	existing, _ := cloneValue(current).([]interface{})
	switch t.Op {
	case ArrayOpUnion:
		for _, e := range t.Elements {
			if !containsValue(existing, e) {
				existing = append(existing, e)
			}
		}
	case ArrayOpRemove:
		kept := existing[:0]
		for _, e := range existing {
			if !containsValue(t.Elements, e) {
				kept = append(kept, e)
			}
		}
		existing = kept
	}
	if existing == nil {
		existing = []interface{}{}
	}
	return existing
}

func containsValue(list []interface{}, v interface{}) bool {
	for _, e := range list {
		if reflect.DeepEqual(e, v) {
			return true
		}
	}
	return false
}
