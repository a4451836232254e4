package resolve

import (
	"fmt"
	"reflect"
)

// Document is a keyed record as delivered by the transport layer, such
// as a decoded JSON object: a shared plan, a plan item, a permission
// entry, or a note.
type Document = map[string]any

// Meta names the bookkeeping keys inside a Document. The same merge
// algorithm serves plans, items, and future record types by configuring
// the key names instead of reflecting over concrete struct shapes.
type Meta struct {
	// IdentityField keys merge-by-identity for records inside arrays.
	IdentityField string
	// TimestampField holds a record's last-modification time, used to
	// break last-writer-wins ties.
	TimestampField string
}

// DefaultMeta returns the conventional key names.
func DefaultMeta() Meta {
	return Meta{IdentityField: "_id", TimestampField: "_timestamp"}
}

func (m Meta) withDefaults() Meta {
	d := DefaultMeta()
	if m.IdentityField == "" {
		m.IdentityField = d.IdentityField
	}
	if m.TimestampField == "" {
		m.TimestampField = d.TimestampField
	}
	return m
}

// identityOf returns a record and its identity rendered as a map key.
// Only keyed maps carrying a non-empty identity value qualify.
func (m Meta) identityOf(v any) (Document, string, bool) {
	doc, ok := v.(map[string]any)
	if !ok {
		return nil, "", false
	}
	id, ok := doc[m.IdentityField]
	if !ok || id == nil {
		return nil, "", false
	}
	if s, isStr := id.(string); isStr {
		if s == "" {
			return nil, "", false
		}
		return doc, s, true
	}
	return doc, fmt.Sprint(id), true
}

// timestampOf returns the record's own timestamp, or fallback when the
// record does not carry a numeric one.
func (m Meta) timestampOf(v any, fallback int64) int64 {
	doc, ok := v.(map[string]any)
	if !ok {
		return fallback
	}
	raw, ok := doc[m.TimestampField]
	if !ok {
		return fallback
	}
	f, ok := toFloat(raw)
	if !ok {
		return fallback
	}
	return int64(f)
}

// deepEqual is structural equality for decoded JSON values.
func deepEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// truthy coerces a field value to a boolean. false, numeric zero, the
// empty string, and nil are false; any other value is true.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	default:
		if f, ok := toFloat(v); ok {
			return f != 0
		}
		return true
	}
}

// toFloat coerces numeric field values, covering the types produced by
// JSON decoding and by Go literals.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return 0, false
}

// copyDoc returns a shallow copy. Nested values are shared; merge paths
// treat documents as immutable and never write through them.
func copyDoc(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// asArray coerces a field value to a record sequence. Non-array values
// degrade to an empty sequence.
func asArray(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case []map[string]any:
		out := make([]any, len(x))
		for i, d := range x {
			out[i] = d
		}
		return out
	}
	return nil
}

func containsEqual(seq []any, v any) bool {
	for _, x := range seq {
		if deepEqual(x, v) {
			return true
		}
	}
	return false
}
