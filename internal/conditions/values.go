// file: internal/conditions/values.go

package conditions

import (
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"
)

// valueKind mirrors the dynamic type classes operators dispatch on.
type valueKind int

const (
	kindUndefined valueKind = iota
	kindBoolean
	kindNumber
	kindString
	kindObject // nil, sequences and maps
)

func (k valueKind) String() string {
	switch k {
	case kindUndefined:
		return "undefined"
	case kindBoolean:
		return "boolean"
	case kindNumber:
		return "number"
	case kindString:
		return "string"
	default:
		return "object"
	}
}

func kindOf(v any, undefined bool) valueKind {
	if undefined {
		return kindUndefined
	}
	switch v.(type) {
	case bool:
		return kindBoolean
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return kindNumber
	case string:
		return kindString
	default:
		return kindObject
	}
}

// NormalizeValue returns a deep copy of v with numbers widened to float64,
// sequences as []any and maps keyed by string, the shapes JSON decoding yields.
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case int:
		return float64(val)
	case int8:
		return float64(val)
	case int16:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint:
		return float64(val)
	case uint8:
		return float64(val)
	case uint16:
		return float64(val)
	case uint32:
		return float64(val)
	case uint64:
		return float64(val)
	case float32:
		return float64(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = NormalizeValue(item)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out
	case [][]any:
		out := make([]any, len(val))
		for i, row := range val {
			out[i] = NormalizeValue(row)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = NormalizeValue(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprintf("%v", k)] = NormalizeValue(item)
		}
		return out
	default:
		return v
	}
}

// NormalizeValues normalizes every entry of a property value map.
func NormalizeValues(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = NormalizeValue(v)
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}

// isEmptyValue is the required-field emptiness test: absent, null,
// empty string or empty sequence.
func isEmptyValue(v any, undefined bool) bool {
	if undefined || v == nil {
		return true
	}
	switch val := v.(type) {
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	return false
}

// deepEqual compares normalized values structurally; sequences are order-sensitive.
func deepEqual(a, b any) bool {
	return cmp.Equal(NormalizeValue(a), NormalizeValue(b))
}

// valuesEqual applies the scalar rules: strings are trimmed, numbers compare
// numerically, everything else structurally. Mixed kinds never match.
func valuesEqual(a, b any) bool {
	ka, kb := kindOf(a, false), kindOf(b, false)
	if ka != kb {
		return false
	}
	switch ka {
	case kindString:
		return strings.TrimSpace(a.(string)) == strings.TrimSpace(b.(string))
	case kindNumber:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		return fa == fb
	case kindBoolean:
		return a.(bool) == b.(bool)
	default:
		return deepEqual(a, b)
	}
}

// flattenContains searches a sequence, descending into nested sequences.
func flattenContains(list []any, target any) bool {
	for _, item := range list {
		if nested, ok := item.([]any); ok {
			if flattenContains(nested, target) {
				return true
			}
			continue
		}
		if valuesEqual(item, target) {
			return true
		}
	}
	return false
}

// tableRows returns the rows of a table-shaped value.
func tableRows(v any) ([]any, bool) {
	rows, ok := v.([]any)
	return rows, ok
}

func cellValue(v any, row, col int) (any, bool) {
	rows, ok := tableRows(v)
	if !ok || row < 0 || row >= len(rows) {
		return nil, false
	}
	cols, ok := rows[row].([]any)
	if !ok || col < 0 || col >= len(cols) {
		return nil, false
	}
	return cols[col], true
}

func columnValues(v any, col int) []any {
	rows, _ := tableRows(v)
	out := make([]any, 0, len(rows))
	for _, r := range rows {
		cols, ok := r.([]any)
		if !ok || col >= len(cols) {
			out = append(out, nil)
			continue
		}
		out = append(out, cols[col])
	}
	return out
}
