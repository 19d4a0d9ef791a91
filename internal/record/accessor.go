package record

import (
	"errors"
	"fmt"
	"sort"
)

// ErrMissing is returned by strict accessors when a key is absent.
var ErrMissing = errors.New("key not present")

// TypeError reports a value that does not have the shape an accessor expects.
type TypeError struct {
	Key  string
	Want string
	Got  any
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s: want %s, got %T", e.Key, e.Want, e.Got)
}

// Defaults is the single table of fallback values for semantic fields.
// Accessors never invent defaults of their own; callers look them up here.
var Defaults = map[string]any{
	KeySpecies:    []any{},
	KeyBasis:      []any{[]any{0.0, 0.0, 0.0}},
	KeySpaceGroup: 1.0,
	KeyAlpha:      90.0,
	KeyBeta:       90.0,
	KeyGamma:      90.0,
	KeyPropertyID: "",
	KeyLengthUnit: "m",
}

// View is a read cursor over one Record.
// It remembers which keys were consumed so the remainder can be passed through.
type View struct {
	rec      Record
	consumed map[string]bool
}

// NewView wraps rec. The record itself is never mutated.
func NewView(rec Record) *View {
	return &View{rec: rec, consumed: make(map[string]bool)}
}

// Record returns the wrapped record.
func (v *View) Record() Record { return v.rec }

// Has reports whether key is present with a non-null value.
func (v *View) Has(key string) bool {
	val, ok := v.rec[key]
	return ok && val != nil
}

// Consume marks key as mapped into the typed model.
func (v *View) Consume(key string) {
	if _, ok := v.rec[key]; ok {
		v.consumed[key] = true
	}
}

// Release returns keys to the unconsumed set.
func (v *View) Release(keys ...string) {
	for _, k := range keys {
		delete(v.consumed, k)
	}
}

// Consumed reports whether key has been consumed.
func (v *View) Consumed(key string) bool { return v.consumed[key] }

// Remaining returns the unconsumed keys in sorted order.
func (v *View) Remaining() []string {
	keys := make([]string, 0, len(v.rec)-len(v.consumed))
	for k := range v.rec {
		if !v.consumed[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// lookup returns the raw value, falling back to the Defaults table.
// present reports whether the record itself carried the key.
func (v *View) lookup(key string) (val any, present bool) {
	if raw, ok := v.rec[key]; ok && raw != nil {
		return raw, true
	}
	return Defaults[key], false
}

// Peek returns the raw value for key (or its default) without consuming it.
func (v *View) Peek(key string) any {
	val, _ := v.lookup(key)
	return val
}

// Value returns the raw value for key (or its default) and consumes it.
func (v *View) Value(key string) (any, bool) {
	val, present := v.lookup(key)
	if present {
		v.Consume(key)
	}
	return val, present
}

// String returns key as a string, or def when absent or mistyped.
func (v *View) String(key, def string) string {
	val, present := v.lookup(key)
	s, ok := val.(string)
	if !ok {
		return def
	}
	if present {
		v.Consume(key)
	}
	return s
}

// Float returns key as a float64. Absent keys fall back to Defaults; a key
// with neither a value nor a default yields ErrMissing.
func (v *View) Float(key string) (float64, error) {
	val, present := v.lookup(key)
	if val == nil {
		return 0, fmt.Errorf("%s: %w", key, ErrMissing)
	}
	f, ok := toFloat(val)
	if !ok {
		return 0, &TypeError{Key: key, Want: "number", Got: val}
	}
	if present {
		v.Consume(key)
	}
	return f, nil
}

// Floats returns key as a list of numbers. A scalar is promoted to a singleton.
// Absent keys yield ErrMissing unless Defaults has an entry.
func (v *View) Floats(key string) ([]float64, error) {
	val, present := v.lookup(key)
	if val == nil {
		return nil, fmt.Errorf("%s: %w", key, ErrMissing)
	}
	out, err := floatList(key, val)
	if err != nil {
		return nil, err
	}
	if present {
		v.Consume(key)
	}
	return out, nil
}

// Matrix returns key as a list of numeric rows.
func (v *View) Matrix(key string) ([][]float64, error) {
	val, present := v.lookup(key)
	if val == nil {
		return nil, fmt.Errorf("%s: %w", key, ErrMissing)
	}
	rows, ok := val.([]any)
	if !ok {
		return nil, &TypeError{Key: key, Want: "list of lists", Got: val}
	}
	out := make([][]float64, len(rows))
	for i, row := range rows {
		if _, isList := row.([]any); !isList {
			return nil, &TypeError{Key: key, Want: "list of lists", Got: row}
		}
		r, err := floatList(fmt.Sprintf("%s[%d]", key, i), row)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	if present {
		v.Consume(key)
	}
	return out, nil
}

// Strings returns key as a list of strings. A single string is promoted to a singleton.
func (v *View) Strings(key string) ([]string, error) {
	val, present := v.lookup(key)
	if val == nil {
		return nil, fmt.Errorf("%s: %w", key, ErrMissing)
	}
	var out []string
	switch t := val.(type) {
	case string:
		out = []string{t}
	case []any:
		out = make([]string, len(t))
		for i, elem := range t {
			s, ok := elem.(string)
			if !ok {
				return nil, &TypeError{Key: key, Want: "list of strings", Got: elem}
			}
			out[i] = s
		}
	default:
		return nil, &TypeError{Key: key, Want: "list of strings", Got: val}
	}
	if present {
		v.Consume(key)
	}
	return out, nil
}

func floatList(key string, val any) ([]float64, error) {
	if f, ok := toFloat(val); ok {
		return []float64{f}, nil
	}
	list, ok := val.([]any)
	if !ok {
		return nil, &TypeError{Key: key, Want: "number or list of numbers", Got: val}
	}
	out := make([]float64, len(list))
	for i, elem := range list {
		f, ok := toFloat(elem)
		if !ok {
			return nil, &TypeError{Key: key, Want: "list of numbers", Got: elem}
		}
		out[i] = f
	}
	return out, nil
}

func toFloat(val any) (float64, bool) {
	switch n := val.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Rank returns the nesting depth of a JSON list value (0 for scalars).
// The first element of each level decides the depth.
func Rank(val any) int {
	depth := 0
	for {
		list, ok := val.([]any)
		if !ok {
			return depth
		}
		depth++
		if len(list) == 0 {
			return depth
		}
		val = list[0]
	}
}
