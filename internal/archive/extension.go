package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// ErrNullValue is returned when an extension value is JSON null.
var ErrNullValue = errors.New("null value")

// ExtensionError reports an extension attribute that cannot be stored.
type ExtensionError struct {
	Name   string
	Reason string
	Err    error
}

func (e *ExtensionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extension %q: %s: %v", e.Name, e.Reason, e.Err)
	}
	return fmt.Sprintf("extension %q: %s", e.Name, e.Reason)
}

func (e *ExtensionError) Unwrap() error { return e.Err }

var extensionName = regexp.MustCompile(`^[A-Za-z_]\w*$`)

// reservedRunKeys are the modeled run fields an extension may not shadow.
var reservedRunKeys = map[string]bool{
	"program":     true,
	"system":      true,
	"calculation": true,
}

// SetExtension stores value under name on the run.
//
// The value is normalized to its decoded-JSON form. Null values, arrays whose
// leaves are not all of one scalar kind, and objects inside arrays are
// rejected. Objects are accepted when every member is itself acceptable.
func (r *Run) SetExtension(name string, value any) error {
	if !extensionName.MatchString(name) {
		return &ExtensionError{Name: name, Reason: "invalid attribute name"}
	}
	if reservedRunKeys[name] {
		return &ExtensionError{Name: name, Reason: "shadows a run field"}
	}
	v, err := Native(value)
	if err != nil {
		return &ExtensionError{Name: name, Reason: "not JSON-encodable", Err: err}
	}
	if err := checkExtension(v); err != nil {
		return &ExtensionError{Name: name, Reason: "unsupported value", Err: err}
	}
	if r.Extensions == nil {
		r.Extensions = make(map[string]any)
	}
	r.Extensions[name] = v
	return nil
}

// Native round-trips v through encoding/json so that numbers become float64,
// arrays []any and objects map[string]any.
func Native(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CheckValue reports whether v would be accepted by SetExtension.
func CheckValue(v any) error {
	n, err := Native(v)
	if err != nil {
		return err
	}
	return checkExtension(n)
}

func checkExtension(v any) error {
	switch t := v.(type) {
	case nil:
		return ErrNullValue
	case map[string]any:
		for k, member := range t {
			if err := checkExtension(member); err != nil {
				return fmt.Errorf("member %q: %w", k, err)
			}
		}
		return nil
	case []any:
		_, err := leafKind(t)
		return err
	default:
		return nil
	}
}

// leafKind returns the single scalar kind shared by every leaf of a nested
// array. Empty arrays have kind "".
func leafKind(list []any) (string, error) {
	kind := ""
	for i, elem := range list {
		var k string
		switch t := elem.(type) {
		case nil:
			return "", fmt.Errorf("element %d: %w", i, ErrNullValue)
		case map[string]any:
			return "", fmt.Errorf("element %d: object inside array", i)
		case []any:
			sub, err := leafKind(t)
			if err != nil {
				return "", fmt.Errorf("element %d: %w", i, err)
			}
			k = sub
		case bool:
			k = "bool"
		case float64:
			k = "number"
		case string:
			k = "string"
		default:
			return "", fmt.Errorf("element %d: unsupported type %T", i, elem)
		}
		if k == "" {
			continue
		}
		if kind != "" && kind != k {
			return "", fmt.Errorf("mixed array: %s and %s", kind, k)
		}
		kind = k
	}
	return kind, nil
}
