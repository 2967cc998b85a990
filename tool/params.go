package tool

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound indicates the named tool is not registered.
var ErrNotFound = errors.New("tool not found")

// Params wraps tool parameters with typed accessor methods.
// Eliminates repetitive type assertions and improves error messages.
type Params map[string]interface{}

// String gets a required string parameter.
func (p Params) String(key string) (string, error) {
	v, ok := p[key]
	if !ok {
		return "", fmt.Errorf("%s is required", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %T", key, v)
	}
	return s, nil
}

// StringOr gets an optional string parameter with a default.
func (p Params) StringOr(key, defaultVal string) string {
	v, ok := p[key]
	if !ok {
		return defaultVal
	}
	s, ok := v.(string)
	if !ok {
		return defaultVal
	}
	return s
}

// Int gets a required integer parameter.
// Handles both int and float64 (JSON numbers decode as float64).
func (p Params) Int(key string) (int, error) {
	v, ok := p[key]
	if !ok {
		return 0, fmt.Errorf("%s is required", key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	default:
		return 0, fmt.Errorf("%s must be a number, got %T", key, v)
	}
}

// IntOr gets an optional integer parameter with a default.
func (p Params) IntOr(key string, defaultVal int) int {
	v, ok := p[key]
	if !ok {
		return defaultVal
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	default:
		return defaultVal
	}
}

// Float gets a required float64 parameter.
func (p Params) Float(key string) (float64, error) {
	v, ok := p[key]
	if !ok {
		return 0, fmt.Errorf("%s is required", key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	default:
		return 0, fmt.Errorf("%s must be a number, got %T", key, v)
	}
}

// Bool gets a required boolean parameter.
func (p Params) Bool(key string) (bool, error) {
	v, ok := p[key]
	if !ok {
		return false, fmt.Errorf("%s is required", key)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s must be a boolean, got %T", key, v)
	}
	return b, nil
}

// Has returns true if the key exists in the parameters.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Raw returns the raw value for a key, or nil if not present.
func (p Params) Raw(key string) interface{} {
	return p[key]
}
