package plugin

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SettingType is the kind of value a setting holds.
type SettingType string

const (
	SettingBool      SettingType = "bool"
	SettingInt       SettingType = "int"
	SettingString    SettingType = "string"
	SettingChoice    SettingType = "choice"
	SettingIntSlider SettingType = "int_slider"
	SettingColor     SettingType = "color"
)

// Setting is one entry of a plugin's declarative settings surface.
type Setting struct {
	Name        string      `json:"name"`
	Value       any         `json:"value"`
	Type        SettingType `json:"type"`
	Description string      `json:"description"`
	Options     []string    `json:"options,omitempty"`
	Min         *int        `json:"min,omitempty"`
	Max         *int        `json:"max,omitempty"`
}

// Bound returns a pointer to n, for Setting.Min and Setting.Max.
func Bound(n int) *int {
	return &n
}

// Setting values arrive from JSON, YAML and the CLI, so numbers may be float64,
// json.Number or strings. The helpers below normalize them.

// IntValue converts v to an int.
func IntValue(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%w: %v is not an integer", ErrInvalidSetting, v)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidSetting, err)
		}
		return int(i), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidSetting, n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("%w: %T is not an integer", ErrInvalidSetting, v)
	}
}

// BoolValue converts v to a bool.
func BoolValue(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, fmt.Errorf("%w: %q is not a bool", ErrInvalidSetting, b)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("%w: %T is not a bool", ErrInvalidSetting, v)
	}
}

// StringValue converts v to a string. Only strings are accepted.
func StringValue(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %T is not a string", ErrInvalidSetting, v)
	}
	return s, nil
}

// CheckRange validates n against a setting's bounds.
func (s Setting) CheckRange(n int) error {
	if s.Min != nil && n < *s.Min {
		return fmt.Errorf("%w: %s must be >= %d", ErrInvalidSetting, s.Name, *s.Min)
	}
	if s.Max != nil && n > *s.Max {
		return fmt.Errorf("%w: %s must be <= %d", ErrInvalidSetting, s.Name, *s.Max)
	}
	return nil
}
