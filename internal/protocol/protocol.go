// Package protocol parses the line protocol spoken by the external hook engines and
// formats the commands sent back to them.
package protocol

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// Variant identifies which engine, and therefore which line dialect, a session uses.
type Variant string

const (
	// VariantA is the engine emitting `[id:f2:f3:f4:f5:label:f7] text` lines over UTF-16LE.
	VariantA Variant = "a"
	// VariantB is the engine emitting `[#id|context] text` lines over UTF-8.
	VariantB Variant = "b"
)

// ErrUnknownVariant is returned for an engine variant this package cannot speak.
var ErrUnknownVariant = errors.New("unknown engine variant")

// ErrInvalidHookCode is returned when a manual hook expression fails validation.
var ErrInvalidHookCode = errors.New("invalid hook code")

// ParseVariant converts a user supplied name ("a", "B", ...) into a Variant.
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(s))); v {
	case VariantA, VariantB:
		return v, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, s)
	}
}

// Encoding returns the text encoding used on the engine's stdin and stdout.
func (v Variant) Encoding() encoding.Encoding {
	if v == VariantA {
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	}
	return encoding.Nop
}

// AttachCommand asks the engine to inject into pid.
func AttachCommand(pid int) string {
	return fmt.Sprintf("attach -P%d\n", pid)
}

// DetachCommand asks the engine to release pid.
func DetachCommand(pid int) string {
	return fmt.Sprintf("detach -P%d\n", pid)
}

// SelectCommand tells the engine which hook the user is following.
func SelectCommand(hookID string) string {
	return fmt.Sprintf("select %s\n", hookID)
}

// ManualHookCommand installs a user supplied hook expression in pid.
// The expression is validated first.
func ManualHookCommand(code string, pid int) (string, error) {
	code = strings.TrimSpace(code)
	if !ValidHookCode(code) {
		return "", fmt.Errorf("%w: %q", ErrInvalidHookCode, code)
	}
	return fmt.Sprintf("%s -P%d\n", code, pid), nil
}

// ValidHookCode reports whether code looks like a hook (H) or read (R) code.
// Only the prefix and the address marker are checked; the engine rejects anything else.
func ValidHookCode(code string) bool {
	if code == "" {
		return false
	}
	switch code[0] {
	case 'H', 'h', 'R', 'r':
	default:
		return false
	}
	return strings.Contains(code, "@")
}
