// Package builtin contains the plugins bundled with sugoi.
package builtin

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ayusman/sugoi/internal/plugin"
)

const author = "Sugoi"

// Identities of the bundled plugins, in default order.
const (
	RemoveEmptyID        = "remove-empty"
	RemoveSpecialCharsID = "remove-special-chars"
	MinLengthID          = "min-length"
	RemoveDuplicatesID   = "remove-duplicates"
	FixRepeatedCharsID   = "fix-repeated-chars"
	HookConcatenationID  = "hook-concatenation"
	TranslationProxyID   = "translation-proxy"
)

// New returns fresh instances of every bundled plugin keyed by identity.
func New() map[string]plugin.Plugin {
	return map[string]plugin.Plugin{
		RemoveEmptyID:        &RemoveEmpty{},
		RemoveSpecialCharsID: &RemoveSpecialChars{},
		MinLengthID:          NewMinLength(),
		RemoveDuplicatesID:   NewRemoveDuplicates(),
		FixRepeatedCharsID:   NewFixRepeatedChars(),
		HookConcatenationID:  NewHookConcatenation(),
		TranslationProxyID:   NewTranslationProxy(),
	}
}

// Identities lists the bundled identities in default order.
func Identities() []string {
	return []string{
		RemoveEmptyID,
		RemoveSpecialCharsID,
		MinLengthID,
		RemoveDuplicatesID,
		FixRepeatedCharsID,
		HookConcatenationID,
		TranslationProxyID,
	}
}

// Register adds every bundled plugin to reg, disabled, in default order.
func Register(reg *plugin.Registry) error {
	plugins := New()
	for _, id := range Identities() {
		if err := reg.Register(id, plugins[id]); err != nil {
			return fmt.Errorf("register %s: %w", id, err)
		}
	}
	return nil
}

// stripAllSpace removes every whitespace rune.
func stripAllSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// withNewline re-appends the trailing newline of original to s.
func withNewline(original, s string) string {
	if strings.HasSuffix(original, "\n") {
		return s + "\n"
	}
	return s
}
