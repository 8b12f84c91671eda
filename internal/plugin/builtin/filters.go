package builtin

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ayusman/sugoi/internal/plugin"
)

// RemoveEmpty drops whitespace-only text.
type RemoveEmpty struct {
	plugin.Base
}

func (*RemoveEmpty) Info() plugin.Info {
	return plugin.Info{
		Name:        "Remove Empty Lines",
		Description: "Filters out empty or whitespace-only text",
		Version:     "1.0",
		Author:      author,
	}
}

func (*RemoveEmpty) Process(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", plugin.ErrDrop
	}
	return text, nil
}

var (
	specialOnly = regexp.MustCompile("^[\\s\\-_=+*#@!?~`\\[\\]{}()|\\\\/<>.,;:'\"^&%$？！…・]+$")
	decorative  = regexp.MustCompile(`^[-_=~*#.]{3,}$`)
)

// RemoveSpecialChars drops text made only of symbols, a single character repeated five
// or more times, or a decorative rule line.
type RemoveSpecialChars struct {
	plugin.Base
}

func (*RemoveSpecialChars) Info() plugin.Info {
	return plugin.Info{
		Name:        "Remove Special Characters",
		Description: "Filters out text consisting only of symbols or repeated characters",
		Version:     "1.0",
		Author:      author,
	}
}

func (*RemoveSpecialChars) Process(text string) (string, error) {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return text, nil
	}
	if specialOnly.MatchString(clean) || singleRuneRun(clean, 5) || decorative.MatchString(clean) {
		return "", plugin.ErrDrop
	}
	return text, nil
}

// singleRuneRun reports whether s is one rune repeated at least min times.
func singleRuneRun(s string, min int) bool {
	if utf8.RuneCountInString(s) < min {
		return false
	}
	first, _ := utf8.DecodeRuneInString(s)
	for _, r := range s {
		if r != first {
			return false
		}
	}
	return true
}

// DefaultMinLength is the default threshold of MinLength.
const DefaultMinLength = 3

// MinLength drops text with fewer than min_length non-whitespace characters.
// Empty text passes through.
type MinLength struct {
	plugin.Base
	minLength int
}

// NewMinLength creates a MinLength with the default threshold.
func NewMinLength() *MinLength {
	return &MinLength{minLength: DefaultMinLength}
}

func (*MinLength) Info() plugin.Info {
	return plugin.Info{
		Name:        "Minimum Length Filter",
		Description: "Filters out text shorter than the specified minimum length",
		Version:     "1.0",
		Author:      author,
	}
}

func (p *MinLength) Process(text string) (string, error) {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return text, nil
	}
	if utf8.RuneCountInString(stripAllSpace(clean)) < p.minLength {
		return "", plugin.ErrDrop
	}
	return text, nil
}

func (p *MinLength) Settings() []plugin.Setting {
	return []plugin.Setting{{
		Name:        "min_length",
		Value:       p.minLength,
		Type:        plugin.SettingInt,
		Description: "Minimum number of characters (excluding whitespace) required",
		Min:         plugin.Bound(1),
	}}
}

func (p *MinLength) SetSetting(name string, value any) error {
	if name != "min_length" {
		return p.Base.SetSetting(name, value)
	}
	n, err := plugin.IntValue(value)
	if err != nil {
		return err
	}
	if n < 1 {
		return fmt.Errorf("%w: min_length must be >= 1", plugin.ErrInvalidSetting)
	}
	p.minLength = n
	return nil
}
