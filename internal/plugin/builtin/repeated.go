package builtin

import (
	"fmt"
	"strings"

	"github.com/ayusman/sugoi/internal/plugin"
)

// FixRepeatedChars undoes hookers that emit every character n times:
// "HHeelllloo" -> "Hello". Text is only changed when the whole string follows the pattern.
type FixRepeatedChars struct {
	plugin.Base
	minFactor int
	maxFactor int
}

// NewFixRepeatedChars creates a FixRepeatedChars trying factors 2 through 4.
func NewFixRepeatedChars() *FixRepeatedChars {
	return &FixRepeatedChars{minFactor: 2, maxFactor: 4}
}

func (*FixRepeatedChars) Info() plugin.Info {
	return plugin.Info{
		Name:        "Repeated Character Fixer",
		Description: "Fixes text where every character is repeated multiple times (e.g. 'aaabbb' -> 'ab')",
		Version:     "1.1",
		Author:      author,
	}
}

func (p *FixRepeatedChars) Process(text string) (string, error) {
	runes := []rune(text)
	if len(runes) < 2 {
		return text, nil
	}
	if base, ok := p.collapse(runes); ok {
		return base, nil
	}
	// The pipeline input usually carries a trailing newline that breaks the pattern.
	if strings.HasSuffix(text, "\n") && len(runes) >= 3 {
		if base, ok := p.collapse(runes[:len(runes)-1]); ok {
			return base + "\n", nil
		}
	}
	return text, nil
}

func (p *FixRepeatedChars) collapse(s []rune) (string, bool) {
	for n := p.minFactor; n <= p.maxFactor; n++ {
		if n < 2 || len(s)%n != 0 {
			continue
		}
		base := make([]rune, 0, len(s)/n)
		consistent := true
		for i := 0; i < len(s) && consistent; i += n {
			for j := 1; j < n; j++ {
				if s[i+j] != s[i] {
					consistent = false
					break
				}
			}
			base = append(base, s[i])
		}
		if consistent {
			return string(base), true
		}
	}
	return "", false
}

func (p *FixRepeatedChars) Settings() []plugin.Setting {
	return []plugin.Setting{
		{
			Name:        "min_factor",
			Value:       p.minFactor,
			Type:        plugin.SettingIntSlider,
			Description: "Smallest repetition factor to try",
			Min:         plugin.Bound(2),
			Max:         plugin.Bound(10),
		},
		{
			Name:        "max_factor",
			Value:       p.maxFactor,
			Type:        plugin.SettingIntSlider,
			Description: "Largest repetition factor to try",
			Min:         plugin.Bound(2),
			Max:         plugin.Bound(10),
		},
	}
}

func (p *FixRepeatedChars) SetSetting(name string, value any) error {
	var target *int
	var setting plugin.Setting
	switch name {
	case "min_factor":
		target, setting = &p.minFactor, p.Settings()[0]
	case "max_factor":
		target, setting = &p.maxFactor, p.Settings()[1]
	default:
		return p.Base.SetSetting(name, value)
	}

	n, err := plugin.IntValue(value)
	if err != nil {
		return err
	}
	if err := setting.CheckRange(n); err != nil {
		return err
	}
	lo, hi := p.minFactor, p.maxFactor
	if name == "min_factor" {
		lo = n
	} else {
		hi = n
	}
	if lo > hi {
		return fmt.Errorf("%w: min_factor %d exceeds max_factor %d", plugin.ErrInvalidSetting, lo, hi)
	}
	*target = n
	return nil
}
