package builtin

import (
	"strings"

	"github.com/ayusman/sugoi/internal/plugin"
)

// DefaultDuplicateMinLength is the normalized length below which texts are not tracked.
const DefaultDuplicateMinLength = 10

// maxPatternLen bounds the inline repetition search.
const maxPatternLen = 200

// RemoveDuplicates collapses text repeated within one line, then drops text already seen.
// Seen texts are compared with all whitespace removed; a text that contains, or is
// contained in, a seen text counts as seen, which catches overlapping chunks.
type RemoveDuplicates struct {
	plugin.Base
	minLength int
	seen      map[string]struct{}
}

// NewRemoveDuplicates creates a RemoveDuplicates with an empty memory.
func NewRemoveDuplicates() *RemoveDuplicates {
	return &RemoveDuplicates{
		minLength: DefaultDuplicateMinLength,
		seen:      make(map[string]struct{}),
	}
}

func (*RemoveDuplicates) Info() plugin.Info {
	return plugin.Info{
		Name:        "Remove Duplicates",
		Description: "Filters out text that has already been displayed",
		Version:     "1.0",
		Author:      author,
	}
}

func (p *RemoveDuplicates) Process(text string) (string, error) {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return text, nil
	}

	clean = collapseInline(clean)
	normalized := stripAllSpace(clean)

	if len([]rune(normalized)) < p.minLength {
		return withNewline(text, clean), nil
	}

	if _, ok := p.seen[normalized]; ok {
		return "", plugin.ErrDrop
	}
	for seen := range p.seen {
		if strings.Contains(seen, normalized) || strings.Contains(normalized, seen) {
			return "", plugin.ErrDrop
		}
	}
	p.seen[normalized] = struct{}{}

	return withNewline(text, clean), nil
}

// collapseInline returns the first copy of text that is repeated back to back,
// e.g. "Hello world Hello world" -> "Hello world".
func collapseInline(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) < 4 {
		return string(runes)
	}

	half := len(runes) / 2
	if half >= 3 {
		first := string(runes[:half])
		second := string(runes[half : half*2])
		if strings.Join(strings.Fields(first), " ") == strings.Join(strings.Fields(second), " ") {
			return strings.TrimSpace(first)
		}
	}

	limit := len(runes)/2 + 1
	if limit > maxPatternLen {
		limit = maxPatternLen
	}
	for n := 3; n < limit; n++ {
		pattern := string(runes[:n])
		patternNorm := stripAllSpace(pattern)
		if len([]rune(patternNorm)) < 3 {
			continue
		}
		rest := stripAllSpace(string(runes[n:]))
		if strings.HasPrefix(rest, patternNorm) {
			return strings.TrimSpace(pattern)
		}
	}
	return string(runes)
}

func (p *RemoveDuplicates) Reset() {
	p.seen = make(map[string]struct{})
}

func (p *RemoveDuplicates) Settings() []plugin.Setting {
	return []plugin.Setting{{
		Name:        "min_length",
		Value:       p.minLength,
		Type:        plugin.SettingInt,
		Description: "Minimum text length for duplicate checking (shorter texts are ignored)",
		Min:         plugin.Bound(0),
	}}
}

func (p *RemoveDuplicates) SetSetting(name string, value any) error {
	if name != "min_length" {
		return p.Base.SetSetting(name, value)
	}
	n, err := plugin.IntValue(value)
	if err != nil {
		return err
	}
	if err := p.Settings()[0].CheckRange(n); err != nil {
		return err
	}
	p.minLength = n
	return nil
}
