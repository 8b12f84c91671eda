package builtin

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ayusman/sugoi/internal/plugin"
)

var firehoseLine = regexp.MustCompile(`(?i)^\[Hook #?(\d+)\]\s*(.*)$`)

// HookConcatenation joins the latest text of several hooks into one line, in a chosen
// order. It works on the unselected-hook stream ("[Hook N] text"), so no hook should be
// selected while it is active. A hook that fires again while its text is still buffered
// starts a new cycle.
type HookConcatenation struct {
	plugin.Base
	enabledMode bool
	numHooks    int
	hookIDs     string
	buffers     map[string]string
}

// NewHookConcatenation creates a HookConcatenation with concatenation mode off.
func NewHookConcatenation() *HookConcatenation {
	return &HookConcatenation{
		numHooks: 2,
		buffers:  make(map[string]string),
	}
}

func (*HookConcatenation) Info() plugin.Info {
	return plugin.Info{
		Name:        "Hook Concatenation",
		Description: "Concatenate output from multiple hooks in specified order",
		Version:     "1.0",
		Author:      author,
	}
}

func (p *HookConcatenation) Process(text string) (string, error) {
	if !p.enabledMode {
		return text, nil
	}
	ids := parseHookIDs(p.hookIDs)
	if len(ids) == 0 {
		return text, nil
	}

	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "[Console]") {
		return text, nil
	}
	m := firehoseLine.FindStringSubmatch(trimmed)
	if m == nil {
		return text, nil
	}

	id, hookText := m[1], strings.TrimSpace(m[2])
	if !contains(ids, id) {
		return "", plugin.ErrDrop
	}
	if _, ok := p.buffers[id]; ok {
		p.buffers = make(map[string]string)
	}
	if hookText != "" {
		p.buffers[id] = hookText
	}

	var b strings.Builder
	for _, want := range ids {
		b.WriteString(p.buffers[want])
	}
	if b.Len() == 0 {
		return "", plugin.ErrDrop
	}
	return b.String() + "\n", nil
}

func parseHookIDs(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); isDigits(part) {
			ids = append(ids, part)
		}
	}
	return ids
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (p *HookConcatenation) Reset() {
	p.buffers = make(map[string]string)
}

func (p *HookConcatenation) OnEnable() error {
	p.Reset()
	return nil
}

func (p *HookConcatenation) OnDisable() error {
	p.Reset()
	return nil
}

func (p *HookConcatenation) Settings() []plugin.Setting {
	return []plugin.Setting{
		{
			Name:        "enabled_mode",
			Value:       p.enabledMode,
			Type:        plugin.SettingBool,
			Description: "Enable hook concatenation mode",
		},
		{
			Name:        "num_hooks",
			Value:       p.numHooks,
			Type:        plugin.SettingIntSlider,
			Description: "Number of hooks to concatenate",
			Min:         plugin.Bound(2),
			Max:         plugin.Bound(10),
		},
		{
			Name:        "hook_ids",
			Value:       p.hookIDs,
			Type:        plugin.SettingString,
			Description: "Hook IDs (comma-separated, e.g. 1,3,2). Order determines output order. Leave all hooks unselected.",
		},
	}
}

func (p *HookConcatenation) SetSetting(name string, value any) error {
	switch name {
	case "enabled_mode":
		on, err := plugin.BoolValue(value)
		if err != nil {
			return err
		}
		p.enabledMode = on
		if on {
			p.Reset()
		}
		return nil

	case "num_hooks":
		n, err := plugin.IntValue(value)
		if err != nil {
			return err
		}
		if err := p.Settings()[1].CheckRange(n); err != nil {
			return err
		}
		p.numHooks = n
		return nil

	case "hook_ids":
		s, err := plugin.StringValue(value)
		if err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s != "" {
			for _, part := range strings.Split(s, ",") {
				if !isDigits(strings.TrimSpace(part)) {
					return fmt.Errorf("%w: hook_ids must be comma-separated numbers", plugin.ErrInvalidSetting)
				}
			}
		}
		p.hookIDs = s
		p.Reset()
		return nil
	}
	return p.Base.SetSetting(name, value)
}
