package plugin

import (
	"context"
	"errors"
	"fmt"
)

// External is a plugin implemented by an executable on disk. Every Process call runs
// the executable once through the Executor.
type External struct {
	Manifest   Manifest
	Path       string
	Executable string

	executor *Executor
	values   map[string]any
}

// NewExternal creates an External with settings at their manifest defaults.
func NewExternal(m Manifest, path, executable string, executor *Executor) *External {
	values := make(map[string]any, len(m.Settings))
	for _, s := range m.Settings {
		values[s.Name] = s.Default
	}
	return &External{
		Manifest:   m,
		Path:       path,
		Executable: executable,
		executor:   executor,
		values:     values,
	}
}

// Identity is the registry key of the plugin.
func (p *External) Identity() string {
	return ExternalPrefix + p.Manifest.Name
}

func (p *External) Info() Info {
	return Info{
		Name:        p.Manifest.Name,
		Description: p.Manifest.Description,
		Version:     p.Manifest.Version,
		Author:      p.Manifest.Author,
	}
}

// Process sends text to the executable. A reply with drop set removes the text;
// an unsuccessful reply is a plugin failure.
func (p *External) Process(text string) (string, error) {
	resp, err := p.executor.Execute(context.Background(), p, &Request{
		Action:   ActionProcess,
		Text:     text,
		Settings: p.settingValues(),
	})
	if err != nil {
		return "", err
	}
	if !resp.Success {
		if resp.Error == "" {
			return "", errors.New("plugin reported failure")
		}
		return "", errors.New(resp.Error)
	}
	if resp.Drop {
		return "", ErrDrop
	}
	return resp.Text, nil
}

func (p *External) OnEnable() error  { return nil }
func (p *External) OnDisable() error { return nil }

// Reset is a no-op: external plugins hold no state between invocations.
func (p *External) Reset() {}

func (p *External) Settings() []Setting {
	out := make([]Setting, 0, len(p.Manifest.Settings))
	for _, s := range p.Manifest.Settings {
		out = append(out, Setting{
			Name:        s.Name,
			Value:       p.values[s.Name],
			Type:        s.Type,
			Description: s.Description,
			Options:     s.Options,
			Min:         s.Min,
			Max:         s.Max,
		})
	}
	return out
}

// SetSetting validates value against the declared type before storing it.
func (p *External) SetSetting(name string, value any) error {
	for _, s := range p.Settings() {
		if s.Name != name {
			continue
		}
		v, err := coerce(s, value)
		if err != nil {
			return err
		}
		p.values[name] = v
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownSetting, name)
}

func (p *External) settingValues() map[string]any {
	out := make(map[string]any, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

func coerce(s Setting, value any) (any, error) {
	switch s.Type {
	case SettingBool:
		return BoolValue(value)
	case SettingInt, SettingIntSlider:
		n, err := IntValue(value)
		if err != nil {
			return nil, err
		}
		if err := s.CheckRange(n); err != nil {
			return nil, err
		}
		return n, nil
	case SettingChoice:
		str, err := StringValue(value)
		if err != nil {
			return nil, err
		}
		for _, opt := range s.Options {
			if opt == str {
				return str, nil
			}
		}
		return nil, fmt.Errorf("%w: %q is not one of %v", ErrInvalidSetting, str, s.Options)
	default:
		return StringValue(value)
	}
}
