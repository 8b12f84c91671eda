// Package plugin provides the text processing pipeline: the Plugin capability, the
// ordered Registry of plugin instances and out-of-process plugins run over JSON stdio.
package plugin

import (
	"errors"
	"fmt"
)

var (
	// ErrDrop is returned from Process to drop the text and stop the pipeline for it.
	ErrDrop = errors.New("drop text")

	// ErrUnknownSetting is returned by SetSetting for a name the plugin does not expose.
	ErrUnknownSetting = errors.New("unknown setting")

	// ErrInvalidSetting is returned by SetSetting when the value is rejected.
	ErrInvalidSetting = errors.New("invalid setting value")
)

// Info describes a plugin for display.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
	Author      string `json:"author,omitempty"`
}

// Plugin is a unit of text transformation or filtering.
//
// Process returns the transformed text, or ErrDrop to remove it. Any other error, or a
// panic, is absorbed by the pipeline and the input passes through unchanged.
// OnEnable and OnDisable are called once per enable/disable edge. Reset clears
// accumulated state but keeps settings.
type Plugin interface {
	Info() Info
	Process(text string) (string, error)
	OnEnable() error
	OnDisable() error
	Reset()
	Settings() []Setting
	SetSetting(name string, value any) error
}

// Base provides no-op lifecycle methods and an empty settings surface.
// Plugins embed it and override what they need.
type Base struct{}

func (Base) OnEnable() error     { return nil }
func (Base) OnDisable() error    { return nil }
func (Base) Reset()              {}
func (Base) Settings() []Setting { return nil }

func (Base) SetSetting(name string, value any) error {
	return fmt.Errorf("%w: %s", ErrUnknownSetting, name)
}
