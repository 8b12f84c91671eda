package plugin

import (
	"errors"
	"fmt"
	"log"
)

// Run threads text through plugins in order. It returns false when a plugin dropped the
// text; the remaining plugins are not invoked. A plugin that fails leaves the text as it was.
func Run(text string, plugins []Plugin) (string, bool) {
	current := text
	for _, p := range plugins {
		out, err := callProcess(p, current)
		if errors.Is(err, ErrDrop) {
			return "", false
		}
		if err != nil {
			log.Printf("plugin %s: process: %v", p.Info().Name, err)
			continue
		}
		current = out
	}
	return current, true
}

func callProcess(p Plugin, text string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.Process(text)
}

func callEnable(p Plugin) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.OnEnable()
}

func callDisable(p Plugin) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.OnDisable()
}

func callReset(p Plugin) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	p.Reset()
	return nil
}

func callSetSetting(p Plugin, name string, value any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrInvalidSetting, r)
		}
	}()
	return p.SetSetting(name, value)
}

func callSettings(p Plugin) (settings []Setting) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("plugin %s: settings: panic: %v", p.Info().Name, r)
			settings = nil
		}
	}()
	return p.Settings()
}
