package plugin

import (
	"errors"
	"fmt"
	"log"
	"sort"
)

// ErrPluginNotFound is returned when a requested plugin cannot be found.
var ErrPluginNotFound = errors.New("plugin not found")

// ErrDuplicatePlugin is returned when an identity is registered twice.
var ErrDuplicatePlugin = errors.New("plugin already registered")

// State is the persisted plugin configuration.
type State struct {
	// Active lists enabled identities in execution order.
	Active []string `json:"active"`
	// Order lists every known identity.
	Order []string `json:"order"`
	// Settings maps identity to setting name to value.
	Settings map[string]map[string]any `json:"settings"`
}

// StateStore persists registry state.
type StateStore interface {
	Load() (State, error)
	Save(State) error
}

// Descriptor is a read-only view of one registered plugin.
type Descriptor struct {
	Identity    string    `json:"identity"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Version     string    `json:"version"`
	Author      string    `json:"author,omitempty"`
	Enabled     bool      `json:"enabled"`
	OrderIndex  int       `json:"order_index"`
	Settings    []Setting `json:"settings"`
}

type entry struct {
	plugin  Plugin
	enabled bool
}

// Registry holds plugin instances keyed by a stable identity, their total order and
// which of them are enabled. It is not safe for concurrent use; the control loop owns it.
type Registry struct {
	entries map[string]*entry
	order   []string
	store   StateStore
}

// NewRegistry creates an empty registry. store may be nil.
func NewRegistry(store StateStore) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		store:   store,
	}
}

// Register adds p under identity at the end of the order, disabled.
func (r *Registry) Register(identity string, p Plugin) error {
	if _, ok := r.entries[identity]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePlugin, identity)
	}
	r.entries[identity] = &entry{plugin: p}
	r.order = append(r.order, identity)
	return nil
}

// Unregister disables and removes identity.
func (r *Registry) Unregister(identity string) error {
	e, ok := r.entries[identity]
	if !ok {
		return ErrPluginNotFound
	}
	if e.enabled {
		if err := callDisable(e.plugin); err != nil {
			log.Printf("plugin %s: disable: %v", identity, err)
		}
	}
	delete(r.entries, identity)
	r.order = removeString(r.order, identity)
	r.persist()
	return nil
}

// Has reports whether identity is registered.
func (r *Registry) Has(identity string) bool {
	_, ok := r.entries[identity]
	return ok
}

// Get returns the plugin registered under identity.
func (r *Registry) Get(identity string) (Plugin, error) {
	e, ok := r.entries[identity]
	if !ok {
		return nil, ErrPluginNotFound
	}
	return e.plugin, nil
}

// Restore applies saved state to the registered plugins. Saved identities keep their
// relative order, then identities missing from the saved order follow in registration
// order. Saved identities that are not registered are dropped.
func (r *Registry) Restore(s State) {
	seen := make(map[string]bool, len(r.order))
	order := make([]string, 0, len(r.order))
	for _, id := range s.Order {
		if _, ok := r.entries[id]; ok && !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}
	for _, id := range r.order {
		if !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}
	r.order = order

	for id, values := range s.Settings {
		e, ok := r.entries[id]
		if !ok {
			continue
		}
		names := make([]string, 0, len(values))
		for name := range values {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if err := callSetSetting(e.plugin, name, values[name]); err != nil {
				log.Printf("plugin %s: restore setting %s: %v", id, name, err)
			}
		}
	}

	for _, id := range s.Active {
		if e, ok := r.entries[id]; ok && !e.enabled {
			r.enable(id, e)
		}
	}
	r.persist()
}

// Enable activates identity. Enabling an enabled plugin does nothing.
func (r *Registry) Enable(identity string) error {
	e, ok := r.entries[identity]
	if !ok {
		return ErrPluginNotFound
	}
	if e.enabled {
		return nil
	}
	r.enable(identity, e)
	r.persist()
	return nil
}

func (r *Registry) enable(identity string, e *entry) {
	if err := callEnable(e.plugin); err != nil {
		log.Printf("plugin %s: enable: %v", identity, err)
	}
	e.enabled = true
}

// Disable deactivates identity. Disabling a disabled plugin does nothing.
func (r *Registry) Disable(identity string) error {
	e, ok := r.entries[identity]
	if !ok {
		return ErrPluginNotFound
	}
	if !e.enabled {
		return nil
	}
	if err := callDisable(e.plugin); err != nil {
		log.Printf("plugin %s: disable: %v", identity, err)
	}
	e.enabled = false
	r.persist()
	return nil
}

// Move places identity at index in the order, shifting the others. The index is clamped.
func (r *Registry) Move(identity string, index int) error {
	if _, ok := r.entries[identity]; !ok {
		return ErrPluginNotFound
	}
	order := removeString(r.order, identity)
	if index < 0 {
		index = 0
	}
	if index > len(order) {
		index = len(order)
	}
	order = append(order, "")
	copy(order[index+1:], order[index:])
	order[index] = identity
	r.order = order
	r.persist()
	return nil
}

// SetSetting assigns a setting on identity. The plugin's validation error is returned as is.
func (r *Registry) SetSetting(identity, name string, value any) error {
	e, ok := r.entries[identity]
	if !ok {
		return ErrPluginNotFound
	}
	if err := callSetSetting(e.plugin, name, value); err != nil {
		return err
	}
	r.persist()
	return nil
}

// Update is a partial change to one plugin. Nil fields are left alone.
type Update struct {
	Enabled  *bool          `json:"enabled,omitempty"`
	Position *int           `json:"position,omitempty"`
	Settings map[string]any `json:"settings,omitempty"`
}

// Apply performs u on identity: settings first, in name order, then the move, then the
// enable edge. It stops at the first rejected setting.
func (r *Registry) Apply(identity string, u Update) error {
	e, ok := r.entries[identity]
	if !ok {
		return ErrPluginNotFound
	}

	names := make([]string, 0, len(u.Settings))
	for name := range u.Settings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := callSetSetting(e.plugin, name, u.Settings[name]); err != nil {
			r.persist()
			return fmt.Errorf("setting %s: %w", name, err)
		}
	}

	if u.Position != nil {
		r.Move(identity, *u.Position)
	}
	if u.Enabled != nil {
		if *u.Enabled {
			r.Enable(identity)
		} else {
			r.Disable(identity)
		}
	}
	r.persist()
	return nil
}

// Describe returns the descriptor of identity.
func (r *Registry) Describe(identity string) (Descriptor, error) {
	for _, d := range r.Descriptors() {
		if d.Identity == identity {
			return d, nil
		}
	}
	return Descriptor{}, ErrPluginNotFound
}

// Order returns every identity in order.
func (r *Registry) Order() []string {
	return append([]string(nil), r.order...)
}

// Active returns the enabled plugins in execution order.
func (r *Registry) Active() []Plugin {
	var out []Plugin
	for _, id := range r.order {
		if e := r.entries[id]; e.enabled {
			out = append(out, e.plugin)
		}
	}
	return out
}

// Run threads text through the enabled plugins.
func (r *Registry) Run(text string) (string, bool) {
	return Run(text, r.Active())
}

// ResetAll resets every registered plugin, enabled or not.
func (r *Registry) ResetAll() {
	for _, id := range r.order {
		if err := callReset(r.entries[id].plugin); err != nil {
			log.Printf("plugin %s: reset: %v", id, err)
		}
	}
}

// Descriptors lists every plugin in order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for i, id := range r.order {
		e := r.entries[id]
		info := e.plugin.Info()
		out = append(out, Descriptor{
			Identity:    id,
			Name:        info.Name,
			Description: info.Description,
			Version:     info.Version,
			Author:      info.Author,
			Enabled:     e.enabled,
			OrderIndex:  i,
			Settings:    callSettings(e.plugin),
		})
	}
	return out
}

// State returns the current configuration in persisted form.
func (r *Registry) State() State {
	s := State{
		Active:   []string{},
		Order:    r.Order(),
		Settings: make(map[string]map[string]any),
	}
	for _, id := range r.order {
		e := r.entries[id]
		if e.enabled {
			s.Active = append(s.Active, id)
		}
		settings := callSettings(e.plugin)
		if len(settings) == 0 {
			continue
		}
		values := make(map[string]any, len(settings))
		for _, setting := range settings {
			values[setting.Name] = setting.Value
		}
		s.Settings[id] = values
	}
	return s
}

// Persist saves the current state. Mutating methods other than Register persist on their own.
func (r *Registry) Persist() {
	r.persist()
}

func (r *Registry) persist() {
	if r.store == nil {
		return
	}
	if err := r.store.Save(r.State()); err != nil {
		log.Printf("plugin registry: save state: %v", err)
	}
}

func removeString(list []string, s string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
