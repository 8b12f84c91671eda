package plugin

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Manager discovers external plugins in a directory.
type Manager struct {
	pluginDir string
	executor  *Executor
	plugins   map[string]*External
	mu        sync.RWMutex
}

// NewManager creates a new plugin Manager for pluginDir.
func NewManager(pluginDir string, executor *Executor) *Manager {
	if executor == nil {
		executor = NewExecutor(DefaultTimeout)
	}
	return &Manager{
		pluginDir: pluginDir,
		executor:  executor,
		plugins:   make(map[string]*External),
	}
}

// Discover scans the plugin directory for plugin.json files and loads them.
// Each subdirectory in the plugin directory is expected to be a plugin with a plugin.json manifest.
// Plugins that were already known keep their instance, and with it their settings.
func (m *Manager) Discover() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Replace the known set once the scan is done
	found := make(map[string]*External)
	defer func() { m.plugins = found }()

	// Check if plugin directory exists
	info, err := os.Stat(m.pluginDir)
	if os.IsNotExist(err) {
		return nil // No plugins directory, nothing to discover
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}

	// Read plugin directory entries
	entries, err := os.ReadDir(m.pluginDir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		pluginPath := filepath.Join(m.pluginDir, entry.Name())
		manifestData, err := os.ReadFile(filepath.Join(pluginPath, "plugin.json"))
		if err != nil {
			continue // Not a plugin directory
		}

		var manifest Manifest
		if err := json.Unmarshal(manifestData, &manifest); err != nil {
			log.Printf("plugin manager: %s: invalid manifest: %v", entry.Name(), err)
			continue
		}
		if strings.TrimSpace(manifest.Name) == "" || manifest.Executable == "" {
			log.Printf("plugin manager: %s: manifest needs name and executable", entry.Name())
			continue
		}

		// Keep the existing instance, and its settings, while the executable is unchanged
		executablePath := filepath.Join(pluginPath, manifest.Executable)
		if old, ok := m.plugins[manifest.Name]; ok && old.Executable == executablePath {
			found[manifest.Name] = old
			continue
		}
		found[manifest.Name] = NewExternal(manifest, pluginPath, executablePath, m.executor)
	}

	return nil
}

// lookup returns a plugin by name, or ErrPluginNotFound.
func (m *Manager) lookup(name string) (*External, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.plugins[name]
	if !ok {
		return nil, ErrPluginNotFound
	}
	return p, nil
}

// List returns all discovered plugins sorted by name.
func (m *Manager) List() []*External {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plugins := make([]*External, 0, len(m.plugins))
	for _, p := range m.plugins {
		plugins = append(plugins, p)
	}
	sort.Slice(plugins, func(i, j int) bool {
		return plugins[i].Manifest.Name < plugins[j].Manifest.Name
	})
	return plugins
}

// PluginDir returns the plugin directory path.
func (m *Manager) PluginDir() string {
	return m.pluginDir
}

// Sync rediscovers plugins and reconciles reg: new plugins are appended disabled,
// plugins whose directory disappeared are removed. Built-in identities are untouched.
func (m *Manager) Sync(reg *Registry) error {
	if err := m.Discover(); err != nil {
		return err
	}

	present := make(map[string]bool)
	added := false
	for _, p := range m.List() {
		id := p.Identity()
		present[id] = true
		if !reg.Has(id) {
			if err := reg.Register(id, p); err != nil {
				return err
			}
			log.Printf("plugin manager: registered %s", id)
			added = true
		}
	}

	for _, id := range reg.Order() {
		if strings.HasPrefix(id, ExternalPrefix) && !present[id] {
			if err := reg.Unregister(id); err != nil {
				return err
			}
			log.Printf("plugin manager: removed %s", id)
		}
	}
	if added {
		reg.Persist()
	}
	return nil
}
