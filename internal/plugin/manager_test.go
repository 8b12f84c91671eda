package plugin

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, root string, manifest Manifest) string {
	t.Helper()

	pluginDir := filepath.Join(root, manifest.Name)
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}
	manifestBytes, err := json.Marshal(manifest)
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.json"), manifestBytes, 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return pluginDir
}

func TestManager_Discover(t *testing.T) {
	tmpDir := t.TempDir()
	pluginDir := writeManifest(t, tmpDir, Manifest{
		Name:        "test-plugin",
		Version:     "1.0.0",
		Description: "A test plugin",
		Executable:  "test-plugin",
		Settings: []ManifestSetting{
			{Name: "pattern", Type: SettingString, Default: "x"},
		},
	})

	manager := NewManager(tmpDir, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 1 {
		t.Fatalf("expected 1 plugin, got %d", len(plugins))
	}

	p := plugins[0]
	if p.Manifest.Name != "test-plugin" {
		t.Errorf("expected plugin name 'test-plugin', got %q", p.Manifest.Name)
	}
	if p.Manifest.Version != "1.0.0" {
		t.Errorf("expected version '1.0.0', got %q", p.Manifest.Version)
	}
	if p.Path != pluginDir {
		t.Errorf("expected path %q, got %q", pluginDir, p.Path)
	}
	if p.Executable != filepath.Join(pluginDir, "test-plugin") {
		t.Errorf("unexpected executable %q", p.Executable)
	}
	if settings := p.Settings(); len(settings) != 1 || settings[0].Value != "x" {
		t.Errorf("expected default setting value, got %+v", settings)
	}
}

func TestManager_Discover_MultiplePluginsSorted(t *testing.T) {
	tmpDir := t.TempDir()
	for _, name := range []string{"plugin-b", "plugin-a"} {
		writeManifest(t, tmpDir, Manifest{Name: name, Version: "1.0.0", Executable: name})
	}

	manager := NewManager(tmpDir, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(plugins))
	}
	if plugins[0].Manifest.Name != "plugin-a" || plugins[1].Manifest.Name != "plugin-b" {
		t.Errorf("expected sorted plugins, got %s, %s", plugins[0].Manifest.Name, plugins[1].Manifest.Name)
	}
}

func TestManager_Discover_KeepsInstances(t *testing.T) {
	tmpDir := t.TempDir()
	writeManifest(t, tmpDir, Manifest{
		Name:       "keep",
		Executable: "keep",
		Settings:   []ManifestSetting{{Name: "pattern", Type: SettingString, Default: "x"}},
	})

	manager := NewManager(tmpDir, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}
	first, _ := manager.lookup("keep")
	if err := first.SetSetting("pattern", "y"); err != nil {
		t.Fatalf("SetSetting() error = %v", err)
	}

	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}
	second, _ := manager.lookup("keep")
	if first != second {
		t.Error("rediscovery should keep the existing instance")
	}
}

func TestManager_Lookup_NotFound(t *testing.T) {
	manager := NewManager(t.TempDir(), nil)

	_, err := manager.lookup("nonexistent-plugin")
	if err != ErrPluginNotFound {
		t.Errorf("expected ErrPluginNotFound, got %v", err)
	}
}

func TestManager_PluginDir(t *testing.T) {
	pluginDir := "/path/to/plugins"
	manager := NewManager(pluginDir, nil)

	if manager.PluginDir() != pluginDir {
		t.Errorf("expected plugin dir %q, got %q", pluginDir, manager.PluginDir())
	}
}

func TestManager_Discover_InvalidManifests(t *testing.T) {
	tmpDir := t.TempDir()

	badDir := filepath.Join(tmpDir, "bad-plugin")
	if err := os.MkdirAll(badDir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(badDir, "plugin.json"), []byte("not valid json"), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	writeManifest(t, tmpDir, Manifest{Name: "no-exec"})

	manager := NewManager(tmpDir, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed unexpectedly: %v", err)
	}
	if plugins := manager.List(); len(plugins) != 0 {
		t.Fatalf("expected 0 plugins, got %d", len(plugins))
	}
}

func TestManager_Discover_NonExistentDir(t *testing.T) {
	manager := NewManager("/path/that/does/not/exist", nil)

	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed on non-existent dir: %v", err)
	}
	if plugins := manager.List(); len(plugins) != 0 {
		t.Fatalf("expected 0 plugins, got %d", len(plugins))
	}
}

func TestManager_Sync(t *testing.T) {
	tmpDir := t.TempDir()
	writeManifest(t, tmpDir, Manifest{Name: "one", Executable: "one"})

	store := &memoryStore{}
	reg := NewRegistry(store)
	if err := reg.Register("builtin", &recorder{name: "builtin"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	manager := NewManager(tmpDir, nil)
	if err := manager.Sync(reg); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if got := reg.Order(); len(got) != 2 || got[1] != "ext:one" {
		t.Fatalf("order after first sync = %v", got)
	}
	if store.saves == 0 {
		t.Error("registering a new plugin should persist")
	}

	if err := os.RemoveAll(filepath.Join(tmpDir, "one")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	writeManifest(t, tmpDir, Manifest{Name: "two", Executable: "two"})

	if err := manager.Sync(reg); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	got := reg.Order()
	if len(got) != 2 || got[0] != "builtin" || got[1] != "ext:two" {
		t.Errorf("order after second sync = %v", got)
	}
}
