package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("SUGOI_ADDR", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	def := Default()
	if cfg.Server.Addr != def.Server.Addr || cfg.Profiles.MaxRetries != 3 {
		t.Errorf("expected defaults, got %+v", cfg)
	}
	if cfg.Engine.GracePeriod != 2*time.Second || cfg.Plugins.Timeout != 5*time.Second {
		t.Errorf("duration defaults wrong: %+v", cfg)
	}
	if !cfg.Tray || !cfg.Plugins.Watch {
		t.Error("tray and watch default to on")
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
engine:
  a:
    path: /opt/engine/a.exe
    args: [--quiet]
  grace_period: 500ms
profiles:
  retry_delay: 1s
  max_retries: 5
tray: false
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Engine.A.Path != "/opt/engine/a.exe" || len(cfg.Engine.A.Args) != 1 {
		t.Errorf("engine a = %+v", cfg.Engine.A)
	}
	if cfg.Engine.GracePeriod != 500*time.Millisecond {
		t.Errorf("grace_period = %s", cfg.Engine.GracePeriod)
	}
	if cfg.Profiles.RetryDelay != time.Second || cfg.Profiles.MaxRetries != 5 {
		t.Errorf("profiles = %+v", cfg.Profiles)
	}
	if cfg.Tray {
		t.Error("tray should be disabled")
	}
	if cfg.Server.Addr != "127.0.0.1:8080" {
		t.Errorf("unset keys keep defaults, addr = %q", cfg.Server.Addr)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SUGOI_ENGINE_B", "/usr/bin/engine-b")
	t.Setenv("SUGOI_ADDR", ":9090")
	t.Setenv("SUGOI_DATABASE", "/tmp/x.db")
	t.Setenv("SUGOI_PLUGIN_DIR", "/tmp/plugins")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Engine.B.Path != "/usr/bin/engine-b" || cfg.Server.Addr != ":9090" {
		t.Errorf("env not applied: %+v", cfg)
	}
	if cfg.Storage.Database != "/tmp/x.db" || cfg.Plugins.Dir != "/tmp/plugins" {
		t.Errorf("env not applied: %+v", cfg)
	}
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("profiles:\n  max_retries: -1\n"), 0644)

	if _, err := Load(path); !errors.Is(err, ErrInvalid) {
		t.Errorf("Load() error = %v, want ErrInvalid", err)
	}

	os.WriteFile(path, []byte("engine: [not a map"), 0644)
	if _, err := Load(path); err == nil {
		t.Error("malformed YAML should fail")
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandHome("~/games"); got != filepath.Join(home, "games") {
		t.Errorf("expandHome() = %q", got)
	}
	if got := expandHome("/abs/path"); got != "/abs/path" {
		t.Errorf("expandHome() = %q", got)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	t.Setenv("SUGOI_ADDR", "")
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Engine.B = EngineCommand{Path: "/bin/engine", Args: []string{"-x"}}
	cfg.Profiles.RetryDelay = 3 * time.Second

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Engine.B.Path != "/bin/engine" || loaded.Profiles.RetryDelay != 3*time.Second {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}
