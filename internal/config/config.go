// Package config loads sugoi configuration from YAML with environment overrides.
// Priority: defaults < file < env
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid config")

// Config holds all sugoi configuration.
type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Plugins  PluginsConfig  `yaml:"plugins"`
	Profiles ProfilesConfig `yaml:"profiles"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Tray     bool           `yaml:"tray"`
}

// EngineConfig locates the hook engine executables.
type EngineConfig struct {
	A           EngineCommand `yaml:"a"` // UTF-16LE stdio
	B           EngineCommand `yaml:"b"` // UTF-8 stdio
	GracePeriod time.Duration `yaml:"grace_period"`
}

// EngineCommand is one engine executable.
type EngineCommand struct {
	Path string   `yaml:"path"`
	Args []string `yaml:"args,omitempty"`
}

// PluginsConfig controls external plugins.
type PluginsConfig struct {
	Dir     string        `yaml:"dir"`
	Timeout time.Duration `yaml:"timeout"`
	Watch   bool          `yaml:"watch"`
}

// ProfilesConfig tunes auto-select.
type ProfilesConfig struct {
	RetryDelay time.Duration `yaml:"retry_delay"`
	MaxRetries int           `yaml:"max_retries"`
}

// ServerConfig for the HTTP server.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
	// SaveDir is where POST /api/output/save writes files.
	SaveDir string `yaml:"save_dir"`
}

// StorageConfig for persistence.
type StorageConfig struct {
	Database string `yaml:"database"`
}

// Dir returns the sugoi home directory, ~/.sugoi.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sugoi"
	}
	return filepath.Join(home, ".sugoi")
}

// DefaultPath returns the user config file path.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns the default configuration.
func Default() *Config {
	dir := Dir()
	return &Config{
		Engine: EngineConfig{
			GracePeriod: 2 * time.Second,
		},
		Plugins: PluginsConfig{
			Dir:     filepath.Join(dir, "plugins"),
			Timeout: 5 * time.Second,
			Watch:   true,
		},
		Profiles: ProfilesConfig{
			RetryDelay: 2 * time.Second,
			MaxRetries: 3,
		},
		Server: ServerConfig{
			Addr:    "127.0.0.1:8080",
			SaveDir: filepath.Join(dir, "saved"),
		},
		Storage: StorageConfig{
			Database: filepath.Join(dir, "sugoi.db"),
		},
		Tray: true,
	}
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.loadEnv()
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnv loads configuration from environment variables.
func (c *Config) loadEnv() {
	// SUGOI_ENGINE_A
	if v := os.Getenv("SUGOI_ENGINE_A"); v != "" {
		c.Engine.A.Path = v
	}

	// SUGOI_ENGINE_B
	if v := os.Getenv("SUGOI_ENGINE_B"); v != "" {
		c.Engine.B.Path = v
	}

	// SUGOI_DATABASE
	if v := os.Getenv("SUGOI_DATABASE"); v != "" {
		c.Storage.Database = v
	}

	// SUGOI_ADDR
	if v := os.Getenv("SUGOI_ADDR"); v != "" {
		c.Server.Addr = v
	}

	// SUGOI_PLUGIN_DIR
	if v := os.Getenv("SUGOI_PLUGIN_DIR"); v != "" {
		c.Plugins.Dir = v
	}
}

func (c *Config) expandPaths() {
	c.Engine.A.Path = expandHome(c.Engine.A.Path)
	c.Engine.B.Path = expandHome(c.Engine.B.Path)
	c.Plugins.Dir = expandHome(c.Plugins.Dir)
	c.Storage.Database = expandHome(c.Storage.Database)
	c.Server.StaticDir = expandHome(c.Server.StaticDir)
	c.Server.SaveDir = expandHome(c.Server.SaveDir)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Validate rejects values the rest of the program cannot work with.
func (c *Config) Validate() error {
	var problems []string
	if c.Engine.GracePeriod < 0 {
		problems = append(problems, "engine.grace_period must not be negative")
	}
	if c.Plugins.Timeout < 0 {
		problems = append(problems, "plugins.timeout must not be negative")
	}
	if c.Profiles.RetryDelay < 0 {
		problems = append(problems, "profiles.retry_delay must not be negative")
	}
	if c.Profiles.MaxRetries < 0 {
		problems = append(problems, "profiles.max_retries must not be negative")
	}
	if c.Server.Addr == "" {
		problems = append(problems, "server.addr must be set")
	}
	if c.Storage.Database == "" {
		problems = append(problems, "storage.database must be set")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Save writes c to path as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
