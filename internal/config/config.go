// Package config loads and saves the project configuration consumed by
// the core: database location, requirements directory, schema name,
// phase labels, and sync behavior. Configuration lives in .rtmx.yaml at
// the project root; unknown keys are ignored so collaborator tooling can
// share the file. RTMX_-prefixed environment variables override whatever
// the file (or the defaults) set, applied last so they always win.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the conventional configuration file name.
const ConfigFileName = ".rtmx.yaml"

// Conflict resolution strategies for synchronization.
const (
	ConflictManual       = "manual"
	ConflictPreferLocal  = "prefer-local"
	ConflictPreferRemote = "prefer-remote"
)

// SyncConfig configures replication behavior.
type SyncConfig struct {
	ConflictResolution string `yaml:"conflict_resolution"`
}

// Config is the project configuration.
type Config struct {
	// Database is the tabular store location, relative to the project root.
	Database string `yaml:"database"`
	// RequirementsDir holds per-requirement specification documents.
	RequirementsDir string `yaml:"requirements_dir"`
	// Schema names the registered schema validating the database.
	Schema string `yaml:"schema"`
	// Phases maps phase numbers to human labels.
	Phases map[int]string `yaml:"phases"`
	// Sync configures replication.
	Sync SyncConfig `yaml:"sync"`
	// Debug enables debug-level logging.
	Debug bool `yaml:"debug"`

	// path is where the config was loaded from, for Save.
	path string
}

// configFile is the on-disk layout: everything under a top-level rtmx key.
type configFile struct {
	RTMX Config `yaml:"rtmx"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Database:        "docs/rtm_database.csv",
		RequirementsDir: "docs/requirements",
		Schema:          "core",
		Phases:          map[int]string{},
		Sync:            SyncConfig{ConflictResolution: ConflictManual},
	}
}

// Load reads configuration from the given path, or discovers it by
// searching upward from the working directory when path is empty.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		found, err := Find("")
		if err != nil {
			cfg := Default()
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		path = found
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := Default()
	var file configFile
	file.RTMX = *cfg
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	loaded := file.RTMX
	if loaded.Phases == nil {
		loaded.Phases = map[int]string{}
	}
	if loaded.Sync.ConflictResolution == "" {
		loaded.Sync.ConflictResolution = ConflictManual
	}
	loaded.path = path
	loaded.applyEnvOverrides()
	return &loaded, nil
}

// applyEnvOverrides applies environment variable overrides, checked last so
// they win over both defaults and the on-disk file.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("RTMX_DATABASE"); path != "" {
		c.Database = path
	}
	if dir := os.Getenv("RTMX_REQUIREMENTS_DIR"); dir != "" {
		c.RequirementsDir = dir
	}
	if schema := os.Getenv("RTMX_SCHEMA"); schema != "" {
		c.Schema = schema
	}
	if mode := os.Getenv("RTMX_SYNC_CONFLICT_RESOLUTION"); mode != "" {
		c.Sync.ConflictResolution = mode
	}
	if debug := os.Getenv("RTMX_DEBUG"); debug != "" {
		c.Debug = debug != "0" && strings.ToLower(debug) != "false"
	}
}

// Save writes the configuration. An empty path reuses the load path or
// falls back to ./.rtmx.yaml.
func (c *Config) Save(path string) error {
	if path == "" {
		path = c.path
	}
	if path == "" {
		path = ConfigFileName
	}
	data, err := yaml.Marshal(configFile{RTMX: *c})
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	c.path = path
	return nil
}

// Find searches upward from start (or the working directory) for the
// configuration file.
func Find(start string) (string, error) {
	if start == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		start = wd
	}
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s found searching upward from %s", ConfigFileName, start)
		}
		dir = parent
	}
}

// Path returns where this configuration was loaded from, if anywhere.
func (c *Config) Path() string { return c.path }

// PhaseName returns the human label for a phase number, or "" when the
// phase has no label.
func (c *Config) PhaseName(phase int) string {
	return c.Phases[phase]
}

// PhaseDisplay renders a phase for reporting: "Phase N: Label" when a
// label exists, "Phase N" otherwise.
func (c *Config) PhaseDisplay(phase *int) string {
	if phase == nil {
		return "unphased"
	}
	if label := c.Phases[*phase]; label != "" {
		return fmt.Sprintf("Phase %d: %s", *phase, label)
	}
	return fmt.Sprintf("Phase %d", *phase)
}

// PhaseNumbers returns the configured phase numbers sorted ascending.
func (c *Config) PhaseNumbers() []int {
	out := make([]int, 0, len(c.Phases))
	for n := range c.Phases {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
