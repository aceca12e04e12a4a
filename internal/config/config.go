// Package config loads panemux settings from ~/.panemux/config.toml.
// A missing or unparseable file yields the defaults; startup never fails
// on configuration.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full config.toml structure.
type Config struct {
	DataDir  string         `toml:"data_dir"` // defaults to ~/.panemux
	Shell    string         `toml:"shell"`    // defaults to $SHELL
	Terminal TerminalConfig `toml:"terminal"`
	Web      WebConfig      `toml:"web"`
	Log      LogConfig      `toml:"log"`
}

// TerminalConfig tunes pane behavior.
type TerminalConfig struct {
	ScrollbackKB  int `toml:"scrollback_kb"`    // per-pane raw scrollback cap
	EdgeThreshold int `toml:"edge_threshold"`   // outer-edge drop band, cells
	RestartDelay  int `toml:"restart_delay_ms"` // interrupt-to-replay pause
}

// WebConfig controls the browser attach server.
type WebConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// LogConfig controls log file rotation.
type LogConfig struct {
	MaxSizeMB  int `toml:"max_size_mb"`
	MaxBackups int `toml:"max_backups"`
	MaxAgeDays int `toml:"max_age_days"`
}

// DefaultPath returns the standard config file location.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".panemux", "config.toml")
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		DataDir: filepath.Join(home, ".panemux"),
		Shell:   os.Getenv("SHELL"),
		Terminal: TerminalConfig{
			ScrollbackKB:  256,
			EdgeThreshold: 2,
			RestartDelay:  250,
		},
		Web: WebConfig{
			Enabled: false,
			Listen:  "127.0.0.1:7870",
		},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 30,
		},
	}
}

// Load reads the config file at path. Missing file or parse error returns
// defaults.
func Load(path string) *Config {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return Defaults() // return defaults on parse error
	}

	// Apply defaults for empty or out-of-range values
	d := Defaults()
	if cfg.DataDir == "" {
		cfg.DataDir = d.DataDir
	}
	if cfg.Terminal.ScrollbackKB <= 0 {
		cfg.Terminal.ScrollbackKB = d.Terminal.ScrollbackKB
	}
	if cfg.Terminal.EdgeThreshold <= 0 {
		cfg.Terminal.EdgeThreshold = d.Terminal.EdgeThreshold
	}
	if cfg.Terminal.RestartDelay <= 0 {
		cfg.Terminal.RestartDelay = d.Terminal.RestartDelay
	}
	if cfg.Web.Listen == "" {
		cfg.Web.Listen = d.Web.Listen
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = d.Log.MaxSizeMB
	}
	if cfg.Log.MaxBackups < 0 {
		cfg.Log.MaxBackups = d.Log.MaxBackups
	}
	if cfg.Log.MaxAgeDays <= 0 {
		cfg.Log.MaxAgeDays = d.Log.MaxAgeDays
	}
	return cfg
}

// Save writes the config back, preserving unknown sections already in the
// file.
func Save(path string, cfg *Config) error {
	existingData, _ := os.ReadFile(path)

	var existing map[string]interface{}
	if len(existingData) > 0 {
		if err := toml.Unmarshal(existingData, &existing); err != nil {
			existing = make(map[string]interface{})
		}
	} else {
		existing = make(map[string]interface{})
	}

	existing["data_dir"] = cfg.DataDir
	existing["shell"] = cfg.Shell
	existing["terminal"] = map[string]interface{}{
		"scrollback_kb":    cfg.Terminal.ScrollbackKB,
		"edge_threshold":   cfg.Terminal.EdgeThreshold,
		"restart_delay_ms": cfg.Terminal.RestartDelay,
	}
	existing["web"] = map[string]interface{}{
		"enabled": cfg.Web.Enabled,
		"listen":  cfg.Web.Listen,
	}
	existing["log"] = map[string]interface{}{
		"max_size_mb":  cfg.Log.MaxSizeMB,
		"max_backups":  cfg.Log.MaxBackups,
		"max_age_days": cfg.Log.MaxAgeDays,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(existing)
}

// RestartDelayDuration is Terminal.RestartDelay as a time.Duration.
func (c *Config) RestartDelayDuration() time.Duration {
	return time.Duration(c.Terminal.RestartDelay) * time.Millisecond
}
