// Package config handles TOML configuration loading with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration for sentinel.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Monitor MonitorConfig `toml:"monitor"`
	DB      DBConfig      `toml:"db"`
	Rules   RulesConfig   `toml:"rules"`
	Ntfy    NtfyConfig    `toml:"ntfy"`
	Log     LogConfig     `toml:"log"`
}

// ServerConfig controls the HTTP API listener.
type ServerConfig struct {
	Addr         string   `toml:"addr"`
	ReadTimeout  Duration `toml:"read_timeout"`
	WriteTimeout Duration `toml:"write_timeout"`
	IdleTimeout  Duration `toml:"idle_timeout"`
}

// MonitorConfig controls the collection schedule and collectors.
type MonitorConfig struct {
	Interval       Duration `toml:"interval"`
	StreamInterval Duration `toml:"stream_interval"`
	Process        bool     `toml:"process"`
	Network        bool     `toml:"network"`
	MaxProcesses   int      `toml:"max_processes"`
}

// DBConfig controls event/alert storage.
type DBConfig struct {
	Path      string   `toml:"path"`
	Retention Duration `toml:"retention"`
}

// RulesConfig points at the rule document.
type RulesConfig struct {
	Path string `toml:"path"`
}

// NtfyConfig controls optional alert push notifications. Disabled unless
// a URL is set.
type NtfyConfig struct {
	URL         string            `toml:"url"`
	MinSeverity string            `toml:"min_severity"`
	PriorityMap map[string]string `toml:"priority_map"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration wraps time.Duration for TOML string parsing (e.g. "5m", "1h").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         "127.0.0.1:8060",
			ReadTimeout:  Duration{30 * time.Second},
			WriteTimeout: Duration{0}, // streaming endpoint manages its own deadline
			IdleTimeout:  Duration{60 * time.Second},
		},
		Monitor: MonitorConfig{
			Interval:       Duration{10 * time.Second},
			StreamInterval: Duration{5 * time.Second},
			Process:        true,
			Network:        true,
			MaxProcesses:   0, // unlimited
		},
		DB: DBConfig{
			Retention: Duration{0}, // purge disabled
		},
		Ntfy: NtfyConfig{
			MinSeverity: "high",
			PriorityMap: map[string]string{
				"critical": "urgent",
				"high":     "high",
				"medium":   "default",
				"low":      "low",
			},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configDir, "sentinel", "config.toml")
}

// Load reads configuration from the given path, falling back to defaults
// for any unset fields. If the file does not exist, returns defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// DBPath returns the configured database path, or the default under the
// XDG data directory.
func (c *Config) DBPath() string {
	if c.DB.Path != "" {
		return c.DB.Path
	}
	return filepath.Join(dataDir(), "sentinel.db")
}

// RulesPath returns the configured rule document path, or the default
// next to the config file.
func (c *Config) RulesPath() string {
	if c.Rules.Path != "" {
		return c.Rules.Path
	}
	return filepath.Join(filepath.Dir(DefaultPath()), "rules.toml")
}

func dataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "sentinel")
}
