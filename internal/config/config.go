package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type LoggingCfg struct {
	Dir          string `yaml:"dir" toml:"dir" json:"dir"`                               // Log directory (default: user cache dir)
	RotationDays int    `yaml:"rotation_days" toml:"rotation_days" json:"rotation_days"` // Days to keep logs before rotation
}

type HistoryCfg struct {
	Enabled      bool   `yaml:"enabled" toml:"enabled" json:"enabled"`                   // Record one row per deleted target
	DatabasePath string `yaml:"database_path" toml:"database_path" json:"database_path"` // Path to SQLite database
}

type MetricsCfg struct {
	TextfilePath   string `yaml:"textfile_path" toml:"textfile_path" json:"textfile_path"`       // node_exporter textfile collector output
	PushgatewayURL string `yaml:"pushgateway_url" toml:"pushgateway_url" json:"pushgateway_url"` // Prometheus Pushgateway base URL
	Job            string `yaml:"job" toml:"job" json:"job"`                                     // Job label used when pushing
}

type Config struct {
	Workers        int        `yaml:"workers" toml:"workers" json:"workers"`                         // 0 = one worker per CPU
	FollowSymlinks *bool      `yaml:"follow_symlinks" toml:"follow_symlinks" json:"follow_symlinks"` // Follow links that stay inside the target (default: true)
	ProtectedPaths []string   `yaml:"protected_paths" toml:"protected_paths" json:"protected_paths"` // Refused in addition to the built-in list
	Logging        LoggingCfg `yaml:"logging" toml:"logging" json:"logging"`
	History        HistoryCfg `yaml:"history" toml:"history" json:"history"`
	Metrics        MetricsCfg `yaml:"metrics" toml:"metrics" json:"metrics"`
}

var (
	errNegativeWorkers  = errors.New("workers cannot be negative")
	errNegativeRotation = errors.New("logging.rotation_days cannot be negative")
	errInvalidPath      = errors.New("path must be absolute")
)

// Default returns the configuration used when no config file exists
func Default() *Config {
	cfg := &Config{}
	// validateAndDefault cannot fail on the zero value
	_ = cfg.validateAndDefault()
	return cfg
}

// DefaultPath is $XDG_CONFIG_HOME/turbodelete/config.yaml (or the platform equivalent)
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "turbodelete", "config.yaml")
}

// Load reads the config file at path. A .toml extension selects the TOML
// decoder, anything else is parsed as YAML.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg *Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		cfg, err = decodeTOML(f)
	} else {
		cfg, err = decode(f)
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.validateAndDefault(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path if it exists and falls back to Default otherwise
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return Load(path)
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

func decodeTOML(r io.Reader) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode toml: %w", err)
	}
	return cfg, nil
}

func (c *Config) validateAndDefault() error {
	if c.Workers < 0 {
		return errNegativeWorkers
	}
	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}

	if c.FollowSymlinks == nil {
		follow := true
		c.FollowSymlinks = &follow
	}

	if c.Logging.RotationDays < 0 {
		return errNegativeRotation
	}
	if c.Logging.RotationDays == 0 {
		c.Logging.RotationDays = 30 // Default: keep logs for 30 days
	}

	if c.History.DatabasePath == "" {
		c.History.DatabasePath = DefaultHistoryPath()
	}

	if c.Metrics.Job == "" {
		c.Metrics.Job = "turbodelete"
	}

	cleaned := make([]string, 0, len(c.ProtectedPaths))
	for _, p := range c.ProtectedPaths {
		cp, err := cleanAbsolute(p)
		if err != nil {
			return err
		}
		cleaned = append(cleaned, cp)
	}
	c.ProtectedPaths = cleaned

	return nil
}

// DefaultHistoryPath is the per-user location of the deletion history database
func DefaultHistoryPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "turbodelete", "history.db")
}

func cleanAbsolute(p string) (string, error) {
	if p == "" {
		return "", errInvalidPath
	}
	cp := filepath.Clean(p)
	if !filepath.IsAbs(cp) {
		return "", fmt.Errorf("%w: %s", errInvalidPath, p)
	}
	return cp, nil
}

// Follow reports whether symlinks should be followed during traversal
func (c *Config) Follow() bool {
	return c.FollowSymlinks == nil || *c.FollowSymlinks
}
