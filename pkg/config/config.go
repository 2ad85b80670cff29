// Package config loads server configuration from an optional YAML file,
// with environment-variable overrides and built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults and server tunables.
const (
	DefaultListen      = ":8080"
	DefaultChartFile   = "./web/chart.html"
	DefaultMaxMemoryMB = 48

	ReadHeaderTimeout = 10 * time.Second
	ShutdownTimeout   = 30 * time.Second
	EngineGCInterval  = 10 * time.Minute
)

// Config is the full server configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// DataDir is the root of the metadata directory tree.
	DataDir string `yaml:"data_dir"`

	// ChartFile is the static chart page served at /chart.
	ChartFile string `yaml:"chart_file"`

	Storage Storage `yaml:"storage"`
}

// Storage configures the BadgerDB engine.
type Storage struct {
	// Dir holds the engine's database files. Defaults to a dot-directory
	// inside DataDir so metadata and samples travel together.
	Dir string `yaml:"dir"`

	// MaxMemoryMB bounds the engine's memory use.
	MaxMemoryMB int64 `yaml:"max_memory_mb"`
}

// Load reads the config file at path (optional; empty path skips the file),
// applies TARANSAYD_* environment overrides, fills in defaults and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Config{
		Listen:    DefaultListen,
		ChartFile: DefaultChartFile,
		Storage:   Storage{MaxMemoryMB: DefaultMaxMemoryMB},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if cfg.DataDir == "" {
		return Config{}, fmt.Errorf("data_dir is required (config file or TARANSAYD_DATA_DIR)")
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = filepath.Join(cfg.DataDir, ".engine")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TARANSAYD_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("TARANSAYD_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("TARANSAYD_CHART_FILE"); v != "" {
		cfg.ChartFile = v
	}
	if v := os.Getenv("TARANSAYD_STORAGE_DIR"); v != "" {
		cfg.Storage.Dir = v
	}
	if v := os.Getenv("TARANSAYD_STORAGE_MAX_MEMORY_MB"); v != "" {
		if mb, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Storage.MaxMemoryMB = mb
		}
	}
}
