package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Exclude       Exclude       `toml:"exclude"`
	Tests         Tests         `toml:"tests"`
	Watch         Watch         `toml:"watch"`
	Observability Observability `toml:"observability"`
}

type Exclude struct {
	// Dirs are matched against path segments while walking; vendor and
	// build trees never contribute modules. Glob syntax per segment.
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Tests struct {
	// Patterns match test-shaped filenames. conftest.py matches neither
	// default and is correctly left out of selections.
	Patterns []string `toml:"patterns"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
	// RescansPerSecond bounds how often watch mode rebuilds the graph.
	RescansPerSecond float64 `toml:"rescans_per_second"`
}

type Observability struct {
	MetricsAddr  string `toml:"metrics_addr"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
}

// Default returns the configuration used when no config file exists.
// The exclusion list mirrors the usual Python project clutter.
func Default() *Config {
	return &Config{
		Exclude: Exclude{
			Dirs: []string{".git", "target", ".tox", ".venv", "venv", "__pycache__", "node_modules"},
		},
		Tests: Tests{
			Patterns: []string{"test_*.py", "*_test.py"},
		},
		Watch: Watch{
			Debounce:         500 * time.Millisecond,
			RescansPerSecond: 2,
		},
	}
}

// Load reads a TOML config file and fills in defaults for anything the
// file leaves unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	def := Default()
	if len(cfg.Exclude.Dirs) == 0 {
		cfg.Exclude.Dirs = def.Exclude.Dirs
	}
	if len(cfg.Tests.Patterns) == 0 {
		cfg.Tests.Patterns = def.Tests.Patterns
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = def.Watch.Debounce
	}
	if cfg.Watch.RescansPerSecond == 0 {
		cfg.Watch.RescansPerSecond = def.Watch.RescansPerSecond
	}

	return cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to defaults
// when it does not. An unreadable or malformed file is still an error.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	return cfg, err
}
