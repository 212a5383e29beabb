// Package config provides YAML-based run configuration with embedded
// defaults.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var embeddedConfig []byte

// Format values accepted by the format setting.
const (
	FormatAuto   = "auto"
	FormatCSV    = "csv"
	FormatOFX    = "ofx"
	FormatSQLite = "sqlite"
)

// Config holds run options. Zero values are meaningful (quiet run, stdout
// output, automatic format detection), so a missing key falls back
// naturally.
type Config struct {
	Verbose bool   `yaml:"verbose"`
	Output  string `yaml:"output"`
	Format  string `yaml:"format"`
}

// LoadEmbedded parses the built-in default configuration.
func LoadEmbedded() (*Config, error) {
	cfg, err := parse(embeddedConfig)
	if err != nil {
		return nil, fmt.Errorf("embedded config is invalid: %w", err)
	}
	return cfg, nil
}

// LoadFromFile parses a user-supplied configuration file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

func parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if cfg.Format == "" {
		cfg.Format = FormatAuto
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Format {
	case FormatAuto, FormatCSV, FormatOFX, FormatSQLite:
		return nil
	}
	return fmt.Errorf("unknown format %q (expected auto, csv, ofx, or sqlite)", c.Format)
}
