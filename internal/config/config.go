// Package config holds scan configuration: resource ceilings and
// simulation parameters, loadable from a YAML file with flag overrides
// applied by the CLI.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults for resource ceilings and the simulation window.
const (
	DefaultMaxFileBytes = 4 * 1024 * 1024
	DefaultMaxFiles     = 50000
	DefaultHorizonSec   = 10.0
)

// Scan configures one scan run.
type Scan struct {
	// MaxFileBytes caps a single blueprint file.
	MaxFileBytes int64 `yaml:"max_file_bytes"`
	// MaxFiles caps the number of files accepted per scan.
	MaxFiles int `yaml:"max_files"`
	// HorizonSec is the cadence simulation window; per unit it is
	// stretched to cover three cycles of the slowest weapon.
	HorizonSec float64 `yaml:"horizon_sec"`
	// IncludeTraces embeds full event traces in the scan result.
	IncludeTraces bool `yaml:"include_traces"`
}

// Default returns the default scan configuration.
func Default() Scan {
	return Scan{
		MaxFileBytes: DefaultMaxFileBytes,
		MaxFiles:     DefaultMaxFiles,
		HorizonSec:   DefaultHorizonSec,
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (Scan, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg.normalized(), nil
}

func (c Scan) normalized() Scan {
	if c.MaxFileBytes <= 0 {
		c.MaxFileBytes = DefaultMaxFileBytes
	}
	if c.MaxFiles <= 0 {
		c.MaxFiles = DefaultMaxFiles
	}
	if c.HorizonSec <= 0 {
		c.HorizonSec = DefaultHorizonSec
	}
	return c
}
