// Package config loads the settings of the ledger binary from a YAML file with
// LEDGER_* environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/luca-patrignani/docledger/chain"
)

// ErrInvalid wraps every validation and environment parsing failure.
var ErrInvalid = errors.New("config: invalid value")

var logLevels = []string{"debug", "info", "warn", "error"}

// Config holds the ledger settings.
type Config struct {
	// Prefix is the proof-of-work prefix, lowercase hex.
	Prefix string `yaml:"prefix"`
	// Workers is the number of mining workers. Zero selects one per CPU.
	Workers int `yaml:"workers"`
	// MineInterval enables the mining watcher when positive.
	MineInterval time.Duration `yaml:"mine_interval"`
	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log_level"`
	// Genesis is the JSON payload of a genesis document. Empty means no genesis block.
	Genesis string `yaml:"genesis"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Prefix:   chain.DefaultPrefix,
		LogLevel: "info",
	}
}

// Load reads path over the defaults, applies environment overrides and validates
// the result. An empty path skips the file.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config load: %w", err)
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return Config{}, fmt.Errorf("config unmarshal: %w", err)
		}
	}
	if err := applyEnvOverrides(&c); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports the first setting the ledger cannot run with.
func (c Config) Validate() error {
	if !chain.ValidPrefix(c.Prefix) {
		return fmt.Errorf("%w: prefix %q is not lowercase hex", ErrInvalid, c.Prefix)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers %d", ErrInvalid, c.Workers)
	}
	if c.MineInterval < 0 {
		return fmt.Errorf("%w: mine_interval %s", ErrInvalid, c.MineInterval)
	}
	if !slices.Contains(logLevels, c.LogLevel) {
		return fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}
	if c.Genesis != "" && !json.Valid([]byte(c.Genesis)) {
		return fmt.Errorf("%w: genesis is not JSON", ErrInvalid)
	}
	return nil
}

// applyEnvOverrides replaces settings with LEDGER_ environment variables.
func applyEnvOverrides(c *Config) error {
	if v := os.Getenv("LEDGER_PREFIX"); v != "" {
		c.Prefix = v
	}
	if v := os.Getenv("LEDGER_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: LEDGER_WORKERS: %w", ErrInvalid, err)
		}
		c.Workers = n
	}
	if v := os.Getenv("LEDGER_MINE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: LEDGER_MINE_INTERVAL: %w", ErrInvalid, err)
		}
		c.MineInterval = d
	}
	if v := os.Getenv("LEDGER_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LEDGER_GENESIS"); v != "" {
		c.Genesis = v
	}
	return nil
}
