package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c != Default() {
		t.Fatalf("expected defaults, got %+v", c)
	}
	if c.Prefix != "0000" || c.LogLevel != "info" {
		t.Fatalf("unexpected defaults %+v", c)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
prefix: "000"
workers: 3
mine_interval: 2s
log_level: debug
genesis: '{"name":"genesis"}'
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := Config{Prefix: "000", Workers: 3, MineInterval: 2 * time.Second, LogLevel: "debug", Genesis: `{"name":"genesis"}`}
	if c != want {
		t.Fatalf("expected %+v, got %+v", want, c)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, "workers: 2\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Prefix != "0000" || c.Workers != 2 || c.LogLevel != "info" {
		t.Fatalf("unexpected config %+v", c)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "prefix: \"00\"\nworkers: 3\n")
	t.Setenv("LEDGER_PREFIX", "0")
	t.Setenv("LEDGER_WORKERS", "8")
	t.Setenv("LEDGER_MINE_INTERVAL", "150ms")
	t.Setenv("LEDGER_LOG_LEVEL", "warn")
	t.Setenv("LEDGER_GENESIS", `"hello"`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := Config{Prefix: "0", Workers: 8, MineInterval: 150 * time.Millisecond, LogLevel: "warn", Genesis: `"hello"`}
	if c != want {
		t.Fatalf("expected %+v, got %+v", want, c)
	}
}

func TestEnvParseErrors(t *testing.T) {
	t.Setenv("LEDGER_WORKERS", "many")
	if _, err := Load(""); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"prefix":   func(c *Config) { c.Prefix = "00G" },
		"workers":  func(c *Config) { c.Workers = -1 },
		"interval": func(c *Config) { c.MineInterval = -time.Second },
		"level":    func(c *Config) { c.LogLevel = "loud" },
		"genesis":  func(c *Config) { c.Genesis = "{" },
	}
	for name, mutate := range cases {
		c := Default()
		mutate(&c)
		if err := c.Validate(); !errors.Is(err, ErrInvalid) {
			t.Errorf("%s: expected ErrInvalid, got %v", name, err)
		}
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
