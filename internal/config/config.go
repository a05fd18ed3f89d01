// Package config loads isg settings from .isg/config.yaml with ISG_*
// environment overrides. Command-line flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jward/isg/internal/extract"
)

// DefaultPath is where the CLI looks for a config file when --config is
// not given.
const DefaultPath = ".isg/config.yaml"

type Config struct {
	// Database is the SQLite snapshot file.
	Database string `yaml:"database"`

	// Languages restricts indexing. Empty means every supported language.
	Languages []string `yaml:"languages"`

	// Ignore holds extra gitignore-style patterns on top of .gitignore.
	Ignore []string `yaml:"ignore"`

	// Workers bounds parallel extraction. 0 means one per CPU.
	Workers int `yaml:"workers"`

	// CycleKinds lists the relation kinds cycle detection follows.
	CycleKinds []string `yaml:"cycle_kinds"`

	Watch struct {
		Debounce time.Duration `yaml:"debounce"`
	} `yaml:"watch"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default returns the settings used when no file or environment is present.
func Default() Config {
	var cfg Config
	cfg.Database = ".isg/isg.db"
	cfg.CycleKinds = []string{"calls", "uses"}
	cfg.Watch.Debounce = 200 * time.Millisecond
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return cfg
}

// Load reads path over the defaults, then applies a .env file from the
// working directory (if any) and the ISG_* environment. A missing file is
// not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	// Existing environment variables win over .env entries.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("ISG_DB"); v != "" {
		c.Database = v
	}
	if v := os.Getenv("ISG_LANGUAGES"); v != "" {
		c.Languages = splitList(v)
	}
	if v := os.Getenv("ISG_IGNORE"); v != "" {
		c.Ignore = append(c.Ignore, splitList(v)...)
	}
	if v := os.Getenv("ISG_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: ISG_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("ISG_CYCLE_KINDS"); v != "" {
		c.CycleKinds = splitList(v)
	}
	if v := os.Getenv("ISG_DEBOUNCE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: ISG_DEBOUNCE: %w", err)
		}
		c.Watch.Debounce = d
	}
	if v := os.Getenv("ISG_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("ISG_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	return nil
}

// Validate checks values that are cheap to get wrong in a hand-edited file.
func (c Config) Validate() error {
	if c.Database == "" {
		return errors.New("config: database path is empty")
	}
	for _, lang := range c.Languages {
		if !slices.Contains(extract.Languages(), lang) {
			return fmt.Errorf("config: unsupported language %q (supported: %s)",
				lang, strings.Join(extract.Languages(), ", "))
		}
	}
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must be >= 0, got %d", c.Workers)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("config: watch.debounce must be >= 0, got %s", c.Watch.Debounce)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
