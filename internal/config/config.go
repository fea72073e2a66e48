package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"

	"github.com/samhoang/ashpm/internal/fileutil"
)

const maxFetchAttempts = 3

// Config represents the ashpm.toml configuration file
type Config struct {
	// Ashita install root; addons/ and plugins/ live directly below it
	Root string `toml:"root"`

	// Script file edited by the script commands, relative to Root unless absolute
	Script string `toml:"script"`

	// GitHub token for release lookups and private clones
	GitHubToken string `toml:"github_token,omitempty"`

	// Upper bound for one fetch, e.g. "2m"
	FetchTimeout string `toml:"fetch_timeout"`

	// Attempts for retryable transport failures
	MaxAttempts int `toml:"max_attempts"`

	// Concurrent updates for update --all
	Parallel int `toml:"parallel"`

	LogLevel string `toml:"log_level"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Script:       filepath.Join("scripts", "default.txt"),
		FetchTimeout: "2m",
		MaxAttempts:  maxFetchAttempts,
		Parallel:     4,
		LogLevel:     "info",
	}
}

// LoadConfig loads ashpm.toml from the state directory and applies
// environment overrides.
func LoadConfig(stateDir string) (*Config, error) {
	configPath := filepath.Join(stateDir, "ashpm.toml")

	cfg := DefaultConfig()
	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	}

	if root := os.Getenv("ASHPM_ROOT"); root != "" {
		cfg.Root = root
	}
	if cfg.GitHubToken == "" {
		cfg.GitHubToken = os.Getenv("GITHUB_TOKEN")
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	if c.Root != "" {
		root, err := homedir.Expand(c.Root)
		if err != nil {
			return fmt.Errorf("expand root: %w", err)
		}
		c.Root = filepath.Clean(root)
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.MaxAttempts > maxFetchAttempts {
		c.MaxAttempts = maxFetchAttempts
	}
	if c.Parallel < 1 {
		c.Parallel = 1
	}
	if _, err := time.ParseDuration(c.FetchTimeout); err != nil {
		return fmt.Errorf("invalid fetch_timeout %q: %w", c.FetchTimeout, err)
	}
	return nil
}

// Timeout returns the parsed fetch timeout.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.FetchTimeout)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

// ScriptPath resolves the script path against the root.
func (c *Config) ScriptPath() string {
	if filepath.IsAbs(c.Script) {
		return c.Script
	}
	return filepath.Join(c.Root, c.Script)
}

// Save writes ashpm.toml to disk
func (c *Config) Save(stateDir string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(filepath.Join(stateDir, "ashpm.toml"), data, 0o600)
}
