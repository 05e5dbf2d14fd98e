// Package config loads talkcents.yaml, .env files and TALKCENTS_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/talkcents/talkcents/internal/categories"
	"github.com/talkcents/talkcents/internal/logging"
	"github.com/talkcents/talkcents/internal/model"
	"github.com/talkcents/talkcents/internal/tokenstore"
)

// FileName is the config file name inside the config directory.
const FileName = "talkcents.yaml"

// Environment variables that override file values.
const (
	EnvBaseURL   = "TALKCENTS_BASE_URL"
	EnvTimeout   = "TALKCENTS_TIMEOUT"
	EnvTokenFile = "TALKCENTS_TOKEN_FILE"
	EnvTokenKey  = "TALKCENTS_TOKEN_KEY"
	EnvLogLevel  = "TALKCENTS_LOG_LEVEL"
	EnvLogFormat = "TALKCENTS_LOG_FORMAT"
)

// Config represents talkcents.yaml.
type Config struct {
	API            APIConfig        `yaml:"api"`
	Auth           AuthConfig       `yaml:"auth"`
	Log            LogConfig        `yaml:"log"`
	Categories     []model.Category `yaml:"categories,omitempty"`
	CategoriesFile string           `yaml:"categories_file,omitempty"`
	ImportDir      string           `yaml:"import_dir,omitempty"`
	ActivityFile   string           `yaml:"activity_file,omitempty"`
}

// APIConfig locates the backend.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// AuthConfig controls where the bearer token is kept.
type AuthConfig struct {
	TokenFile string `yaml:"token_file"`
	TokenKey  string `yaml:"token_key,omitempty"` // prefer TALKCENTS_TOKEN_KEY
}

// LogConfig controls the CLI logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "human" or "json"
}

// Dir returns the default config directory ($XDG_CONFIG_HOME/talkcents
// or ~/.config/talkcents on Linux).
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config dir: %w", err)
	}
	return filepath.Join(base, "talkcents"), nil
}

// DefaultPath returns the default config file path.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Default returns a Config for a new installation whose files live in dir.
func Default(dir string) *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8000/api",
			Timeout: 15 * time.Second,
		},
		Auth: AuthConfig{
			TokenFile: filepath.Join(dir, "token"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatHuman,
		},
		Categories:   categories.Defaults(),
		ActivityFile: filepath.Join(dir, "activity.csv"),
	}
}

// Load reads a talkcents.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes cfg to path with owner-only permissions since it may hold
// the token key.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Resolve loads .env, reads path (falling back to Default when the file
// does not exist), applies environment overrides and validates.
func Resolve(path string) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = Default(filepath.Dir(path))
	} else if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from TALKCENTS_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str(EnvBaseURL, &c.API.BaseURL)
	str(EnvTokenFile, &c.Auth.TokenFile)
	str(EnvTokenKey, &c.Auth.TokenKey)
	str(EnvLogLevel, &c.Log.Level)
	str(EnvLogFormat, &c.Log.Format)

	if v, ok := lookup(EnvTimeout); ok && strings.TrimSpace(v) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvTimeout, err)
		}
		c.API.Timeout = d
	}
	return nil
}

// Validate reports every problem with the configuration in one error.
func (c *Config) Validate() error {
	var problems []string

	if c.API.BaseURL == "" {
		problems = append(problems, "api.base_url is required")
	} else if u, err := url.Parse(c.API.BaseURL); err != nil {
		problems = append(problems, fmt.Sprintf("invalid api.base_url %q: %v", c.API.BaseURL, err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		problems = append(problems, fmt.Sprintf("invalid api.base_url scheme %q: must be http or https", u.Scheme))
	} else if u.Host == "" {
		problems = append(problems, fmt.Sprintf("invalid api.base_url %q: missing host", c.API.BaseURL))
	}

	if c.API.Timeout < 0 {
		problems = append(problems, fmt.Sprintf("invalid api.timeout %s: must not be negative", c.API.Timeout))
	}

	if c.Auth.TokenFile == "" {
		problems = append(problems, "auth.token_file is required")
	}
	if c.Auth.TokenKey != "" && len(c.Auth.TokenKey) < tokenstore.MinKeyLength {
		problems = append(problems, fmt.Sprintf("auth.token_key must be at least %d characters", tokenstore.MinKeyLength))
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, fmt.Sprintf("invalid log.level %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", logging.FormatHuman, logging.FormatJSON:
	default:
		problems = append(problems, fmt.Sprintf("invalid log.format %q: must be %s or %s", c.Log.Format, logging.FormatHuman, logging.FormatJSON))
	}

	for i, cat := range c.Categories {
		if strings.TrimSpace(cat.Name) == "" {
			problems = append(problems, fmt.Sprintf("categories[%d]: name is required", i))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Registry builds the category registry from the configured seeds and
// the optional categories file. Without seeds the defaults are used.
func (c *Config) Registry() (*categories.Registry, error) {
	seeds := c.Categories
	if len(seeds) == 0 {
		seeds = categories.Defaults()
	}
	if c.CategoriesFile == "" {
		return categories.NewRegistry(seeds), nil
	}
	return categories.Load(c.CategoriesFile, seeds...)
}
