package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lotas/tabsort/internal/naming"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

const (
	StorageSQLite = "sqlite"
	StorageBridge = "bridge"
)

// Config holds all runtime configuration. Precedence, lowest first:
// defaults, config file, TABSORT_* environment, command-line flags.
type Config struct {
	// Extension bridge
	Port        int           `yaml:"port"`
	CallTimeout time.Duration `yaml:"call_timeout"`

	// HTTP control API
	HTTPAddr string `yaml:"http_addr"`

	// Persistence. Storage picks where settings live: the local database or
	// the extension's synced storage.
	DBPath  string `yaml:"db_path"`
	Storage string `yaml:"storage"`

	// Logging
	LogDir   string `yaml:"log_dir"`
	LogLevel string `yaml:"log_level"`

	// Sorting
	Locale       string   `yaml:"locale"`
	DomainPolicy string   `yaml:"domain_policy"`
	Exclude      []string `yaml:"exclude"`

	// Offline tab source. Empty means the platform's Firefox directory.
	FirefoxDir string `yaml:"firefox_dir"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	cfg := &Config{
		Port:         19191,
		CallTimeout:  5 * time.Second,
		HTTPAddr:     "127.0.0.1:19192",
		Storage:      StorageSQLite,
		LogLevel:     "info",
		Locale:       "en",
		DomainPolicy: "publicsuffix",
	}
	if home, err := os.UserHomeDir(); err == nil {
		cfg.DBPath = filepath.Join(home, ".local", "share", "tabsort", "tabsort.db")
		cfg.LogDir = filepath.Join(home, ".local", "share", "tabsort")
	}
	return cfg
}

// DefaultPath returns ~/.config/tabsort/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "tabsort", "config.yaml")
}

// Load reads configuration from an optional .env file, the YAML file at
// path and the environment. An empty path means DefaultPath, which may be
// missing; an explicit path must exist.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := Defaults()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnvIntOrDefault("TABSORT_PORT", c.Port)
	c.CallTimeout = getEnvDurationOrDefault("TABSORT_CALL_TIMEOUT", c.CallTimeout)
	c.HTTPAddr = getEnvOrDefault("TABSORT_HTTP_ADDR", c.HTTPAddr)
	c.DBPath = getEnvOrDefault("TABSORT_DB_PATH", c.DBPath)
	c.Storage = getEnvOrDefault("TABSORT_STORAGE", c.Storage)
	c.LogDir = getEnvOrDefault("TABSORT_LOG_DIR", c.LogDir)
	c.LogLevel = getEnvOrDefault("TABSORT_LOG_LEVEL", c.LogLevel)
	c.Locale = getEnvOrDefault("TABSORT_LOCALE", c.Locale)
	c.DomainPolicy = getEnvOrDefault("TABSORT_DOMAIN_POLICY", c.DomainPolicy)
	c.FirefoxDir = getEnvOrDefault("TABSORT_FIREFOX_DIR", c.FirefoxDir)
	if val := os.Getenv("TABSORT_EXCLUDE"); val != "" {
		c.Exclude = splitList(val)
	}
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("call_timeout must be positive, got %s", c.CallTimeout)
	}
	switch c.Storage {
	case StorageSQLite, StorageBridge:
	default:
		return fmt.Errorf("storage must be %q or %q, got %q", StorageSQLite, StorageBridge, c.Storage)
	}
	if _, err := naming.PolicyByName(c.DomainPolicy); err != nil {
		return err
	}
	if _, err := c.Language(); err != nil {
		return err
	}
	return nil
}

// Language returns the collation locale.
func (c *Config) Language() (language.Tag, error) {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.Und, fmt.Errorf("invalid locale %q: %w", c.Locale, err)
	}
	return tag, nil
}

// Deriver returns the naming deriver for the configured domain policy.
func (c *Config) Deriver() (naming.Deriver, error) {
	policy, err := naming.PolicyByName(c.DomainPolicy)
	if err != nil {
		return naming.Deriver{}, err
	}
	return naming.Deriver{Policy: policy}, nil
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

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
