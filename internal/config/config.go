package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

const (
	defaultListen         = "127.0.0.1:3000"
	defaultTimezone       = "Asia/Seoul"
	defaultLogLevel       = "info"
	defaultRefreshCron    = "*/5 * * * *"
	defaultNotifyCron     = "* * * * *"
	defaultMaxOccurrences = 5000
)

// HolidayConfig describes a single holiday ICS subscription source.
type HolidayConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// RepeatConfig bounds recurring series expansion.
type RepeatConfig struct {
	// MaxOccurrences caps the instances generated for one series.
	MaxOccurrences int `yaml:"max_occurrences" json:"max_occurrences"`
	// OpenEndedHorizonDays is how far a series without an end date is
	// expanded. Zero means such a series is stored as a single event.
	OpenEndedHorizonDays int `yaml:"open_ended_horizon_days" json:"open_ended_horizon_days"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API server.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone event dates and times are read in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// APIBaseURL is the server the agent talks to.
	APIBaseURL string `yaml:"api_base_url" json:"api_base_url"`

	// RefreshCron is a cron-style schedule string (e.g. "*/5 * * * *")
	// used by the agent to reload events.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// NotifyCron schedules the agent's reminder checks.
	NotifyCron string `yaml:"notify_check" json:"notify_check"`

	Repeat RepeatConfig `yaml:"repeat" json:"repeat"`

	// Holidays is the list of subscribed holiday ICS sources.
	Holidays []HolidayConfig `yaml:"holidays" json:"holidays"`

	// ICSCacheDir stores fetched holiday feeds. Empty disables the disk cache.
	ICSCacheDir string `yaml:"ics_cache_dir" json:"ics_cache_dir"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      defaultListen,
		Timezone:    defaultTimezone,
		LogLevel:    defaultLogLevel,
		APIBaseURL:  "http://" + defaultListen,
		RefreshCron: defaultRefreshCron,
		NotifyCron:  defaultNotifyCron,
		Repeat: RepeatConfig{
			MaxOccurrences: defaultMaxOccurrences,
		},
		Holidays:  []HolidayConfig{},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		c.LogLevel = defaultLogLevel
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = "http://" + c.Listen
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.NotifyCron == "" {
		c.NotifyCron = defaultNotifyCron
	}
	if c.Repeat.MaxOccurrences <= 0 {
		c.Repeat.MaxOccurrences = defaultMaxOccurrences
	}
	if c.Repeat.OpenEndedHorizonDays < 0 {
		c.Repeat.OpenEndedHorizonDays = 0
	}
	if c.Holidays == nil {
		c.Holidays = []HolidayConfig{}
	}
}

// Location resolves Timezone, falling back to UTC when the zone database
// does not know it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file + rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".evcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
