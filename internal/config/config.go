package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/xmedia/internal/dom"
	"github.com/ibeckermayer/xmedia/internal/types"
)

// Config holds all application configuration
type Config struct {
	Version    int              `toml:"version"`
	LogLevel   string           `toml:"log_level"`
	Browser    BrowserConfig    `toml:"browser"`
	API        APIConfig        `toml:"api"`
	Extraction ExtractionConfig `toml:"extraction"`
	Cache      CacheConfig      `toml:"cache"`
	Server     ServerConfig     `toml:"server"`
}

type BrowserConfig struct {
	Headless          bool   `toml:"headless"`
	CaptureTimeoutSec int    `toml:"capture_timeout_sec"`
	DefaultSelector   string `toml:"default_selector"`
}

type APIConfig struct {
	Host             string `toml:"host"`
	GuestHost        string `toml:"guest_host"`
	QueryID          string `toml:"query_id"`
	BearerToken      string `toml:"bearer_token"`
	RequestCacheSize int    `toml:"request_cache_size"`
	MaxRetries       uint64 `toml:"max_retries"`
	TimeoutSec       int    `toml:"timeout_sec"`
}

type ExtractionConfig struct {
	types.Options
	TimeoutSec int `toml:"timeout_sec"`
}

type CacheConfig struct {
	DBPath        string `toml:"db_path"`
	PruneSchedule string `toml:"prune_schedule"`
	MaxAgeHours   int    `toml:"max_age_hours"`
	Timezone      string `toml:"timezone"`
}

type ServerConfig struct {
	Listen string `toml:"listen"`
	APIKey string `toml:"api_key"` // empty disables auth
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version:  1,
		LogLevel: "info",
		Browser: BrowserConfig{
			Headless:          true,
			CaptureTimeoutSec: 60,
			DefaultSelector:   dom.TweetMedia,
		},
		API: APIConfig{
			Host:             "https://x.com",
			GuestHost:        "https://api.x.com",
			QueryID:          "zAz9764BcLZOJ0JU2wrd1A",
			BearerToken:      "AAAAAAAAAAAAAAAAAAAAANRILgAAAAAAnNwIzUejRCOuH5E6I8xnZz4puTs%3D1Zv7ttfk8LF81IUq16cHjhLTvJu4FA33AGWWjCpTnA",
			RequestCacheSize: 16,
			MaxRetries:       3,
			TimeoutSec:       10,
		},
		Extraction: ExtractionConfig{
			Options:    types.DefaultOptions(),
			TimeoutSec: 30,
		},
		Cache: CacheConfig{
			PruneSchedule: "@every 6h",
			MaxAgeHours:   24 * 7,
			Timezone:      "UTC",
		},
		Server: ServerConfig{
			Listen: ":8080",
		},
	}
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "xmedia"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the directory for the media cache and outcome dumps
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "xmedia"), nil
}

// DBPath returns the configured sqlite path, or the default one under CacheDir
func (c *Config) DBPath() (string, error) {
	if c.Cache.DBPath != "" {
		return c.Cache.DBPath, nil
	}
	dir, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "media.db"), nil
}

// Load reads config from disk
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads config from the given path. Keys missing from the file keep their defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}

// ApplyEnv loads a .env file if present and applies XMEDIA_* overrides
func (c *Config) ApplyEnv() {
	if err := godotenv.Load(); err == nil {
		logrus.Debug("Loaded .env file")
	}

	if v, ok := os.LookupEnv("XMEDIA_HEADLESS"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Browser.Headless = b
		} else {
			logrus.Warnf("Ignoring invalid XMEDIA_HEADLESS=%q", v)
		}
	}
	if v := os.Getenv("XMEDIA_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("XMEDIA_LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv("XMEDIA_API_KEY"); v != "" {
		c.Server.APIKey = v
	}
	if v := os.Getenv("XMEDIA_QUERY_ID"); v != "" {
		c.API.QueryID = v
	}
	if v := os.Getenv("XMEDIA_CACHE_DB"); v != "" {
		c.Cache.DBPath = v
	}
}

// ParseLogLevel maps a config string to a logrus level, defaulting to info
func ParseLogLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logrus.DebugLevel
	case "info", "":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		logrus.Warnf("Invalid log level %q, using info", level)
		return logrus.InfoLevel
	}
}

// SetLogLevel applies the configured level to the global logger
func SetLogLevel(level string) {
	logrus.SetLevel(ParseLogLevel(level))
}
