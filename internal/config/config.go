// Package config loads song-swiper settings from a TOML file and secrets from the environment.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// ErrConfigExists is returned by CreateConfigFile when the target already exists.
var ErrConfigExists = errors.New("config file already exists")

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Catalog CatalogConfig `toml:"catalog"`
	Cache   CacheConfig   `toml:"cache"`
	Token   TokenConfig   `toml:"token"`
	Filter  FilterConfig  `toml:"filter"`
	Spotify SpotifyConfig `toml:"spotify"`
	YouTube YouTubeConfig `toml:"youtube"`
	Gemini  GeminiConfig  `toml:"gemini"`
	Log     LogConfig     `toml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr        string `toml:"addr"`
	RedirectURI string `toml:"redirect_uri"`
}

// CatalogConfig selects the active catalog and tunes outbound calls.
type CatalogConfig struct {
	Source         string   `toml:"source"`
	Limit          int      `toml:"limit"`
	Timeout        Duration `toml:"timeout"`
	RateLimit      float64  `toml:"rate_limit"`
	PlaceholderArt string   `toml:"placeholder_art"`
}

// CacheConfig controls the /songs response cache.
type CacheConfig struct {
	Enabled bool     `toml:"enabled"`
	TTL     Duration `toml:"ttl"`
}

// TokenConfig controls client-credentials token lifetime.
type TokenConfig struct {
	SafetyMargin Duration `toml:"safety_margin"`
	FixedTTL     Duration `toml:"fixed_ttl"`
}

// FilterConfig holds the duration filter bounds and disallowed keywords.
type FilterConfig struct {
	MinSeconds int      `toml:"min_seconds"`
	MaxSeconds int      `toml:"max_seconds"`
	Keywords   []string `toml:"keywords"`
}

// SpotifyConfig contains non-secret Spotify settings.
type SpotifyConfig struct {
	TopPlaylistID  string `toml:"top_playlist_id"`
	RequirePreview bool   `toml:"require_preview"`
}

// YouTubeConfig contains non-secret YouTube Data API settings.
type YouTubeConfig struct {
	RegionCode string `toml:"region_code"`
	CategoryID string `toml:"category_id"`
}

// GeminiConfig contains recommender settings.
type GeminiConfig struct {
	Model string `toml:"model"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration is a time.Duration decoded from strings like "10s" or "1h".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DefaultConfig returns a Config populated from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// LoadConfig reads a TOML file over the defaults, so the file only needs the keys it changes.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadOrDefault loads path if it exists and falls back to DefaultConfig otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}

// Validate checks value ranges. Credentials are not checked here; they are
// validated per request so a missing key surfaces as a 500 on /songs.
func (c *Config) Validate() error {
	if c.Catalog.Source == "" {
		return errors.New("catalog.source must be set")
	}
	if c.Catalog.Limit < 1 || c.Catalog.Limit > 50 {
		return fmt.Errorf("catalog.limit must be between 1 and 50, got %d", c.Catalog.Limit)
	}
	if c.Catalog.Timeout.Duration <= 0 {
		return errors.New("catalog.timeout must be positive")
	}
	if c.Catalog.RateLimit < 0 {
		return errors.New("catalog.rate_limit must not be negative")
	}
	if c.Token.SafetyMargin.Duration < 0 || c.Token.FixedTTL.Duration < 0 {
		return errors.New("token durations must not be negative")
	}
	if c.Filter.MaxSeconds <= c.Filter.MinSeconds {
		return fmt.Errorf("filter.max_seconds (%d) must exceed filter.min_seconds (%d)", c.Filter.MaxSeconds, c.Filter.MinSeconds)
	}
	if c.Cache.Enabled && c.Cache.TTL.Duration <= 0 {
		return errors.New("cache.ttl must be positive when the cache is enabled")
	}
	return nil
}

// CreateConfigFile writes the embedded example config to path.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w at %s", ErrConfigExists, path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
