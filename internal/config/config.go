// Package config provides configuration types, defaults, and persistence
// for fieldcat.
package config

import (
	"fmt"
	"time"

	"github.com/zjrosen/fieldcat/internal/catalog"
)

// ADSConfig holds the bibliographic service settings.
type ADSConfig struct {
	// BaseURL overrides the API host, mainly for testing.
	BaseURL string `mapstructure:"base_url"`

	// Token is the API bearer token. Empty disables lookups.
	Token string `mapstructure:"token"`

	// RecordTTLHours bounds how long fetched records are served from cache.
	RecordTTLHours int `mapstructure:"record_ttl_hours"`

	// SkipCache forces live reads on every lookup.
	SkipCache bool `mapstructure:"skip_cache"`
}

// RecordTTL returns the cache TTL as a duration.
func (a ADSConfig) RecordTTL() time.Duration {
	return time.Duration(a.RecordTTLHours) * time.Hour
}

// Config holds all configuration options for fieldcat.
type Config struct {
	// DerivedFailure selects what a derived value read does when its
	// computation fails: "raise", "warn", "skip", or "ignore".
	DerivedFailure string `mapstructure:"derived_failure"`

	// LogPath points the file logger somewhere other than the default.
	LogPath string `mapstructure:"log_path"`

	ADS ADSConfig `mapstructure:"ads"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		DerivedFailure: catalog.PolicyRaise.String(),
		ADS: ADSConfig{
			RecordTTLHours: 24,
		},
	}
}

// Validate checks cross-field consistency.
func (c Config) Validate() error {
	if _, err := c.FailurePolicy(); err != nil {
		return err
	}
	if c.ADS.RecordTTLHours < 0 {
		return fmt.Errorf("ads.record_ttl_hours cannot be negative")
	}
	return nil
}

// FailurePolicy parses the configured derived-failure spelling.
func (c Config) FailurePolicy() (catalog.FailurePolicy, error) {
	return catalog.ParseFailurePolicy(c.DerivedFailure)
}
