package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config with yaml tags for persistence.
type fileConfig struct {
	DerivedFailure string `yaml:"derived_failure"`
	LogPath        string `yaml:"log_path,omitempty"`
	ADS            struct {
		BaseURL        string `yaml:"base_url,omitempty"`
		Token          string `yaml:"token,omitempty"`
		RecordTTLHours int    `yaml:"record_ttl_hours"`
		SkipCache      bool   `yaml:"skip_cache"`
	} `yaml:"ads"`
}

// WriteDefault writes the default configuration to path, creating parent
// directories. The write is atomic: a temp file is renamed into place.
func WriteDefault(path string) error {
	return Write(path, Default())
}

// Write persists cfg to path as YAML.
func Write(path string, cfg Config) error {
	var fc fileConfig
	fc.DerivedFailure = cfg.DerivedFailure
	fc.LogPath = cfg.LogPath
	fc.ADS.BaseURL = cfg.ADS.BaseURL
	fc.ADS.Token = cfg.ADS.Token
	fc.ADS.RecordTTLHours = cfg.ADS.RecordTTLHours
	fc.ADS.SkipCache = cfg.ADS.SkipCache

	data, err := yaml.Marshal(&fc)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".fieldcat.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}
