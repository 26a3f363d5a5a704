package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/fieldcat/internal/config"
	"github.com/zjrosen/fieldcat/internal/log"
)

var (
	version = "dev"
	cfgFile string
	debug   bool
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:          "fieldcat",
	Short:        "Inspect and enrich hierarchical observation catalogs",
	Long:         `fieldcat works with stored observation catalogs: it renders catalog trees, resolves citation locators into canonical bibliographic codes, and fetches publication records.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/fieldcat/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"write a debug log to fieldcat.log")
}

func initConfig() {
	defaults := config.Default()
	viper.SetDefault("derived_failure", defaults.DerivedFailure)
	viper.SetDefault("ads.record_ttl_hours", defaults.ADS.RecordTTLHours)
	viper.SetDefault("ads.skip_cache", defaults.ADS.SkipCache)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .fieldcat/config.yaml (current directory)
		// 2. ~/.config/fieldcat/config.yaml (user config)
		if _, err := os.Stat(".fieldcat/config.yaml"); err == nil {
			viper.SetConfigFile(".fieldcat/config.yaml")
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "fieldcat"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	// ADS tokens usually live in the environment, not the file.
	viper.SetEnvPrefix("FIELDCAT")
	_ = viper.BindEnv("ads.token", "FIELDCAT_ADS_TOKEN", "ADS_API_TOKEN")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			defaultPath := ".fieldcat/config.yaml"
			if writeErr := config.WriteDefault(defaultPath); writeErr == nil {
				viper.SetConfigFile(defaultPath)
				_ = viper.ReadInConfig()
			}
			// If write fails, just continue with defaults (no config file)
		}
	}

	_ = viper.Unmarshal(&cfg)

	if os.Getenv("FIELDCAT_DEBUG") != "" {
		debug = true
	}
	if debug {
		logPath := cfg.LogPath
		if logPath == "" {
			logPath = "fieldcat.log"
		}
		_, _ = log.Init(logPath)
	}
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
