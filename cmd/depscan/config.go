package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/gnana997/depscan/pkg/cache"
	"github.com/gnana997/depscan/pkg/indexer"
	"github.com/gnana997/depscan/pkg/util"
)

const (
	configName = ".depscan"
	configType = "yaml"
	envPrefix  = "DEPSCAN"
)

// Config holds settings from .depscan.yaml, DEPSCAN_* environment
// variables and flags, in increasing precedence.
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// Workers sizes both the parser pools and the scan worker pool.
	// 0 = auto-detect.
	Workers int `mapstructure:"workers"`

	CacheEntries int `mapstructure:"cache_entries"`

	Scan  ScanConfig  `mapstructure:"scan"`
	Watch WatchConfig `mapstructure:"watch"`
	MCP   MCPConfig   `mapstructure:"mcp"`
}

// ScanConfig configures workspace scans.
type ScanConfig struct {
	Include []string `mapstructure:"include"`
	Exclude []string `mapstructure:"exclude"`

	// MaxFileSize is a human readable size such as "4 MB".
	MaxFileSize string `mapstructure:"max_file_size"`
}

// WatchConfig configures the watch command.
type WatchConfig struct {
	DebounceMs  int    `mapstructure:"debounce_ms"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// MCPConfig configures the serve command.
type MCPConfig struct {
	// LogPath is the JSONL tool call log. Empty disables it.
	LogPath string `mapstructure:"log"`
}

func applyDefaults(v *viper.Viper) {
	scan := indexer.DefaultScanOptions()

	v.SetDefault("log_level", string(util.LevelWarn))
	v.SetDefault("log_format", string(util.FormatText))
	v.SetDefault("workers", 0)
	v.SetDefault("cache_entries", cache.DefaultConfig().MaxEntries)
	v.SetDefault("scan.include", scan.Include)
	v.SetDefault("scan.exclude", scan.Exclude)
	v.SetDefault("scan.max_file_size", humanize.IBytes(uint64(scan.MaxFileSize)))
	v.SetDefault("watch.debounce_ms", indexer.DefaultWatchOptions().DebounceMs)
	v.SetDefault("watch.metrics_addr", "")
	v.SetDefault("mcp.log", "")
}

// loadConfig reads configuration into cfg. If configPath is empty the
// config file is searched in the working directory and $HOME; a missing
// file is not an error.
func loadConfig(v *viper.Viper, configPath string) (*Config, error) {
	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Validate checks values that flags and files cannot type-check.
func (c *Config) Validate() error {
	if _, err := util.ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if _, err := util.ParseLogFormat(c.LogFormat); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if c.CacheEntries <= 0 {
		return fmt.Errorf("cache_entries must be positive, got %d", c.CacheEntries)
	}
	if _, err := c.maxFileSize(); err != nil {
		return err
	}
	return nil
}

func (c *Config) maxFileSize() (int64, error) {
	if c.Scan.MaxFileSize == "" || c.Scan.MaxFileSize == "0" {
		return 0, nil
	}
	size, err := humanize.ParseBytes(c.Scan.MaxFileSize)
	if err != nil {
		return 0, fmt.Errorf("invalid scan.max_file_size %q: %w", c.Scan.MaxFileSize, err)
	}
	return int64(size), nil
}

// ScanOptions converts the scan section to indexer options.
func (c *Config) ScanOptions() indexer.ScanOptions {
	size, _ := c.maxFileSize()
	return indexer.ScanOptions{
		Include:     c.Scan.Include,
		Exclude:     c.Scan.Exclude,
		MaxFileSize: size,
		Workers:     c.Workers,
	}
}

// WatchOptions converts the watch section to indexer options.
func (c *Config) WatchOptions() indexer.WatchOptions {
	options := indexer.DefaultWatchOptions()
	options.DebounceMs = c.Watch.DebounceMs
	return options
}

// LoggerConfig converts the logging settings. Logs always go to stderr.
func (c *Config) LoggerConfig() util.LoggerConfig {
	level, _ := util.ParseLogLevel(c.LogLevel)
	format, _ := util.ParseLogFormat(c.LogFormat)
	config := util.DefaultLoggerConfig()
	config.Level = level
	config.Format = format
	return config
}
