package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings holds all application configuration.
type Settings struct {
	Download DownloadSettings `mapstructure:"download"`
	Network  NetworkSettings  `mapstructure:"network"`
	Logging  LoggingSettings  `mapstructure:"logging"`
	History  HistorySettings  `mapstructure:"history"`
}

// DownloadSettings controls where files go and how tasks are retried.
type DownloadSettings struct {
	OutputRoot  string        `mapstructure:"output_root"`
	FileType    string        `mapstructure:"file_type"` // Subdirectory under OutputRoot
	MaxAttempts int           `mapstructure:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	Workers     int           `mapstructure:"workers"` // 0 = one goroutine per URL
	ChunkSize   int           `mapstructure:"chunk_size"`
	Progress    bool          `mapstructure:"progress"`
}

// NetworkSettings tunes the HTTP client.
type NetworkSettings struct {
	Timeout               time.Duration `mapstructure:"timeout"`
	UserAgent             string        `mapstructure:"user_agent"`
	ProxyURL              string        `mapstructure:"proxy_url"`
	Protocol              string        `mapstructure:"protocol"` // auto, http1, http2, http3
	MaxConnectionsPerHost int           `mapstructure:"max_connections_per_host"`
}

// LoggingSettings configures the log file and console mirror.
type LoggingSettings struct {
	File         string `mapstructure:"file"`
	Level        string `mapstructure:"level"`
	Console      bool   `mapstructure:"console"`
	ConsoleLevel string `mapstructure:"console_level"`
}

// HistorySettings configures the run history database.
type HistorySettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// DefaultSettings returns the built-in configuration.
func DefaultSettings() *Settings {
	return &Settings{
		Download: DownloadSettings{
			OutputRoot:  "downloads",
			MaxAttempts: 3,
			RetryDelay:  2 * time.Second,
			Workers:     0,
			ChunkSize:   1024,
			Progress:    true,
		},
		Network: NetworkSettings{
			Timeout:               10 * time.Second,
			UserAgent:             "multidl/1.0",
			Protocol:              "auto",
			MaxConnectionsPerHost: 32,
		},
		Logging: LoggingSettings{
			File:         "download_log.txt",
			Level:        "INFO",
			Console:      true,
			ConsoleLevel: "INFO",
		},
		History: HistorySettings{
			Enabled: true,
			Path:    GetHistoryPath(),
		},
	}
}

// setDefaults registers every key with viper so environment overrides apply
// even when no config file mentions the key.
func setDefaults(v *viper.Viper, s *Settings) {
	v.SetDefault("download.output_root", s.Download.OutputRoot)
	v.SetDefault("download.file_type", s.Download.FileType)
	v.SetDefault("download.max_attempts", s.Download.MaxAttempts)
	v.SetDefault("download.retry_delay", s.Download.RetryDelay)
	v.SetDefault("download.workers", s.Download.Workers)
	v.SetDefault("download.chunk_size", s.Download.ChunkSize)
	v.SetDefault("download.progress", s.Download.Progress)

	v.SetDefault("network.timeout", s.Network.Timeout)
	v.SetDefault("network.user_agent", s.Network.UserAgent)
	v.SetDefault("network.proxy_url", s.Network.ProxyURL)
	v.SetDefault("network.protocol", s.Network.Protocol)
	v.SetDefault("network.max_connections_per_host", s.Network.MaxConnectionsPerHost)

	v.SetDefault("logging.file", s.Logging.File)
	v.SetDefault("logging.level", s.Logging.Level)
	v.SetDefault("logging.console", s.Logging.Console)
	v.SetDefault("logging.console_level", s.Logging.ConsoleLevel)

	v.SetDefault("history.enabled", s.History.Enabled)
	v.SetDefault("history.path", s.History.Path)
}

// LoadSettings loads configuration from an optional YAML file and MULTIDL_*
// environment variables. When path is empty, config.yaml is looked up in the
// app dir and the working directory; a missing file is not an error.
func LoadSettings(path string) (*Settings, error) {
	cfg := DefaultSettings()

	v := viper.New()
	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(GetAppDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("MULTIDL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

var validProtocols = map[string]bool{"auto": true, "http1": true, "http2": true, "http3": true}

// Validate checks the settings for values the engine cannot run with.
func (s *Settings) Validate() error {
	if s.Download.OutputRoot == "" {
		return errors.New("config: download.output_root is required")
	}
	if s.Download.FileType == "" {
		return errors.New("config: download.file_type is required")
	}
	if strings.ContainsAny(s.Download.FileType, `/\`) || s.Download.FileType == "." || s.Download.FileType == ".." {
		return fmt.Errorf("config: invalid file type %q", s.Download.FileType)
	}
	if s.Download.MaxAttempts < 1 {
		return errors.New("config: download.max_attempts must be at least 1")
	}
	if s.Download.RetryDelay < 0 {
		return errors.New("config: download.retry_delay must not be negative")
	}
	if s.Download.Workers < 0 {
		return errors.New("config: download.workers must not be negative")
	}
	if s.Download.ChunkSize <= 0 {
		return errors.New("config: download.chunk_size must be positive")
	}
	if s.Network.Timeout <= 0 {
		return errors.New("config: network.timeout must be positive")
	}
	if !validProtocols[s.Network.Protocol] {
		return fmt.Errorf("config: unknown network.protocol %q", s.Network.Protocol)
	}
	return nil
}
