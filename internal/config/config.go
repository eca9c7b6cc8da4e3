// Package config provides configuration management for soundrelay using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort           = 4040
	defaultServerTimeout        = 30 * time.Second
	defaultShutdownTimeout      = 10 * time.Second
	defaultMaxOpenConns         = 25
	defaultMaxIdleConns         = 10
	defaultConnMaxIdleTime      = 30 * time.Minute
	defaultStreamBufferSize     = 16 * 1024
	defaultKeepAliveDelay       = 2 * time.Second
	defaultStatusHistorySize    = 10
	defaultStatusSampleInterval = 2 * time.Second
	defaultStatusRetention      = time.Hour
	defaultDownloadBufferSize   = "32KiB"
	defaultSigningExpiry        = 6 * time.Hour
	defaultPruneSchedule        = "*/5 * * * *"
	defaultUserHeader           = "X-Remote-User"
	defaultUser                 = "admin"
	defaultICYName              = "soundrelay"
)

// Config holds all configuration for the application.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Streaming    StreamingConfig    `mapstructure:"streaming"`
	Download     DownloadConfig     `mapstructure:"download"`
	Transcode    TranscodeConfig    `mapstructure:"transcode"`
	Signing      SigningConfig      `mapstructure:"signing"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Housekeeping HousekeepingConfig `mapstructure:"housekeeping"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"` // 0 disables, needed for long streams
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// StreamingConfig holds settings for the output pump and transfer tracking.
type StreamingConfig struct {
	BufferSize           int           `mapstructure:"buffer_size"`
	KeepAliveDelay       time.Duration `mapstructure:"keepalive_delay"`
	StatusHistorySize    int           `mapstructure:"status_history_size"`
	StatusSampleInterval time.Duration `mapstructure:"status_sample_interval"`
	StatusRetention      time.Duration `mapstructure:"status_retention"`
	ICYName              string        `mapstructure:"icy_name"`
	ICYGenre             string        `mapstructure:"icy_genre"`
	ICYURL               string        `mapstructure:"icy_url"`
}

// DownloadConfig holds settings for file and archive downloads.
type DownloadConfig struct {
	// BitRateLimitKbps is shared between all concurrent downloads (0 = unlimited).
	BitRateLimitKbps int `mapstructure:"bitrate_limit_kbps"`
	// BufferSize supports human-readable values like "32KiB" or raw byte counts.
	BufferSize ByteSize `mapstructure:"buffer_size"`
}

// TranscodeConfig holds transcoder binary settings.
type TranscodeConfig struct {
	Directory         string `mapstructure:"directory"`           // Searched before PATH for step binaries
	DefaultHLSCommand string `mapstructure:"default_hls_command"` // Empty = built-in ffmpeg mpegts command
}

// SigningConfig holds signed URL settings.
type SigningConfig struct {
	Secret string        `mapstructure:"secret"` // Empty = random per process
	Expiry time.Duration `mapstructure:"expiry"`
}

// AuthConfig holds settings for identifying the requesting user.
type AuthConfig struct {
	UserHeader  string `mapstructure:"user_header"`
	DefaultUser string `mapstructure:"default_user"`
}

// HousekeepingConfig holds scheduled maintenance settings.
type HousekeepingConfig struct {
	PruneSchedule string `mapstructure:"prune_schedule"` // 5-field cron expression or descriptor
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with SOUNDRELAY_ and use underscores for nesting.
// Example: SOUNDRELAY_SERVER_PORT=4040.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/soundrelay")
		v.AddConfigPath("$HOME/.soundrelay")
	}

	v.SetEnvPrefix("SOUNDRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v. Defaults,
// files and environment must already be loaded into v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", time.Duration(0))
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "soundrelay.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Streaming defaults
	v.SetDefault("streaming.buffer_size", defaultStreamBufferSize)
	v.SetDefault("streaming.keepalive_delay", defaultKeepAliveDelay)
	v.SetDefault("streaming.status_history_size", defaultStatusHistorySize)
	v.SetDefault("streaming.status_sample_interval", defaultStatusSampleInterval)
	v.SetDefault("streaming.status_retention", defaultStatusRetention)
	v.SetDefault("streaming.icy_name", defaultICYName)
	v.SetDefault("streaming.icy_genre", "")
	v.SetDefault("streaming.icy_url", "")

	// Download defaults
	v.SetDefault("download.bitrate_limit_kbps", 0)
	v.SetDefault("download.buffer_size", defaultDownloadBufferSize)

	// Transcode defaults
	v.SetDefault("transcode.directory", "")
	v.SetDefault("transcode.default_hls_command", "")

	// Signing defaults
	v.SetDefault("signing.secret", "")
	v.SetDefault("signing.expiry", defaultSigningExpiry)

	// Auth defaults
	v.SetDefault("auth.user_header", defaultUserHeader)
	v.SetDefault("auth.default_user", defaultUser)

	// Housekeeping defaults
	v.SetDefault("housekeeping.prune_schedule", defaultPruneSchedule)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	// Database validation
	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	validDBLevels := map[string]bool{"silent": true, "error": true, "warn": true, "info": true}
	if !validDBLevels[c.Database.LogLevel] {
		return fmt.Errorf("database.log_level must be one of: silent, error, warn, info")
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("database.max_open_conns must be at least 1")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns must not be negative")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	// Streaming validation
	if c.Streaming.BufferSize < 1 {
		return fmt.Errorf("streaming.buffer_size must be at least 1")
	}
	if c.Streaming.KeepAliveDelay < 0 {
		return fmt.Errorf("streaming.keepalive_delay must not be negative")
	}
	if c.Streaming.StatusHistorySize < 1 {
		return fmt.Errorf("streaming.status_history_size must be at least 1")
	}

	// Download validation
	if c.Download.BitRateLimitKbps < 0 {
		return fmt.Errorf("download.bitrate_limit_kbps must not be negative")
	}
	if c.Download.BufferSize < 1 {
		return fmt.Errorf("download.buffer_size must be at least 1 byte")
	}

	// Signing validation
	if c.Signing.Expiry <= 0 {
		return fmt.Errorf("signing.expiry must be positive")
	}

	if c.Auth.UserHeader == "" {
		return fmt.Errorf("auth.user_header is required")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
