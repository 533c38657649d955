// Package config provides configuration management using Viper.
// It loads configuration from environment variables, .env files, and config files.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerPort                = 8080
	defaultServerHost                = "0.0.0.0"
	defaultReadTimeout               = 30 * time.Second
	defaultWriteTimeout              = 30 * time.Second
	defaultDatabasePath              = "./data/pillarbox.db"
	defaultDatabaseConnectionTimeout = 5 * time.Second
	defaultDatabaseEnableWAL         = true
	defaultLogLevel                  = "info"
	defaultLogPretty                 = false
	defaultCatalogPath               = ""
	defaultCatalogWatch              = false
	defaultCatalogPollInterval       = 5 * time.Second
	defaultMigrationsPath            = "file://./migrations"

	defaultTimeRangePollInterval = 200 * time.Millisecond
	defaultAssetLoadTimeout      = 10 * time.Second
	defaultIdleGracePeriod       = 10 * time.Minute
	defaultCleanupInterval       = time.Minute

	defaultMonitoringEnabled         = true
	defaultMonitoringHeartbeatPeriod = 30 * time.Second
	defaultMonitoringSeekThreshold   = time.Second
	defaultMonitoringQueueSize       = 256

	defaultCommandersActHeartbeatDelay = 30 * time.Second
	defaultCommandersActPosPeriod      = 30 * time.Second
	defaultCommandersActUptimePeriod   = 60 * time.Second
	defaultComScoreDvrRefreshPeriod    = 30 * time.Second
	defaultComScorePublisherID         = "6036016"

	envPrefix = "PILLARBOX"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Logging    LoggingConfig
	Catalog    CatalogConfig
	Playback   PlaybackConfig
	Monitoring MonitoringConfig
	Analytics  AnalyticsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Path              string
	ConnectionTimeout time.Duration
	EnableWAL         bool
	MigrationsPath    string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// CatalogConfig points to a YAML media catalog imported at startup
type CatalogConfig struct {
	Path         string
	Watch        bool
	PollInterval time.Duration
}

// PlaybackConfig holds player session configuration
type PlaybackConfig struct {
	TimeRangePollInterval time.Duration
	AssetLoadTimeout      time.Duration
	IdleGracePeriod       time.Duration
	CleanupInterval       time.Duration
}

// MonitoringConfig holds the monitoring pipeline configuration
type MonitoringConfig struct {
	Enabled         bool
	HeartbeatPeriod time.Duration
	SeekThreshold   time.Duration
	QueueSize       int
}

// AnalyticsConfig holds vendor analytics adapter configuration
type AnalyticsConfig struct {
	CommandersAct CommandersActConfig
	ComScore      ComScoreConfig
}

// CommandersActConfig holds CommandersAct streaming heartbeat periods
type CommandersActConfig struct {
	HeartbeatDelay time.Duration
	PosPeriod      time.Duration
	UptimePeriod   time.Duration
}

// ComScoreConfig holds ComScore streaming configuration
type ComScoreConfig struct {
	PublisherID      string
	DvrRefreshPeriod time.Duration
}

// Load reads configuration from .env file, config files, environment variables, and defaults
func Load() (*Config, error) {
	// .env files are optional in production and CI where env vars are set directly
	_ = godotenv.Load() // nolint:errcheck // .env file is optional

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pillarbox")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration built from defaults only
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// Defaults always decode
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.readtimeout", defaultReadTimeout)
	v.SetDefault("server.writetimeout", defaultWriteTimeout)

	v.SetDefault("database.path", defaultDatabasePath)
	v.SetDefault("database.connectiontimeout", defaultDatabaseConnectionTimeout)
	v.SetDefault("database.enablewal", defaultDatabaseEnableWAL)
	v.SetDefault("database.migrationspath", defaultMigrationsPath)

	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.pretty", defaultLogPretty)

	v.SetDefault("catalog.path", defaultCatalogPath)
	v.SetDefault("catalog.watch", defaultCatalogWatch)
	v.SetDefault("catalog.pollinterval", defaultCatalogPollInterval)

	v.SetDefault("playback.timerangepollinterval", defaultTimeRangePollInterval)
	v.SetDefault("playback.assetloadtimeout", defaultAssetLoadTimeout)
	v.SetDefault("playback.idlegraceperiod", defaultIdleGracePeriod)
	v.SetDefault("playback.cleanupinterval", defaultCleanupInterval)

	v.SetDefault("monitoring.enabled", defaultMonitoringEnabled)
	v.SetDefault("monitoring.heartbeatperiod", defaultMonitoringHeartbeatPeriod)
	v.SetDefault("monitoring.seekthreshold", defaultMonitoringSeekThreshold)
	v.SetDefault("monitoring.queuesize", defaultMonitoringQueueSize)

	v.SetDefault("analytics.commandersact.heartbeatdelay", defaultCommandersActHeartbeatDelay)
	v.SetDefault("analytics.commandersact.posperiod", defaultCommandersActPosPeriod)
	v.SetDefault("analytics.commandersact.uptimeperiod", defaultCommandersActUptimePeriod)
	v.SetDefault("analytics.comscore.publisherid", defaultComScorePublisherID)
	v.SetDefault("analytics.comscore.dvrrefreshperiod", defaultComScoreDvrRefreshPeriod)
}

// Validate checks that configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("invalid read timeout: %v (must be > 0)", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("invalid write timeout: %v (must be > 0)", c.Server.WriteTimeout)
	}
	if c.Database.ConnectionTimeout <= 0 {
		return fmt.Errorf("invalid database connection timeout: %v (must be > 0)", c.Database.ConnectionTimeout)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Logging.Level, strings.Join(validLevels, ", "))
	}

	if c.Catalog.Watch && c.Catalog.PollInterval <= 0 {
		return fmt.Errorf("invalid catalog poll interval: %v (must be > 0)", c.Catalog.PollInterval)
	}

	if c.Playback.TimeRangePollInterval <= 0 {
		return fmt.Errorf("invalid time range poll interval: %v (must be > 0)", c.Playback.TimeRangePollInterval)
	}
	if c.Playback.AssetLoadTimeout <= 0 {
		return fmt.Errorf("invalid asset load timeout: %v (must be > 0)", c.Playback.AssetLoadTimeout)
	}
	if c.Playback.CleanupInterval <= 0 {
		return fmt.Errorf("invalid cleanup interval: %v (must be > 0)", c.Playback.CleanupInterval)
	}
	if c.Playback.IdleGracePeriod < 0 {
		return fmt.Errorf("invalid idle grace period: %v (must be >= 0)", c.Playback.IdleGracePeriod)
	}

	if c.Monitoring.HeartbeatPeriod <= 0 {
		return fmt.Errorf("invalid monitoring heartbeat period: %v (must be > 0)", c.Monitoring.HeartbeatPeriod)
	}
	if c.Monitoring.SeekThreshold < 0 {
		return fmt.Errorf("invalid monitoring seek threshold: %v (must be >= 0)", c.Monitoring.SeekThreshold)
	}
	if c.Monitoring.QueueSize < 1 {
		return fmt.Errorf("invalid monitoring queue size: %d (must be >= 1)", c.Monitoring.QueueSize)
	}

	ca := c.Analytics.CommandersAct
	if ca.HeartbeatDelay < 0 || ca.PosPeriod <= 0 || ca.UptimePeriod <= 0 {
		return fmt.Errorf("invalid commandersact heartbeat configuration: delay=%v pos=%v uptime=%v", ca.HeartbeatDelay, ca.PosPeriod, ca.UptimePeriod)
	}
	if c.Analytics.ComScore.DvrRefreshPeriod <= 0 {
		return fmt.Errorf("invalid comscore dvr refresh period: %v (must be > 0)", c.Analytics.ComScore.DvrRefreshPeriod)
	}

	return nil
}

// contains checks if a string slice contains a specific value
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
