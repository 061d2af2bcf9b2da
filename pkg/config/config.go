package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultDatabaseDriver is the default local database driver.
	DefaultDatabaseDriver = "sqlite"

	// DefaultSQLitePath is the default path of the local mirror database.
	DefaultSQLitePath = "./dolisync.db"

	// DefaultProbeInterval is the default delay between connectivity probes.
	DefaultProbeInterval = "30s"

	// DefaultProbeTimeout is the default timeout of a single probe request.
	DefaultProbeTimeout = "5s"

	// DefaultSyncInterval is the default delay between background refreshes.
	DefaultSyncInterval = "5m"

	// DefaultAPIListen is the default listen address of the local API.
	DefaultAPIListen = "127.0.0.1:8173"

	// DefaultRateLimitRPM is the default per-IP request budget per minute.
	DefaultRateLimitRPM = 120

	// envPrefix is the prefix of environment variable overrides, e.g.
	// DOLISYNC_GLOBAL_LOG_LEVEL overrides global.log_level.
	envPrefix = "DOLISYNC"
)

// Config is the root configuration for dolisync.
type Config struct {
	Global       GlobalConfig       `yaml:"global" mapstructure:"global"`
	Database     DatabaseConfig     `yaml:"database" mapstructure:"database"`
	Connectivity ConnectivityConfig `yaml:"connectivity" mapstructure:"connectivity"`
	Sync         SyncConfig         `yaml:"sync" mapstructure:"sync"`
	API          APIConfig          `yaml:"api" mapstructure:"api"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// DatabaseConfig selects and configures the local database driver.
type DatabaseConfig struct {
	Driver   string                 `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteDatabaseConfig   `yaml:"sqlite" mapstructure:"sqlite"`
	Postgres PostgresDatabaseConfig `yaml:"postgres" mapstructure:"postgres"`
}

// SQLiteDatabaseConfig configures the SQLite driver.
type SQLiteDatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresDatabaseConfig configures the PostgreSQL driver.
type PostgresDatabaseConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"sslmode" mapstructure:"sslmode"`
}

// ConnectivityConfig configures the reachability monitor.
type ConnectivityConfig struct {
	// ProbeURL is the endpoint hit by active probes. When empty, the
	// configured remote server URL is probed instead.
	ProbeURL      string `yaml:"probe_url,omitempty" mapstructure:"probe_url"`
	ProbeInterval string `yaml:"probe_interval" mapstructure:"probe_interval"`
	ProbeTimeout  string `yaml:"probe_timeout" mapstructure:"probe_timeout"`
}

// SyncConfig configures the background mirror refresh loop.
type SyncConfig struct {
	Interval string `yaml:"interval" mapstructure:"interval"`
}

// APIConfig configures the local read-only HTTP API.
type APIConfig struct {
	Enabled           bool     `yaml:"enabled" mapstructure:"enabled"`
	Listen            string   `yaml:"listen" mapstructure:"listen"`
	CORSOrigins       []string `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
	RequestsPerMinute int      `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// Load reads the configuration file at path, applies defaults, and
// applies DOLISYNC_* environment overrides. An empty path yields the
// default configuration, so a first run needs no file at all.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every known key so that environment overrides
// resolve even when the key is absent from the file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("global.log_level", DefaultLogLevel)
	v.SetDefault("database.driver", DefaultDatabaseDriver)
	v.SetDefault("database.sqlite.path", DefaultSQLitePath)
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.sslmode", "disable")
	v.SetDefault("connectivity.probe_url", "")
	v.SetDefault("connectivity.probe_interval", DefaultProbeInterval)
	v.SetDefault("connectivity.probe_timeout", DefaultProbeTimeout)
	v.SetDefault("sync.interval", DefaultSyncInterval)
	v.SetDefault("api.enabled", false)
	v.SetDefault("api.listen", DefaultAPIListen)
	v.SetDefault("api.requests_per_minute", DefaultRateLimitRPM)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path is required")
		}
	case "postgres":
		if c.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}

		if c.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Connectivity.ProbeURL != "" {
		if _, err := url.ParseRequestURI(c.Connectivity.ProbeURL); err != nil {
			return fmt.Errorf("invalid connectivity.probe_url: %w", err)
		}
	}

	if _, err := time.ParseDuration(c.Connectivity.ProbeInterval); err != nil {
		return fmt.Errorf("invalid connectivity.probe_interval: %w", err)
	}

	if _, err := time.ParseDuration(c.Connectivity.ProbeTimeout); err != nil {
		return fmt.Errorf("invalid connectivity.probe_timeout: %w", err)
	}

	if _, err := time.ParseDuration(c.Sync.Interval); err != nil {
		return fmt.Errorf("invalid sync.interval: %w", err)
	}

	if c.API.Enabled && c.API.Listen == "" {
		return fmt.Errorf("api.listen is required when the api is enabled")
	}

	return nil
}

// Interval returns the parsed probe interval.
func (c *ConnectivityConfig) Interval() time.Duration {
	d, _ := time.ParseDuration(c.ProbeInterval)

	return d
}

// Timeout returns the parsed probe timeout.
func (c *ConnectivityConfig) Timeout() time.Duration {
	d, _ := time.ParseDuration(c.ProbeTimeout)

	return d
}

// RefreshInterval returns the parsed background refresh interval.
func (c *SyncConfig) RefreshInterval() time.Duration {
	d, _ := time.ParseDuration(c.Interval)

	return d
}
