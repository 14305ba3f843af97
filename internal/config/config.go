package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"wx-data-platform/pkg/database"
	"wx-data-platform/pkg/logging"
)

// Config holds all settings, populated from environment variables
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Ingest   IngestConfig
}

// ServerConfig configures the query API
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig configures the raw and stats stores. With sqlite each store
// is its own file; with postgres both tables live in one database.
type DatabaseConfig struct {
	Driver    string
	RawPath   string
	StatsPath string

	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns        int
	MaxIdleConns        int
	ConnMaxLifetime     time.Duration
	ConnMaxIdleTime     time.Duration
	PoolMonitorInterval time.Duration
}

// LoggingConfig configures the structured logger
type LoggingConfig struct {
	Level  string
	Format string
	Dir    string
}

// IngestConfig configures the ingestion pipeline
type IngestConfig struct {
	DataDir   string
	LockFile  string
	BatchSize int
}

// LoadConfig reads configuration from environment variables, applying defaults where unset
func LoadConfig() (*Config, error) {
	var errs []error

	cfg := &Config{
		Server: ServerConfig{
			Host:            envOrDefault("SERVER_HOST", "0.0.0.0"),
			Port:            parseInt("SERVER_PORT", 8080, &errs),
			ReadTimeout:     parseDuration("SERVER_READ_TIMEOUT", 15*time.Second, &errs),
			WriteTimeout:    parseDuration("SERVER_WRITE_TIMEOUT", 15*time.Second, &errs),
			IdleTimeout:     parseDuration("SERVER_IDLE_TIMEOUT", 60*time.Second, &errs),
			ShutdownTimeout: parseDuration("SHUTDOWN_TIMEOUT", 30*time.Second, &errs),
		},
		Database: DatabaseConfig{
			Driver:              strings.ToLower(envOrDefault("DB_DRIVER", database.DriverSQLite)),
			RawPath:             envOrDefault("RAW_DB_PATH", "raw_wx_data.db"),
			StatsPath:           envOrDefault("STATS_DB_PATH", "stats_wx_data.db"),
			Host:                envOrDefault("DB_HOST", "localhost"),
			Port:                parseInt("DB_PORT", 5432, &errs),
			User:                envOrDefault("DB_USER", "postgres"),
			Password:            os.Getenv("DB_PASSWORD"),
			Database:            envOrDefault("DB_NAME", "wx_data"),
			SSLMode:             envOrDefault("DB_SSLMODE", "disable"),
			MaxOpenConns:        parseInt("DB_MAX_OPEN_CONNS", 10, &errs),
			MaxIdleConns:        parseInt("DB_MAX_IDLE_CONNS", 5, &errs),
			ConnMaxLifetime:     parseDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute, &errs),
			ConnMaxIdleTime:     parseDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute, &errs),
			PoolMonitorInterval: parseDuration("DB_POOL_MONITOR_INTERVAL", 30*time.Second, &errs),
		},
		Logging: LoggingConfig{
			Level:  strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
			Format: strings.ToLower(envOrDefault("LOG_FORMAT", string(logging.FormatJSON))),
			Dir:    envOrDefault("LOG_DIR", "."),
		},
		Ingest: IngestConfig{
			DataDir:   envOrDefault("DATA_DIR", "wx_data"),
			LockFile:  envOrDefault("INGEST_LOCK_FILE", "wx_data.lock"),
			BatchSize: parseInt("INGEST_BATCH_SIZE", 1000, &errs),
		},
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the loaded values for consistency
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}

	switch c.Database.Driver {
	case database.DriverSQLite:
		if c.Database.RawPath == "" || c.Database.StatsPath == "" {
			return errors.New("RAW_DB_PATH and STATS_DB_PATH are required for sqlite3")
		}
		if c.Database.RawPath == c.Database.StatsPath {
			return errors.New("RAW_DB_PATH and STATS_DB_PATH must differ")
		}
	case database.DriverPostgres:
		if c.Database.Host == "" || c.Database.Database == "" {
			return errors.New("DB_HOST and DB_NAME are required for postgres")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid DB_PORT %d", c.Database.Port)
		}
	default:
		return fmt.Errorf("invalid DB_DRIVER %q (allowed: %s, %s)", c.Database.Driver, database.DriverSQLite, database.DriverPostgres)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", c.Logging.Level)
	}

	switch logging.Format(c.Logging.Format) {
	case logging.FormatJSON, logging.FormatText:
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q (allowed: json, text)", c.Logging.Format)
	}

	if c.Ingest.DataDir == "" {
		return errors.New("DATA_DIR is required")
	}
	if c.Ingest.BatchSize <= 0 {
		return errors.New("INGEST_BATCH_SIZE must be positive")
	}

	return nil
}

// RawStore returns the store config of the raw observation dataset
func (c *Config) RawStore() *database.Config {
	return c.store("raw", c.Database.RawPath)
}

// StatsStore returns the store config of the yearly stats dataset
func (c *Config) StatsStore() *database.Config {
	return c.store("stats", c.Database.StatsPath)
}

func (c *Config) store(name, path string) *database.Config {
	return &database.Config{
		Name:                name,
		Driver:              c.Database.Driver,
		Path:                path,
		Host:                c.Database.Host,
		Port:                c.Database.Port,
		User:                c.Database.User,
		Password:            c.Database.Password,
		Database:            c.Database.Database,
		SSLMode:             c.Database.SSLMode,
		MaxOpenConns:        c.Database.MaxOpenConns,
		MaxIdleConns:        c.Database.MaxIdleConns,
		ConnMaxLifetime:     c.Database.ConnMaxLifetime,
		ConnMaxIdleTime:     c.Database.ConnMaxIdleTime,
		PoolMonitorInterval: c.Database.PoolMonitorInterval,
	}
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseInt(key string, fallback int, errs *[]error) int {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s %q: must be an integer", key, s))
		return fallback
	}
	return n
}

func parseDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s %q: %w", key, s, err))
		return fallback
	}
	return d
}
