// Package testsupport builds sqlite-backed stores for package tests.
package testsupport

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"wx-data-platform/internal/repository"
	"wx-data-platform/pkg/database"
	"wx-data-platform/pkg/logging"
	"wx-data-platform/pkg/metrics"
)

// Env bundles the collaborators a test needs around a repository
type Env struct {
	Dir     string
	Logger  *logging.StructuredLogger
	Metrics *metrics.Collector
	RawDB   *database.DB
	StatsDB *database.DB
	Repo    repository.WeatherRepository
}

// NewLogger returns a logger that discards output
func NewLogger() *logging.StructuredLogger {
	logger := logging.NewStructuredLogger("wx-test", "test", logging.DebugLevel)
	logger.SetOutput(io.Discard)
	return logger
}

// NewMetrics returns a collector that is not registered anywhere
func NewMetrics() *metrics.Collector {
	return metrics.NewCollectorWithRegisterer("wx_test", nil)
}

// StoreConfig returns a sqlite store config for file name inside dir
func StoreConfig(dir, name, file string) *database.Config {
	return &database.Config{
		Name:         name,
		Driver:       database.DriverSQLite,
		Path:         filepath.Join(dir, file),
		MaxOpenConns: 4,
		MaxIdleConns: 2,
	}
}

// NewEnv opens raw and stats sqlite stores in a temp dir, closed on cleanup
func NewEnv(t *testing.T) *Env {
	t.Helper()
	return NewEnvIn(t, t.TempDir())
}

// NewEnvIn opens raw and stats sqlite stores in dir, closed on cleanup
func NewEnvIn(t *testing.T, dir string) *Env {
	t.Helper()

	logger := NewLogger()
	collector := NewMetrics()

	rawDB, err := database.Open(StoreConfig(dir, "raw", "raw_wx_data.db"), logger, collector)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rawDB.Close() })

	statsDB, err := database.Open(StoreConfig(dir, "stats", "stats_wx_data.db"), logger, collector)
	require.NoError(t, err)
	t.Cleanup(func() { _ = statsDB.Close() })

	return &Env{
		Dir:     dir,
		Logger:  logger,
		Metrics: collector,
		RawDB:   rawDB,
		StatsDB: statsDB,
		Repo:    repository.NewWeatherRepository(rawDB, statsDB, 2, logger, collector),
	}
}
