package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wx-data-platform/pkg/database"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, database.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "raw_wx_data.db", cfg.Database.RawPath)
	assert.Equal(t, "stats_wx_data.db", cfg.Database.StatsPath)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "wx_data", cfg.Ingest.DataDir)
	assert.Equal(t, "wx_data.lock", cfg.Ingest.LockFile)
	assert.Equal(t, 1000, cfg.Ingest.BatchSize)
}

func TestLoadConfig_CustomEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SHUTDOWN_TIMEOUT", "5s")
	t.Setenv("DB_DRIVER", "POSTGRES")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_USER", "wx")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "weather")
	t.Setenv("DB_MAX_OPEN_CONNS", "20")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("LOG_DIR", "/var/log/wx")
	t.Setenv("DATA_DIR", "/srv/wx_data")
	t.Setenv("INGEST_BATCH_SIZE", "250")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, database.DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "secret", cfg.Database.Password)
	assert.Equal(t, "weather", cfg.Database.Database)
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "/var/log/wx", cfg.Logging.Dir)
	assert.Equal(t, "/srv/wx_data", cfg.Ingest.DataDir)
	assert.Equal(t, 250, cfg.Ingest.BatchSize)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	t.Setenv("SERVER_PORT", "eighty")
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_PORT")
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "unknown driver", env: map[string]string{"DB_DRIVER": "mysql"}, wantErr: "DB_DRIVER"},
		{name: "same sqlite file", env: map[string]string{"RAW_DB_PATH": "wx.db", "STATS_DB_PATH": "wx.db"}, wantErr: "must differ"},
		{name: "port out of range", env: map[string]string{"SERVER_PORT": "70000"}, wantErr: "SERVER_PORT"},
		{name: "negative shutdown", env: map[string]string{"SHUTDOWN_TIMEOUT": "-1s"}, wantErr: "SHUTDOWN_TIMEOUT"},
		{name: "bad log level", env: map[string]string{"LOG_LEVEL": "loud"}, wantErr: "LOG_LEVEL"},
		{name: "bad log format", env: map[string]string{"LOG_FORMAT": "xml"}, wantErr: "LOG_FORMAT"},
		{name: "zero batch size", env: map[string]string{"INGEST_BATCH_SIZE": "0"}, wantErr: "INGEST_BATCH_SIZE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := LoadConfig()
			require.NoError(t, err)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestStoreConfigs(t *testing.T) {
	t.Setenv("RAW_DB_PATH", "/data/raw.db")
	t.Setenv("STATS_DB_PATH", "/data/stats.db")
	t.Setenv("DB_MAX_IDLE_CONNS", "3")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	raw := cfg.RawStore()
	assert.Equal(t, "raw", raw.Name)
	assert.Equal(t, database.DriverSQLite, raw.Driver)
	assert.Equal(t, "/data/raw.db", raw.Path)
	assert.Equal(t, 3, raw.MaxIdleConns)

	stats := cfg.StatsStore()
	assert.Equal(t, "stats", stats.Name)
	assert.Equal(t, "/data/stats.db", stats.Path)
}
