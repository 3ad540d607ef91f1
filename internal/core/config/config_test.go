package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kurslog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
  mode: debug
database:
  dsn: postgres://localhost:5432/kurslog?sslmode=disable
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.Mode)
	// Defaults fill what the file omits.
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, 1, cfg.Server.MaxBodySizeMB)
	require.Equal(t, 25, cfg.Database.MaxOpenConns)
	require.True(t, cfg.Database.AutoMigrate)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
database:
  dsn: postgres://file-host:5432/kurslog
`)

	t.Setenv("KURSLOG_SERVER__PORT", "7070")
	t.Setenv("KURSLOG_DATABASE__DSN", "postgres://env-host:5432/kurslog")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, "postgres://env-host:5432/kurslog", cfg.Database.DSN)
}

func TestLoad_MissingDSNFails(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 8080
`)

	_, err := Load(path)
	require.Error(t, err)
	require.ErrorContains(t, err, "database.dsn is required")
}

func TestValidate(t *testing.T) {
	valid := Config{
		Server: ServerConfig{
			Port:          8080,
			Host:          "0.0.0.0",
			MaxBodySizeMB: 1,
			Mode:          "release",
		},
		Database: DatabaseConfig{
			Type:         "postgres",
			DSN:          "postgres://localhost:5432/kurslog",
			MaxOpenConns: 25,
			MaxIdleConns: 25,
		},
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "invalid server.port"},
		{"bad mode", func(c *Config) { c.Server.Mode = "verbose" }, "invalid server.mode"},
		{"zero body size", func(c *Config) { c.Server.MaxBodySizeMB = 0 }, "max_body_size_mb"},
		{"bad db type", func(c *Config) { c.Database.Type = "sqlite" }, "unsupported database.type"},
		{"zero open conns", func(c *Config) { c.Database.MaxOpenConns = 0 }, "max_open_conns"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}
