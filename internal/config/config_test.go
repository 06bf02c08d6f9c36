package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(defaults())
	require.NoError(t, err)

	assert.Equal(t, 8599, cfg.Server.Port)
	assert.Equal(t, 2*time.Hour, cfg.Server.SessionIdleTimeout)
	assert.Equal(t, SourceSQLProxy, cfg.Source)
	assert.Equal(t, "http://10.1.8.118:9000/sql_server/query", cfg.Query.URL)
	assert.Equal(t, time.Duration(0), cfg.Query.Timeout)
	assert.Equal(t, 206, cfg.Query.AccountCode)
	assert.Equal(t, "payables", cfg.BigQuery.Dataset)
	assert.Equal(t, "FaturaCartao.xlsx", cfg.Export.Filename)
	assert.Equal(t, "Fatura", cfg.Export.Sheet)
	assert.Empty(t, cfg.Export.Bucket)
	assert.Empty(t, cfg.MySQL.DSN)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestNew_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PAYABLES_SERVER_PORT", "9100")
	t.Setenv("PAYABLES_QUERY_TIMEOUT", "45s")
	t.Setenv("PAYABLES_EXPORT_BUCKET", "payables-exports")

	v, err := New("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 45*time.Second, cfg.Query.Timeout)
	assert.Equal(t, "payables-exports", cfg.Export.Bucket)
}

func TestNew_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payables.yaml")
	content := "source: bigquery\nbigquery:\n  project: acme-finance\nserver:\n  session_idle_timeout: 30m\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	v, err := New(path)
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, SourceBigQuery, cfg.Source)
	assert.Equal(t, "acme-finance", cfg.BigQuery.Project)
	assert.Equal(t, 30*time.Minute, cfg.Server.SessionIdleTimeout)
}

func TestNew_MissingExplicitFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), ".env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PAYABLES_TEST_ENVFILE=loaded\n"), 0o600))
	t.Setenv("PAYABLES_TEST_ENVFILE", "")
	require.NoError(t, os.Unsetenv("PAYABLES_TEST_ENVFILE"))

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "loaded", os.Getenv("PAYABLES_TEST_ENVFILE"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"unknown source", func(c *Config) { c.Source = "oracle" }, "unknown source"},
		{"sqlproxy without url", func(c *Config) { c.Query.URL = "" }, "query.url"},
		{"bigquery without project", func(c *Config) { c.Source = SourceBigQuery }, "bigquery.project"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"zero account", func(c *Config) { c.Query.AccountCode = 0 }, "account_code"},
		{"negative timeout", func(c *Config) { c.Query.Timeout = -time.Second }, "query.timeout"},
		{"no filename", func(c *Config) { c.Export.Filename = "" }, "export.filename"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(defaults())
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
