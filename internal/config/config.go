// Package config loads dashboard settings from defaults, an optional YAML
// file, a .env file and PAYABLES_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Data sources.
const (
	SourceSQLProxy = "sqlproxy"
	SourceBigQuery = "bigquery"
)

// EnvPrefix is prepended to every environment override, e.g. PAYABLES_SERVER_PORT.
const EnvPrefix = "PAYABLES"

// Config is the resolved configuration.
type Config struct {
	Server   ServerConfig
	Source   string
	Query    QueryConfig
	BigQuery BigQueryConfig
	Export   ExportConfig
	MySQL    MySQLConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port               int
	SessionIdleTimeout time.Duration
}

type QueryConfig struct {
	URL         string
	Timeout     time.Duration
	AccountCode int
}

type BigQueryConfig struct {
	Project string
	Dataset string
}

type ExportConfig struct {
	Filename string
	Sheet    string
	Bucket   string
}

type MySQLConfig struct {
	DSN string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8599)
	v.SetDefault("server.session_idle_timeout", "2h")
	v.SetDefault("source", SourceSQLProxy)
	v.SetDefault("query.url", "http://10.1.8.118:9000/sql_server/query")
	v.SetDefault("query.timeout", "0s")
	v.SetDefault("query.account_code", 206)
	v.SetDefault("bigquery.project", "")
	v.SetDefault("bigquery.dataset", "payables")
	v.SetDefault("export.filename", "FaturaCartao.xlsx")
	v.SetDefault("export.sheet", "Fatura")
	v.SetDefault("export.bucket", "")
	v.SetDefault("mysql.dsn", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// New returns a viper instance with defaults and environment overrides. When
// configFile is empty, payables.yaml is looked up in the working directory
// and its absence is not an error.
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("payables")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("New: read config: %w", err)
		}
	}
	return v, nil
}

// LoadEnvFile exports the variables of a dotenv file into the process
// environment. A missing file is ignored.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("LoadEnvFile: %w", err)
	}
	return nil
}

// Load resolves v into a validated Config.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:               v.GetInt("server.port"),
			SessionIdleTimeout: v.GetDuration("server.session_idle_timeout"),
		},
		Source: strings.ToLower(strings.TrimSpace(v.GetString("source"))),
		Query: QueryConfig{
			URL:         strings.TrimSpace(v.GetString("query.url")),
			Timeout:     v.GetDuration("query.timeout"),
			AccountCode: v.GetInt("query.account_code"),
		},
		BigQuery: BigQueryConfig{
			Project: v.GetString("bigquery.project"),
			Dataset: v.GetString("bigquery.dataset"),
		},
		Export: ExportConfig{
			Filename: v.GetString("export.filename"),
			Sheet:    v.GetString("export.sheet"),
			Bucket:   v.GetString("export.bucket"),
		},
		MySQL: MySQLConfig{
			DSN: v.GetString("mysql.dsn"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Source {
	case SourceSQLProxy:
		if c.Query.URL == "" {
			return errors.New("query.url is required for the sqlproxy source")
		}
	case SourceBigQuery:
		if c.BigQuery.Project == "" {
			return errors.New("bigquery.project is required for the bigquery source")
		}
		if c.BigQuery.Dataset == "" {
			return errors.New("bigquery.dataset is required for the bigquery source")
		}
	default:
		return fmt.Errorf("unknown source %q (want %s or %s)", c.Source, SourceSQLProxy, SourceBigQuery)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Query.AccountCode <= 0 {
		return fmt.Errorf("query.account_code must be positive, got %d", c.Query.AccountCode)
	}
	if c.Query.Timeout < 0 {
		return fmt.Errorf("query.timeout must not be negative")
	}
	if c.Export.Filename == "" {
		return errors.New("export.filename is required")
	}
	return nil
}
