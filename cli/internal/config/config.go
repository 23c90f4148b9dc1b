// Package config loads the tablequery configuration from .tablequery.yaml,
// .env files and TABLEQUERY_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Usantos1/primecamp-ofc-sub009/internal/pool"
	"github.com/Usantos1/primecamp-ofc-sub009/query/executor"
	"github.com/Usantos1/primecamp-ofc-sub009/server"
)

// FileName is the configuration file name, without extension.
const FileName = ".tablequery"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TABLEQUERY"

var AppFs = afero.NewOsFs()

// Config holds the application configuration
type Config struct {
	Database  DatabaseConfig       `mapstructure:"database" yaml:"database"`
	Pool      pool.Config          `mapstructure:"pool" yaml:"pool"`
	Retry     executor.RetryConfig `mapstructure:"retry" yaml:"retry"`
	Server    ServerConfig         `mapstructure:"server" yaml:"server"`
	Log       LogConfig            `mapstructure:"log" yaml:"log"`
	Remote    RemoteConfig         `mapstructure:"remote" yaml:"remote"`
	Telemetry TelemetryConfig      `mapstructure:"telemetry" yaml:"telemetry"`

	// File is the configuration file that was read, if any.
	File string `mapstructure:"-" yaml:"-"`
}

// DatabaseConfig selects the database.
type DatabaseConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider"`
	URL      string `mapstructure:"url" yaml:"url"`
}

// ServerConfig configures the table endpoint.
type ServerConfig struct {
	Addr             string          `mapstructure:"addr" yaml:"addr"`
	AllowList        string          `mapstructure:"allow_list" yaml:"allow_list"`
	WatchAllowList   bool            `mapstructure:"watch_allow_list" yaml:"watch_allow_list"`
	APIKeys          []server.APIKey `mapstructure:"api_keys" yaml:"api_keys,omitempty"`
	MinClientVersion string          `mapstructure:"min_client_version" yaml:"min_client_version,omitempty"`
	MaxBodyBytes     int64           `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	CacheSize        int             `mapstructure:"cache_size" yaml:"cache_size"`
	ShutdownTimeout  time.Duration   `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// RemoteConfig points the CLI at a running table endpoint instead of the
// database.
type RemoteConfig struct {
	URL     string `mapstructure:"url" yaml:"url,omitempty"`
	APIKey  string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Msgpack bool   `mapstructure:"msgpack" yaml:"msgpack,omitempty"`
}

// TelemetryConfig configures periodic metrics export.
type TelemetryConfig struct {
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Provider: "postgresql"},
		Pool:     pool.DefaultConfig(),
		Retry:    *executor.DefaultRetryConfig(),
		Server: ServerConfig{
			Addr:            ":3000",
			MaxBodyBytes:    server.DefaultMaxBodyBytes,
			CacheSize:       512,
			ShutdownTimeout: 10 * time.Second,
		},
		Log:       LogConfig{Level: "info", Format: "text"},
		Telemetry: TelemetryConfig{Interval: time.Minute},
	}
}

// LoadConfig loads configuration from various sources. An explicit path
// must exist; otherwise .tablequery.yaml is searched in the working
// directory, $HOME and $HOME/.config/tablequery.
func LoadConfig(path string) (*Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetFs(AppFs)
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home)
			v.AddConfigPath(filepath.Join(home, ".config", "tablequery"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	// DATABASE_URL is honored when nothing more specific is set.
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("database.provider", d.Database.Provider)
	v.SetDefault("database.url", "")

	v.SetDefault("pool.max_open_conns", d.Pool.MaxOpenConns)
	v.SetDefault("pool.max_idle_conns", d.Pool.MaxIdleConns)
	v.SetDefault("pool.conn_max_lifetime", d.Pool.ConnMaxLifetime)
	v.SetDefault("pool.conn_max_idle_time", d.Pool.ConnMaxIdleTime)
	v.SetDefault("pool.acquire_timeout", d.Pool.AcquireTimeout)
	v.SetDefault("pool.health_check_interval", d.Pool.HealthCheckInterval)

	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("retry.initial_delay", d.Retry.InitialDelay)
	v.SetDefault("retry.max_delay", d.Retry.MaxDelay)
	v.SetDefault("retry.backoff_factor", d.Retry.BackoffFactor)
	v.SetDefault("retry.jitter", d.Retry.Jitter)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.allow_list", "")
	v.SetDefault("server.watch_allow_list", false)
	v.SetDefault("server.min_client_version", "")
	v.SetDefault("server.max_body_bytes", d.Server.MaxBodyBytes)
	v.SetDefault("server.cache_size", d.Server.CacheSize)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("remote.url", "")
	v.SetDefault("remote.api_key", "")
	v.SetDefault("remote.msgpack", false)

	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.interval", d.Telemetry.Interval)
}

// loadDotEnv loads .env and then .env.local, which wins.
func loadDotEnv() {
	if _, err := AppFs.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not load .env: %v\n", err)
		}
	}
	if _, err := AppFs.Stat(".env.local"); err == nil {
		if err := godotenv.Overload(".env.local"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not load .env.local: %v\n", err)
		}
	}
}

// SaveConfig writes cfg to path as YAML.
func SaveConfig(cfg *Config, path string) error {
	if path == "" {
		path = FileName + ".yaml"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := AppFs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return afero.WriteFile(AppFs, path, data, 0o644)
}

// UserConfigPath returns $HOME/.config/tablequery/.tablequery.yaml.
func UserConfigPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "tablequery", FileName+".yaml"), nil
}
