package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = "TECHMART"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv         = "TECHMART_APP_ENV"
	EnvLogLevel       = "TECHMART_LOG_LEVEL"
	EnvLogFormat      = "TECHMART_LOG_FORMAT"
	EnvAPIBaseURL     = "TECHMART_API_BASE_URL"
	EnvAPITimeout     = "TECHMART_API_TIMEOUT"
	EnvClockSkew      = "TECHMART_SESSION_CLOCK_SKEW"
	EnvStorageDriver  = "TECHMART_STORAGE_DRIVER"
	EnvStoragePath    = "TECHMART_STORAGE_PATH"
	EnvStoragePrefix  = "TECHMART_STORAGE_KEY_PREFIX"
	EnvRedisURL       = "TECHMART_REDIS_URL"
	EnvDBDSN          = "TECHMART_DB_DSN"
	EnvMetricsEnabled = "TECHMART_METRICS_ENABLED"
)

// Storage drivers accepted by StorageConfig.Driver.
const (
	StorageMemory   = "memory"
	StorageBBolt    = "bbolt"
	StorageRedis    = "redis"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// DefaultClockSkew is the tolerance applied to token expiry checks across every layer.
const DefaultClockSkew = 30 * time.Second

type Config struct {
	App     AppConfig
	API     APIConfig
	Session SessionConfig
	Storage StorageConfig
	Redis   RedisConfig
	DB      DBConfig
	Metrics MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.API.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TECHMART_APP_ENV" default:"dev"`
	LogLevel     string `envconfig:"TECHMART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TECHMART_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"TECHMART_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type APIConfig struct {
	BaseURL string        `envconfig:"TECHMART_API_BASE_URL" default:"http://localhost:8080"`
	Timeout time.Duration `envconfig:"TECHMART_API_TIMEOUT" default:"10s"`
}

// Endpoint returns the REST root every request path is joined onto.
func (a APIConfig) Endpoint() string {
	return strings.TrimRight(a.BaseURL, "/") + "/api"
}

func (a APIConfig) validate() error {
	u, err := url.Parse(a.BaseURL)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", EnvAPIBaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) url, got %q", EnvAPIBaseURL, a.BaseURL)
	}
	if a.Timeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvAPITimeout)
	}
	return nil
}

type SessionConfig struct {
	ClockSkew time.Duration `envconfig:"TECHMART_SESSION_CLOCK_SKEW" default:"30s"`
}

// Skew returns the configured tolerance, falling back to DefaultClockSkew.
func (s SessionConfig) Skew() time.Duration {
	if s.ClockSkew < 0 {
		return DefaultClockSkew
	}
	return s.ClockSkew
}

type StorageConfig struct {
	Driver    string `envconfig:"TECHMART_STORAGE_DRIVER" default:"bbolt"`
	Path      string `envconfig:"TECHMART_STORAGE_PATH" default:"techmart.db"`
	KeyPrefix string `envconfig:"TECHMART_STORAGE_KEY_PREFIX" default:"techmart"`
}

func (s StorageConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(s.Driver)) {
	case StorageMemory, StorageRedis, StoragePostgres:
		return nil
	case StorageBBolt, StorageSQLite:
		if strings.TrimSpace(s.Path) == "" {
			return fmt.Errorf("%s is required for driver %q", EnvStoragePath, s.Driver)
		}
		return nil
	}
	return fmt.Errorf("unsupported %s %q", EnvStorageDriver, s.Driver)
}

type RedisConfig struct {
	URL          string        `envconfig:"TECHMART_REDIS_URL"`
	Address      string        `envconfig:"TECHMART_REDIS_ADDR"`
	Password     string        `envconfig:"TECHMART_REDIS_PASSWORD"`
	DB           int           `envconfig:"TECHMART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TECHMART_REDIS_POOL_SIZE" default:"4"`
	DialTimeout  time.Duration `envconfig:"TECHMART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TECHMART_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"TECHMART_REDIS_WRITE_TIMEOUT" default:"3s"`
}

type DBConfig struct {
	DSN             string        `envconfig:"TECHMART_DB_DSN"`
	MaxOpenConns    int           `envconfig:"TECHMART_DB_MAX_OPEN_CONNS" default:"4"`
	MaxIdleConns    int           `envconfig:"TECHMART_DB_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"TECHMART_DB_CONN_MAX_LIFETIME" default:"1h"`
}

type MetricsConfig struct {
	Enabled bool `envconfig:"TECHMART_METRICS_ENABLED" default:"false"`
}
