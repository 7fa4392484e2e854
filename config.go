package authflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Cache backends accepted by CacheConfig.Backend.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheSQLite = "sqlite"
)

// DefaultTokenKey is the cache key holding the session token.
const DefaultTokenKey = "__session_token"

// Config is the client configuration. It is read once by Build and treated
// as immutable afterwards.
type Config struct {
	// PublishableKey identifies this client to the identity provider. Required.
	PublishableKey string `env:"AUTHFLOW_PUBLISHABLE_KEY"`
	// TokenKey is the cache key the session token is stored under.
	TokenKey string `env:"AUTHFLOW_TOKEN_KEY"`
	// ProviderURL is the HTTP identity provider used when the builder is not
	// given a gateway.
	ProviderURL string `env:"AUTHFLOW_PROVIDER_URL"`
	// LogLevel, when set and no logger is supplied, makes Build create one with NewLogger.
	LogLevel string `env:"AUTHFLOW_LOG_LEVEL"`

	Cache   CacheConfig
	Metrics MetricsConfig
	Audit   AuditConfig
}

/*
====================================
CACHE CONFIG
====================================
*/

// CacheConfig selects and tunes the token cache backend.
type CacheConfig struct {
	Backend     string `env:"AUTHFLOW_CACHE_BACKEND"`
	RedisAddr   string `env:"AUTHFLOW_CACHE_REDIS_ADDR"`
	RedisPrefix string `env:"AUTHFLOW_CACHE_REDIS_PREFIX"`
	SQLitePath  string `env:"AUTHFLOW_CACHE_SQLITE_PATH"`

	WriteAttempts   uint          `env:"AUTHFLOW_CACHE_WRITE_ATTEMPTS"`
	WriteBackoff    time.Duration `env:"AUTHFLOW_CACHE_WRITE_BACKOFF"`
	MaxWriteBackoff time.Duration `env:"AUTHFLOW_CACHE_MAX_WRITE_BACKOFF"`
	WriteTimeout    time.Duration `env:"AUTHFLOW_CACHE_WRITE_TIMEOUT"`
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig toggles the in-process counters and the gateway latency histogram.
type MetricsConfig struct {
	Enabled                 bool `env:"AUTHFLOW_METRICS_ENABLED"`
	EnableLatencyHistograms bool `env:"AUTHFLOW_METRICS_LATENCY_HISTOGRAMS"`
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `env:"AUTHFLOW_AUDIT_ENABLED"`
	BufferSize int  `env:"AUTHFLOW_AUDIT_BUFFER_SIZE"`
	DropIfFull bool `env:"AUTHFLOW_AUDIT_DROP_IF_FULL"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a configuration with every optional field set. The
// publishable key is left empty.
func DefaultConfig() Config {
	return Config{
		TokenKey: DefaultTokenKey,
		Cache: CacheConfig{
			Backend:         CacheMemory,
			RedisAddr:       "127.0.0.1:6379",
			RedisPrefix:     "authflow:tok",
			SQLitePath:      "authflow.db",
			WriteAttempts:   3,
			WriteBackoff:    50 * time.Millisecond,
			MaxWriteBackoff: time.Second,
			WriteTimeout:    5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
	}
}

// LoadConfig overlays AUTHFLOW_* environment variables on DefaultConfig and
// validates the result.
func LoadConfig() (Config, error) {
	return LoadConfigWith()
}

// LoadConfigWith is LoadConfig with overrides applied after the environment
// and before validation, so command-line flags win over env but a missing
// publishable key is still fatal.
func LoadConfigWith(overrides ...func(*Config)) (Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, &ConfigurationError{Field: "env", Reason: err.Error(), Err: fmt.Errorf("%w: %w", ErrInvalidConfig, err)}
	}
	for _, apply := range overrides {
		if apply != nil {
			apply(&cfg)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid field as a *ConfigurationError.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.PublishableKey) == "" {
		return &ConfigurationError{
			Field:  "PublishableKey",
			Reason: "set AUTHFLOW_PUBLISHABLE_KEY",
			Err:    ErrMissingPublishableKey,
		}
	}
	if strings.TrimSpace(c.TokenKey) == "" {
		return configErr("TokenKey", "must not be empty")
	}

	switch c.Cache.Backend {
	case CacheMemory:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			return configErr("Cache.RedisAddr", "required for the redis backend")
		}
	case CacheSQLite:
		if c.Cache.SQLitePath == "" {
			return configErr("Cache.SQLitePath", "required for the sqlite backend")
		}
	default:
		return configErr("Cache.Backend", fmt.Sprintf("unknown backend %q", c.Cache.Backend))
	}
	if c.Cache.WriteAttempts == 0 {
		return configErr("Cache.WriteAttempts", "must be > 0")
	}
	if c.Cache.WriteBackoff < 0 || c.Cache.MaxWriteBackoff < 0 || c.Cache.WriteTimeout < 0 {
		return configErr("Cache", "durations must be >= 0")
	}
	if c.Cache.MaxWriteBackoff > 0 && c.Cache.WriteBackoff > c.Cache.MaxWriteBackoff {
		return configErr("Cache.WriteBackoff", "must not exceed MaxWriteBackoff")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return configErr("Audit.BufferSize", "must be > 0 when audit is enabled")
	}

	return nil
}
