package authflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authflow/cache"
	"github.com/MrEthical07/authflow/gateway"
	"github.com/MrEthical07/authflow/gateway/httpgw"
	"github.com/MrEthical07/authflow/state"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles a Client. A builder is single use.
type Builder struct {
	config Config

	gateway   gateway.Gateway
	backend   cache.Cache
	redis     redis.UniversalClient
	logger    *zap.Logger
	auditSink AuditSink

	built bool
}

// New returns a builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration. Build validates it.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithGateway sets the identity provider. Without it Build dials
// Config.ProviderURL through the HTTP adapter.
func (b *Builder) WithGateway(gw gateway.Gateway) *Builder {
	b.gateway = gw
	return b
}

// WithCache sets the token cache backend, overriding Config.Cache.Backend.
// The caller keeps ownership; Close does not close it.
func (b *Builder) WithCache(backend cache.Cache) *Builder {
	b.backend = backend
	return b
}

// WithRedis supplies the client used by the redis cache backend instead of
// dialing Config.Cache.RedisAddr.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the logger. It takes precedence over Config.LogLevel.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets where audit events go when Config.Audit is enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles flow counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the gateway latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns an unbooted client. A
// configuration problem is returned as *ConfigurationError and nothing is
// constructed.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
		if cfg.LogLevel != "" {
			l, err := NewLogger(cfg.LogLevel)
			if err != nil {
				return nil, fmt.Errorf("authflow: logger: %w", err)
			}
			logger = l
		}
	}

	gw := b.gateway
	if gw == nil {
		if cfg.ProviderURL == "" {
			return nil, &ConfigurationError{Field: "ProviderURL", Reason: "set a provider URL or supply a gateway", Err: ErrMissingGateway}
		}
		hc, err := httpgw.NewClient(cfg.ProviderURL, cfg.PublishableKey, nil)
		if err != nil {
			return nil, &ConfigurationError{Field: "ProviderURL", Reason: err.Error(), Err: fmt.Errorf("%w: %w", ErrInvalidConfig, err)}
		}
		gw = hc
	}

	c := &Client{
		cfg:     cfg,
		gateway: gw,
		logger:  logger,
		metrics: NewMetrics(cfg.Metrics),
	}

	backend := b.backend
	if backend == nil {
		var err error
		backend, err = c.openBackend(cfg.Cache, b.redis)
		if err != nil {
			c.closeOwned()
			return nil, err
		}
	}

	c.store, c.writer = state.New()
	c.tokens = cache.NewTokenCache(backend, cache.Options{
		WriteAttempts:  cfg.Cache.WriteAttempts,
		InitialBackoff: cfg.Cache.WriteBackoff,
		MaxBackoff:     cfg.Cache.MaxWriteBackoff,
		WriteTimeout:   cfg.Cache.WriteTimeout,
		Logger:         logger.Named("cache"),
		OnReadDegraded: func(error) { c.metrics.Inc(MetricCacheReadDegraded) },
		OnWriteFailed:  func(error) { c.metrics.Inc(MetricCacheWriteFailure) },
	})
	c.audit = newAuditDispatcher(cfg.Audit, b.auditSink, logger.Named("audit"))

	b.built = true
	return c, nil
}

func (c *Client) openBackend(cfg CacheConfig, rc redis.UniversalClient) (cache.Cache, error) {
	switch cfg.Backend {
	case CacheRedis:
		if rc == nil {
			client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
			c.closers = append(c.closers, client.Close)
			rc = client
		}
		return cache.NewRedis(rc, cache.WithRedisPrefix(cfg.RedisPrefix)), nil
	case CacheSQLite:
		db, err := cache.OpenSQLite(context.Background(), cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("authflow: open token cache: %w", err)
		}
		c.closers = append(c.closers, db.Close)
		return db, nil
	case CacheMemory:
		return cache.NewMemory(), nil
	default:
		return nil, configErr("Cache.Backend", fmt.Sprintf("unknown backend %q", cfg.Backend))
	}
}

func (c *Client) closeOwned() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
