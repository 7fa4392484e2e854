package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// Options configures a TokenCache.
type Options struct {
	// WriteAttempts bounds Set/Remove attempts per call (default 3).
	WriteAttempts uint
	// InitialBackoff is the first retry delay (default 50ms).
	InitialBackoff time.Duration
	// MaxBackoff caps the retry delay (default 1s).
	MaxBackoff time.Duration
	// WriteTimeout bounds one SaveToken or ClearToken call including retries (default 5s).
	WriteTimeout time.Duration

	Logger *zap.Logger

	// OnReadDegraded runs when a read failure is turned into a miss.
	OnReadDegraded func(error)
	// OnWriteFailed runs when a write still fails after every attempt.
	OnWriteFailed func(error)
}

func (o *Options) withDefaults() {
	if o.WriteAttempts == 0 {
		o.WriteAttempts = 3
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 50 * time.Millisecond
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// TokenCache is the failure-absorbing boundary over a Cache.
//
// Writes to the same key are serialized; the last write wins. Writes run
// detached from the caller's cancellation, bounded by WriteTimeout, so a
// decided persistence is not torn by a caller going away.
type TokenCache struct {
	backend Cache
	opts    Options

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewTokenCache wraps backend.
func NewTokenCache(backend Cache, opts Options) *TokenCache {
	opts.withDefaults()
	return &TokenCache{
		backend: backend,
		opts:    opts,
		locks:   make(map[string]*keyLock),
	}
}

// GetToken returns the cached token. Any backend failure is logged and
// reported as a miss. Empty values are misses.
func (c *TokenCache) GetToken(ctx context.Context, key string) (string, bool) {
	value, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.opts.Logger.Warn("token cache read degraded to miss",
			zap.String("key", key),
			zap.Error(err),
		)
		if c.opts.OnReadDegraded != nil {
			c.opts.OnReadDegraded(err)
		}
		return "", false
	}
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// SaveToken persists value under key with bounded retries.
func (c *TokenCache) SaveToken(ctx context.Context, key, value string) {
	c.write(ctx, key, "save", func(ctx context.Context) error {
		return c.backend.Set(ctx, key, value)
	})
}

// ClearToken removes key with bounded retries.
func (c *TokenCache) ClearToken(ctx context.Context, key string) {
	c.write(ctx, key, "clear", func(ctx context.Context) error {
		return c.backend.Remove(ctx, key)
	})
}

func (c *TokenCache) write(ctx context.Context, key, op string, fn func(context.Context) error) {
	unlock := c.lock(key)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.WriteTimeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.InitialBackoff
	b.MaxInterval = c.opts.MaxBackoff

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := fn(ctx)
		if err != nil && errors.Is(err, ErrValueTooLarge) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.opts.WriteAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.opts.Logger.Debug("token cache write retry",
				zap.String("op", op),
				zap.String("key", key),
				zap.Int("attempt", attempt),
				zap.Duration("next", next),
				zap.Error(err),
			)
		}),
	)
	if err == nil {
		return
	}

	c.opts.Logger.Warn("token cache write failed",
		zap.String("op", op),
		zap.String("key", key),
		zap.Int("attempts", attempt),
		zap.Error(err),
	)
	if c.opts.OnWriteFailed != nil {
		c.opts.OnWriteFailed(err)
	}
}

func (c *TokenCache) lock(key string) func() {
	c.mu.Lock()
	l, ok := c.locks[key]
	if !ok {
		l = &keyLock{}
		c.locks[key] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, key)
		}
		c.mu.Unlock()
	}
}
