package idempotency

import (
	"time"

	"go.uber.org/zap"
)

// config holds the configuration for a Guard.
type config struct {
	ttl          time.Duration
	store        Store
	keyGenerator KeyGenerator
	logger       *zap.Logger
}

// Option configures a Guard.
type Option func(*config)

// WithTTL sets how long successful results are replayed.
//
// Only applies when using the default InMemoryStore.
// If WithStore is also specified, this option is ignored.
//
// Default: 10 minutes
func WithTTL(ttl time.Duration) Option {
	return func(c *config) {
		c.ttl = ttl
	}
}

// WithStore sets a custom Store implementation, e.g. a RedisStore.
func WithStore(store Store) Option {
	return func(c *config) {
		c.store = store
	}
}

// WithKeyGenerator sets the function Guard.Key uses to hash request bodies.
func WithKeyGenerator(gen KeyGenerator) Option {
	return func(c *config) {
		c.keyGenerator = gen
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}
