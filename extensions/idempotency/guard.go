package idempotency

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrKeyReused is returned when a client key is presented again with a
// different payload.
var ErrKeyReused = errors.New("idempotency key was already used with a different request")

// Guard runs operations at most once per key while their result is cached.
type Guard struct {
	store        Store
	keyGenerator KeyGenerator
	logger       *zap.Logger
}

// New creates a Guard.
//
// Default configuration:
//   - InMemoryStore with 10-minute TTL
//   - SHA256 key generator
func New(opts ...Option) *Guard {
	cfg := &config{
		ttl:          10 * time.Minute,
		keyGenerator: DefaultKeyGenerator,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	store := cfg.store
	if store == nil {
		store = NewInMemoryStore(cfg.ttl)
	}
	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Guard{
		store:        store,
		keyGenerator: cfg.keyGenerator,
		logger:       logger,
	}
}

// Store returns the underlying store.
func (g *Guard) Store() Store {
	return g.store
}

// Key scopes a deduplication key to an operation and a payload. A
// client-supplied key narrows it further but never replaces the payload hash,
// so a different request under the same client key is never served a replay.
func (g *Guard) Key(scope, clientKey string, payload []byte) string {
	if clientKey != "" {
		return scope + ":" + clientKey + ":" + g.keyGenerator(payload)
	}
	return scope + ":" + g.keyGenerator(payload)
}

// BindClientKey records the payload a client key was first used with, and
// returns ErrKeyReused when the same key arrives with a different payload.
// An empty client key is always accepted.
func (g *Guard) BindClientKey(ctx context.Context, scope, clientKey string, payload []byte) error {
	if clientKey == "" {
		return nil
	}
	key := scope + ":client:" + clientKey
	fingerprint := []byte(g.keyGenerator(payload))

	for {
		status, bound, err := g.store.CheckAndMark(ctx, key)
		if err != nil {
			return fmt.Errorf("idempotency check failed: %w", err)
		}

		switch status {
		case StatusCached:
			return matchFingerprint(bound, fingerprint)

		case StatusInFlight:
			waited, err := g.store.WaitForResult(ctx, key)
			if err != nil {
				return err
			}
			if waited == nil {
				continue
			}
			return matchFingerprint(waited, fingerprint)
		}

		if err := g.store.Complete(context.WithoutCancel(ctx), key, fingerprint); err != nil {
			return fmt.Errorf("failed to bind idempotency key: %w", err)
		}
		return nil
	}
}

func matchFingerprint(bound, fingerprint []byte) error {
	if !bytes.Equal(bound, fingerprint) {
		return ErrKeyReused
	}
	return nil
}

// Do runs fn unless a result for key is cached or in flight.
//
// replayed reports whether result came from an earlier call. Errors from fn
// are returned as is and never cached.
func (g *Guard) Do(ctx context.Context, key string, fn func(ctx context.Context) ([]byte, error)) (result []byte, replayed bool, err error) {
	for {
		status, cached, err := g.store.CheckAndMark(ctx, key)
		if err != nil {
			return nil, false, fmt.Errorf("idempotency check failed: %w", err)
		}

		switch status {
		case StatusCached:
			g.logger.Debug("replaying cached result", zap.String("key", key))
			return cached, true, nil

		case StatusInFlight:
			waited, err := g.store.WaitForResult(ctx, key)
			if err != nil {
				return nil, false, err
			}
			if waited != nil {
				return waited, true, nil
			}
			// The other request failed; try to take the key ourselves.
			continue
		}

		return g.run(ctx, key, fn)
	}
}

func (g *Guard) run(ctx context.Context, key string, fn func(ctx context.Context) ([]byte, error)) (result []byte, replayed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			_ = g.store.Fail(context.WithoutCancel(ctx), key)
			panic(r)
		}
	}()

	result, err = fn(ctx)
	if err != nil {
		if failErr := g.store.Fail(context.WithoutCancel(ctx), key); failErr != nil {
			g.logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(failErr))
		}
		return nil, false, err
	}

	if err := g.store.Complete(context.WithoutCancel(ctx), key, result); err != nil {
		g.logger.Warn("failed to cache result", zap.String("key", key), zap.Error(err))
	}
	return result, false, nil
}
