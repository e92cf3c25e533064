package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix    = "lazymint:idem:"
	defaultLockTTL      = 30 * time.Second
	defaultPollInterval = 50 * time.Millisecond
)

// Connect initializes a Redis client from a redis:// URL or host:port.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisStore is a Store shared by every replica pointed at the same Redis.
//
// The in-flight marker is a SETNX key with a short lock TTL so a crashed
// holder cannot block a key forever. Waiters poll for the result key.
type RedisStore struct {
	client       *redis.Client
	ttl          time.Duration
	lockTTL      time.Duration
	pollInterval time.Duration
	prefix       string
}

// NewRedisStore creates a store that keeps results for ttl.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client:       client,
		ttl:          ttl,
		lockTTL:      defaultLockTTL,
		pollInterval: defaultPollInterval,
		prefix:       defaultKeyPrefix,
	}
}

func (s *RedisStore) resultKey(key string) string   { return s.prefix + "result:" + key }
func (s *RedisStore) inFlightKey(key string) string { return s.prefix + "inflight:" + key }

func (s *RedisStore) CheckAndMark(ctx context.Context, key string) (Status, []byte, error) {
	result, err := s.get(ctx, key)
	if err != nil {
		return StatusNotFound, nil, err
	}
	if result != nil {
		return StatusCached, result, nil
	}

	marked, err := s.client.SetNX(ctx, s.inFlightKey(key), "1", s.lockTTL).Result()
	if err != nil {
		return StatusNotFound, nil, fmt.Errorf("mark in-flight: %w", err)
	}
	if !marked {
		return StatusInFlight, nil, nil
	}

	// A holder may have completed between the GET and the SETNX.
	result, err = s.get(ctx, key)
	if err != nil {
		return StatusNotFound, nil, err
	}
	if result != nil {
		_ = s.client.Del(ctx, s.inFlightKey(key)).Err()
		return StatusCached, result, nil
	}
	return StatusNotFound, nil, nil
}

func (s *RedisStore) WaitForResult(ctx context.Context, key string) ([]byte, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		result, err := s.get(ctx, key)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}

		n, err := s.client.Exists(ctx, s.inFlightKey(key)).Result()
		if err != nil {
			return nil, fmt.Errorf("check in-flight: %w", err)
		}
		if n == 0 {
			// Released without a result: the holder failed.
			return nil, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *RedisStore) Complete(ctx context.Context, key string, result []byte) error {
	if result == nil {
		result = []byte{}
	}
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.resultKey(key), result, s.ttl)
		p.Del(ctx, s.inFlightKey(key))
		return nil
	})
	if err != nil {
		return fmt.Errorf("store result: %w", err)
	}
	return nil
}

func (s *RedisStore) Fail(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.inFlightKey(key)).Err(); err != nil {
		return fmt.Errorf("release in-flight: %w", err)
	}
	return nil
}

// get returns nil when no result is cached.
func (s *RedisStore) get(ctx context.Context, key string) ([]byte, error) {
	result, err := s.client.Get(ctx, s.resultKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}
	if result == nil {
		result = []byte{}
	}
	return result, nil
}

var _ Store = (*RedisStore)(nil)
