package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Status represents the result of checking the store.
type Status int

const (
	// StatusNotFound means no cached result and no in-flight request.
	// The key is now marked in-flight and the caller owns it.
	StatusNotFound Status = iota
	// StatusCached means a cached result was found.
	StatusCached
	// StatusInFlight means another request is currently processing this key.
	StatusInFlight
)

func (s Status) String() string {
	switch s {
	case StatusNotFound:
		return "not_found"
	case StatusCached:
		return "cached"
	case StatusInFlight:
		return "in_flight"
	default:
		return "unknown"
	}
}

// Store defines the interface for idempotency storage.
// Implementations must be safe for concurrent use.
type Store interface {
	// CheckAndMark atomically checks the store and marks the key as in-flight if needed.
	//
	// Returns:
	//   - StatusCached + result: a cached result exists, return it immediately
	//   - StatusInFlight: another request is processing, call WaitForResult
	//   - StatusNotFound: this request should proceed (now marked in-flight)
	CheckAndMark(ctx context.Context, key string) (Status, []byte, error)

	// WaitForResult waits for an in-flight request to complete.
	//
	// Returns:
	//   - The cached result if the in-flight request succeeded
	//   - nil if the in-flight request failed (caller should retry)
	//   - Error if the context was cancelled
	WaitForResult(ctx context.Context, key string) ([]byte, error)

	// Complete caches the result and releases the in-flight marker.
	Complete(ctx context.Context, key string, result []byte) error

	// Fail removes the in-flight marker without caching a result.
	Fail(ctx context.Context, key string) error
}

// KeyGenerator derives a deduplication key from request bytes.
type KeyGenerator func(payload []byte) string

// DefaultKeyGenerator returns the hex SHA256 of the payload.
func DefaultKeyGenerator(payload []byte) string {
	hash := sha256.Sum256(payload)
	return hex.EncodeToString(hash[:])
}
