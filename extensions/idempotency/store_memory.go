package idempotency

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is a process-local Store.
//
// Suitable for single-instance deployments; use RedisStore when several
// replicas serve the same ledger.
type InMemoryStore struct {
	mu       sync.Mutex
	results  map[string][]byte
	expiry   map[string]time.Time
	inFlight map[string]chan struct{}
	ttl      time.Duration
	now      func() time.Time
}

// NewInMemoryStore creates an in-memory store that keeps results for ttl.
func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	return &InMemoryStore{
		results:  make(map[string][]byte),
		expiry:   make(map[string]time.Time),
		inFlight: make(map[string]chan struct{}),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *InMemoryStore) CheckAndMark(_ context.Context, key string) (Status, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if result, ok := s.getLocked(key); ok {
		return StatusCached, result, nil
	}

	if _, exists := s.inFlight[key]; exists {
		return StatusInFlight, nil, nil
	}

	s.inFlight[key] = make(chan struct{})
	return StatusNotFound, nil, nil
}

func (s *InMemoryStore) WaitForResult(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	done, exists := s.inFlight[key]
	if !exists {
		result, _ := s.getLocked(key)
		s.mu.Unlock()
		return result, nil
	}
	s.mu.Unlock()

	select {
	case <-done:
		s.mu.Lock()
		defer s.mu.Unlock()
		result, _ := s.getLocked(key)
		return result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *InMemoryStore) Complete(_ context.Context, key string, result []byte) error {
	if result == nil {
		result = []byte{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.results[key] = result
	s.expiry[key] = s.now().Add(s.ttl)
	s.releaseLocked(key)
	s.cleanupExpiredLocked()
	return nil
}

func (s *InMemoryStore) Fail(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releaseLocked(key)
	return nil
}

// getLocked returns an unexpired result. Must be called with lock held.
func (s *InMemoryStore) getLocked(key string) ([]byte, bool) {
	expiry, exists := s.expiry[key]
	if !exists {
		return nil, false
	}
	if !s.now().Before(expiry) {
		delete(s.results, key)
		delete(s.expiry, key)
		return nil, false
	}
	return s.results[key], true
}

// releaseLocked drops the in-flight marker and wakes waiters. Must be called with lock held.
func (s *InMemoryStore) releaseLocked(key string) {
	if done, exists := s.inFlight[key]; exists {
		delete(s.inFlight, key)
		close(done)
	}
}

// cleanupExpiredLocked removes expired entries. Must be called with lock held.
func (s *InMemoryStore) cleanupExpiredLocked() {
	now := s.now()
	for key, expiry := range s.expiry {
		if !now.Before(expiry) {
			delete(s.results, key)
			delete(s.expiry, key)
		}
	}
}

var _ Store = (*InMemoryStore)(nil)
