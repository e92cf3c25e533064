package idempotency

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardReplaysResult(t *testing.T) {
	ctx := context.Background()
	guard := New()
	var calls int32

	fn := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte(`{"issued":true}`), nil
	}

	result, replayed, err := guard.Do(ctx, "mint:a", fn)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, `{"issued":true}`, string(result))

	result, replayed, err = guard.Do(ctx, "mint:a", fn)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, `{"issued":true}`, string(result))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	_, replayed, err = guard.Do(ctx, "mint:b", fn)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGuardDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	guard := New()
	boom := errors.New("signature_mismatch")

	_, _, err := guard.Do(ctx, "k", func(context.Context) ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	result, replayed, err := guard.Do(ctx, "k", func(context.Context) ([]byte, error) { return []byte("ok"), nil })
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, "ok", string(result))
}

func TestGuardReleasesKeyOnPanic(t *testing.T) {
	ctx := context.Background()
	guard := New()

	assert.Panics(t, func() {
		_, _, _ = guard.Do(ctx, "k", func(context.Context) ([]byte, error) { panic("boom") })
	})

	status, _, err := guard.Store().CheckAndMark(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, status)
}

func TestGuardConcurrentCallsRunOnce(t *testing.T) {
	ctx := context.Background()
	guard := New(WithTTL(time.Minute))
	var calls int32
	release := make(chan struct{})

	fn := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []byte("receipt"), nil
	}

	var wg sync.WaitGroup
	results := make([]string, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, _, err := guard.Do(ctx, "k", fn)
			assert.NoError(t, err)
			results[i] = string(result)
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, r := range results {
		assert.Equal(t, "receipt", r)
	}
}

func TestGuardKey(t *testing.T) {
	guard := New(WithKeyGenerator(func(payload []byte) string { return "h" + string(payload) }))

	assert.Equal(t, "mint:client-key:hbody", guard.Key("mint", "client-key", []byte("body")))
	assert.Equal(t, "mint:hbody", guard.Key("mint", "", []byte("body")))
	assert.NotEqual(t, guard.Key("mint", "x", nil), guard.Key("authorize", "x", nil))

	// The same client key never maps two payloads to one result.
	assert.NotEqual(t, guard.Key("mint", "k1", []byte("a")), guard.Key("mint", "k1", []byte("b")))
}

func TestGuardBindClientKey(t *testing.T) {
	ctx := context.Background()
	guard := New()

	require.NoError(t, guard.BindClientKey(ctx, "mint", "k1", []byte("a")))
	require.NoError(t, guard.BindClientKey(ctx, "mint", "k1", []byte("a")))
	assert.ErrorIs(t, guard.BindClientKey(ctx, "mint", "k1", []byte("b")), ErrKeyReused)

	// Keys are scoped, and an absent client key binds nothing.
	require.NoError(t, guard.BindClientKey(ctx, "authorize", "k1", []byte("b")))
	require.NoError(t, guard.BindClientKey(ctx, "mint", "", []byte("b")))
	require.NoError(t, guard.BindClientKey(ctx, "mint", "", []byte("c")))
}

func TestGuardDifferentPayloadUnderSameClientKeyRunsAgain(t *testing.T) {
	ctx := context.Background()
	guard := New()
	calls := 0
	fn := func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte("ok"), nil
	}

	_, replayed, err := guard.Do(ctx, guard.Key("mint", "k1", []byte("a")), fn)
	require.NoError(t, err)
	assert.False(t, replayed)

	_, replayed, err = guard.Do(ctx, guard.Key("mint", "k1", []byte("b")), fn)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, 2, calls)
}

func TestGuardWithStore(t *testing.T) {
	store := NewInMemoryStore(time.Minute)
	guard := New(WithStore(store))
	assert.Same(t, store, guard.Store())
}
