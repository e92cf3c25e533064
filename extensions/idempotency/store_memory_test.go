package idempotency

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultKeyGenerator(t *testing.T) {
	payload1 := []byte(`{"owner":"0x01","tokenId":"189"}`)
	payload2 := []byte(`{"owner":"0x01","tokenId":"190"}`)

	key1 := DefaultKeyGenerator(payload1)
	assert.Equal(t, key1, DefaultKeyGenerator(payload1))
	assert.NotEqual(t, key1, DefaultKeyGenerator(payload2))
	assert.Len(t, key1, 64)
}

func TestInMemoryStore_CheckAndMark_Cached(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore(5 * time.Minute)

	status, result, err := store.CheckAndMark(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, status)
	assert.Nil(t, result)

	require.NoError(t, store.Complete(ctx, "k", []byte(`{"issued":true}`)))

	status, result, err = store.CheckAndMark(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, StatusCached, status)
	assert.JSONEq(t, `{"issued":true}`, string(result))
}

func TestInMemoryStore_CheckAndMark_InFlight(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore(5 * time.Minute)

	status, _, err := store.CheckAndMark(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, StatusNotFound, status)

	status, result, err := store.CheckAndMark(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, StatusInFlight, status)
	assert.Nil(t, result)
}

func TestInMemoryStore_FailAllowsRetry(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore(5 * time.Minute)

	_, _, err := store.CheckAndMark(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, store.Fail(ctx, "k"))

	status, _, err := store.CheckAndMark(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, status)
}

func TestInMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore(time.Minute)
	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }

	_, _, err := store.CheckAndMark(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, "k", []byte("r")))

	now = now.Add(59 * time.Second)
	status, _, err := store.CheckAndMark(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, StatusCached, status)

	now = now.Add(time.Second)
	status, _, err = store.CheckAndMark(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, status)
}

func TestInMemoryStore_WaitForResult(t *testing.T) {
	ctx := context.Background()

	t.Run("completed", func(t *testing.T) {
		store := NewInMemoryStore(time.Minute)
		_, _, err := store.CheckAndMark(ctx, "k")
		require.NoError(t, err)

		go func() {
			time.Sleep(10 * time.Millisecond)
			_ = store.Complete(ctx, "k", []byte("r"))
		}()

		result, err := store.WaitForResult(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("r"), result)
	})

	t.Run("failed", func(t *testing.T) {
		store := NewInMemoryStore(time.Minute)
		_, _, err := store.CheckAndMark(ctx, "k")
		require.NoError(t, err)

		go func() {
			time.Sleep(10 * time.Millisecond)
			_ = store.Fail(ctx, "k")
		}()

		result, err := store.WaitForResult(ctx, "k")
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("cancelled", func(t *testing.T) {
		store := NewInMemoryStore(time.Minute)
		_, _, err := store.CheckAndMark(ctx, "k")
		require.NoError(t, err)

		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		_, err = store.WaitForResult(cctx, "k")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestInMemoryStore_ConcurrentCheckAndMark(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore(time.Minute)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		owners  int
		waiters int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, _, err := store.CheckAndMark(ctx, "k")
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			switch status {
			case StatusNotFound:
				owners++
			case StatusInFlight:
				waiters++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, owners)
	assert.Equal(t, 49, waiters)
}
