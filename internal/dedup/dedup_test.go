// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package dedup_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sigil-dev/storefront/internal/dedup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// startBlocked launches n concurrent Do calls for key whose fn blocks until
// release is closed, and waits until all of them joined the group.
func startBlocked(t *testing.T, g *dedup.Group, key string, n int, fn func(context.Context) (string, error)) ([]string, []error, *sync.WaitGroup) {
	t.Helper()
	results := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = dedup.Do(context.Background(), g, key, fn)
		}(i)
	}
	require.Eventually(t, func() bool { return g.Waiting(key) == n }, time.Second, time.Millisecond)
	// Waiting is bumped just before the singleflight join; give the last
	// caller a moment to reach it.
	time.Sleep(20 * time.Millisecond)
	return results, errs, &wg
}

func TestDo_ConcurrentCallsInvokeFactoryOnce(t *testing.T) {
	g := dedup.New()
	release := make(chan struct{})
	var calls atomic.Int32

	results, errs, wg := startBlocked(t, g, "GET /api/products", 2, func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "catalog", nil
	})
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, "catalog", results[i])
	}
}

func TestDo_ConcurrentFailureSharedByAll(t *testing.T) {
	g := dedup.New()
	release := make(chan struct{})
	boom := errors.New("backend down")
	var calls atomic.Int32

	_, errs, wg := startBlocked(t, g, "GET /api/cart", 3, func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "", boom
	})
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, err := range errs {
		assert.ErrorIs(t, err, boom)
	}
}

func TestDo_SettledEntryIsNotCached(t *testing.T) {
	g := dedup.New()
	var calls int

	fn := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}

	first, err := dedup.Do(context.Background(), g, "k", fn)
	require.NoError(t, err)
	second, err := dedup.Do(context.Background(), g, "k", fn)
	require.NoError(t, err)

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
	assert.Equal(t, 0, g.Waiting("k"))
}

func TestDo_SettledFailureIsNotCached(t *testing.T) {
	g := dedup.New()
	var calls int

	_, err := dedup.Do(context.Background(), g, "k", func(context.Context) (int, error) {
		calls++
		return 0, errors.New("first fails")
	})
	require.Error(t, err)

	v, err := dedup.Do(context.Background(), g, "k", func(context.Context) (int, error) {
		calls++
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 2, calls)
}

func TestDo_DistinctKeysDoNotSerialize(t *testing.T) {
	g := dedup.New()
	release := make(chan struct{})
	var calls atomic.Int32

	var wg sync.WaitGroup
	for _, key := range []string{"cart:add:p1:1:a", "cart:add:p1:1:b"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			_, _ = dedup.Do(context.Background(), g, key, func(context.Context) (string, error) {
				calls.Add(1)
				<-release
				return key, nil
			})
		}(key)
	}

	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()
}

func TestDo_CallerCancellationDoesNotFailOthers(t *testing.T) {
	g := dedup.New()
	release := make(chan struct{})
	started := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := dedup.Do(ctx, g, "k", func(fctx context.Context) (string, error) {
			close(started)
			<-release
			return "done", fctx.Err()
		})
		leaderErr <- err
	}()
	<-started

	followerRes := make(chan string, 1)
	go func() {
		v, _ := dedup.Do(context.Background(), g, "k", func(context.Context) (string, error) {
			return "not used", nil
		})
		followerRes <- v
	}()
	require.Eventually(t, func() bool { return g.Waiting("k") == 2 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)

	close(release)
	assert.Equal(t, "done", <-followerRes)
}

func TestDo_SharedHook(t *testing.T) {
	var shared atomic.Int32
	g := dedup.New(dedup.WithSharedHook(func(string) { shared.Add(1) }))
	release := make(chan struct{})

	_, _, wg := startBlocked(t, g, "chat:history:s-1", 2, func(context.Context) (string, error) {
		<-release
		return "h", nil
	})
	close(release)
	wg.Wait()

	assert.Equal(t, int32(2), shared.Load())
}
