package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomerKey(t *testing.T) {
	assert.Equal(t, "harvestlink:customer:42", CustomerKey(42))
}

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	var inside int32
	var maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := km.Acquire(ctx, "customer-1")
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside, "only one holder at a time")
	assert.Equal(t, 0, km.Len(), "entries are cleaned up after release")
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	releaseA, err := km.Acquire(ctx, "a")
	require.NoError(t, err)
	defer releaseA()

	ctxB, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	releaseB, err := km.Acquire(ctxB, "b")
	require.NoError(t, err)
	releaseB()
}

func TestKeyedMutex_TimesOut(t *testing.T) {
	km := NewKeyedMutex()

	release, err := km.Acquire(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = km.Acquire(ctx, "a")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLockTimeout))

	release()
	assert.Equal(t, 0, km.Len())
}

func TestKeyedMutex_ReleaseIsIdempotent(t *testing.T) {
	km := NewKeyedMutex()

	release, err := km.Acquire(context.Background(), "a")
	require.NoError(t, err)
	release()
	release()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	release2, err := km.Acquire(ctx, "a")
	require.NoError(t, err)
	release2()
}

func newTestRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLocker(client, time.Second, 5*time.Millisecond), mr
}

func TestRedisLocker_AcquireRelease(t *testing.T) {
	locker, mr := newTestRedisLocker(t)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, CustomerKey(7))
	require.NoError(t, err)
	assert.True(t, mr.Exists(CustomerKey(7)))

	release()
	assert.False(t, mr.Exists(CustomerKey(7)))
}

func TestRedisLocker_BlocksUntilReleased(t *testing.T) {
	locker, _ := newTestRedisLocker(t)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "k")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		r, err := locker.Acquire(ctx, "k")
		if err == nil {
			r()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should wait for release")
	case <-time.After(30 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire did not proceed after release")
	}
}

func TestRedisLocker_TimesOut(t *testing.T) {
	locker, _ := newTestRedisLocker(t)

	release, err := locker.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, "k")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestRedisLocker_ReleaseDoesNotDeleteForeignToken(t *testing.T) {
	locker, mr := newTestRedisLocker(t)

	release, err := locker.Acquire(context.Background(), "k")
	require.NoError(t, err)

	// Simulate expiry followed by another holder taking the key.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("k", "someone-else"))

	release()

	val, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", val)
}

func TestRedisLocker_Ping(t *testing.T) {
	locker, mr := newTestRedisLocker(t)
	require.NoError(t, locker.Ping(context.Background()))

	mr.Close()
	assert.Error(t, locker.Ping(context.Background()))
}

func TestNewRedisLockerFromURL_Invalid(t *testing.T) {
	_, err := NewRedisLockerFromURL("not-a-url://", time.Second)
	assert.Error(t, err)
}
