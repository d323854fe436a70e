package lock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backoffice-api/internal/lock"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestWithLockSerialisesHolders(t *testing.T) {
	_, client := newClient(t)
	locker := lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var (
		mu    sync.Mutex
		order []string
	)
	firstHeld := make(chan struct{})
	releaseFirst := make(chan struct{})
	done := make(chan error, 2)
	key := locker.Key("invoice", "42")

	go func() {
		done <- locker.WithLock(ctx, key, time.Second, func(context.Context) error {
			mu.Lock()
			order = append(order, "first")
			mu.Unlock()
			close(firstHeld)
			<-releaseFirst
			return nil
		})
	}()
	<-firstHeld
	go func() {
		done <- locker.WithLock(ctx, key, time.Second, func(context.Context) error {
			mu.Lock()
			order = append(order, "second")
			mu.Unlock()
			return nil
		})
	}()
	close(releaseFirst)

	require.NoError(t, <-done)
	require.NoError(t, <-done)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"first", "second"}, order)
}

func TestWithLockGivesUpAfterMaxWait(t *testing.T) {
	mr, client := newClient(t)
	locker := lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond, MaxWait: 30 * time.Millisecond}
	key := locker.Key("proforma", "7")
	require.NoError(t, mr.Set(key, "someone-else"))

	err := locker.WithLock(context.Background(), key, time.Second, func(context.Context) error {
		t.Fatal("callback must not run")
		return nil
	})
	require.ErrorIs(t, err, lock.ErrNotAcquired)
}

func TestWithLockReleasesOnlyOwnToken(t *testing.T) {
	mr, client := newClient(t)
	locker := lock.Locker{R: client}
	key := locker.Key("quotation", "9")

	boom := errors.New("boom")
	err := locker.WithLock(context.Background(), key, time.Second, func(context.Context) error {
		mr.Set(key, "stolen")
		return boom
	})
	require.ErrorIs(t, err, boom)
	got, _ := mr.Get(key)
	require.Equal(t, "stolen", got)

	require.NoError(t, locker.WithLock(context.Background(), "lock:free", time.Second, func(context.Context) error { return nil }))
	require.False(t, mr.Exists("lock:free"))
}

func TestLocalRunner(t *testing.T) {
	var l lock.Local
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.WithLock(context.Background(), "k", 0, func(context.Context) error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()
	require.Equal(t, 50, counter)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, l.WithLock(ctx, "k", 0, func(context.Context) error { return nil }), context.Canceled)
}
