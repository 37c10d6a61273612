package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	pb "go.qtrix.dev/qtrix/protocol"
	"go.qtrix.dev/qtrix/store"
	"go.qtrix.dev/qtrix/store/memstore"
	clocktesting "k8s.io/utils/clock/testing"
)

func TestWithLockRunsBodyAndReleases(t *testing.T) {
	var ctx, _, s, l = newTestLocker()

	var ran bool
	require.NoError(t, l.WithLock(ctx, Options{}, func(ctx context.Context) error {
		var h, ok, err = l.Current(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, Holding{Expires: time.Unix(1006, 0).UTC(), Holder: "test-holder"}, h)

		ran = true
		return nil
	}))
	require.True(t, ran)

	_, ok, err := s.Get(ctx, "/qtrix/lock")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWithLockReleasesOnBodyError(t *testing.T) {
	var ctx, _, _, l = newTestLocker()

	var err = l.WithLock(ctx, Options{}, func(context.Context) error {
		return errors.New("whoops")
	})
	require.EqualError(t, err, "whoops")

	_, ok, err := l.Current(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	// The lock may be immediately re-acquired.
	require.NoError(t, l.WithLock(ctx, Options{Wait: time.Millisecond}, func(context.Context) error { return nil }))
}

func TestWithLockTimesOut(t *testing.T) {
	var ctx, clk, s, l = newTestLocker()

	// Another holder has the lock for a minute.
	_, ok, err := s.Acquire(ctx, "/qtrix/lock", "{}", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	var start = clk.Now()
	err = l.WithLock(ctx, Options{Wait: time.Second}, func(context.Context) error {
		panic("not reached")
	})
	require.True(t, pb.IsLockNotAcquired(err))
	require.EqualError(t, err, "failed to acquire lock /qtrix/lock within 1s")

	// Acquisition was polled until the wait elapsed.
	require.Equal(t, time.Second, clk.Since(start))

	// With OnTimeout, its result is returned instead.
	var fallback = errors.New("fallback")
	err = l.WithLock(ctx, Options{
		Wait:      time.Second,
		OnTimeout: func() error { return fallback },
	}, func(context.Context) error { panic("not reached") })
	require.Equal(t, fallback, err)

	err = l.WithLock(ctx, Options{
		Wait:      time.Second,
		OnTimeout: func() error { return nil },
	}, func(context.Context) error { panic("not reached") })
	require.NoError(t, err)
}

func TestWithLockRecoversStaleLock(t *testing.T) {
	var ctx, clk, s, l = newTestLocker()

	// A crashed holder never releases its lock.
	_, ok, err := s.Acquire(ctx, "/qtrix/lock", "{}", 2*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	var start = clk.Now()
	var ran bool
	require.NoError(t, l.WithLock(ctx, Options{Wait: 5 * time.Second}, func(context.Context) error {
		ran = true
		return nil
	}))
	require.True(t, ran)
	require.Equal(t, 2*time.Second, clk.Since(start))
}

func TestWithLockHoldIsBounded(t *testing.T) {
	var ctx, clk, _, l = newTestLocker()
	var other = NewLocker(l.store, store.NewKeys("/qtrix"), clk, "other-holder")

	require.NoError(t, l.WithLock(ctx, Options{Hold: time.Second}, func(ctx context.Context) error {
		// The body overruns its hold, and another Locker takes over.
		clk.Step(time.Second)

		return other.WithLock(ctx, Options{Wait: time.Millisecond}, func(ctx context.Context) error {
			var h, ok, err = other.Current(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "other-holder", h.Holder)
			return nil
		})
	}))
}

func TestWithLockHonorsCancellation(t *testing.T) {
	var ctx, _, s, l = newTestLocker()

	_, _, err := s.Acquire(ctx, "/qtrix/lock", "{}", time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(ctx)
	cancel()

	err = l.WithLock(ctx, Options{Wait: time.Second}, func(context.Context) error { panic("not reached") })
	require.Equal(t, context.Canceled, err)
}

func newTestLocker() (context.Context, *clocktesting.FakeClock, *memstore.Store, *Locker) {
	var clk = clocktesting.NewFakeClock(time.Unix(1000, 0))
	var s = memstore.New(clk)
	return context.Background(), clk, s, NewLocker(s, store.NewKeys("/qtrix"), clk, "test-holder")
}
