// Package storetest provides a conformance suite run against each
// store.Store implementation.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.qtrix.dev/qtrix/store"
)

// Harness adapts a store.Store implementation to the conformance suite.
type Harness struct {
	// New returns an empty Store.
	New func(t *testing.T) store.Store
	// Advance moves the Store's notion of time forward by at least |d|.
	Advance func(d time.Duration)
	// TTL is the smallest TTL the implementation honors precisely.
	TTL time.Duration
}

// Run the conformance suite using the Harness.
func Run(t *testing.T, h Harness) {
	t.Run("CommitGetAndList", func(t *testing.T) { testCommitGetAndList(t, h) })
	t.Run("CommitRejectsOverlap", func(t *testing.T) { testCommitRejectsOverlap(t, h) })
	t.Run("LargeCommit", func(t *testing.T) { testLargeCommit(t, h) })
	t.Run("Replace", func(t *testing.T) { testReplace(t, h) })
	t.Run("AcquireAndRelease", func(t *testing.T) { testAcquireAndRelease(t, h) })
	t.Run("Expiry", func(t *testing.T) { testExpiry(t, h) })
	t.Run("TouchUpdatesValue", func(t *testing.T) { testTouchUpdatesValue(t, h) })
}

func testCommitGetAndList(t *testing.T, h Harness) {
	var ctx, s = context.Background(), h.New(t)

	require.NoError(t, s.Commit(ctx,
		store.Put("/t/a/2", "two"),
		store.Put("/t/a/1", "one"),
		store.Put("/t/b/1", "other"),
	))
	kv, ok, err := s.Get(ctx, "/t/a/1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "one", kv.Value)
	require.NotZero(t, kv.Revision)

	_, ok, err = s.Get(ctx, "/t/missing")
	require.NoError(t, err)
	require.False(t, ok)

	kvs, err := s.List(ctx, "/t/a/")
	require.NoError(t, err)
	require.Equal(t, []string{"/t/a/1", "/t/a/2"}, keys(kvs))

	// A later write has a larger revision.
	require.NoError(t, s.Commit(ctx, store.Put("/t/a/1", "uno")))
	next, _, err := s.Get(ctx, "/t/a/1")
	require.NoError(t, err)
	require.Greater(t, next.Revision, kv.Revision)

	require.NoError(t, s.Commit(ctx, store.DeletePrefix("/t/a/"), store.Delete("/t/b/1")))
	kvs, err = s.List(ctx, "/t/")
	require.NoError(t, err)
	require.Empty(t, kvs)
}

func testCommitRejectsOverlap(t *testing.T, h Harness) {
	var ctx, s = context.Background(), h.New(t)

	require.Error(t, s.Commit(ctx, store.Put("/t/a", "1"), store.Delete("/t/a")))
	require.Error(t, s.Commit(ctx, store.DeletePrefix("/t/"), store.Put("/t/a", "1")))

	kvs, err := s.List(ctx, "/t/")
	require.NoError(t, err)
	require.Empty(t, kvs)
}

func testLargeCommit(t *testing.T, h Harness) {
	var ctx, s = context.Background(), h.New(t)

	var ops []store.Op
	for i := int64(1); i <= store.MaxCommitOps*2+5; i++ {
		ops = append(ops, store.Put(store.Seq("/t/seq/", i), "x"))
	}
	require.NoError(t, s.Commit(ctx, ops...))

	kvs, err := s.List(ctx, "/t/seq/")
	require.NoError(t, err)
	require.Len(t, kvs, len(ops))

	next, err := store.NextSeq("/t/seq/", kvs)
	require.NoError(t, err)
	require.Equal(t, int64(len(ops)+1), next)

	require.NoError(t, s.Commit(ctx, store.DeletePrefix("/t/")))
}

func testReplace(t *testing.T, h Harness) {
	var ctx, s = context.Background(), h.New(t)

	require.NoError(t, s.Commit(ctx, store.Put("/t/a", "1"), store.Put("/t/b", "2")))
	existing, err := s.List(ctx, "/t/")
	require.NoError(t, err)

	require.NoError(t, s.Commit(ctx, store.Replace(existing, map[string]string{
		"/t/b": "20",
		"/t/c": "3",
	})...))

	kvs, err := s.List(ctx, "/t/")
	require.NoError(t, err)
	require.Equal(t, []string{"/t/b", "/t/c"}, keys(kvs))
	require.Equal(t, "20", kvs[0].Value)

	require.NoError(t, s.Commit(ctx, store.DeletePrefix("/t/")))
}

func testAcquireAndRelease(t *testing.T, h Harness) {
	var ctx, s = context.Background(), h.New(t)

	lease, ok, err := s.Acquire(ctx, "/t/lock", "holder-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// A second acquisition fails while the first is held.
	_, ok, err = s.Acquire(ctx, "/t/lock", "holder-2", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	kv, ok, err := s.Get(ctx, "/t/lock")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "holder-1", kv.Value)

	require.NoError(t, s.Release(ctx, "/t/lock", lease))
	_, ok, err = s.Get(ctx, "/t/lock")
	require.NoError(t, err)
	require.False(t, ok)

	// Releasing again is a no-op.
	require.NoError(t, s.Release(ctx, "/t/lock", lease))

	lease2, ok, err := s.Acquire(ctx, "/t/lock", "holder-2", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEqual(t, lease, lease2)

	// A stale release of the prior lease doesn't remove the current holder.
	require.NoError(t, s.Release(ctx, "/t/lock", lease))
	_, ok, err = s.Get(ctx, "/t/lock")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Release(ctx, "/t/lock", lease2))
}

func testExpiry(t *testing.T, h Harness) {
	var ctx, s = context.Background(), h.New(t)

	_, ok, err := s.Acquire(ctx, "/t/lock", "crashed-holder", h.TTL)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, s.Touch(ctx, "/t/alive/host", "", h.TTL))
	require.NoError(t, s.Commit(ctx, store.Put("/t/hosts/host", "persistent")))

	h.Advance(h.TTL * 3)

	// The stale lock is available again, and the liveness marker has expired.
	lease, ok, err := s.Acquire(ctx, "/t/lock", "next-holder", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	kvs, err := s.List(ctx, "/t/alive/")
	require.NoError(t, err)
	require.Empty(t, kvs)

	_, ok, err = s.Get(ctx, "/t/hosts/host")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Release(ctx, "/t/lock", lease))
	require.NoError(t, s.Commit(ctx, store.DeletePrefix("/t/")))
}

func testTouchUpdatesValue(t *testing.T, h Harness) {
	var ctx, s = context.Background(), h.New(t)

	require.NoError(t, s.Touch(ctx, "/t/alive/host", "one", h.TTL))
	require.NoError(t, s.Touch(ctx, "/t/alive/host", "two", h.TTL))
	require.NoError(t, s.Touch(ctx, "/t/alive/host", "two", h.TTL))

	kv, ok, err := s.Get(ctx, "/t/alive/host")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "two", kv.Value)

	// The marker still expires if it isn't touched again.
	h.Advance(h.TTL * 3)

	_, ok, err = s.Get(ctx, "/t/alive/host")
	require.NoError(t, err)
	require.False(t, ok)
}

func keys(kvs []store.KeyValue) []string {
	var out []string
	for _, kv := range kvs {
		out = append(out, kv.Key)
	}
	return out
}
