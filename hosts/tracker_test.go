package hosts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	pb "go.qtrix.dev/qtrix/protocol"
	"go.qtrix.dev/qtrix/store"
	"go.qtrix.dev/qtrix/store/memstore"
	clocktesting "k8s.io/utils/clock/testing"
)

func TestPingAndAllOrdersMostRecentFirst(t *testing.T) {
	var ctx, clk, tr = newTestTracker()

	require.NoError(t, tr.Ping(ctx, "default", "host1"))
	clk.Step(time.Second)
	require.NoError(t, tr.Ping(ctx, "default", "host2"))
	clk.Step(time.Second)
	require.NoError(t, tr.Ping(ctx, "default", "host3"))

	all, err := tr.All(ctx, "default")
	require.NoError(t, err)
	require.Equal(t, []pb.HostRecord{
		{Host: "host3", LastSeen: time.Unix(1002, 0).UTC()},
		{Host: "host2", LastSeen: time.Unix(1001, 0).UTC()},
		{Host: "host1", LastSeen: time.Unix(1000, 0).UTC()},
	}, all)

	// A re-ping moves host1 to the front.
	require.NoError(t, tr.Ping(ctx, "default", "host1"))
	all, err = tr.All(ctx, "default")
	require.NoError(t, err)
	require.Equal(t, "host1", all[0].Host)
	require.Len(t, all, 3)
}

func TestOfflineAfterMIATimeout(t *testing.T) {
	var ctx, clk, tr = newTestTracker()

	require.NoError(t, tr.Ping(ctx, "default", "host1"))
	require.NoError(t, tr.Ping(ctx, "default", "host2"))

	any, err := tr.AnyOffline(ctx, "default")
	require.NoError(t, err)
	require.False(t, any)

	clk.Step(100 * time.Second)
	require.NoError(t, tr.Ping(ctx, "default", "host1"))
	clk.Step(20 * time.Second)

	offline, err := tr.Offline(ctx, "default")
	require.NoError(t, err)
	require.Equal(t, []string{"host2"}, offline)

	any, err = tr.AnyOffline(ctx, "default")
	require.NoError(t, err)
	require.True(t, any)

	// A ping of an offline host brings it back online.
	require.NoError(t, tr.Ping(ctx, "default", "host2"))
	offline, err = tr.Offline(ctx, "default")
	require.NoError(t, err)
	require.Empty(t, offline)
}

func TestClear(t *testing.T) {
	var ctx, clk, tr = newTestTracker()

	require.NoError(t, tr.Ping(ctx, "default", "host1"))
	clk.Step(time.Hour)
	require.NoError(t, tr.Clear(ctx, "default"))

	all, err := tr.All(ctx, "default")
	require.NoError(t, err)
	require.Empty(t, all)

	any, err := tr.AnyOffline(ctx, "default")
	require.NoError(t, err)
	require.False(t, any)
}

func TestNamespacesAreIsolated(t *testing.T) {
	var ctx, clk, tr = newTestTracker()

	require.NoError(t, tr.Ping(ctx, "night", "host1"))
	clk.Step(time.Hour)

	all, err := tr.All(ctx, "default")
	require.NoError(t, err)
	require.Empty(t, all)

	any, err := tr.AnyOffline(ctx, "night")
	require.NoError(t, err)
	require.True(t, any)
}

func TestPingValidatesHost(t *testing.T) {
	var ctx, _, tr = newTestTracker()
	require.True(t, pb.IsValidation(tr.Ping(ctx, "default", "")))
	require.True(t, pb.IsValidation(tr.Ping(ctx, "default", "a/b")))
}

func TestDefaultMIATimeout(t *testing.T) {
	var tr = NewTracker(nil, store.NewKeys("/qtrix"), nil, 0)
	require.Equal(t, DefaultMIATimeout, tr.MIATimeout())
}

func newTestTracker() (context.Context, *clocktesting.FakeClock, *Tracker) {
	var clk = clocktesting.NewFakeClock(time.Unix(1000, 0))
	var s = memstore.New(clk)
	return context.Background(), clk, NewTracker(s, store.NewKeys("/qtrix"), clk, 0)
}
