package override

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

var abc = []string{"a", "b", "c"}

func TestAddPersistsOneUnitPerCount(t *testing.T) {
	var ctx, r, _ = newTestRegistry()

	require.NoError(t, r.Add(ctx, "default", abc, 1))
	require.NoError(t, r.Add(ctx, "default", []string{"z"}, 2))

	all, err := r.All(ctx, "default")
	require.NoError(t, err)
	require.Equal(t, []pb.Override{
		{Queues: abc},
		{Queues: []string{"z"}},
		{Queues: []string{"z"}},
	}, all)
}

func TestAddAndRemoveValidate(t *testing.T) {
	var ctx, r, _ = newTestRegistry()

	for _, count := range []int{0, -1} {
		var err = r.Add(ctx, "default", abc, count)
		require.True(t, pb.IsValidation(err))
		require.Regexp(t, `count must be > 0`, err)

		err = r.Remove(ctx, "default", abc, count)
		require.True(t, pb.IsValidation(err))
	}
	require.True(t, pb.IsValidation(r.Add(ctx, "default", nil, 1)))
	require.True(t, pb.IsValidation(r.Add(ctx, "default", []string{"a,b"}, 1)))

	all, err := r.All(ctx, "default")
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestMutationsInvalidateTheMatrix(t *testing.T) {
	var ctx, r, s = newTestRegistry()
	var keys = store.NewKeys("/qtrix")

	var fixture = func() {
		require.NoError(t, s.Commit(ctx, store.Put(store.Seq(keys.Matrix("default"), 1), "{}")))
	}
	var verify = func() {
		var rows, err = s.List(ctx, keys.Matrix("default"))
		require.NoError(t, err)
		require.Empty(t, rows)
	}

	fixture()
	require.NoError(t, r.Add(ctx, "default", abc, 1))
	verify()

	fixture()
	require.NoError(t, r.Remove(ctx, "default", abc, 100))
	verify()

	fixture()
	require.NoError(t, r.ClearClaims(ctx, "default"))
	verify()

	fixture()
	require.NoError(t, r.Clear(ctx, "default"))
	verify()
}

func TestRemoveTakesOldestMatchingUnitsAndTheirClaims(t *testing.T) {
	var ctx, r, s = newTestRegistry()
	var keys = store.NewKeys("/qtrix")

	require.NoError(t, r.Add(ctx, "default", abc, 2))
	require.NoError(t, r.Add(ctx, "default", []string{"z"}, 1))
	require.NoError(t, r.Add(ctx, "default", abc, 1))

	// host1 claims the first two units.
	lists, err := r.OverridesFor(ctx, "default", "host1", 2)
	require.NoError(t, err)
	require.Equal(t, [][]string{abc, abc}, lists)

	require.NoError(t, r.Remove(ctx, "default", abc, 2))

	all, err := r.All(ctx, "default")
	require.NoError(t, err)
	require.Equal(t, []pb.Override{{Queues: []string{"z"}}, {Queues: abc}}, all)

	claims, err := s.List(ctx, keys.Claims("default"))
	require.NoError(t, err)
	require.Empty(t, claims)

	// Removing more than exist removes what's there.
	require.NoError(t, r.Remove(ctx, "default", abc, 5))
	all, err = r.All(ctx, "default")
	require.NoError(t, err)
	require.Equal(t, []pb.Override{{Queues: []string{"z"}}}, all)
}

func TestOverridesFor(t *testing.T) {
	var ctx, r, s = newTestRegistry()
	var keys = store.NewKeys("/qtrix")

	// No overrides: no lists, and no claims are created as an artifact.
	lists, err := r.OverridesFor(ctx, "default", "host1", 1)
	require.NoError(t, err)
	require.Empty(t, lists)
	claims, err := s.List(ctx, keys.Claims("default"))
	require.NoError(t, err)
	require.Empty(t, claims)

	require.NoError(t, r.Add(ctx, "default", abc, 1))

	// Never claims more units than exist.
	lists, err = r.OverridesFor(ctx, "default", "host1", 3)
	require.NoError(t, err)
	require.Equal(t, [][]string{abc}, lists)
	claims, err = s.List(ctx, keys.Claims("default"))
	require.NoError(t, err)
	require.Len(t, claims, 1)

	// The host is associated with its claim.
	all, err := r.All(ctx, "default")
	require.NoError(t, err)
	require.Equal(t, []pb.Override{{Queues: abc, Host: "host1"}}, all)

	// Subsequent invocations return the existing claim.
	lists, err = r.OverridesFor(ctx, "default", "host1", 3)
	require.NoError(t, err)
	require.Equal(t, [][]string{abc}, lists)

	// Another host finds nothing to claim.
	lists, err = r.OverridesFor(ctx, "default", "host2", 3)
	require.NoError(t, err)
	require.Empty(t, lists)
}

func TestOverridesForBoundsClaimsToWorkers(t *testing.T) {
	var ctx, r, _ = newTestRegistry()
	require.NoError(t, r.Add(ctx, "default", abc, 5))

	lists, err := r.OverridesFor(ctx, "default", "host1", 1)
	require.NoError(t, err)
	require.Equal(t, [][]string{abc}, lists)

	// Repeated calls return the same claimed set, rather than claiming more.
	lists, err = r.OverridesFor(ctx, "default", "host1", 1)
	require.NoError(t, err)
	require.Equal(t, [][]string{abc}, lists)

	lists, err = r.OverridesFor(ctx, "default", "host2", 2)
	require.NoError(t, err)
	require.Len(t, lists, 2)

	// host1 grows to three workers, and claims two more.
	lists, err = r.OverridesFor(ctx, "default", "host1", 3)
	require.NoError(t, err)
	require.Len(t, lists, 3)

	all, err := r.All(ctx, "default")
	require.NoError(t, err)
	var hosts []string
	for _, o := range all {
		hosts = append(hosts, o.Host)
	}
	require.Equal(t, []string{"host1", "host2", "host2", "host1", "host1"}, hosts)

	// Shrinking returns a prefix of the held claims.
	lists, err = r.OverridesFor(ctx, "default", "host1", 1)
	require.NoError(t, err)
	require.Len(t, lists, 1)

	lists, err = r.OverridesFor(ctx, "default", "host1", 0)
	require.NoError(t, err)
	require.Empty(t, lists)
}

func TestClearClaimsRetainsUnits(t *testing.T) {
	var ctx, r, _ = newTestRegistry()
	require.NoError(t, r.Add(ctx, "default", abc, 1))
	_, err := r.OverridesFor(ctx, "default", "localhost", 1)
	require.NoError(t, err)

	require.NoError(t, r.ClearClaims(ctx, "default"))
	all, err := r.All(ctx, "default")
	require.NoError(t, err)
	require.Equal(t, []pb.Override{{Queues: abc}}, all)

	require.NoError(t, r.Clear(ctx, "default"))
	all, err = r.All(ctx, "default")
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestNamespacesAreIsolated(t *testing.T) {
	var ctx, r, _ = newTestRegistry()

	require.NoError(t, r.Add(ctx, "night", []string{"abc"}, 2))
	all, err := r.All(ctx, "default")
	require.NoError(t, err)
	require.Empty(t, all)

	all, err = r.All(ctx, "night")
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func newTestRegistry() (context.Context, *Registry, store.Store) {
	var s = memstore.New(clocktesting.NewFakeClock(time.Unix(1000, 0)))
	return context.Background(), NewRegistry(s, store.NewKeys("/qtrix")), s
}
