package namespace

import (
	"context"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"go.qtrix.dev/qtrix/override"
	pb "go.qtrix.dev/qtrix/protocol"
	"go.qtrix.dev/qtrix/queues"
	"go.qtrix.dev/qtrix/store"
	"go.qtrix.dev/qtrix/store/memstore"
	clocktesting "k8s.io/utils/clock/testing"
)

func TestDefaultAlwaysExistsAndIsCurrent(t *testing.T) {
	var f = newFixture()

	list, err := f.r.List(f.ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"default"}, list)

	current, err := f.r.Current(f.ctx)
	require.NoError(t, err)
	require.Equal(t, "default", current)

	// The default namespace may be activated even though it's empty.
	require.NoError(t, f.r.Activate(f.ctx, "default"))
}

func TestCreate(t *testing.T) {
	var f = newFixture()

	require.NoError(t, f.r.Create(f.ctx, "night"))
	require.NoError(t, f.r.Create(f.ctx, "day_2"))

	list, err := f.r.List(f.ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"day_2", "default", "night"}, list)

	for _, ns := range []string{"night", "default"} {
		var err = f.r.Create(f.ctx, ns)
		require.True(t, pb.IsNamespace(err))
		require.EqualError(t, err, "namespace "+ns+": already exists")
	}
	for _, ns := range []string{"", "has-dash", "a b", "x/y"} {
		require.True(t, pb.IsValidation(f.r.Create(f.ctx, ns)), ns)
	}
}

func TestActivate(t *testing.T) {
	var f = newFixture()

	require.True(t, pb.IsNamespace(f.r.Activate(f.ctx, "unknown")))

	require.NoError(t, f.r.Create(f.ctx, "night"))
	var err = f.r.Activate(f.ctx, "night")
	require.True(t, pb.IsNamespace(err))
	require.EqualError(t, err, "namespace night: namespace is empty")

	require.NoError(t, f.q.SetWeights(f.ctx, "night", map[string]float64{"A": 1}))
	require.NoError(t, f.r.Activate(f.ctx, "night"))

	current, err := f.r.Current(f.ctx)
	require.NoError(t, err)
	require.Equal(t, "night", current)
}

func TestRemove(t *testing.T) {
	var f = newFixture()

	require.True(t, pb.IsNamespace(f.r.Remove(f.ctx, "default")))

	require.NoError(t, f.r.Create(f.ctx, "night"))
	require.NoError(t, f.q.SetWeights(f.ctx, "night", map[string]float64{"A": 1}))
	require.NoError(t, f.o.Add(f.ctx, "night", []string{"A"}, 2))
	require.NoError(t, f.r.Activate(f.ctx, "night"))

	var err = f.r.Remove(f.ctx, "night")
	require.True(t, pb.IsNamespace(err))
	require.EqualError(t, err, "namespace night: cannot remove the current namespace")

	require.NoError(t, f.r.Activate(f.ctx, "default"))
	require.NoError(t, f.r.Remove(f.ctx, "night"))

	list, err := f.r.List(f.ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"default"}, list)

	// All state of the namespace was removed.
	kvs, err := f.s.List(f.ctx, store.NewKeys("/qtrix").NamespaceRoot("night"))
	require.NoError(t, err)
	require.Empty(t, kvs)

	// Removing an unknown namespace is a no-op, which is logged.
	var hook = logtest.NewGlobal()
	defer hook.Reset()

	require.NoError(t, f.r.Remove(f.ctx, "unknown"))
	require.Equal(t, log.WarnLevel, hook.LastEntry().Level)
	require.Equal(t, "unknown", hook.LastEntry().Data["ns"])
}

func TestNamesAreValidatedBeforeStoreAccess(t *testing.T) {
	var f = newFixture()
	require.NoError(t, f.q.SetWeights(f.ctx, "default", map[string]float64{"A": 1}))

	for _, ns := range []string{"", "default/queues", "../default", "x y"} {
		_, err := f.r.Exists(f.ctx, ns)
		require.True(t, pb.IsValidation(err), ns)

		require.True(t, pb.IsValidation(f.r.Activate(f.ctx, ns)), ns)
		require.True(t, pb.IsValidation(f.r.Remove(f.ctx, ns)), ns)
		require.True(t, pb.IsValidation(f.r.Clone(f.ctx, ns, "night")), ns)
		require.True(t, pb.IsValidation(f.r.Clone(f.ctx, "default", ns)), ns)
	}
	require.EqualError(t, f.r.Remove(f.ctx, "default/queues"),
		`namespace: must contain alphanumerics and underscores ("default/queues")`)

	// The weights of default, which "default/queues" would prefix, remain.
	weights, err := f.q.Weights(f.ctx, "default")
	require.NoError(t, err)
	require.Equal(t, map[string]float64{"A": 1}, weights)

	exists, err := f.r.Exists(f.ctx, "night")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestClone(t *testing.T) {
	var f = newFixture()

	require.NoError(t, f.q.SetWeights(f.ctx, "default", map[string]float64{"A": 40, "B": 30}))
	require.NoError(t, f.o.Add(f.ctx, "default", []string{"Z"}, 2))
	require.NoError(t, f.o.Add(f.ctx, "default", []string{"Y", "X"}, 1))
	// Claims of the source are not cloned.
	_, err := f.o.OverridesFor(f.ctx, "default", "host1", 1)
	require.NoError(t, err)

	require.NoError(t, f.r.Clone(f.ctx, "default", "night"))

	weights, err := f.q.Weights(f.ctx, "night")
	require.NoError(t, err)
	require.Equal(t, map[string]float64{"A": 40, "B": 30}, weights)

	all, err := f.o.All(f.ctx, "night")
	require.NoError(t, err)
	require.Equal(t, []pb.Override{
		{Queues: []string{"Z"}},
		{Queues: []string{"Z"}},
		{Queues: []string{"Y", "X"}},
	}, all)

	// The destination must not exist, and the source must.
	require.True(t, pb.IsNamespace(f.r.Clone(f.ctx, "default", "night")))
	require.True(t, pb.IsNamespace(f.r.Clone(f.ctx, "unknown", "other")))

	exists, err := f.r.Exists(f.ctx, "other")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestNamespacesAreIsolated(t *testing.T) {
	var f = newFixture()

	require.NoError(t, f.r.Create(f.ctx, "night"))
	require.NoError(t, f.q.SetWeights(f.ctx, "night", map[string]float64{"N": 1}))
	require.NoError(t, f.q.SetWeights(f.ctx, "default", map[string]float64{"D": 1}))

	night, err := f.q.Weights(f.ctx, "night")
	require.NoError(t, err)
	require.Equal(t, map[string]float64{"N": 1}, night)

	def, err := f.q.Weights(f.ctx, "default")
	require.NoError(t, err)
	require.Equal(t, map[string]float64{"D": 1}, def)
}

type fixture struct {
	ctx context.Context
	s   store.Store
	q   *queues.Registry
	o   *override.Registry
	r   *Registry
}

func newFixture() fixture {
	var s = memstore.New(clocktesting.NewFakeClock(time.Unix(1000, 0)))
	var keys = store.NewKeys("/qtrix")
	var q = queues.NewRegistry(s, keys)
	var o = override.NewRegistry(s, keys)

	return fixture{
		ctx: context.Background(),
		s:   s,
		q:   q,
		o:   o,
		r:   NewRegistry(s, keys, q, o),
	}
}
