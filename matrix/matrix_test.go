package matrix

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	pb "go.qtrix.dev/qtrix/protocol"
	"go.qtrix.dev/qtrix/queues"
	"go.qtrix.dev/qtrix/store"
	"go.qtrix.dev/qtrix/store/memstore"
	clocktesting "k8s.io/utils/clock/testing"
)

func TestUpdateToSatisfyBuildsRowsAcrossHosts(t *testing.T) {
	var ctx, m, _ = newTestMatrix(t)

	out, err := m.UpdateToSatisfy(ctx, "default", "host1", 2)
	require.NoError(t, err)
	require.Equal(t, [][]string{{"A", "B", "C", "D"}, {"B", "A", "C", "D"}}, out)

	out, err = m.UpdateToSatisfy(ctx, "default", "host2", 2)
	require.NoError(t, err)
	require.Equal(t, [][]string{{"C", "A", "B", "D"}, {"D", "A", "B", "C"}}, out)

	rows, err := m.Rows(ctx, "default")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.Equal(t, []string{"host1", "host1", "host2", "host2"},
		[]string{rows[0].Host, rows[1].Host, rows[2].Host, rows[3].Host})

	table, err := m.ToTable(ctx, "default")
	require.NoError(t, err)
	require.Equal(t, [][]string{
		{"A", "B", "C", "D"},
		{"B", "A", "C", "D"},
		{"C", "A", "B", "D"},
		{"D", "A", "B", "C"},
	}, table)
}

func TestUpdateToSatisfyIsIdempotent(t *testing.T) {
	var ctx, m, _ = newTestMatrix(t)

	first, err := m.UpdateToSatisfy(ctx, "default", "host1", 3)
	require.NoError(t, err)
	second, err := m.UpdateToSatisfy(ctx, "default", "host1", 3)
	require.NoError(t, err)
	require.Equal(t, first, second)

	rows, err := m.Rows(ctx, "default")
	require.NoError(t, err)
	require.Len(t, rows, 3)
}

func TestUpdateToSatisfyGrowsAndPrunesLIFO(t *testing.T) {
	var ctx, m, _ = newTestMatrix(t)

	two, err := m.UpdateToSatisfy(ctx, "default", "host1", 2)
	require.NoError(t, err)
	// Interleave a row of another host.
	_, err = m.UpdateToSatisfy(ctx, "default", "host2", 1)
	require.NoError(t, err)

	three, err := m.UpdateToSatisfy(ctx, "default", "host1", 3)
	require.NoError(t, err)
	require.Len(t, three, 3)
	require.Equal(t, two, three[:2])

	one, err := m.UpdateToSatisfy(ctx, "default", "host1", 1)
	require.NoError(t, err)
	require.Equal(t, two[:1], one)

	// host2's row is untouched.
	rows, err := m.RowsForHost(ctx, "default", "host2")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	none, err := m.UpdateToSatisfy(ctx, "default", "host1", 0)
	require.NoError(t, err)
	require.Empty(t, none)

	_, err = m.UpdateToSatisfy(ctx, "default", "host1", -1)
	require.True(t, pb.IsValidation(err))
}

func TestUpdateToSatisfyRequiresWeights(t *testing.T) {
	var ctx, m, _ = newTestMatrix(t)

	_, err := m.UpdateToSatisfy(ctx, "night", "host1", 1)
	require.True(t, pb.IsConfiguration(err))

	// No rows are required, so no weights are either.
	out, err := m.UpdateToSatisfy(ctx, "night", "host1", 0)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestAddAndRemoveLastRowForHost(t *testing.T) {
	var ctx, m, _ = newTestMatrix(t)

	var row = func(host string, queues ...string) pb.Row {
		var r = pb.Row{Host: host}
		for _, q := range queues {
			r.Entries = append(r.Entries, pb.Entry{Queue: q, Value: 1})
		}
		return r
	}
	require.NoError(t, m.AddRow(ctx, "default", row("host1", "A", "B")))
	require.NoError(t, m.AddRow(ctx, "default", row("host2", "B", "A")))
	require.NoError(t, m.AddRow(ctx, "default", row("host1", "B", "A")))

	require.True(t, pb.IsValidation(m.AddRow(ctx, "default", row("host1", "A", "A"))))
	require.True(t, pb.IsValidation(m.AddRow(ctx, "default", row("", "A"))))

	ok, err := m.RemoveLastRowForHost(ctx, "default", "host1")
	require.NoError(t, err)
	require.True(t, ok)

	table, err := m.ToTable(ctx, "default")
	require.NoError(t, err)
	require.Equal(t, [][]string{{"A", "B"}, {"B", "A"}}, table)

	rows, err := m.RowsForHost(ctx, "default", "host1")
	require.NoError(t, err)
	require.Equal(t, []pb.Row{row("host1", "A", "B")}, rows)

	ok, err = m.RemoveLastRowForHost(ctx, "default", "host3")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, m.Clear(ctx, "default"))
	table, err = m.ToTable(ctx, "default")
	require.NoError(t, err)
	require.Empty(t, table)
}

func TestWeightChangesInvalidateTheMatrix(t *testing.T) {
	var ctx, m, qr = newTestMatrix(t)

	_, err := m.UpdateToSatisfy(ctx, "default", "host1", 2)
	require.NoError(t, err)
	require.NoError(t, qr.SetWeights(ctx, "default", map[string]float64{"A": 1, "B": 1}))

	rows, err := m.Rows(ctx, "default")
	require.NoError(t, err)
	require.Empty(t, rows)

	out, err := m.UpdateToSatisfy(ctx, "default", "host1", 2)
	require.NoError(t, err)
	require.Equal(t, [][]string{{"A", "B"}, {"B", "A"}}, out)
}

func newTestMatrix(t *testing.T) (context.Context, *Matrix, *queues.Registry) {
	var ctx = context.Background()
	var s = memstore.New(clocktesting.NewFakeClock(time.Unix(1000, 0)))
	var keys = store.NewKeys("/qtrix")
	var qr = queues.NewRegistry(s, keys)

	require.NoError(t, qr.SetWeights(ctx, "default",
		map[string]float64{"A": 40, "B": 30, "C": 20, "D": 10}))

	return ctx, New(s, keys, qr), qr
}
