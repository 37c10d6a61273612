package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	qtrix "go.qtrix.dev/qtrix"
	"go.qtrix.dev/qtrix/matrix"
	pb "go.qtrix.dev/qtrix/protocol"
	"go.qtrix.dev/qtrix/store"
	"go.qtrix.dev/qtrix/store/memstore"
	"k8s.io/utils/clock"
)

func TestWeightsRoundTrip(t *testing.T) {
	var weights, err = decodeWeights([]byte("low: 10\ncritical: 40\nmid: 20.5\n"))
	require.NoError(t, err)
	require.Equal(t, map[string]float64{"critical": 40, "mid": 20.5, "low": 10}, weights)

	var buf bytes.Buffer
	require.NoError(t, writeWeights(&buf, weights))
	require.Equal(t, "critical: 40\nmid: 20.5\nlow: 10\n", buf.String())

	_, err = decodeWeights([]byte("critical: [not, a, weight]"))
	require.EqualError(t, err, "YAML decode failed")
}

func TestWriteLists(t *testing.T) {
	var buf bytes.Buffer
	writeLists(&buf, [][]string{{"Z"}, {"A", "B", qtrix.OrchestratedMarker}})
	require.Equal(t, "1: Z\n2: A, B, __orchestrated__\n", buf.String())
}

func TestWriteTables(t *testing.T) {
	var buf bytes.Buffer
	writeQueuesTable(&buf, []pb.Queue{{Name: "critical", Weight: 3, ResourcePercentage: 0.75}})
	require.Contains(t, buf.String(), "critical")
	require.Contains(t, buf.String(), "75.00%")

	buf.Reset()
	writeOverridesTable(&buf, []pb.Override{{Queues: []string{"a", "b"}}, {Queues: []string{"c"}, Host: "host1"}})
	require.Contains(t, buf.String(), "<unclaimed>")
	require.Contains(t, buf.String(), "host1")

	buf.Reset()
	var now = time.Unix(1000, 0)
	writeHostsTable(&buf, []pb.HostRecord{{Host: "host1", LastSeen: now.Add(-time.Minute), Offline: true}}, now)
	require.Contains(t, buf.String(), "1 minute ago")
	require.Contains(t, buf.String(), "offline")

	buf.Reset()
	writeBreakdownTable(&buf, matrix.Breakdown{"A": {1, 3}, "B": {3, 1}})
	require.Contains(t, buf.String(), "A")
	require.Contains(t, buf.String(), "B")
}

func TestSimulate(t *testing.T) {
	var ctx = context.Background()
	var client = qtrix.NewClient(memstore.New(clock.RealClock{}), store.NewKeys("/qtrix"), clock.RealClock{}, qtrix.Options{})
	require.NoError(t, client.MapQueueWeights(ctx, "", map[string]float64{"A": 4, "B": 3, "C": 2, "D": 1}))

	var hosts = []string{"host-a", "host-b", "host-c"}
	var results, err = simulate(ctx, client, hosts, 2, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for _, h := range hosts {
		require.Len(t, results[h], 2)
	}
	table, err := client.MatrixTable(ctx, "")
	require.NoError(t, err)
	require.Len(t, table, 6)

	// Every queue leads at least one row.
	var b = matrix.Analyze(table)
	for _, q := range []string{"A", "B", "C", "D"} {
		require.True(t, b[q][0] >= 1, q)
	}
}
