// Package qtrix assigns queues to worker slots across a fleet of hosts,
// such that in aggregate workers process queues in proportion to configured
// weights. Flood overrides may pin a number of workers to specific queues.
//
// Client is the entry point. Workers periodically call Client.FetchQueues
// with their host and worker count, and receive one ordered list of queues
// to poll per worker. Lists derived from weights are suffixed with
// OrchestratedMarker, while override lists are returned as-is.
//
// All state is kept in a store.Store shared by the fleet, and is scoped to
// a namespace (or "configuration set"). Exactly one namespace is current.
// Every mutation runs under a fleet-wide lock.
package qtrix

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	pb "go.qtrix.dev/qtrix/protocol"
)

// OrchestratedMarker suffixes each queue list derived from the matrix.
const OrchestratedMarker = pb.OrchestratedMarker

var (
	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qtrix_fetch_total",
		Help: "Cumulative number of FetchQueues requests, by result.",
	}, []string{"result"})
	fetchListsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qtrix_fetch_lists_total",
		Help: "Cumulative number of queue lists returned by FetchQueues, by source.",
	}, []string{"source"})
	fetchOfflineClearsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qtrix_fetch_offline_clears_total",
		Help: "Cumulative number of clears triggered by offline hosts.",
	})
)

const (
	fetchResultOK     = "ok"
	fetchResultCached = "cached"
	fetchResultFailed = "failed"
)
