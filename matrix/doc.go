// Package matrix maintains the allocation matrix of a namespace: the durable
// collection of rows, each being one worker slot's ordered list of queues to
// poll, tagged with the host of the worker.
//
// Rows are built by a Prioritizer, which orders all weighted queues for each
// new row. It first ensures breadth-first coverage of row heads: every queue
// leads one row before any queue leads a second. Thereafter it favors queues
// of higher weight, penalized by the visibility they already have across the
// matrix. Over many rows the matrix approximates the weighted distribution.
//
// A host's rows are grown and pruned lazily to satisfy its requested worker
// count. Pruning removes the host's most recently added rows first, so that
// long-lived rows remain stable.
package matrix

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	matrixRowsBuiltTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qtrix_matrix_rows_built_total",
		Help: "Cumulative number of matrix rows built.",
	})
	matrixRowsPrunedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qtrix_matrix_rows_pruned_total",
		Help: "Cumulative number of matrix rows pruned.",
	})
	matrixClearedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qtrix_matrix_cleared_total",
		Help: "Cumulative number of times a matrix was cleared.",
	})
)
