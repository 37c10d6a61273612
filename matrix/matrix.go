package matrix

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	pb "go.qtrix.dev/qtrix/protocol"
	"go.qtrix.dev/qtrix/store"
)

// Matrix is the allocation matrix of namespaces.
type Matrix struct {
	store   store.Store
	keys    store.Keys
	builder *RowBuilder
}

// New returns a Matrix stored in |s| under |keys|, which builds rows from
// the weighted queues of |queues|.
func New(s store.Store, keys store.Keys, queues QueueLister) *Matrix {
	return &Matrix{
		store:   s,
		keys:    keys,
		builder: NewRowBuilder(s, keys, queues),
	}
}

// Rows returns all rows of namespace |ns|, in insertion order.
func (m *Matrix) Rows(ctx context.Context, ns string) ([]pb.Row, error) {
	var kvs, err = m.store.List(ctx, m.keys.Matrix(ns))
	if err != nil {
		return nil, err
	}
	return decodeRows(kvs)
}

// RowsForHost returns the rows of |host| within namespace |ns|, in insertion order.
func (m *Matrix) RowsForHost(ctx context.Context, ns, host string) ([]pb.Row, error) {
	var stored, err = m.hostRows(ctx, ns, host)
	if err != nil {
		return nil, err
	}
	var out = make([]pb.Row, len(stored))
	for i := range stored {
		out[i] = stored[i].Row
	}
	return out, nil
}

// AddRow appends |row| to the matrix of namespace |ns|.
func (m *Matrix) AddRow(ctx context.Context, ns string, row pb.Row) error {
	if err := row.Validate(); err != nil {
		return err
	}
	var prefix = m.keys.Matrix(ns)

	var kvs, err = m.store.List(ctx, prefix)
	if err != nil {
		return err
	}
	seq, err := store.NextSeq(prefix, kvs)
	if err != nil {
		return err
	}
	enc, err := json.Marshal(row)
	if err != nil {
		return errors.WithMessage(err, "encoding row")
	}
	return m.store.Commit(ctx, store.Put(store.Seq(prefix, seq), string(enc)))
}

// RemoveLastRowForHost removes the most recently added row of |host| within
// namespace |ns|. It returns false if |host| has no rows.
func (m *Matrix) RemoveLastRowForHost(ctx context.Context, ns, host string) (bool, error) {
	var stored, err = m.hostRows(ctx, ns, host)
	if err != nil || len(stored) == 0 {
		return false, err
	}
	if err = m.prune(ctx, ns, host, stored[len(stored)-1:]); err != nil {
		return false, err
	}
	return true, nil
}

// Clear removes all rows of namespace |ns|.
func (m *Matrix) Clear(ctx context.Context, ns string) error {
	if err := m.store.Commit(ctx, store.DeletePrefix(m.keys.Matrix(ns))); err != nil {
		return err
	}
	matrixClearedTotal.Inc()
	log.WithField("ns", ns).Debug("cleared matrix")
	return nil
}

// ToTable returns all rows of namespace |ns| as bare queue-name lists.
func (m *Matrix) ToTable(ctx context.Context, ns string) ([][]string, error) {
	var rows, err = m.Rows(ctx, ns)
	if err != nil {
		return nil, err
	}
	return table(rows), nil
}

// UpdateToSatisfy grows or prunes the rows of |host| within namespace |ns|
// until it has exactly |desired| rows, and returns them as queue-name lists
// in insertion order. New rows are built and appended. Excess rows are
// pruned most-recently-added first.
func (m *Matrix) UpdateToSatisfy(ctx context.Context, ns, host string, desired int) ([][]string, error) {
	if desired < 0 {
		return nil, pb.NewValidationError("desired rows must be >= 0 (%d)", desired)
	}
	var stored, err = m.hostRows(ctx, ns, host)
	if err != nil {
		return nil, err
	}
	var current = make([]pb.Row, len(stored))
	for i := range stored {
		current[i] = stored[i].Row
	}

	switch delta := desired - len(stored); {
	case delta > 0:
		built, err := m.builder.Build(ctx, ns, host, delta)
		if err != nil {
			return nil, err
		}
		return append(table(current), built...), nil
	case delta < 0:
		if err = m.prune(ctx, ns, host, stored[desired:]); err != nil {
			return nil, err
		}
		return table(current[:desired]), nil
	default:
		return table(current), nil
	}
}

func (m *Matrix) prune(ctx context.Context, ns, host string, rows []storedRow) error {
	var ops = make([]store.Op, len(rows))
	for i, r := range rows {
		ops[i] = store.Delete(r.key)
	}
	if err := m.store.Commit(ctx, ops...); err != nil {
		return errors.WithMessage(err, "pruning matrix rows")
	}
	matrixRowsPrunedTotal.Add(float64(len(rows)))
	log.WithFields(log.Fields{"ns": ns, "host": host, "pruned": len(rows)}).Debug("pruned matrix rows")
	return nil
}

func (m *Matrix) hostRows(ctx context.Context, ns, host string) ([]storedRow, error) {
	var kvs, err = m.store.List(ctx, m.keys.Matrix(ns))
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows(kvs)
	if err != nil {
		return nil, err
	}
	var out []storedRow
	for i, row := range rows {
		if row.Host == host {
			out = append(out, storedRow{key: kvs[i].Key, Row: row})
		}
	}
	return out, nil
}

func table(rows []pb.Row) [][]string {
	var out = make([][]string, len(rows))
	for i, row := range rows {
		out[i] = row.Queues()
	}
	return out
}
