package matrix

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	pb "go.qtrix.dev/qtrix/protocol"
	"go.qtrix.dev/qtrix/store"
)

// QueueLister returns the weighted queues of a namespace, on descending
// weight and with resource percentages. It's implemented by queues.Registry.
type QueueLister interface {
	List(ctx context.Context, ns string) ([]pb.Queue, error)
}

// RowBuilder builds and appends new rows to the matrix.
type RowBuilder struct {
	store  store.Store
	keys   store.Keys
	queues QueueLister
}

// NewRowBuilder returns a RowBuilder of matrices stored in |s| under |keys|,
// which orders the queues of |queues|.
func NewRowBuilder(s store.Store, keys store.Keys, queues QueueLister) *RowBuilder {
	return &RowBuilder{store: s, keys: keys, queues: queues}
}

// Build appends |count| new rows of |host| to the matrix of namespace |ns|,
// and returns their queue orderings. Each row is prioritized with respect to
// all existing rows and to the rows built before it. Build fails with a
// *ConfigurationError if the namespace has no weighted queues.
func (b *RowBuilder) Build(ctx context.Context, ns, host string, count int) ([][]string, error) {
	if count <= 0 {
		return nil, nil
	}
	var queues, err = b.queues.List(ctx, ns)
	if err != nil {
		return nil, err
	}
	var prefix = b.keys.Matrix(ns)

	kvs, err := b.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows(kvs)
	if err != nil {
		return nil, err
	}
	seq, err := store.NextSeq(prefix, kvs)
	if err != nil {
		return nil, err
	}

	var p = NewPrioritizer(rows)
	var ops = make([]store.Op, 0, count)
	var out = make([][]string, 0, count)

	for i := 0; i != count; i++ {
		var row = p.Next(host, queues)

		var enc, err = json.Marshal(row)
		if err != nil {
			return nil, errors.WithMessage(err, "encoding row")
		}
		ops = append(ops, store.Put(store.Seq(prefix, seq+int64(i)), string(enc)))
		out = append(out, row.Queues())

		if log.IsLevelEnabled(log.DebugLevel) {
			log.WithFields(log.Fields{"ns": ns, "row": row.String()}).Debug("built matrix row")
		}
	}
	if err = b.store.Commit(ctx, ops...); err != nil {
		return nil, errors.WithMessage(err, "appending matrix rows")
	}
	matrixRowsBuiltTotal.Add(float64(count))
	return out, nil
}

// storedRow is a Row and its key.
type storedRow struct {
	key string
	pb.Row
}

func decodeRows(kvs []store.KeyValue) ([]pb.Row, error) {
	var out = make([]pb.Row, len(kvs))
	for i, kv := range kvs {
		if err := json.Unmarshal([]byte(kv.Value), &out[i]); err != nil {
			return nil, errors.WithMessagef(err, "decoding row %s", kv.Key)
		}
	}
	return out, nil
}
