package etcdstore

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.qtrix.dev/qtrix/store"
)

// batchedTxn queues Etcd operations and applies them as transactions of at
// most store.MaxCommitOps operations each. Operations of a flushed batch are
// applied atomically, but a batchedTxn which flushes multiple times is not.
type batchedTxn struct {
	// txnDo executes a OpTxn.
	txnDo func(txn clientv3.Op) (*clientv3.TxnResponse, error)
	ops   []clientv3.Op
	// Number of underlying transactions applied.
	flushes int
}

func newBatchedTxn(ctx context.Context, kv clientv3.KV) *batchedTxn {
	return &batchedTxn{
		txnDo: func(txn clientv3.Op) (*clientv3.TxnResponse, error) {
			if r, err := kv.Do(ctx, txn); err != nil {
				return nil, err
			} else {
				return r.Txn(), nil
			}
		},
	}
}

// Then queues |op|, first flushing queued operations if the batch is full.
func (b *batchedTxn) Then(op clientv3.Op) error {
	if len(b.ops) == store.MaxCommitOps {
		if err := b.Flush(); err != nil {
			return err
		}
	}
	b.ops = append(b.ops, op)
	return nil
}

// Flush applies queued operations as a single transaction.
func (b *batchedTxn) Flush() error {
	if len(b.ops) == 0 {
		return nil // No-op.
	}
	var response, err = b.txnDo(clientv3.OpTxn(nil, b.ops, nil))

	if log.GetLevel() >= log.DebugLevel {
		b.debugLogTxn(response, err)
	}
	if err != nil {
		return errors.WithMessage(err, "etcd txn")
	} else if !response.Succeeded {
		return fmt.Errorf("transaction did not succeed")
	}
	if b.flushes++; b.flushes > 1 {
		log.WithField("flushes", b.flushes).Warn("commit spanned multiple etcd transactions")
	}
	b.ops = b.ops[:0]
	return nil
}

func (b *batchedTxn) debugLogTxn(response *clientv3.TxnResponse, err error) {
	var dbgOps []string
	for _, o := range b.ops {
		if o.IsPut() {
			dbgOps = append(dbgOps, fmt.Sprintf("PUT %q", string(o.KeyBytes())))
		} else if o.IsDelete() {
			dbgOps = append(dbgOps, fmt.Sprintf("DEL %q", string(o.KeyBytes())))
		}
	}
	var rev int64
	if err == nil {
		rev = response.Header.Revision
	}
	log.WithFields(log.Fields{
		"ops": dbgOps,
		"rev": rev,
		"err": err,
	}).Debug("etcd txn")
}
