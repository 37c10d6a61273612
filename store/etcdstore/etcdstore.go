// Package etcdstore implements store.Store over an Etcd v3 cluster. Commits
// are issued as Etcd transactions, and key lifetimes (host liveness, the
// fleet lock) are bound to Etcd leases, so that expiry is measured by the
// Etcd cluster rather than by the clocks of individual processes.
package etcdstore

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.qtrix.dev/qtrix/store"
)

// Store is a store.Store backed by Etcd.
type Store struct {
	client *clientv3.Client
}

// New returns a Store using the Etcd |client|.
func New(client *clientv3.Client) *Store {
	return &Store{client: client}
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, key string) (store.KeyValue, bool, error) {
	var resp, err = s.client.Get(ctx, key)
	if err != nil {
		return store.KeyValue{}, false, errors.WithMessagef(err, "get %s", key)
	} else if len(resp.Kvs) == 0 {
		return store.KeyValue{}, false, nil
	}
	var kv = resp.Kvs[0]
	return store.KeyValue{Key: string(kv.Key), Value: string(kv.Value), Revision: kv.ModRevision}, true, nil
}

// List implements store.Store.
func (s *Store) List(ctx context.Context, prefix string) ([]store.KeyValue, error) {
	var resp, err = s.client.Get(ctx, prefix,
		clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		return nil, errors.WithMessagef(err, "list %s", prefix)
	}
	var out = make([]store.KeyValue, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		out = append(out, store.KeyValue{Key: string(kv.Key), Value: string(kv.Value), Revision: kv.ModRevision})
	}
	return out, nil
}

// Commit implements store.Store. Commits of up to store.MaxCommitOps are
// applied as a single Etcd transaction. Larger commits are flushed as a
// sequence of transactions, and are not atomic.
func (s *Store) Commit(ctx context.Context, ops ...store.Op) error {
	if err := store.CheckOps(ops); err != nil {
		return err
	}
	var txn = newBatchedTxn(ctx, s.client)

	for _, op := range ops {
		if err := txn.Then(toEtcdOp(op)); err != nil {
			return err
		}
	}
	return txn.Flush()
}

// Touch implements store.Store. If |key| exists under a live lease, that
// lease is kept alive and |key| is put with |value| under it. Otherwise a new
// lease of |ttl| is granted and |key| is put under it.
func (s *Store) Touch(ctx context.Context, key, value string, ttl time.Duration) error {
	var resp, err = s.client.Get(ctx, key)
	if err != nil {
		return errors.WithMessagef(err, "get %s", key)
	}
	if len(resp.Kvs) != 0 && resp.Kvs[0].Lease != 0 {
		var lease = clientv3.LeaseID(resp.Kvs[0].Lease)

		if err = s.keepAlive(ctx, key, value, string(resp.Kvs[0].Value), lease); err == nil {
			return nil
		} else if err != rpctypes.ErrLeaseNotFound {
			return errors.WithMessagef(err, "keep-alive of %s", key)
		}
		// The lease expired since our Get. Fall through to re-grant.
	}

	grant, err := s.client.Grant(ctx, ttlSeconds(ttl))
	if err != nil {
		return errors.WithMessage(err, "granting lease")
	}
	if _, err = s.client.Put(ctx, key, value, clientv3.WithLease(grant.ID)); err != nil {
		return errors.WithMessagef(err, "put %s", key)
	}
	return nil
}

// keepAlive refreshes |lease|, and puts |value| under it if it differs
// from |current|.
func (s *Store) keepAlive(ctx context.Context, key, value, current string, lease clientv3.LeaseID) error {
	if _, err := s.client.KeepAliveOnce(ctx, lease); err != nil {
		return err
	} else if value == current {
		return nil
	}
	var _, err = s.client.Put(ctx, key, value, clientv3.WithLease(lease))
	return err
}

// Acquire implements store.Store.
func (s *Store) Acquire(ctx context.Context, key, value string, ttl time.Duration) (store.LeaseID, bool, error) {
	var grant, err = s.client.Grant(ctx, ttlSeconds(ttl))
	if err != nil {
		return 0, false, errors.WithMessage(err, "granting lease")
	}

	resp, err := s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.Version(key), "=", 0)).
		Then(clientv3.OpPut(key, value, clientv3.WithLease(grant.ID))).
		Commit()

	if err == nil && resp.Succeeded {
		return store.LeaseID(grant.ID), true, nil
	}
	// Key exists (or the Txn failed). Don't leave our lease dangling.
	if _, revokeErr := s.client.Revoke(ctx, grant.ID); revokeErr != nil {
		log.WithFields(log.Fields{"key": key, "err": revokeErr}).Warn("failed to revoke unused lease")
	}
	if err != nil {
		return 0, false, errors.WithMessagef(err, "acquire %s", key)
	}
	return 0, false, nil
}

// Release implements store.Store. Revoking the lease removes |key| iff it's
// still attached: a key which expired and was re-acquired by another holder
// is under a different lease, and is left alone.
func (s *Store) Release(ctx context.Context, key string, lease store.LeaseID) error {
	if _, err := s.client.Revoke(ctx, clientv3.LeaseID(lease)); err != nil && err != rpctypes.ErrLeaseNotFound {
		return errors.WithMessagef(err, "release %s", key)
	}
	return nil
}

func toEtcdOp(op store.Op) clientv3.Op {
	switch op.Type {
	case store.OpPut:
		return clientv3.OpPut(op.Key, op.Value)
	case store.OpDelete:
		return clientv3.OpDelete(op.Key)
	case store.OpDeletePrefix:
		return clientv3.OpDelete(op.Key, clientv3.WithPrefix())
	default:
		panic(fmt.Sprintf("unexpected op type %d", op.Type))
	}
}

// ttlSeconds rounds |ttl| up to whole seconds, as required by Etcd leases.
func ttlSeconds(ttl time.Duration) int64 {
	var s = int64(math.Ceil(ttl.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}

var _ store.Store = (*Store)(nil)
