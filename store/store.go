// Package store defines the narrow key/value interface through which qtrix
// components persist shared state, and the pure composition of that state's
// key layout. Implementations live in sub-packages: etcdstore (production)
// and memstore (tests and local dry-runs).
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// KeyValue is a stored key and its value.
type KeyValue struct {
	Key   string
	Value string
	// Revision at which the key was last modified. Revisions are assigned by
	// the store and increase with every committed write, store-wide.
	Revision int64
}

// LeaseID identifies a time-bounded hold over a key, as returned by Acquire.
type LeaseID int64

// Store is implemented by qtrix storage backends.
type Store interface {
	// Get returns the KeyValue of |key|, or false if it doesn't exist (or has expired).
	Get(ctx context.Context, key string) (KeyValue, bool, error)
	// List returns all KeyValues prefixed by |prefix|, ordered on key.
	List(ctx context.Context, prefix string) ([]KeyValue, error)
	// Commit applies |ops| together. Implementations apply up to MaxCommitOps
	// operations atomically. Larger commits may be split into multiple
	// underlying transactions.
	Commit(ctx context.Context, ops ...Op) error
	// Touch puts |key| with |value|, and arranges for the key to expire unless
	// it's touched again within |ttl|. Expiry is measured by the store.
	Touch(ctx context.Context, key, value string, ttl time.Duration) error
	// Acquire creates |key| with |value| iff it doesn't already exist, bounding
	// its lifetime to |ttl| as measured by the store. It returns the LeaseID
	// of the hold and true if created, or false if the key exists.
	Acquire(ctx context.Context, key, value string, ttl time.Duration) (LeaseID, bool, error)
	// Release deletes |key| iff it's still held under |lease|.
	Release(ctx context.Context, key string, lease LeaseID) error
}

// OpType is the type of an Op.
type OpType int

const (
	// OpPut puts a key and value.
	OpPut OpType = iota
	// OpDelete deletes a single key.
	OpDelete
	// OpDeletePrefix deletes all keys having a prefix.
	OpDeletePrefix
)

// Op is a mutation applied by Store.Commit.
type Op struct {
	Type  OpType
	Key   string
	Value string
}

// Put returns an Op which puts |key| with |value|.
func Put(key, value string) Op { return Op{Type: OpPut, Key: key, Value: value} }

// Delete returns an Op which deletes |key|.
func Delete(key string) Op { return Op{Type: OpDelete, Key: key} }

// DeletePrefix returns an Op which deletes all keys prefixed by |prefix|.
func DeletePrefix(prefix string) Op { return Op{Type: OpDeletePrefix, Key: prefix} }

func (op Op) String() string {
	switch op.Type {
	case OpPut:
		return fmt.Sprintf("PUT %q", op.Key)
	case OpDelete:
		return fmt.Sprintf("DEL %q", op.Key)
	default:
		return fmt.Sprintf("DEL %q*", op.Key)
	}
}

// CheckOps returns an error if any key of |ops| is mutated more than once,
// including a put of a key falling within a deleted prefix. Etcd rejects such
// transactions, and all Store implementations reject them for parity.
func CheckOps(ops []Op) error {
	var keys = make(map[string]struct{}, len(ops))
	var prefixes []string

	for _, op := range ops {
		if op.Type == OpDeletePrefix {
			prefixes = append(prefixes, op.Key)
			continue
		}
		if _, ok := keys[op.Key]; ok {
			return fmt.Errorf("duplicate key given in commit (%s)", op.Key)
		}
		keys[op.Key] = struct{}{}
	}
	for _, p := range prefixes {
		for k := range keys {
			if strings.HasPrefix(k, p) {
				return fmt.Errorf("key %s overlaps deleted prefix %s", k, p)
			}
		}
	}
	return nil
}

// Replace returns Ops which transform the |existing| KeyValues into exactly
// the keys and values of |next|. Unchanged keys are not re-written.
func Replace(existing []KeyValue, next map[string]string) []Op {
	var ops []Op
	var seen = make(map[string]struct{}, len(existing))

	for _, kv := range existing {
		seen[kv.Key] = struct{}{}
		if v, ok := next[kv.Key]; !ok {
			ops = append(ops, Delete(kv.Key))
		} else if v != kv.Value {
			ops = append(ops, Put(kv.Key, v))
		}
	}
	var puts []string
	for k := range next {
		if _, ok := seen[k]; !ok {
			puts = append(puts, k)
		}
	}
	sort.Strings(puts)
	for _, k := range puts {
		ops = append(ops, Put(k, next[k]))
	}
	return ops
}

// MaxCommitOps is set to etcd's `embed/config.go.DefaultMaxTxnOps`. Etcd allows
// configuration at runtime with --max-txn-ops. We assume the default.
const MaxCommitOps = 128
