// Package memstore is an in-process implementation of store.Store. Key
// expiry is measured against an injected clock.Clock, which makes it suited
// to tests driving time with a fake clock, and to local dry-runs.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.qtrix.dev/qtrix/store"
	"k8s.io/utils/clock"
)

// Store is an in-memory store.Store.
type Store struct {
	clock clock.PassiveClock

	mu       sync.Mutex
	kvs      map[string]entry
	revision int64
	leaseID  store.LeaseID
}

type entry struct {
	value    string
	revision int64
	lease    store.LeaseID
	expires  time.Time // Zero if the entry doesn't expire.
}

// New returns an empty Store using |clk| to measure expiry.
func New(clk clock.PassiveClock) *Store {
	return &Store{
		clock: clk,
		kvs:   make(map[string]entry),
	}
}

// Get implements store.Store.
func (s *Store) Get(_ context.Context, key string) (store.KeyValue, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.live(key); ok {
		return store.KeyValue{Key: key, Value: e.value, Revision: e.revision}, true, nil
	}
	return store.KeyValue{}, false, nil
}

// List implements store.Store.
func (s *Store) List(_ context.Context, prefix string) ([]store.KeyValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.KeyValue
	for k := range s.kvs {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if e, ok := s.live(k); ok {
			out = append(out, store.KeyValue{Key: k, Value: e.value, Revision: e.revision})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Commit implements store.Store. All |ops| are applied atomically.
func (s *Store) Commit(_ context.Context, ops ...store.Op) error {
	if err := store.CheckOps(ops); err != nil {
		return err
	} else if len(ops) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.revision++
	for _, op := range ops {
		switch op.Type {
		case store.OpPut:
			s.kvs[op.Key] = entry{value: op.Value, revision: s.revision}
		case store.OpDelete:
			delete(s.kvs, op.Key)
		case store.OpDeletePrefix:
			for k := range s.kvs {
				if strings.HasPrefix(k, op.Key) {
					delete(s.kvs, k)
				}
			}
		}
	}
	return nil
}

// Touch implements store.Store.
func (s *Store) Touch(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.revision++
	s.leaseID++
	s.kvs[key] = entry{
		value:    value,
		revision: s.revision,
		lease:    s.leaseID,
		expires:  s.clock.Now().Add(ttl),
	}
	return nil
}

// Acquire implements store.Store.
func (s *Store) Acquire(_ context.Context, key, value string, ttl time.Duration) (store.LeaseID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live(key); ok {
		return 0, false, nil
	}
	s.revision++
	s.leaseID++
	s.kvs[key] = entry{
		value:    value,
		revision: s.revision,
		lease:    s.leaseID,
		expires:  s.clock.Now().Add(ttl),
	}
	return s.leaseID, true, nil
}

// Release implements store.Store.
func (s *Store) Release(_ context.Context, key string, lease store.LeaseID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.live(key); ok && e.lease == lease {
		delete(s.kvs, key)
	}
	return nil
}

// live returns the entry of |key| if it exists and hasn't expired. Expired
// entries are removed. |mu| must be held.
func (s *Store) live(key string) (entry, bool) {
	var e, ok = s.kvs[key]
	if !ok {
		return entry{}, false
	} else if !e.expires.IsZero() && !s.clock.Now().Before(e.expires) {
		delete(s.kvs, key)
		return entry{}, false
	}
	return e, true
}

var _ store.Store = (*Store)(nil)
