// Package override maintains "flood overrides": units which each pin one
// worker to a list of queues, regardless of the weighted distribution.
// Units are claimed by requesting hosts, and a claim holds until claims are
// explicitly cleared.
//
// Each unit is stored under a sequence key, and its claim (if any) under the
// same sequence within a parallel claims prefix. Units are claimed, removed,
// and returned in sequence order.
package override

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	pb "go.qtrix.dev/qtrix/protocol"
	"go.qtrix.dev/qtrix/store"
)

// Registry of overrides.
type Registry struct {
	store store.Store
	keys  store.Keys
}

// NewRegistry returns a Registry persisting to |s| under |keys|.
func NewRegistry(s store.Store, keys store.Keys) *Registry {
	return &Registry{store: s, keys: keys}
}

// unit is a stored Override and its sequence number.
type unit struct {
	seq int64
	pb.Override
}

// Add appends |count| independently claimable units of |queues| to namespace
// |ns|, and invalidates its matrix.
func (r *Registry) Add(ctx context.Context, ns string, queues []string, count int) error {
	if err := validate(queues, count); err != nil {
		return err
	}
	var prefix = r.keys.Overrides(ns)
	var kvs, err = r.store.List(ctx, prefix)
	if err != nil {
		return err
	}
	next, err := store.NextSeq(prefix, kvs)
	if err != nil {
		return err
	}

	var ops = make([]store.Op, 0, count+1)
	for i := 0; i != count; i++ {
		ops = append(ops, store.Put(store.Seq(prefix, next+int64(i)), pb.JoinQueues(queues)))
	}
	ops = append(ops, store.DeletePrefix(r.keys.Matrix(ns)))

	if err = r.store.Commit(ctx, ops...); err != nil {
		return errors.WithMessage(err, "adding overrides")
	}
	log.WithFields(log.Fields{"ns": ns, "queues": queues, "count": count}).Info("added overrides")
	return nil
}

// Remove removes up to |count| units of |queues| from namespace |ns|, oldest
// first, along with their claims. It invalidates the matrix.
func (r *Registry) Remove(ctx context.Context, ns string, queues []string, count int) error {
	if err := validate(queues, count); err != nil {
		return err
	}
	var units, err = r.load(ctx, ns)
	if err != nil {
		return err
	}
	var joined = pb.JoinQueues(queues)
	var ops []store.Op
	var removed int

	for _, u := range units {
		if removed == count {
			break
		} else if pb.JoinQueues(u.Queues) != joined {
			continue
		}
		ops = append(ops,
			store.Delete(store.Seq(r.keys.Overrides(ns), u.seq)),
			store.Delete(store.Seq(r.keys.Claims(ns), u.seq)))
		removed++
	}
	ops = append(ops, store.DeletePrefix(r.keys.Matrix(ns)))

	if err = r.store.Commit(ctx, ops...); err != nil {
		return errors.WithMessage(err, "removing overrides")
	}
	log.WithFields(log.Fields{"ns": ns, "queues": queues, "count": count, "removed": removed}).
		Info("removed overrides")
	return nil
}

// All returns every unit of namespace |ns|, with its claiming host if any.
func (r *Registry) All(ctx context.Context, ns string) ([]pb.Override, error) {
	var units, err = r.load(ctx, ns)
	if err != nil {
		return nil, err
	}
	var out = make([]pb.Override, len(units))
	for i, u := range units {
		out[i] = u.Override
	}
	return out, nil
}

// OverridesFor claims unclaimed units of namespace |ns| for |host|, until
// |host| holds |workers| units or no unclaimed units remain. It returns the
// queue lists of up to |workers| units claimed by |host|, in sequence order.
// Repeated calls return the same units until claims are cleared.
func (r *Registry) OverridesFor(ctx context.Context, ns, host string, workers int) ([][]string, error) {
	if workers <= 0 {
		return nil, nil
	}
	var units, err = r.load(ctx, ns)
	if err != nil {
		return nil, err
	}

	var held int
	for _, u := range units {
		if u.Host == host {
			held++
		}
	}
	var ops []store.Op
	for i := range units {
		if held+len(ops) >= workers {
			break
		} else if units[i].Host != "" {
			continue
		}
		units[i].Host = host
		ops = append(ops, store.Put(store.Seq(r.keys.Claims(ns), units[i].seq), host))
	}
	if len(ops) != 0 {
		if err = r.store.Commit(ctx, ops...); err != nil {
			return nil, errors.WithMessage(err, "claiming overrides")
		}
		log.WithFields(log.Fields{"ns": ns, "host": host, "claimed": len(ops)}).Debug("claimed overrides")
	}

	var out [][]string
	for _, u := range units {
		if len(out) == workers {
			break
		} else if u.Host == host {
			out = append(out, u.Queues)
		}
	}
	return out, nil
}

// ClearClaims drops all claims of namespace |ns|, retaining its units, and
// invalidates the matrix.
func (r *Registry) ClearClaims(ctx context.Context, ns string) error {
	log.WithField("ns", ns).Debug("clearing override claims")
	return r.store.Commit(ctx,
		store.DeletePrefix(r.keys.Claims(ns)),
		store.DeletePrefix(r.keys.Matrix(ns)))
}

// Clear drops all units and claims of namespace |ns|, and invalidates the matrix.
func (r *Registry) Clear(ctx context.Context, ns string) error {
	log.WithField("ns", ns).Info("clearing overrides")
	return r.store.Commit(ctx,
		store.DeletePrefix(r.keys.Overrides(ns)),
		store.DeletePrefix(r.keys.Claims(ns)),
		store.DeletePrefix(r.keys.Matrix(ns)))
}

// load joins units of namespace |ns| with their claims.
func (r *Registry) load(ctx context.Context, ns string) ([]unit, error) {
	var oPrefix, cPrefix = r.keys.Overrides(ns), r.keys.Claims(ns)

	var overrides, err = r.store.List(ctx, oPrefix)
	if err != nil {
		return nil, err
	}
	claims, err := r.store.List(ctx, cPrefix)
	if err != nil {
		return nil, err
	}
	var claimed = make(map[int64]string, len(claims))
	for _, kv := range claims {
		if seq, err := store.ParseSeq(cPrefix, kv.Key); err != nil {
			return nil, err
		} else {
			claimed[seq] = kv.Value
		}
	}

	var out = make([]unit, 0, len(overrides))
	for _, kv := range overrides {
		var seq, err = store.ParseSeq(oPrefix, kv.Key)
		if err != nil {
			return nil, err
		}
		out = append(out, unit{
			seq:      seq,
			Override: pb.Override{Queues: pb.SplitQueues(kv.Value), Host: claimed[seq]},
		})
	}
	return out, nil
}

func validate(queues []string, count int) error {
	if count <= 0 {
		return pb.NewValidationError("count must be > 0 (%d)", count)
	}
	return pb.Override{Queues: queues}.Validate()
}
