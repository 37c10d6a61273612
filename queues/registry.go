// Package queues maintains the per-namespace mapping of queue names to
// weights, from which each queue's share of worker resources is derived.
package queues

import (
	"context"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	pb "go.qtrix.dev/qtrix/protocol"
	"go.qtrix.dev/qtrix/store"
)

// Registry of queue weights.
type Registry struct {
	store store.Store
	keys  store.Keys
}

// NewRegistry returns a Registry persisting to |s| under |keys|.
func NewRegistry(s store.Store, keys store.Keys) *Registry {
	return &Registry{store: s, keys: keys}
}

// SetWeights replaces the weights of namespace |ns| with |weights|. Every
// entry is validated before anything is written. On success the matrix of
// the namespace is invalidated in the same commit.
func (r *Registry) SetWeights(ctx context.Context, ns string, weights map[string]float64) error {
	var names = make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)

	var next = make(map[string]string, len(weights))
	for _, name := range names {
		var q = pb.Queue{Name: name, Weight: weights[name]}
		if err := q.Validate(); err != nil {
			return pb.ExtendContext(err, "weights[%s]", name)
		}
		next[r.keys.Queue(ns, name)] = strconv.FormatFloat(q.Weight, 'g', -1, 64)
	}

	var existing, err = r.store.List(ctx, r.keys.Queues(ns))
	if err != nil {
		return err
	}
	var ops = append(store.Replace(existing, next), store.DeletePrefix(r.keys.Matrix(ns)))

	if err = r.store.Commit(ctx, ops...); err != nil {
		return errors.WithMessage(err, "writing queue weights")
	}
	log.WithFields(log.Fields{"ns": ns, "weights": weights}).Info("changed queue weights")
	return nil
}

// List returns the queues of namespace |ns|, ordered on descending weight
// (and then on name). It returns a *ConfigurationError if none are defined.
func (r *Registry) List(ctx context.Context, ns string) ([]pb.Queue, error) {
	var queues, total, err = r.load(ctx, ns)
	if err != nil {
		return nil, err
	} else if len(queues) == 0 {
		log.WithField("ns", ns).Warn("no queue distribution defined")
		return nil, pb.NewConfigurationError(ns, "no queue distribution defined")
	}
	for i := range queues {
		queues[i].ResourcePercentage = queues[i].Weight / total
	}
	sort.SliceStable(queues, func(i, j int) bool {
		if queues[i].Weight != queues[j].Weight {
			return queues[i].Weight > queues[j].Weight
		}
		return queues[i].Name < queues[j].Name
	})
	return queues, nil
}

// TotalWeight returns the sum of weights of namespace |ns|.
func (r *Registry) TotalWeight(ctx context.Context, ns string) (float64, error) {
	var _, total, err = r.load(ctx, ns)
	return total, err
}

// Count returns the number of queues of namespace |ns|.
func (r *Registry) Count(ctx context.Context, ns string) (int, error) {
	var queues, _, err = r.load(ctx, ns)
	return len(queues), err
}

// Weights returns the weights of namespace |ns| as a map.
func (r *Registry) Weights(ctx context.Context, ns string) (map[string]float64, error) {
	var queues, _, err = r.load(ctx, ns)
	if err != nil {
		return nil, err
	}
	var out = make(map[string]float64, len(queues))
	for _, q := range queues {
		out[q.Name] = q.Weight
	}
	return out, nil
}

// Clear removes all queue weights of namespace |ns|, and its matrix.
func (r *Registry) Clear(ctx context.Context, ns string) error {
	log.WithField("ns", ns).Info("clearing queue weights")
	return r.store.Commit(ctx,
		store.DeletePrefix(r.keys.Queues(ns)),
		store.DeletePrefix(r.keys.Matrix(ns)))
}

func (r *Registry) load(ctx context.Context, ns string) ([]pb.Queue, float64, error) {
	var prefix = r.keys.Queues(ns)
	var kvs, err = r.store.List(ctx, prefix)
	if err != nil {
		return nil, 0, err
	}
	var queues = make([]pb.Queue, 0, len(kvs))
	var total float64

	for _, kv := range kvs {
		var w, err = strconv.ParseFloat(kv.Value, 64)
		if err != nil {
			return nil, 0, errors.WithMessagef(err, "parsing weight of %s", kv.Key)
		}
		queues = append(queues, pb.Queue{Name: store.Suffix(prefix, kv.Key), Weight: w})
		total += w
	}
	return queues, total, nil
}
