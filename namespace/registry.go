// Package namespace manages the set of namespaces (configuration sets), and
// the pointer to the namespace which is currently active. The "default"
// namespace always exists, and is current until another is activated.
package namespace

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	pb "go.qtrix.dev/qtrix/protocol"
	"go.qtrix.dev/qtrix/store"
)

// Weights is the subset of queues.Registry used by a Registry.
type Weights interface {
	Weights(ctx context.Context, ns string) (map[string]float64, error)
	SetWeights(ctx context.Context, ns string, weights map[string]float64) error
}

// Overrides is the subset of override.Registry used by a Registry.
type Overrides interface {
	All(ctx context.Context, ns string) ([]pb.Override, error)
	Add(ctx context.Context, ns string, queues []string, count int) error
}

// Registry of namespaces.
type Registry struct {
	store     store.Store
	keys      store.Keys
	weights   Weights
	overrides Overrides
}

// NewRegistry returns a Registry persisting to |s| under |keys|. Namespace
// weights and overrides are read and cloned through |w| and |o|.
func NewRegistry(s store.Store, keys store.Keys, w Weights, o Overrides) *Registry {
	return &Registry{store: s, keys: keys, weights: w, overrides: o}
}

// List returns all namespaces in sorted order, including the default.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	var prefix = r.keys.Namespaces()
	var kvs, err = r.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var out = []string{pb.DefaultNamespace}
	for _, kv := range kvs {
		if ns := store.Suffix(prefix, kv.Key); ns != pb.DefaultNamespace {
			out = append(out, ns)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Exists returns true if namespace |ns| exists.
func (r *Registry) Exists(ctx context.Context, ns string) (bool, error) {
	if err := validateName(ns); err != nil {
		return false, err
	} else if ns == pb.DefaultNamespace {
		return true, nil
	}
	var _, ok, err = r.store.Get(ctx, r.keys.Namespace(ns))
	return ok, err
}

// Create creates the namespace |ns|, which must not already exist.
func (r *Registry) Create(ctx context.Context, ns string) error {
	if err := validateName(ns); err != nil {
		return err
	}
	if ok, err := r.Exists(ctx, ns); err != nil {
		return err
	} else if ok {
		return pb.NewNamespaceError(ns, "already exists")
	}
	if err := r.store.Commit(ctx, store.Put(r.keys.Namespace(ns), "")); err != nil {
		return errors.WithMessage(err, "creating namespace")
	}
	log.WithField("ns", ns).Info("created namespace")
	return nil
}

// Current returns the current namespace.
func (r *Registry) Current(ctx context.Context) (string, error) {
	var kv, ok, err = r.store.Get(ctx, r.keys.Current())
	if err != nil {
		return "", err
	} else if !ok || kv.Value == "" {
		return pb.DefaultNamespace, nil
	}
	return kv.Value, nil
}

// Activate makes |ns| the current namespace. Namespaces other than the
// default must have queue weights to be activated.
func (r *Registry) Activate(ctx context.Context, ns string) error {
	if err := validateName(ns); err != nil {
		return err
	}
	if ok, err := r.Exists(ctx, ns); err != nil {
		return err
	} else if !ok {
		return pb.NewNamespaceError(ns, "unknown namespace")
	}
	if ns != pb.DefaultNamespace {
		if w, err := r.weights.Weights(ctx, ns); err != nil {
			return err
		} else if len(w) == 0 {
			return pb.NewNamespaceError(ns, "namespace is empty")
		}
	}
	if err := r.store.Commit(ctx, store.Put(r.keys.Current(), ns)); err != nil {
		return errors.WithMessage(err, "activating namespace")
	}
	log.WithField("ns", ns).Info("activated namespace")
	return nil
}

// Remove removes namespace |ns| and all of its state. The default and the
// current namespace cannot be removed. Removing an unknown namespace is a no-op.
func (r *Registry) Remove(ctx context.Context, ns string) error {
	if err := validateName(ns); err != nil {
		return err
	} else if ns == pb.DefaultNamespace {
		return pb.NewNamespaceError(ns, "cannot remove the default namespace")
	}
	if ok, err := r.Exists(ctx, ns); err != nil {
		return err
	} else if !ok {
		log.WithField("ns", ns).Warn("namespace to remove does not exist")
		return nil
	}
	if current, err := r.Current(ctx); err != nil {
		return err
	} else if ns == current {
		return pb.NewNamespaceError(ns, "cannot remove the current namespace")
	}
	if err := r.store.Commit(ctx,
		store.Delete(r.keys.Namespace(ns)),
		store.DeletePrefix(r.keys.NamespaceRoot(ns)),
	); err != nil {
		return errors.WithMessage(err, "removing namespace")
	}
	log.WithField("ns", ns).Info("removed namespace")
	return nil
}

// Clone creates namespace |dst| from |src|, copying its weights and adding
// one unclaimed override unit for each unit of |src|. |src| must exist and
// |dst| must not.
func (r *Registry) Clone(ctx context.Context, src, dst string) error {
	if err := validateName(src); err != nil {
		return err
	} else if err = validateName(dst); err != nil {
		return err
	}
	if ok, err := r.Exists(ctx, src); err != nil {
		return err
	} else if !ok {
		return pb.NewNamespaceError(src, "unknown namespace")
	}
	var weights, err = r.weights.Weights(ctx, src)
	if err != nil {
		return err
	}
	overrides, err := r.overrides.All(ctx, src)
	if err != nil {
		return err
	}

	if err = r.Create(ctx, dst); err != nil {
		return err
	}
	if len(weights) != 0 {
		if err = r.weights.SetWeights(ctx, dst, weights); err != nil {
			return errors.WithMessage(err, "cloning weights")
		}
	}
	for _, o := range overrides {
		if err = r.overrides.Add(ctx, dst, o.Queues, 1); err != nil {
			return errors.WithMessage(err, "cloning overrides")
		}
	}
	log.WithFields(log.Fields{"src": src, "dst": dst}).Info("cloned namespace")
	return nil
}

func validateName(ns string) error {
	if err := pb.ValidateNamespaceName(ns); err != nil {
		return pb.ExtendContext(err, "namespace")
	}
	return nil
}
