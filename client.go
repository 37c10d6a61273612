package qtrix

import (
	"context"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.qtrix.dev/qtrix/hosts"
	"go.qtrix.dev/qtrix/lock"
	"go.qtrix.dev/qtrix/matrix"
	"go.qtrix.dev/qtrix/namespace"
	"go.qtrix.dev/qtrix/override"
	pb "go.qtrix.dev/qtrix/protocol"
	"go.qtrix.dev/qtrix/queues"
	"go.qtrix.dev/qtrix/store"
	"k8s.io/utils/clock"
)

// Options of a Client. Zero-valued fields take defaults.
type Options struct {
	// MIATimeout after which a host which hasn't fetched is offline.
	MIATimeout time.Duration
	// FetchWait bounds the wait for the lock by FetchQueues, after which
	// the namespace's last result is returned.
	FetchWait time.Duration
	// LockWait bounds the wait for the lock by all other mutations.
	LockWait time.Duration
	// LockHold bounds the duration for which the lock is held.
	LockHold time.Duration
	// CacheSize is the number of namespaces for which last results are retained.
	CacheSize int
}

const (
	// DefaultFetchWait is the default Options.FetchWait.
	DefaultFetchWait = 5 * time.Second
	// DefaultCacheSize is the default Options.CacheSize.
	DefaultCacheSize = 64
)

// Client of a qtrix fleet.
type Client struct {
	id   string
	opts Options

	queues     *queues.Registry
	overrides  *override.Registry
	hosts      *hosts.Tracker
	matrix     *matrix.Matrix
	namespaces *namespace.Registry
	locker     *lock.Locker

	// Last FetchQueues results, keyed on namespace.
	results *lru.Cache
}

// NewClient returns a Client of state held in |s| under |keys|. Time is
// measured by |clk|.
func NewClient(s store.Store, keys store.Keys, clk clock.Clock, opts Options) *Client {
	if opts.FetchWait == 0 {
		opts.FetchWait = DefaultFetchWait
	}
	if opts.LockWait == 0 {
		opts.LockWait = lock.DefaultWait
	}
	if opts.LockHold == 0 {
		opts.LockHold = lock.DefaultHold
	}
	if opts.CacheSize == 0 {
		opts.CacheSize = DefaultCacheSize
	}
	var results, err = lru.New(opts.CacheSize)
	if err != nil {
		panic(err.Error()) // Only errors on size <= 0.
	}
	var id = uuid.New().String()

	var c = &Client{
		id:        id,
		queues:    queues.NewRegistry(s, keys),
		overrides: override.NewRegistry(s, keys),
		hosts:     hosts.NewTracker(s, keys, clk, opts.MIATimeout),
		locker:    lock.NewLocker(s, keys, clk, id),
		results:   results,
	}
	c.matrix = matrix.New(s, keys, c.queues)
	c.namespaces = namespace.NewRegistry(s, keys, c.queues, c.overrides)
	opts.MIATimeout = c.hosts.MIATimeout()
	c.opts = opts

	return c
}

// ID uniquely identifies the Client. It's recorded as the holder of the lock.
func (c *Client) ID() string { return c.id }

// DesiredDistribution returns the weighted queues of namespace |ns|, on
// descending weight. An empty |ns| is the current namespace.
func (c *Client) DesiredDistribution(ctx context.Context, ns string) ([]pb.Queue, error) {
	if ns, err := c.resolve(ctx, ns); err != nil {
		return nil, err
	} else {
		return c.queues.List(ctx, ns)
	}
}

// MapQueueWeights replaces the queue weights of namespace |ns|.
func (c *Client) MapQueueWeights(ctx context.Context, ns string, weights map[string]float64) error {
	return c.mutate(ctx, ns, "mapping queue weights", func(ctx context.Context, ns string) error {
		return c.queues.SetWeights(ctx, ns, weights)
	})
}

// AddOverride adds |count| override units of |queues| to namespace |ns|.
func (c *Client) AddOverride(ctx context.Context, ns string, queues []string, count int) error {
	return c.mutate(ctx, ns, "adding override", func(ctx context.Context, ns string) error {
		return c.overrides.Add(ctx, ns, queues, count)
	})
}

// RemoveOverride removes up to |count| override units of |queues| from namespace |ns|.
func (c *Client) RemoveOverride(ctx context.Context, ns string, queues []string, count int) error {
	return c.mutate(ctx, ns, "removing override", func(ctx context.Context, ns string) error {
		return c.overrides.Remove(ctx, ns, queues, count)
	})
}

// ClearOverrides removes all override units of namespace |ns|.
func (c *Client) ClearOverrides(ctx context.Context, ns string) error {
	return c.mutate(ctx, ns, "clearing overrides", func(ctx context.Context, ns string) error {
		return c.overrides.Clear(ctx, ns)
	})
}

// Overrides returns all override units of namespace |ns|, with their claims.
func (c *Client) Overrides(ctx context.Context, ns string) ([]pb.Override, error) {
	if ns, err := c.resolve(ctx, ns); err != nil {
		return nil, err
	} else {
		return c.overrides.All(ctx, ns)
	}
}

// KnownHosts returns the hosts of namespace |ns|, most recently seen first.
func (c *Client) KnownHosts(ctx context.Context, ns string) ([]pb.HostRecord, error) {
	if ns, err := c.resolve(ctx, ns); err != nil {
		return nil, err
	} else {
		return c.hosts.All(ctx, ns)
	}
}

// MatrixTable returns the rows of the matrix of namespace |ns| as queue lists.
func (c *Client) MatrixTable(ctx context.Context, ns string) ([][]string, error) {
	if ns, err := c.resolve(ctx, ns); err != nil {
		return nil, err
	} else {
		return c.matrix.ToTable(ctx, ns)
	}
}

// Clear removes the matrix, override claims, and known hosts of namespace
// |ns|. Weights and override units are retained.
func (c *Client) Clear(ctx context.Context, ns string) error {
	return c.mutate(ctx, ns, "clearing", c.clear)
}

func (c *Client) clear(ctx context.Context, ns string) error {
	log.WithField("ns", ns).Info("clearing data")

	if err := c.overrides.ClearClaims(ctx, ns); err != nil {
		return err
	} else if err = c.hosts.Clear(ctx, ns); err != nil {
		return err
	}
	return c.matrix.Clear(ctx, ns)
}

// ConfigurationSets returns all namespaces.
func (c *Client) ConfigurationSets(ctx context.Context) ([]string, error) {
	return c.namespaces.List(ctx)
}

// CurrentConfigurationSet returns the current namespace.
func (c *Client) CurrentConfigurationSet(ctx context.Context) (string, error) {
	return c.namespaces.Current(ctx)
}

// CreateConfigurationSet creates namespace |ns|.
func (c *Client) CreateConfigurationSet(ctx context.Context, ns string) error {
	return c.withLock(ctx, func(ctx context.Context) error {
		return c.namespaces.Create(ctx, ns)
	})
}

// RemoveConfigurationSet removes namespace |ns| and all of its state.
func (c *Client) RemoveConfigurationSet(ctx context.Context, ns string) error {
	return c.withLock(ctx, func(ctx context.Context) error {
		if err := c.namespaces.Remove(ctx, ns); err != nil {
			return err
		}
		c.results.Remove(ns)
		return nil
	})
}

// ActivateConfigurationSet makes |ns| the current namespace.
func (c *Client) ActivateConfigurationSet(ctx context.Context, ns string) error {
	return c.withLock(ctx, func(ctx context.Context) error {
		return c.namespaces.Activate(ctx, ns)
	})
}

// CloneConfigurationSet creates namespace |dst| as a copy of the weights and
// override units of |src|.
func (c *Client) CloneConfigurationSet(ctx context.Context, src, dst string) error {
	return c.withLock(ctx, func(ctx context.Context) error {
		return c.namespaces.Clone(ctx, src, dst)
	})
}

// resolve maps an empty |ns| to the current namespace, and otherwise
// validates it.
func (c *Client) resolve(ctx context.Context, ns string) (string, error) {
	if ns == "" {
		return c.namespaces.Current(ctx)
	} else if err := pb.ValidateNamespaceName(ns); err != nil {
		return "", pb.ExtendContext(err, "namespace")
	}
	return ns, nil
}

// mutate resolves |ns| and invokes |fn| under the lock. |ns| must exist.
func (c *Client) mutate(ctx context.Context, ns, desc string, fn func(context.Context, string) error) error {
	var err error
	if ns, err = c.resolve(ctx, ns); err != nil {
		return err
	}
	err = c.withLock(ctx, func(ctx context.Context) error {
		if ok, err := c.namespaces.Exists(ctx, ns); err != nil {
			return err
		} else if !ok {
			return pb.NewNamespaceError(ns, "unknown namespace")
		}
		return fn(ctx, ns)
	})

	if err != nil {
		log.WithFields(log.Fields{"ns": ns, "err": err}).Warn(desc + " failed")
		return errors.WithMessage(err, desc)
	}
	return nil
}

func (c *Client) withLock(ctx context.Context, body func(context.Context) error) error {
	return c.locker.WithLock(ctx, lock.Options{Wait: c.opts.LockWait, Hold: c.opts.LockHold}, body)
}
