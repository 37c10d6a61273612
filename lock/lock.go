// Package lock implements the fleet-wide lock which serializes every
// state-mutating sequence of qtrix. The lock is a single store key, created
// only if absent, with a lifetime bounded by the store. A crashed holder
// therefore cannot block the fleet past its hold duration.
package lock

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
	pb "go.qtrix.dev/qtrix/protocol"
	"go.qtrix.dev/qtrix/store"
	"k8s.io/utils/clock"
)

const (
	// DefaultWait is the default duration to wait for the lock.
	DefaultWait = 10 * time.Second
	// DefaultHold is the default maximum duration for which the lock is held.
	DefaultHold = 6 * time.Second
	// PollInterval is the interval at which a contended lock is retried.
	PollInterval = 100 * time.Millisecond
)

// Options of a WithLock invocation.
type Options struct {
	// Wait bounds the time spent attempting to acquire the lock.
	Wait time.Duration
	// Hold bounds the time for which the lock is held. Once it elapses,
	// the lock is released by the store even if the holder hasn't.
	Hold time.Duration
	// OnTimeout, if non-nil, is invoked if the lock could not be acquired
	// within Wait, and its result is returned by WithLock. Otherwise
	// WithLock returns a *LockNotAcquired.
	OnTimeout func() error
}

// Locker acquires and releases the fleet-wide lock.
type Locker struct {
	store  store.Store
	key    string
	clock  clock.Clock
	holder string
}

// NewLocker returns a Locker of the lock of |keys| within |s|. Time spent
// waiting is measured by |clk|. |holder| identifies the Locker in the lock's
// value, for diagnostics.
func NewLocker(s store.Store, keys store.Keys, clk clock.Clock, holder string) *Locker {
	return &Locker{store: s, key: keys.Lock(), clock: clk, holder: holder}
}

// Holding is the value of a held lock.
type Holding struct {
	Expires time.Time `json:"expires"`
	Holder  string    `json:"holder"`
}

// WithLock acquires the lock and invokes |body|. The lock is released after
// |body| returns, regardless of its result, and |body|'s error is returned.
// Zero-valued Options use DefaultWait and DefaultHold.
func (l *Locker) WithLock(ctx context.Context, opts Options, body func(context.Context) error) error {
	if opts.Wait == 0 {
		opts.Wait = DefaultWait
	}
	if opts.Hold == 0 {
		opts.Hold = DefaultHold
	}

	var lease, err = l.acquire(ctx, opts)
	if err != nil {
		return err
	} else if lease == 0 {
		lockTimeoutTotal.Inc()
		log.WithFields(log.Fields{"key": l.key, "wait": opts.Wait}).Warn("timed out waiting for lock")

		if opts.OnTimeout != nil {
			return opts.OnTimeout()
		}
		return &pb.LockNotAcquired{Key: l.key, Wait: opts.Wait}
	}

	defer func() {
		// Release even if |ctx| was cancelled while the body ran.
		if err := l.store.Release(context.WithoutCancel(ctx), l.key, lease); err != nil {
			log.WithFields(log.Fields{"key": l.key, "err": err}).Warn("failed to release lock")
		}
	}()
	return body(ctx)
}

// Current returns the Holding of the lock, or false if it's not held.
func (l *Locker) Current(ctx context.Context) (Holding, bool, error) {
	var kv, ok, err = l.store.Get(ctx, l.key)
	if err != nil || !ok {
		return Holding{}, false, err
	}
	var h Holding
	if err = json.Unmarshal([]byte(kv.Value), &h); err != nil {
		return Holding{}, false, errors.WithMessage(err, "decoding lock")
	}
	return h, true, nil
}

// acquire polls for the lock until it's acquired or opts.Wait elapses. It
// returns a zero LeaseID if the wait elapsed.
func (l *Locker) acquire(ctx context.Context, opts Options) (store.LeaseID, error) {
	var start = l.clock.Now()

	for {
		var value, err = json.Marshal(Holding{
			Expires: l.clock.Now().Add(opts.Hold).UTC(),
			Holder:  l.holder,
		})
		if err != nil {
			return 0, err
		}
		lease, ok, err := l.store.Acquire(ctx, l.key, string(value), opts.Hold)
		if err != nil {
			return 0, errors.WithMessage(err, "acquiring lock")
		} else if ok {
			var waited = l.clock.Since(start)
			lockAcquiredTotal.Inc()
			lockWaitSeconds.Observe(waited.Seconds())
			log.WithFields(log.Fields{"key": l.key, "waited": waited}).Debug("acquired lock")
			return lease, nil
		}

		if l.clock.Since(start) >= opts.Wait {
			return 0, nil
		} else if err = ctx.Err(); err != nil {
			return 0, err
		}
		l.clock.Sleep(PollInterval)
	}
}

var (
	lockAcquiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qtrix_lock_acquired_total",
		Help: "Cumulative number of fleet lock acquisitions.",
	})
	lockTimeoutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qtrix_lock_timeout_total",
		Help: "Cumulative number of fleet lock acquisitions which timed out.",
	})
	lockWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "qtrix_lock_wait_seconds",
		Help:    "Duration spent waiting to acquire the fleet lock.",
		Buckets: []float64{.001, .01, .1, .25, .5, 1, 2.5, 5, 10},
	})
)
