package qtrix

import (
	"context"
	"reflect"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.qtrix.dev/qtrix/lock"
	pb "go.qtrix.dev/qtrix/protocol"
)

// ErrNoPreviousResult is returned by FetchQueues if the lock could not be
// acquired, and no previous result of the namespace is available.
var ErrNoPreviousResult = errors.New("no previous result (unable to obtain lock on first attempt)")

// FetchQueues returns |workers| ordered lists of queues for |host| to poll,
// within the current namespace. Lists of override units claimed by |host|
// come first. Remaining lists are rows of the matrix, suffixed with
// OrchestratedMarker.
//
// FetchQueues records a heartbeat of |host|. If any host of the namespace is
// offline, its matrix and override claims are cleared and lazily rebuilt.
// If the lock cannot be acquired within Options.FetchWait, the last result
// of the namespace is returned instead.
func (c *Client) FetchQueues(ctx context.Context, host string, workers int) ([][]string, error) {
	var out, err = c.fetchQueues(ctx, host, workers)
	if err != nil {
		fetchTotal.WithLabelValues(fetchResultFailed).Inc()
		log.WithFields(log.Fields{"host": host, "workers": workers, "err": err}).
			Warn("failed to fetch queues")
	}
	return out, err
}

func (c *Client) fetchQueues(ctx context.Context, host string, workers int) ([][]string, error) {
	if workers < 0 {
		return nil, pb.NewValidationError("workers must be >= 0 (%d)", workers)
	}
	var ns, err = c.namespaces.Current(ctx)
	if err != nil {
		return nil, err
	} else if err = c.hosts.Ping(ctx, ns, host); err != nil {
		return nil, err
	} else if err = c.clearIfAnyOffline(ctx, ns); err != nil {
		return nil, err
	}

	var out [][]string
	err = c.locker.WithLock(ctx, lock.Options{
		Wait: c.opts.FetchWait,
		Hold: c.opts.LockHold,
		OnTimeout: func() error {
			if v, ok := c.results.Get(ns); ok {
				out = copyLists(v.([][]string))
				fetchTotal.WithLabelValues(fetchResultCached).Inc()
				return nil
			}
			return ErrNoPreviousResult
		},
	}, func(ctx context.Context) error {
		log.WithFields(log.Fields{"ns": ns, "host": host, "workers": workers}).Debug("fetching queue lists")

		var overrides, err = c.overrides.OverridesFor(ctx, ns, host, workers)
		if err != nil {
			return err
		}
		rows, err := c.matrix.UpdateToSatisfy(ctx, ns, host, workers-len(overrides))
		if err != nil {
			return err
		}

		var result = make([][]string, 0, len(overrides)+len(rows))
		result = append(result, overrides...)
		for _, row := range rows {
			result = append(result, append(row[:len(row):len(row)], OrchestratedMarker))
		}

		if prev, ok := c.results.Get(ns); !ok || !reflect.DeepEqual(prev, result) {
			log.WithFields(log.Fields{"ns": ns, "host": host, "lists": result}).Info("queue lists changed")
		}
		c.results.Add(ns, result)

		fetchTotal.WithLabelValues(fetchResultOK).Inc()
		fetchListsTotal.WithLabelValues("override").Add(float64(len(overrides)))
		fetchListsTotal.WithLabelValues("matrix").Add(float64(len(rows)))

		out = copyLists(result)
		return nil
	})
	return out, err
}

// clearIfAnyOffline clears namespace |ns| if any of its hosts are offline.
// Contention on the lock is tolerated: the clear is retried by the next fetch.
func (c *Client) clearIfAnyOffline(ctx context.Context, ns string) error {
	var offline, err = c.hosts.Offline(ctx, ns)
	if err != nil || len(offline) == 0 {
		return err
	}
	log.WithFields(log.Fields{"ns": ns, "offline": offline}).Info("hosts detected offline")

	err = c.locker.WithLock(ctx, lock.Options{Wait: c.opts.FetchWait, Hold: c.opts.LockHold},
		func(ctx context.Context) error { return c.clear(ctx, ns) })
	if pb.IsLockNotAcquired(err) {
		log.WithField("ns", ns).Warn("deferring offline clear (lock is contended)")
		return nil
	} else if err != nil {
		return errors.WithMessage(err, "clearing offline hosts")
	}
	fetchOfflineClearsTotal.Inc()
	return nil
}

func copyLists(lists [][]string) [][]string {
	var out = make([][]string, len(lists))
	for i, l := range lists {
		out[i] = append([]string(nil), l...)
	}
	return out
}
