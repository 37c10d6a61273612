// Package hosts tracks the hosts of a namespace and whether each is alive.
//
// A ping writes two keys: a persistent record of the host (whose value is
// its informational last-seen time), and a liveness marker which the store
// expires after the MIA timeout. Expiry is measured by the store, so hosts
// with skewed clocks agree on which peers are offline. A host having a
// record but no liveness marker is offline.
package hosts

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	pb "go.qtrix.dev/qtrix/protocol"
	"go.qtrix.dev/qtrix/store"
	"k8s.io/utils/clock"
)

// DefaultMIATimeout is the default duration after its last ping at which a
// host is considered offline.
const DefaultMIATimeout = 120 * time.Second

// Tracker of host liveness.
type Tracker struct {
	store store.Store
	keys  store.Keys
	clock clock.PassiveClock
	mia   time.Duration
}

// NewTracker returns a Tracker persisting to |s| under |keys|. Hosts which
// have not pinged within |mia| are offline. A zero |mia| uses DefaultMIATimeout.
func NewTracker(s store.Store, keys store.Keys, clk clock.PassiveClock, mia time.Duration) *Tracker {
	if mia == 0 {
		mia = DefaultMIATimeout
	}
	return &Tracker{store: s, keys: keys, clock: clk, mia: mia}
}

// MIATimeout returns the configured MIA timeout of the Tracker.
func (t *Tracker) MIATimeout() time.Duration { return t.mia }

// Ping records a heartbeat of |host| within namespace |ns|.
func (t *Tracker) Ping(ctx context.Context, ns, host string) error {
	if err := pb.ValidateHostname(host); err != nil {
		return pb.ExtendContext(err, "host")
	}
	var now = t.clock.Now().UTC().Format(time.RFC3339)

	if err := t.store.Commit(ctx, store.Put(t.keys.Hosts(ns)+host, now)); err != nil {
		return errors.WithMessage(err, "recording host")
	} else if err = t.store.Touch(ctx, t.keys.Alive(ns)+host, now, t.mia); err != nil {
		return errors.WithMessage(err, "touching host liveness")
	}
	log.WithFields(log.Fields{"ns": ns, "host": host}).Debug("pinged host")
	return nil
}

// All returns every host known to namespace |ns|, most recently pinged first.
func (t *Tracker) All(ctx context.Context, ns string) ([]pb.HostRecord, error) {
	var hostsPrefix, alivePrefix = t.keys.Hosts(ns), t.keys.Alive(ns)

	var records, err = t.store.List(ctx, hostsPrefix)
	if err != nil {
		return nil, err
	}
	alive, err := t.store.List(ctx, alivePrefix)
	if err != nil {
		return nil, err
	}
	var isAlive = make(map[string]struct{}, len(alive))
	for _, kv := range alive {
		isAlive[store.Suffix(alivePrefix, kv.Key)] = struct{}{}
	}

	// Each ping re-writes the record, so revision order is ping order.
	sort.SliceStable(records, func(i, j int) bool { return records[i].Revision > records[j].Revision })

	var out = make([]pb.HostRecord, 0, len(records))
	for _, kv := range records {
		var rec = pb.HostRecord{Host: store.Suffix(hostsPrefix, kv.Key)}
		if ts, err := time.Parse(time.RFC3339, kv.Value); err != nil {
			log.WithFields(log.Fields{"key": kv.Key, "err": err}).Warn("failed to parse host last-seen")
		} else {
			rec.LastSeen = ts
		}
		_, ok := isAlive[rec.Host]
		rec.Offline = !ok

		out = append(out, rec)
	}
	return out, nil
}

// Offline returns the hosts of namespace |ns| which have not pinged within
// the MIA timeout.
func (t *Tracker) Offline(ctx context.Context, ns string) ([]string, error) {
	var all, err = t.All(ctx, ns)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, rec := range all {
		if rec.Offline {
			out = append(out, rec.Host)
		}
	}
	return out, nil
}

// AnyOffline returns true if any host of namespace |ns| is offline.
func (t *Tracker) AnyOffline(ctx context.Context, ns string) (bool, error) {
	var offline, err = t.Offline(ctx, ns)
	return len(offline) != 0, err
}

// Clear drops all host records of namespace |ns|.
func (t *Tracker) Clear(ctx context.Context, ns string) error {
	log.WithField("ns", ns).Debug("clearing hosts")
	return t.store.Commit(ctx,
		store.DeletePrefix(t.keys.Hosts(ns)),
		store.DeletePrefix(t.keys.Alive(ns)))
}
