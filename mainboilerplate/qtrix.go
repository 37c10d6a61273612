package mainboilerplate

import (
	"time"

	qtrix "go.qtrix.dev/qtrix"
	"go.qtrix.dev/qtrix/store"
	"go.qtrix.dev/qtrix/store/etcdstore"
	"go.qtrix.dev/qtrix/store/memstore"
	"k8s.io/utils/clock"
)

// StoreConfig configures the store.Store of a qtrix Client.
type StoreConfig struct {
	Kind string `long:"kind" env:"KIND" default:"etcd" choice:"etcd" choice:"memory" description:"Backing store. 'memory' keeps state in-process, for dry runs"`
	Root string `long:"root" env:"ROOT" default:"/qtrix" description:"Root prefix of qtrix keys"`
}

// ClientConfig configures a qtrix Client.
type ClientConfig struct {
	MIATimeout time.Duration `long:"mia-timeout" env:"MIA_TIMEOUT" description:"Duration after its last fetch at which a host is offline (default 2m)"`
	FetchWait  time.Duration `long:"fetch-wait" env:"FETCH_WAIT" default:"5s" description:"Maximum wait for the lock when fetching queues, after which the last result is returned"`
	LockWait   time.Duration `long:"lock-wait" env:"LOCK_WAIT" default:"10s" description:"Maximum wait for the lock when mutating"`
	LockHold   time.Duration `long:"lock-hold" env:"LOCK_HOLD" default:"6s" description:"Maximum duration for which the lock is held"`
}

// MustOpen opens the configured store.Store, dialing |etcd| if required.
func (c StoreConfig) MustOpen(etcd *EtcdConfig) store.Store {
	if c.Kind == "memory" {
		return memstore.New(clock.RealClock{})
	}
	return etcdstore.New(etcd.MustDial())
}

// MustClient builds a qtrix Client of the configured store. Zero-valued
// durations take the Client's defaults.
func (c ClientConfig) MustClient(sc StoreConfig, etcd *EtcdConfig) *qtrix.Client {
	return qtrix.NewClient(sc.MustOpen(etcd), store.NewKeys(sc.Root), clock.RealClock{}, qtrix.Options{
		MIATimeout: c.MIATimeout,
		FetchWait:  c.FetchWait,
		LockWait:   c.LockWait,
		LockHold:   c.LockHold,
	})
}
