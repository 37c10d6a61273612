package store

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// Keys composes the qtrix key layout under a Root prefix:
//
//	<root>/namespaces/<ns>            registered namespaces
//	<root>/current                    the current namespace
//	<root>/lock                       the fleet-wide lock
//	<root>/ns/<ns>/queues/<queue>     queue weights
//	<root>/ns/<ns>/overrides/<seq>    override units
//	<root>/ns/<ns>/claims/<seq>       override claims, aligned on <seq>
//	<root>/ns/<ns>/matrix/<seq>       matrix rows
//	<root>/ns/<ns>/hosts/<host>       known hosts
//	<root>/ns/<ns>/alive/<host>       host liveness, expiring after the MIA timeout
//
// Keys is a pure function of its Root; it doesn't access a Store.
type Keys struct {
	Root string
}

// NewKeys returns Keys rooted at |root|, which must be a "Clean" absolute
// path as defined by path.Clean, or NewKeys panics.
func NewKeys(root string) Keys {
	if c := path.Clean(root); c != root {
		panic(fmt.Sprintf("expected root to be a cleaned path (%s != %s)", c, root))
	} else if root == "/" || !strings.HasPrefix(root, "/") {
		panic(fmt.Sprintf("expected root to be a non-empty absolute path (%s)", root))
	}
	return Keys{Root: root}
}

// Namespaces is the prefix of registered namespaces.
func (k Keys) Namespaces() string { return k.Root + "/namespaces/" }

// Namespace is the registration key of |ns|.
func (k Keys) Namespace(ns string) string { return k.Namespaces() + ns }

// Current is the key holding the name of the current namespace.
func (k Keys) Current() string { return k.Root + "/current" }

// Lock is the key of the fleet-wide lock.
func (k Keys) Lock() string { return k.Root + "/lock" }

// NamespaceRoot is the prefix of all state scoped to |ns|.
func (k Keys) NamespaceRoot(ns string) string { return k.Root + "/ns/" + ns + "/" }

// Queues is the prefix of queue weights of |ns|.
func (k Keys) Queues(ns string) string { return k.NamespaceRoot(ns) + "queues/" }

// Queue is the weight key of |queue| within |ns|.
func (k Keys) Queue(ns, queue string) string { return k.Queues(ns) + queue }

// Overrides is the prefix of override units of |ns|.
func (k Keys) Overrides(ns string) string { return k.NamespaceRoot(ns) + "overrides/" }

// Claims is the prefix of override claims of |ns|.
func (k Keys) Claims(ns string) string { return k.NamespaceRoot(ns) + "claims/" }

// Matrix is the prefix of matrix rows of |ns|.
func (k Keys) Matrix(ns string) string { return k.NamespaceRoot(ns) + "matrix/" }

// Hosts is the prefix of known hosts of |ns|.
func (k Keys) Hosts(ns string) string { return k.NamespaceRoot(ns) + "hosts/" }

// Alive is the prefix of host liveness markers of |ns|.
func (k Keys) Alive(ns string) string { return k.NamespaceRoot(ns) + "alive/" }

// Seq composes the key of sequence number |n| under |prefix|. Sequence
// numbers are zero-padded, such that key order is sequence order.
func Seq(prefix string, n int64) string { return prefix + fmt.Sprintf("%020d", n) }

// ParseSeq parses the sequence number of |key| under |prefix|.
func ParseSeq(prefix, key string) (int64, error) {
	if !strings.HasPrefix(key, prefix) {
		return 0, fmt.Errorf("key %s is not prefixed by %s", key, prefix)
	}
	return strconv.ParseInt(key[len(prefix):], 10, 64)
}

// NextSeq returns the sequence number following the last of |kvs|, which
// must be ordered on key and share |prefix|. An empty |kvs| has NextSeq 1.
func NextSeq(prefix string, kvs []KeyValue) (int64, error) {
	if len(kvs) == 0 {
		return 1, nil
	}
	var n, err = ParseSeq(prefix, kvs[len(kvs)-1].Key)
	if err != nil {
		return 0, err
	}
	return n + 1, nil
}

// Suffix returns |key| with |prefix| removed.
func Suffix(prefix, key string) string { return strings.TrimPrefix(key, prefix) }
