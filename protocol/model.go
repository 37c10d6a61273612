package protocol

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultNamespace always exists and cannot be removed.
	DefaultNamespace = "default"
	// OrchestratedMarker is appended to queue lists which were derived from the
	// matrix (rather than an override), so that callers may distinguish them.
	OrchestratedMarker = "__orchestrated__"
	// MaxWeight is the largest weight which may be assigned to a queue.
	MaxWeight = 999.0
)

// Queue is a weighted queue of a namespace.
type Queue struct {
	Name   string
	Weight float64
	// ResourcePercentage is Weight divided by the total weight of all queues
	// of the namespace.
	ResourcePercentage float64
}

// Validate returns an error if the Queue is not well-formed.
func (q Queue) Validate() error {
	if err := ValidateQueueName(q.Name); err != nil {
		return ExtendContext(err, "Name")
	} else if q.Weight <= 0 {
		return NewValidationError("weight of %s must be > 0 (%v)", q.Name, q.Weight)
	} else if q.Weight > MaxWeight {
		return NewValidationError("weight of %s cannot be > %v (%v)", q.Name, MaxWeight, q.Weight)
	}
	return nil
}

// Override is a single claimable unit pinning one worker to a list of queues.
type Override struct {
	Queues []string
	// Host which has claimed the Override, or empty if unclaimed.
	Host string
}

// Validate returns an error if the Override is not well-formed.
func (o Override) Validate() error {
	if len(o.Queues) == 0 {
		return NewValidationError("expected at least one queue")
	}
	for i, q := range o.Queues {
		if err := ValidateQueueName(q); err != nil {
			return ExtendContext(err, "Queues[%d]", i)
		}
	}
	if o.Host != "" {
		if err := ValidateHostname(o.Host); err != nil {
			return ExtendContext(err, "Host")
		}
	}
	return nil
}

// JoinQueues encodes a list of queue names as a comma-joined string.
func JoinQueues(queues []string) string { return strings.Join(queues, ",") }

// SplitQueues decodes a comma-joined list of queue names.
func SplitQueues(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// Entry is the placement of a queue within a matrix Row.
type Entry struct {
	Queue              string  `json:"q"`
	ResourcePercentage float64 `json:"rp"`
	// Value is the probability mass reaching this position, given the
	// resource percentages of all entries to its left in the Row.
	Value float64 `json:"v"`
}

func (e Entry) String() string {
	return fmt.Sprintf("%s(%.4f,%.4f)", e.Queue, e.Value, e.ResourcePercentage)
}

// Row is one worker slot's ordered list of queues to poll, tagged with its host.
type Row struct {
	Host    string  `json:"host"`
	Entries []Entry `json:"entries"`
}

// Queues returns the ordered queue names of the Row.
func (r Row) Queues() []string {
	var out = make([]string, len(r.Entries))
	for i, e := range r.Entries {
		out[i] = e.Queue
	}
	return out
}

// Head returns the first queue of the Row, or empty if the Row has no entries.
func (r Row) Head() string {
	if len(r.Entries) == 0 {
		return ""
	}
	return r.Entries[0].Queue
}

// Validate returns an error if the Row is not well-formed. In particular,
// no two entries of a Row may share a queue.
func (r Row) Validate() error {
	if err := ValidateHostname(r.Host); err != nil {
		return ExtendContext(err, "Host")
	}
	var seen = make(map[string]struct{}, len(r.Entries))
	for i, e := range r.Entries {
		if err := ValidateQueueName(e.Queue); err != nil {
			return ExtendContext(err, "Entries[%d].Queue", i)
		} else if _, ok := seen[e.Queue]; ok {
			return NewValidationError("duplicate queue %s in row", e.Queue)
		} else if e.Value < 0 || e.Value > 1 {
			return NewValidationError("entry %s value out of range (%v)", e.Queue, e.Value)
		}
		seen[e.Queue] = struct{}{}
	}
	return nil
}

func (r Row) String() string {
	var parts = make([]string, len(r.Entries))
	for i, e := range r.Entries {
		parts[i] = e.String()
	}
	return r.Host + ": " + strings.Join(parts, ", ")
}

// HostRecord is a host known to a namespace.
type HostRecord struct {
	Host string
	// LastSeen is the time of the host's last heartbeat, as recorded by the
	// pinging process. It's informational: liveness is judged by the store.
	LastSeen time.Time
	// Offline is true if the host has not pinged within the MIA timeout.
	Offline bool
}
