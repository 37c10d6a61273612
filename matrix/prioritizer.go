package matrix

import (
	"sort"

	pb "go.qtrix.dev/qtrix/protocol"
)

// Prioritizer orders queues for successive new rows of a matrix. It's pure:
// it observes rows, but doesn't persist them.
type Prioritizer struct {
	// Queues at the head of some observed row.
	heads map[string]struct{}
	// Sum of Entry.Value of each queue across all observed rows.
	reach map[string]float64
}

// headInflation multiplies the priority of a queue which has not yet led a
// row, such that it dominates all other priorities.
const headInflation = 10000

// NewPrioritizer returns a Prioritizer which has observed |rows|.
func NewPrioritizer(rows []pb.Row) *Prioritizer {
	var p = &Prioritizer{
		heads: make(map[string]struct{}),
		reach: make(map[string]float64),
	}
	for _, row := range rows {
		p.Observe(row)
	}
	return p
}

// Observe updates the Prioritizer with an additional |row| of the matrix.
func (p *Prioritizer) Observe(row pb.Row) {
	if h := row.Head(); h != "" {
		p.heads[h] = struct{}{}
	}
	for _, e := range row.Entries {
		p.reach[e.Queue] += e.Value
	}
}

// Next returns a new Row of |host| ordering all |queues|, and observes it.
// |queues| must carry resource percentages, and is ordered as returned by
// the queue registry (on descending weight). Ties of priority retain that order.
//
// The first of |queues| which has not led an observed row is placed at the
// head. Remaining queues are ordered on their resource percentage divided by
// one plus their current reach.
func (p *Prioritizer) Next(host string, queues []pb.Queue) pb.Row {
	type scored struct {
		pb.Queue
		priority float64
	}
	var s = make([]scored, len(queues))
	var headPicked bool

	for i, q := range queues {
		s[i].Queue = q

		if _, ok := p.heads[q.Name]; !ok && !headPicked {
			s[i].priority = q.ResourcePercentage * headInflation
			headPicked = true
		} else {
			s[i].priority = q.ResourcePercentage / (1 + p.reach[q.Name])
		}
	}
	sort.SliceStable(s, func(i, j int) bool { return s[i].priority > s[j].priority })

	var row = pb.Row{Host: host, Entries: make([]pb.Entry, len(s))}
	var skipped float64

	for i, q := range s {
		row.Entries[i] = pb.Entry{
			Queue:              q.Name,
			ResourcePercentage: q.ResourcePercentage,
			// Probability that a worker reaches this entry, having skipped
			// every entry to its left.
			Value: 1.0 - skipped,
		}
		skipped += q.ResourcePercentage
	}
	p.Observe(row)
	return row
}
