package matrix

import (
	"fmt"
	"sort"
	"strings"
)

// Breakdown maps each queue of a matrix table to the number of rows in
// which it appears at each column.
type Breakdown map[string][]int

// Analyze returns the Breakdown of |table|.
func Analyze(table [][]string) Breakdown {
	var width int
	for _, row := range table {
		if len(row) > width {
			width = len(row)
		}
	}
	var out = make(Breakdown)
	for _, row := range table {
		for col, queue := range row {
			if out[queue] == nil {
				out[queue] = make([]int, width)
			}
			out[queue][col]++
		}
	}
	return out
}

// Queues returns the queues of the Breakdown, in sorted order.
func (b Breakdown) Queues() []string {
	var out = make([]string, 0, len(b))
	for q := range b {
		out = append(out, q)
	}
	sort.Strings(out)
	return out
}

func (b Breakdown) String() string {
	var lines []string
	for _, q := range b.Queues() {
		var counts = make([]string, len(b[q]))
		for i, c := range b[q] {
			counts[i] = fmt.Sprint(c)
		}
		lines = append(lines, q+": "+strings.Join(counts, ","))
	}
	return strings.Join(lines, "\n")
}
