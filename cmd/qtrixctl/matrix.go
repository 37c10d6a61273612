package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	mbp "go.qtrix.dev/qtrix/mainboilerplate"
	"go.qtrix.dev/qtrix/matrix"
)

type cmdMatrixTable struct {
	NamespaceConfig
}

type cmdMatrixAnalyze struct {
	NamespaceConfig
}

func init() {
	_ = mustAddCmd(cmdMatrix, "table", "Print the allocation matrix", `
Print each row of the allocation matrix: the ordered queues of one worker.
`, &cmdMatrixTable{})

	_ = mustAddCmd(cmdMatrix, "analyze", "Break down the allocation matrix", `
Print, for each queue, the number of matrix rows in which it appears at each
position. A well-balanced matrix places higher-weight queues at earlier
positions more often.
`, &cmdMatrixAnalyze{})
}

func (cmd *cmdMatrixTable) Execute([]string) error {
	var ctx, client, cleanup = startup()
	defer cleanup()

	var table, err = client.MatrixTable(ctx, cmd.Namespace)
	mbp.Must(err, "failed to read matrix")

	for i, row := range table {
		fmt.Fprintf(stdout, "%d: %s\n", i+1, strings.Join(row, ", "))
	}
	return nil
}

func (cmd *cmdMatrixAnalyze) Execute([]string) error {
	var ctx, client, cleanup = startup()
	defer cleanup()

	var table, err = client.MatrixTable(ctx, cmd.Namespace)
	mbp.Must(err, "failed to read matrix")

	writeBreakdownTable(stdout, matrix.Analyze(table))
	return nil
}

func writeBreakdownTable(w io.Writer, b matrix.Breakdown) {
	var queues = b.Queues()
	var width int
	if len(queues) != 0 {
		width = len(b[queues[0]])
	}

	var headers = []string{"Queue"}
	for i := 0; i != width; i++ {
		headers = append(headers, fmt.Sprint(i+1))
	}
	var table = tablewriter.NewWriter(w)
	table.SetHeader(headers)

	for _, q := range queues {
		var row = []string{q}
		for _, c := range b[q] {
			row = append(row, fmt.Sprint(c))
		}
		table.Append(row)
	}
	table.Render()
}
