package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	mbp "go.qtrix.dev/qtrix/mainboilerplate"
)

type cmdFetch struct {
	Host    string `long:"host" description:"Host to fetch for. Defaults to this host's name"`
	Workers int    `long:"workers" short:"w" default:"1" description:"Number of workers of the host"`
}

type cmdClear struct {
	NamespaceConfig
}

func init() {
	_ = mustAddCmd(parser.Command, "fetch", "Fetch queue lists for a host", `
Fetch queue lists for --workers of a host, exactly as a worker pool of the
host would. This records a heartbeat of the host, and may claim overrides or
grow the allocation matrix. Lists derived from queue weights end with the
orchestration marker.
`, &cmdFetch{})

	_ = mustAddCmd(parser.Command, "clear", "Clear allocation state", `
Clear the allocation matrix, override claims, and known hosts of a
configuration set. Queue weights and override units are retained. Hosts
rebuild allocations as they next fetch queues.
`, &cmdClear{})
}

func (cmd *cmdFetch) Execute([]string) error {
	var ctx, client, cleanup = startup()
	defer cleanup()

	if cmd.Host == "" {
		var err error
		cmd.Host, err = os.Hostname()
		mbp.Must(err, "failed to determine hostname")
	}
	var lists, err = client.FetchQueues(ctx, cmd.Host, cmd.Workers)
	mbp.Must(err, "failed to fetch queues")

	writeLists(stdout, lists)
	return nil
}

func (cmd *cmdClear) Execute([]string) error {
	var ctx, client, cleanup = startup()
	defer cleanup()

	mbp.Must(client.Clear(ctx, cmd.Namespace), "failed to clear")
	return nil
}

func writeLists(w io.Writer, lists [][]string) {
	for i, l := range lists {
		fmt.Fprintf(w, "%d: %s\n", i+1, strings.Join(l, ", "))
	}
}
