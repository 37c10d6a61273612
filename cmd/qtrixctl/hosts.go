package main

import (
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	mbp "go.qtrix.dev/qtrix/mainboilerplate"
	pb "go.qtrix.dev/qtrix/protocol"
)

type cmdHosts struct {
	NamespaceConfig
}

func init() {
	_ = mustAddCmd(parser.Command, "hosts", "List known hosts", `
List the hosts which have fetched queues from a configuration set, most
recently seen first. A host which hasn't fetched within the MIA timeout is
offline, and causes the allocation matrix to be rebuilt on the next fetch.
`, &cmdHosts{})
}

func (cmd *cmdHosts) Execute([]string) error {
	var ctx, client, cleanup = startup()
	defer cleanup()

	var hosts, err = client.KnownHosts(ctx, cmd.Namespace)
	mbp.Must(err, "failed to list hosts")

	writeHostsTable(stdout, hosts, time.Now())
	return nil
}

func writeHostsTable(w io.Writer, hosts []pb.HostRecord, now time.Time) {
	var table = tablewriter.NewWriter(w)
	table.SetHeader([]string{"Host", "Last Seen", "Status"})

	for _, h := range hosts {
		var status = "online"
		if h.Offline {
			status = "offline"
		}
		table.Append([]string{h.Host, humanize.RelTime(h.LastSeen, now, "ago", "from now"), status})
	}
	table.Render()
}
