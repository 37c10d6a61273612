package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	mbp "go.qtrix.dev/qtrix/mainboilerplate"
	pb "go.qtrix.dev/qtrix/protocol"
)

type cmdOverridesList struct {
	NamespaceConfig
}

type overrideConfig struct {
	NamespaceConfig
	Queues []string `long:"queue" short:"q" required:"true" description:"Queue of the override, in priority order. May be repeated"`
	Count  int      `long:"count" short:"c" default:"1" description:"Number of workers to which the override applies"`
}

type cmdOverridesAdd struct {
	overrideConfig
}

type cmdOverridesRemove struct {
	overrideConfig
}

type cmdOverridesClear struct {
	NamespaceConfig
}

func init() {
	_ = mustAddCmd(cmdOverrides, "list", "List overrides", `
List override units of a configuration set, and the host which has claimed
each unit (if any).
`, &cmdOverridesList{})

	_ = mustAddCmd(cmdOverrides, "add", "Add an override", `
Pin --count workers of the fleet to a list of queues, regardless of queue
weights. Workers are taken from the weighted distribution as hosts next
fetch queues. For example, to dedicate three workers to a flooded queue:

>    qtrixctl overrides add --queue flooded --count 3
`, &cmdOverridesAdd{})

	_ = mustAddCmd(cmdOverrides, "remove", "Remove an override", `
Remove up to --count units of an override having exactly the given queues.
The oldest units are removed first, and their workers return to the weighted
distribution.
`, &cmdOverridesRemove{})

	_ = mustAddCmd(cmdOverrides, "clear", "Remove all overrides", `
Remove every override unit of a configuration set.
`, &cmdOverridesClear{})
}

func (cmd *cmdOverridesList) Execute([]string) error {
	var ctx, client, cleanup = startup()
	defer cleanup()

	var overrides, err = client.Overrides(ctx, cmd.Namespace)
	mbp.Must(err, "failed to list overrides")

	writeOverridesTable(stdout, overrides)
	return nil
}

func (cmd *cmdOverridesAdd) Execute([]string) error {
	var ctx, client, cleanup = startup()
	defer cleanup()

	mbp.Must(client.AddOverride(ctx, cmd.Namespace, cmd.Queues, cmd.Count), "failed to add override")
	return nil
}

func (cmd *cmdOverridesRemove) Execute([]string) error {
	var ctx, client, cleanup = startup()
	defer cleanup()

	mbp.Must(client.RemoveOverride(ctx, cmd.Namespace, cmd.Queues, cmd.Count), "failed to remove override")
	return nil
}

func (cmd *cmdOverridesClear) Execute([]string) error {
	var ctx, client, cleanup = startup()
	defer cleanup()

	mbp.Must(client.ClearOverrides(ctx, cmd.Namespace), "failed to clear overrides")
	return nil
}

func writeOverridesTable(w io.Writer, overrides []pb.Override) {
	var table = tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Queues", "Claimed By"})

	for i, o := range overrides {
		var host = o.Host
		if host == "" {
			host = "<unclaimed>"
		}
		table.Append([]string{fmt.Sprint(i + 1), strings.Join(o.Queues, ", "), host})
	}
	table.Render()
}
