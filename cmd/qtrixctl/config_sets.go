package main

import (
	"fmt"

	mbp "go.qtrix.dev/qtrix/mainboilerplate"
)

type cmdConfigSetsList struct{}

type cmdConfigSetsCurrent struct{}

type configSetArg struct {
	Args struct {
		Name string `positional-arg-name:"NAME" description:"Configuration set name"`
	} `positional-args:"yes" required:"yes"`
}

type cmdConfigSetsCreate struct{ configSetArg }

type cmdConfigSetsActivate struct{ configSetArg }

type cmdConfigSetsRemove struct{ configSetArg }

type cmdConfigSetsClone struct {
	Args struct {
		Source      string `positional-arg-name:"SOURCE" description:"Configuration set to clone"`
		Destination string `positional-arg-name:"DEST" description:"Configuration set to create"`
	} `positional-args:"yes" required:"yes"`
}

func init() {
	_ = mustAddCmd(cmdConfigSets, "list", "List configuration sets", `
List all configuration sets. The "default" set always exists.
`, &cmdConfigSetsList{})

	_ = mustAddCmd(cmdConfigSets, "current", "Print the current configuration set", `
Print the configuration set used by fetching hosts.
`, &cmdConfigSetsCurrent{})

	_ = mustAddCmd(cmdConfigSets, "create", "Create a configuration set", `
Create an empty configuration set. Names consist of letters, digits, and
underscores.
`, &cmdConfigSetsCreate{})

	_ = mustAddCmd(cmdConfigSets, "activate", "Activate a configuration set", `
Make a configuration set current. Its queue weights must be defined, unless
it's the "default" set.
`, &cmdConfigSetsActivate{})

	_ = mustAddCmd(cmdConfigSets, "remove", "Remove a configuration set", `
Remove a configuration set and all of its state. Neither the "default" nor
the current configuration set may be removed.
`, &cmdConfigSetsRemove{})

	_ = mustAddCmd(cmdConfigSets, "clone", "Clone a configuration set", `
Create configuration set DEST with the queue weights and override units of
SOURCE. Cloned override units are unclaimed.
`, &cmdConfigSetsClone{})
}

func (cmd *cmdConfigSetsList) Execute([]string) error {
	var ctx, client, cleanup = startup()
	defer cleanup()

	var sets, err = client.ConfigurationSets(ctx)
	mbp.Must(err, "failed to list configuration sets")

	current, err := client.CurrentConfigurationSet(ctx)
	mbp.Must(err, "failed to read current configuration set")

	for _, s := range sets {
		if s == current {
			fmt.Fprintf(stdout, "%s (current)\n", s)
		} else {
			fmt.Fprintln(stdout, s)
		}
	}
	return nil
}

func (cmd *cmdConfigSetsCurrent) Execute([]string) error {
	var ctx, client, cleanup = startup()
	defer cleanup()

	var current, err = client.CurrentConfigurationSet(ctx)
	mbp.Must(err, "failed to read current configuration set")

	fmt.Fprintln(stdout, current)
	return nil
}

func (cmd *cmdConfigSetsCreate) Execute([]string) error {
	var ctx, client, cleanup = startup()
	defer cleanup()

	mbp.Must(client.CreateConfigurationSet(ctx, cmd.Args.Name), "failed to create configuration set")
	return nil
}

func (cmd *cmdConfigSetsActivate) Execute([]string) error {
	var ctx, client, cleanup = startup()
	defer cleanup()

	mbp.Must(client.ActivateConfigurationSet(ctx, cmd.Args.Name), "failed to activate configuration set")
	return nil
}

func (cmd *cmdConfigSetsRemove) Execute([]string) error {
	var ctx, client, cleanup = startup()
	defer cleanup()

	mbp.Must(client.RemoveConfigurationSet(ctx, cmd.Args.Name), "failed to remove configuration set")
	return nil
}

func (cmd *cmdConfigSetsClone) Execute([]string) error {
	var ctx, client, cleanup = startup()
	defer cleanup()

	mbp.Must(client.CloneConfigurationSet(ctx, cmd.Args.Source, cmd.Args.Destination),
		"failed to clone configuration set")
	return nil
}
