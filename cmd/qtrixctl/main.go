package main

import (
	"context"
	"io"
	"os"

	"github.com/jessevdk/go-flags"
	qtrix "go.qtrix.dev/qtrix"
	mbp "go.qtrix.dev/qtrix/mainboilerplate"
)

const iniFilename = "qtrixctl.ini"

var (
	baseCfg = new(struct {
		Log         mbp.LogConfig         `group:"Logging" namespace:"log" env-namespace:"LOG"`
		Etcd        mbp.EtcdConfig        `group:"Etcd" namespace:"etcd" env-namespace:"ETCD"`
		Store       mbp.StoreConfig       `group:"Store" namespace:"store" env-namespace:"STORE"`
		Qtrix       mbp.ClientConfig      `group:"Qtrix" env-namespace:"QTRIX"`
		Diagnostics mbp.DiagnosticsConfig `group:"Debug" namespace:"debug" env-namespace:"DEBUG"`
	})

	parser = flags.NewParser(baseCfg, flags.Default)

	// Subcommands that exist solely to contain and organize further nested
	// subcommands. They're initialized here so they exist prior to any init()
	// functions adding nested subcommands.
	cmdQueues     = mustAddCmd(parser.Command, "queues", "Interact with queue weights", "", &struct{}{})
	cmdOverrides  = mustAddCmd(parser.Command, "overrides", "Interact with flood overrides", "", &struct{}{})
	cmdConfigSets = mustAddCmd(parser.Command, "config-sets", "Interact with configuration sets (namespaces)", "", &struct{}{})
	cmdMatrix     = mustAddCmd(parser.Command, "matrix", "Inspect the allocation matrix", "", &struct{}{})
)

// NamespaceConfig is common configuration of namespaced operations.
type NamespaceConfig struct {
	Namespace string `long:"namespace" short:"n" description:"Configuration set to use. Defaults to the current one"`
}

// stdout is the destination of command output.
var stdout io.Writer = os.Stdout

// startup initializes logging and diagnostics, and returns a Client and a
// closure to be deferred.
func startup() (context.Context, *qtrix.Client, func()) {
	mbp.InitLog(baseCfg.Log)
	var cleanup = mbp.InitDiagnosticsAndRecover(baseCfg.Diagnostics)

	return context.Background(), baseCfg.Qtrix.MustClient(baseCfg.Store, &baseCfg.Etcd), cleanup
}

func mustAddCmd(cmd *flags.Command, name, short, long string, cfg interface{}) *flags.Command {
	cmd, err := cmd.AddCommand(name, short, long, cfg)
	mbp.Must(err, "failed to add command")
	return cmd
}

func init() {
	mbp.AddPrintConfigCmd(parser, iniFilename)

	parser.LongDescription = `qtrixctl is a tool for interacting with a qtrix fleet.

See --help pages of each sub-command for documentation and usage examples.
Optionally configure qtrixctl with a '` + iniFilename + `' file in the current working
directory, or with '~/.config/qtrix/` + iniFilename + `'. Use the 'print-config'
sub-command to inspect the tool's current configuration.
`
}

func main() {
	mbp.MustParseConfig(parser, iniFilename)
}
