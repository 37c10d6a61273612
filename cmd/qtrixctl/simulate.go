package main

import (
	"context"
	"fmt"
	"sort"

	petname "github.com/dustinkirkland/golang-petname"
	log "github.com/sirupsen/logrus"
	qtrix "go.qtrix.dev/qtrix"
	mbp "go.qtrix.dev/qtrix/mainboilerplate"
	"go.qtrix.dev/qtrix/matrix"
	"golang.org/x/sync/errgroup"
)

type cmdSimulate struct {
	Hosts   int    `long:"hosts" default:"3" description:"Number of simulated hosts"`
	Workers int    `long:"workers" short:"w" default:"4" description:"Number of workers of each host"`
	Rounds  int    `long:"rounds" default:"2" description:"Number of rounds in which every host fetches"`
	Weights string `long:"weights" description:"Path of YAML weights to apply before simulating"`
}

func init() {
	_ = mustAddCmd(parser.Command, "simulate", "Simulate a fleet of fetching hosts", `
Simulate a fleet of --hosts hosts, each having --workers workers, which
concurrently fetch queues for --rounds rounds. Then print the queue lists of
each host and a breakdown of the resulting allocation matrix.

Hosts are given generated names. Simulation mutates the current configuration
set, and is intended for use with --store.kind=memory:

>    qtrixctl simulate --store.kind=memory --weights weights.yaml --hosts 5
`, &cmdSimulate{})
}

func (cmd *cmdSimulate) Execute([]string) error {
	var ctx, client, cleanup = startup()
	defer cleanup()

	if cmd.Weights != "" {
		var weights, err = readWeights(cmd.Weights)
		if err != nil {
			return err
		}
		mbp.Must(client.MapQueueWeights(ctx, "", weights), "failed to apply weights")
	}

	var hosts []string
	for seen := make(map[string]bool); len(hosts) < cmd.Hosts; {
		if h := petname.Generate(2, "-"); !seen[h] {
			seen[h] = true
			hosts = append(hosts, h)
		}
	}
	var results, err = simulate(ctx, client, hosts, cmd.Workers, cmd.Rounds)
	mbp.Must(err, "simulation failed")

	sort.Strings(hosts)
	for _, h := range hosts {
		fmt.Fprintf(stdout, "%s:\n", h)
		writeLists(stdout, results[h])
	}

	table, err := client.MatrixTable(ctx, "")
	mbp.Must(err, "failed to read matrix")
	writeBreakdownTable(stdout, matrix.Analyze(table))

	return nil
}

// simulate runs |rounds| of concurrent fetches by each of |hosts|, and
// returns the final lists of each host.
func simulate(ctx context.Context, client *qtrix.Client, hosts []string, workers, rounds int) (map[string][][]string, error) {
	var results = make([][][]string, len(hosts))

	for round := 0; round != rounds; round++ {
		var grp, ctx = errgroup.WithContext(ctx)

		for i, h := range hosts {
			grp.Go(func() error {
				var lists, err = client.FetchQueues(ctx, h, workers)
				results[i] = lists
				return err
			})
		}
		if err := grp.Wait(); err != nil {
			return nil, err
		}
		log.WithField("round", round).Info("simulated round")
	}

	var out = make(map[string][][]string, len(hosts))
	for i, h := range hosts {
		out[h] = results[i]
	}
	return out, nil
}
