package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	mbp "go.qtrix.dev/qtrix/mainboilerplate"
	pb "go.qtrix.dev/qtrix/protocol"
	"gopkg.in/yaml.v2"
)

type cmdQueuesList struct {
	NamespaceConfig
}

type cmdQueuesApply struct {
	NamespaceConfig
	Path   string `long:"file" short:"f" default:"-" description:"Path of YAML weights to apply. Use '-' for stdin"`
	DryRun bool   `long:"dry-run" description:"Validate and print the weights, without applying them"`
}

type cmdQueuesExport struct {
	NamespaceConfig
}

func init() {
	_ = mustAddCmd(cmdQueues, "list", "List queue weights", `
List the queues of a configuration set, their weights, and their resulting
share of worker resources.
`, &cmdQueuesList{})

	_ = mustAddCmd(cmdQueues, "apply", "Apply queue weights", `
Replace the queue weights of a configuration set with those of a YAML
document mapping queue names to weights, eg:

    critical: 40
    default: 30
    low: 10

Every weight must be greater than zero and at most 999. Applying weights
invalidates the allocation matrix, which is rebuilt as hosts fetch queues.
The output of "queues export" may be applied.
`, &cmdQueuesApply{})

	_ = mustAddCmd(cmdQueues, "export", "Export queue weights as YAML", `
Write the queue weights of a configuration set as YAML, suitable for
"queues apply".
`, &cmdQueuesExport{})
}

func (cmd *cmdQueuesList) Execute([]string) error {
	var ctx, client, cleanup = startup()
	defer cleanup()

	var queues, err = client.DesiredDistribution(ctx, cmd.Namespace)
	if pb.IsConfiguration(err) {
		queues, err = nil, nil
	}
	mbp.Must(err, "failed to list queues")

	writeQueuesTable(stdout, queues)
	return nil
}

func (cmd *cmdQueuesApply) Execute([]string) error {
	var ctx, client, cleanup = startup()
	defer cleanup()

	var weights, err = readWeights(cmd.Path)
	if err != nil {
		return err
	}
	if cmd.DryRun {
		for name, w := range weights {
			mbp.Must((pb.Queue{Name: name, Weight: w}).Validate(), "invalid weight")
		}
		return writeWeights(stdout, weights)
	}
	mbp.Must(client.MapQueueWeights(ctx, cmd.Namespace, weights), "failed to apply weights")
	return nil
}

func (cmd *cmdQueuesExport) Execute([]string) error {
	var ctx, client, cleanup = startup()
	defer cleanup()

	var queues, err = client.DesiredDistribution(ctx, cmd.Namespace)
	mbp.Must(err, "failed to list queues")

	var weights = make(map[string]float64, len(queues))
	for _, q := range queues {
		weights[q.Name] = q.Weight
	}
	return writeWeights(stdout, weights)
}

func writeQueuesTable(w io.Writer, queues []pb.Queue) {
	var table = tablewriter.NewWriter(w)
	table.SetHeader([]string{"Queue", "Weight", "Resources"})

	for _, q := range queues {
		table.Append([]string{
			q.Name,
			fmt.Sprintf("%g", q.Weight),
			fmt.Sprintf("%.2f%%", q.ResourcePercentage*100),
		})
	}
	table.Render()
}

// readWeights decodes YAML weights from |path|, or from stdin if "-".
func readWeights(path string) (map[string]float64, error) {
	var buffer []byte
	var err error

	if path == "-" {
		buffer, err = io.ReadAll(os.Stdin)
	} else {
		buffer, err = os.ReadFile(path)
	}
	mbp.Must(err, "failed to read YAML input")

	return decodeWeights(buffer)
}

func decodeWeights(buffer []byte) (map[string]float64, error) {
	var weights map[string]float64

	if err := yaml.UnmarshalStrict(buffer, &weights); err != nil {
		// `yaml` produces nicely formatted error messages that are best printed as-is.
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		return nil, errors.New("YAML decode failed")
	}
	return weights, nil
}

// writeWeights encodes |weights| as YAML, ordered on descending weight.
func writeWeights(w io.Writer, weights map[string]float64) error {
	var names = make([]string, 0, len(weights))
	for n := range weights {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if weights[names[i]] != weights[names[j]] {
			return weights[names[i]] > weights[names[j]]
		}
		return names[i] < names[j]
	})

	var doc yaml.MapSlice
	for _, n := range names {
		doc = append(doc, yaml.MapItem{Key: n, Value: weights[n]})
	}
	var b, err = yaml.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
