package cli

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	ce "google.golang.org/api/compute/v1"

	"github.com/custodia-labs/gcpkit/internal/connectors/google/compute"
)

var (
	computeFilter string
	computeZone   string
	computeRegion string
)

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Compute Engine regions, zones, instances and operations",
}

var computeRegionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List regions",
	Args:  cobra.NoArgs,
	RunE:  runComputeRegions,
}

var computeZonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "List zones",
	Args:  cobra.NoArgs,
	RunE:  runComputeZones,
}

var computeInstancesCmd = &cobra.Command{
	Use:   "instances",
	Short: "List instances in a zone, or in every zone",
	Args:  cobra.NoArgs,
	RunE:  runComputeInstances,
}

var computeStartCmd = &cobra.Command{
	Use:   "start <zone> <instance>",
	Short: "Start an instance and wait for the operation",
	Args:  cobra.ExactArgs(2),
	RunE:  runComputeStart,
}

var computeStopCmd = &cobra.Command{
	Use:   "stop <zone> <instance>",
	Short: "Stop an instance and wait for the operation",
	Args:  cobra.ExactArgs(2),
	RunE:  runComputeStop,
}

var computeOpsCmd = &cobra.Command{
	Use:   "ops",
	Short: "List zone or region operations",
	Long: `List operations in one zone (--zone) or one region (--region).

Without either, zone operations of every zone are listed.`,
	Args: cobra.NoArgs,
	RunE: runComputeOps,
}

func init() {
	for _, c := range []*cobra.Command{computeRegionsCmd, computeZonesCmd, computeInstancesCmd, computeOpsCmd} {
		c.Flags().StringVar(&computeFilter, "filter", "", "Compute Engine filter expression")
	}
	computeInstancesCmd.Flags().StringVar(&computeZone, "zone", "", "zone (default every zone)")
	computeOpsCmd.Flags().StringVar(&computeZone, "zone", "", "zone")
	computeOpsCmd.Flags().StringVar(&computeRegion, "region", "", "region")
	computeOpsCmd.MarkFlagsMutuallyExclusive("zone", "region")

	computeCmd.AddCommand(computeRegionsCmd, computeZonesCmd, computeInstancesCmd,
		computeStartCmd, computeStopCmd, computeOpsCmd)
	rootCmd.AddCommand(computeCmd)
}

func computeClient(cmd *cobra.Command) (*compute.Client, error) {
	c, err := requireClients()
	if err != nil {
		return nil, err
	}
	projectID, err := project()
	if err != nil {
		return nil, err
	}
	return c.Compute(cmd.Context(), projectID)
}

func runComputeRegions(cmd *cobra.Command, _ []string) error {
	client, err := computeClient(cmd)
	if err != nil {
		return err
	}
	regions, err := client.ListRegions(computeFilter, listOptions[*ce.Region]()).Collect(cmd.Context())
	if err != nil {
		return err
	}
	return list(cmd, regions, []string{"NAME", "STATUS", "ZONES"}, func(r *ce.Region) []string {
		return []string{r.Name, r.Status, strconv.Itoa(len(r.Zones))}
	})
}

func runComputeZones(cmd *cobra.Command, _ []string) error {
	client, err := computeClient(cmd)
	if err != nil {
		return err
	}
	zones, err := client.ListZones(computeFilter, listOptions[*ce.Zone]()).Collect(cmd.Context())
	if err != nil {
		return err
	}
	return list(cmd, zones, []string{"NAME", "STATUS", "REGION"}, func(z *ce.Zone) []string {
		return []string{z.Name, z.Status, lastPathSegment(z.Region)}
	})
}

func runComputeInstances(cmd *cobra.Command, _ []string) error {
	client, err := computeClient(cmd)
	if err != nil {
		return err
	}
	instances, err := client.ListInstances(computeZone, computeFilter, listOptions[*ce.Instance]()).Collect(cmd.Context())
	if err != nil {
		return err
	}
	return list(cmd, instances, []string{"NAME", "ZONE", "MACHINE TYPE", "STATUS"}, func(i *ce.Instance) []string {
		return []string{i.Name, lastPathSegment(i.Zone), lastPathSegment(i.MachineType), i.Status}
	})
}

func runComputeStart(cmd *cobra.Command, args []string) error {
	return runInstanceOperation(cmd, args, (*compute.Client).StartInstance)
}

func runComputeStop(cmd *cobra.Command, args []string) error {
	return runInstanceOperation(cmd, args, (*compute.Client).StopInstance)
}

func runInstanceOperation(cmd *cobra.Command, args []string,
	call func(*compute.Client, context.Context, string, string) (*ce.Operation, error)) error {
	client, err := computeClient(cmd)
	if err != nil {
		return err
	}
	op, err := call(client, cmd.Context(), args[0], args[1])
	return reportWait(cmd, op, compute.OperationSummary(op), err)
}

func runComputeOps(cmd *cobra.Command, _ []string) error {
	client, err := computeClient(cmd)
	if err != nil {
		return err
	}
	kind, location := compute.ScopeZone, computeZone
	if computeRegion != "" {
		kind, location = compute.ScopeRegion, computeRegion
	}
	ops, err := client.ListOperations(kind, location, computeFilter, listOptions[*ce.Operation]()).Collect(cmd.Context())
	if err != nil {
		return err
	}
	return list(cmd, ops, []string{"NAME", "TYPE", "TARGET", "STATUS", "STARTED"}, func(op *ce.Operation) []string {
		return []string{op.Name, op.OperationType, lastPathSegment(op.TargetLink), op.Status, shortTime(op.StartTime)}
	})
}

// lastPathSegment turns a resource self link into its short name.
func lastPathSegment(link string) string {
	if i := strings.LastIndex(link, "/"); i >= 0 {
		return link[i+1:]
	}
	return link
}

func itoa64(n int64) string {
	return strconv.FormatInt(n, 10)
}

// shortTime reformats an RFC 3339 timestamp to seconds precision in UTC.
func shortTime(s string) string {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.UTC().Format(time.RFC3339)
}
