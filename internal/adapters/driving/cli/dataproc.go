package cli

import (
	"strings"

	"github.com/spf13/cobra"
	dp "google.golang.org/api/dataproc/v1"

	"github.com/custodia-labs/gcpkit/internal/connectors/google/dataproc"
)

var (
	dataprocFilter  string
	dataprocCluster string
	dataprocState   string
)

var dataprocCmd = &cobra.Command{
	Use:   "dataproc",
	Short: "Dataproc clusters, jobs and operations in the configured region",
}

var dataprocClustersCmd = &cobra.Command{
	Use:   "clusters",
	Short: "List clusters",
	Args:  cobra.NoArgs,
	RunE:  runDataprocClusters,
}

var dataprocJobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List jobs",
	Args:  cobra.NoArgs,
	RunE:  runDataprocJobs,
}

var dataprocOpsCmd = &cobra.Command{
	Use:   "ops",
	Short: "List cluster operations",
	Args:  cobra.NoArgs,
	RunE:  runDataprocOps,
}

var dataprocWaitJobCmd = &cobra.Command{
	Use:   "wait-job <job-id>",
	Short: "Wait for a job to reach DONE, ERROR or CANCELLED",
	Args:  cobra.ExactArgs(1),
	RunE:  runDataprocWaitJob,
}

func init() {
	for _, c := range []*cobra.Command{dataprocClustersCmd, dataprocJobsCmd, dataprocOpsCmd} {
		c.Flags().StringVar(&dataprocFilter, "filter", "", "server-side filter expression")
	}
	dataprocJobsCmd.Flags().StringVar(&dataprocCluster, "cluster", "", "only jobs on this cluster")
	dataprocJobsCmd.Flags().StringVar(&dataprocState, "state", dataproc.MatchActive, "ALL, ACTIVE or NON_ACTIVE")

	dataprocCmd.AddCommand(dataprocClustersCmd, dataprocJobsCmd, dataprocOpsCmd, dataprocWaitJobCmd)
	rootCmd.AddCommand(dataprocCmd)
}

func dataprocClient(cmd *cobra.Command) (*dataproc.Client, string, error) {
	c, err := requireClients()
	if err != nil {
		return nil, "", err
	}
	projectID, err := project()
	if err != nil {
		return nil, "", err
	}
	client, err := c.Dataproc(cmd.Context())
	if err != nil {
		return nil, "", err
	}
	return client, projectID, nil
}

func runDataprocClusters(cmd *cobra.Command, _ []string) error {
	client, projectID, err := dataprocClient(cmd)
	if err != nil {
		return err
	}
	clusters, err := client.ListClusters(projectID, dataprocFilter, listOptions[*dp.Cluster]()).Collect(cmd.Context())
	if err != nil {
		return err
	}
	return list(cmd, clusters, []string{"NAME", "STATE", "WORKERS"}, func(c *dp.Cluster) []string {
		state, workers := "", ""
		if c.Status != nil {
			state = c.Status.State
		}
		if c.Config != nil && c.Config.WorkerConfig != nil {
			workers = itoa64(c.Config.WorkerConfig.NumInstances)
		}
		return []string{c.ClusterName, state, workers}
	})
}

func runDataprocJobs(cmd *cobra.Command, _ []string) error {
	client, projectID, err := dataprocClient(cmd)
	if err != nil {
		return err
	}
	q := dataproc.JobQuery{
		ProjectID:    projectID,
		ClusterName:  dataprocCluster,
		StateMatcher: strings.ToUpper(dataprocState),
		Filter:       dataprocFilter,
	}
	jobs, err := client.ListJobs(q, listOptions[*dp.Job]()).Collect(cmd.Context())
	if err != nil {
		return err
	}
	return list(cmd, jobs, []string{"JOB", "CLUSTER", "STATE"}, func(j *dp.Job) []string {
		id, cluster, state := "", "", ""
		if j.Reference != nil {
			id = j.Reference.JobId
		}
		if j.Placement != nil {
			cluster = j.Placement.ClusterName
		}
		if j.Status != nil {
			state = j.Status.State
		}
		return []string{id, cluster, state}
	})
}

func runDataprocOps(cmd *cobra.Command, _ []string) error {
	client, projectID, err := dataprocClient(cmd)
	if err != nil {
		return err
	}
	ops, err := client.ListOperations(projectID, dataprocFilter, listOptions[*dp.Operation]()).Collect(cmd.Context())
	if err != nil {
		return err
	}
	return list(cmd, ops, []string{"OPERATION", "DONE", "SUMMARY"}, func(op *dp.Operation) []string {
		done := "no"
		if op.Done {
			done = "yes"
		}
		return []string{lastPathSegment(op.Name), done, dataproc.OperationSummary(op)}
	})
}

func runDataprocWaitJob(cmd *cobra.Command, args []string) error {
	client, projectID, err := dataprocClient(cmd)
	if err != nil {
		return err
	}
	job, err := client.WaitJob(cmd.Context(), dataproc.JobRef{ProjectID: projectID, JobID: args[0]})
	return reportWait(cmd, job, dataproc.JobSummary(job), err)
}
