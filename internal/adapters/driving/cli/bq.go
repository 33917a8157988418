package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	bq "google.golang.org/api/bigquery/v2"

	"github.com/custodia-labs/gcpkit/internal/connectors/google/bigquery"
	"github.com/custodia-labs/gcpkit/internal/core/domain"
)

var (
	bqAllDatasets bool
	bqJobStates   []string
	bqAllUsers    bool
	bqBefore      string
	bqSQLFile     string
	bqVars        map[string]string
	bqDest        string
	bqLocation    string
)

var bqCmd = &cobra.Command{
	Use:   "bq",
	Short: "BigQuery projects, datasets, tables and jobs",
}

var bqProjectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects visible to BigQuery",
	Args:  cobra.NoArgs,
	RunE:  runBQProjects,
}

var bqDatasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List datasets in the project",
	Args:  cobra.NoArgs,
	RunE:  runBQDatasets,
}

var bqTablesCmd = &cobra.Command{
	Use:   "tables <dataset>",
	Short: "List tables and views in a dataset",
	Args:  cobra.ExactArgs(1),
	RunE:  runBQTables,
}

var bqJobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List jobs, most recent first",
	Long: `List BigQuery jobs in the project, most recent first.

--before stops the listing at the first job created before the given time,
so no further pages are fetched.`,
	Args: cobra.NoArgs,
	RunE: runBQJobs,
}

var bqQueryCmd = &cobra.Command{
	Use:   "query [sql]",
	Short: "Run a query and print its rows",
	Long: `Run a query, wait for it and print every result row.

The query is taken from the argument or from --file, in which {key}
placeholders are replaced with --var key=value pairs. With --dest the
results are also written to that table.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBQQuery,
}

var bqWaitCmd = &cobra.Command{
	Use:   "wait <job-id>",
	Short: "Wait for a job to finish",
	Args:  cobra.ExactArgs(1),
	RunE:  runBQWait,
}

func init() {
	bqDatasetsCmd.Flags().BoolVar(&bqAllDatasets, "all", false, "include hidden datasets")
	bqJobsCmd.Flags().StringSliceVar(&bqJobStates, "state", nil, "only jobs in these states (done, pending, running)")
	bqJobsCmd.Flags().BoolVar(&bqAllUsers, "all-users", false, "include jobs of other users")
	bqJobsCmd.Flags().StringVar(&bqBefore, "before", "", "stop at jobs created before this RFC 3339 time")
	bqQueryCmd.Flags().StringVarP(&bqSQLFile, "file", "f", "", "read the query from a file")
	bqQueryCmd.Flags().StringToStringVar(&bqVars, "var", nil, "placeholder values for --file, key=value")
	bqQueryCmd.Flags().StringVar(&bqDest, "dest", "", "destination table project:dataset.table")
	bqWaitCmd.Flags().StringVar(&bqLocation, "location", "", "job location (e.g. US, EU)")

	bqCmd.AddCommand(bqProjectsCmd, bqDatasetsCmd, bqTablesCmd, bqJobsCmd, bqQueryCmd, bqWaitCmd)
	rootCmd.AddCommand(bqCmd)
}

func bigQueryClient(cmd *cobra.Command) (*bigquery.Client, error) {
	c, err := requireClients()
	if err != nil {
		return nil, err
	}
	return c.BigQuery(cmd.Context())
}

func runBQProjects(cmd *cobra.Command, _ []string) error {
	client, err := bigQueryClient(cmd)
	if err != nil {
		return err
	}
	projects, err := client.ListProjects(listOptions[*bq.ProjectListProjects]()).Collect(cmd.Context())
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}
	return list(cmd, projects, []string{"ID", "NAME", "NUMBER"}, func(p *bq.ProjectListProjects) []string {
		return []string{bqProjectID(p), p.FriendlyName, strconv.FormatUint(p.NumericId, 10)}
	})
}

func bqProjectID(p *bq.ProjectListProjects) string {
	if p.ProjectReference != nil {
		return p.ProjectReference.ProjectId
	}
	return p.Id
}

func runBQDatasets(cmd *cobra.Command, _ []string) error {
	projectID, err := project()
	if err != nil {
		return err
	}
	client, err := bigQueryClient(cmd)
	if err != nil {
		return err
	}
	datasets, err := client.ListDatasets(projectID, bqAllDatasets, listOptions[*bq.DatasetListDatasets]()).Collect(cmd.Context())
	if err != nil {
		return fmt.Errorf("list datasets: %w", err)
	}
	return list(cmd, datasets, []string{"DATASET", "LOCATION"}, func(d *bq.DatasetListDatasets) []string {
		id := d.Id
		if d.DatasetReference != nil {
			id = d.DatasetReference.DatasetId
		}
		return []string{id, d.Location}
	})
}

func runBQTables(cmd *cobra.Command, args []string) error {
	projectID, err := project()
	if err != nil {
		return err
	}
	client, err := bigQueryClient(cmd)
	if err != nil {
		return err
	}
	tables, err := client.ListTables(projectID, args[0], listOptions[*bq.TableListTables]()).Collect(cmd.Context())
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	return list(cmd, tables, []string{"TABLE", "TYPE", "CREATED"}, func(t *bq.TableListTables) []string {
		id := t.Id
		if t.TableReference != nil {
			id = t.TableReference.TableId
		}
		return []string{id, t.Type, millis(t.CreationTime)}
	})
}

func runBQJobs(cmd *cobra.Command, _ []string) error {
	projectID, err := project()
	if err != nil {
		return err
	}
	opts := listOptions[*bq.JobListJobs]()
	if bqBefore != "" {
		cutoff, err := time.Parse(time.RFC3339, bqBefore)
		if err != nil {
			return domain.Invalid("--before must be an RFC 3339 time: %v", err)
		}
		opts.Break = bigquery.CreatedBefore(cutoff)
	}

	client, err := bigQueryClient(cmd)
	if err != nil {
		return err
	}
	q := bigquery.JobQuery{ProjectID: projectID, States: bqJobStates, AllUsers: bqAllUsers}
	jobs, err := client.ListJobs(q, opts).Collect(cmd.Context())
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}
	return list(cmd, jobs, []string{"JOB", "TYPE", "STATE", "CREATED", "USER"}, func(j *bq.JobListJobs) []string {
		row := []string{j.Id, "", j.State, "", j.UserEmail}
		if j.JobReference != nil {
			row[0] = j.JobReference.JobId
		}
		if j.Configuration != nil {
			row[1] = j.Configuration.JobType
		}
		if j.Statistics != nil {
			row[3] = millis(j.Statistics.CreationTime)
		}
		return row
	})
}

func runBQQuery(cmd *cobra.Command, args []string) error {
	projectID, err := project()
	if err != nil {
		return err
	}

	query := argOr(args, 0)
	if bqSQLFile != "" {
		if query != "" {
			return domain.Invalid("pass the query as an argument or with --file, not both")
		}
		if query, err = bigquery.ReadSQL(bqSQLFile, bqVars); err != nil {
			return err
		}
	}
	if strings.TrimSpace(query) == "" {
		return domain.Invalid("no query given")
	}

	client, err := bigQueryClient(cmd)
	if err != nil {
		return err
	}

	var result *bigquery.QueryResult
	if bqDest != "" {
		dest, perr := bigquery.ParseTableRef(bqDest)
		if perr != nil {
			return perr
		}
		result, err = client.AsyncQuery(cmd.Context(), projectID, query, dest, bigquery.QueryOptions{})
	} else {
		result, err = client.SyncQuery(cmd.Context(), projectID, query)
	}
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}

	r := newRenderer(cmd)
	if jsonOutput {
		return r.json(result)
	}
	rows := make([][]string, len(result.Rows))
	for i, row := range result.Rows {
		rows[i] = make([]string, len(row))
		for j, v := range row {
			rows[i][j] = fmt.Sprint(v)
		}
	}
	r.table(result.Header, rows)
	if result.Job != nil {
		r.muted("%s", bigquery.JobSummary(result.Job, ""))
	}
	return nil
}

func runBQWait(cmd *cobra.Command, args []string) error {
	projectID, err := project()
	if err != nil {
		return err
	}
	client, err := bigQueryClient(cmd)
	if err != nil {
		return err
	}

	ref := &bq.JobReference{ProjectId: projectID, JobId: args[0], Location: bqLocation}
	job, err := client.WaitJob(cmd.Context(), ref)
	return reportWait(cmd, job, bigquery.JobSummary(job, ""), err)
}

// millis renders a millisecond epoch timestamp.
func millis(ms int64) string {
	if ms <= 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

// reportWait prints the outcome of waiting on one resource. A terminal
// failure is printed together with its summary and returned.
func reportWait(cmd *cobra.Command, payload any, summary string, err error) error {
	r := newRenderer(cmd)
	if err != nil && !domain.IsJobError(err) {
		return err
	}
	if jsonOutput {
		if jerr := r.json(payload); jerr != nil {
			return jerr
		}
		return err
	}
	if err != nil {
		r.failure("%s", summary)
		return err
	}
	r.success("%s", summary)
	return nil
}

func listOptions[T any]() domain.ListOptions[T] {
	return domain.ListOptions[T]{MaxResults: maxResults}
}
