package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/gcpkit/internal/core/domain"
)

var (
	jobLocation    string
	jobPendingOnly bool
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Track long-running jobs and wait on them as a batch",
	Long: `Track BigQuery jobs, Compute operations and Dataproc jobs or operations
submitted without waiting, then wait on all of them later.

Services: bigquery, compute, dataproc-operation, dataproc-job.
Compute locations are "zones/NAME" or "regions/NAME"; Dataproc locations
default to the configured region.`,
}

var jobsTrackCmd = &cobra.Command{
	Use:   "track <service> <id>",
	Short: "Record a submitted job as pending",
	Args:  cobra.ExactArgs(2),
	RunE:  runJobsTrack,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked jobs",
	Args:  cobra.NoArgs,
	RunE:  runJobsList,
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <service> <id>",
	Short: "Fetch the current status of one job without waiting",
	Args:  cobra.ExactArgs(2),
	RunE:  runJobsStatus,
}

var jobsWaitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait on every pending job in submission order",
	Args:  cobra.NoArgs,
	RunE:  runJobsWait,
}

var jobsForgetCmd = &cobra.Command{
	Use:   "forget <service> <id>",
	Short: "Stop tracking a job",
	Args:  cobra.ExactArgs(2),
	RunE:  runJobsForget,
}

// errJobsFailed is returned by wait when at least one job failed.
var errJobsFailed = errors.New("one or more jobs failed")

func init() {
	for _, c := range []*cobra.Command{jobsTrackCmd, jobsStatusCmd, jobsForgetCmd} {
		c.Flags().StringVar(&jobLocation, "location", "", "job location (zone, region or BigQuery location)")
	}
	jobsListCmd.Flags().BoolVar(&jobPendingOnly, "pending", false, "only pending jobs")

	jobsCmd.AddCommand(jobsTrackCmd, jobsListCmd, jobsStatusCmd, jobsWaitCmd, jobsForgetCmd)
	rootCmd.AddCommand(jobsCmd)
}

func requireTracker() error {
	if jobTracker == nil {
		return errors.New("job tracker not configured")
	}
	return nil
}

// jobRef builds a reference from <service> <id>, the --location flag and
// the current project.
func jobRef(args []string) (domain.JobRef, error) {
	svc := domain.Service(args[0])
	if !svc.IsValid() {
		return domain.JobRef{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedService, args[0])
	}
	projectID, err := project()
	if err != nil {
		return domain.JobRef{}, err
	}
	ref := domain.JobRef{ID: args[1], Service: svc, ProjectID: projectID, Location: jobLocation}
	if ref.Location == "" && (svc == domain.ServiceDataprocJob || svc == domain.ServiceDataprocOperation) {
		ref.Location = domain.DefaultDataprocRegion
		if settingsService != nil {
			if s, err := settingsService.Get(); err == nil && s.DataprocRegion != "" {
				ref.Location = s.DataprocRegion
			}
		}
	}
	return ref, nil
}

func runJobsTrack(cmd *cobra.Command, args []string) error {
	if err := requireTracker(); err != nil {
		return err
	}
	ref, err := jobRef(args)
	if err != nil {
		return err
	}
	if err := jobTracker.Track(cmd.Context(), ref); err != nil {
		return fmt.Errorf("track %s: %w", ref, err)
	}
	newRenderer(cmd).success("Tracking %s", ref)
	return nil
}

func runJobsList(cmd *cobra.Command, _ []string) error {
	if err := requireTracker(); err != nil {
		return err
	}
	jobs, err := jobTracker.List(cmd.Context())
	if err != nil {
		return err
	}
	if jobPendingOnly {
		var pending []domain.TrackedJob
		for _, j := range jobs {
			if j.State == domain.JobStatePending {
				pending = append(pending, j)
			}
		}
		jobs = pending
	}
	return list(cmd, jobs, []string{"JOB", "STATE", "SUBMITTED", "MESSAGE"}, func(j domain.TrackedJob) []string {
		return []string{j.Ref.String(), string(j.State), formatTime(j.SubmittedAt), j.Message}
	})
}

func runJobsStatus(cmd *cobra.Command, args []string) error {
	if err := requireTracker(); err != nil {
		return err
	}
	ref, err := jobRef(args)
	if err != nil {
		return err
	}
	status, err := jobTracker.Status(cmd.Context(), ref)
	if err != nil {
		return err
	}
	if jsonOutput {
		return newRenderer(cmd).json(status)
	}
	cmd.Printf("Job:    %s\n", ref)
	cmd.Printf("State:  %s\n", status.State)
	cmd.Printf("Done:   %t\n", status.Done)
	if status.Summary != "" {
		cmd.Printf("Summary: %s\n", status.Summary)
	}
	if status.Failure != nil {
		cmd.Printf("Error:  %s\n", status.Failure.Error())
	}
	return nil
}

func runJobsWait(cmd *cobra.Command, _ []string) error {
	if err := requireTracker(); err != nil {
		return err
	}
	outcomes, err := jobTracker.WaitPending(cmd.Context())
	if err != nil {
		return err
	}

	r := newRenderer(cmd)
	if len(outcomes) == 0 && !jsonOutput {
		r.muted("No pending jobs.")
		return nil
	}

	type result struct {
		Job     string          `json:"job"`
		State   domain.JobState `json:"state"`
		Message string          `json:"message,omitempty"`
	}
	results := make([]result, 0, len(outcomes))
	failed := 0
	for _, o := range outcomes {
		state, msg := domain.ClassifyOutcome(o)
		if state == domain.JobStateFailed {
			failed++
		}
		results = append(results, result{Job: o.Ref.String(), State: state, Message: msg})
	}

	if jsonOutput {
		if err := r.json(results); err != nil {
			return err
		}
	} else {
		for _, res := range results {
			switch res.State {
			case domain.JobStateDone:
				r.success("✓ %s %s", res.Job, res.Message)
			case domain.JobStateFailed:
				r.failure("✗ %s %s", res.Job, res.Message)
			default:
				r.muted("… %s still pending: %s", res.Job, res.Message)
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errJobsFailed, failed, len(outcomes))
	}
	return nil
}

func runJobsForget(cmd *cobra.Command, args []string) error {
	if err := requireTracker(); err != nil {
		return err
	}
	ref, err := jobRef(args)
	if err != nil {
		return err
	}
	if err := jobTracker.Forget(cmd.Context(), ref); err != nil {
		return err
	}
	newRenderer(cmd).success("Forgot %s", ref)
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(time.DateTime)
}
