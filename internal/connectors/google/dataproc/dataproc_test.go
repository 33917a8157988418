package dataproc

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/dataproc/v1"

	"github.com/custodia-labs/gcpkit/internal/connectors/google"
	"github.com/custodia-labs/gcpkit/internal/connectors/google/googletest"
	"github.com/custodia-labs/gcpkit/internal/core/domain"
)

const opName = "projects/proj/regions/global/operations/op-123"

func newTestClient(t *testing.T) (*Client, *googletest.Server, *[]time.Duration) {
	t.Helper()
	srv := googletest.NewServer(t)
	svc, err := google.NewDataprocService(context.Background(), srv.Config())
	require.NoError(t, err)

	var pauses []time.Duration
	wait := google.WaitConfig{Sleep: func(_ context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return nil
	}}
	return NewClient(svc, srv.Retryer(), "", wait), srv, &pauses
}

func operation(state string, done bool) map[string]any {
	return map[string]any{
		"name": opName,
		"done": done,
		"metadata": map[string]any{
			"operationType": "CREATE",
			"clusterName":   "c1",
			"status":        map[string]any{"state": state, "stateStartTime": "2024-03-01T12:02:10.500Z"},
			"statusHistory": []any{
				map[string]any{"state": "PENDING", "stateStartTime": "2024-03-01T12:00:00.000Z"},
			},
		},
	}
}

func job(id, state string) map[string]any {
	return map[string]any{
		"reference": map[string]any{"projectId": "proj", "jobId": id},
		"placement": map[string]any{"clusterName": "c1"},
		"sparkJob":  map[string]any{"mainClass": "com.example.Main"},
		"status":    map[string]any{"state": state, "details": "", "stateStartTime": "2024-03-01T12:00:42Z"},
		"statusHistory": []any{
			map[string]any{"state": "PENDING", "stateStartTime": "2024-03-01T12:00:00Z"},
		},
	}
}

func TestNewClient_DefaultRegion(t *testing.T) {
	c, _, _ := newTestClient(t)

	assert.Equal(t, "global", c.Region())
	assert.Equal(t, "projects/p/regions/global/operations", c.OperationsName("p"))
}

func TestListClusters(t *testing.T) {
	c, srv, _ := newTestClient(t)
	srv.JSON(http.MethodGet, "/projects/proj/regions/global/clusters",
		map[string]any{"clusters": []any{map[string]any{"clusterName": "c1"}}, "nextPageToken": "t"},
		map[string]any{"clusters": []any{map[string]any{"clusterName": "c2"}}},
	)

	clusters, err := c.ListClusters("proj", "status.state = ACTIVE", domain.ListOptions[*dataproc.Cluster]{}).Collect(context.Background())

	require.NoError(t, err)
	require.Len(t, clusters, 2)
	assert.Equal(t, "c2", clusters[1].ClusterName)
	req, _ := srv.Last(http.MethodGet, "/clusters")
	assert.Equal(t, []string{"status.state = ACTIVE"}, req.Query["filter"])
}

func TestGetCluster_RequiresName(t *testing.T) {
	c, srv, _ := newTestClient(t)

	_, err := c.GetCluster(context.Background(), "proj", "")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, srv.Requests())
}

func TestDiagnoseCluster_DoesNotWait(t *testing.T) {
	c, srv, _ := newTestClient(t)
	srv.JSON(http.MethodPost, "/clusters/c1:diagnose", operation("RUNNING", false))

	op, err := c.DiagnoseCluster(context.Background(), "proj", "c1")

	require.NoError(t, err)
	assert.Equal(t, opName, op.Name)
	assert.Zero(t, srv.Count(http.MethodGet, "/operations/op-123"))
}

func TestCreateCluster_BuildsBodyAndWaits(t *testing.T) {
	c, srv, pauses := newTestClient(t)
	srv.JSON(http.MethodPost, "/projects/proj/regions/global/clusters", operation("PENDING", false))
	srv.JSON(http.MethodGet, "/operations/op-123",
		operation("RUNNING", false),
		operation("DONE", false),
	)

	op, err := c.CreateCluster(context.Background(), "proj", ClusterSpec{
		Name:        "c1",
		Zone:        "europe-west1-b",
		Worker:      NodeGroup{Count: 4},
		InitActions: []string{"gs://b/init.sh"},
	})

	require.NoError(t, err)
	assert.Equal(t, "DONE", operationState(op))
	assert.Equal(t, []time.Duration{DefaultOperationPollInterval}, *pauses)

	req, _ := srv.Last(http.MethodPost, "/clusters")
	var body dataproc.Cluster
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.Equal(t, "c1", body.ClusterName)
	assert.Equal(t, "https://www.googleapis.com/compute/v1/projects/proj/global/networks/default", body.Config.GceClusterConfig.NetworkUri)
	assert.Equal(t, "https://www.googleapis.com/compute/v1/projects/proj/zones/europe-west1-b", body.Config.GceClusterConfig.ZoneUri)
	assert.Equal(t, int64(1), body.Config.MasterConfig.NumInstances)
	assert.Equal(t, int64(4), body.Config.WorkerConfig.NumInstances)
	assert.Equal(t, int64(500), body.Config.WorkerConfig.DiskConfig.BootDiskSizeGb)
	assert.Contains(t, body.Config.MasterConfig.MachineTypeUri, "/machineTypes/n1-standard-4")
	require.Len(t, body.Config.InitializationActions, 1)
	assert.Equal(t, "gs://b/init.sh", body.Config.InitializationActions[0].ExecutableFile)
	require.Len(t, req.Query["requestId"], 1)
	assert.NotEmpty(t, req.Query["requestId"][0])
}

func TestCreateCluster_RequiresZone(t *testing.T) {
	c, _, _ := newTestClient(t)

	_, err := c.CreateCluster(context.Background(), "proj", ClusterSpec{Name: "c1"})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDeleteCluster_OperationError(t *testing.T) {
	c, srv, _ := newTestClient(t)
	failed := operation("DONE", true)
	failed["error"] = map[string]any{"code": 9, "message": "cluster is busy"}
	srv.JSON(http.MethodDelete, "/clusters/c1", operation("PENDING", false))
	srv.JSON(http.MethodGet, "/operations/op-123", failed)

	op, err := c.DeleteCluster(context.Background(), "proj", "c1", false)

	var jerr *domain.JobError
	require.ErrorAs(t, err, &jerr)
	assert.Equal(t, "FailedPrecondition", jerr.Reason)
	assert.Equal(t, "cluster is busy", jerr.Message)
	assert.NotNil(t, op)
}

func TestDeleteCluster_RetryReusesRequestID(t *testing.T) {
	c, srv, _ := newTestClient(t)
	c.retryer = google.NewRetryer(google.RetryConfig{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}, nil)
	srv.Sequence(http.MethodDelete, "/clusters/c1",
		[]int{http.StatusServiceUnavailable, http.StatusOK},
		[]any{googletest.ErrorBody(http.StatusServiceUnavailable, "backendError"), operation("PENDING", false)})

	_, err := c.DeleteCluster(context.Background(), "proj", "c1", true)
	require.NoError(t, err)

	var ids []string
	for _, r := range srv.Requests() {
		if r.Method == http.MethodDelete {
			ids = append(ids, r.Query["requestId"]...)
		}
	}
	require.Len(t, ids, 2)
	assert.Equal(t, ids[0], ids[1])
}

func TestDeleteCluster_Async(t *testing.T) {
	c, srv, _ := newTestClient(t)
	srv.JSON(http.MethodDelete, "/clusters/c1", operation("PENDING", false))

	op, err := c.DeleteCluster(context.Background(), "proj", "c1", true)

	require.NoError(t, err)
	assert.False(t, op.Done)
	assert.Zero(t, srv.Count(http.MethodGet, "/operations/op-123"))
}

func TestListOperations(t *testing.T) {
	c, srv, _ := newTestClient(t)
	srv.JSON(http.MethodGet, "/projects/proj/regions/global/operations",
		map[string]any{"operations": []any{operation("DONE", true), operation("RUNNING", false)}},
	)

	ops, err := c.ListOperations("proj", "", domain.ListOptions[*dataproc.Operation]{
		Filter: func(op *dataproc.Operation) bool { return !op.Done },
	}).Collect(context.Background())

	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "RUNNING", operationState(ops[0]))
}

func TestWaitOperations_Batch(t *testing.T) {
	c, srv, _ := newTestClient(t)
	srv.JSON(http.MethodGet, "/operations/op-123", operation("DONE", true))
	srv.Error(http.MethodGet, "/operations/gone", http.StatusNotFound, "notFound")

	outcomes := c.WaitOperations(context.Background(), []string{
		"projects/proj/regions/global/operations/gone",
		opName,
	})

	require.Len(t, outcomes, 2)
	assert.ErrorIs(t, outcomes[0].Err, domain.ErrNotFound)
	assert.True(t, outcomes[1].OK())
}

func TestListJobs_DefaultsToActive(t *testing.T) {
	c, srv, _ := newTestClient(t)
	srv.JSON(http.MethodGet, "/projects/proj/regions/global/jobs",
		map[string]any{"jobs": []any{job("j1", "RUNNING")}},
	)

	jobs, err := c.ListJobs(JobQuery{ProjectID: "proj", ClusterName: "c1"}, domain.ListOptions[*dataproc.Job]{}).Collect(context.Background())

	require.NoError(t, err)
	require.Len(t, jobs, 1)
	req, _ := srv.Last(http.MethodGet, "/jobs")
	assert.Equal(t, []string{"ACTIVE"}, req.Query["jobStateMatcher"])
	assert.Equal(t, []string{"c1"}, req.Query["clusterName"])
}

func TestSubmitSparkJob_WaitsUntilTerminal(t *testing.T) {
	c, srv, pauses := newTestClient(t)
	srv.JSON(http.MethodPost, "/jobs:submit", job("j1", "PENDING"))
	srv.JSON(http.MethodGet, "/jobs/j1", job("j1", "RUNNING"), job("j1", "DONE"))

	j, err := c.SubmitSparkJob(context.Background(), "proj", "c1", "com.example.Main", SubmitOptions{
		Args:       []string{"--date", "2024-03-01"},
		JarURIs:    []string{"gs://b/app.jar"},
		Properties: map[string]string{"spark.executor.memory": "4g"},
	})

	require.NoError(t, err)
	assert.Equal(t, "DONE", j.Status.State)
	assert.Equal(t, []time.Duration{DefaultJobPollInterval}, *pauses)

	req, _ := srv.Last(http.MethodPost, "/jobs:submit")
	var body dataproc.SubmitJobRequest
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.Equal(t, "c1", body.Job.Placement.ClusterName)
	assert.Equal(t, "com.example.Main", body.Job.SparkJob.MainClass)
	assert.Equal(t, []string{"gs://b/app.jar"}, body.Job.SparkJob.JarFileUris)
	assert.Equal(t, "4g", body.Job.SparkJob.Properties["spark.executor.memory"])
	assert.Len(t, body.RequestId, 36)
}

func TestSubmitPySparkJob_PlacementInsideJob(t *testing.T) {
	c, srv, _ := newTestClient(t)
	srv.JSON(http.MethodPost, "/jobs:submit", job("j2", "PENDING"))

	j, err := c.SubmitPySparkJob(context.Background(), "proj", "c1", "gs://b/main.py", []string{"gs://b/lib.py"}, SubmitOptions{Async: true})

	require.NoError(t, err)
	assert.Equal(t, "j2", j.Reference.JobId)

	req, _ := srv.Last(http.MethodPost, "/jobs:submit")
	var body dataproc.SubmitJobRequest
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.Equal(t, "c1", body.Job.Placement.ClusterName)
	assert.Equal(t, "gs://b/main.py", body.Job.PysparkJob.MainPythonFileUri)
	assert.Equal(t, []string{"gs://b/lib.py"}, body.Job.PysparkJob.PythonFileUris)
}

func TestSubmit_Validation(t *testing.T) {
	c, srv, _ := newTestClient(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		submit func() error
	}{
		{name: "no main class", submit: func() error {
			_, err := c.SubmitSparkJob(ctx, "proj", "c1", "", SubmitOptions{})
			return err
		}},
		{name: "no cluster", submit: func() error {
			_, err := c.SubmitSparkJob(ctx, "proj", "", "Main", SubmitOptions{})
			return err
		}},
		{name: "bad jar uri", submit: func() error {
			_, err := c.SubmitSparkJob(ctx, "proj", "c1", "Main", SubmitOptions{JarURIs: []string{"app.jar"}})
			return err
		}},
		{name: "empty property name", submit: func() error {
			_, err := c.SubmitSparkJob(ctx, "proj", "c1", "Main", SubmitOptions{Properties: map[string]string{" ": "x"}})
			return err
		}},
		{name: "no python driver", submit: func() error {
			_, err := c.SubmitPySparkJob(ctx, "proj", "c1", "", nil, SubmitOptions{})
			return err
		}},
		{name: "bad python uri", submit: func() error {
			_, err := c.SubmitPySparkJob(ctx, "proj", "c1", "gs://b/main.py", []string{"lib.py"}, SubmitOptions{})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.submit(), domain.ErrInvalidInput)
		})
	}
	assert.Empty(t, srv.Requests())
}

func TestWaitJob_ErrorState(t *testing.T) {
	c, srv, _ := newTestClient(t)
	failed := job("j3", "ERROR")
	failed["status"].(map[string]any)["details"] = "Job failed with message [boom]"
	srv.JSON(http.MethodGet, "/jobs/j3", failed)

	j, err := c.WaitJob(context.Background(), JobRef{ProjectID: "proj", JobID: "j3"})

	var jerr *domain.JobError
	require.ErrorAs(t, err, &jerr)
	assert.Equal(t, "ERROR", jerr.Reason)
	assert.Contains(t, jerr.Message, "boom")
	assert.Equal(t, "ERROR", j.Status.State)
}

func TestWaitJob_Cancelled(t *testing.T) {
	c, srv, _ := newTestClient(t)
	srv.JSON(http.MethodGet, "/jobs/j4", job("j4", "CANCELLED"))

	_, err := c.WaitJob(context.Background(), JobRef{ProjectID: "proj", JobID: "j4"})

	assert.True(t, domain.IsJobError(err))
}

func TestWaitJobs_Batch(t *testing.T) {
	c, srv, _ := newTestClient(t)
	srv.JSON(http.MethodGet, "/jobs/ok", job("ok", "DONE"))
	srv.JSON(http.MethodGet, "/jobs/bad", job("bad", "ERROR"))

	outcomes := c.WaitJobs(context.Background(), []JobRef{{ProjectID: "proj", JobID: "bad"}, {ProjectID: "proj", JobID: "ok"}})

	require.Len(t, outcomes, 2)
	assert.True(t, domain.IsJobError(outcomes[0].Err))
	assert.True(t, outcomes[1].OK())
}

func TestPollers(t *testing.T) {
	c, srv, _ := newTestClient(t)
	srv.JSON(http.MethodGet, "/operations/op-123", operation("DONE", true))
	srv.JSON(http.MethodGet, "/jobs/j1", job("j1", "RUNNING"))

	opRef := c.OperationRef("proj", opName)
	assert.Equal(t, domain.ServiceDataprocOperation, c.OperationPoller().Service())
	status, err := c.OperationPoller().PollJob(context.Background(), opRef)
	require.NoError(t, err)
	assert.True(t, status.Done)
	assert.Equal(t, "[Dataproc] CREATE Operation (op-123) (2 Minutes 10 Seconds)", status.Summary)

	jobRef := c.TrackedJobRef(JobRef{ProjectID: "proj", JobID: "j1"})
	assert.Equal(t, domain.ServiceDataprocJob, c.JobPoller().Service())
	assert.Equal(t, "global", jobRef.Location)
	status, err = c.JobPoller().PollJob(context.Background(), jobRef)
	require.NoError(t, err)
	assert.False(t, status.Done)
	assert.Equal(t, "RUNNING", status.State)
}
