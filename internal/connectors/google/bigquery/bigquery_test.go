package bigquery

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bq "google.golang.org/api/bigquery/v2"

	"github.com/custodia-labs/gcpkit/internal/connectors/google"
	"github.com/custodia-labs/gcpkit/internal/connectors/google/googletest"
	"github.com/custodia-labs/gcpkit/internal/core/domain"
)

func newTestClient(t *testing.T) (*Client, *googletest.Server, *[]time.Duration) {
	t.Helper()
	srv := googletest.NewServer(t)
	svc, err := google.NewBigQueryService(context.Background(), srv.Config())
	require.NoError(t, err)

	var pauses []time.Duration
	wait := google.WaitConfig{Sleep: func(_ context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return nil
	}}
	return NewClient(svc, srv.Retryer(), wait), srv, &pauses
}

func runningJob(id string) map[string]any {
	return map[string]any{
		"id":           "proj:EU." + id,
		"jobReference": map[string]any{"projectId": "proj", "jobId": id, "location": "EU"},
		"status":       map[string]any{"state": "RUNNING"},
	}
}

func doneJob(id string) map[string]any {
	j := runningJob(id)
	j["status"] = map[string]any{"state": "DONE"}
	j["configuration"] = map[string]any{"jobType": "QUERY", "query": map[string]any{"query": "SELECT 1"}}
	j["statistics"] = map[string]any{
		"creationTime": "1700000000000",
		"endTime":      "1700000003000",
		"query":        map[string]any{"totalBytesProcessed": "1200000"},
	}
	return j
}

func failedJob(id string) map[string]any {
	j := doneJob(id)
	j["status"] = map[string]any{
		"state":       "DONE",
		"errorResult": map[string]any{"reason": "invalidQuery", "message": "Syntax error", "location": "query"},
		"errors": []any{
			map[string]any{"reason": "invalidQuery", "message": "Syntax error", "location": "query"},
		},
	}
	return j
}

func TestListProjects_FollowsPageTokens(t *testing.T) {
	c, srv, _ := newTestClient(t)
	srv.JSONWhen(http.MethodGet, "/projects", func(r *http.Request) bool { return r.URL.Query().Get("pageToken") == "" },
		map[string]any{"projects": []any{map[string]any{"id": "a"}, map[string]any{"id": "b"}}, "nextPageToken": "T1"})
	srv.JSONWhen(http.MethodGet, "/projects", func(r *http.Request) bool { return r.URL.Query().Get("pageToken") == "T1" },
		map[string]any{"projects": []any{map[string]any{"id": "c"}}})

	projects, err := c.ListProjects(domain.ListOptions[*bq.ProjectListProjects]{}).Collect(context.Background())

	require.NoError(t, err)
	require.Len(t, projects, 3)
	assert.Equal(t, "c", projects[2].Id)
	assert.Equal(t, 2, srv.Count(http.MethodGet, "/projects"))
}

func TestListProjects_MaxResultsStopsFetching(t *testing.T) {
	c, srv, _ := newTestClient(t)
	srv.JSON(http.MethodGet, "/projects",
		map[string]any{"projects": []any{map[string]any{"id": "a"}, map[string]any{"id": "b"}}, "nextPageToken": "T1"})

	projects, err := c.ListProjects(domain.ListOptions[*bq.ProjectListProjects]{MaxResults: 1}).Collect(context.Background())

	require.NoError(t, err)
	assert.Len(t, projects, 1)
	assert.Equal(t, 1, srv.Count(http.MethodGet, "/projects"))
}

func TestListJobs_CreatedBeforeBreaks(t *testing.T) {
	c, srv, _ := newTestClient(t)
	cutoff := time.UnixMilli(1700000000000)
	srv.JSON(http.MethodGet, "/projects/proj/jobs", map[string]any{
		"jobs": []any{
			map[string]any{"id": "new", "statistics": map[string]any{"creationTime": "1700000005000"}},
			map[string]any{"id": "old", "statistics": map[string]any{"creationTime": "1690000000000"}},
			map[string]any{"id": "older", "statistics": map[string]any{"creationTime": "1680000000000"}},
		},
		"nextPageToken": "T1",
	})

	jobs, err := c.ListJobs(JobQuery{ProjectID: "proj", States: []string{StateDone}, AllUsers: true},
		domain.ListOptions[*bq.JobListJobs]{Break: CreatedBefore(cutoff)}).Collect(context.Background())

	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "new", jobs[0].Id)
	assert.Equal(t, 1, srv.Count(http.MethodGet, "/projects/proj/jobs"))

	req, ok := srv.Last(http.MethodGet, "/projects/proj/jobs")
	require.True(t, ok)
	assert.Equal(t, []string{"done"}, req.Query["stateFilter"])
	assert.Equal(t, "true", req.Query["allUsers"][0])
}

func TestListTables_Filter(t *testing.T) {
	c, srv, _ := newTestClient(t)
	srv.JSON(http.MethodGet, "/projects/proj/datasets/ds/tables", map[string]any{
		"tables": []any{
			map[string]any{"id": "t1", "type": "TABLE"},
			map[string]any{"id": "v1", "type": "VIEW"},
		},
	})

	views, err := c.ListTables("proj", "ds", domain.ListOptions[*bq.TableListTables]{
		Filter: func(t *bq.TableListTables) bool { return t.Type == TypeView },
	}).Collect(context.Background())

	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "v1", views[0].Id)
}

func TestWaitJob_PollsUntilDone(t *testing.T) {
	c, srv, pauses := newTestClient(t)
	srv.JSON(http.MethodGet, "/jobs/job_1", runningJob("job_1"), runningJob("job_1"), doneJob("job_1"))

	job, err := c.WaitJob(context.Background(), &bq.JobReference{ProjectId: "proj", JobId: "job_1", Location: "EU"})

	require.NoError(t, err)
	assert.Equal(t, "DONE", job.Status.State)
	assert.Equal(t, 3, srv.Count(http.MethodGet, "/jobs/job_1"))
	assert.Equal(t, []time.Duration{time.Second, time.Second}, *pauses)

	req, _ := srv.Last(http.MethodGet, "/jobs/job_1")
	assert.Equal(t, "EU", req.Query["location"][0])
}

func TestWaitJob_ErrorResultIsJobError(t *testing.T) {
	c, srv, _ := newTestClient(t)
	srv.JSON(http.MethodGet, "/jobs/job_1", failedJob("job_1"))

	job, err := c.WaitJob(context.Background(), &bq.JobReference{ProjectId: "proj", JobId: "job_1"})

	require.Error(t, err)
	require.NotNil(t, job)
	var jerr *domain.JobError
	require.ErrorAs(t, err, &jerr)
	assert.Equal(t, "invalidQuery", jerr.Reason)
	assert.Equal(t, "query", jerr.Location)
	assert.Len(t, jerr.Errors, 1)
}

func TestWaitJob_TransportErrorPropagates(t *testing.T) {
	c, srv, _ := newTestClient(t)
	srv.Error(http.MethodGet, "/jobs/missing", http.StatusNotFound, "notFound")

	_, err := c.WaitJob(context.Background(), &bq.JobReference{ProjectId: "proj", JobId: "missing"})

	assert.True(t, domain.IsTransportError(err))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWaitJobs_CapturesEachOutcome(t *testing.T) {
	c, srv, _ := newTestClient(t)
	srv.JSON(http.MethodGet, "/jobs/a", doneJob("a"))
	srv.JSON(http.MethodGet, "/jobs/b", failedJob("b"))
	srv.JSON(http.MethodGet, "/jobs/c", doneJob("c"))

	refs := []*bq.JobReference{
		{ProjectId: "proj", JobId: "a"},
		{ProjectId: "proj", JobId: "b"},
		{ProjectId: "proj", JobId: "c"},
	}
	outcomes := c.WaitJobs(context.Background(), refs)

	require.Len(t, outcomes, 3)
	assert.True(t, outcomes[0].OK())
	assert.True(t, domain.IsJobError(outcomes[1].Err))
	assert.True(t, outcomes[2].OK())
	assert.Same(t, refs[1], outcomes[1].Ref)
}

func TestPollJob(t *testing.T) {
	c, srv, _ := newTestClient(t)
	srv.JSON(http.MethodGet, "/jobs/job_1", runningJob("job_1"), failedJob("job_1"))
	ref := domain.JobRef{ID: "job_1", Service: domain.ServiceBigQuery, ProjectID: "proj", Location: "EU"}

	status, err := c.PollJob(context.Background(), ref)
	require.NoError(t, err)
	assert.False(t, status.Done)
	assert.Equal(t, "RUNNING", status.State)

	status, err = c.PollJob(context.Background(), ref)
	require.NoError(t, err)
	assert.True(t, status.Done)
	require.NotNil(t, status.Failure)
	assert.Equal(t, "invalidQuery", status.Failure.Reason)
	assert.Equal(t, domain.ServiceBigQuery, c.Service())
}

func TestSyncQuery_ReadsAllPages(t *testing.T) {
	c, srv, _ := newTestClient(t)
	srv.JSON(http.MethodPost, "/projects/proj/queries", map[string]any{
		"jobReference": map[string]any{"projectId": "proj", "jobId": "q1"},
	})
	srv.JSON(http.MethodGet, "/jobs/q1", doneJob("q1"))
	srv.JSONWhen(http.MethodGet, "/queries/q1", func(r *http.Request) bool { return r.URL.Query().Get("pageToken") == "" },
		map[string]any{
			"schema":    map[string]any{"fields": []any{map[string]any{"name": "n"}, map[string]any{"name": "s"}}},
			"rows":      []any{map[string]any{"f": []any{map[string]any{"v": "1"}, map[string]any{"v": "a"}}}},
			"totalRows": "2",
			"pageToken": "P2",
		})
	srv.JSONWhen(http.MethodGet, "/queries/q1", func(r *http.Request) bool { return r.URL.Query().Get("pageToken") == "P2" },
		map[string]any{
			"rows":      []any{map[string]any{"f": []any{map[string]any{"v": "2"}, map[string]any{"v": nil}}}},
			"totalRows": "2",
		})

	result, err := c.SyncQuery(context.Background(), "proj", "SELECT n, s FROM t")

	require.NoError(t, err)
	assert.Equal(t, []string{"n", "s"}, result.Header)
	assert.Equal(t, []Row{{"1", "a"}, {"2", nil}}, result.Rows)
	assert.Equal(t, uint64(2), result.TotalRows)
	assert.Equal(t, "q1", result.Job.JobReference.JobId)
	assert.Equal(t, "[BigQuery] Query Job (proj:EU.q1) 2 rows 1.2 MB processed (0 Minutes 3 Seconds)", result.Summary(""))
}

func TestSyncQuery_FailedJobSkipsResults(t *testing.T) {
	c, srv, _ := newTestClient(t)
	srv.JSON(http.MethodPost, "/projects/proj/queries", map[string]any{
		"jobReference": map[string]any{"projectId": "proj", "jobId": "bad"},
	})
	srv.JSON(http.MethodGet, "/jobs/bad", failedJob("bad"))

	result, err := c.SyncQuery(context.Background(), "proj", "SELEC")

	assert.True(t, domain.IsJobError(err))
	require.NotNil(t, result)
	assert.NotNil(t, result.Job)
	assert.Equal(t, 0, srv.Count(http.MethodGet, "/queries/bad"))
}

func TestWriteTable_DeletesExistingView(t *testing.T) {
	c, srv, _ := newTestClient(t)
	srv.JSON(http.MethodGet, "/datasets/ds/tables/out", map[string]any{"id": "proj:ds.out", "type": "VIEW"})
	srv.JSON(http.MethodDelete, "/datasets/ds/tables/out", nil)
	srv.JSON(http.MethodPost, "/projects/proj/jobs", runningJob("w1"))
	srv.JSON(http.MethodGet, "/jobs/w1", doneJob("w1"))

	job, err := c.WriteTable(context.Background(), "proj", "SELECT 1", TableRef{"proj", "ds", "out"}, QueryOptions{})

	require.NoError(t, err)
	assert.Equal(t, "DONE", job.Status.State)
	assert.Equal(t, 1, srv.Count(http.MethodDelete, "/datasets/ds/tables/out"))

	req, _ := srv.Last(http.MethodPost, "/projects/proj/jobs")
	var body bq.Job
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.Equal(t, WriteTruncate, body.Configuration.Query.WriteDisposition)
	assert.Equal(t, "out", body.Configuration.Query.DestinationTable.TableId)
}

func TestWriteTable_MissingTableIsFine(t *testing.T) {
	c, srv, _ := newTestClient(t)
	srv.Error(http.MethodGet, "/datasets/ds/tables/out", http.StatusNotFound, "notFound")
	srv.JSON(http.MethodPost, "/projects/proj/jobs", runningJob("w1"))

	job, err := c.WriteTable(context.Background(), "proj", "SELECT 1", TableRef{"proj", "ds", "out"}, QueryOptions{Async: true})

	require.NoError(t, err)
	assert.Equal(t, "RUNNING", job.Status.State)
	assert.Equal(t, 0, srv.Count(http.MethodDelete, "/datasets/ds/tables/out"))
}

func TestInsertJob_AssignsClientJobID(t *testing.T) {
	c, srv, _ := newTestClient(t)
	srv.Error(http.MethodGet, "/datasets/ds/tables/out", http.StatusNotFound, "notFound")
	srv.JSON(http.MethodPost, "/projects/proj/jobs", runningJob("w1"))

	_, err := c.WriteTable(context.Background(), "proj", "SELECT 1", TableRef{"proj", "ds", "out"}, QueryOptions{Async: true})
	require.NoError(t, err)

	req, _ := srv.Last(http.MethodPost, "/projects/proj/jobs")
	var body bq.Job
	require.NoError(t, json.Unmarshal(req.Body, &body))
	require.NotNil(t, body.JobReference)
	assert.Equal(t, "proj", body.JobReference.ProjectId)
	assert.Regexp(t, `^gcpkit_[0-9a-f-]{36}$`, body.JobReference.JobId)
}

func TestInsertJob_ConflictFetchesExistingJob(t *testing.T) {
	c, srv, _ := newTestClient(t)
	srv.Error(http.MethodGet, "/datasets/ds/tables/out", http.StatusNotFound, "notFound")
	srv.Error(http.MethodPost, "/projects/proj/jobs", http.StatusConflict, "duplicate")
	srv.JSONWhen(http.MethodGet, "", func(r *http.Request) bool {
		return strings.Contains(r.URL.Path, "/jobs/gcpkit_")
	}, runningJob("gcpkit_existing"))

	job, err := c.WriteTable(context.Background(), "proj", "SELECT 1", TableRef{"proj", "ds", "out"}, QueryOptions{Async: true})

	require.NoError(t, err)
	assert.Equal(t, "gcpkit_existing", job.JobReference.JobId)
	assert.Equal(t, 1, srv.Count(http.MethodPost, "/projects/proj/jobs"))
}

func TestWriteView_ConflictOverwrites(t *testing.T) {
	c, srv, _ := newTestClient(t)
	srv.Sequence(http.MethodPost, "/datasets/ds/tables",
		[]int{http.StatusConflict, http.StatusOK},
		[]any{googletest.ErrorBody(http.StatusConflict, "duplicate"), map[string]any{"id": "proj:ds.v", "type": "VIEW"}})
	srv.JSON(http.MethodDelete, "/datasets/ds/tables/v", nil)

	table, err := c.WriteView(context.Background(), "SELECT 1", TableRef{"proj", "ds", "v"}, nil, true)

	require.NoError(t, err)
	assert.Equal(t, "VIEW", table.Type)
	assert.Equal(t, 1, srv.Count(http.MethodDelete, "/datasets/ds/tables/v"))
	assert.Equal(t, 2, srv.Count(http.MethodPost, "/datasets/ds/tables"))
}

func TestWriteView_ConflictWithoutOverwrite(t *testing.T) {
	c, srv, _ := newTestClient(t)
	srv.Error(http.MethodPost, "/datasets/ds/tables", http.StatusConflict, "duplicate")

	_, err := c.WriteView(context.Background(), "SELECT 1", TableRef{"proj", "ds", "v"}, nil, false)

	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	assert.Equal(t, 0, srv.Count(http.MethodDelete, "/datasets/ds/tables/v"))
}

func TestCopyTable_ValidatesSources(t *testing.T) {
	c, srv, _ := newTestClient(t)

	_, err := c.CopyTable(context.Background(), []TableRef{{ProjectID: "proj", DatasetID: "ds"}}, TableRef{"proj", "ds", "dst"}, CopyOptions{})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, srv.Requests())
}

func TestLoadFromGCS_DefaultsSkipLeadingRows(t *testing.T) {
	c, srv, _ := newTestClient(t)
	srv.JSON(http.MethodPost, "/projects/proj/jobs", runningJob("l1"))

	_, err := c.LoadFromGCS(context.Background(), TableRef{"proj", "ds", "t"}, nil, []string{"gs://b/o.csv"}, LoadOptions{Async: true})
	require.NoError(t, err)

	req, _ := srv.Last(http.MethodPost, "/projects/proj/jobs")
	var body bq.Job
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.Equal(t, int64(1), body.Configuration.Load.SkipLeadingRows)
	assert.Equal(t, []string{"gs://b/o.csv"}, body.Configuration.Load.SourceUris)
}

func TestUpdateTableInfo_RejectsUnknownField(t *testing.T) {
	c, srv, _ := newTestClient(t)
	srv.JSON(http.MethodGet, "/datasets/ds/tables/t", map[string]any{
		"id":     "proj:ds.t",
		"schema": map[string]any{"fields": []any{map[string]any{"name": "id", "type": "INTEGER"}}},
	})

	_, err := c.UpdateTableInfo(context.Background(), TableRef{"proj", "ds", "t"}, nil,
		[]*bq.TableFieldSchema{{Name: "missing", Description: "x"}})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, 0, srv.Count(http.MethodPatch, "/datasets/ds/tables/t"))
}

func TestUpdateTableInfo_MergesFields(t *testing.T) {
	c, srv, _ := newTestClient(t)
	srv.JSON(http.MethodGet, "/datasets/ds/tables/t", map[string]any{
		"id": "proj:ds.t",
		"schema": map[string]any{"fields": []any{
			map[string]any{"name": "id", "type": "INTEGER"},
			map[string]any{"name": "name", "type": "STRING"},
		}},
	})
	srv.JSON(http.MethodPatch, "/datasets/ds/tables/t", map[string]any{"id": "proj:ds.t"})

	desc := "people"
	_, err := c.UpdateTableInfo(context.Background(), TableRef{"proj", "ds", "t"}, &desc,
		[]*bq.TableFieldSchema{{Name: "name", Description: "full name"}})
	require.NoError(t, err)

	req, _ := srv.Last(http.MethodPatch, "/datasets/ds/tables/t")
	var body bq.Table
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.Equal(t, "people", body.Description)
	require.Len(t, body.Schema.Fields, 2)
	assert.Equal(t, "full name", body.Schema.Fields[1].Description)
	assert.Equal(t, "STRING", body.Schema.Fields[1].Type)
}

func TestParseTableRef(t *testing.T) {
	tests := []struct {
		in      string
		want    TableRef
		wantErr bool
	}{
		{in: "proj:ds.t", want: TableRef{"proj", "ds", "t"}},
		{in: "proj.ds.t", want: TableRef{"proj", "ds", "t"}},
		{in: "proj:ds", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTableRef(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "proj:ds.t", got.String())
		})
	}
}

func TestTableSchema(t *testing.T) {
	fields, err := TableSchema("id:INTEGER", "name:STRING")
	require.NoError(t, err)
	assert.Equal(t, "INTEGER", fields[0].Type)

	_, err = TableSchema("broken")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSummaries(t *testing.T) {
	job := &bq.Job{
		Id:            "proj:EU.l1",
		Configuration: &bq.JobConfiguration{Load: &bq.JobConfigurationLoad{}},
		Statistics: &bq.JobStatistics{
			CreationTime: 1700000000000,
			EndTime:      1700000065000,
			Load:         &bq.JobStatistics3{InputFileBytes: 2000, OutputRows: 10},
		},
	}
	assert.Equal(t, "[BigQuery] Nightly Load Load Job (proj:EU.l1) 10 rows 2.0 kB processed (1 Minutes 5 Seconds)",
		JobSummary(job, "nightly load"))

	table := &bq.Table{Id: "proj:ds.t", Type: "TABLE", NumRows: 100, NumBytes: 1200}
	assert.Equal(t, "[BigQuery] Table (proj:ds.t) 100 rows (1.2 kB)", TableSummary(table, ""))
}

func TestReadSQL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.sql")
	require.NoError(t, os.WriteFile(path, []byte("SELECT * FROM {table} WHERE d = '{date}'"), 0o600))

	got, err := ReadSQL(path, map[string]string{"table": "ds.t", "date": "2024-01-01"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM ds.t WHERE d = '2024-01-01'", got)

	raw, err := ReadSQL(path, nil)
	require.NoError(t, err)
	assert.Contains(t, raw, "{table}")

	_, err = ReadSQL(path, map[string]string{"table": "ds.t"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
