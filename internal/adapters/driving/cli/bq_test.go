package cli

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/gcpkit/internal/core/domain"
)

func bqJob(id, state string) map[string]any {
	return map[string]any{
		"id":            "proj:EU." + id,
		"jobReference":  map[string]any{"projectId": "proj", "jobId": id, "location": "EU"},
		"status":        map[string]any{"state": state},
		"configuration": map[string]any{"jobType": "QUERY"},
		"statistics":    map[string]any{"creationTime": "1700000000000", "endTime": "1700000003000"},
	}
}

func TestBQProjects(t *testing.T) {
	srv := withFakeGoogle(t)
	srv.JSON(http.MethodGet, "/projects", map[string]any{
		"projects": []any{
			map[string]any{"id": "p1", "friendlyName": "First", "numericId": "11", "projectReference": map[string]any{"projectId": "p1"}},
			map[string]any{"id": "p2", "friendlyName": "Second", "numericId": "22"},
		},
	})

	out, err := execute(t, "bq", "projects")

	require.NoError(t, err)
	assert.Contains(t, out, "First")
	assert.Contains(t, out, "p2")
	assert.Contains(t, out, "22")
}

func TestBQTables(t *testing.T) {
	srv := withFakeGoogle(t)
	srv.JSON(http.MethodGet, "/projects/proj/datasets/ds/tables", map[string]any{
		"tables": []any{
			map[string]any{"tableReference": map[string]any{"projectId": "proj", "datasetId": "ds", "tableId": "events"}, "type": "TABLE"},
		},
	})

	out, err := execute(t, "bq", "tables", "ds")

	require.NoError(t, err)
	assert.Contains(t, out, "events")
	assert.Contains(t, out, "TABLE")
}

func TestBQDatasets_RequiresProject(t *testing.T) {
	withFakeGoogle(t)
	withServices(t, Services{Settings: &mockSettingsService{settings: domain.DefaultAppSettings()}, Clients: clients})

	_, err := execute(t, "bq", "datasets")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no project")
}

func TestBQJobs_Before(t *testing.T) {
	srv := withFakeGoogle(t)
	srv.JSON(http.MethodGet, "/projects/proj/jobs", map[string]any{
		"jobs": []any{
			map[string]any{"jobReference": map[string]any{"jobId": "new"}, "state": "DONE", "statistics": map[string]any{"creationTime": "1700000100000"}},
			map[string]any{"jobReference": map[string]any{"jobId": "old"}, "state": "DONE", "statistics": map[string]any{"creationTime": "1600000000000"}},
		},
		"nextPageToken": "more",
	})

	out, err := execute(t, "bq", "jobs", "--before", "2023-11-14T00:00:00Z")

	require.NoError(t, err)
	assert.Contains(t, out, "new")
	assert.NotContains(t, out, "old")
	assert.Equal(t, 1, srv.Count(http.MethodGet, "/projects/proj/jobs"))
}

func TestBQJobs_BadBefore(t *testing.T) {
	withFakeGoogle(t)

	_, err := execute(t, "bq", "jobs", "--before", "yesterday")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBQQuery(t *testing.T) {
	srv := withFakeGoogle(t)
	srv.JSON(http.MethodPost, "/projects/proj/queries", map[string]any{
		"jobReference": map[string]any{"projectId": "proj", "jobId": "q1", "location": "EU"},
	})
	srv.JSON(http.MethodGet, "/jobs/q1", bqJob("q1", "DONE"))
	srv.JSON(http.MethodGet, "/queries/q1", map[string]any{
		"schema":    map[string]any{"fields": []any{map[string]any{"name": "word"}, map[string]any{"name": "n"}}},
		"rows":      []any{map[string]any{"f": []any{map[string]any{"v": "hello"}, map[string]any{"v": "3"}}}},
		"totalRows": "1",
	})

	out, err := execute(t, "bq", "query", "SELECT word, n FROM t")

	require.NoError(t, err)
	assert.Contains(t, out, "word")
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "[BigQuery] Query Job")

	req, ok := srv.Last(http.MethodPost, "/projects/proj/queries")
	require.True(t, ok)
	assert.Contains(t, string(req.Body), "SELECT word, n FROM t")
}

func TestBQQuery_FromFile(t *testing.T) {
	srv := withFakeGoogle(t)
	srv.JSON(http.MethodPost, "/projects/proj/queries", map[string]any{
		"jobReference": map[string]any{"projectId": "proj", "jobId": "q2"},
	})
	srv.JSON(http.MethodGet, "/jobs/q2", bqJob("q2", "DONE"))
	srv.JSON(http.MethodGet, "/queries/q2", map[string]any{"totalRows": "0"})

	path := filepath.Join(t.TempDir(), "q.sql")
	require.NoError(t, os.WriteFile(path, []byte("SELECT * FROM {table}"), 0o600))

	_, err := execute(t, "bq", "query", "--file", path, "--var", "table=ds.events")

	require.NoError(t, err)
	req, ok := srv.Last(http.MethodPost, "/projects/proj/queries")
	require.True(t, ok)
	assert.Contains(t, string(req.Body), "SELECT * FROM ds.events")
}

func TestBQQuery_NoQuery(t *testing.T) {
	withFakeGoogle(t)

	_, err := execute(t, "bq", "query")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBQWait(t *testing.T) {
	srv := withFakeGoogle(t)
	srv.JSON(http.MethodGet, "/jobs/job_1", bqJob("job_1", "DONE"))

	out, err := execute(t, "bq", "wait", "job_1", "--location", "EU")

	require.NoError(t, err)
	assert.Contains(t, out, "[BigQuery] Query Job (proj:EU.job_1)")
	req, ok := srv.Last(http.MethodGet, "/jobs/job_1")
	require.True(t, ok)
	assert.Equal(t, []string{"EU"}, req.Query["location"])
}

func TestBQWait_JobFailure(t *testing.T) {
	srv := withFakeGoogle(t)
	failed := bqJob("bad", "DONE")
	failed["status"] = map[string]any{
		"state":       "DONE",
		"errorResult": map[string]any{"reason": "invalidQuery", "message": "Syntax error"},
	}
	srv.JSON(http.MethodGet, "/jobs/bad", failed)

	out, err := execute(t, "bq", "wait", "bad")

	require.Error(t, err)
	assert.True(t, domain.IsJobError(err))
	assert.Contains(t, out, "bad")
}

func TestBQWait_NotFound(t *testing.T) {
	srv := withFakeGoogle(t)
	srv.Error(http.MethodGet, "/jobs/missing", http.StatusNotFound, "notFound")

	_, err := execute(t, "bq", "wait", "missing")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMillis(t *testing.T) {
	assert.Equal(t, "", millis(0))
	assert.Equal(t, "2023-11-14T22:13:20Z", millis(1700000000000))
}
