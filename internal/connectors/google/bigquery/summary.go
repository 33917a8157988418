package bigquery

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	bq "google.golang.org/api/bigquery/v2"

	"github.com/custodia-labs/gcpkit/internal/connectors/google"
	"github.com/custodia-labs/gcpkit/internal/core/domain"
)

// JobSummary describes a job in one line, e.g.
// "[BigQuery] Nightly Load Job (proj:EU.job_1) 120 rows 1.2 MB processed (0 Minutes 3 Seconds)".
// Query jobs carry no row count of their own; use QueryResult.Summary for that.
func JobSummary(job *bq.Job, description string) string {
	rows, ok := int64(0), false
	if job != nil && job.Statistics != nil && job.Statistics.Load != nil {
		rows, ok = job.Statistics.Load.OutputRows, true
	}
	return summarizeJob(job, description, rows, ok)
}

func summarizeJob(job *bq.Job, description string, rows int64, hasRows bool) string {
	if job == nil {
		return "[BigQuery] unknown job"
	}

	var b strings.Builder
	b.WriteString("[BigQuery] ")
	if d := google.Title(description); d != "" {
		b.WriteString(d + " ")
	}
	fmt.Fprintf(&b, "%s Job (%s) ", google.Title(jobType(job)), job.Id)

	if hasRows {
		fmt.Fprintf(&b, "%d rows ", rows)
	}
	if size, ok := processedBytes(job); ok {
		fmt.Fprintf(&b, "%s processed ", google.Size(uint64(size)))
	}
	if st := job.Statistics; st != nil && st.CreationTime > 0 && st.EndTime > 0 {
		fmt.Fprintf(&b, "(%s)", google.Elapsed(time.Duration(st.EndTime-st.CreationTime)*time.Millisecond))
	}
	return strings.TrimSpace(b.String())
}

func jobType(job *bq.Job) string {
	cfg := job.Configuration
	switch {
	case cfg == nil:
		return "unknown"
	case cfg.JobType != "":
		return cfg.JobType
	case cfg.Query != nil:
		return "query"
	case cfg.Load != nil:
		return "load"
	case cfg.Extract != nil:
		return "extract"
	case cfg.Copy != nil:
		return "copy"
	}
	return "unknown"
}

func processedBytes(job *bq.Job) (int64, bool) {
	st := job.Statistics
	if st == nil {
		return 0, false
	}
	switch {
	case st.Load != nil:
		return st.Load.InputFileBytes, true
	case st.Query != nil:
		return st.Query.TotalBytesProcessed, true
	}
	return 0, false
}

// TableSummary describes a table in one line, e.g.
// "[BigQuery] Table (proj:ds.t) 100 rows (1.2 kB)".
func TableSummary(table *bq.Table, description string) string {
	var b strings.Builder
	b.WriteString("[BigQuery] ")
	if d := google.Title(description); d != "" {
		b.WriteString(d + " ")
	}
	fmt.Fprintf(&b, "%s (%s) ", google.Title(orDefault(table.Type, TypeTable)), table.Id)
	if table.NumRows > 0 || table.NumBytes > 0 {
		fmt.Fprintf(&b, "%d rows ", table.NumRows)
		fmt.Fprintf(&b, "(%s)", google.Size(uint64(table.NumBytes)))
	}
	return strings.TrimSpace(b.String())
}

var placeholder = regexp.MustCompile(`\{(\w+)\}`)

// ReadSQL reads a query from path and replaces each {key} with vars[key].
// With no vars the file is returned unchanged. A placeholder with no value
// is an error.
func ReadSQL(path string, vars map[string]string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read sql: %w", err)
	}
	if len(vars) == 0 {
		return string(data), nil
	}

	var missing []string
	out := placeholder.ReplaceAllStringFunc(string(data), func(m string) string {
		key := m[1 : len(m)-1]
		v, ok := vars[key]
		if !ok {
			missing = append(missing, key)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", domain.Invalid("no value for sql placeholder(s) %s", strings.Join(missing, ", "))
	}
	return out, nil
}
