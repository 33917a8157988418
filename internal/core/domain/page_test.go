package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordPage(t *testing.T) {
	tests := []struct {
		name      string
		resp      Record
		keys      PageKeys
		wantItems int
		wantToken string
	}{
		{
			name: "items and default token",
			resp: Record{
				"datasets":      []any{map[string]any{"id": "a"}, map[string]any{"id": "b"}},
				"nextPageToken": "T1",
			},
			keys:      PageKeys{Items: "datasets"},
			wantItems: 2,
			wantToken: "T1",
		},
		{
			name:      "missing items key yields empty page",
			resp:      Record{"kind": "bigquery#datasetList"},
			keys:      PageKeys{Items: "datasets"},
			wantItems: 0,
		},
		{
			name: "custom token key",
			resp: Record{
				"rows":      []any{map[string]any{"f": []any{}}},
				"pageToken": "P2",
			},
			keys:      PageKeys{Items: "rows", Token: "pageToken"},
			wantItems: 1,
			wantToken: "P2",
		},
		{
			name:      "non-object items are skipped",
			resp:      Record{"items": []any{"x", map[string]any{"id": 1}, 3.0}},
			keys:      PageKeys{Items: "items"},
			wantItems: 1,
		},
		{
			name:      "items of wrong type",
			resp:      Record{"items": "nope", "nextPageToken": "T"},
			keys:      PageKeys{Items: "items"},
			wantItems: 0,
			wantToken: "T",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := RecordPage(tt.resp, tt.keys)
			assert.Len(t, page.Items, tt.wantItems)
			assert.Equal(t, tt.wantToken, page.NextPageToken)
			assert.Equal(t, tt.wantToken == "", page.Last())
		})
	}
}

func TestRecordPage_PreservesOrder(t *testing.T) {
	resp := Record{"items": []any{
		map[string]any{"n": "A"},
		map[string]any{"n": "B"},
		map[string]any{"n": "C"},
	}}

	page := RecordPage(resp, PageKeys{Items: "items"})

	require.Len(t, page.Items, 3)
	assert.Equal(t, "A", page.Items[0]["n"])
	assert.Equal(t, "C", page.Items[2]["n"])
}

func TestListOptions_Limited(t *testing.T) {
	assert.False(t, ListOptions[int]{}.Limited())
	assert.False(t, ListOptions[int]{MaxResults: -1}.Limited())
	assert.True(t, ListOptions[int]{MaxResults: 5}.Limited())
}

func TestJobRef_String_Locations(t *testing.T) {
	assert.Equal(t, "bigquery:proj/EU/job_1",
		JobRef{ID: "job_1", Service: ServiceBigQuery, ProjectID: "proj", Location: "EU"}.String())
	assert.Equal(t, "compute:proj/op-9",
		JobRef{ID: "op-9", Service: ServiceCompute, ProjectID: "proj"}.String())
}

func TestService_IsValid_JobServices(t *testing.T) {
	assert.True(t, ServiceBigQuery.IsValid())
	assert.True(t, ServiceDataprocJob.IsValid())
	assert.False(t, Service("gmail").IsValid())
}
