package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/gcpkit/internal/core/domain"
)

func TestRawList(t *testing.T) {
	m := &mockRawLister{records: []domain.Record{{"name": "a"}, {"name": "b"}}}
	withServices(t, Services{Raw: m})

	out, err := execute(t, "raw", "list", "projects/p/zones",
		"--service", "compute", "--items", "items",
		"--param", "filter=status=UP", "--param", "maxResults=10", "-n", "5")

	require.NoError(t, err)
	assert.Equal(t, "compute", m.got.Service)
	assert.Equal(t, "projects/p/zones", m.got.URL)
	assert.Equal(t, domain.PageKeys{Items: "items", Token: domain.DefaultTokenKey}, m.got.Keys)
	assert.Equal(t, []string{"status=UP"}, m.got.Params["filter"])
	assert.Equal(t, []string{"10"}, m.got.Params["maxResults"])
	assert.Equal(t, 5, m.got.MaxResults)
	assert.Contains(t, out, `"name": "a"`)
	assert.Contains(t, out, `"name": "b"`)
}

func TestRawList_Defaults(t *testing.T) {
	m := &mockRawLister{}
	withServices(t, Services{Raw: m})

	out, err := execute(t, "raw", "list", "b", "--items", "items")

	require.NoError(t, err)
	assert.Equal(t, "storage", m.got.Service)
	assert.Empty(t, m.got.TokenParam)
	assert.Zero(t, m.got.MaxResults)
	assert.Contains(t, out, "[]")
}

func TestRawList_RequiresItemsKey(t *testing.T) {
	withServices(t, Services{Raw: &mockRawLister{}})

	_, err := execute(t, "raw", "list", "b")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "items")
}

func TestRawList_BadParam(t *testing.T) {
	withServices(t, Services{Raw: &mockRawLister{}})

	_, err := execute(t, "raw", "list", "b", "--items", "items", "--param", "novalue")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRawList_ListerError(t *testing.T) {
	withServices(t, Services{Raw: &mockRawLister{err: errors.New("boom")}})

	_, err := execute(t, "raw", "list", "b", "--items", "items")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "list b: boom")
}

func TestRawList_NotConfigured(t *testing.T) {
	withServices(t, Services{})

	_, err := execute(t, "raw", "list", "b", "--items", "items")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "raw lister not configured")
}
