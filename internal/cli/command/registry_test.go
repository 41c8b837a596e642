package command

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCreateRequest(t *testing.T) {
	cmd := Registry()["problem create"]
	params := Params{}
	params.Set("operator", "Ucell")
	params.Set("commutator", "101")
	params.Set("product", "P-1")
	params.Set("start", "2024-05-01")

	req, err := BuildRequest(cmd, params)
	require.NoError(t, err)
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "/api/v1/problems", req.Path)

	var body map[string]string
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.Equal(t, map[string]string{
		"operator":   "Ucell",
		"commutator": "101",
		"product_id": "P-1",
		"start_date": "2024-05-01",
	}, body)
}

func TestBuildRequestValidation(t *testing.T) {
	commands := Registry()

	_, err := BuildRequest(commands["problem create"], Params{"operator": "Ucell"})
	assert.EqualError(t, err, "commutator is required")

	_, err = BuildRequest(commands["problem get"], Params{"id": "abc"})
	assert.Error(t, err)

	_, err = BuildRequest(commands["problem query"], Params{"page": "two"})
	assert.Error(t, err)
}

func TestBuildQueryRequests(t *testing.T) {
	commands := Registry()

	req, err := BuildRequest(commands["problem get"], Params{"id": "42"})
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/problems/42", req.Path)
	assert.Nil(t, req.Body)

	req, err = BuildRequest(commands["problem query"], Params{"q": "ucell", "size": "25", "sort": "operator:desc"})
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/problems/query?page_size=25&search=ucell&sort=operator%3Adesc", req.Path)

	req, err = BuildRequest(commands["problem commutators"], Params{"operator": "A&B"})
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/problems/commutators?operator=A%26B", req.Path)
}

func TestSortedKeys(t *testing.T) {
	keys := SortedKeys(Registry())
	assert.Equal(t, "problem aggregates", keys[0])
	assert.Equal(t, "system health", keys[len(keys)-1])
}
