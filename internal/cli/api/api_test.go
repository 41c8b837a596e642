package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpclient "switchdesk/internal/cli/http"
	"switchdesk/internal/problem/model"
	pkgrepo "switchdesk/pkg/repository"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(httpclient.New(server.URL, time.Second))
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestQueryEncodesParams(t *testing.T) {
	var got *http.Request
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		writeJSON(w, http.StatusOK, `{"success":true,"code":10000,"message":"Success",
			"data":{"items":[{"id":21,"operator":"Ucell"}],"total":25,"page":2,"page_size":10,"total_pages":3}}`)
	})

	result := client.Query(context.Background(), QueryParams{
		Search:   "ucell",
		Sort:     []pkgrepo.SortField{{Column: "operator", Direction: pkgrepo.SortDesc}},
		Page:     2,
		PageSize: 10,
	})
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "/api/v1/problems/query", got.URL.Path)
	assert.Equal(t, "ucell", got.URL.Query().Get("search"))
	assert.Equal(t, "operator:desc", got.URL.Query().Get("sort"))
	assert.Equal(t, "2", got.URL.Query().Get("page"))
	assert.NotEmpty(t, got.Header.Get("X-Request-Id"))

	assert.Equal(t, int64(25), result.Data.Total)
	assert.Equal(t, 3, result.Data.TotalPages)
	require.Len(t, result.Data.Items, 1)
	assert.Equal(t, int64(21), result.Data.Items[0].ID)
}

func TestFailureKeepsEmptyDefault(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"success":false,"code":12100,"message":"Failed to list operators","data":[]}`)
	})

	ops := client.Operators(context.Background())
	assert.False(t, ops.Success)
	assert.Equal(t, "Failed to list operators", ops.Error)
	assert.Equal(t, []string{}, ops.Data)

	aggs := client.Aggregates(context.Background())
	assert.False(t, aggs.Success)
	if diff := cmp.Diff(model.EmptyAggregates(), aggs.Data); diff != "" {
		t.Fatalf("aggregates mismatch (-want +got):\n%s", diff)
	}

	page := client.Query(context.Background(), QueryParams{PageSize: 10})
	assert.False(t, page.Success)
	assert.NotNil(t, page.Data.Items)
}

func TestTransportFailure(t *testing.T) {
	client := New(httpclient.New("http://127.0.0.1:1", 200*time.Millisecond))

	result := client.Commutators(context.Background(), "Ucell")
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, []string{}, result.Data)
}

func TestCreateCarriesFieldErrors(t *testing.T) {
	var body map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusBadRequest, `{"success":false,"code":10300,"message":"Validation failed: operator",
			"details":{"fields":{"operator":"operator is required"}}}`)
	})

	result := client.Create(context.Background(), CreateRequest{Commutator: "101", StartDate: "2024-05-01"})
	assert.False(t, result.Success)
	assert.Equal(t, "operator is required", result.Fields["operator"])
	assert.Equal(t, "101", body["commutator"])
	assert.NotContains(t, body, "note")
}

func TestCommutatorsEscapesOperator(t *testing.T) {
	var raw string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw = r.URL.Query().Get("operator")
		writeJSON(w, http.StatusOK, `{"success":true,"code":10000,"data":["7"]}`)
	})

	result := client.Commutators(context.Background(), "A&B Mobile")
	require.True(t, result.Success)
	assert.Equal(t, "A&B Mobile", raw)
	assert.Equal(t, []string{"7"}, result.Data)
}
