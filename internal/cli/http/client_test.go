package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSendsBodyAndHeaders(t *testing.T) {
	var gotBody, gotRequestID, gotCustom string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		gotRequestID = r.Header.Get(requestIDHeader)
		gotCustom = r.Header.Get("X-Custom")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer server.Close()

	client := New(server.URL, time.Second)
	info, err := client.Do(context.Background(), http.MethodPost, "/api/v1/problems", map[string]string{"X-Custom": "yes", "X-Empty": ""}, []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, info.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(info.Body))
	assert.Equal(t, `{"a":1}`, gotBody)
	assert.NotEmpty(t, gotRequestID)
	assert.Equal(t, "yes", gotCustom)
}

func TestDoHonoursTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := New(server.URL, time.Second)
	client.SetTimeout(20 * time.Millisecond)
	_, err := client.Do(context.Background(), http.MethodGet, "/slow", nil, nil)
	assert.ErrorContains(t, err, "request failed")
}

func TestSetBaseURL(t *testing.T) {
	client := New("http://a", time.Second)
	client.SetBaseURL("http://b")
	client.SetTimeout(0)
	assert.Equal(t, "http://b", client.BaseURL())
	assert.Equal(t, time.Second, client.timeout)

	_, err := client.Do(context.Background(), http.MethodGet, "/\x7f", nil, nil)
	assert.ErrorContains(t, err, "build request failed")
}
