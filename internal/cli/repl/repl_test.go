package repl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"switchdesk/internal/cli/api"
	"switchdesk/internal/cli/command"
	"switchdesk/internal/cli/form"
	"switchdesk/internal/cli/grid"
	httpclient "switchdesk/internal/cli/http"
	"switchdesk/internal/cli/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedReader struct {
	lines   []string
	prompts []string
}

func (r *scriptedReader) Readline() (string, error) {
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func (r *scriptedReader) SetPrompt(prompt string) {
	r.prompts = append(r.prompts, prompt)
}

// fakeBackend answers the problem endpoints from a fixed data set.
type fakeBackend struct {
	mu      sync.Mutex
	created []map[string]string
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ok := func(data string) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"success":true,"code":10000,"message":"Success","data":%s}`, data)
	}
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/problems":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.created = append(b.created, body)
		b.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		ok(`{"id":26,"operator":"Ucell","commutator":"101"}`)
	case r.URL.Path == "/api/v1/problems/query":
		search := r.URL.Query().Get("search")
		ok(fmt.Sprintf(`{"items":[{"id":1,"operator":"Ucell","commutator":"101","product_id":"P-1","status":"active","note":%q}],
			"total":25,"page":%s,"page_size":10,"total_pages":3}`, search, r.URL.Query().Get("page")))
	case r.URL.Path == "/api/v1/problems/aggregates":
		ok(`{"operator":[{"name":"Ucell","count":25}],"commutator":[{"name":"101","count":25}]}`)
	case r.URL.Path == "/api/v1/problems/operators":
		ok(`["Beeline","Ucell"]`)
	case r.URL.Path == "/api/v1/problems/commutators":
		if r.URL.Query().Get("operator") == "Ucell" {
			ok(`["101","102"]`)
			return
		}
		ok(`[]`)
	case r.URL.Path == "/api/v1/problems/1":
		ok(`{"id":1,"operator":"Ucell"}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"success":false,"code":12000,"message":"Problem not found","data":null}`)
	}
}

func newTestSession(t *testing.T) (*Session, *strings.Builder, *fakeBackend, string) {
	t.Helper()
	backend := &fakeBackend{}
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	client := httpclient.New(server.URL, time.Second)
	problems := api.New(client)
	controller := grid.NewController(context.Background(), problems, grid.Options{PageSize: 10, Debounce: 10 * time.Millisecond})
	t.Cleanup(controller.Close)

	out := &strings.Builder{}
	statePath := filepath.Join(t.TempDir(), "state.json")
	session := New(Options{
		Client:    client,
		Commands:  command.Registry(),
		Grid:      controller,
		Form:      form.New(problems, problems),
		View:      &state.ViewState{},
		StatePath: statePath,
		Out:       out,
	})
	return session, out, backend, statePath
}

func TestViewCommands(t *testing.T) {
	session, out, _, statePath := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, session.Execute(ctx, `search "ucell 101"`))
	assert.Contains(t, out.String(), `search: "ucell 101"`)
	assert.Contains(t, out.String(), "1 - 10 of 25")

	out.Reset()
	require.NoError(t, session.Execute(ctx, "page 3"))
	assert.Contains(t, out.String(), "21 - 25 of 25")
	assert.Contains(t, out.String(), "[3]")

	require.NoError(t, session.Execute(ctx, "sort start_date:desc operator"))
	require.NoError(t, session.Execute(ctx, "size 25"))
	assert.Equal(t, 0, session.grid.Snapshot().Page.PageIndex)

	saved, err := state.Load(statePath)
	require.NoError(t, err)
	assert.Equal(t, "ucell 101", saved.Search)
	assert.Equal(t, 25, saved.PageSize)
	assert.Len(t, saved.Sort, 2)

	assert.Error(t, session.Execute(ctx, "page 0"))
	assert.Error(t, session.Execute(ctx, "sort operator:sideways"))
}

func TestChartCommand(t *testing.T) {
	session, out, _, _ := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, session.Execute(ctx, "view"))
	out.Reset()
	require.NoError(t, session.Execute(ctx, "chart"))
	assert.Contains(t, out.String(), "By operator")
	assert.Contains(t, out.String(), "Ucell")
}

func TestRawCommands(t *testing.T) {
	session, out, _, _ := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, session.Execute(ctx, "problem get id=1"))
	assert.Contains(t, out.String(), "HTTP 200")

	out.Reset()
	require.NoError(t, session.Execute(ctx, "problem get id=9"))
	assert.Contains(t, out.String(), "HTTP 404")

	assert.EqualError(t, session.Execute(ctx, "problem explode"), "unknown command: problem explode")
	assert.EqualError(t, session.Execute(ctx, "problem get 1"), "invalid param: 1")
	assert.EqualError(t, session.Execute(ctx, "problem commutators"), "operator is required")
}

func TestPromptMissingUsesReader(t *testing.T) {
	session, out, _, _ := newTestSession(t)
	session.in = &scriptedReader{lines: []string{"1"}}

	require.NoError(t, session.Execute(context.Background(), "problem get"))
	assert.Contains(t, out.String(), "HTTP 200")
}

func TestNewFormReconcilesCommutator(t *testing.T) {
	session, out, backend, _ := newTestSession(t)
	reader := &scriptedReader{lines: []string{
		"Ucell",      // operator
		"",           // commutator keeps the first option
		"P-7",        // product_id
		"2024-05-01", // start_date
		"", "", "", "",
	}}
	session.in = reader

	require.NoError(t, session.Execute(context.Background(), "new"))
	assert.Contains(t, out.String(), "created problem 26")
	require.Len(t, backend.created, 1)
	assert.Equal(t, "101", backend.created[0]["commutator"])
	assert.Equal(t, "P-7", backend.created[0]["product_id"])
	assert.Contains(t, reader.prompts, "commutator [101, 102] (101): ")
	assert.Equal(t, defaultPrompt, reader.prompts[len(reader.prompts)-1])
}

func TestSystemCommands(t *testing.T) {
	session, out, _, _ := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, session.Execute(ctx, "help"))
	assert.Contains(t, out.String(), "problem aggregates")

	require.NoError(t, session.Execute(ctx, "set timeout 3s"))
	assert.Error(t, session.Execute(ctx, "set timeout soon"))
	require.NoError(t, session.Execute(ctx, "show view"))

	assert.ErrorIs(t, session.Execute(ctx, "exit"), errExit)
	assert.EqualError(t, session.Execute(ctx, "dance"), "unknown command: dance")
}

func TestOnKeyDebouncesWhileLive(t *testing.T) {
	session, _, _, _ := newTestSession(t)

	session.onKey([]rune("Uc"), 2, 'c')
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, "", session.grid.Snapshot().SearchText)

	session.live.Store(true)
	for _, text := range []string{"U", "Uc", "Uce"} {
		session.onKey([]rune(text), len(text), rune(text[len(text)-1]))
	}
	require.Eventually(t, func() bool {
		return session.grid.Snapshot().Search == "Uce"
	}, time.Second, 5*time.Millisecond)
}
