package state

import (
	"os"
	"path/filepath"
	"testing"

	pkgrepo "switchdesk/pkg/repository"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	want := ViewState{
		Search:   "ucell",
		Sort:     []pkgrepo.SortField{{Column: "start_date", Direction: pkgrepo.SortDesc}},
		PageSize: 25,
	}
	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("state mismatch (-want +got):\n%s", diff)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoadMissingOrEmpty(t *testing.T) {
	dir := t.TempDir()
	st, err := Load(filepath.Join(dir, "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, ViewState{}, st)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o600))
	st, err = Load(empty)
	require.NoError(t, err)
	assert.Equal(t, ViewState{}, st)
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, Save(path, ViewState{PageSize: 10}))
	require.NoError(t, Clear(path))
	require.NoError(t, Clear(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
