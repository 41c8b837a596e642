package repository_test

import (
	"errors"
	"math"
	"testing"

	"switchdesk/pkg/repository"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSort(t *testing.T) {
	fields, err := repository.ParseSort("operator:desc, id ,created_at:ASC")
	require.NoError(t, err)

	want := []repository.SortField{
		{Column: "operator", Direction: repository.SortDesc},
		{Column: "id", Direction: repository.SortAsc},
		{Column: "created_at", Direction: repository.SortAsc},
	}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Errorf("ParseSort() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "operator:desc,id:asc,created_at:asc", repository.FormatSort(fields))

	_, err = repository.ParseSort("id:sideways")
	assert.True(t, errors.Is(err, repository.ErrInvalidInput))

	fields, err = repository.ParseSort("   ")
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestPageCount(t *testing.T) {
	cases := []struct {
		total    int64
		size     int
		expected int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 10, 3},
		{25, 0, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, repository.PageCount(tc.total, tc.size), "total=%d size=%d", tc.total, tc.size)
	}
}

func TestListOptionsValidate(t *testing.T) {
	allowed := map[string]bool{"id": true, "operator": true}

	opts := repository.ListOptions{
		Search: "  ucell ",
		Sort:   []repository.SortField{{Column: "operator", Direction: repository.SortDesc}},
		Page:   repository.PageRequest{PageIndex: -3, PageSize: 1000},
	}
	require.NoError(t, opts.Validate(allowed))
	assert.Equal(t, "ucell", opts.Search)
	assert.Equal(t, 0, opts.Page.PageIndex)
	assert.Equal(t, repository.MaxPageSize, opts.Page.PageSize)

	bad := repository.ListOptions{Sort: []repository.SortField{{Column: "password", Direction: repository.SortAsc}}}
	assert.True(t, errors.Is(bad.Validate(allowed), repository.ErrUnknownColumn))
}

func TestPageRequestOffsetNeverWraps(t *testing.T) {
	huge := repository.PageRequest{PageIndex: math.MaxInt64 / 5, PageSize: 10}
	assert.Positive(t, huge.Offset())

	normalized := huge.Normalize()
	assert.Equal(t, repository.MaxPageIndex, normalized.PageIndex)
	assert.Equal(t, repository.MaxPageIndex*10, normalized.Offset())

	assert.Equal(t, 20, repository.PageRequest{PageIndex: 2, PageSize: 10}.Offset())
	assert.Equal(t, 0, repository.PageRequest{PageIndex: -1, PageSize: 10}.Offset())
}

func TestNewPaginationResult(t *testing.T) {
	page := repository.PageRequest{PageIndex: 2, PageSize: 10}
	result := repository.NewPaginationResult([]int{1, 2, 3, 4, 5}, 25, page)

	assert.Equal(t, 3, result.TotalPages)
	assert.False(t, result.HasMore)
	assert.Len(t, result.Items, 5)

	empty := repository.NewPaginationResult[int](nil, 25, repository.PageRequest{PageIndex: 7, PageSize: 10})
	assert.NotNil(t, empty.Items)
	assert.Empty(t, empty.Items)
	assert.Equal(t, 3, empty.TotalPages)
}
