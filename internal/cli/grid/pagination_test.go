package grid

import (
	"strings"
	"testing"

	pkgrepo "switchdesk/pkg/repository"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginationGroups(t *testing.T) {
	cases := []struct {
		name    string
		index   int
		total   int64
		buttons []PageButton
		info    string
	}{
		{
			name:  "first group",
			index: 0,
			total: 120,
			buttons: []PageButton{
				{Label: "1", Target: 0, Current: true},
				{Label: "2", Target: 1},
				{Label: "3", Target: 2},
				{Label: "4", Target: 3},
				{Label: "5", Target: 4},
				{Label: "...", Target: 5, Ellipsis: true},
			},
			info: "1 - 10 of 120",
		},
		{
			name:  "middle group",
			index: 7,
			total: 120,
			buttons: []PageButton{
				{Label: "...", Target: 4, Ellipsis: true},
				{Label: "6", Target: 5},
				{Label: "7", Target: 6},
				{Label: "8", Target: 7, Current: true},
				{Label: "9", Target: 8},
				{Label: "10", Target: 9},
				{Label: "...", Target: 10, Ellipsis: true},
			},
			info: "71 - 80 of 120",
		},
		{
			name:  "last partial group",
			index: 11,
			total: 115,
			buttons: []PageButton{
				{Label: "...", Target: 9, Ellipsis: true},
				{Label: "11", Target: 10},
				{Label: "12", Target: 11, Current: true},
			},
			info: "111 - 115 of 115",
		},
		{
			name:  "empty",
			index: 0,
			total: 0,
			info:  "0 - 0 of 0",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPagination(pkgrepo.PageRequest{PageIndex: tc.index, PageSize: 10}, tc.total, 5)
			if diff := cmp.Diff(tc.buttons, p.Buttons); diff != "" {
				t.Fatalf("buttons mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tc.info, p.Info())
		})
	}
}

func TestPaginationPageCount(t *testing.T) {
	for total := int64(0); total <= 31; total++ {
		p := NewPagination(pkgrepo.PageRequest{PageSize: 10}, total, 5)
		assert.Equal(t, int((total+9)/10), p.PageCount, "total=%d", total)
		assert.Equal(t, total > 10, p.CanNext, "total=%d", total)
		assert.False(t, p.CanPrevious)
	}
}

func TestRenderPagination(t *testing.T) {
	var b strings.Builder
	p := NewPagination(pkgrepo.PageRequest{PageIndex: 2, PageSize: 10}, 25, 5)
	require.NoError(t, RenderPagination(&b, p))
	assert.Equal(t, "< 1 2 [3] -    10 per page    21 - 25 of 25\n", b.String())
}
