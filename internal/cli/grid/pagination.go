package grid

import (
	"fmt"
	"strconv"

	pkgrepo "switchdesk/pkg/repository"
)

// PageSizes are the selectable window sizes.
var PageSizes = []int{5, 10, 25, 50, 100}

// PageButton is one pager control. Target is the 0-indexed page it selects.
type PageButton struct {
	Label    string
	Target   int
	Current  bool
	Ellipsis bool
}

// Pagination is the derived pager state.
type Pagination struct {
	PageIndex   int
	PageSize    int
	PageCount   int
	Total       int64
	From        int64
	To          int64
	Buttons     []PageButton
	CanPrevious bool
	CanNext     bool
}

// NewPagination groups page buttons moreLimit at a time around the group
// holding the current page. Ellipsis controls jump to the last page of the
// previous group or the first page of the next one.
func NewPagination(page pkgrepo.PageRequest, total int64, moreLimit int) Pagination {
	page = page.Normalize()
	if moreLimit <= 0 {
		moreLimit = DefaultMoreLimit
	}
	count := pkgrepo.PageCount(total, page.PageSize)

	p := Pagination{
		PageIndex:   page.PageIndex,
		PageSize:    page.PageSize,
		PageCount:   count,
		Total:       total,
		CanPrevious: page.PageIndex > 0,
		CanNext:     page.PageIndex+1 < count,
	}
	if offset := int64(page.Offset()); offset < total {
		p.From = offset + 1
		p.To = min(offset+int64(page.PageSize), total)
	}

	groupStart := (page.PageIndex / moreLimit) * moreLimit
	groupEnd := min(groupStart+moreLimit, count)
	if groupStart > 0 {
		p.Buttons = append(p.Buttons, PageButton{Label: "...", Target: groupStart - 1, Ellipsis: true})
	}
	for i := groupStart; i < groupEnd; i++ {
		p.Buttons = append(p.Buttons, PageButton{Label: strconv.Itoa(i + 1), Target: i, Current: i == page.PageIndex})
	}
	if groupEnd < count {
		p.Buttons = append(p.Buttons, PageButton{Label: "...", Target: groupEnd, Ellipsis: true})
	}
	return p
}

// Info renders the "from - to of count" line.
func (p Pagination) Info() string {
	return fmt.Sprintf("%d - %d of %d", p.From, p.To, p.Total)
}
