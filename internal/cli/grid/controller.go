// Package grid holds the client-side view state of the problem table: the
// debounced search, sort, pagination window and the last fetched page and
// chart series.
package grid

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"switchdesk/internal/cli/api"
	"switchdesk/internal/problem/model"
	pkgrepo "switchdesk/pkg/repository"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultDebounce  = 1000 * time.Millisecond
	DefaultMoreLimit = 5
	noticeBuffer     = 16
)

// ErrStale is returned by a fetch superseded by a later one.
var ErrStale = errors.New("stale response discarded")

// Source reads pages and chart series.
type Source interface {
	Query(ctx context.Context, params api.QueryParams) api.Result[model.Page]
	Aggregates(ctx context.Context) api.Result[model.Aggregates]
}

// Options tunes a Controller.
type Options struct {
	Debounce  time.Duration
	PageSize  int
	MoreLimit int
}

// NoticeKind classifies a Notice.
type NoticeKind int

const (
	NoticeUpdated NoticeKind = iota
	NoticeFailed
)

// Notice reports the outcome of a fetch.
type Notice struct {
	Kind       NoticeKind
	Message    string
	Generation uint64
}

// Snapshot is a consistent copy of the controller state.
type Snapshot struct {
	SearchText string
	Search     string
	Sort       []pkgrepo.SortField
	Page       pkgrepo.PageRequest
	Rows       []model.Problem
	Total      int64
	Aggregates model.Aggregates
	Generation uint64
}

// Controller is safe for concurrent use; debounce callbacks run on timer
// goroutines.
type Controller struct {
	ctx     context.Context
	source  Source
	opts    Options
	notices chan Notice

	mu         sync.Mutex
	timer      *time.Timer
	keystrokes uint64
	closed     bool
	searchText string
	search     string
	sort       []pkgrepo.SortField
	page       pkgrepo.PageRequest
	rows       []model.Problem
	total      int64
	aggs       model.Aggregates
	issued     uint64
	applied    uint64
}

// NewController creates a Controller. ctx bounds debounced fetches.
func NewController(ctx context.Context, source Source, opts Options) *Controller {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.MoreLimit <= 0 {
		opts.MoreLimit = DefaultMoreLimit
	}
	return &Controller{
		ctx:     ctx,
		source:  source,
		opts:    opts,
		notices: make(chan Notice, noticeBuffer),
		page:    pkgrepo.PageRequest{PageSize: opts.PageSize}.Normalize(),
		rows:    []model.Problem{},
		aggs:    model.EmptyAggregates(),
	}
}

// Notices delivers fetch outcomes. Notices are dropped when nobody reads.
func (c *Controller) Notices() <-chan Notice {
	return c.notices
}

// Restore seeds search, sort and page size without fetching.
func (c *Controller) Restore(search string, sort []pkgrepo.SortField, pageSize int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searchText = search
	c.search = strings.TrimSpace(search)
	c.sort = slices.Clone(sort)
	c.page = pkgrepo.PageRequest{PageSize: pageSize}.Normalize()
}

// Type records a keystroke. The search is applied once the input has been
// quiet for the debounce window.
func (c *Controller) Type(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.searchText = text
	c.keystrokes++
	seq := c.keystrokes
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.opts.Debounce, func() { c.commitSearch(seq) })
}

// commitSearch runs only for the latest keystroke; a callback that lost
// the race with Stop finds a newer sequence and returns.
func (c *Controller) commitSearch(seq uint64) {
	c.mu.Lock()
	if c.closed || seq != c.keystrokes {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.search = strings.TrimSpace(c.searchText)
	c.page.PageIndex = 0
	c.mu.Unlock()

	_ = c.Refresh(c.ctx)
}

// Search applies text immediately, cancelling any pending debounce.
func (c *Controller) Search(ctx context.Context, text string) error {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.keystrokes++
	c.searchText = text
	c.search = strings.TrimSpace(text)
	c.page.PageIndex = 0
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// SetSort replaces the sort order.
func (c *Controller) SetSort(ctx context.Context, sort []pkgrepo.SortField) error {
	c.mu.Lock()
	c.sort = slices.Clone(sort)
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// ToggleSort cycles column through ascending, descending and unsorted.
// A newly sorted column becomes the primary key.
func (c *Controller) ToggleSort(ctx context.Context, column string) error {
	c.mu.Lock()
	i := slices.IndexFunc(c.sort, func(f pkgrepo.SortField) bool { return f.Column == column })
	switch {
	case i < 0:
		c.sort = slices.Insert(c.sort, 0, pkgrepo.SortField{Column: column, Direction: pkgrepo.SortAsc})
	case c.sort[i].Desc():
		c.sort = slices.Delete(c.sort, i, i+1)
	default:
		c.sort[i].Direction = pkgrepo.SortDesc
	}
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// SetPage moves to a 0-indexed page.
func (c *Controller) SetPage(ctx context.Context, index int) error {
	c.mu.Lock()
	c.page.PageIndex = max(index, 0)
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// SetPageSize changes the window size and returns to the first page.
func (c *Controller) SetPageSize(ctx context.Context, size int) error {
	c.mu.Lock()
	c.page = pkgrepo.PageRequest{PageSize: size}.Normalize()
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// NextPage advances one page if there is one.
func (c *Controller) NextPage(ctx context.Context) error {
	c.mu.Lock()
	if !c.paginationLocked().CanNext {
		c.mu.Unlock()
		return nil
	}
	c.page.PageIndex++
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// PreviousPage steps back one page if there is one.
func (c *Controller) PreviousPage(ctx context.Context) error {
	c.mu.Lock()
	if c.page.PageIndex == 0 {
		c.mu.Unlock()
		return nil
	}
	c.page.PageIndex--
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// Refresh fetches the current window and the chart series concurrently and
// applies both at once. On failure the previous state is kept.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.issued++
	gen := c.issued
	params := api.QueryParams{
		Search:   c.search,
		Sort:     slices.Clone(c.sort),
		Page:     c.page.PageIndex,
		PageSize: c.page.PageSize,
	}
	c.mu.Unlock()

	var (
		page api.Result[model.Page]
		aggs api.Result[model.Aggregates]
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		page = c.source.Query(gctx, params)
		if !page.Success {
			return errors.New(page.Error)
		}
		return nil
	})
	g.Go(func() error {
		aggs = c.source.Aggregates(gctx)
		if !aggs.Success {
			return errors.New(aggs.Error)
		}
		return nil
	})
	err := g.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.issued {
		return ErrStale
	}
	if err != nil {
		c.notify(Notice{Kind: NoticeFailed, Message: err.Error(), Generation: gen})
		return err
	}
	c.rows = page.Data.Items
	c.total = page.Data.Total
	c.aggs = aggs.Data
	c.applied = gen
	c.notify(Notice{Kind: NoticeUpdated, Generation: gen})
	return nil
}

func (c *Controller) notify(n Notice) {
	select {
	case c.notices <- n:
	default:
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		SearchText: c.searchText,
		Search:     c.search,
		Sort:       slices.Clone(c.sort),
		Page:       c.page,
		Rows:       slices.Clone(c.rows),
		Total:      c.total,
		Aggregates: c.aggs,
		Generation: c.applied,
	}
}

// Pagination derives the pager for the current state.
func (c *Controller) Pagination() Pagination {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paginationLocked()
}

func (c *Controller) paginationLocked() Pagination {
	return NewPagination(c.page, c.total, c.opts.MoreLimit)
}

// Close cancels any pending debounced search.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
