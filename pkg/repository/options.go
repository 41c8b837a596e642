package repository

import (
	"fmt"
	"math"
	"strings"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	// MaxPageIndex bounds the window so Offset never overflows.
	MaxPageIndex = math.MaxInt32
)

// SortDirection is the order applied to a sort column.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortField represents a single field for multi-field sorting
type SortField struct {
	Column    string        `json:"column" yaml:"column"`
	Direction SortDirection `json:"direction" yaml:"direction"`
}

// Desc reports whether the field sorts in descending order.
func (s SortField) Desc() bool {
	return s.Direction == SortDesc
}

// ParseSort parses "col:dir,col2:dir2". A missing direction means ascending.
func ParseSort(raw string) ([]SortField, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	fields := make([]SortField, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		column, dir, _ := strings.Cut(part, ":")
		column = strings.TrimSpace(column)
		if column == "" {
			return nil, fmt.Errorf("%w: empty sort column", ErrInvalidInput)
		}
		direction := SortAsc
		switch strings.ToLower(strings.TrimSpace(dir)) {
		case "", "asc":
		case "desc":
			direction = SortDesc
		default:
			return nil, fmt.Errorf("%w: sort direction %q", ErrInvalidInput, dir)
		}
		fields = append(fields, SortField{Column: column, Direction: direction})
	}
	return fields, nil
}

// FormatSort is the inverse of ParseSort.
func FormatSort(fields []SortField) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		dir := SortAsc
		if f.Desc() {
			dir = SortDesc
		}
		parts = append(parts, f.Column+":"+string(dir))
	}
	return strings.Join(parts, ",")
}

// PageRequest is a 0-indexed pagination window.
type PageRequest struct {
	PageIndex int `json:"page_index"`
	PageSize  int `json:"page_size"`
}

// Normalize applies the default size and clamps the window to valid bounds.
func (p PageRequest) Normalize() PageRequest {
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	if p.PageIndex < 0 {
		p.PageIndex = 0
	}
	if p.PageIndex > MaxPageIndex {
		p.PageIndex = MaxPageIndex
	}
	return p
}

// Offset returns the number of rows skipped before the window. It
// saturates instead of wrapping for windows that were not normalized.
func (p PageRequest) Offset() int {
	if p.PageIndex <= 0 || p.PageSize <= 0 {
		return 0
	}
	if p.PageIndex > math.MaxInt/p.PageSize {
		return math.MaxInt / p.PageSize * p.PageSize
	}
	return p.PageIndex * p.PageSize
}

// ListOptions defines the search, sort and window of a listing query.
type ListOptions struct {
	Search string      `json:"search"`
	Sort   []SortField `json:"sort"`
	Page   PageRequest `json:"page"`
}

// Validate checks sort columns against allowed and normalizes the window.
func (o *ListOptions) Validate(allowed map[string]bool) error {
	o.Search = strings.TrimSpace(o.Search)
	o.Page = o.Page.Normalize()
	for _, f := range o.Sort {
		if !allowed[f.Column] {
			return fmt.Errorf("%w: %s", ErrUnknownColumn, f.Column)
		}
		if f.Direction != SortAsc && f.Direction != SortDesc {
			return fmt.Errorf("%w: sort direction %q", ErrInvalidInput, f.Direction)
		}
	}
	return nil
}

// PageCount returns ceil(total / pageSize).
func PageCount(total int64, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

// PaginationResult represents the result of a paginated query
type PaginationResult[T any] struct {
	Items      []T   `json:"items"`       // The actual data
	Total      int64 `json:"total"`       // Total number of records
	Page       int   `json:"page"`        // Current page index (0-based)
	PageSize   int   `json:"page_size"`   // Page size
	TotalPages int   `json:"total_pages"` // Total number of pages
	HasMore    bool  `json:"has_more"`    // Whether there are more pages
}

// NewPaginationResult creates a new pagination result
func NewPaginationResult[T any](items []T, total int64, page PageRequest) PaginationResult[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := PageCount(total, page.PageSize)
	return PaginationResult[T]{
		Items:      items,
		Total:      total,
		Page:       page.PageIndex,
		PageSize:   page.PageSize,
		TotalPages: totalPages,
		HasMore:    page.PageIndex+1 < totalPages,
	}
}
