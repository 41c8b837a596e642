package grid

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"switchdesk/internal/problem/model"
	pkgrepo "switchdesk/pkg/repository"
)

const (
	chartWidth   = 40
	noteMaxWidth = 32
)

// Columns lists the table columns in display order.
var Columns = []string{"id", "operator", "commutator", "product_id", "start_date", "end_date", "status", "note"}

// RenderTable writes the rows of s as an aligned table.
func RenderTable(w io.Writer, s Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	headers := make([]string, len(Columns))
	for i, col := range Columns {
		headers[i] = strings.ToUpper(col) + sortMarker(s.Sort, col)
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	if len(s.Rows) == 0 {
		fmt.Fprintln(tw, "(no records)")
	}
	for _, p := range s.Rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID, p.Operator, p.Commutator, p.ProductID,
			dateCell(p.StartDate), dateCell(p.EndDate), p.Status, truncate(p.Note, noteMaxWidth))
	}
	return tw.Flush()
}

// RenderPagination writes the pager line and the info line.
func RenderPagination(w io.Writer, p Pagination) error {
	var b strings.Builder
	b.WriteString(control("<", p.CanPrevious))
	for _, btn := range p.Buttons {
		b.WriteByte(' ')
		if btn.Current {
			b.WriteString("[" + btn.Label + "]")
		} else {
			b.WriteString(btn.Label)
		}
	}
	b.WriteByte(' ')
	b.WriteString(control(">", p.CanNext))
	_, err := fmt.Fprintf(w, "%s    %d per page    %s\n", b.String(), p.PageSize, p.Info())
	return err
}

// RenderChart writes both aggregate series as horizontal bars.
func RenderChart(w io.Writer, aggs model.Aggregates) error {
	if err := renderSeries(w, "By operator", aggs.Operator); err != nil {
		return err
	}
	return renderSeries(w, "By commutator", aggs.Commutator)
}

func renderSeries(w io.Writer, title string, groups []model.GroupCount) error {
	fmt.Fprintln(w, title)
	if len(groups) == 0 {
		_, err := fmt.Fprintln(w, "  (no data)")
		return err
	}
	var peak int64
	for _, g := range groups {
		peak = max(peak, g.Count)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 1, ' ', 0)
	for _, g := range groups {
		bar := int(g.Count * chartWidth / peak)
		if bar == 0 && g.Count > 0 {
			bar = 1
		}
		fmt.Fprintf(tw, "  %s\t%s %d\n", g.Name, strings.Repeat("#", bar), g.Count)
	}
	return tw.Flush()
}

func sortMarker(sort []pkgrepo.SortField, column string) string {
	for i, f := range sort {
		if f.Column != column {
			continue
		}
		marker := "^"
		if f.Desc() {
			marker = "v"
		}
		if len(sort) > 1 {
			marker += fmt.Sprint(i + 1)
		}
		return " " + marker
	}
	return ""
}

func control(label string, enabled bool) string {
	if enabled {
		return label
	}
	return "-"
}

func dateCell(d *model.Date) string {
	if d == nil {
		return "-"
	}
	return d.String()
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
