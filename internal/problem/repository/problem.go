package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"switchdesk/internal/common/db"
	"switchdesk/internal/problem/model"
	pkgrepo "switchdesk/pkg/repository"

	"github.com/huandu/go-sqlbuilder"
)

const problemTable = "problems"

var (
	ErrProblemNotFound = fmt.Errorf("problem %w", pkgrepo.ErrNotFound)
)

var problemColumns = []string{
	"id", "operator", "commutator", "product_id", "start_date", "end_date",
	"note", "status", "answer", "created_at", "updated_at", "version",
}

// SortableColumns lists the columns a listing may be ordered by.
var SortableColumns = map[string]bool{
	"id":         true,
	"operator":   true,
	"commutator": true,
	"product_id": true,
	"start_date": true,
	"end_date":   true,
	"status":     true,
	"created_at": true,
	"updated_at": true,
}

// GroupableColumns lists the columns accepted by SelectDistinct and GroupByCount.
var GroupableColumns = map[string]bool{
	"operator":   true,
	"commutator": true,
	"product_id": true,
	"status":     true,
}

var searchColumns = []string{"operator", "commutator", "product_id", "note"}

// ProblemRepository is the record store for problems. Records are
// append-only: there is no update or delete path.
type ProblemRepository interface {
	Insert(ctx context.Context, tx db.Transaction, problem *model.Problem) (int64, error)
	GetByID(ctx context.Context, tx db.Transaction, id int64) (model.Problem, error)
	SelectAll(ctx context.Context, tx db.Transaction) ([]model.Problem, error)
	// SelectPage returns one window of the filtered listing together with
	// the filtered total, read in a single round trip when the window is
	// not past the end.
	SelectPage(ctx context.Context, opts pkgrepo.ListOptions) (model.Page, error)
	// SelectDistinct returns the distinct values of column, ascending,
	// restricted by equality filters.
	SelectDistinct(ctx context.Context, column string, filter map[string]string) ([]string, error)
	GroupByCount(ctx context.Context, column string) ([]model.GroupCount, error)
}

type SQLProblemRepository struct {
	db  db.Database
	now func() time.Time
}

func NewProblemRepository(database db.Database) *SQLProblemRepository {
	return &SQLProblemRepository{db: database, now: time.Now}
}

func (r *SQLProblemRepository) Insert(ctx context.Context, tx db.Transaction, problem *model.Problem) (int64, error) {
	if problem == nil {
		return 0, errors.New("problem is nil")
	}
	if problem.Status == "" {
		problem.Status = model.StatusActive
	}
	now := r.now().UTC()
	problem.CreatedAt = now
	problem.UpdatedAt = now
	problem.Version = 1

	flavor := r.db.Flavor()
	ib := flavor.NewInsertBuilder()
	ib.InsertInto(problemTable).
		Cols("operator", "commutator", "product_id", "start_date", "end_date",
			"note", "status", "answer", "created_at", "updated_at", "version").
		Values(problem.Operator, problem.Commutator, problem.ProductID,
			nullDate(problem.StartDate), nullDate(problem.EndDate),
			nullString(problem.Note), string(problem.Status), nullString(problem.Answer),
			problem.CreatedAt, problem.UpdatedAt, problem.Version)

	querier := db.GetQuerier(r.db, tx)
	var id int64
	if flavor == sqlbuilder.PostgreSQL {
		ib.Returning("id")
		query, args := ib.Build()
		if err := querier.QueryRow(ctx, query, args...).Scan(&id); err != nil {
			return 0, fmt.Errorf("insert problem: %w", err)
		}
	} else {
		query, args := ib.Build()
		result, err := querier.Exec(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("insert problem: %w", err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return 0, fmt.Errorf("insert problem: %w", err)
		}
	}
	problem.ID = id
	return id, nil
}

func (r *SQLProblemRepository) GetByID(ctx context.Context, tx db.Transaction, id int64) (model.Problem, error) {
	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(problemColumns...).From(problemTable).Where(sb.Equal("id", id))
	query, args := sb.Build()

	problem, err := scanProblem(db.GetQuerier(r.db, tx).QueryRow(ctx, query, args...))
	if err != nil {
		if db.IsNoRows(err) {
			return model.Problem{}, ErrProblemNotFound
		}
		return model.Problem{}, fmt.Errorf("get problem %d: %w", id, err)
	}
	return problem, nil
}

func (r *SQLProblemRepository) SelectAll(ctx context.Context, tx db.Transaction) ([]model.Problem, error) {
	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(problemColumns...).From(problemTable).OrderBy("id ASC")
	query, args := sb.Build()

	rows, err := db.GetQuerier(r.db, tx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select problems: %w", err)
	}
	defer rows.Close()

	problems := make([]model.Problem, 0)
	for rows.Next() {
		problem, err := scanProblem(rows)
		if err != nil {
			return nil, err
		}
		problems = append(problems, problem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select problems: %w", err)
	}
	return problems, nil
}

func (r *SQLProblemRepository) SelectPage(ctx context.Context, opts pkgrepo.ListOptions) (model.Page, error) {
	if err := opts.Validate(SortableColumns); err != nil {
		return model.Page{}, err
	}

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(append(append([]string{}, problemColumns...), "COUNT(*) OVER() AS total_count")...).
		From(problemTable)
	applySearch(sb, opts.Search)
	sb.OrderBy(orderClauses(opts.Sort)...)
	sb.Limit(opts.Page.PageSize).Offset(opts.Page.Offset())
	query, args := sb.Build()

	tx, err := r.db.BeginTx(ctx, &db.TxOptions{ReadOnly: true})
	if err != nil {
		return model.Page{}, fmt.Errorf("select problem page: %w", err)
	}
	items, total, err := r.readPage(ctx, tx, query, args, opts)
	if err != nil {
		_ = tx.Rollback()
		return model.Page{}, fmt.Errorf("select problem page: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Page{}, fmt.Errorf("select problem page: %w", err)
	}
	return pkgrepo.NewPaginationResult(items, total, opts.Page), nil
}

func (r *SQLProblemRepository) readPage(ctx context.Context, tx db.Transaction, query string, args []interface{}, opts pkgrepo.ListOptions) ([]model.Problem, int64, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		items []model.Problem
		total int64
	)
	for rows.Next() {
		var row problemRow
		if err := rows.Scan(append(row.dest(), &total)...); err != nil {
			return nil, 0, err
		}
		items = append(items, row.toProblem())
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(items) > 0 || opts.Page.Offset() == 0 {
		return items, total, nil
	}

	// The window is past the end, so no row carried the total.
	cb := r.db.Flavor().NewSelectBuilder()
	cb.Select("COUNT(*)").From(problemTable)
	applySearch(cb, opts.Search)
	countQuery, countArgs := cb.Build()
	if err := tx.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *SQLProblemRepository) SelectDistinct(ctx context.Context, column string, filter map[string]string) ([]string, error) {
	if !GroupableColumns[column] {
		return nil, fmt.Errorf("%w: %s", pkgrepo.ErrUnknownColumn, column)
	}

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(column).Distinct().From(problemTable)
	keys := make([]string, 0, len(filter))
	for key := range filter {
		if !GroupableColumns[key] {
			return nil, fmt.Errorf("%w: %s", pkgrepo.ErrUnknownColumn, key)
		}
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		sb.Where(sb.Equal(key, filter[key]))
	}
	sb.OrderBy(column + " ASC")
	query, args := sb.Build()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select distinct %s: %w", column, err)
	}
	defer rows.Close()

	values := make([]string, 0)
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select distinct %s: %w", column, err)
	}
	// Database collations may fold case or accents; the result must be
	// strictly ascending by byte order.
	slices.Sort(values)
	return slices.Compact(values), nil
}

func (r *SQLProblemRepository) GroupByCount(ctx context.Context, column string) ([]model.GroupCount, error) {
	if !GroupableColumns[column] {
		return nil, fmt.Errorf("%w: %s", pkgrepo.ErrUnknownColumn, column)
	}

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(column+" AS name", "COUNT(*) AS cnt").
		From(problemTable).
		GroupBy(column).
		OrderBy("cnt DESC", "name ASC")
	query, args := sb.Build()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", column, err)
	}
	defer rows.Close()

	groups := make([]model.GroupCount, 0)
	for rows.Next() {
		var group model.GroupCount
		if err := rows.Scan(&group.Name, &group.Count); err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("group %s: %w", column, err)
	}
	return groups, nil
}

// applySearch adds a case-insensitive substring match over searchColumns.
func applySearch(sb *sqlbuilder.SelectBuilder, search string) {
	if search == "" {
		return
	}
	pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
	conds := make([]string, 0, len(searchColumns))
	for _, column := range searchColumns {
		conds = append(conds, sb.Like("LOWER("+column+")", pattern))
	}
	sb.Where(sb.Or(conds...))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// orderClauses turns validated sort fields into ORDER BY terms, always
// ending with id so that pages are stable.
func orderClauses(fields []pkgrepo.SortField) []string {
	clauses := make([]string, 0, len(fields)+1)
	hasID := false
	for _, f := range fields {
		dir := "ASC"
		if f.Desc() {
			dir = "DESC"
		}
		clauses = append(clauses, f.Column+" "+dir)
		if f.Column == "id" {
			hasID = true
		}
	}
	if !hasID {
		clauses = append(clauses, "id ASC")
	}
	return clauses
}

// problemRow mirrors one row in problemColumns order.
type problemRow struct {
	problem   model.Problem
	startDate sql.NullTime
	endDate   sql.NullTime
	note      sql.NullString
	status    sql.NullString
	answer    sql.NullString
}

func (r *problemRow) dest() []interface{} {
	p := &r.problem
	return []interface{}{
		&p.ID, &p.Operator, &p.Commutator, &p.ProductID,
		&r.startDate, &r.endDate, &r.note, &r.status, &r.answer,
		&p.CreatedAt, &p.UpdatedAt, &p.Version,
	}
}

func (r *problemRow) toProblem() model.Problem {
	p := r.problem
	p.StartDate = dateFromNull(r.startDate)
	p.EndDate = dateFromNull(r.endDate)
	p.Note = r.note.String
	p.Answer = r.answer.String
	p.Status = model.Status(r.status.String)
	return p
}

func scanProblem(scanner db.Scanner) (model.Problem, error) {
	var row problemRow
	if err := scanner.Scan(row.dest()...); err != nil {
		return model.Problem{}, err
	}
	return row.toProblem(), nil
}

func dateFromNull(t sql.NullTime) *model.Date {
	if !t.Valid {
		return nil
	}
	d := model.NewDate(t.Time)
	return &d
}

func nullDate(d *model.Date) interface{} {
	if d == nil {
		return nil
	}
	return d.Time
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
