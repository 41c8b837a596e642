package db

import (
	"context"
	"database/sql"

	"github.com/huandu/go-sqlbuilder"
)

// Supported driver names.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Database is the connection pool shared by repositories.
type Database interface {
	Querier

	// Driver returns the driver name the pool was opened with.
	Driver() string
	// Flavor returns the SQL dialect used to build statements for this pool.
	Flavor() sqlbuilder.Flavor

	Transaction(ctx context.Context, fn func(tx Transaction) error) error
	BeginTx(ctx context.Context, opts *TxOptions) (Transaction, error)
	Ping(ctx context.Context) error
	Close() error
	Stats() Stats
}

// Transaction is a unit of work started from a Database.
type Transaction interface {
	Querier
	Commit() error
	Rollback() error
}

// Rows is the result of a query.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Close() error
	Err() error
	Columns() ([]string, error)
}

// Row is the result of QueryRow.
type Row interface {
	Scan(dest ...interface{}) error
}

// Scanner is satisfied by both Row and Rows.
type Scanner interface {
	Scan(dest ...interface{}) error
}

// Result summarizes an executed statement.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

// TxOptions holds the transaction options.
type TxOptions struct {
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

// ConvertTxOptions maps TxOptions onto database/sql options.
func ConvertTxOptions(opts *TxOptions) *sql.TxOptions {
	if opts == nil {
		return nil
	}
	return &sql.TxOptions{Isolation: opts.Isolation, ReadOnly: opts.ReadOnly}
}

// Stats is a snapshot of pool statistics.
type Stats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
}

// ConvertSQLStats copies the fields of sql.DBStats that are reported.
func ConvertSQLStats(s sql.DBStats) Stats {
	return Stats{
		MaxOpenConnections: s.MaxOpenConnections,
		OpenConnections:    s.OpenConnections,
		InUse:              s.InUse,
		Idle:               s.Idle,
		WaitCount:          s.WaitCount,
	}
}

// FlavorOf maps a driver name onto its sqlbuilder flavor.
func FlavorOf(driver string) sqlbuilder.Flavor {
	if driver == DriverPostgres {
		return sqlbuilder.PostgreSQL
	}
	return sqlbuilder.MySQL
}
