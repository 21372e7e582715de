package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
	_ "modernc.org/sqlite"

	"macfinder/pkg/db/migrations"
)

const (
	// DefaultTimeout is used when executing queries to avoid leaking resources on hung calls.
	DefaultTimeout = 5 * time.Second

	sqliteBusyTimeoutMS = 5000
)

// Dialect identifies the SQL engine behind a DSN.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DB is a database/sql pool that remembers which engine it talks to.
type DB struct {
	*sql.DB
	dialect Dialect
}

type options struct {
	readOnly bool
}

// Option tweaks how Open builds the connection string.
type Option func(*options)

// ReadOnly opens SQLite databases with mode=ro. Postgres DSNs are left untouched.
func ReadOnly() Option {
	return func(o *options) { o.readOnly = true }
}

// Open prepares a pool for the given DSN without dialing. Connection problems surface on
// first use (or through Ping), which lets request handlers report them per call.
//
// Accepted DSNs:
//   - postgres://... or postgresql://... (pgx stdlib driver)
//   - sqlite://path, file:path or a bare filesystem path (modernc.org/sqlite)
func Open(ctx context.Context, dsn string, opts ...Option) (*DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("dsn is required")
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	dialect, driver, source := parseDSN(dsn, o.readOnly)

	sqlDB, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	if dialect == DialectSQLite && !o.readOnly {
		// SQLite allows a single writer; serialise writes at the pool.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
	}
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return &DB{DB: sqlDB, dialect: dialect}, nil
}

func parseDSN(dsn string, readOnly bool) (Dialect, string, string) {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DialectPostgres, "pgx", dsn
	}

	path := dsn
	switch {
	case strings.HasPrefix(lower, "sqlite://"):
		path = dsn[len("sqlite://"):]
	case strings.HasPrefix(lower, "file:"):
		path = dsn[len("file:"):]
	}

	var query string
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		query = path[idx+1:]
		path = path[:idx]
	}

	params := []string{fmt.Sprintf("_pragma=busy_timeout(%d)", sqliteBusyTimeoutMS)}
	if readOnly {
		params = append([]string{"mode=ro"}, params...)
	}
	if query != "" {
		params = append(params, query)
	}

	return DialectSQLite, "sqlite", "file:" + path + "?" + strings.Join(params, "&")
}

// Dialect reports the engine behind the pool.
func (d *DB) Dialect() Dialect {
	if d == nil {
		return ""
	}
	return d.dialect
}

// Placeholder renders the n-th (1-based) bind parameter for the dialect.
func (d *DB) Placeholder(n int) string {
	if d.Dialect() == DialectPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// ORM wraps the pool in a gorm session using the matching dialector.
func (d *DB) ORM() (*gorm.DB, error) {
	if d == nil || d.DB == nil {
		return nil, errors.New("nil db")
	}

	var dialector gorm.Dialector
	switch d.dialect {
	case DialectPostgres:
		dialector = postgres.New(postgres.Config{Conn: d.DB, PreferSimpleProtocol: true})
	default:
		dialector = &sqlite.Dialector{Conn: d.DB}
	}

	return gorm.Open(dialector, &gorm.Config{
		NamingStrategy:         schema.NamingStrategy{SingularTable: false},
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
}

// Migrate runs all embedded SQL migrations against the provided database.
func Migrate(ctx context.Context, d *DB) error {
	if d == nil || d.DB == nil {
		return errors.New("nil db provided")
	}

	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)

	dialect := "sqlite3"
	if d.dialect == DialectPostgres {
		dialect = "postgres"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}

	return goose.UpContext(ctx, d.DB, ".")
}

// Execer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Exec executes a statement with the default timeout applied.
func Exec(ctx context.Context, q Execer, query string, args ...any) (sql.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	return q.ExecContext(ctx, query, args...)
}

// Select retrieves multiple rows into dest with the default timeout applied.
func Select(ctx context.Context, q sqlscan.Querier, dest any, query string, args ...any) error {
	return SelectTimeout(ctx, DefaultTimeout, q, dest, query, args...)
}

// SelectTimeout is Select bounded by timeout instead of DefaultTimeout. A non-positive
// timeout selects DefaultTimeout.
func SelectTimeout(ctx context.Context, timeout time.Duration, q sqlscan.Querier, dest any, query string, args ...any) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return sqlscan.Select(ctx, q, dest, query, args...)
}

// Ping ensures the database is reachable with the default timeout.
func Ping(ctx context.Context, d *DB) error {
	if d == nil || d.DB == nil {
		return errors.New("nil db")
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()
	return d.PingContext(ctx)
}
