package version

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var ErrUnknownBackend = errors.New("unknown database backend")

// Backend names a supported SQL database.
type Backend string

const (
	SQLiteBackend   Backend = "sqlite"
	PostgresBackend Backend = "postgres"
	MySQLBackend    Backend = "mysql"
)

// ParseBackend converts a name into a Backend.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(s) {
	case "sqlite", "sqlite3":
		return SQLiteBackend, nil
	case "postgres", "postgresql", "pgx":
		return PostgresBackend, nil
	case "mysql":
		return MySQLBackend, nil
	}
	return "", fmt.Errorf("%q, %w", s, ErrUnknownBackend)
}

func (b Backend) driverName() string {
	switch b {
	case PostgresBackend:
		return "pgx"
	case MySQLBackend:
		return "mysql"
	default:
		return "sqlite"
	}
}

// OpenDB opens and pings a connection pool for the backend.
func OpenDB(ctx context.Context, backend Backend, dsn string) (*sql.DB, error) {
	switch backend {
	case SQLiteBackend, PostgresBackend, MySQLBackend:
	default:
		return nil, fmt.Errorf("%q, %w", backend, ErrUnknownBackend)
	}

	db, err := sql.Open(backend.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", backend, err)
	}

	switch backend {
	case SQLiteBackend:
		// a single connection avoids "database is locked" errors and serializes transactions
		db.SetMaxOpenConns(1)
	default:
		db.SetConnMaxIdleTime(5 * time.Minute)
		db.SetConnMaxLifetime(30 * time.Minute)
		db.SetMaxIdleConns(10)
		db.SetMaxOpenConns(20)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", backend, err)
	}
	return db, nil
}

// rebind rewrites ? placeholders into the $n form postgres expects.
func rebind(backend Backend, query string) string {
	if backend != PostgresBackend {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isUniqueViolation reports whether err was raised by a unique or primary key constraint.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
