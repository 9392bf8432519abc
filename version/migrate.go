package version

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate opens the database and runs the schema migrations.
//   - If targetVersion < 0, it migrates to the latest version.
//   - If targetVersion == 0, it rolls back all migrations.
//   - If targetVersion > 0, it migrates to the specified version.
func Migrate(ctx context.Context, backend Backend, dsn string, targetVersion int) error {
	dsn, err := migrationDSN(backend, dsn)
	if err != nil {
		return err
	}

	db, err := OpenDB(ctx, backend, dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return MigrateDB(db, backend, targetVersion)
}

// MigrateDB runs the schema migrations on an open database. See Migrate for the meaning of
// targetVersion.
func MigrateDB(db *sql.DB, backend Backend, targetVersion int) error {
	m, err := newMigrate(db, backend)
	if err != nil {
		return err
	}

	currentVersion, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is in a dirty state at version %d, fix manually or force the version", currentVersion)
	}

	switch {
	case targetVersion < 0:
		err = m.Up()
	case targetVersion == 0:
		err = m.Down()
	default:
		err = m.Migrate(uint(targetVersion))
	}
	if errors.Is(err, migrate.ErrNoChange) {
		slog.Debug("schema already at requested version", "backend", backend, "version", currentVersion)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to migrate %s schema: %w", backend, err)
	}

	newVersion, _, _ := m.Version()
	slog.Info("migrated schema", "backend", backend, "from", currentVersion, "to", newVersion)
	return nil
}

// MigrationVersion reports the schema version of the database.
func MigrationVersion(db *sql.DB, backend Backend) (uint, bool, error) {
	m, err := newMigrate(db, backend)
	if err != nil {
		return 0, false, err
	}
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// migrationDSN enables multi statement execution for MySQL since migration files hold several
// statements.
func migrationDSN(backend Backend, dsn string) (string, error) {
	if backend != MySQLBackend {
		return dsn, nil
	}
	cfg, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("failed to parse MySQL DSN: %w", err)
	}
	cfg.MultiStatements = true
	return cfg.FormatDSN(), nil
}

func newMigrate(db *sql.DB, backend Backend) (*migrate.Migrate, error) {
	var driver database.Driver
	var err error
	switch backend {
	case SQLiteBackend:
		driver, err = sqlite.WithInstance(db, &sqlite.Config{})
	case PostgresBackend:
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	case MySQLBackend:
		driver, err = mysql.WithInstance(db, &mysql.Config{})
	default:
		return nil, fmt.Errorf("%q, %w", backend, ErrUnknownBackend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s migrate driver: %w", backend, err)
	}

	sub, err := fs.Sub(migrationsFS, "migrations/"+string(backend))
	if err != nil {
		return nil, fmt.Errorf("failed to access migrations directory: %w", err)
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, string(backend), driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}
