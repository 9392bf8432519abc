package version

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/ledgerpulse/go-forecaster/forecast"
	"github.com/ledgerpulse/go-forecaster/timeseries"
)

// DefaultMaxRetries is how many times a create is retried after a version number collision.
const DefaultMaxRetries = 5

const versionColumns = `id, organization_id, version_number, name, notes, created_by, status, is_active,
	created_at, published_at, archived_at, start_month, horizon, adjustments, entities, summary`

// SQLOptions configures a SQLStore.
type SQLOptions struct {
	Backend Backend
	DSN     string

	// MaxRetries bounds the retries of a create after a version number collision.
	MaxRetries int

	// Sequencer replaces the counter table for numbering when set.
	Sequencer Sequencer

	// SkipMigrate leaves the schema untouched on open.
	SkipMigrate bool
}

// SQLStore persists versions in SQLite, PostgreSQL or MySQL. Numbers come from a per
// organization counter row incremented inside the insert transaction, and a unique constraint
// on (organization_id, version_number) turns any remaining collision into ErrVersionConflict.
type SQLStore struct {
	db         *sql.DB
	backend    Backend
	maxRetries int
	seq        Sequencer
}

var _ Store = (*SQLStore)(nil)

// OpenSQLStore opens the database, migrates it to the latest schema and returns the store.
func OpenSQLStore(ctx context.Context, opt SQLOptions) (*SQLStore, error) {
	dsn, err := migrationDSN(opt.Backend, opt.DSN)
	if err != nil {
		return nil, err
	}
	db, err := OpenDB(ctx, opt.Backend, dsn)
	if err != nil {
		return nil, err
	}
	if !opt.SkipMigrate {
		if err := MigrateDB(db, opt.Backend, -1); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return NewSQLStore(db, opt.Backend, opt.MaxRetries, opt.Sequencer), nil
}

// NewSQLStore wraps an already migrated database.
func NewSQLStore(db *sql.DB, backend Backend, maxRetries int, seq Sequencer) *SQLStore {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &SQLStore{
		db:         db,
		backend:    backend,
		maxRetries: maxRetries,
		seq:        seq,
	}
}

// DB returns the underlying connection pool.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func (s *SQLStore) q(query string) string {
	return rebind(s.backend, query)
}

func (s *SQLStore) Create(ctx context.Context, v *Version) (*Version, error) {
	c, err := prepareCreate(v)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		created, err := s.create(ctx, c)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, ErrVersionConflict) || attempt >= s.maxRetries {
			return nil, err
		}
		slog.Warn("version number collision, retrying",
			"organization_id", c.OrganizationID,
			"attempt", attempt+1,
			"error", err.Error(),
		)
	}
}

func (s *SQLStore) create(ctx context.Context, v *Version) (*Version, error) {
	adjustments, err := json.Marshal(v.Adjustments)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal adjustments: %w", err)
	}
	entities, err := json.Marshal(v.Entities)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entities: %w", err)
	}
	summary, err := json.Marshal(v.Summary)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal summary: %w", err)
	}

	// An external sequencer may seed itself through MaxNumber, which needs its own connection.
	var number int
	if s.seq != nil {
		if number, err = s.seq.Next(ctx, v.OrganizationID); err != nil {
			return nil, fmt.Errorf("failed to assign version number: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if s.seq == nil {
		if number, err = s.nextNumber(ctx, tx, v.OrganizationID); err != nil {
			return nil, fmt.Errorf("failed to assign version number: %w", err)
		}
	}

	query := s.q(`INSERT INTO forecast_versions (` + versionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = tx.ExecContext(ctx, query,
		v.ID, v.OrganizationID, number, v.Name, v.Notes, v.CreatedBy,
		string(v.Status), boolToInt(v.IsActive),
		v.CreatedAt.UnixMilli(), nil, nil,
		int(v.StartMonth), v.Horizon,
		string(adjustments), string(entities), string(summary),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("organization %s number %d: %w", v.OrganizationID, number, ErrVersionConflict)
		}
		return nil, fmt.Errorf("failed to insert version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("organization %s number %d: %w", v.OrganizationID, number, ErrVersionConflict)
		}
		return nil, fmt.Errorf("failed to commit version: %w", err)
	}

	created := v.Copy()
	created.Number = number
	created.CreatedAt = time.UnixMilli(v.CreatedAt.UnixMilli()).UTC()
	return created, nil
}

// nextNumber atomically increments the counter row of the organization inside tx. A missing
// counter is seeded from the highest stored number.
func (s *SQLStore) nextNumber(ctx context.Context, tx *sql.Tx, orgID string) (int, error) {
	var number int
	switch s.backend {
	case MySQLBackend:
		_, err := tx.ExecContext(ctx, `INSERT INTO forecast_version_counters (organization_id, last_number)
			VALUES (?, LAST_INSERT_ID((SELECT COALESCE(MAX(version_number), 0) + 1 FROM forecast_versions WHERE organization_id = ?)))
			ON DUPLICATE KEY UPDATE last_number = LAST_INSERT_ID(last_number + 1)`, orgID, orgID)
		if err != nil {
			return 0, err
		}
		if err := tx.QueryRowContext(ctx, `SELECT LAST_INSERT_ID()`).Scan(&number); err != nil {
			return 0, err
		}
	default:
		query := s.q(`INSERT INTO forecast_version_counters (organization_id, last_number)
			VALUES (?, (SELECT COALESCE(MAX(version_number), 0) + 1 FROM forecast_versions WHERE organization_id = ?))
			ON CONFLICT (organization_id) DO UPDATE SET last_number = forecast_version_counters.last_number + 1
			RETURNING last_number`)
		if err := tx.QueryRowContext(ctx, query, orgID, orgID).Scan(&number); err != nil {
			return 0, err
		}
	}
	return number, nil
}

// MaxNumber returns the highest version number stored for the organization.
func (s *SQLStore) MaxNumber(ctx context.Context, orgID string) (int, error) {
	var number int
	query := s.q(`SELECT COALESCE(MAX(version_number), 0) FROM forecast_versions WHERE organization_id = ?`)
	if err := s.db.QueryRowContext(ctx, query, orgID).Scan(&number); err != nil {
		return 0, fmt.Errorf("failed to read max version number: %w", err)
	}
	return number, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*Version, error) {
	query := s.q(`SELECT ` + versionColumns + ` FROM forecast_versions WHERE id = ?`)
	return scanVersion(s.db.QueryRowContext(ctx, query, id))
}

func (s *SQLStore) List(ctx context.Context, orgID string, status Status) ([]*Version, error) {
	query := `SELECT ` + versionColumns + ` FROM forecast_versions WHERE organization_id = ?`
	args := []any{orgID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY version_number DESC`

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var res []*Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating versions: %w", err)
	}
	return res, nil
}

func (s *SQLStore) Active(ctx context.Context, orgID string) (*Version, error) {
	query := s.q(`SELECT ` + versionColumns + ` FROM forecast_versions WHERE organization_id = ? AND is_active = 1`)
	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active version: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var active []*Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		active = append(active, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active versions: %w", err)
	}

	switch len(active) {
	case 0:
		return nil, fmt.Errorf("no active version for organization %s: %w", orgID, ErrNotFound)
	case 1:
		return active[0], nil
	}
	slog.Error("multiple active forecast versions", "organization_id", orgID, "count", len(active))
	return nil, fmt.Errorf("organization %s has %d: %w", orgID, len(active), ErrActiveInvariantViolation)
}

// Publish demotes every other version of the organization and activates id in one
// transaction. On PostgreSQL and MySQL the organization's rows are locked first so concurrent
// publishes serialize.
func (s *SQLStore) Publish(ctx context.Context, id string) (*Version, error) {
	return s.transition(ctx, id, func(tx *sql.Tx, v *Version, now time.Time) error {
		if err := Transition(v.Status, StatusPublished); err != nil {
			return err
		}
		demote := s.q(`UPDATE forecast_versions SET is_active = 0 WHERE organization_id = ? AND is_active = 1 AND id <> ?`)
		if _, err := tx.ExecContext(ctx, demote, v.OrganizationID, v.ID); err != nil {
			return fmt.Errorf("failed to demote active version: %w", err)
		}
		if err := applyPublish(v, now); err != nil {
			return err
		}
		promote := s.q(`UPDATE forecast_versions SET status = ?, is_active = 1, published_at = ? WHERE id = ?`)
		if _, err := tx.ExecContext(ctx, promote, string(v.Status), v.PublishedAt.UnixMilli(), v.ID); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("organization %s: %w", v.OrganizationID, ErrActiveInvariantViolation)
			}
			return fmt.Errorf("failed to publish version: %w", err)
		}
		return nil
	})
}

func (s *SQLStore) Archive(ctx context.Context, id string) (*Version, error) {
	return s.transition(ctx, id, func(tx *sql.Tx, v *Version, now time.Time) error {
		if err := applyArchive(v, now); err != nil {
			return err
		}
		query := s.q(`UPDATE forecast_versions SET status = ?, is_active = 0, archived_at = ? WHERE id = ?`)
		if _, err := tx.ExecContext(ctx, query, string(v.Status), v.ArchivedAt.UnixMilli(), v.ID); err != nil {
			return fmt.Errorf("failed to archive version: %w", err)
		}
		return nil
	})
}

func (s *SQLStore) transition(ctx context.Context, id string, apply func(*sql.Tx, *Version, time.Time) error) (*Version, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	v, err := scanVersion(tx.QueryRowContext(ctx, s.q(`SELECT `+versionColumns+` FROM forecast_versions WHERE id = ?`), id))
	if err != nil {
		return nil, err
	}

	if s.backend != SQLiteBackend {
		lock := s.q(`SELECT id FROM forecast_versions WHERE organization_id = ? FOR UPDATE`)
		rows, err := tx.QueryContext(ctx, lock, v.OrganizationID)
		if err != nil {
			return nil, fmt.Errorf("failed to lock organization versions: %w", err)
		}
		_ = rows.Close()

		// re-read under the lock
		v, err = scanVersion(tx.QueryRowContext(ctx, s.q(`SELECT `+versionColumns+` FROM forecast_versions WHERE id = ?`), id))
		if err != nil {
			return nil, err
		}
	}

	now := time.UnixMilli(time.Now().UnixMilli()).UTC()
	if err := apply(tx, v, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return v, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVersion(row scanner) (*Version, error) {
	var (
		v                       Version
		status                  string
		isActive                int64
		createdAt               int64
		publishedAt, archivedAt sql.NullInt64
		startMonth              int64
		adjustments             string
		entities                string
		summary                 string
	)
	err := row.Scan(
		&v.ID, &v.OrganizationID, &v.Number, &v.Name, &v.Notes, &v.CreatedBy,
		&status, &isActive, &createdAt, &publishedAt, &archivedAt,
		&startMonth, &v.Horizon, &adjustments, &entities, &summary,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan version: %w", err)
	}

	v.Status = Status(status)
	v.IsActive = isActive != 0
	v.CreatedAt = time.UnixMilli(createdAt).UTC()
	if publishedAt.Valid {
		t := time.UnixMilli(publishedAt.Int64).UTC()
		v.PublishedAt = &t
	}
	if archivedAt.Valid {
		t := time.UnixMilli(archivedAt.Int64).UTC()
		v.ArchivedAt = &t
	}
	v.StartMonth = timeseries.Month(startMonth)

	var adjs forecast.Adjustments
	if err := json.Unmarshal([]byte(adjustments), &adjs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal adjustments of %s: %w", v.ID, err)
	}
	if len(adjs) > 0 {
		v.Adjustments = adjs
	}
	if err := json.Unmarshal([]byte(entities), &v.Entities); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entities of %s: %w", v.ID, err)
	}
	if err := json.Unmarshal([]byte(summary), &v.Summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary of %s: %w", v.ID, err)
	}
	return &v, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
