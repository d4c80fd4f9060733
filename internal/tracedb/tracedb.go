// Package tracedb persists finished calibration sessions, with their raw and
// filtered traces, in a SQLite database.
package tracedb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/clockdrive/internal/monitoring"
	"github.com/banshee-data/clockdrive/internal/road"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUnknownKind is returned for a point kind other than raw or filtered.
var ErrUnknownKind = errors.New("tracedb: unknown point kind")

// PointKind distinguishes the stored traces of a session.
type PointKind string

const (
	KindRaw      PointKind = "raw"
	KindFiltered PointKind = "filtered"
)

func (k PointKind) valid() bool { return k == KindRaw || k == KindFiltered }

// SessionRecord is one row of the sessions table.
type SessionRecord struct {
	ID            uuid.UUID     `json:"id"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
	Interval      time.Duration `json:"interval"`
	Segments      int           `json:"segments"`
	FilterRadius  int           `json:"filter_radius"`
	Normalization string        `json:"normalization"`
	ExportPath    string        `json:"export_path"`
	Samples       int           `json:"samples"`
	PathLength    float64       `json:"path_length"`
	ResidualRMS   float64       `json:"residual_rms"`
}

// DB wraps the trace database.
type DB struct {
	*sql.DB
	path string
}

// Open opens or creates the database at path and migrates it to the latest
// schema.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps the foreign_keys pragma in effect and avoids
	// SQLITE_BUSY between the recorder and the API.
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	db := &DB{DB: sqlDB, path: path}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	monitoring.Logf("opened trace database %s", path)
	return db, nil
}

// MigrateUp applies every pending migration.
func (db *DB) MigrateUp() error {
	m, err := db.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed: that would close the shared *sql.DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the applied schema version, 0 when none.
func (db *DB) MigrateVersion() (version uint, dirty bool, err error) {
	m, err := db.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (db *DB) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}
	return m, nil
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Logf("[migrate] "+format, v...)
}

func (migrateLogger) Verbose() bool { return false }

// SaveSession stores rec and both traces in a single transaction.
func (db *DB) SaveSession(ctx context.Context, rec SessionRecord, raw, filtered road.Trace) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save session: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (
			session_id, started_at, finished_at, interval_ns, segments,
			filter_radius, normalization, export_path, samples, path_length, residual_rms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.StartedAt.UTC().UnixNano(), rec.FinishedAt.UTC().UnixNano(),
		rec.Interval.Nanoseconds(), rec.Segments, rec.FilterRadius, rec.Normalization,
		rec.ExportPath, rec.Samples, rec.PathLength, rec.ResidualRMS,
	)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", rec.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO session_points (session_id, kind, seq, x, y) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare points: %w", err)
	}
	defer stmt.Close()

	for _, set := range []struct {
		kind  PointKind
		trace road.Trace
	}{{KindRaw, raw}, {KindFiltered, filtered}} {
		for i, p := range set.trace {
			if _, err = stmt.ExecContext(ctx, rec.ID.String(), string(set.kind), i, p.X, p.Y); err != nil {
				return fmt.Errorf("insert %s point %d: %w", set.kind, i, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit session %s: %w", rec.ID, err)
	}
	return nil
}

// Sessions returns up to limit sessions, most recent first. A limit of zero
// or less returns all sessions.
func (db *DB) Sessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx, `
		SELECT session_id, started_at, finished_at, interval_ns, segments,
		       filter_radius, normalization, export_path, samples, path_length, residual_rms
		FROM sessions
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var (
			rec               SessionRecord
			id                string
			started, finished int64
			intervalNs        int64
		)
		if err := rows.Scan(&id, &started, &finished, &intervalNs, &rec.Segments,
			&rec.FilterRadius, &rec.Normalization, &rec.ExportPath, &rec.Samples,
			&rec.PathLength, &rec.ResidualRMS); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("session id %q: %w", id, err)
		}
		rec.StartedAt = time.Unix(0, started).UTC()
		rec.FinishedAt = time.Unix(0, finished).UTC()
		rec.Interval = time.Duration(intervalNs)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Points returns the stored trace of the given kind in recording order.
func (db *DB) Points(ctx context.Context, sessionID uuid.UUID, kind PointKind) (road.Trace, error) {
	if !kind.valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	rows, err := db.QueryContext(ctx, `
		SELECT x, y FROM session_points
		WHERE session_id = ? AND kind = ?
		ORDER BY seq`, sessionID.String(), string(kind))
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	defer rows.Close()

	trace := road.Trace{}
	for rows.Next() {
		var p road.Position
		if err := rows.Scan(&p.X, &p.Y); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		trace = append(trace, p)
	}
	return trace, rows.Err()
}
