// Package journal records the outcome of every album a run processes in a SQLite database.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

type Status string

const (
	StatusTagged   Status = "tagged"
	StatusMismatch Status = "mismatch"
	StatusError    Status = "error"
)

type Entry struct {
	ID    uuid.UUID
	RunID uuid.UUID
	Time  time.Time

	Dir    string
	Artist string
	Album  string
	Status Status

	FoundArtist string
	FoundAlbum  string
	Tracks      int
	Unmatched   int
	Error       string
}

type Journal struct {
	db *sql.DB
}

func Open(ctx context.Context, path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	j := &Journal{db: db}
	if err := j.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

var migrations = []struct {
	version string
	sql     string
}{
	{"0001_entries", `
		CREATE TABLE entries (
			id           TEXT PRIMARY KEY,
			run_id       TEXT NOT NULL,
			time         INTEGER NOT NULL,
			dir          TEXT NOT NULL,
			artist       TEXT NOT NULL,
			album        TEXT NOT NULL,
			status       TEXT NOT NULL,
			found_artist TEXT NOT NULL DEFAULT '',
			found_album  TEXT NOT NULL DEFAULT '',
			tracks       INTEGER NOT NULL DEFAULT 0,
			unmatched    INTEGER NOT NULL DEFAULT 0,
			error        TEXT NOT NULL DEFAULT ''
		)
	`},
	{"0002_entries_status", `CREATE INDEX entries_status ON entries (status, time)`},
}

func (j *Journal) migrate(ctx context.Context) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)"); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	for _, m := range migrations {
		var count int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM schema_migrations WHERE version = ?", m.version).Scan(&count); err != nil {
			return fmt.Errorf("scan migration version: %w", err)
		}
		if count > 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
			return fmt.Errorf("record migration %s: %w", m.version, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}

// Record stores e, assigning an ID and time when they are unset.
func (j *Journal) Record(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO entries (id, run_id, time, dir, artist, album, status, found_artist, found_album, tracks, unmatched, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.RunID.String(), e.Time.UnixMilli(), e.Dir, e.Artist, e.Album, string(e.Status),
		e.FoundArtist, e.FoundAlbum, e.Tracks, e.Unmatched, e.Error,
	)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

type Filter struct {
	Status Status
	RunID  uuid.UUID
	Limit  int
}

// List returns matching entries, newest first.
func (j *Journal) List(ctx context.Context, f Filter) ([]Entry, error) {
	var where []string
	var args []any
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.RunID != uuid.Nil {
		where = append(where, "run_id = ?")
		args = append(args, f.RunID.String())
	}

	query := "SELECT id, run_id, time, dir, artist, album, status, found_artist, found_album, tracks, unmatched, error FROM entries"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY time DESC, rowid DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var id, runID, status string
		var millis int64
		if err := rows.Scan(&id, &runID, &millis, &e.Dir, &e.Artist, &e.Album, &status, &e.FoundArtist, &e.FoundAlbum, &e.Tracks, &e.Unmatched, &e.Error); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse id: %w", err)
		}
		if e.RunID, err = uuid.Parse(runID); err != nil {
			return nil, fmt.Errorf("parse run id: %w", err)
		}
		e.Time = time.UnixMilli(millis)
		e.Status = Status(status)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}
