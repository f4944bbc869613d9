// Package catalog stores action runs and downloaded files in SQLite.
package catalog

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/bft-labs/rescript/internal/domain"
	"github.com/bft-labs/rescript/internal/ports"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements ports.RunRepository on SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the catalog at path and applies migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // sqlite
	db.SetConnMaxLifetime(0)

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate catalog: %w", err)
	}
	return &Store{db: db}, nil
}

// migrateUp applies embedded migrations. The migrate instance is not closed
// because closing it would close db.
func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun records a new run.
func (s *Store) StartRun(ctx context.Context, run domain.Run) error {
	params, err := marshal(run.Params)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, action, params, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Action, params, string(run.Status), formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun updates status, outputs and record counts.
func (s *Store) FinishRun(ctx context.Context, run domain.Run) error {
	outputs, err := marshal(run.Outputs)
	if err != nil {
		return err
	}
	records, err := marshal(run.Records)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET outputs = ?, records = ?, status = ?, error = ?, finished_at = ? WHERE id = ?`,
		outputs, records, string(run.Status), run.Error, formatTime(run.FinishedAt), run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update run %s: not found", run.ID)
	}
	return nil
}

// RecordDownload stores a retrieved file.
func (s *Store) RecordDownload(ctx context.Context, d domain.Download) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO downloads (run_id, url, bytes, sha256, attempts, fetched_at) VALUES (?, ?, ?, ?, ?, ?)`,
		d.RunID, d.URL, d.Bytes, d.SHA256, d.Attempts, formatTime(d.FetchedAt),
	)
	if err != nil {
		return fmt.Errorf("insert download: %w", err)
	}
	return nil
}

// ListRuns returns up to limit runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action, params, outputs, records, status, error, started_at, finished_at
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Run
	for rows.Next() {
		var (
			r                         domain.Run
			params, outputs, records  string
			status, started, finished string
		)
		if err := rows.Scan(&r.ID, &r.Action, &params, &outputs, &records, &status, &r.Error, &started, &finished); err != nil {
			return nil, err
		}
		r.Status = domain.RunStatus(status)
		if err := json.Unmarshal([]byte(params), &r.Params); err != nil {
			return nil, fmt.Errorf("run %s params: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(outputs), &r.Outputs); err != nil {
			return nil, fmt.Errorf("run %s outputs: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(records), &r.Records); err != nil {
			return nil, fmt.Errorf("run %s records: %w", r.ID, err)
		}
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseTime(finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListDownloads returns downloads for runID, or all downloads when empty.
func (s *Store) ListDownloads(ctx context.Context, runID string) ([]domain.Download, error) {
	q := `SELECT run_id, url, bytes, sha256, attempts, fetched_at FROM downloads`
	var args []any
	if runID != "" {
		q += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	q += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Download
	for rows.Next() {
		var d domain.Download
		var fetched string
		if err := rows.Scan(&d.RunID, &d.URL, &d.Bytes, &d.SHA256, &d.Attempts, &fetched); err != nil {
			return nil, err
		}
		d.FetchedAt = parseTime(fetched)
		out = append(out, d)
	}
	return out, rows.Err()
}

func marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return "{}", nil
	}
	return string(b), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

var _ ports.RunRepository = (*Store)(nil)
