// Package store records composition runs and their outputs in SQLite so
// served videos can be described and expired across restarts.
package store

import (
	"context"
	"database/sql"
	"embed"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
)

var ErrNotFound = errors.New("run not found")

// Run is one recorded composition.
type Run struct {
	ID         string
	Status     Status
	Output     string
	OutputName string
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ExpiresAt  time.Time // zero until the run succeeds
}

type Store struct {
	conn   *sql.DB
	logger zerolog.Logger
	now    func() time.Time
}

func Open(dbPath string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create database directory")
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, errors.Wrapf(err, "failed to execute %s", pragma)
		}
	}

	s := &Store{
		conn:   conn,
		logger: logger.With().Str("component", "store").Logger(),
		now:    time.Now,
	}

	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to run migrations")
	}

	if n, err := s.markInterruptedRuns(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to mark interrupted runs")
	} else if n > 0 {
		s.logger.Info().Int64("runs", n).Msg("marked interrupted runs as failed")
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	migrations, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return errors.Wrap(err, "failed to read migrations")
	}

	for _, m := range migrations {
		if m.IsDir() {
			continue
		}
		name := m.Name()
		if s.isMigrationApplied(name) {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return errors.Wrapf(err, "failed to read migration %s", name)
		}
		if _, err := s.conn.Exec(string(content)); err != nil {
			return errors.Wrapf(err, "failed to execute migration %s", name)
		}
		if _, err := s.conn.Exec("INSERT INTO _migrations (name) VALUES (?)", name); err != nil {
			return errors.Wrapf(err, "failed to record migration %s", name)
		}
		s.logger.Debug().Str("name", name).Msg("applied migration")
	}
	return nil
}

func (s *Store) isMigrationApplied(name string) bool {
	var exists int
	err := s.conn.QueryRow("SELECT 1 FROM sqlite_master WHERE type='table' AND name='_migrations'").Scan(&exists)
	if err != nil {
		return false
	}

	var applied int
	err = s.conn.QueryRow("SELECT 1 FROM _migrations WHERE name = ?", name).Scan(&applied)
	return err == nil && applied == 1
}

func (s *Store) markInterruptedRuns() (int64, error) {
	res, err := s.conn.Exec(
		`UPDATE runs SET status = ?, error = 'interrupted by restart', updated_at = ? WHERE status = ?`,
		StatusFailed, formatTime(s.now()), StatusRunning)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CreateRun records a run that has just started.
func (s *Store) CreateRun(ctx context.Context, id string) error {
	now := formatTime(s.now())
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO runs (id, status, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, StatusRunning, now, now)
	return errors.Wrapf(err, "failed to create run %s", id)
}

// CompleteRun marks a run succeeded with its output, kept until expires.
func (s *Store) CompleteRun(ctx context.Context, id, output string, expires time.Time) error {
	return s.update(ctx, id,
		`UPDATE runs SET status = ?, output = ?, output_name = ?, expires_at = ?, updated_at = ? WHERE id = ?`,
		StatusSucceeded, output, filepath.Base(output), formatTime(expires), formatTime(s.now()), id)
}

// FailRun marks a run failed with its error message.
func (s *Store) FailRun(ctx context.Context, id, message string) error {
	return s.update(ctx, id,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		StatusFailed, message, formatTime(s.now()), id)
}

// MarkExpired records that a run's output was deleted.
func (s *Store) MarkExpired(ctx context.Context, id string) error {
	return s.update(ctx, id,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		StatusExpired, formatTime(s.now()), id)
}

func (s *Store) update(ctx context.Context, id, query string, args ...interface{}) error {
	res, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrapf(err, "failed to update run %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.WithStack(err)
	}
	if n == 0 {
		return errors.Wrap(ErrNotFound, id)
	}
	return nil
}

const runColumns = `id, status, output, output_name, error, created_at, updated_at, expires_at`

// GetRun returns the run with the given ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// FindByOutput returns the succeeded run that produced the named file.
func (s *Store) FindByOutput(ctx context.Context, name string) (*Run, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE output_name = ? AND status = ? ORDER BY created_at DESC LIMIT 1`,
		name, StatusSucceeded)
	return scanRun(row)
}

// ExpiredRuns returns succeeded runs whose output expired before now.
func (s *Store) ExpiredRuns(ctx context.Context, now time.Time) ([]Run, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE status = ? AND expires_at IS NOT NULL AND expires_at <= ? ORDER BY expires_at`,
		StatusSucceeded, formatTime(now))
	if err != nil {
		return nil, errors.Wrap(err, "failed to query expired runs")
	}
	return collectRuns(rows)
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	return collectRuns(rows)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		r                Run
		status           string
		created, updated string
		expires          sql.NullString
	)
	err := row.Scan(&r.ID, &status, &r.Output, &r.OutputName, &r.Error, &created, &updated, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan run")
	}

	r.Status = Status(status)
	r.CreatedAt = parseTime(created)
	r.UpdatedAt = parseTime(updated)
	if expires.Valid {
		r.ExpiresAt = parseTime(expires.String)
	}
	return &r, nil
}

func collectRuns(rows *sql.Rows) ([]Run, error) {
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, errors.WithStack(rows.Err())
}

// Timestamps are stored as fixed-width UTC text so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
