// Package store persists finished annealing runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	objective   TEXT NOT NULL,
	schedule    TEXT NOT NULL,
	status      INTEGER NOT NULL,
	cause       INTEGER NOT NULL,
	message     TEXT NOT NULL,
	jmin        REAL NOT NULL,
	xmin        TEXT NOT NULL,
	t           REAL NOT NULL,
	feval       INTEGER NOT NULL,
	iters       INTEGER NOT NULL,
	accept      INTEGER NOT NULL,
	seed        INTEGER NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS runs_finished_at ON runs (finished_at);
`

// timeFormat has a fixed width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("run not found")

// Run is one stored run.
type Run struct {
	ID         string
	Objective  string
	Schedule   string
	Status     int
	Cause      int
	Message    string
	JMin       float64
	XMin       []float64
	T          float64
	FEval      int
	Iters      int
	Accept     int
	Seed       uint64
	StartedAt  time.Time
	FinishedAt time.Time
}

// Store manages runs in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens the database at dsn and runs migrations. ":memory:" is accepted.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if dsn == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts or replaces run.
func (s *Store) Save(ctx context.Context, run Run) error {
	xmin, err := json.Marshal(run.XMin)
	if err != nil {
		return fmt.Errorf("marshal xmin: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs
		 (id, objective, schedule, status, cause, message, jmin, xmin, t, feval, iters, accept, seed, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Objective, run.Schedule, run.Status, run.Cause, run.Message,
		run.JMin, string(xmin), run.T, run.FEval, run.Iters, run.Accept, int64(run.Seed),
		run.StartedAt.UTC().Format(timeFormat),
		run.FinishedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

const selectRun = `SELECT id, objective, schedule, status, cause, message, jmin, xmin, t, feval, iters, accept, seed, started_at, finished_at FROM runs`

// Get reads the run with the given id.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("get run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// List returns up to limit runs, most recently finished first. A limit of
// zero or less returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, selectRun+` ORDER BY finished_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run               Run
		xmin              string
		seed              int64
		started, finished string
	)
	err := sc.Scan(&run.ID, &run.Objective, &run.Schedule, &run.Status, &run.Cause, &run.Message,
		&run.JMin, &xmin, &run.T, &run.FEval, &run.Iters, &run.Accept, &seed, &started, &finished)
	if err != nil {
		return Run{}, err
	}
	if err := json.Unmarshal([]byte(xmin), &run.XMin); err != nil {
		return Run{}, fmt.Errorf("unmarshal xmin: %w", err)
	}
	run.Seed = uint64(seed)
	if run.StartedAt, err = time.Parse(timeFormat, started); err != nil {
		return Run{}, fmt.Errorf("parse started_at: %w", err)
	}
	if run.FinishedAt, err = time.Parse(timeFormat, finished); err != nil {
		return Run{}, fmt.Errorf("parse finished_at: %w", err)
	}
	return run, nil
}
