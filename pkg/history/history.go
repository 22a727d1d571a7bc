// Generation run history for the coating host.
// Records every generation run and its outcome in a local SQLite store.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	hosterr "coating-host/pkg/errors"
)

// Run statuses. A run starts in progress and finishes in exactly one of the
// terminal states.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusEmpty      = "empty"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// Record is one generation run.
type Record struct {
	ID          string     `json:"id"`
	ProjectName string     `json:"projectName"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"startedAt"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`

	ShapeCount   int    `json:"shapeCount"`
	MoveCount    int    `json:"moveCount"`
	ProgramBytes int64  `json:"programBytes"`
	Error        string `json:"error,omitempty"`
}

// Duration returns the run length, or zero while the run is in progress.
func (r *Record) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Totals holds aggregate statistics over all recorded runs.
type Totals struct {
	TotalRuns     int     `json:"totalRuns"`
	CompletedRuns int     `json:"completedRuns"`
	FailedRuns    int     `json:"failedRuns"`
	TotalMoves    int64   `json:"totalMoves"`
	TotalBytes    int64   `json:"totalBytes"`
	LongestRun    float64 `json:"longestRunSeconds"`
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	project_name  TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL,
	started_at    INTEGER NOT NULL,
	finished_at   INTEGER,
	shape_count   INTEGER NOT NULL DEFAULT 0,
	move_count    INTEGER NOT NULL DEFAULT 0,
	program_bytes INTEGER NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at DESC);
`

// Store is a persistent run history backed by SQLite. Safe for concurrent
// use; the database is opened with a single connection so writers serialize
// at the pool instead of hitting SQLITE_BUSY.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at the given path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, hosterr.StorageError("create history dir", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, hosterr.StorageError("open history db", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, hosterr.StorageError("apply history schema", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun records a new in-progress run and returns it.
func (s *Store) StartRun(ctx context.Context, projectName string) (*Record, error) {
	rec := &Record{
		ID:          uuid.NewString(),
		ProjectName: projectName,
		Status:      StatusInProgress,
		StartedAt:   time.Now().UTC().Truncate(time.Second),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, project_name, status, started_at)
		VALUES (?, ?, ?, ?)`,
		rec.ID, rec.ProjectName, rec.Status, rec.StartedAt.Unix())
	if err != nil {
		return nil, hosterr.StorageError("insert run", err)
	}
	return rec, nil
}

// FinishRun marks a run terminal with its outcome and counters.
func (s *Store) FinishRun(ctx context.Context, id, status string, shapeCount, moveCount int, programBytes int64, runErr string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, finished_at = ?, shape_count = ?, move_count = ?,
		    program_bytes = ?, error = ?
		WHERE id = ?`,
		status, time.Now().UTC().Unix(), shapeCount, moveCount,
		programBytes, runErr, id)
	if err != nil {
		return hosterr.StorageError("update run", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return hosterr.StorageError("update run", err)
	}
	if n == 0 {
		return hosterr.New(hosterr.ErrStorage, fmt.Sprintf("run not found: %s", id))
	}
	return nil
}

// Get returns one run by id.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_name, status, started_at, finished_at,
		       shape_count, move_count, program_bytes, error
		FROM runs WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, hosterr.New(hosterr.ErrStorage, fmt.Sprintf("run not found: %s", id))
		}
		return nil, hosterr.StorageError("query run", err)
	}
	return rec, nil
}

// List returns runs most recent first. A limit of zero or less means 50.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_name, status, started_at, finished_at,
		       shape_count, move_count, program_bytes, error
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, hosterr.StorageError("list runs", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, hosterr.StorageError("scan run", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, hosterr.StorageError("list runs", err)
	}
	return out, nil
}

// Totals returns aggregate statistics over all runs.
func (s *Store) Totals(ctx context.Context) (*Totals, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(status = ?), 0),
		       COALESCE(SUM(status = ?), 0),
		       COALESCE(SUM(move_count), 0),
		       COALESCE(SUM(program_bytes), 0),
		       COALESCE(MAX(CASE WHEN finished_at IS NOT NULL
		                     THEN finished_at - started_at END), 0)
		FROM runs`, StatusCompleted, StatusFailed)

	var t Totals
	if err := row.Scan(&t.TotalRuns, &t.CompletedRuns, &t.FailedRuns,
		&t.TotalMoves, &t.TotalBytes, &t.LongestRun); err != nil {
		return nil, hosterr.StorageError("query totals", err)
	}
	return &t, nil
}

// Delete removes one run from the history.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return hosterr.StorageError("delete run", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return hosterr.StorageError("delete run", err)
	}
	if n == 0 {
		return hosterr.New(hosterr.ErrStorage, fmt.Sprintf("run not found: %s", id))
	}
	return nil
}

// Reset clears the entire history.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs`); err != nil {
		return hosterr.StorageError("reset history", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var started int64
	var finished sql.NullInt64
	err := row.Scan(&rec.ID, &rec.ProjectName, &rec.Status, &started,
		&finished, &rec.ShapeCount, &rec.MoveCount, &rec.ProgramBytes,
		&rec.Error)
	if err != nil {
		return nil, err
	}
	rec.StartedAt = time.Unix(started, 0).UTC()
	if finished.Valid {
		t := time.Unix(finished.Int64, 0).UTC()
		rec.FinishedAt = &t
	}
	return &rec, nil
}
