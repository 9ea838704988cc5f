// Package ledger records per-track outcomes of each run in SQLite.
//
// The ledger is history only. Resumption never depends on it: a rerun finds
// finished tracks through the files already in the output directory.
package ledger

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed sql/0001_init.sql
var schema string

// ErrNoRuns is returned by LastRun on an empty ledger.
var ErrNoRuns = errors.New("no runs recorded")

// Run is one invocation of the pipeline.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running or after a crash
	Catalogue  string
	Force      bool
}

// Entry is the outcome of one track within a run.
type Entry struct {
	Position int
	Title    string
	Artist   string
	Path     string
	State    string
	Error    string
	Acquired bool
	Cooldown time.Duration
}

// Store is a SQLite-backed ledger.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the ledger database at path. The path can be
// ":memory:" for an in-memory ledger.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	// One connection keeps ":memory:" databases shared and writes serialized.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping ledger: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate ledger: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginRun inserts a new run and returns its id.
func (s *Store) BeginRun(catalogue string, force bool) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO runs (id, started_at, catalogue, forced) VALUES (?, ?, ?, ?)`,
		id, s.now().UTC(), catalogue, force,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return id, nil
}

// Record stores the outcome of one track.
func (s *Store) Record(runID string, e Entry) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO outcomes
			(run_id, position, title, artist, path, state, error, acquired, cooldown_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, e.Position, e.Title, e.Artist, e.Path, e.State, e.Error, e.Acquired, e.Cooldown.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	return nil
}

// FinishRun stamps the run's finish time.
func (s *Store) FinishRun(runID string) error {
	res, err := s.db.Exec(`UPDATE runs SET finished_at = ? WHERE id = ?`, s.now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// LastRun returns the most recently started run.
func (s *Store) LastRun() (*Run, error) {
	row := s.db.QueryRow(`
		SELECT id, started_at, finished_at, catalogue, forced
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT 1`)

	var (
		r        Run
		finished sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.StartedAt, &finished, &r.Catalogue, &r.Force); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoRuns
		}
		return nil, fmt.Errorf("failed to read last run: %w", err)
	}
	if finished.Valid {
		r.FinishedAt = finished.Time
	}
	return &r, nil
}

// Outcomes lists the entries of a run in catalogue order. A non-empty state
// restricts the list to that state.
func (s *Store) Outcomes(runID, state string) ([]Entry, error) {
	query := `
		SELECT position, title, artist, path, state, error, acquired, cooldown_ms
		FROM outcomes
		WHERE run_id = ?`
	args := []any{runID}
	if state != "" {
		query += ` AND state = ?`
		args = append(args, state)
	}
	query += ` ORDER BY position`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e  Entry
			ms int64
		)
		if err := rows.Scan(&e.Position, &e.Title, &e.Artist, &e.Path, &e.State, &e.Error, &e.Acquired, &ms); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		e.Cooldown = time.Duration(ms) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
