package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore SQLite run history implementation
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite storage
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}

	if err := store.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database tables: %w", err)
	}

	return store, nil
}

// initTables initializes database tables
func (s *SQLiteStore) initTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			query TEXT NOT NULL,
			status TEXT NOT NULL,
			detail TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			finished_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS rounds (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			selected INTEGER NOT NULL DEFAULT 0,
			title TEXT,
			snippet TEXT,
			link TEXT,
			raw_response TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (run_id) REFERENCES runs(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_rounds_run_id ON rounds(run_id)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute SQL: %s, error: %w", query, err)
		}
	}
	return nil
}

// CreateRun records a new run in the running state
func (s *SQLiteStore) CreateRun(kind, query string) (string, error) {
	id := uuid.New().String()

	_, err := s.db.Exec(
		"INSERT INTO runs (id, kind, query, status, created_at) VALUES (?, ?, ?, ?, ?)",
		id, kind, query, StatusRunning, time.Now(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}

	return id, nil
}

// FinishRun sets the final status of a run
func (s *SQLiteStore) FinishRun(id, status, detail string) error {
	res, err := s.db.Exec(
		"UPDATE runs SET status = ?, detail = ?, finished_at = ? WHERE id = ?",
		status, detail, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

const runColumns = "id, kind, query, status, detail, created_at, finished_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var detail sql.NullString
	var finished sql.NullTime
	if err := row.Scan(&run.ID, &run.Kind, &run.Query, &run.Status, &detail, &run.CreatedAt, &finished); err != nil {
		return nil, err
	}
	if detail.Valid {
		run.Detail = detail.String
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

// GetRun gets a run by ID. A missing run returns nil, nil.
func (s *SQLiteStore) GetRun(id string) (*Run, error) {
	run, err := scanRun(s.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the newest runs first
func (s *SQLiteStore) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		"SELECT "+runColumns+" FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SaveRound saves one optimization round
func (s *SQLiteStore) SaveRound(round *Round) error {
	result, err := s.db.Exec(
		`INSERT INTO rounds (run_id, round, selected, title, snippet, link, raw_response, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		round.RunID, round.Round, round.Selected, round.Title, round.Snippet, round.Link, round.RawResponse, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save round: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		round.ID = id
	}
	return nil
}

// GetRounds gets the rounds of a run in order
func (s *SQLiteStore) GetRounds(runID string) ([]*Round, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, round, selected, title, snippet, link, raw_response, created_at
		 FROM rounds
		 WHERE run_id = ?
		 ORDER BY round ASC, id ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get rounds: %w", err)
	}
	defer rows.Close()

	var rounds []*Round
	for rows.Next() {
		var r Round
		var title, snippet, link, raw sql.NullString
		if err := rows.Scan(&r.ID, &r.RunID, &r.Round, &r.Selected, &title, &snippet, &link, &raw, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		r.Title, r.Snippet, r.Link, r.RawResponse = title.String, snippet.String, link.String, raw.String
		rounds = append(rounds, &r)
	}
	return rounds, rows.Err()
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
