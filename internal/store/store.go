// Package store keeps the history of optimization and research runs.
package store

import (
	"time"
)

// Store run history storage interface
type Store interface {
	// Runs
	CreateRun(kind, query string) (string, error)
	FinishRun(id, status, detail string) error
	GetRun(id string) (*Run, error)
	ListRuns(limit int) ([]*Run, error)

	// Optimization rounds
	SaveRound(round *Round) error
	GetRounds(runID string) ([]*Round, error)

	// Close connection
	Close() error
}

// Run kinds
const (
	KindOptimize = "optimize"
	KindResearch = "research"
	KindSelect   = "select"
)

// Run statuses
const (
	StatusRunning  = "running"
	StatusSelected = "selected"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// Run is one optimization or research invocation.
type Run struct {
	ID         string
	Kind       string
	Query      string
	Status     string
	Detail     string
	CreatedAt  time.Time
	FinishedAt *time.Time
}

// Round is one select/optimize iteration of an optimization run.
type Round struct {
	ID          int64
	RunID       string
	Round       int
	Selected    bool
	Title       string
	Snippet     string
	Link        string
	RawResponse string
	CreatedAt   time.Time
}
