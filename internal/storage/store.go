package storage

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// Store keeps a traceability snapshot of every documentation run.
type Store interface {
	// SaveRun persists a run with its requirements in one transaction.
	SaveRun(ctx context.Context, run *Run) error

	// LatestRun returns the most recent run of group, or ErrNotFound.
	LatestRun(ctx context.Context, group string) (*Run, error)

	// Runs lists the runs of group, newest first, without requirements.
	Runs(ctx context.Context, group string, limit int) ([]*Run, error)

	Close() error
}

type Run struct {
	ID           string
	Group        string
	Tag          string
	Language     string
	Commit       string
	CreatedAt    time.Time
	Requirements []TracedRequirement
}

// TracedRequirement is a rendered requirement with its document numbering.
type TracedRequirement struct {
	Number        int
	Section       string
	Text          string
	OriginalText  string
	File          string
	Line          int
	Steps         []string
	Verifications []string
}
