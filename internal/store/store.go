// Package store persists run bookkeeping: one row per generalization run,
// one row per threshold pass, and the final QA counters. Two backends are
// provided, SQLite for single-machine use and PostgreSQL for shared
// deployments.
package store

import (
	"context"

	"github.com/sells-group/corine-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for run bookkeeping.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, params model.RunParams) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Per-threshold statistics
	RecordIteration(ctx context.Context, runID string, stat model.IterationStat) error
	ListIterations(ctx context.Context, runID string) ([]model.IterationStat, error)

	// QA counters, written once when the run finishes
	RecordQACounts(ctx context.Context, runID string, counts map[string]int64) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
