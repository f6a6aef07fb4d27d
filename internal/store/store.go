package store

import (
	"context"

	"github.com/sells-group/coordcheck/internal/model"
)

// Store defines the persistence interface for recorded check runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run model.Run) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, status model.RunStatus, summary model.Summary) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Points
	RecordPoint(ctx context.Context, runID string, res model.PointResult) error
	ListPoints(ctx context.Context, runID string) ([]model.PointResult, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// RunRecorder binds a Store to one run so it can receive point results
// as they are produced.
type RunRecorder struct {
	store Store
	runID string
}

// ForRun returns a recorder writing points of runID into s.
func ForRun(s Store, runID string) *RunRecorder {
	return &RunRecorder{store: s, runID: runID}
}

// Record stores res under the bound run.
func (r *RunRecorder) Record(ctx context.Context, res model.PointResult) error {
	return r.store.RecordPoint(ctx, r.runID, res)
}
