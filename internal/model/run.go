package model

import "time"

// RunStatus represents the current state of a recorded check run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one invocation of the checker over a data file.
type Run struct {
	ID         string     `json:"id"`
	ConfigPath string     `json:"config_path"`
	DataPath   string     `json:"data_path"`
	CenterName string     `json:"center_name"`
	Format     string     `json:"format"`
	Status     RunStatus  `json:"status"`
	Summary    Summary    `json:"summary"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
