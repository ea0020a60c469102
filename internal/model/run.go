package model

import "time"

// RunStatus tracks a generalization run through its lifecycle.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunParams captures the inputs of a run for later QA and reproduction.
type RunParams struct {
	Change        string `json:"change"`
	Revision      string `json:"revision"`
	Output        string `json:"output"`
	PriorityTable string `json:"priority_table"`
	FromValue     int    `json:"from_value"`
	ToValue       int    `json:"to_value"`
	ByValue       int    `json:"by_value"`
	NeighborMode  string `json:"neighbor_mode"`
	Engine        string `json:"engine"`
}

// Run is one invocation of the generalizer.
type Run struct {
	ID        string    `json:"id"`
	Params    RunParams `json:"params"`
	Status    RunStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IterationStat summarizes one threshold pass.
type IterationStat struct {
	Threshold    int           `json:"threshold"`
	Selected     int           `json:"selected"`
	Merged       int           `json:"merged"`
	Islands      int           `json:"islands"`
	PolygonCount int           `json:"polygon_count"`
	Duration     time.Duration `json:"duration"`
}
