package domain

import "time"

// RunStatus is the outcome of an action run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is a single action execution recorded in the catalog.
type Run struct {
	ID         string
	Action     string
	Params     map[string]any
	Outputs    map[string]string
	Records    map[string]int
	Status     RunStatus
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Download is a remote file retrieved during a run.
type Download struct {
	RunID     string
	URL       string
	Bytes     int64
	SHA256    string
	Attempts  int
	FetchedAt time.Time
}
