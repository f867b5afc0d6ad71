package model

import "time"

// RunStatus represents the current state of a discovery run.
type RunStatus string

const (
	RunStatusQueued      RunStatus = "queued"
	RunStatusProfiling   RunStatus = "profiling"
	RunStatusLocal       RunStatus = "local"
	RunStatusDiscovering RunStatus = "discovering"
	RunStatusSelecting   RunStatus = "selecting"
	RunStatusExporting   RunStatus = "exporting"
	RunStatusComplete    RunStatus = "complete"
	RunStatusFailed      RunStatus = "failed"
)

// RunRequest captures the inputs of one discovery run.
type RunRequest struct {
	CVPath           string   `json:"cv_path,omitempty"`
	Keywords         string   `json:"keywords,omitempty"`
	UniversitiesPath string   `json:"universities_path"`
	OutPath          string   `json:"out_path,omitempty"`
	Regions          []string `json:"regions,omitempty"`
	Countries        []string `json:"countries,omitempty"`
	QSMin            int      `json:"qs_min,omitempty"`
	QSMax            int      `json:"qs_max,omitempty"`
	Target           int      `json:"target"`
	FreeTier         bool     `json:"free_tier,omitempty"`
}

// Run represents a single discovery run.
type Run struct {
	ID        string     `json:"id"`
	Request   RunRequest `json:"request"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	Universities int            `json:"universities"`
	LocalHits    int            `json:"local_hits"`
	OnlineHits   int            `json:"online_hits"`
	Selected     int            `json:"selected"`
	DropReasons  map[string]int `json:"drop_reasons,omitempty"`
	Phases       []PhaseResult  `json:"phases"`
	Error        string         `json:"error,omitempty"`
}

// RunPhase represents a phase within a run.
type RunPhase struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	Name      string       `json:"name"`
	Status    PhaseStatus  `json:"status"`
	Result    *PhaseResult `json:"result,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}

// PhaseStatus represents the current state of a pipeline phase.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// PhaseResult holds the outcome of a pipeline phase.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   PhaseStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RunFilter controls run listing.
type RunFilter struct {
	Status RunStatus
	Limit  int
	Offset int
}
