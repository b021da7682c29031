package domain

import "time"

// HealingRecord is one remembered (error, fix, outcome) tuple.
type HealingRecord struct {
	Fingerprint  string    `json:"fingerprint"`
	ErrorSnippet string    `json:"error_snippet"`
	Fix          string    `json:"fix"`
	Success      bool      `json:"success"`
	Backend      Backend   `json:"backend"`
	Timestamp    time.Time `json:"timestamp"`
}

// RunResult is the outcome of executing a test script once.
type RunResult struct {
	Passed   bool
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// ErrorText returns the text fed to the AI for a failed run.
func (r RunResult) ErrorText() string {
	if r.Stderr != "" {
		return r.Stderr
	}
	return r.Stdout
}

// FixRequest is the input to a single fix lookup.
type FixRequest struct {
	File       string
	Code       string
	ErrorLog   string
	Screenshot []byte
	Feedback   string

	// Escalated keeps the backend chosen by a forced switch instead of routing again.
	Escalated bool
}

// FixSource says where a fix came from.
type FixSource string

const (
	FixSourceBackend FixSource = "backend"
	FixSourceMemory  FixSource = "memory"
)

// Fix is a usable code fix plus provenance.
type Fix struct {
	Code    string
	Backend Backend
	Model   string
	Source  FixSource
}

// PatchResult summarizes a surgical edit.
type PatchResult struct {
	Path       string
	BackupPath string
	Kept       int
	Commented  int
	Inserted   int
}

// Changed reports whether the patch altered the file content.
func (p PatchResult) Changed() bool {
	return p.Commented > 0 || p.Inserted > 0
}

// HealState is the terminal state of a RetryLoop.
type HealState string

const (
	HealPassed HealState = "passed"
	HealFailed HealState = "failed"
)

// HealOutcome is what the RetryLoop reports for one file.
type HealOutcome struct {
	File     string
	State    HealState
	Attempts int
	Error    string
	Model    string
	Reason   string
}

// Healed reports whether the file ended in the passed state.
func (o HealOutcome) Healed() bool {
	return o.State == HealPassed
}

// BatchReport aggregates a directory heal.
type BatchReport struct {
	Outcomes []HealOutcome
	Failures int
}

// HealingRun is one row of the run log.
type HealingRun struct {
	Timestamp time.Time `json:"timestamp"`
	File      string    `json:"file"`
	Error     *string   `json:"error"`
	Healed    bool      `json:"healed"`
	Model     string    `json:"model"`
}

// RunStats are the aggregates kept over the run log.
type RunStats struct {
	TotalRuns   int     `json:"total_runs"`
	TotalHealed int     `json:"total_healed"`
	SavedHours  float64 `json:"saved_hours"`
}

// SelectorMatch is an alternative selector found for a failing one.
type SelectorMatch struct {
	Selector string
	Score    float64
}
