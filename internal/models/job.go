package models

import "time"

// JobStatus represents the lifecycle state of a job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether the status is a terminal state
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// RunnerKind is the execution strategy label for a job.
// Only "shell" is implemented; "docker" and "vm" are accepted labels.
type RunnerKind string

const (
	RunnerShell  RunnerKind = "shell"
	RunnerDocker RunnerKind = "docker"
	RunnerVM     RunnerKind = "vm"
)

// ValidRunnerKind reports whether the value is an accepted runner label
func ValidRunnerKind(value string) bool {
	switch RunnerKind(value) {
	case RunnerShell, RunnerDocker, RunnerVM:
		return true
	}
	return false
}

// Job is the store row: the single source of truth for queue ordering
// and lifecycle state. The full mutable record lives in the job document.
type Job struct {
	JobID           string
	Status          JobStatus
	Command         string
	CreatedAt       time.Time
	RunnerRequested *string
	RunnerSelected  *string
}

// Claim is the result of atomically claiming the oldest queued job
type Claim struct {
	JobID   string
	Command string
}
