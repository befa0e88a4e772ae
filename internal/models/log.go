package models

// Log streams captured from the child process
const (
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)

// LogRecord is one NDJSON line in a per-attempt log file, in write order
type LogRecord struct {
	TS        string  `json:"ts"`
	JobID     string  `json:"job_id"`
	AttemptID *string `json:"attempt_id"`
	Stream    string  `json:"stream"`
	Line      string  `json:"line"`
}

// Runner lifecycle event names written to runner.ndjson
const (
	EventRunnerStart = "runner_start"
	EventJobClaimed  = "job_claimed"
	EventJobRunning  = "job_running"
	EventJobFinished = "job_finished"
	EventJobError    = "job_error"
	EventClaimError  = "claim_error"
)
