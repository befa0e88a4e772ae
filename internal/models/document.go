package models

// JobDocumentVersion is the schema tag written into every job document
const JobDocumentVersion = "1.0"

// Runner selection reasons recorded when the worker fills in defaults
const (
	SelectionReasonRequested = "requested by user"
	SelectionReasonDefault   = "default shell runner"
)

// JobDocument is the authoritative on-disk record (job.json) for a job.
// Created by the API at submit time, mutated only by the claiming worker,
// never deleted.
type JobDocument struct {
	JobVersion        string          `json:"job_version"`
	JobID             string          `json:"job_id"`
	Command           string          `json:"command"`
	ParsedIntent      *string         `json:"parsed_intent"`
	Status            JobStatus       `json:"status"`
	CreatedAt         string          `json:"created_at"`
	CompletedAt       *string         `json:"completed_at"`
	Policy            *Policy         `json:"policy"`
	Runner            RunnerInfo      `json:"runner"`
	Attempts          []Attempt       `json:"attempts"`
	ArtifactsManifest []ArtifactEntry `json:"artifacts_manifest"`
	Links             Links           `json:"links"`
}

// Policy carries the submit-time execution policy, if any
type Policy struct {
	AllowlistDomains []string      `json:"allowlist_domains"`
	Limits           *PolicyLimits `json:"limits"`
}

// PolicyLimits uses the internal field naming; the public view maps
// time_limit_seconds back to max_runtime_seconds when the latter is absent.
type PolicyLimits struct {
	TimeLimitSeconds  *int `json:"time_limit_seconds"`
	MaxRuntimeSeconds *int `json:"max_runtime_seconds,omitempty"`
	MaxOutputMB       *int `json:"max_output_mb"`
}

// RunnerInfo records the requested and selected execution strategy.
// When selected is set, selection_reason is "requested by user" if a
// runner was requested at submit time, otherwise "default shell runner".
type RunnerInfo struct {
	Requested       *string `json:"requested"`
	Selected        *string `json:"selected"`
	SelectionReason *string `json:"selection_reason"`
}

// Attempt is one execution of the job's command. There are no retries;
// a job gets exactly one attempt per claim.
type Attempt struct {
	AttemptID    string    `json:"attempt_id"`
	Status       JobStatus `json:"status"`
	StartedAt    string    `json:"started_at"`
	FinishedAt   *string   `json:"finished_at"`
	ExitCode     *int      `json:"exit_code"`
	ErrorSummary *string   `json:"error_summary"`
}

// ArtifactEntry describes one regular file under the job's artifacts
// directory, rebuilt from disk on every attempt completion.
type ArtifactEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	SHA256      string `json:"sha256"`
	SizeBytes   int64  `json:"size_bytes"`
	ContentType string `json:"content_type"`
	CreatedAt   string `json:"created_at"`
}

// Links holds API-relative navigation paths for a job
type Links struct {
	Self      string  `json:"self"`
	Logs      *string `json:"logs,omitempty"`
	Artifacts *string `json:"artifacts,omitempty"`
}

// JobLinks builds the link set for a job. Child links (logs, artifacts)
// are only attached where the API exposes the full record.
func JobLinks(jobID string, includeChildren bool) Links {
	links := Links{Self: "/api/jobs/" + jobID}
	if includeChildren {
		logs := "/api/jobs/" + jobID + "/logs"
		artifacts := "/api/jobs/" + jobID + "/artifacts"
		links.Logs = &logs
		links.Artifacts = &artifacts
	}
	return links
}

// NewSkeletonDocument builds the initial job document written at submit
// time, or synthesized by the worker when the file is missing at claim.
func NewSkeletonDocument(jobID, command, createdAt string) *JobDocument {
	return &JobDocument{
		JobVersion:        JobDocumentVersion,
		JobID:             jobID,
		Command:           command,
		Status:            JobStatusQueued,
		CreatedAt:         createdAt,
		Attempts:          []Attempt{},
		ArtifactsManifest: []ArtifactEntry{},
		Links:             JobLinks(jobID, true),
	}
}

// EnsureRunnerDefaults fills in the selected runner and selection reason
// if they are unset. A submit-time selection is always preserved.
func (d *JobDocument) EnsureRunnerDefaults() {
	if d.Runner.Selected == nil || *d.Runner.Selected == "" {
		shell := string(RunnerShell)
		d.Runner.Selected = &shell
	}
	if d.Runner.SelectionReason == nil || *d.Runner.SelectionReason == "" {
		reason := SelectionReasonDefault
		if d.Runner.Requested != nil && *d.Runner.Requested != "" {
			reason = SelectionReasonRequested
		}
		d.Runner.SelectionReason = &reason
	}
}

// FindAttempt returns the attempt with the given ID, or nil
func (d *JobDocument) FindAttempt(attemptID string) *Attempt {
	for i := range d.Attempts {
		if d.Attempts[i].AttemptID == attemptID {
			return &d.Attempts[i]
		}
	}
	return nil
}

// LastAttempt returns the most recent attempt, or nil when none exist
func (d *JobDocument) LastAttempt() *Attempt {
	if len(d.Attempts) == 0 {
		return nil
	}
	return &d.Attempts[len(d.Attempts)-1]
}
