package handlers

import (
	"github.com/ternarybob/sandrun/internal/common"
	"github.com/ternarybob/sandrun/internal/models"
)

// View types: the reduced JSON shapes the API returns. The job document
// on disk is the authoritative record; views flatten it for clients.

// RunnerSummaryView carries only the selected runner on list/create views
type RunnerSummaryView struct {
	Selected *string `json:"selected"`
}

// JobSummary is the reduced job shape on create and list responses
type JobSummary struct {
	JobID     string             `json:"job_id"`
	Status    models.JobStatus   `json:"status"`
	CreatedAt string             `json:"created_at"`
	Runner    *RunnerSummaryView `json:"runner"`
	Links     models.Links       `json:"links"`
}

// PolicyLimitsView flattens the stored limits back to the public naming
type PolicyLimitsView struct {
	MaxRuntimeSeconds *int `json:"max_runtime_seconds"`
	MaxOutputMB       *int `json:"max_output_mb"`
}

// PolicyView is the public policy shape on the full job view
type PolicyView struct {
	AllowlistDomains []string          `json:"allowlist_domains"`
	Limits           *PolicyLimitsView `json:"limits"`
}

// AttemptView is the reduced attempt shape on the full job view
type AttemptView struct {
	AttemptID  string           `json:"attempt_id"`
	Status     models.JobStatus `json:"status"`
	StartedAt  string           `json:"started_at"`
	FinishedAt *string          `json:"finished_at"`
}

// ArtifactView is the reduced manifest entry on job and artifact views
type ArtifactView struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// JobDetail is the full job shape built from the store row and document
type JobDetail struct {
	JobID             string            `json:"job_id"`
	Command           string            `json:"command"`
	Status            models.JobStatus  `json:"status"`
	CreatedAt         string            `json:"created_at"`
	Policy            *PolicyView       `json:"policy"`
	Runner            models.RunnerInfo `json:"runner"`
	Attempts          []AttemptView     `json:"attempts"`
	ArtifactsManifest []ArtifactView    `json:"artifacts_manifest"`
	Links             models.Links      `json:"links"`
}

// JobResponse wraps a single job view in the success envelope
type JobResponse struct {
	Job           any    `json:"job"`
	RequestID     string `json:"request_id"`
	ServerTimeUTC string `json:"server_time_utc"`
}

// JobListResponse is the paginated list envelope
type JobListResponse struct {
	Items         []JobSummary `json:"items"`
	NextCursor    *string      `json:"next_cursor"`
	RequestID     string       `json:"request_id"`
	ServerTimeUTC string       `json:"server_time_utc"`
}

// LogLine is one rendered log line on the logs view
type LogLine struct {
	TS      string `json:"ts"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// LogsResponse is the snapshot logs envelope
type LogsResponse struct {
	Lines         []LogLine `json:"lines"`
	Cursor        string    `json:"cursor"`
	RequestID     string    `json:"request_id"`
	ServerTimeUTC string    `json:"server_time_utc"`
}

// ArtifactLinks carries the base path clients join artifact names onto
type ArtifactLinks struct {
	DownloadBase string `json:"download_base"`
}

// ArtifactListResponse is the artifact listing envelope
type ArtifactListResponse struct {
	ArtifactsManifest []ArtifactView `json:"artifacts_manifest"`
	Links             ArtifactLinks  `json:"links"`
	RequestID         string         `json:"request_id"`
	ServerTimeUTC     string         `json:"server_time_utc"`
}

// summaryFromRow builds the reduced view straight from the store row.
// runner stays null until a runner has been selected.
func summaryFromRow(job *models.Job, includeChildren bool) JobSummary {
	var runner *RunnerSummaryView
	if job.RunnerSelected != nil {
		runner = &RunnerSummaryView{Selected: job.RunnerSelected}
	}
	return JobSummary{
		JobID:     job.JobID,
		Status:    job.Status,
		CreatedAt: common.FormatUTC(job.CreatedAt),
		Runner:    runner,
		Links:     models.JobLinks(job.JobID, includeChildren),
	}
}

// policyView flattens the stored policy, mapping the internal
// time_limit_seconds naming back to max_runtime_seconds when the
// public name is absent.
func policyView(policy *models.Policy) *PolicyView {
	if policy == nil {
		return nil
	}
	view := &PolicyView{
		AllowlistDomains: policy.AllowlistDomains,
		Limits:           &PolicyLimitsView{},
	}
	if policy.Limits != nil {
		maxRuntime := policy.Limits.MaxRuntimeSeconds
		if maxRuntime == nil {
			maxRuntime = policy.Limits.TimeLimitSeconds
		}
		view.Limits.MaxRuntimeSeconds = maxRuntime
		view.Limits.MaxOutputMB = policy.Limits.MaxOutputMB
	}
	return view
}

// detailFromDocument builds the full job view from the on-disk document
func detailFromDocument(doc *models.JobDocument) JobDetail {
	attempts := make([]AttemptView, 0, len(doc.Attempts))
	for _, attempt := range doc.Attempts {
		attempts = append(attempts, AttemptView{
			AttemptID:  attempt.AttemptID,
			Status:     attempt.Status,
			StartedAt:  attempt.StartedAt,
			FinishedAt: attempt.FinishedAt,
		})
	}
	return JobDetail{
		JobID:             doc.JobID,
		Command:           doc.Command,
		Status:            doc.Status,
		CreatedAt:         doc.CreatedAt,
		Policy:            policyView(doc.Policy),
		Runner:            doc.Runner,
		Attempts:          attempts,
		ArtifactsManifest: artifactViews(doc.ArtifactsManifest),
		Links:             models.JobLinks(doc.JobID, true),
	}
}

func artifactViews(manifest []models.ArtifactEntry) []ArtifactView {
	views := make([]ArtifactView, 0, len(manifest))
	for _, entry := range manifest {
		views = append(views, ArtifactView{
			Name:        entry.Name,
			ContentType: entry.ContentType,
			SizeBytes:   entry.SizeBytes,
		})
	}
	return views
}
