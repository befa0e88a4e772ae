package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/sandrun/internal/common"
	"github.com/ternarybob/sandrun/internal/jobdir"
	"github.com/ternarybob/sandrun/internal/models"
	"github.com/ternarybob/sandrun/internal/store"
)

// urlHostPattern extracts the host portion of every http(s) URL in a
// command for the allowlist check
var urlHostPattern = regexp.MustCompile(`https?://([^/\s]+)`)

var validate = validator.New()

// JobHandler serves the job lifecycle endpoints: submit, list, fetch
type JobHandler struct {
	store  store.Store
	dir    *jobdir.Dir
	logger arbor.ILogger
}

// NewJobHandler creates a new job handler
func NewJobHandler(st store.Store, dir *jobdir.Dir, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		store:  st,
		dir:    dir,
		logger: logger,
	}
}

// CreateLimitsRequest carries the public limit names on submit
type CreateLimitsRequest struct {
	MaxRuntimeSeconds *int `json:"max_runtime_seconds" validate:"omitempty,min=1"`
	MaxOutputMB       *int `json:"max_output_mb" validate:"omitempty,min=1"`
}

// CreatePolicyRequest is the optional submit-time execution policy
type CreatePolicyRequest struct {
	AllowlistDomains []string             `json:"allowlist_domains"`
	Limits           *CreateLimitsRequest `json:"limits"`
}

// CreateRunnerRequest is the optional runner preference on submit
type CreateRunnerRequest struct {
	Requested *string `json:"requested"`
}

// CreateJobRequest is the POST /api/jobs body. Unknown fields are
// rejected rather than ignored.
type CreateJobRequest struct {
	Command string               `json:"command"`
	Policy  *CreatePolicyRequest `json:"policy"`
	Runner  *CreateRunnerRequest `json:"runner"`
}

// CreateJobHandler handles POST /api/jobs: validate, enforce the domain
// allowlist, insert the queued row, then write the initial job document.
func (h *JobHandler) CreateJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	requestID := common.NewRequestID()

	var req CreateJobRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		details := map[string]any{}
		if field, ok := unknownField(err); ok {
			details["field"] = field
		}
		WriteAPIError(w, requestID, CodeValidationError, "invalid request body", details)
		return
	}

	if req.Command == "" {
		WriteAPIError(w, requestID, CodeValidationError, "command must be a non-empty string",
			map[string]any{"field": "command"})
		return
	}
	if req.Runner != nil && req.Runner.Requested != nil && !models.ValidRunnerKind(*req.Runner.Requested) {
		WriteAPIError(w, requestID, CodeValidationError, "runner must be one of shell, docker, vm",
			map[string]any{"field": "runner.requested"})
		return
	}
	if err := validate.Struct(&req); err != nil {
		details := map[string]any{}
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			details["field"] = fieldErrs[0].Namespace()
		}
		WriteAPIError(w, requestID, CodeValidationError, "invalid request body", details)
		return
	}

	if req.Policy != nil && len(req.Policy.AllowlistDomains) > 0 {
		if denied, ok := deniedDomain(req.Command, req.Policy.AllowlistDomains); !ok {
			WriteAPIError(w, requestID, CodePolicyDenied, "command references a domain outside the allowlist",
				map[string]any{"domain": denied})
			return
		}
	}

	jobID := common.NewJobID()
	createdAt := common.TruncateToSecond(time.Now())
	var runnerRequested *string
	if req.Runner != nil {
		runnerRequested = req.Runner.Requested
	}

	job := &models.Job{
		JobID:           jobID,
		Status:          models.JobStatusQueued,
		Command:         req.Command,
		CreatedAt:       createdAt,
		RunnerRequested: runnerRequested,
		RunnerSelected:  runnerRequested,
	}
	if err := h.store.InsertQueued(r.Context(), job); err != nil {
		h.logger.Error().Err(err).Msg("Failed to insert job")
		WriteAPIError(w, requestID, CodeInternal, "failed to create job", nil)
		return
	}

	doc := models.NewSkeletonDocument(jobID, req.Command, common.FormatUTC(createdAt))
	doc.Policy = policyFromRequest(req.Policy)
	if runnerRequested != nil {
		reason := models.SelectionReasonRequested
		doc.Runner = models.RunnerInfo{
			Requested:       runnerRequested,
			Selected:        runnerRequested,
			SelectionReason: &reason,
		}
	}
	if err := h.dir.WriteDocument(doc); err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to write job document")
		WriteAPIError(w, requestID, CodeInternal, "failed to create job", nil)
		return
	}

	h.logger.Info().
		Str("job_id", jobID).
		Str("request_id", requestID).
		Msg("Job created")

	WriteJSON(w, http.StatusCreated, JobResponse{
		Job:           summaryFromRow(job, true),
		RequestID:     requestID,
		ServerTimeUTC: common.NowUTC(),
	})
}

// ListJobsHandler handles GET /api/jobs with keyset pagination. A request
// body is rejected; GET list parameters travel in the query string only.
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	requestID := common.NewRequestID()

	if r.ContentLength > 0 {
		WriteAPIError(w, requestID, CodeValidationError, "request body is not allowed",
			map[string]any{"field": "body"})
		return
	}

	query := r.URL.Query()
	status := query.Get("status")
	if status != "" {
		switch models.JobStatus(status) {
		case models.JobStatusQueued, models.JobStatusRunning, models.JobStatusSucceeded, models.JobStatusFailed:
		default:
			WriteAPIError(w, requestID, CodeValidationError, "invalid status filter",
				map[string]any{"field": "status"})
			return
		}
	}

	limit := 50
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			WriteAPIError(w, requestID, CodeValidationError, "limit must be between 1 and 200",
				map[string]any{"field": "limit"})
			return
		}
		limit = parsed
	}

	var cursor *store.Cursor
	if raw := query.Get("cursor"); raw != "" {
		decoded, err := store.DecodeCursor(raw)
		if err != nil {
			WriteAPIError(w, requestID, CodeValidationError, "invalid cursor",
				map[string]any{"field": "cursor"})
			return
		}
		cursor = decoded
	}

	rows, err := h.store.ListJobs(r.Context(), store.ListOptions{
		Status: status,
		Query:  query.Get("q"),
		Limit:  limit,
		Cursor: cursor,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list jobs")
		WriteAPIError(w, requestID, CodeInternal, "failed to list jobs", nil)
		return
	}

	var nextCursor *string
	if len(rows) > limit {
		last := rows[limit-1]
		token := store.EncodeCursor(common.FormatUTC(last.CreatedAt), last.JobID)
		nextCursor = &token
		rows = rows[:limit]
	}

	items := make([]JobSummary, 0, len(rows))
	for i := range rows {
		items = append(items, summaryFromRow(&rows[i], false))
	}

	WriteJSON(w, http.StatusOK, JobListResponse{
		Items:         items,
		NextCursor:    nextCursor,
		RequestID:     requestID,
		ServerTimeUTC: common.NowUTC(),
	})
}

// GetJobHandler handles GET /api/jobs/{job_id}. Both the store row and
// the on-disk document must exist; the document carries the full record.
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	requestID := common.NewRequestID()

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to read job")
		WriteAPIError(w, requestID, CodeInternal, "failed to read job", nil)
		return
	}
	if job == nil {
		WriteAPIError(w, requestID, CodeNotFound, "job not found", nil)
		return
	}

	doc, err := h.dir.ReadDocument(jobID)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to read job document")
		WriteAPIError(w, requestID, CodeInternal, "failed to read job", nil)
		return
	}
	if doc == nil {
		WriteAPIError(w, requestID, CodeNotFound, "job not found", nil)
		return
	}

	WriteJSON(w, http.StatusOK, JobResponse{
		Job:           detailFromDocument(doc),
		RequestID:     requestID,
		ServerTimeUTC: common.NowUTC(),
	})
}

// deniedDomain extracts every http(s) host in the command and checks it
// against the allowlist, case-insensitively. Returns the first host
// outside the allowlist and false, or "" and true when all hosts pass.
func deniedDomain(command string, allowlist []string) (string, bool) {
	allowed := make(map[string]struct{}, len(allowlist))
	for _, domain := range allowlist {
		allowed[strings.ToLower(domain)] = struct{}{}
	}
	for _, match := range urlHostPattern.FindAllStringSubmatch(command, -1) {
		host := strings.ToLower(match[1])
		if _, ok := allowed[host]; !ok {
			return host, false
		}
	}
	return "", true
}

// policyFromRequest maps the public policy names to the stored document
// shape, renaming max_runtime_seconds to time_limit_seconds.
func policyFromRequest(req *CreatePolicyRequest) *models.Policy {
	if req == nil {
		return nil
	}
	policy := &models.Policy{AllowlistDomains: req.AllowlistDomains}
	if policy.AllowlistDomains == nil {
		policy.AllowlistDomains = []string{}
	}
	if req.Limits != nil {
		policy.Limits = &models.PolicyLimits{
			TimeLimitSeconds: req.Limits.MaxRuntimeSeconds,
			MaxOutputMB:      req.Limits.MaxOutputMB,
		}
	}
	return policy
}

// unknownField pulls the field name out of the decoder's unknown-field
// error message, the only structured detail it exposes.
func unknownField(err error) (string, bool) {
	const marker = `json: unknown field "`
	msg := err.Error()
	idx := strings.Index(msg, marker)
	if idx < 0 {
		return "", false
	}
	rest := msg[idx+len(marker):]
	end := strings.Index(rest, `"`)
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}
