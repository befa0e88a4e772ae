package worker

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/sandrun/internal/common"
	"github.com/ternarybob/sandrun/internal/jobdir"
	"github.com/ternarybob/sandrun/internal/models"
	"github.com/ternarybob/sandrun/internal/store"
)

type workerFixture struct {
	store  store.Store
	dir    *jobdir.Dir
	worker *Worker
}

func newWorkerFixture(t *testing.T, timeoutSecs int) *workerFixture {
	t.Helper()
	logger := common.GetLogger()

	st, err := store.Open(context.Background(), logger, "sqlite://")
	require.NoError(t, err)
	require.NoError(t, st.InitSchema(context.Background()))
	t.Cleanup(func() { st.Close() })

	root := t.TempDir()
	dir := jobdir.New(filepath.Join(root, "jobs"))
	events := NewEventLog(filepath.Join(root, "logs"), logger)

	cfg := &common.RunnerConfig{
		JobsDir:     dir.Root(),
		PollSecs:    0.1,
		TimeoutSecs: timeoutSecs,
		LogDir:      filepath.Join(root, "logs"),
	}
	return &workerFixture{
		store:  st,
		dir:    dir,
		worker: New(st, dir, events, logger, cfg),
	}
}

func (f *workerFixture) enqueue(t *testing.T, jobID, command string) {
	t.Helper()
	err := f.store.InsertQueued(context.Background(), &models.Job{
		JobID:     jobID,
		Status:    models.JobStatusQueued,
		Command:   command,
		CreatedAt: common.TruncateToSecond(time.Now()),
	})
	require.NoError(t, err)
}

func TestRunOnceEmptyQueue(t *testing.T) {
	f := newWorkerFixture(t, 10)

	claimed, err := f.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestRunOnceSuccess(t *testing.T) {
	f := newWorkerFixture(t, 10)
	f.enqueue(t, "job_ok", "echo all good")

	claimed, err := f.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, claimed)

	job, err := f.store.GetJob(context.Background(), "job_ok")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSucceeded, job.Status)

	doc, err := f.dir.ReadDocument("job_ok")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, models.JobStatusSucceeded, doc.Status)
	require.NotNil(t, doc.CompletedAt)
	require.Len(t, doc.Attempts, 1)

	attempt := doc.Attempts[0]
	assert.Equal(t, models.JobStatusSucceeded, attempt.Status)
	require.NotNil(t, attempt.ExitCode)
	assert.Equal(t, 0, *attempt.ExitCode)
	assert.Nil(t, attempt.ErrorSummary)

	// Runner defaults were filled in during the claim
	require.NotNil(t, doc.Runner.Selected)
	assert.Equal(t, "shell", *doc.Runner.Selected)
	require.NotNil(t, doc.Runner.SelectionReason)
	assert.Equal(t, models.SelectionReasonDefault, *doc.Runner.SelectionReason)

	// Captured stdout landed in the attempt log
	records, err := jobdir.ReadLogRecords(f.dir.AttemptLogPath("job_ok", attempt.AttemptID))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "all good", records[0].Line)
	assert.Equal(t, models.StreamStdout, records[0].Stream)
}

func TestRunOnceCommandFailure(t *testing.T) {
	f := newWorkerFixture(t, 10)
	f.enqueue(t, "job_bad", "echo broken >&2; exit 2")

	claimed, err := f.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, claimed)

	job, err := f.store.GetJob(context.Background(), "job_bad")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)

	doc, err := f.dir.ReadDocument("job_bad")
	require.NoError(t, err)
	require.Len(t, doc.Attempts, 1)

	attempt := doc.Attempts[0]
	assert.Equal(t, models.JobStatusFailed, attempt.Status)
	require.NotNil(t, attempt.ExitCode)
	assert.Equal(t, 2, *attempt.ExitCode)
	require.NotNil(t, attempt.ErrorSummary)
	assert.Equal(t, "command failed", *attempt.ErrorSummary)

	records, err := jobdir.ReadLogRecords(f.dir.AttemptLogPath("job_bad", attempt.AttemptID))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.StreamStderr, records[0].Stream)
	assert.Equal(t, "broken", records[0].Line)
}

func TestRunOnceTimeout(t *testing.T) {
	f := newWorkerFixture(t, 1)
	f.enqueue(t, "job_slow", "sleep 30")

	claimed, err := f.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, claimed)

	job, err := f.store.GetJob(context.Background(), "job_slow")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)

	doc, err := f.dir.ReadDocument("job_slow")
	require.NoError(t, err)
	require.Len(t, doc.Attempts, 1)
	require.NotNil(t, doc.Attempts[0].ExitCode)
	assert.Equal(t, TimeoutExitCode, *doc.Attempts[0].ExitCode)

	records, err := jobdir.ReadLogRecords(f.dir.AttemptLogPath("job_slow", doc.Attempts[0].AttemptID))
	require.NoError(t, err)
	var sawMarker bool
	for _, record := range records {
		if record.Stream == models.StreamStderr && strings.HasPrefix(record.Line, "[timeout after ") {
			sawMarker = true
		}
	}
	assert.True(t, sawMarker, "expected the timeout marker line in stderr")
}

func TestRunOnceCollectsArtifacts(t *testing.T) {
	f := newWorkerFixture(t, 10)
	f.enqueue(t, "job_art", `echo report > "$JOB_ARTIFACTS_DIR/report.txt"`)

	claimed, err := f.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, claimed)

	doc, err := f.dir.ReadDocument("job_art")
	require.NoError(t, err)
	require.Len(t, doc.ArtifactsManifest, 1)

	entry := doc.ArtifactsManifest[0]
	assert.Equal(t, "report.txt", entry.Name)
	assert.Equal(t, "text/plain", entry.ContentType)
	assert.Equal(t, int64(len("report\n")), entry.SizeBytes)
	assert.NotEmpty(t, entry.SHA256)
}

func TestRunOnceSynthesizesMissingDocument(t *testing.T) {
	f := newWorkerFixture(t, 10)
	// Row exists but the API-side document write never happened
	f.enqueue(t, "job_nodoc", "echo recovered")

	claimed, err := f.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, claimed)

	doc, err := f.dir.ReadDocument("job_nodoc")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "echo recovered", doc.Command)
	assert.Equal(t, models.JobStatusSucceeded, doc.Status)
	assert.Equal(t, models.JobDocumentVersion, doc.JobVersion)
}

func TestRunLoopStopsOnCancel(t *testing.T) {
	f := newWorkerFixture(t, 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.worker.Run(ctx) }()

	time.Sleep(250 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
