package worker

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/sandrun/internal/common"
	"github.com/ternarybob/sandrun/internal/jobdir"
	"github.com/ternarybob/sandrun/internal/models"
	"github.com/ternarybob/sandrun/internal/store"
)

// Worker is the single-threaded claim/execute loop. Multiple worker
// processes may run concurrently; the store's atomic claim is the only
// coordination between them. Once a row is claimed, this worker is the
// sole writer of that job's state directory.
type Worker struct {
	store        store.Store
	dir          *jobdir.Dir
	events       *EventLog
	logger       arbor.ILogger
	pollInterval time.Duration
	timeout      time.Duration
}

// New creates a worker from the runner configuration
func New(st store.Store, dir *jobdir.Dir, events *EventLog, logger arbor.ILogger, cfg *common.RunnerConfig) *Worker {
	return &Worker{
		store:        st,
		dir:          dir,
		events:       events,
		logger:       logger,
		pollInterval: time.Duration(cfg.PollSecs * float64(time.Second)),
		timeout:      time.Duration(cfg.TimeoutSecs) * time.Second,
	}
}

// Run polls the store until the context is cancelled. Claim errors are
// logged and swallowed; the loop continues after the poll interval.
func (w *Worker) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir.Root(), 0755); err != nil {
		return fmt.Errorf("failed to create jobs root: %w", err)
	}

	w.events.Event(models.EventRunnerStart, map[string]any{"pid": os.Getpid()})
	w.logger.Info().
		Int("pid", os.Getpid()).
		Dur("poll_interval", w.pollInterval).
		Dur("timeout", w.timeout).
		Msg("Worker started")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Worker stopped")
			return nil
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.events.Event(models.EventClaimError, map[string]any{"error": err.Error()})
				w.logger.Warn().Err(err).Msg("Claim failed")
			}
		}
	}
}

// RunOnce claims and executes at most one job. It reports whether a job
// was claimed; the returned error covers the claim only, execution
// failures are absorbed into the job record.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	claim, err := w.store.ClaimOldestQueued(ctx)
	if err != nil {
		return false, err
	}
	if claim == nil {
		return false, nil
	}
	w.process(ctx, claim)
	return true, nil
}

// process runs one attempt end to end. Any failure past the claim is
// recorded as status=failed with the error's string form as the
// attempt's error_summary; the manifest is still rebuilt from whatever
// exists on disk.
func (w *Worker) process(ctx context.Context, claim *models.Claim) {
	jobID, command := claim.JobID, claim.Command
	attemptID := common.NewAttemptID()
	attemptLog := w.dir.AttemptLogPath(jobID, attemptID)
	artifactsDir := w.dir.ArtifactsDir(jobID)

	w.events.Event(models.EventJobClaimed, map[string]any{"job_id": jobID})
	w.events.Event(models.EventJobRunning, map[string]any{"job_id": jobID, "command": command})
	w.logger.Info().Str("job_id", jobID).Msg("Claimed job")
	w.logger.Info().Str("job_id", jobID).Str("command", command).Msg("Executing command")

	start := time.Now()
	startedAt := common.NowUTC()

	doc := w.loadOrSynthesize(jobID, command)
	doc.EnsureRunnerDefaults()
	doc.Status = models.JobStatusRunning
	doc.Attempts = append(doc.Attempts, models.Attempt{
		AttemptID: attemptID,
		Status:    models.JobStatusRunning,
		StartedAt: startedAt,
	})
	if err := w.dir.EnsureJobDirs(jobID); err != nil {
		w.fail(ctx, doc, attemptID, start, err)
		return
	}
	if err := w.dir.WriteDocument(doc); err != nil {
		w.fail(ctx, doc, attemptID, start, err)
		return
	}

	env := append(os.Environ(),
		"JOB_ID="+jobID,
		"JOB_ARTIFACTS_DIR="+artifactsDir,
		"RUNNER_ARTIFACTS_DIR="+artifactsDir,
	)
	result, err := RunShell(ctx, command, w.timeout, env)
	if err != nil {
		w.fail(ctx, doc, attemptID, start, err)
		return
	}
	durationMS := time.Since(start).Milliseconds()

	w.events.WriteOutput(attemptLog, jobID, attemptID, models.StreamStdout, result.Stdout)
	w.events.WriteOutput(attemptLog, jobID, attemptID, models.StreamStderr, result.Stderr)

	// Commands that drop files into ./artifacts of the worker CWD get
	// them collected alongside anything written via JOB_ARTIFACTS_DIR
	copyArtifacts(filepath.Join(mustGetwd(), "artifacts"), artifactsDir)

	status := models.JobStatusFailed
	if result.ExitCode == 0 && !result.TimedOut {
		status = models.JobStatusSucceeded
	}
	if err := w.store.UpdateStatus(ctx, jobID, status); err != nil {
		w.fail(ctx, doc, attemptID, start, err)
		return
	}

	finishedAt := common.NowUTC()
	exitCode := result.ExitCode
	if attempt := doc.FindAttempt(attemptID); attempt != nil {
		attempt.Status = status
		attempt.FinishedAt = &finishedAt
		attempt.ExitCode = &exitCode
		if status != models.JobStatusSucceeded {
			summary := "command failed"
			attempt.ErrorSummary = &summary
		}
	}
	doc.Status = status
	doc.CompletedAt = &finishedAt
	doc.ArtifactsManifest = w.dir.BuildManifest(jobID)
	if err := w.dir.WriteDocument(doc); err != nil {
		w.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to write job document")
	}

	w.events.Event(models.EventJobFinished, map[string]any{
		"job_id":      jobID,
		"status":      string(status),
		"exit_code":   exitCode,
		"duration_ms": durationMS,
		"timed_out":   result.TimedOut,
	})
	w.logger.Info().
		Str("job_id", jobID).
		Str("status", string(status)).
		Int("exit_code", exitCode).
		Msg("Job finished")
}

// fail records a worker-internal error as a failed terminal attempt.
// The manifest is rebuilt from whatever exists on disk.
func (w *Worker) fail(ctx context.Context, doc *models.JobDocument, attemptID string, start time.Time, cause error) {
	jobID := doc.JobID
	durationMS := time.Since(start).Milliseconds()

	if err := w.store.UpdateStatus(ctx, jobID, models.JobStatusFailed); err != nil {
		w.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to update job status")
	}

	finishedAt := common.NowUTC()
	summary := cause.Error()
	if attempt := doc.FindAttempt(attemptID); attempt != nil {
		attempt.Status = models.JobStatusFailed
		attempt.FinishedAt = &finishedAt
		attempt.ErrorSummary = &summary
	}
	doc.Status = models.JobStatusFailed
	doc.CompletedAt = &finishedAt
	doc.ArtifactsManifest = w.dir.BuildManifest(jobID)
	if err := w.dir.WriteDocument(doc); err != nil {
		w.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to write job document")
	}

	w.events.Event(models.EventJobError, map[string]any{
		"job_id":      jobID,
		"error":       summary,
		"duration_ms": durationMS,
	})
	w.logger.Error().Err(cause).Str("job_id", jobID).Msg("Job attempt failed")
}

// loadOrSynthesize reads the job document, or builds a fresh skeleton
// when the API-side write is missing or unreadable.
func (w *Worker) loadOrSynthesize(jobID, command string) *models.JobDocument {
	doc, err := w.dir.ReadDocument(jobID)
	if err != nil {
		w.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to read job document")
	}
	if doc == nil {
		doc = models.NewSkeletonDocument(jobID, command, common.NowUTC())
	}
	return doc
}

// copyArtifacts mirrors files from a conventional ./artifacts directory
// into the job's artifacts tree. Per-file errors are skipped.
func copyArtifacts(sourceDir, destDir string) {
	info, err := os.Stat(sourceDir)
	if err != nil || !info.IsDir() {
		return
	}
	srcAbs, err1 := filepath.Abs(sourceDir)
	dstAbs, err2 := filepath.Abs(destDir)
	if err1 == nil && err2 == nil && srcAbs == dstAbs {
		return
	}

	filepath.WalkDir(sourceDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return nil
		}
		target := filepath.Join(destDir, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return nil
		}
		copyFile(path, target)
		return nil
	})
}

func copyFile(src, dst string) {
	in, err := os.Open(src)
	if err != nil {
		return
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return
	}
	defer out.Close()
	io.Copy(out, in)
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
