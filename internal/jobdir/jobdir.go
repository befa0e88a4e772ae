// Package jobdir manages the per-job on-disk state tree:
//
//	<root>/<job_id>/
//	  job.json                      full job document, rewritten whole
//	  logs/attempt_<att_id>.ndjson  append-only per attempt
//	  artifacts/...                 arbitrary tree written by the command
package jobdir

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/sandrun/internal/models"
)

// Dir is a handle on the job state directory root. The API reads it;
// the claiming worker is the only writer per job.
type Dir struct {
	root string
}

// New creates a handle rooted at the given path
func New(root string) *Dir {
	return &Dir{root: root}
}

// Root returns the configured root path
func (d *Dir) Root() string {
	return d.root
}

// JobDir returns the directory for a single job
func (d *Dir) JobDir(jobID string) string {
	return filepath.Join(d.root, jobID)
}

// DocumentPath returns the job.json path for a job
func (d *Dir) DocumentPath(jobID string) string {
	return filepath.Join(d.JobDir(jobID), "job.json")
}

// LogsDir returns the per-job logs directory
func (d *Dir) LogsDir(jobID string) string {
	return filepath.Join(d.JobDir(jobID), "logs")
}

// AttemptLogPath returns the NDJSON log file for one attempt
func (d *Dir) AttemptLogPath(jobID, attemptID string) string {
	return filepath.Join(d.LogsDir(jobID), "attempt_"+attemptID+".ndjson")
}

// ArtifactsDir returns the per-job artifacts directory
func (d *Dir) ArtifactsDir(jobID string) string {
	return filepath.Join(d.JobDir(jobID), "artifacts")
}

// EnsureJobDirs creates the logs and artifacts directories for a job
func (d *Dir) EnsureJobDirs(jobID string) error {
	if err := os.MkdirAll(d.LogsDir(jobID), 0755); err != nil {
		return fmt.Errorf("failed to create logs dir: %w", err)
	}
	if err := os.MkdirAll(d.ArtifactsDir(jobID), 0755); err != nil {
		return fmt.Errorf("failed to create artifacts dir: %w", err)
	}
	return nil
}

// ReadDocument returns the parsed job document, or nil when the file is
// missing or malformed.
func (d *Dir) ReadDocument(jobID string) (*models.JobDocument, error) {
	data, err := os.ReadFile(d.DocumentPath(jobID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job document: %w", err)
	}
	var doc models.JobDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil
	}
	return &doc, nil
}

// WriteDocument serializes the document and replaces the file's contents
func (d *Dir) WriteDocument(doc *models.JobDocument) error {
	if err := os.MkdirAll(d.JobDir(doc.JobID), 0755); err != nil {
		return fmt.Errorf("failed to create job dir: %w", err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal job document: %w", err)
	}
	if err := os.WriteFile(d.DocumentPath(doc.JobID), data, 0644); err != nil {
		return fmt.Errorf("failed to write job document: %w", err)
	}
	return nil
}

// ResolveArtifact maps an artifact name to an absolute path under the
// job's artifacts directory. Names whose resolved path escapes the root,
// or that do not name a regular file, return an error.
func (d *Dir) ResolveArtifact(jobID, name string) (string, error) {
	base, err := filepath.Abs(d.ArtifactsDir(jobID))
	if err != nil {
		return "", fmt.Errorf("failed to resolve artifacts dir: %w", err)
	}
	target, err := filepath.Abs(filepath.Join(base, filepath.FromSlash(name)))
	if err != nil {
		return "", fmt.Errorf("failed to resolve artifact path: %w", err)
	}
	if target != base && !strings.HasPrefix(target, base+string(filepath.Separator)) {
		return "", fmt.Errorf("artifact path escapes artifacts directory")
	}
	info, err := os.Stat(target)
	if err != nil {
		return "", fmt.Errorf("artifact not found: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("artifact is not a regular file")
	}
	return target, nil
}
