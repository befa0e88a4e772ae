package store

import (
	"context"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/sandrun/internal/models"
)

// ListOptions controls the keyset-paginated range scan over jobs
type ListOptions struct {
	Status string  // exact status filter, empty for all
	Query  string  // substring match against command, empty for all
	Limit  int     // page size; the scan returns up to Limit+1 rows
	Cursor *Cursor // resume point from a previous page, nil for the first page
}

// Store is the relational jobs table: the single source of truth for
// queue ordering and lifecycle state. Two engines implement it; the
// claim operation is safe under concurrent workers on both.
type Store interface {
	// Ping runs a trivial SELECT 1 round trip
	Ping(ctx context.Context) error

	// InitSchema creates the jobs table if it does not exist
	InitSchema(ctx context.Context) error

	// InsertQueued writes a new row with status "queued"
	InsertQueued(ctx context.Context, job *models.Job) error

	// ClaimOldestQueued atomically selects the oldest queued row
	// (created_at ASC, job_id ASC) and transitions it to running,
	// filling runner_selected with "shell" only if it is null.
	// Returns nil when no queued row exists.
	ClaimOldestQueued(ctx context.Context) (*models.Claim, error)

	// UpdateStatus unconditionally sets the status column
	UpdateStatus(ctx context.Context, jobID string, status models.JobStatus) error

	// GetJob returns the full row, or nil when missing
	GetJob(ctx context.Context, jobID string) (*models.Job, error)

	// ListJobs scans rows ordered by created_at DESC, job_id DESC,
	// returning up to Limit+1 rows so the caller can derive the next cursor
	ListJobs(ctx context.Context, opts ListOptions) ([]models.Job, error)

	// CountByStatus returns the number of jobs per lifecycle state
	CountByStatus(ctx context.Context) (map[models.JobStatus]int, error)

	Close() error
}

// Open selects the store engine by URL prefix: "sqlite://" selects the
// serialized file/mem engine, anything else is treated as a networked
// relational URL handled by the locking engine.
func Open(ctx context.Context, logger arbor.ILogger, databaseURL string) (Store, error) {
	if strings.HasPrefix(databaseURL, "sqlite://") {
		return newSQLiteStore(logger, databaseURL)
	}
	return newPostgresStore(ctx, logger, databaseURL)
}
