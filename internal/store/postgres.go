package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/sandrun/internal/common"
	"github.com/ternarybob/sandrun/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	job_id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	command TEXT,
	created_at TIMESTAMP DEFAULT now(),
	runner_requested TEXT,
	runner_selected TEXT
);
`

// postgresStore is the locking engine: the claim is a single UPDATE over
// a FOR UPDATE SKIP LOCKED subselect, so concurrent workers never block
// on or double-claim the same row.
type postgresStore struct {
	pool   *pgxpool.Pool
	logger arbor.ILogger
}

func newPostgresStore(ctx context.Context, logger arbor.ILogger, databaseURL string) (*postgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info().Msg("Postgres store initialized")
	return &postgresStore{pool: pool, logger: logger}, nil
}

func (s *postgresStore) Ping(ctx context.Context) error {
	var one int
	return s.pool.QueryRow(ctx, "SELECT 1").Scan(&one)
}

func (s *postgresStore) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to create jobs table: %w", err)
	}
	return nil
}

func (s *postgresStore) InsertQueued(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobs (job_id, status, command, created_at, runner_requested, runner_selected)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		job.JobID, string(models.JobStatusQueued), job.Command,
		common.TruncateToSecond(job.CreatedAt), job.RunnerRequested, job.RunnerSelected)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

func (s *postgresStore) ClaimOldestQueued(ctx context.Context) (*models.Claim, error) {
	var claim models.Claim
	err := s.pool.QueryRow(ctx, `
		UPDATE jobs
		SET status = 'running', runner_selected = COALESCE(runner_selected, 'shell')
		WHERE job_id = (
			SELECT job_id
			FROM jobs
			WHERE status = 'queued'
			ORDER BY created_at ASC, job_id ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING job_id, command`).Scan(&claim.JobID, &claim.Command)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	return &claim, nil
}

func (s *postgresStore) UpdateStatus(ctx context.Context, jobID string, status models.JobStatus) error {
	_, err := s.pool.Exec(ctx,
		"UPDATE jobs SET status = $1 WHERE job_id = $2", string(status), jobID)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	return nil
}

func (s *postgresStore) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT job_id, status, command, created_at, runner_requested, runner_selected
		FROM jobs
		WHERE job_id = $1`, jobID)
	job, err := scanPostgresJob(row.Scan)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job: %w", err)
	}
	return job, nil
}

func (s *postgresStore) ListJobs(ctx context.Context, opts ListOptions) ([]models.Job, error) {
	var clauses []string
	var params []any
	arg := func(v any) string {
		params = append(params, v)
		return fmt.Sprintf("$%d", len(params))
	}

	if opts.Status != "" {
		clauses = append(clauses, "status = "+arg(opts.Status))
	}
	if opts.Query != "" {
		clauses = append(clauses, "command LIKE "+arg("%"+opts.Query+"%"))
	}
	if opts.Cursor != nil {
		ts, err := common.ParseUTC(opts.Cursor.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("malformed cursor timestamp %q: %w", opts.Cursor.CreatedAt, err)
		}
		a, b, c := arg(ts), arg(ts), arg(opts.Cursor.JobID)
		clauses = append(clauses, fmt.Sprintf("(created_at < %s OR (created_at = %s AND job_id < %s))", a, b, c))
	}

	query := "SELECT job_id, status, command, created_at, runner_requested, runner_selected FROM jobs"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, job_id DESC LIMIT " + arg(opts.Limit+1)

	rows, err := s.pool.Query(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		job, err := scanPostgresJob(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (s *postgresStore) CountByStatus(ctx context.Context) (map[models.JobStatus]int, error) {
	rows, err := s.pool.Query(ctx, "SELECT status, COUNT(*) FROM jobs GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.JobStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		counts[models.JobStatus(status)] = count
	}
	return counts, rows.Err()
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPostgresJob(scan func(dest ...any) error) (*models.Job, error) {
	var job models.Job
	var status string
	var createdAt time.Time
	if err := scan(&job.JobID, &status, &job.Command, &createdAt,
		&job.RunnerRequested, &job.RunnerSelected); err != nil {
		return nil, err
	}
	job.Status = models.JobStatus(status)
	// TIMESTAMP columns come back naive; they were written as UTC
	job.CreatedAt = time.Date(createdAt.Year(), createdAt.Month(), createdAt.Day(),
		createdAt.Hour(), createdAt.Minute(), createdAt.Second(), createdAt.Nanosecond(), time.UTC)
	return &job, nil
}
