package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	_ "modernc.org/sqlite"

	"github.com/ternarybob/sandrun/internal/common"
	"github.com/ternarybob/sandrun/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	job_id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	command TEXT,
	created_at TEXT NOT NULL,
	runner_requested TEXT,
	runner_selected TEXT
);
`

// sqliteStore is the serialized engine. SQLite has no row locks, so the
// claim runs inside an immediate transaction: select the candidate, then
// update guarded by status = 'queued'. Zero rows affected means a
// concurrent claimer won.
type sqliteStore struct {
	db     *sql.DB
	logger arbor.ILogger
}

// sqlitePath extracts the filesystem path from a sqlite:// URL.
// An empty path selects an in-memory database.
func sqlitePath(databaseURL string) string {
	path := strings.TrimPrefix(databaseURL, "sqlite://")
	for strings.HasPrefix(path, "//") {
		path = path[1:]
	}
	if path == "" || path == "/" {
		return ":memory:"
	}
	return path
}

func newSQLiteStore(logger arbor.ILogger, databaseURL string) (*sqliteStore, error) {
	path := sqlitePath(databaseURL)
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite uses "sqlite" driver name (not "sqlite3").
	// _txlock=immediate makes BeginTx take the write lock up front,
	// which is what serializes concurrent claimers.
	dsn := path + "?_txlock=immediate&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps :memory: databases coherent and avoids
	// SQLITE_BUSY churn under concurrent access.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().Str("path", path).Msg("SQLite store initialized")
	return &sqliteStore{db: db, logger: logger}, nil
}

func (s *sqliteStore) Ping(ctx context.Context) error {
	var one int
	return s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

func (s *sqliteStore) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to create jobs table: %w", err)
	}
	return nil
}

func (s *sqliteStore) InsertQueued(ctx context.Context, job *models.Job) error {
	createdAt := common.FormatUTC(common.TruncateToSecond(job.CreatedAt))
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (job_id, status, command, created_at, runner_requested, runner_selected)
		VALUES (?, ?, ?, ?, ?, ?)`,
		job.JobID, string(models.JobStatusQueued), job.Command, createdAt,
		job.RunnerRequested, job.RunnerSelected)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

func (s *sqliteStore) ClaimOldestQueued(ctx context.Context) (*models.Claim, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback()

	var claim models.Claim
	err = tx.QueryRowContext(ctx, `
		SELECT job_id, command
		FROM jobs
		WHERE status = ?
		ORDER BY created_at ASC, job_id ASC
		LIMIT 1`,
		string(models.JobStatusQueued)).Scan(&claim.JobID, &claim.Command)
	if err == sql.ErrNoRows {
		return nil, tx.Commit()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select claim candidate: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE jobs
		SET status = ?, runner_selected = COALESCE(runner_selected, ?)
		WHERE job_id = ? AND status = ?`,
		string(models.JobStatusRunning), string(models.RunnerShell),
		claim.JobID, string(models.JobStatusQueued))
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read claim result: %w", err)
	}
	if affected == 0 {
		// A concurrent claimer won the race
		return nil, tx.Commit()
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	return &claim, nil
}

func (s *sqliteStore) UpdateStatus(ctx context.Context, jobID string, status models.JobStatus) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE jobs SET status = ? WHERE job_id = ?", string(status), jobID)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	return nil
}

func (s *sqliteStore) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT job_id, status, command, created_at, runner_requested, runner_selected
		FROM jobs
		WHERE job_id = ?`, jobID)
	job, err := scanSQLiteJob(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job: %w", err)
	}
	return job, nil
}

func (s *sqliteStore) ListJobs(ctx context.Context, opts ListOptions) ([]models.Job, error) {
	var clauses []string
	var params []any
	if opts.Status != "" {
		clauses = append(clauses, "status = ?")
		params = append(params, opts.Status)
	}
	if opts.Query != "" {
		clauses = append(clauses, "command LIKE ?")
		params = append(params, "%"+opts.Query+"%")
	}
	if opts.Cursor != nil {
		// created_at is a fixed-width ISO string, so string comparison
		// matches timestamp ordering
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND job_id < ?))")
		params = append(params, opts.Cursor.CreatedAt, opts.Cursor.CreatedAt, opts.Cursor.JobID)
	}

	query := "SELECT job_id, status, command, created_at, runner_requested, runner_selected FROM jobs"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, job_id DESC LIMIT ?"
	params = append(params, opts.Limit+1)

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		job, err := scanSQLiteJob(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (s *sqliteStore) CountByStatus(ctx context.Context) (map[models.JobStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM jobs GROUP BY status")
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

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func scanSQLiteJob(scan func(dest ...any) error) (*models.Job, error) {
	var job models.Job
	var status, createdAt string
	if err := scan(&job.JobID, &status, &job.Command, &createdAt,
		&job.RunnerRequested, &job.RunnerSelected); err != nil {
		return nil, err
	}
	job.Status = models.JobStatus(status)
	parsed, err := common.ParseUTC(createdAt)
	if err != nil {
		return nil, fmt.Errorf("malformed created_at %q: %w", createdAt, err)
	}
	job.CreatedAt = parsed
	return &job, nil
}
