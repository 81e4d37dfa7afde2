package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sumire/verdictrelay/internal/domain"
)

const jobColumns = `id, kind, case_details, verdict, artifact, status, created_at, updated_at`

// JobRepository handles generation job persistence.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a job in the processing state, replacing any row with the same ID.
func (r *JobRepository) Create(ctx context.Context, job domain.Job) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		`INSERT INTO jobs (`+jobColumns+`)
		 VALUES (?, ?, ?, ?, NULL, ?, ?, ?)
		 ON CONFLICT (id)
		 DO UPDATE SET kind = EXCLUDED.kind,
		               case_details = EXCLUDED.case_details,
		               verdict = EXCLUDED.verdict,
		               artifact = NULL,
		               status = EXCLUDED.status,
		               created_at = EXCLUDED.created_at,
		               updated_at = EXCLUDED.updated_at`),
		job.ID, job.Kind, job.CaseDetails, job.Verdict, domain.JobStatusProcessing, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create job %s: %w", job.ID, err)
	}
	return nil
}

// Complete marks a processing job as completed with its artifact.
func (r *JobRepository) Complete(ctx context.Context, id, artifact string) error {
	if artifact == "" {
		return fmt.Errorf("%w: empty artifact for job %s", domain.ErrInvalidInput, id)
	}
	return r.finish(ctx, id, domain.JobStatusCompleted, &artifact)
}

// Fail marks a processing job as failed.
func (r *JobRepository) Fail(ctx context.Context, id string) error {
	return r.finish(ctx, id, domain.JobStatusFailed, nil)
}

// finish applies the single terminal transition. Rows that already left
// processing are not touched and yield ErrConflict.
func (r *JobRepository) finish(ctx context.Context, id string, status domain.JobStatus, artifact *string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE jobs SET status = ?, artifact = ?, updated_at = ?
		 WHERE id = ? AND status = ?`),
		status, artifact, time.Now().UTC(), id, domain.JobStatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("mark job %s %s: %w", id, status, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark job %s %s: %w", id, status, err)
	}
	if n > 0 {
		return nil
	}

	current, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: job %s already %s", domain.ErrConflict, id, current.Status)
}

// FailStale marks jobs still processing with no update since before as
// failed and reports how many were changed.
func (r *JobRepository) FailStale(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE jobs SET status = ?, artifact = NULL, updated_at = ?
		 WHERE status = ? AND updated_at < ?`),
		domain.JobStatusFailed, time.Now().UTC(), domain.JobStatusProcessing, before.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("fail stale jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("fail stale jobs: %w", err)
	}
	return n, nil
}

// FindByID retrieves a job by its ID.
func (r *JobRepository) FindByID(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	err := r.db.GetContext(ctx, &job, r.db.Rebind(
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find job by id %s: %w", id, err)
	}
	return &job, nil
}

// List returns the most recently created jobs first.
func (r *JobRepository) List(ctx context.Context, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	var jobs []domain.Job
	err := r.db.SelectContext(ctx, &jobs, r.db.Rebind(
		`SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}
