package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
)

type AnalysisJobRepository struct {
	db *sql.DB
}

func NewAnalysisJobRepository(db *sql.DB) *AnalysisJobRepository {
	return &AnalysisJobRepository{db: db}
}

func (r *AnalysisJobRepository) Create(ctx context.Context, job *domain.AnalysisJob) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO analysis_jobs (job_id, document_id, status, started_at, completed_at)
VALUES ($1,$2,$3,$4,$5)
`, job.JobID, job.DocumentID, string(job.Status), job.StartedAt, job.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert analysis job: %w", err)
	}
	return nil
}

func (r *AnalysisJobRepository) GetByJobID(ctx context.Context, jobID string) (*domain.AnalysisJob, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT job_id, document_id, status, started_at, completed_at
FROM analysis_jobs
WHERE job_id = $1
`, jobID)

	var job domain.AnalysisJob
	var status string
	var completedAt sql.NullTime

	err := row.Scan(&job.JobID, &job.DocumentID, &status, &job.StartedAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrUnknownJob, "get analysis job", fmt.Errorf("job %s", jobID))
		}
		return nil, fmt.Errorf("scan analysis job: %w", err)
	}

	job.Status = domain.AnalysisJobStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return &job, nil
}

func (r *AnalysisJobRepository) SetStatus(ctx context.Context, jobID string, status domain.AnalysisJobStatus) error {
	var completedAt any
	if status == domain.JobCompleted || status == domain.JobFailed {
		completedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
UPDATE analysis_jobs
SET status = $2, completed_at = COALESCE($3, completed_at)
WHERE job_id = $1
`, jobID, string(status), completedAt)
	if err != nil {
		return fmt.Errorf("set analysis job status: %w", err)
	}
	return nil
}
