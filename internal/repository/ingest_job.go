package repository

import (
	"context"
	"time"

	"github.com/cloo-solutions/aura/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type IngestJobRepository struct {
	db dbtx
}

func NewIngestJobRepository(pool *pgxpool.Pool) *IngestJobRepository {
	return &IngestJobRepository{db: pool}
}

func NewIngestJobRepositoryWithTx(tx pgx.Tx) *IngestJobRepository {
	return &IngestJobRepository{db: tx}
}

const ingestJobColumns = `id, document_id, status, retries, error, created_at, processed_at`

func (r *IngestJobRepository) Create(ctx context.Context, job *domain.IngestJob) error {
	if err := job.Validate(); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO ingest_jobs (`+ingestJobColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, job.DocumentID, job.Status, job.Retries, nullableString(job.Error), job.CreatedAt, job.ProcessedAt,
	)
	return err
}

func (r *IngestJobRepository) GetByID(ctx context.Context, id string) (*domain.IngestJob, error) {
	if !isUUID(id) {
		return nil, domain.ErrIngestJobNotFound
	}
	rows, err := r.db.Query(ctx, `SELECT `+ingestJobColumns+` FROM ingest_jobs WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return firstIngestJob(rows)
}

// GetLatestByDocument returns the most recent job queued for a document.
func (r *IngestJobRepository) GetLatestByDocument(ctx context.Context, documentID string) (*domain.IngestJob, error) {
	if !isUUID(documentID) {
		return nil, domain.ErrIngestJobNotFound
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+ingestJobColumns+`
		 FROM ingest_jobs WHERE document_id = $1
		 ORDER BY created_at DESC
		 LIMIT 1`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	return firstIngestJob(rows)
}

// ClaimPending moves up to limit pending jobs to processing. Concurrent
// workers never claim the same job.
func (r *IngestJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.IngestJob, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM ingest_jobs
			 WHERE status = $1
			 ORDER BY created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $2
		 )
		 UPDATE ingest_jobs
		 SET status = $3,
		     error = NULL,
		     processed_at = NULL
		 FROM cte
		 WHERE ingest_jobs.id = cte.id
		 RETURNING ingest_jobs.id, ingest_jobs.document_id, ingest_jobs.status, ingest_jobs.retries,
		           ingest_jobs.error, ingest_jobs.created_at, ingest_jobs.processed_at`,
		domain.IngestJobStatusPending, limit, domain.IngestJobStatusProcessing,
	)
	if err != nil {
		return nil, err
	}
	return scanIngestJobs(rows)
}

func (r *IngestJobRepository) UpdateStatus(ctx context.Context, id string, status domain.IngestJobStatus, errMsg string) error {
	if !status.Valid() {
		return domain.ErrInvalidIngestStatus
	}
	var processedAt *time.Time
	if status.Terminal() {
		now := time.Now().UTC()
		processedAt = &now
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE ingest_jobs SET status = $1, error = $2, processed_at = $3 WHERE id = $4`,
		status, nullableString(errMsg), processedAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrIngestJobNotFound
	}
	return nil
}

func (r *IngestJobRepository) IncrementRetries(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `UPDATE ingest_jobs SET retries = retries + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrIngestJobNotFound
	}
	return nil
}

func firstIngestJob(rows pgx.Rows) (*domain.IngestJob, error) {
	jobs, err := scanIngestJobs(rows)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, domain.ErrIngestJobNotFound
	}
	return jobs[0], nil
}

func scanIngestJobs(rows pgx.Rows) ([]*domain.IngestJob, error) {
	defer rows.Close()

	var jobs []*domain.IngestJob
	for rows.Next() {
		var job domain.IngestJob
		var errMsg pgtype.Text
		if err := rows.Scan(&job.ID, &job.DocumentID, &job.Status, &job.Retries, &errMsg, &job.CreatedAt, &job.ProcessedAt); err != nil {
			return nil, err
		}
		if errMsg.Valid {
			job.Error = errMsg.String
		}
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}
