package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/cloo-solutions/aura/internal/domain"
	"github.com/cloo-solutions/aura/internal/service"
	"github.com/cloo-solutions/aura/internal/telemetry"
)

const (
	// MaxRetries is the number of attempts a job gets before it is marked failed.
	MaxRetries = 3

	defaultBatchSize = 10
)

// IngestJobRepository is the queue side of ingest job persistence.
type IngestJobRepository interface {
	ClaimPending(ctx context.Context, limit int) ([]*domain.IngestJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.IngestJobStatus, errMsg string) error
	IncrementRetries(ctx context.Context, id string) error
}

// DocumentProcessor chunks and embeds one stored document.
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, documentID string) (*service.IngestResult, error)
}

// IngestWorker drains pending ingest jobs.
type IngestWorker struct {
	repo      IngestJobRepository
	processor DocumentProcessor
	batchSize int
}

// NewIngestWorker creates a new IngestWorker instance
func NewIngestWorker(repo IngestJobRepository, processor DocumentProcessor, batchSize int) *IngestWorker {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &IngestWorker{repo: repo, processor: processor, batchSize: batchSize}
}

// ProcessJobs implements the JobProcessor interface
func (w *IngestWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.ClaimPending(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("Processing %d pending ingest jobs", len(jobs))

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("Error processing job %s: %v", job.ID, err)
		}
	}

	return nil
}

func (w *IngestWorker) processJob(ctx context.Context, job *domain.IngestJob) error {
	result, err := w.processor.ProcessDocument(ctx, job.DocumentID)
	if err != nil {
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.repo.UpdateStatus(ctx, job.ID, domain.IngestJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	log.Printf("Job %s completed: document %s, %d chunks, %d embedded, %d skipped",
		job.ID, job.DocumentID, result.Chunks, result.Embedded, result.Skipped)
	return nil
}

// handleJobFailure requeues the job until it runs out of attempts. Failures
// that cannot succeed on retry, such as a missing document, fail at once.
func (w *IngestWorker) handleJobFailure(ctx context.Context, job *domain.IngestJob, jobErr error) error {
	log.Printf("Job %s failed: %v", job.ID, jobErr)

	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	permanent := domain.HasCode(jobErr, domain.ErrCodeNotFound) ||
		domain.HasCode(jobErr, domain.ErrCodeValidation) ||
		domain.HasCode(jobErr, domain.ErrCodeInvalidParameter)

	if permanent || job.Retries+1 >= MaxRetries {
		log.Printf("Job %s marked as failed after %d attempts", job.ID, job.Retries+1)
		telemetry.CaptureError(ctx, fmt.Errorf("ingest job %s for document %s: %w", job.ID, job.DocumentID, jobErr))
		errMsg := fmt.Sprintf("giving up after %d attempts: %v", job.Retries+1, jobErr)
		if err := w.repo.UpdateStatus(ctx, job.ID, domain.IngestJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	log.Printf("Job %s will be retried (attempt %d/%d)", job.ID, job.Retries+1, MaxRetries)
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.repo.UpdateStatus(ctx, job.ID, domain.IngestJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}

	return nil
}
