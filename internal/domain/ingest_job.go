package domain

import (
	"fmt"
	"time"
)

// IngestJobStatus is the lifecycle state of an ingest job:
// pending -> processing -> completed | failed, with failed attempts that
// still have retries left going back to pending.
type IngestJobStatus string

const (
	IngestJobStatusPending    IngestJobStatus = "pending"
	IngestJobStatusProcessing IngestJobStatus = "processing"
	IngestJobStatusCompleted  IngestJobStatus = "completed"
	IngestJobStatusFailed     IngestJobStatus = "failed"
)

func (s IngestJobStatus) Valid() bool {
	switch s {
	case IngestJobStatusPending, IngestJobStatusProcessing, IngestJobStatusCompleted, IngestJobStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the job will not be picked up again.
func (s IngestJobStatus) Terminal() bool {
	return s == IngestJobStatusCompleted || s == IngestJobStatusFailed
}

// IngestJob is one queued chunk-and-embed run for a stored document.
type IngestJob struct {
	ID          string
	DocumentID  string
	Status      IngestJobStatus
	Retries     int32
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

func NewIngestJob(id, documentID string, status IngestJobStatus, retries int32, errMsg string, createdAt time.Time, processedAt *time.Time) *IngestJob {
	return &IngestJob{
		ID:          id,
		DocumentID:  documentID,
		Status:      status,
		Retries:     retries,
		Error:       errMsg,
		CreatedAt:   createdAt,
		ProcessedAt: processedAt,
	}
}

// Validate checks a job before it is queued.
func (j *IngestJob) Validate() error {
	switch {
	case j.ID == "":
		return fmt.Errorf("%w: ingest job id", ErrMissingRequiredField)
	case j.DocumentID == "":
		return fmt.Errorf("%w: ingest job document id", ErrMissingRequiredField)
	case !j.Status.Valid():
		return fmt.Errorf("%w: %q", ErrInvalidIngestStatus, j.Status)
	case j.Retries < 0:
		return fmt.Errorf("%w: negative retry count %d", ErrInvalidIngestStatus, j.Retries)
	}
	return nil
}
