package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cloo-solutions/aura/internal/domain"
)

// IngestJobRepository mirrors the Postgres job queue, including claim
// semantics, for single-process deployments.
type IngestJobRepository struct {
	mu   sync.Mutex
	jobs map[string]*domain.IngestJob
}

func NewIngestJobRepository() *IngestJobRepository {
	return &IngestJobRepository{jobs: make(map[string]*domain.IngestJob)}
}

func (r *IngestJobRepository) Create(ctx context.Context, job *domain.IngestJob) error {
	if err := job.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *job
	r.jobs[job.ID] = &c
	return nil
}

func (r *IngestJobRepository) GetByID(ctx context.Context, id string) (*domain.IngestJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrIngestJobNotFound
	}
	c := *job
	return &c, nil
}

func (r *IngestJobRepository) GetLatestByDocument(ctx context.Context, documentID string) (*domain.IngestJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.IngestJob
	for _, job := range r.jobs {
		if job.DocumentID != documentID {
			continue
		}
		if latest == nil || job.CreatedAt.After(latest.CreatedAt) {
			latest = job
		}
	}
	if latest == nil {
		return nil, domain.ErrIngestJobNotFound
	}
	c := *latest
	return &c, nil
}

func (r *IngestJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.IngestJob, error) {
	if limit <= 0 {
		limit = 10
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var pending []*domain.IngestJob
	for _, job := range r.jobs {
		if job.Status == domain.IngestJobStatusPending {
			pending = append(pending, job)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if len(pending) > limit {
		pending = pending[:limit]
	}

	claimed := make([]*domain.IngestJob, 0, len(pending))
	for _, job := range pending {
		job.Status = domain.IngestJobStatusProcessing
		job.Error = ""
		job.ProcessedAt = nil
		c := *job
		claimed = append(claimed, &c)
	}
	return claimed, nil
}

func (r *IngestJobRepository) UpdateStatus(ctx context.Context, id string, status domain.IngestJobStatus, errMsg string) error {
	if !status.Valid() {
		return domain.ErrInvalidIngestStatus
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return domain.ErrIngestJobNotFound
	}
	job.Status = status
	job.Error = errMsg
	if status.Terminal() {
		now := time.Now().UTC()
		job.ProcessedAt = &now
	}
	return nil
}

func (r *IngestJobRepository) IncrementRetries(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return domain.ErrIngestJobNotFound
	}
	job.Retries++
	return nil
}
