package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cloo-solutions/aura/internal/domain"
	"github.com/cloo-solutions/aura/internal/pagination"
	"github.com/cloo-solutions/aura/internal/service"
)

type masteryKey struct {
	userID  string
	topicID string
}

// MasteryRepository is a versioned map with compare-and-swap writes.
type MasteryRepository struct {
	mu      sync.RWMutex
	records map[masteryKey]*domain.MasteryRecord
}

func NewMasteryRepository() *MasteryRepository {
	return &MasteryRepository{records: make(map[masteryKey]*domain.MasteryRecord)}
}

func (r *MasteryRepository) Get(ctx context.Context, userID, topicID string) (*domain.MasteryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[masteryKey{userID, topicID}]
	if !ok {
		return nil, domain.ErrMasteryNotFound
	}
	return rec.Clone(), nil
}

func (r *MasteryRepository) Save(ctx context.Context, rec *domain.MasteryRecord, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := masteryKey{rec.UserID, rec.TopicID}
	var current int64
	if existing, ok := r.records[key]; ok {
		current = existing.Version
	}
	if current != expectedVersion {
		return domain.ErrVersionConflict
	}
	stored := rec.Clone()
	stored.Version = expectedVersion + 1
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now().UTC()
	}
	r.records[key] = stored
	return nil
}

// ListByUserWithCursor orders by (updatedAt, topicID) descending, like the
// Postgres repository.
func (r *MasteryRepository) ListByUserWithCursor(ctx context.Context, userID string, cursor *pagination.Cursor, limit int) (*service.MasteryPageResult, error) {
	r.mu.RLock()
	var rows []*domain.MasteryRecord
	for key, rec := range r.records {
		if key.userID != userID {
			continue
		}
		if !cursor.After(rec.TopicID, rec.UpdatedAt) {
			continue
		}
		rows = append(rows, rec.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].UpdatedAt.Equal(rows[j].UpdatedAt) {
			return rows[i].UpdatedAt.After(rows[j].UpdatedAt)
		}
		return rows[i].TopicID > rows[j].TopicID
	})

	items, next, hasMore := pagination.Trim(rows, limit, func(rec *domain.MasteryRecord) (string, time.Time) {
		return rec.TopicID, rec.UpdatedAt
	})
	if items == nil {
		items = []*domain.MasteryRecord{}
	}
	return &service.MasteryPageResult{Items: items, NextCursor: next, HasMore: hasMore}, nil
}

func (r *MasteryRepository) ListDue(ctx context.Context, userID string, asOf time.Time) ([]*domain.MasteryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*domain.MasteryRecord{}
	for key, rec := range r.records {
		if key.userID == userID && !rec.NextReviewDate.After(asOf) {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].NextReviewDate.Equal(out[j].NextReviewDate) {
			return out[i].NextReviewDate.Before(out[j].NextReviewDate)
		}
		return out[i].TopicID < out[j].TopicID
	})
	return out, nil
}
