package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/cloo-solutions/aura/internal/domain"
)

type DocumentRepository struct {
	mu   sync.RWMutex
	docs map[string]*domain.Document
}

func NewDocumentRepository() *DocumentRepository {
	return &DocumentRepository{docs: make(map[string]*domain.Document)}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[d.ID]; ok {
		return domain.NewDomainError(domain.ErrCodeAlreadyExists, "document already exists")
	}
	c := *d
	r.docs[d.ID] = &c
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	c := *d
	return &c, nil
}

func (r *DocumentRepository) FindLatestByOwnerAndFilename(ctx context.Context, ownerID, filename string) (*domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *domain.Document
	for _, d := range r.docs {
		if d.OwnerID != ownerID || d.Filename != filename {
			continue
		}
		if latest == nil || d.CreatedAt.After(latest.CreatedAt) ||
			(d.CreatedAt.Equal(latest.CreatedAt) && d.ID > latest.ID) {
			latest = d
		}
	}
	if latest == nil {
		return nil, domain.ErrDocumentNotFound
	}
	c := *latest
	return &c, nil
}

type ChunkRepository struct {
	mu     sync.RWMutex
	chunks map[string]domain.Chunk
}

func NewChunkRepository() *ChunkRepository {
	return &ChunkRepository{chunks: make(map[string]domain.Chunk)}
}

func (r *ChunkRepository) SaveChunks(ctx context.Context, chunks []domain.Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range chunks {
		r.chunks[c.ID] = c
	}
	return nil
}

func (r *ChunkRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := r.chunks[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *ChunkRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.chunks {
		if c.DocumentID == documentID {
			delete(r.chunks, id)
		}
	}
	return nil
}

// ListByDocument returns a document's chunks in sequence order.
func (r *ChunkRepository) ListByDocument(documentID string) []domain.Chunk {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Chunk
	for _, c := range r.chunks {
		if c.DocumentID == documentID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceIndex < out[j].SequenceIndex })
	return out
}
